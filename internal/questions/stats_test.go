package questions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examprep/internal/cache"
	"examprep/internal/core"
)

func TestAggregator_StatsForAllIsTotal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, cache.NewMemoryKV(), newFakeClock())
	agg := NewAggregator(s)

	stats := agg.StatsForAll(ctx)
	require.Len(t, stats, len(core.Subjects()))
	for _, subject := range core.Subjects() {
		n, ok := stats[subject]
		assert.True(t, ok, "subject %s missing from stats", subject)
		assert.Zero(t, n)
	}
	assert.Zero(t, agg.Total(ctx))
}

func TestAggregator_ReflectsLatestStore(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, cache.NewMemoryKV(), clock)
	agg := NewAggregator(s)

	require.NoError(t, s.Write(ctx, core.Mathematics, makeQuestions(core.Mathematics, 60)))
	assert.Equal(t, 50, agg.StatsForAll(ctx)[core.Mathematics])
	assert.Equal(t, 0, agg.StatsForAll(ctx)[core.English])
	assert.Equal(t, 50, agg.Total(ctx))

	require.NoError(t, s.Write(ctx, core.English, makeQuestions(core.English, 10)))
	assert.Equal(t, 60, agg.Total(ctx))

	clock.Advance(8 * 24 * time.Hour)
	assert.Equal(t, 0, agg.Total(ctx))
}

func TestAggregator_TotalMatchesSum(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, cache.NewMemoryKV(), newFakeClock())
	agg := NewAggregator(s)

	for i, subject := range core.Subjects() {
		require.NoError(t, s.Write(ctx, subject, makeQuestions(subject, i*7)))
	}

	sum := 0
	for _, subject := range core.Subjects() {
		sum += agg.Count(ctx, subject)
	}
	assert.Equal(t, sum, agg.Total(ctx))
}

func TestAggregator_StorageErrorCountsZero(t *testing.T) {
	kv := &failingKV{MemoryKV: cache.NewMemoryKV(), failGet: true}
	agg := NewAggregator(newTestStore(t, kv, newFakeClock()))

	stats := agg.StatsForAll(context.Background())
	assert.Len(t, stats, len(core.Subjects()))
	assert.Zero(t, stats.Total())
}
