package questions

import (
	"context"
	"log/slog"

	"examprep/internal/core"
)

// CacheStats maps every subject to its count of valid cached questions.
type CacheStats map[core.Subject]int

// Total returns the sum of all subject counts.
func (s CacheStats) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// Aggregator derives CacheStats from a Store. Nothing is memoized: every call
// reflects the current store contents.
type Aggregator struct {
	store *Store
}

func NewAggregator(store *Store) *Aggregator {
	return &Aggregator{store: store}
}

// StatsForAll returns the valid count for every subject in the fixed set.
// Subjects that were never cached, or whose entry cannot be read, report 0.
func (a *Aggregator) StatsForAll(ctx context.Context) CacheStats {
	stats := make(CacheStats, len(core.Subjects()))
	for _, subject := range core.Subjects() {
		stats[subject] = a.Count(ctx, subject)
	}
	return stats
}

// Count returns the valid count for one subject, logging and reporting 0 on
// storage failure.
func (a *Aggregator) Count(ctx context.Context, subject core.Subject) int {
	n, err := a.store.CountValid(ctx, subject)
	if err != nil {
		slog.Warn("failed to count cached questions", "subject", subject, "error", err)
		return 0
	}
	return n
}

// Total returns the sum of StatsForAll.
func (a *Aggregator) Total(ctx context.Context) int {
	return a.StatsForAll(ctx).Total()
}
