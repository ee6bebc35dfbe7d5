package connectivity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestNotices_OfflineNoticeExpiresAfterFiveSeconds(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMonitor(true)
	n := NewNotices(m, WithNoticesClock(clock.Now))
	defer n.Close()

	_, ok := n.Current()
	assert.False(t, ok, "no notice before any transition")

	m.Set(false)
	notice, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, NoticeOffline, notice.Kind)

	clock.Advance(4999 * time.Millisecond)
	_, ok = n.Current()
	assert.True(t, ok)

	clock.Advance(time.Millisecond)
	_, ok = n.Current()
	assert.False(t, ok, "offline notice expires after 5s")
}

func TestNotices_OnlineSupersedesOffline(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMonitor(true)

	var issued []NoticeKind
	n := NewNotices(m,
		WithNoticesClock(clock.Now),
		WithNoticeHandler(func(notice Notice) { issued = append(issued, notice.Kind) }),
	)
	defer n.Close()

	m.Set(false)
	clock.Advance(2 * time.Second)
	m.Set(true)

	notice, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, NoticeOnline, notice.Kind)
	assert.Equal(t, []NoticeKind{NoticeOffline, NoticeOnline}, issued)
}

func TestNotices_CloseStopsListening(t *testing.T) {
	m := NewMonitor(true)
	n := NewNotices(m)
	n.Close()

	m.Set(false)
	_, ok := n.Current()
	assert.False(t, ok)
}
