package questions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"examprep/internal/cache"
	"examprep/internal/core"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// failingKV wraps a MemoryKV and fails selected operations.
type failingKV struct {
	*cache.MemoryKV
	failSet    bool
	failGet    bool
	failRemove bool
}

var errInjected = errors.New("injected failure")

func (f *failingKV) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGet {
		return nil, errInjected
	}
	return f.MemoryKV.Get(ctx, key)
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	if f.failSet {
		return errInjected
	}
	return f.MemoryKV.Set(ctx, key, value)
}

func (f *failingKV) Remove(ctx context.Context, key string) error {
	if f.failRemove {
		return errInjected
	}
	return f.MemoryKV.Remove(ctx, key)
}

func makeQuestions(subject core.Subject, n int) []core.Question {
	out := make([]core.Question, n)
	for i := range out {
		out[i] = core.Question{
			ID:      fmt.Sprintf("%s-%d", subject.Key(), i),
			Subject: subject,
			Topic:   "General",
			Text:    fmt.Sprintf("Question %d?", i),
			Options: []core.Option{
				{Label: "A", Text: "one"},
				{Label: "B", Text: "two"},
				{Label: "C", Text: "three"},
				{Label: "D", Text: "four"},
			},
			CorrectAnswer: "B",
		}
	}
	return out
}
