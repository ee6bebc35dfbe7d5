// Package offline coordinates connectivity, the remote question source and
// the question cache into the user-facing "download for offline" actions.
package offline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"examprep/internal/connectivity"
	"examprep/internal/core"
	"examprep/internal/observability"
	"examprep/internal/questions"
)

// Result is the outcome of caching one subject.
type Result struct {
	Subject   core.Subject   `json:"subject"`
	Success   bool           `json:"success"`
	Count     int            `json:"count"`
	ErrorType core.ErrorType `json:"error_type,omitempty"`
	Message   string         `json:"message"`
	Err       error          `json:"-"`
}

// BatchResult is the outcome of caching every subject.
type BatchResult struct {
	Success bool     `json:"success"`
	Total   int      `json:"total"`
	Results []Result `json:"results"`
	Message string   `json:"message"`
	Err     error    `json:"-"`
}

// Controller is safe for concurrent use. Concurrent CacheSubject calls for
// the same subject share a single fetch and write.
type Controller struct {
	state    connectivity.State
	source   core.QuestionSource
	store    *questions.Store
	stats    *questions.Aggregator
	onResult func(Result)
	inflight singleflight.Group
	mu       sync.RWMutex
	snapshot questions.CacheStats
}

// Option configures a Controller.
type Option func(*Controller)

// WithResultHandler registers fn to receive every CacheSubject result, once
// per caller, including callers that shared an in-flight download.
// Presentation layers use it to show notices.
func WithResultHandler(fn func(Result)) Option {
	return func(c *Controller) { c.onResult = fn }
}

// NewController creates a Controller.
func NewController(state connectivity.State, source core.QuestionSource, store *questions.Store, opts ...Option) *Controller {
	c := &Controller{
		state:  state,
		source: source,
		store:  store,
		stats:  questions.NewAggregator(store),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CacheSubject downloads questions for subject and stores them for offline
// use. Failures are reported in the Result; the previously cached data is
// left intact. A call made while offline always fails, even when a download
// for the same subject is already in flight.
func (c *Controller) CacheSubject(ctx context.Context, subject core.Subject) Result {
	if !subject.Valid() {
		return c.finish(failure(subject, core.NewInvalidRequestError(
			fmt.Sprintf("unknown subject %q", subject), core.ErrUnknownSubject)))
	}
	if !c.state.Online() {
		return c.finish(rejectOffline(subject))
	}

	// The shared work must not be cancelled by whichever caller started it.
	shared := context.WithoutCancel(ctx)
	v, _, _ := c.inflight.Do(subject.Key(), func() (interface{}, error) {
		return c.cacheSubject(shared, subject), nil
	})
	return c.finish(v.(Result))
}

func (c *Controller) cacheSubject(ctx context.Context, subject core.Subject) Result {
	// Connectivity may have dropped since the caller checked.
	if !c.state.Online() {
		return rejectOffline(subject)
	}

	fetched, err := c.source.Fetch(ctx, subject)
	if err != nil {
		slog.Error("failed to fetch questions", "subject", subject, "error", err)
		observability.RecordCacheAttempt(subject.String(), observability.OutcomeFetchError)
		return failure(subject, core.NewFetchError(subject, err))
	}

	if err := c.store.Write(ctx, subject, fetched); err != nil {
		var cacheErr *core.CacheError
		if !errors.As(err, &cacheErr) {
			cacheErr = core.NewCacheWriteError(subject, err)
		}
		slog.Error("failed to cache questions", "subject", subject, "error", err)
		observability.RecordCacheAttempt(subject.String(), observability.OutcomeWriteError)
		return failure(subject, cacheErr)
	}

	count := min(len(fetched), c.store.MaxPerSubject())
	observability.RecordCacheAttempt(subject.String(), observability.OutcomeSuccess)
	slog.Info("cached questions for offline use", "subject", subject, "count", count)
	c.RefreshStats(ctx)

	return Result{
		Subject: subject,
		Success: true,
		Count:   count,
		Message: fmt.Sprintf("%d %s questions saved for offline use", count, subject),
	}
}

func rejectOffline(subject core.Subject) Result {
	slog.Info("cache request rejected while offline", "subject", subject)
	observability.RecordCacheAttempt(subject.String(), observability.OutcomeOffline)
	return failure(subject, core.NewOfflineError(subject))
}

// CacheAllSubjects caches every subject in order, one at a time. A failed
// subject does not stop the rest; the batch fails if any subject failed.
// Once ctx is done, the remaining subjects are recorded as failed without
// being fetched.
func (c *Controller) CacheAllSubjects(ctx context.Context) BatchResult {
	subjects := core.Subjects()
	batch := BatchResult{Results: make([]Result, 0, len(subjects))}

	var errs []error
	failed := 0
	for _, subject := range subjects {
		var res Result
		if err := ctx.Err(); err != nil {
			res = c.finish(failure(subject, core.NewFetchError(subject, err)))
		} else {
			res = c.CacheSubject(ctx, subject)
		}
		batch.Results = append(batch.Results, res)
		if !res.Success {
			failed++
			errs = append(errs, res.Err)
			continue
		}
		batch.Total += res.Count
	}

	batch.Err = errors.Join(errs...)
	batch.Success = batch.Err == nil
	if batch.Success {
		batch.Message = fmt.Sprintf("%d questions saved for offline use", batch.Total)
	} else {
		batch.Message = fmt.Sprintf("%d of %d subjects failed to download", failed, len(subjects))
	}
	return batch
}

// CachedCount returns the number of valid cached questions for subject.
func (c *Controller) CachedCount(ctx context.Context, subject core.Subject) int {
	return c.stats.Count(ctx, subject)
}

// TotalCachedCount returns the number of valid cached questions across all subjects.
func (c *Controller) TotalCachedCount(ctx context.Context) int {
	return c.stats.Total(ctx)
}

// HasCache reports whether subject has any valid cached questions.
func (c *Controller) HasCache(ctx context.Context, subject core.Subject) bool {
	return c.CachedCount(ctx, subject) > 0
}

// Questions returns the valid cached questions for subject.
func (c *Controller) Questions(ctx context.Context, subject core.Subject) ([]core.Question, error) {
	if !subject.Valid() {
		return nil, core.NewInvalidRequestError(fmt.Sprintf("unknown subject %q", subject), core.ErrUnknownSubject)
	}
	return c.store.Read(ctx, subject)
}

// PurgeExpired removes expired entries and refreshes the stats snapshot.
func (c *Controller) PurgeExpired(ctx context.Context) (int, error) {
	removed, err := c.store.PurgeExpired(ctx)
	observability.AddPurged(removed)
	c.RefreshStats(ctx)
	return removed, err
}

// RefreshStats recomputes the stats snapshot and returns a copy of it.
func (c *Controller) RefreshStats(ctx context.Context) questions.CacheStats {
	stats := c.stats.StatsForAll(ctx)
	for subject, n := range stats {
		observability.SetCachedQuestions(subject.String(), n)
	}

	c.mu.Lock()
	c.snapshot = stats
	c.mu.Unlock()
	return copyStats(stats)
}

// Stats returns the snapshot computed by the last RefreshStats. Before the
// first refresh every subject reports 0.
func (c *Controller) Stats() questions.CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		empty := make(questions.CacheStats, len(core.Subjects()))
		for _, s := range core.Subjects() {
			empty[s] = 0
		}
		return empty
	}
	return copyStats(c.snapshot)
}

// Online reports the current connectivity state.
func (c *Controller) Online() bool {
	return c.state.Online()
}

func (c *Controller) finish(res Result) Result {
	if c.onResult != nil {
		c.onResult(res)
	}
	return res
}

func failure(subject core.Subject, err *core.CacheError) Result {
	return Result{
		Subject:   subject,
		ErrorType: err.Type,
		Message:   err.Message,
		Err:       err,
	}
}

func copyStats(in questions.CacheStats) questions.CacheStats {
	out := make(questions.CacheStats, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
