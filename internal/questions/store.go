// Package questions implements the offline question cache: a per-subject
// store with a fixed retention window, the stats derived from it, and the
// remote sources it is filled from.
package questions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"examprep/internal/cache"
	"examprep/internal/core"
)

const (
	// DefaultMaxPerSubject bounds how many questions are kept per subject.
	DefaultMaxPerSubject = 50

	// DefaultMaxAge is how long a cached subject stays valid.
	DefaultMaxAge = 7 * 24 * time.Hour

	keyPrefix = "questions:"
)

// CachedQuestionSet is the stored batch of questions for one subject.
type CachedQuestionSet struct {
	Subject   core.Subject    `json:"subject"`
	Questions []core.Question `json:"questions"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Config holds store limits.
type Config struct {
	MaxPerSubject int
	MaxAge        time.Duration
	// Compress stores entries brotli-compressed.
	Compress bool
}

// Store owns every cached question set. It is safe for concurrent use as long
// as the underlying KV is.
type Store struct {
	kv            cache.KV
	maxPerSubject int
	maxAge        time.Duration
	compress      bool
	now           func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets a custom clock function (for testing).
func WithClock(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

// NewStore creates a Store on top of kv. Zero limits fall back to the defaults.
func NewStore(kv cache.KV, cfg Config, opts ...Option) *Store {
	s := &Store{
		kv:            kv,
		maxPerSubject: cfg.MaxPerSubject,
		maxAge:        cfg.MaxAge,
		compress:      cfg.Compress,
		now:           time.Now,
	}
	if s.maxPerSubject <= 0 {
		s.maxPerSubject = DefaultMaxPerSubject
	}
	if s.maxAge <= 0 {
		s.maxAge = DefaultMaxAge
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// MaxPerSubject returns the configured per-subject bound.
func (s *Store) MaxPerSubject() int { return s.maxPerSubject }

// MaxAge returns the configured retention window.
func (s *Store) MaxAge() time.Duration { return s.maxAge }

func storageKey(subject core.Subject) string {
	return keyPrefix + subject.Key()
}

// Write replaces the cached set for subject with the first MaxPerSubject
// questions and stamps it with the current time. The previous entry is kept
// if anything fails.
func (s *Store) Write(ctx context.Context, subject core.Subject, questions []core.Question) error {
	if !subject.Valid() {
		return core.NewInvalidRequestError(fmt.Sprintf("unknown subject %q", subject), core.ErrUnknownSubject)
	}

	n := len(questions)
	if n > s.maxPerSubject {
		n = s.maxPerSubject
	}
	kept := make([]core.Question, n)
	copy(kept, questions[:n])

	data, err := encodeSet(&CachedQuestionSet{
		Subject:   subject,
		Questions: kept,
		FetchedAt: s.now(),
	}, s.compress)
	if err != nil {
		return core.NewCacheWriteError(subject, err)
	}

	if err := s.kv.Set(ctx, storageKey(subject), data); err != nil {
		return core.NewCacheWriteError(subject, err)
	}

	if len(questions) > n {
		slog.Debug("truncated question batch", "subject", subject, "received", len(questions), "kept", n)
	}
	return nil
}

// Entry returns the valid cached set for subject, or nil if it is absent,
// expired, or unreadable.
func (s *Store) Entry(ctx context.Context, subject core.Subject) (*CachedQuestionSet, error) {
	set, err := s.load(ctx, subject)
	if err != nil || set == nil {
		return nil, err
	}
	if !s.valid(set) {
		return nil, nil
	}
	return set, nil
}

// Read returns the cached questions for subject, or an empty slice if the
// entry is absent or expired.
func (s *Store) Read(ctx context.Context, subject core.Subject) ([]core.Question, error) {
	set, err := s.Entry(ctx, subject)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return []core.Question{}, nil
	}
	return set.Questions, nil
}

// CountValid returns the number of questions in a valid entry for subject.
func (s *Store) CountValid(ctx context.Context, subject core.Subject) (int, error) {
	set, err := s.Entry(ctx, subject)
	if err != nil || set == nil {
		return 0, err
	}
	return len(set.Questions), nil
}

// PurgeExpired removes every expired or unreadable entry and returns how many
// were removed. Errors for individual subjects are logged and skipped.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	removed := 0
	var firstErr error

	for _, subject := range core.Subjects() {
		data, err := s.kv.Get(ctx, storageKey(subject))
		if err != nil {
			slog.Warn("purge: failed to read cache entry", "subject", subject, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if data == nil {
			continue
		}

		set, err := decodeSet(data)
		if err == nil && set.Subject == subject && s.valid(set) {
			continue
		}

		if err := s.kv.Remove(ctx, storageKey(subject)); err != nil {
			slog.Warn("purge: failed to remove cache entry", "subject", subject, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}

	if removed > 0 {
		slog.Info("purged expired question cache entries", "removed", removed)
	}
	if firstErr != nil {
		return removed, fmt.Errorf("purge incomplete: %w", firstErr)
	}
	return removed, nil
}

func (s *Store) valid(set *CachedQuestionSet) bool {
	return s.now().Sub(set.FetchedAt) < s.maxAge
}

// load reads and decodes the entry for subject. Corrupted data is logged and
// reported as absent.
func (s *Store) load(ctx context.Context, subject core.Subject) (*CachedQuestionSet, error) {
	if !subject.Valid() {
		return nil, nil
	}

	data, err := s.kv.Get(ctx, storageKey(subject))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s cache: %w", subject, err)
	}
	if data == nil {
		return nil, nil
	}

	set, err := decodeSet(data)
	if err == nil && set.Subject != subject {
		err = fmt.Errorf("entry belongs to %q", set.Subject)
	}
	if err != nil {
		slog.Warn("ignoring unreadable cache entry",
			"subject", subject,
			"error", core.NewStorageCorruptionError(subject, err),
		)
		return nil, nil
	}
	if len(set.Questions) > s.maxPerSubject {
		set.Questions = set.Questions[:s.maxPerSubject]
	}
	return set, nil
}
