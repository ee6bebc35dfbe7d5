package core

import "context"

// QuestionSource is the remote source of questions.
type QuestionSource interface {
	// Fetch returns the current question batch for a subject.
	// Implementations should honor ctx for cancellation and timeouts.
	Fetch(ctx context.Context, subject Subject) ([]Question, error)
}
