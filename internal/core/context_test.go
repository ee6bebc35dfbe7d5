package core

import (
	"context"
	"testing"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("GetRequestID(empty) = %q, want empty", got)
	}

	ctx = WithRequestID(ctx, "abc-123")
	if got := GetRequestID(ctx); got != "abc-123" {
		t.Errorf("GetRequestID = %q, want abc-123", got)
	}
}
