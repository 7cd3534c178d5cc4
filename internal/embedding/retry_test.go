package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"emergency-rag/internal/models"
)

func TestWithRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, func(ctx context.Context) error {
		calls++
		return nil
	}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
}

func TestWithRetry_RecoversFromTransientFailure(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 2, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("connection refused")
		}
		return nil
	}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestWithRetry_ExhaustionWrapsUnavailable(t *testing.T) {
	err := withRetry(context.Background(), 0, func(ctx context.Context) error {
		return errors.New("boom")
	}, time.Second)
	if !errors.Is(err, models.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if !IsUnavailable(err) {
		t.Error("IsUnavailable should report the exhaustion condition")
	}
}

func TestWithRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, 3, func(ctx context.Context) error {
		return errors.New("would retry")
	}, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWithRetry_AttemptTimeout(t *testing.T) {
	err := withRetry(context.Background(), 0, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 10*time.Millisecond)
	if !errors.Is(err, models.ErrEmbeddingUnavailable) {
		t.Fatalf("per-attempt timeout should count as a failed attempt, got %v", err)
	}
}
