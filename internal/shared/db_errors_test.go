package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsConflictError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "busy", err: errors.New("exec: SQLITE_BUSY (5)"), want: true},
		{name: "locked", err: errors.New("database is locked"), want: true},
		{name: "pg deadlock", err: &pgconn.PgError{Code: "40P01"}, want: true},
		{name: "pg unique", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "other", err: errors.New("no such table"), want: false},
	}
	for _, tt := range tests {
		if got := IsConflictError(tt.err); got != tt.want {
			t.Errorf("%s: IsConflictError = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRetryOnConflictRetriesBusyErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	err := RetryOnConflict(context.Background(), policy, "test", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryOnConflictStopsOnOtherErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	boom := errors.New("constraint failed")
	err := RetryOnConflict(context.Background(), DefaultRetryPolicy, "test", func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}
