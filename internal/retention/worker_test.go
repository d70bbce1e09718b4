package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeDeleter struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
	err     error
	calls   chan struct{}
}

func (f *fakeDeleter) DeleteMessagesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	f.cutoffs = append(f.cutoffs, cutoff)
	f.mu.Unlock()
	if f.calls != nil {
		select {
		case f.calls <- struct{}{}:
		default:
		}
	}
	return f.deleted, f.err
}

func TestSweepUsesRetentionCutoff(t *testing.T) {
	d := &fakeDeleter{deleted: 4}
	w := NewWorker(d, 24*time.Hour, time.Hour)
	now := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if got := w.Sweep(context.Background()); got != 4 {
		t.Fatalf("Sweep() = %d, want 4", got)
	}
	if want := now.Add(-24 * time.Hour); !d.cutoffs[0].Equal(want) {
		t.Fatalf("cutoff = %v, want %v", d.cutoffs[0], want)
	}
}

func TestSweepSwallowsErrors(t *testing.T) {
	w := NewWorker(&fakeDeleter{err: errors.New("database is locked")}, time.Hour, time.Hour)
	if got := w.Sweep(context.Background()); got != 0 {
		t.Fatalf("Sweep() = %d, want 0", got)
	}
}

func TestRunSweepsUntilCanceled(t *testing.T) {
	d := &fakeDeleter{calls: make(chan struct{}, 8)}
	w := NewWorker(d, time.Hour, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-d.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for sweep %d", i+1)
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunDisabled(t *testing.T) {
	d := &fakeDeleter{}
	if err := NewWorker(d, 0, time.Hour).Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if len(d.cutoffs) != 0 {
		t.Fatal("disabled worker must not sweep")
	}
}
