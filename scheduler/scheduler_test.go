package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/simwatch/dbopen"
	"github.com/hazyhaar/simwatch/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	return store.NewStore(dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema)))
}

func TestRun_ImmediateFirstCycleThenTicks(t *testing.T) {
	// WHAT: The first cycle fires on start, later ones on the interval.
	var runs atomic.Int32
	s := New(func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, testStore(t), Config{Interval: 20 * time.Millisecond}, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	got := runs.Load()
	if got < 2 {
		t.Fatalf("ran %d cycles, want at least 2", got)
	}
}

func TestRun_CycleErrorDoesNotStopSchedule(t *testing.T) {
	// WHAT: A failing cycle is logged and the next one still runs.
	var runs atomic.Int32
	s := New(func(ctx context.Context) error {
		runs.Add(1)
		return context.DeadlineExceeded
	}, testStore(t), Config{Interval: 15 * time.Millisecond}, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if runs.Load() < 2 {
		t.Fatalf("ran %d cycles, want at least 2", runs.Load())
	}
}

func TestRun_StaleAlertFires(t *testing.T) {
	// WHAT: A cycle record older than the dead-man window triggers the
	// stale alert callback on the next tick.
	st := testStore(t)
	ctx := context.Background()

	old := time.Now().Add(-2 * time.Hour)
	if _, err := st.LogCycle(ctx, &store.CycleRecord{
		StartedAt:  old.Add(-time.Minute),
		FinishedAt: old,
	}); err != nil {
		t.Fatalf("log cycle: %v", err)
	}

	var alerts atomic.Int32
	s := New(func(ctx context.Context) error { return nil }, st,
		Config{Interval: 15 * time.Millisecond, DeadManAfter: time.Hour},
		slog.New(slog.DiscardHandler),
		WithStaleAlert(func(ctx context.Context, age time.Duration) {
			alerts.Add(1)
			if age < time.Hour {
				t.Errorf("age = %v, want over an hour", age)
			}
		}))

	runCtx, cancel := context.WithTimeout(ctx, 60*time.Millisecond)
	defer cancel()
	s.Run(runCtx)

	if alerts.Load() == 0 {
		t.Fatal("stale alert never fired")
	}
}

func TestNextWait_JitterBounds(t *testing.T) {
	// WHAT: The jittered wait stays within [interval, interval*(1+jitter)).
	s := New(nil, testStore(t), Config{Interval: time.Hour, Jitter: 0.25}, slog.New(slog.DiscardHandler))
	for i := 0; i < 100; i++ {
		w := s.nextWait()
		if w < time.Hour || w >= time.Hour+15*time.Minute {
			t.Fatalf("wait %v out of bounds", w)
		}
	}
}

func TestStale(t *testing.T) {
	// WHAT: Stale flips once the last finished cycle ages past the window.
	// WHY: The watcher's whole value is recency; a silently wedged loop
	// must show up on the health endpoint.
	st := testStore(t)
	ctx := context.Background()

	finished := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := st.LogCycle(ctx, &store.CycleRecord{
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
	}); err != nil {
		t.Fatalf("log cycle: %v", err)
	}

	s := New(nil, st, Config{Interval: time.Hour}, slog.New(slog.DiscardHandler))

	s.now = func() time.Time { return finished.Add(2 * time.Hour) }
	stale, err := s.Stale(ctx)
	if err != nil {
		t.Fatalf("stale: %v", err)
	}
	if stale {
		t.Error("2h old cycle inside a 3h window should not be stale")
	}

	s.now = func() time.Time { return finished.Add(4 * time.Hour) }
	stale, err = s.Stale(ctx)
	if err != nil {
		t.Fatalf("stale: %v", err)
	}
	if !stale {
		t.Error("4h old cycle outside a 3h window should be stale")
	}
}

func TestStale_NoCyclesYet(t *testing.T) {
	// WHAT: An empty cycle log is not stale; the first cycle may still be
	// in flight.
	s := New(nil, testStore(t), Config{}, slog.New(slog.DiscardHandler))
	stale, err := s.Stale(context.Background())
	if err != nil || stale {
		t.Fatalf("stale = %v, err = %v", stale, err)
	}
}
