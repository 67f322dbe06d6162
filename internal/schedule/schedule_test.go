package schedule

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func newScheduler() *Scheduler {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func eventually(t *testing.T, timeout time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestApplyRunsEnabledJobs(t *testing.T) {
	s := newScheduler()
	defer s.Stop()

	var save, backup atomic.Int32
	s.Register("save", func(context.Context) { save.Add(1) })
	s.Register("backup", func(context.Context) { backup.Add(1) })

	s.Apply(Plan{Enabled: true, Every: map[string]time.Duration{
		"save":    10 * time.Millisecond,
		"backup":  0,
		"unknown": 10 * time.Millisecond,
	}})

	eventually(t, time.Second, func() bool { return save.Load() >= 2 }, "save never ran twice")
	if backup.Load() != 0 {
		t.Fatalf("backup with zero interval ran %d times", backup.Load())
	}
}

func TestApplyDisabledClearsTickers(t *testing.T) {
	s := newScheduler()
	defer s.Stop()

	var runs atomic.Int32
	s.Register("save", func(context.Context) { runs.Add(1) })
	s.Apply(Plan{Enabled: true, Every: map[string]time.Duration{"save": 5 * time.Millisecond}})
	eventually(t, time.Second, func() bool { return runs.Load() >= 1 }, "save never ran")

	s.Apply(Plan{Enabled: false, Every: map[string]time.Duration{"save": 5 * time.Millisecond}})
	time.Sleep(20 * time.Millisecond)
	n := runs.Load()
	time.Sleep(50 * time.Millisecond)
	if runs.Load() != n {
		t.Fatalf("disabled job kept running: %d -> %d", n, runs.Load())
	}
}

func TestStopWaitsForRunningJob(t *testing.T) {
	s := newScheduler()

	started := make(chan struct{})
	var finished atomic.Bool
	s.Register("slow", func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(50 * time.Millisecond)
		if ctx.Err() == nil {
			finished.Store(true)
		}
	})
	s.Apply(Plan{Enabled: true, Every: map[string]time.Duration{"slow": 5 * time.Millisecond}})

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("job never started")
	}
	s.Stop()
	if !finished.Load() {
		t.Fatal("Stop returned before the running job finished")
	}

	var late atomic.Int32
	s.Register("late", func(context.Context) { late.Add(1) })
	s.Apply(Plan{Enabled: true, Every: map[string]time.Duration{"late": 5 * time.Millisecond}})
	time.Sleep(30 * time.Millisecond)
	if late.Load() != 0 {
		t.Fatal("Apply after Stop armed a job")
	}
}
