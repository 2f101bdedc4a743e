package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "anibot/pkg/logx"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStartFiresImmediatePass(t *testing.T) {
	t.Parallel()
	var passes int64
	s := New(time.Hour, func(context.Context) error {
		atomic.AddInt64(&passes, 1)
		return nil
	}, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	waitFor(t, func() bool { return atomic.LoadInt64(&passes) >= 1 })
}

func TestOverlappingPassIsSkipped(t *testing.T) {
	t.Parallel()
	var passes int64
	block := make(chan struct{})
	s := New(time.Hour, func(context.Context) error {
		atomic.AddInt64(&passes, 1)
		<-block
		return nil
	}, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	waitFor(t, func() bool { return atomic.LoadInt64(&passes) == 1 })

	// A tick while the first pass is still running must not start a second.
	s.runPass()
	if got := atomic.LoadInt64(&passes); got != 1 {
		t.Fatalf("passes = %d, want 1 while first still running", got)
	}

	close(block)
	s.Stop(context.Background())
}

func TestStopWaitsForImmediatePass(t *testing.T) {
	t.Parallel()
	entered := make(chan struct{})
	release := make(chan struct{})
	var finished int64
	s := New(time.Hour, func(context.Context) error {
		close(entered)
		<-release
		atomic.AddInt64(&finished, 1)
		return nil
	}, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	<-entered

	stopDone := make(chan struct{})
	go func() {
		s.Stop(context.Background())
		close(stopDone)
	}()

	select {
	case <-stopDone:
		t.Fatal("Stop returned while the first pass was still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopDone:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return after the pass finished")
	}
	if atomic.LoadInt64(&finished) != 1 {
		t.Fatal("pass did not complete before Stop returned")
	}
}

func TestSetInterval(t *testing.T) {
	t.Parallel()
	s := New(time.Hour, func(context.Context) error { return nil }, logx.Nop())

	s.SetInterval(30 * time.Minute)
	if got := s.Interval(); got != 30*time.Minute {
		t.Fatalf("interval = %v, want 30m", got)
	}
	// Zero and negative values are ignored.
	s.SetInterval(0)
	s.SetInterval(-time.Minute)
	if got := s.Interval(); got != 30*time.Minute {
		t.Fatalf("interval = %v, want unchanged 30m", got)
	}
}

func TestPassFailureDoesNotStopLoop(t *testing.T) {
	t.Parallel()
	var passes int64
	s := New(time.Hour, func(context.Context) error {
		atomic.AddInt64(&passes, 1)
		return context.DeadlineExceeded
	}, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	waitFor(t, func() bool { return atomic.LoadInt64(&passes) >= 1 })
	// A failed pass leaves the service runnable; the next manual tick works.
	waitFor(t, func() bool {
		s.runPass()
		return atomic.LoadInt64(&passes) >= 2
	})
}
