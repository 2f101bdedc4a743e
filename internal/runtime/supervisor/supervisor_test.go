package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoPropagatesFirstError(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))

	boom := errors.New("boom")
	s.Go("failing", func(context.Context) error { return boom })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("Wait = %v, want boom", err)
	}

	select {
	case <-s.Context().Done():
	default:
		t.Fatal("context not canceled after error")
	}
}

func TestGoRecoversPanic(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	s.Go("panicking", func(context.Context) error { panic("kaboom") })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

func TestGoRestartStopsOnCleanExit(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	var runs int64
	s.GoRestart("once", func(context.Context) error {
		atomic.AddInt64(&runs, 1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait = %v", err)
	}
	if got := atomic.LoadInt64(&runs); got != 1 {
		t.Fatalf("runs = %d, want 1 (clean exit stops the loop)", got)
	}
}

func TestGoRestartRetriesOnError(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	var runs int64
	s.GoRestart("flaky", func(context.Context) error {
		if atomic.AddInt64(&runs, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait = %v", err)
	}
	if got := atomic.LoadInt64(&runs); got != 3 {
		t.Fatalf("runs = %d, want 3", got)
	}
}

func TestStopCancelsGoroutines(t *testing.T) {
	t.Parallel()
	s := New(context.Background())

	started := make(chan struct{})
	s.Go0("blocked", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop = %v", err)
	}
}
