package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"anibot/internal/catalog"
	"anibot/internal/tracker"
	kit "anibot/internal/transport"
	logx "anibot/pkg/logx"
)

type fakeAdapter struct {
	mu       sync.Mutex
	photoErr error
	textErr  error
	photos   []kit.Photo
	texts    []string
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, _ kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.textErr != nil {
		return kit.MessageRef{}, f.textErr
	}
	f.texts = append(f.texts, text)
	return kit.MessageRef{}, nil
}

func (f *fakeAdapter) SendPhoto(_ context.Context, _ kit.ChatTarget, p kit.Photo, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.photoErr != nil {
		return kit.MessageRef{}, f.photoErr
	}
	f.photos = append(f.photos, p)
	return kit.MessageRef{}, nil
}

func (f *fakeAdapter) EditMarkup(context.Context, kit.MessageRef, *kit.SendOptions) error {
	return nil
}

func (f *fakeAdapter) AnswerCallback(context.Context, string, string) error { return nil }

func (f *fakeAdapter) counts() (photos, texts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.photos), len(f.texts)
}

func testRender(ev tracker.Event) (kit.Photo, *kit.SendOptions) {
	return kit.Photo{URL: "https://example.com/x.jpg", Caption: ev.Title.Name}, nil
}

func testEvent() tracker.Event {
	return tracker.Event{ChatID: 100, Title: catalog.Title{ID: 1, Name: "t", Aired: 3}, Episode: 3}
}

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

func TestDeliverPhoto(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	s := New(Config{Workers: 1, QueueSize: 8, RatePerSec: 100}, ad, testRender, logx.Nop())
	s.Start(context.Background())
	defer s.Stop(context.Background())

	if err := s.Dispatch(context.Background(), testEvent()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	waitFor(t, func() bool { p, _ := ad.counts(); return p == 1 })
	if _, texts := ad.counts(); texts != 0 {
		t.Fatal("text fallback used although photo send succeeded")
	}
}

func TestDeliverFallsBackToText(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{photoErr: errors.New("bad image")}
	s := New(Config{Workers: 1, QueueSize: 8, RatePerSec: 100}, ad, testRender, logx.Nop())
	s.Start(context.Background())
	defer s.Stop(context.Background())

	if err := s.Dispatch(context.Background(), testEvent()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	waitFor(t, func() bool { _, texts := ad.counts(); return texts == 1 })
}

func TestDispatchAfterStop(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	s := New(Config{Workers: 1, QueueSize: 1, RatePerSec: 100}, ad, testRender, logx.Nop())
	s.Start(context.Background())
	s.Stop(context.Background())

	if err := s.Dispatch(context.Background(), testEvent()); !errors.Is(err, ErrStopped) {
		t.Fatalf("dispatch after stop = %v, want ErrStopped", err)
	}
}

func TestApplyDuringDelivery(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	s := New(Config{Workers: 2, QueueSize: 64, RatePerSec: 1000}, ad, testRender, logx.Nop())
	s.Start(context.Background())
	defer s.Stop(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			s.Apply(Config{Workers: 2, QueueSize: 64, RatePerSec: 1000 + i})
		}
	}()
	for i := 0; i < 50; i++ {
		if err := s.Dispatch(context.Background(), testEvent()); err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}
	<-done
	waitFor(t, func() bool { p, _ := ad.counts(); return p == 50 })
}

func TestConcurrentDispatchAndStop(t *testing.T) {
	t.Parallel()
	for i := 0; i < 50; i++ {
		ad := &fakeAdapter{}
		s := New(Config{Workers: 1, QueueSize: 4, RatePerSec: 1000}, ad, testRender, logx.Nop())
		s.Start(context.Background())

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				// A rejected enqueue is fine here; a send on the closed
				// queue is not.
				if err := s.Dispatch(context.Background(), testEvent()); err != nil {
					return
				}
			}
		}()
		s.Stop(context.Background())
		wg.Wait()
	}
}

func TestStopDrainsQueue(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	s := New(Config{Workers: 2, QueueSize: 16, RatePerSec: 100}, ad, testRender, logx.Nop())
	s.Start(context.Background())

	for i := 0; i < 5; i++ {
		if err := s.Dispatch(context.Background(), testEvent()); err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s.Stop(ctx)

	if p, _ := ad.counts(); p != 5 {
		t.Fatalf("delivered = %d, want all 5 drained on stop", p)
	}
}
