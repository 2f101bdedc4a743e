// Package notifier is the delivery boundary: an async pipeline (queue +
// workers + rate limit) that turns diff events into outbound chat messages.
//
// Delivery is best-effort by contract: a per-event failure is logged and the
// event dropped, never rolled back into the tracker's dedup state.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	rtsup "anibot/internal/runtime/supervisor"
	"anibot/internal/tracker"
	kit "anibot/internal/transport"
	logx "anibot/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

type Config struct {
	Workers    int
	QueueSize  int
	RatePerSec int
}

// RenderFunc turns a diff event into the rich payload to deliver.
type RenderFunc func(ev tracker.Event) (kit.Photo, *kit.SendOptions)

type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter kit.Adapter
	render  RenderFunc

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	queue     chan tracker.Event
	sendWG    sync.WaitGroup
	sup       *rtsup.Supervisor
}

func New(cfg Config, adapter kit.Adapter, render RenderFunc, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{adapter: adapter, render: render, log: log}
	s.applyLocked(cfg)
	return s
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 512
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

// Start is idempotent.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil {
		return
	}

	s.queue = make(chan tracker.Event, s.cfg.QueueSize)
	s.accepting = true
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log),
		// Delivery failures should never take the app down.
		rtsup.WithCancelOnError(false),
	)

	q := s.queue
	for i := 0; i < s.cfg.Workers; i++ {
		name := fmt.Sprintf("worker.%d", i)
		s.sup.Go0(name, func(c context.Context) {
			s.workerLoop(c, q)
		})
	}
}

// Stop stops intake and drains the queue best-effort until ctx deadline.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q := s.queue
	sup := s.sup
	s.queue = nil
	s.sup = nil
	s.accepting = false
	s.mu.Unlock()

	if q == nil {
		return
	}
	// In-flight enqueues must finish before the queue closes.
	s.sendWG.Wait()
	close(q)
	if sup != nil {
		_ = sup.Wait(ctx)
		sup.Cancel()
	}
}

// Dispatch queues one event for delivery. A non-nil error means the event
// was not queued; the diff engine relies on that to retry next pass.
func (s *Service) Dispatch(ctx context.Context, ev tracker.Event) error {
	s.mu.Lock()
	if s.queue == nil || !s.accepting {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	// Registered under the mutex so Stop can't close q mid-send.
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	select {
	case q <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (s *Service) workerLoop(ctx context.Context, q <-chan tracker.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-q:
			if !ok {
				return
			}
			s.deliver(ctx, ev)
		}
	}
}

// deliver attempts rich delivery, then degraded text-only delivery, then
// logs and drops. The two-tier fallback is designed behavior: a broken
// artwork reference must not suppress the release notice itself.
func (s *Service) deliver(ctx context.Context, ev tracker.Event) {
	// Limiter snapshot for this send; Apply may swap it concurrently.
	s.mu.Lock()
	lim := s.limiter
	s.mu.Unlock()

	if err := lim.Wait(ctx); err != nil {
		return
	}

	photo, opt := s.render(ev)
	to := kit.ChatTarget{ChatID: ev.ChatID}

	_, err := s.adapter.SendPhoto(ctx, to, photo, opt)
	if err == nil {
		s.log.Debug("notification delivered",
			logx.Int64("chat_id", ev.ChatID),
			logx.Int64("title_id", ev.Title.ID),
			logx.Int("episode", ev.Episode))
		return
	}
	s.log.Warn("photo delivery failed; retrying as text",
		logx.Int64("chat_id", ev.ChatID),
		logx.Int64("title_id", ev.Title.ID),
		logx.Err(err))

	if _, err := s.adapter.SendText(ctx, to, photo.Caption, opt); err != nil {
		s.log.Warn("notification dropped",
			logx.Int64("chat_id", ev.ChatID),
			logx.Int64("title_id", ev.Title.ID),
			logx.Int("episode", ev.Episode),
			logx.Err(err))
	}
}
