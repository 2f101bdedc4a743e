// Package poller drives the scheduled release check: a cron-backed interval
// loop that runs one diff pass per tick and never lets a failed pass cancel
// future ticks.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "anibot/pkg/logx"
)

// PassFunc executes one full poll pass: fetch titles, diff, emit.
type PassFunc func(ctx context.Context) error

const defaultInterval = 5 * time.Minute

type Service struct {
	mu sync.Mutex

	c        *cron.Cron
	entry    cron.EntryID
	interval time.Duration

	pass PassFunc
	log  logx.Logger

	baseCtx context.Context
	running int32 // 1 while a pass is in flight
	// kickoff tracks the immediate first pass, which runs outside cron and
	// therefore outside cron's stop accounting.
	kickoff sync.WaitGroup
}

func New(interval time.Duration, pass PassFunc, log logx.Logger) *Service {
	if interval <= 0 {
		interval = defaultInterval
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{interval: interval, pass: pass, log: log}
}

// Start begins ticking and fires one immediate pass so a fresh process
// doesn't wait a full interval before its first check.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}

	s.baseCtx = ctx
	s.c = cron.New(cron.WithLocation(time.Local))
	s.entry = s.c.Schedule(cron.Every(s.interval), cron.FuncJob(s.runPass))
	s.c.Start()
	s.log.Info("poll loop started", logx.Duration("interval", s.interval))

	s.kickoff.Add(1)
	go func() {
		defer s.kickoff.Done()
		s.runPass()
	}()
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		s.kickoff.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("poll loop stop timed out")
	}
}

// SetInterval reschedules the tick (config hot-reload). In-flight passes are
// unaffected.
func (s *Service) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d == s.interval {
		return
	}
	s.interval = d
	if s.c == nil {
		return
	}
	s.c.Remove(s.entry)
	s.entry = s.c.Schedule(cron.Every(d), cron.FuncJob(s.runPass))
	s.log.Info("poll interval updated", logx.Duration("interval", d))
}

func (s *Service) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// runPass executes one pass, skipping the tick entirely if the previous pass
// is still running.
func (s *Service) runPass() {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		s.log.Warn("poll pass skipped, previous still running")
		return
	}
	defer atomic.StoreInt32(&s.running, 0)

	s.mu.Lock()
	base := s.baseCtx
	timeout := s.interval
	s.mu.Unlock()
	if base == nil || base.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(base, timeout)
	defer cancel()

	start := time.Now()
	if err := s.pass(ctx); err != nil {
		// Pass failures are logged and absorbed; the next tick retries.
		s.log.Warn("poll pass failed", logx.Duration("dur", time.Since(start)), logx.Err(err))
		return
	}
	s.log.Debug("poll pass done", logx.Duration("dur", time.Since(start)))
}
