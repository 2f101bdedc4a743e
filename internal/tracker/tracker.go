// Package tracker holds the release diff engine and the dedup state behind
// it. The engine is parameterized over a small Tracker interface so the
// per-chat subscription variant and the broadcast variant share one
// algorithm.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anibot/internal/catalog"
	logx "anibot/pkg/logx"
)

// ErrNotSubscribed is returned by Advance when no record exists for the
// (chat, title) pair. The engine only advances after observing the record,
// so seeing this in logs indicates a logic bug, not an operational fault.
var ErrNotSubscribed = errors.New("not subscribed")

// Event is one detected episode-count increase: the unit of notification.
type Event struct {
	ChatID  int64
	Title   catalog.Title
	Episode int // the new aired count
	At      time.Time
}

// Tracker is the dedup-state port the engine reads and advances.
//
// Advance persists durably before returning; after it returns, the episode
// is accounted for regardless of delivery outcome.
type Tracker interface {
	SubscribersOf(ctx context.Context, titleID int64) ([]int64, error)
	LastNotified(ctx context.Context, chatID, titleID int64) (int, bool, error)
	Advance(ctx context.Context, chatID, titleID int64, episode int) error
}

// EmitFunc queues one event for delivery. A non-nil error means the event
// was NOT queued; the engine then skips the advance so the next pass
// re-detects the same increase (at-least-once).
type EmitFunc func(ctx context.Context, ev Event) error

// Engine is the release diff engine.
type Engine struct {
	tr  Tracker
	log logx.Logger
}

func NewEngine(tr Tracker, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{tr: tr, log: log}
}

// Run performs one diff pass over the given title list (already in send
// order, score descending) and emits one event per strict aired-count
// increase per subscriber.
//
// Ordering per entry is emit, then advance-and-persist, then next: a crash
// mid-pass re-detects and re-emits only the entries that were never
// advanced. A decrease or equality in the aired count is a no-op. Titles
// absent from the list are simply not diffed this pass.
func (e *Engine) Run(ctx context.Context, titles []catalog.Title, emit EmitFunc) (int, error) {
	emitted := 0
	var firstErr error

	for _, t := range titles {
		if !t.Airable() {
			continue
		}

		subs, err := e.tr.SubscribersOf(ctx, t.ID)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("subscribers of %d: %w", t.ID, err)
			}
			continue
		}
		if len(subs) == 0 {
			continue
		}

		// Read every last-notified mark for this title before advancing any
		// of them: the broadcast variant shares one mark across recipients,
		// and advancing mid-read would hide the increase from the rest.
		due := subs[:0:0]
		for _, chatID := range subs {
			last, ok, err := e.tr.LastNotified(ctx, chatID, t.ID)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("last notified (%d, %d): %w", chatID, t.ID, err)
				}
				continue
			}
			if !ok || t.Aired <= last {
				continue
			}
			due = append(due, chatID)
		}

		for _, chatID := range due {
			ev := Event{ChatID: chatID, Title: t, Episode: t.Aired, At: time.Now()}
			if err := emit(ctx, ev); err != nil {
				// Not queued; leave the mark alone so the next pass retries.
				e.log.Warn("event not queued; will retry next pass",
					logx.Int64("chat_id", chatID),
					logx.Int64("title_id", t.ID),
					logx.Err(err))
				continue
			}
			if err := e.tr.Advance(ctx, chatID, t.ID, t.Aired); err != nil {
				// Persistence failures must surface: an unadvanced mark means
				// a duplicate notification on the next pass.
				e.log.Error("advance failed after emit",
					logx.Int64("chat_id", chatID),
					logx.Int64("title_id", t.ID),
					logx.Int("episode", t.Aired),
					logx.Err(err))
				if firstErr == nil {
					firstErr = fmt.Errorf("advance (%d, %d): %w", chatID, t.ID, err)
				}
				continue
			}
			emitted++
		}
	}

	return emitted, firstErr
}
