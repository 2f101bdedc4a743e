package tracker

import (
	"context"
	"fmt"

	"anibot/internal/storage"
)

// Broadcast is the variant without per-chat subscriptions: every known
// recipient gets every release, and dedup is per-title via a single global
// mark. A title with no mark yet is baselined silently on first sight
// instead of notifying for its whole backlog.
type Broadcast struct {
	store storage.Store
}

func NewBroadcast(store storage.Store) *Broadcast {
	return &Broadcast{store: store}
}

var _ Tracker = (*Broadcast)(nil)

func (b *Broadcast) SubscribersOf(ctx context.Context, titleID int64) ([]int64, error) {
	return b.store.Recipients(ctx)
}

func (b *Broadcast) LastNotified(ctx context.Context, chatID, titleID int64) (int, bool, error) {
	marks, err := b.store.TitleMarks(ctx)
	if err != nil {
		return 0, false, err
	}
	last, ok := marks[titleID]
	return last, ok, nil
}

func (b *Broadcast) Advance(ctx context.Context, chatID, titleID int64, episode int) error {
	if err := b.store.SetTitleMark(ctx, titleID, episode); err != nil {
		return fmt.Errorf("persist title mark: %w", err)
	}
	return nil
}

// AddRecipient registers a chat into the broadcast audience (typically on
// /start). Idempotent.
func (b *Broadcast) AddRecipient(ctx context.Context, chatID int64) error {
	return b.store.AddRecipient(ctx, chatID)
}

// Baseline records the current aired count for any title not yet marked.
// Run it once per pass before the diff so newly appearing titles don't
// flood every recipient with their backlog.
func (b *Broadcast) Baseline(ctx context.Context, titleID int64, airedNow int) error {
	marks, err := b.store.TitleMarks(ctx)
	if err != nil {
		return err
	}
	if _, ok := marks[titleID]; ok {
		return nil
	}
	return b.store.SetTitleMark(ctx, titleID, airedNow)
}
