package tracker

import (
	"context"
	"fmt"

	"anibot/internal/storage"
)

// Subscriptions is the per-chat variant: each (chat, title) pair owns its
// own last-notified mark. All state lives in the store; this type only
// enforces the mutation contract.
type Subscriptions struct {
	store storage.Store
}

func NewSubscriptions(store storage.Store) *Subscriptions {
	return &Subscriptions{store: store}
}

var _ Tracker = (*Subscriptions)(nil)

func (s *Subscriptions) SubscribersOf(ctx context.Context, titleID int64) ([]int64, error) {
	return s.store.SubscribersOf(ctx, titleID)
}

func (s *Subscriptions) LastNotified(ctx context.Context, chatID, titleID int64) (int, bool, error) {
	return s.store.LastEpisode(ctx, chatID, titleID)
}

func (s *Subscriptions) Advance(ctx context.Context, chatID, titleID int64, episode int) error {
	ok, err := s.store.SetLastEpisode(ctx, chatID, titleID, episode)
	if err != nil {
		return fmt.Errorf("persist advance: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: chat %d title %d", ErrNotSubscribed, chatID, titleID)
	}
	return nil
}

// Subscribe creates or overwrites the record, baselined to the title's
// current aired count so a new subscriber is not flooded with
// back-notifications. Idempotent.
func (s *Subscriptions) Subscribe(ctx context.Context, chatID, titleID int64, airedNow int) error {
	return s.store.Subscribe(ctx, chatID, titleID, airedNow)
}

// Unsubscribe removes the record and forgets its mark; re-subscribing later
// re-baselines to the then-current aired count. No-op when absent.
func (s *Subscriptions) Unsubscribe(ctx context.Context, chatID, titleID int64) error {
	return s.store.Unsubscribe(ctx, chatID, titleID)
}

func (s *Subscriptions) IsSubscribed(ctx context.Context, chatID, titleID int64) (bool, error) {
	return s.store.IsSubscribed(ctx, chatID, titleID)
}

// List returns titleID -> last-notified episode for one chat.
func (s *Subscriptions) List(ctx context.Context, chatID int64) (map[int64]int, error) {
	return s.store.Subscriptions(ctx, chatID)
}
