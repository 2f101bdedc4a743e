package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "file": dependency-free file backend (atomic JSON snapshot)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the tracker, throttle, and router.
//
// All mutating operations persist durably before returning.
type Store interface {
	// Per-chat title subscriptions. Subscribe overwrites an existing record
	// (idempotent); Unsubscribe is a no-op when absent.
	Subscribe(ctx context.Context, chatID, titleID int64, lastEpisode int) error
	Unsubscribe(ctx context.Context, chatID, titleID int64) error
	IsSubscribed(ctx context.Context, chatID, titleID int64) (bool, error)
	// Subscriptions returns titleID -> last-notified episode for one chat.
	Subscriptions(ctx context.Context, chatID int64) (map[int64]int, error)
	// SubscribersOf returns the chats subscribed to a title, in stable order.
	SubscribersOf(ctx context.Context, titleID int64) ([]int64, error)
	// LastEpisode returns one record's last-notified episode.
	LastEpisode(ctx context.Context, chatID, titleID int64) (int, bool, error)
	// SetLastEpisode updates one record's last-notified episode.
	// It reports whether a record existed.
	SetLastEpisode(ctx context.Context, chatID, titleID int64, episode int) (bool, error)

	// Known recipients and global per-title marks (broadcast mode).
	AddRecipient(ctx context.Context, chatID int64) error
	Recipients(ctx context.Context) ([]int64, error)
	TitleMarks(ctx context.Context) (map[int64]int, error)
	SetTitleMark(ctx context.Context, titleID int64, episode int) error

	// Per-chat on-demand fetch throttle marks.
	LastFetch(ctx context.Context, chatID int64) (time.Time, bool, error)
	SetLastFetch(ctx context.Context, chatID int64, at time.Time) error

	Close() error
}
