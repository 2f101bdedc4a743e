package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "anibot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds())); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite busy_timeout: %w", err)
		}
	}
	// Rollback journaling still satisfies the Store contract, so a WAL
	// refusal (e.g. network filesystems) only warrants a warning.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Warn("sqlite WAL unavailable", logx.Err(err))
	}
	// Durable-on-return is part of the Store contract.
	if _, err := db.Exec("PRAGMA synchronous = FULL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite synchronous: %w", err)
	}

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Subscribe(ctx context.Context, chatID, titleID int64, lastEpisode int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions(chat_id, title_id, last_episode) VALUES(?,?,?)
		 ON CONFLICT(chat_id, title_id) DO UPDATE SET last_episode=excluded.last_episode`,
		chatID, titleID, lastEpisode,
	)
	return err
}

func (s *sqliteStore) Unsubscribe(ctx context.Context, chatID, titleID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE chat_id = ? AND title_id = ?`, chatID, titleID)
	return err
}

func (s *sqliteStore) IsSubscribed(ctx context.Context, chatID, titleID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM subscriptions WHERE chat_id = ? AND title_id = ?`, chatID, titleID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) Subscriptions(ctx context.Context, chatID int64) (map[int64]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT title_id, last_episode FROM subscriptions WHERE chat_id = ?`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64]int{}
	for rows.Next() {
		var titleID int64
		var last int
		if err := rows.Scan(&titleID, &last); err != nil {
			return nil, err
		}
		out[titleID] = last
	}
	return out, rows.Err()
}

func (s *sqliteStore) SubscribersOf(ctx context.Context, titleID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id FROM subscriptions WHERE title_id = ? ORDER BY chat_id`, titleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			return nil, err
		}
		out = append(out, chatID)
	}
	return out, rows.Err()
}

func (s *sqliteStore) LastEpisode(ctx context.Context, chatID, titleID int64) (int, bool, error) {
	var last int
	err := s.db.QueryRowContext(ctx,
		`SELECT last_episode FROM subscriptions WHERE chat_id = ? AND title_id = ?`,
		chatID, titleID).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return last, true, nil
}

func (s *sqliteStore) SetLastEpisode(ctx context.Context, chatID, titleID int64, episode int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET last_episode = ? WHERE chat_id = ? AND title_id = ?`,
		episode, chatID, titleID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) AddRecipient(ctx context.Context, chatID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recipients(chat_id) VALUES(?) ON CONFLICT(chat_id) DO NOTHING`, chatID)
	return err
}

func (s *sqliteStore) Recipients(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id FROM recipients ORDER BY chat_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			return nil, err
		}
		out = append(out, chatID)
	}
	return out, rows.Err()
}

func (s *sqliteStore) TitleMarks(ctx context.Context) (map[int64]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT title_id, last_episode FROM title_marks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64]int{}
	for rows.Next() {
		var titleID int64
		var last int
		if err := rows.Scan(&titleID, &last); err != nil {
			return nil, err
		}
		out[titleID] = last
	}
	return out, rows.Err()
}

func (s *sqliteStore) SetTitleMark(ctx context.Context, titleID int64, episode int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO title_marks(title_id, last_episode) VALUES(?,?)
		 ON CONFLICT(title_id) DO UPDATE SET last_episode=excluded.last_episode`,
		titleID, episode)
	return err
}

func (s *sqliteStore) LastFetch(ctx context.Context, chatID int64) (time.Time, bool, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_fetch_ms FROM throttle_marks WHERE chat_id = ?`, chatID).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

func (s *sqliteStore) SetLastFetch(ctx context.Context, chatID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO throttle_marks(chat_id, last_fetch_ms) VALUES(?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET last_fetch_ms=excluded.last_fetch_ms`,
		chatID, at.UnixMilli())
	return err
}
