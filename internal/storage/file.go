package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	logx "anibot/pkg/logx"
)

// fileStore is a dependency-free persistence backend: a single JSON document
// rewritten atomically (tmp + fsync + rename) on every mutation.
//
// JSON object keys must be strings, so int64 IDs are stored in decimal form.
type fileStore struct {
	log  logx.Logger
	path string

	mu    sync.Mutex
	state fileState
}

type fileState struct {
	Subscriptions map[string]map[string]int `json:"subscriptions"`
	Recipients    []int64                   `json:"recipients"`
	TitleMarks    map[string]int            `json:"title_marks"`
	ThrottleMS    map[string]int64          `json:"throttle_ms"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{log: log, path: cfg.Path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileStore) load() error {
	s.state = fileState{
		Subscriptions: map[string]map[string]int{},
		TitleMarks:    map[string]int{},
		ThrottleMS:    map[string]int64{},
	}

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	// Zero-length state means empty state, never a parse error.
	if len(b) == 0 {
		return nil
	}

	var st fileState
	if err := json.Unmarshal(b, &st); err != nil {
		return err
	}
	if st.Subscriptions == nil {
		st.Subscriptions = map[string]map[string]int{}
	}
	if st.TitleMarks == nil {
		st.TitleMarks = map[string]int{}
	}
	if st.ThrottleMS == nil {
		st.ThrottleMS = map[string]int64{}
	}
	s.state = st
	return nil
}

// saveLocked rewrites the snapshot. Callers hold s.mu; the mutation is only
// considered successful once the rename lands.
func (s *fileStore) saveLocked() error {
	b, err := json.MarshalIndent(&s.state, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) Close() error { return nil }

func key(id int64) string { return strconv.FormatInt(id, 10) }

func parseKey(k string) (int64, bool) {
	v, err := strconv.ParseInt(k, 10, 64)
	return v, err == nil
}

func (s *fileStore) Subscribe(ctx context.Context, chatID, titleID int64, lastEpisode int) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.state.Subscriptions[key(chatID)]
	if m == nil {
		m = map[string]int{}
		s.state.Subscriptions[key(chatID)] = m
	}
	m[key(titleID)] = lastEpisode
	return s.saveLocked()
}

func (s *fileStore) Unsubscribe(ctx context.Context, chatID, titleID int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.state.Subscriptions[key(chatID)]
	if m == nil {
		return nil
	}
	if _, ok := m[key(titleID)]; !ok {
		return nil
	}
	delete(m, key(titleID))
	if len(m) == 0 {
		delete(s.state.Subscriptions, key(chatID))
	}
	return s.saveLocked()
}

func (s *fileStore) IsSubscribed(ctx context.Context, chatID, titleID int64) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.state.Subscriptions[key(chatID)]
	if m == nil {
		return false, nil
	}
	_, ok := m[key(titleID)]
	return ok, nil
}

func (s *fileStore) Subscriptions(ctx context.Context, chatID int64) (map[int64]int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[int64]int{}
	for tk, last := range s.state.Subscriptions[key(chatID)] {
		if id, ok := parseKey(tk); ok {
			out[id] = last
		}
	}
	return out, nil
}

func (s *fileStore) SubscribersOf(ctx context.Context, titleID int64) ([]int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for ck, titles := range s.state.Subscriptions {
		chatID, ok := parseKey(ck)
		if !ok {
			continue
		}
		if _, ok := titles[key(titleID)]; ok {
			out = append(out, chatID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *fileStore) LastEpisode(ctx context.Context, chatID, titleID int64) (int, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.state.Subscriptions[key(chatID)]
	if m == nil {
		return 0, false, nil
	}
	last, ok := m[key(titleID)]
	return last, ok, nil
}

func (s *fileStore) SetLastEpisode(ctx context.Context, chatID, titleID int64, episode int) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.state.Subscriptions[key(chatID)]
	if m == nil {
		return false, nil
	}
	if _, ok := m[key(titleID)]; !ok {
		return false, nil
	}
	m[key(titleID)] = episode
	if err := s.saveLocked(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *fileStore) AddRecipient(ctx context.Context, chatID int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.state.Recipients {
		if id == chatID {
			return nil
		}
	}
	s.state.Recipients = append(s.state.Recipients, chatID)
	return s.saveLocked()
}

func (s *fileStore) Recipients(ctx context.Context) ([]int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.state.Recipients...), nil
}

func (s *fileStore) TitleMarks(ctx context.Context) (map[int64]int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[int64]int{}
	for tk, last := range s.state.TitleMarks {
		if id, ok := parseKey(tk); ok {
			out[id] = last
		}
	}
	return out, nil
}

func (s *fileStore) SetTitleMark(ctx context.Context, titleID int64, episode int) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.TitleMarks[key(titleID)] = episode
	return s.saveLocked()
}

func (s *fileStore) LastFetch(ctx context.Context, chatID int64) (time.Time, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.state.ThrottleMS[key(chatID)]
	if !ok {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

func (s *fileStore) SetLastFetch(ctx context.Context, chatID int64, at time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ThrottleMS[key(chatID)] = at.UnixMilli()
	return s.saveLocked()
}
