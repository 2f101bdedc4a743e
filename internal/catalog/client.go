package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	logx "anibot/pkg/logx"
)

const (
	defaultBaseURL = "https://shikimori.one"
	defaultLimit   = 99
	defaultTimeout = 15 * time.Second
	userAgent      = "anibot/1.0"
)

type ClientConfig struct {
	BaseURL string
	Limit   int
	Timeout time.Duration
}

// Client fetches the season title list. It is stateless; memoization lives
// in Cache.
type Client struct {
	base  string
	limit int
	http  *http.Client
	log   logx.Logger
}

func NewClient(cfg ClientConfig, log logx.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		base:  base,
		limit: limit,
		http:  &http.Client{Timeout: timeout},
		log:   log,
	}
}

func (c *Client) BaseURL() string { return c.base }

// Fetch returns the current season's TV titles, sorted score-descending.
// All failure modes come back as ErrUpstreamUnavailable.
func (c *Client) Fetch(ctx context.Context, now time.Time) ([]Title, error) {
	q := url.Values{}
	q.Set("season", SeasonKey(now))
	q.Set("kind", "tv")
	q.Set("limit", strconv.Itoa(c.limit))
	u := c.base + "/api/animes?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: http %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var payload []titlePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUpstreamUnavailable, err)
	}

	titles := make([]Title, 0, len(payload))
	for _, p := range payload {
		titles = append(titles, p.title())
	}
	sort.SliceStable(titles, func(i, j int) bool {
		return titles[i].Score > titles[j].Score
	})

	c.log.Debug("season fetched",
		logx.String("season", SeasonKey(now)),
		logx.Int("titles", len(titles)))
	return titles, nil
}
