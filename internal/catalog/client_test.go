package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "anibot/pkg/logx"
)

func TestClientFetchParsesAndSorts(t *testing.T) {
	t.Parallel()

	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"season": r.URL.Query().Get("season"),
			"kind":   r.URL.Query().Get("kind"),
			"limit":  r.URL.Query().Get("limit"),
		}
		w.Header().Set("Content-Type", "application/json")
		// Score arrives either as a number or a string.
		_, _ = w.Write([]byte(`[
			{"id": 1, "name": "low", "russian": "низкий", "score": "6.5", "episodes": 12, "episodes_aired": 3, "status": "ongoing", "image": {"original": "/img/1.jpg"}, "url": "/animes/1"},
			{"id": 2, "name": "high", "score": 8.9, "episodes": 0, "episodes_aired": 5, "status": "ongoing", "image": {"original": "/img/2.jpg"}, "url": "/animes/2"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Limit: 50}, logx.Nop())
	now := time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC)

	titles, err := c.Fetch(context.Background(), now)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if gotQuery["season"] != "summer_2026" || gotQuery["kind"] != "tv" || gotQuery["limit"] != "50" {
		t.Fatalf("unexpected query: %v", gotQuery)
	}
	if len(titles) != 2 {
		t.Fatalf("titles = %d, want 2", len(titles))
	}
	// Sorted score-descending.
	if titles[0].ID != 2 || titles[1].ID != 1 {
		t.Fatalf("sort order: %d, %d; want 2, 1", titles[0].ID, titles[1].ID)
	}
	if titles[1].Score != 6.5 {
		t.Fatalf("string score = %v, want 6.5", titles[1].Score)
	}
	if titles[1].DisplayName() != "низкий" {
		t.Fatalf("display name = %q, want localized", titles[1].DisplayName())
	}
	if titles[0].EpisodesTotal() != "?" {
		t.Fatalf("unknown total = %q, want ?", titles[0].EpisodesTotal())
	}
	if titles[0].Image != "/img/2.jpg" || titles[0].URL != "/animes/2" {
		t.Fatalf("paths not mapped: %+v", titles[0])
	}
}

func TestClientFetchWrapsFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, logx.Nop())
	_, err := c.Fetch(context.Background(), time.Now())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestClientFetchRejectsMalformedPayload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not": "a list"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, logx.Nop())
	_, err := c.Fetch(context.Background(), time.Now())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestAirable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		title Title
		want  bool
	}{
		{name: "ongoing with aired", title: Title{Aired: 3, Status: "ongoing"}, want: true},
		{name: "announced", title: Title{Aired: 3, Status: StatusAnnounced}, want: false},
		{name: "nothing aired", title: Title{Aired: 0, Status: "ongoing"}, want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.title.Airable(); got != tt.want {
				t.Fatalf("Airable() = %v, want %v", got, tt.want)
			}
		})
	}
}
