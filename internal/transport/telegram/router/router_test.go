package router

import (
	"testing"
	"time"

	"anibot/internal/catalog"
	"anibot/internal/tracker"
)

func eventFixture() tracker.Event {
	return tracker.Event{
		ChatID: 100,
		Title: catalog.Title{
			ID:        1,
			Name:      "Name",
			LocalName: "Имя",
			Score:     7.5,
			Episodes:  12,
			Aired:     6,
			URL:       "/animes/1",
			Image:     "/img/1.jpg",
		},
		Episode: 6,
	}
}

func TestCommandFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{in: "/start", want: "start"},
		{in: "/start@anibot", want: "start"},
		{in: "/fresh", want: "fresh"},
		{in: btnFresh, want: "fresh"},
		{in: "/subscriptions", want: "subscriptions"},
		{in: btnSubscriptions, want: "subscriptions"},
		{in: "  /start  ", want: "start"},
		{in: "hello", want: "unknown"},
		{in: "", want: "unknown"},
	}
	for _, tt := range tests {
		if got := commandFor(tt.in); got != tt.want {
			t.Fatalf("commandFor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAbsURL(t *testing.T) {
	t.Parallel()
	base := "https://shikimori.one"
	tests := []struct {
		path string
		want string
	}{
		{path: "/animes/42", want: "https://shikimori.one/animes/42"},
		{path: "https://cdn.example.com/x.jpg", want: "https://cdn.example.com/x.jpg"},
		{path: "", want: ""},
	}
	for _, tt := range tests {
		if got := absURL(base, tt.path); got != tt.want {
			t.Fatalf("absURL(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestCaption(t *testing.T) {
	t.Parallel()
	got := caption(catalog.Title{
		ID:        1,
		Name:      "Name",
		LocalName: "Имя",
		Score:     7.53,
		Episodes:  12,
		Aired:     5,
		URL:       "/animes/1",
	}, "https://shikimori.one")

	want := "Имя\nRating: 7.5 ⭐\nEpisodes: 5 of 12 📺\nhttps://shikimori.one/animes/1"
	if got != want {
		t.Fatalf("caption = %q, want %q", got, want)
	}

	// Zero score and unknown total degrade gracefully.
	got = caption(catalog.Title{ID: 2, Name: "X", Aired: 1}, "https://shikimori.one")
	want = "X\nEpisodes: 1 of ? 📺"
	if got != want {
		t.Fatalf("caption = %q, want %q", got, want)
	}
}

func TestFormatCooldown(t *testing.T) {
	t.Parallel()
	tests := []struct {
		d    time.Duration
		want string
	}{
		{d: 2 * time.Hour, want: "2h"},
		{d: 90 * time.Minute, want: "1h 30m"},
		{d: 45 * time.Minute, want: "45m"},
		{d: 0, want: "a while"},
	}
	for _, tt := range tests {
		if got := formatCooldown(tt.d); got != tt.want {
			t.Fatalf("formatCooldown(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestRenderEvent(t *testing.T) {
	t.Parallel()
	render := RenderEvent("https://shikimori.one")

	photo, opt := render(eventFixture())
	if photo.URL != "https://shikimori.one/img/1.jpg" {
		t.Fatalf("photo url = %q", photo.URL)
	}
	if opt == nil || opt.ReplyMarkup == nil {
		t.Fatal("expected watch-link markup")
	}
	wantCaption := "New episode out! 🎉\n\nИмя\nEpisode 6 of 12 📺\nRating: 7.5 ⭐\nhttps://shikimori.one/animes/1"
	if photo.Caption != wantCaption {
		t.Fatalf("caption = %q, want %q", photo.Caption, wantCaption)
	}
}
