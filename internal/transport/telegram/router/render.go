package router

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"anibot/internal/catalog"
	"anibot/internal/tracker"
	kit "anibot/internal/transport"
	"anibot/pkg/tgui"
)

const (
	callbackComponent = "sub"
	actionSubscribe   = "on"
	actionUnsubscribe = "off"
)

// absURL resolves a catalog-relative path against the catalog base URL.
// Upstream paths start with "/"; absolute URLs pass through unchanged.
func absURL(base, path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(base, "/") + path
}

// caption renders one title card as plain text.
func caption(t catalog.Title, base string) string {
	var b strings.Builder
	b.WriteString(t.DisplayName())
	b.WriteByte('\n')
	if t.Score > 0 {
		fmt.Fprintf(&b, "Rating: %.1f ⭐\n", t.Score)
	}
	fmt.Fprintf(&b, "Episodes: %d of %s 📺", t.Aired, t.EpisodesTotal())
	if u := absURL(base, t.URL); u != "" {
		b.WriteByte('\n')
		b.WriteString(u)
	}
	return tgui.TruncRunes(b.String(), tgui.MaxCaptionLen)
}

func subscribeBtn(titleID int64, subscribed bool) tele.Btn {
	if subscribed {
		return tgui.Btn("🔕 Unsubscribe", tgui.Data(callbackComponent, actionUnsubscribe, fmt.Sprintf("%d", titleID)))
	}
	return tgui.Btn("🔔 Subscribe", tgui.Data(callbackComponent, actionSubscribe, fmt.Sprintf("%d", titleID)))
}

// cardMarkup builds the inline keyboard for a title card. withToggle is false
// in broadcast mode, where per-title subscriptions don't exist.
func cardMarkup(t catalog.Title, base string, withToggle, subscribed bool) *tele.ReplyMarkup {
	kb := tgui.NewInline()
	if withToggle {
		kb.Row(subscribeBtn(t.ID, subscribed))
	}
	if u := absURL(base, t.URL); u != "" {
		kb.Row(tgui.URLBtn("Details", u))
	}
	return kb.Markup()
}

// mainKeyboard is the persistent reply keyboard offered on /start.
func mainKeyboard() *tele.ReplyMarkup {
	return tgui.Reply(
		[]string{btnFresh},
		[]string{btnSubscriptions},
	)
}

// RenderEvent builds the delivery renderer for release notifications. The
// returned func is handed to the notification dispatcher.
func RenderEvent(base string) func(ev tracker.Event) (kit.Photo, *kit.SendOptions) {
	return func(ev tracker.Event) (kit.Photo, *kit.SendOptions) {
		t := ev.Title
		var b strings.Builder
		fmt.Fprintf(&b, "New episode out! 🎉\n\n%s\nEpisode %d of %s 📺", t.DisplayName(), ev.Episode, t.EpisodesTotal())
		if t.Score > 0 {
			fmt.Fprintf(&b, "\nRating: %.1f ⭐", t.Score)
		}
		if u := absURL(base, t.URL); u != "" {
			b.WriteByte('\n')
			b.WriteString(u)
		}

		photo := kit.Photo{
			URL:     absURL(base, t.Image),
			Caption: tgui.TruncRunes(b.String(), tgui.MaxCaptionLen),
		}
		opt := &kit.SendOptions{DisablePreview: true}
		if u := absURL(base, t.URL); u != "" {
			opt.ReplyMarkup = tgui.NewInline().Row(tgui.URLBtn("Watch", u)).Markup()
		}
		return photo, opt
	}
}
