package router

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"anibot/internal/catalog"
	kit "anibot/internal/transport"
	logx "anibot/pkg/logx"
	"anibot/pkg/tgui"
)

func (r *Router) handleStart(ctx context.Context, req *Request) error {
	if r.audience != nil {
		if err := r.audience.AddRecipient(ctx, req.Chat.ChatID); err != nil {
			return fmt.Errorf("register recipient: %w", err)
		}
	}

	var b strings.Builder
	b.WriteString("Hi! I keep an eye on this season's anime releases.\n\n")
	b.WriteString(btnFresh + " shows the current season chart.\n")
	if r.subs != nil {
		b.WriteString("Subscribe to a title there and I'll ping you when a new episode airs.\n")
		b.WriteString(btnSubscriptions + " lists what you follow.")
	} else {
		b.WriteString("I'll message you whenever a new episode of a seasonal title airs.")
	}

	_, err := r.adapter.SendText(ctx, req.Chat, b.String(), &kit.SendOptions{
		ReplyMarkup: mainKeyboard(),
	})
	return err
}

func (r *Router) handleUnknown(ctx context.Context, req *Request) error {
	_, err := r.adapter.SendText(ctx, req.Chat,
		"I don't know that one. Use the buttons below or /start.",
		&kit.SendOptions{ReplyMarkup: mainKeyboard()})
	return err
}

func (r *Router) handleFresh(ctx context.Context, req *Request) error {
	now := time.Now()

	ok, err := r.gate.Allow(ctx, req.Chat.ChatID, now)
	if err != nil {
		return fmt.Errorf("throttle: %w", err)
	}
	if !ok {
		msg := fmt.Sprintf("Easy there! Fresh picks refresh once every %s. I'm still watching for new episodes in the background.",
			formatCooldown(r.gate.Cooldown()))
		_, err := r.adapter.SendText(ctx, req.Chat, msg, nil)
		return err
	}

	titles, err := r.catalog.Titles(ctx, now)
	if err != nil {
		r.log.Warn("fresh picks degraded", logx.Int64("chat_id", req.Chat.ChatID), logx.Err(err))
	}
	if len(titles) == 0 {
		_, serr := r.adapter.SendText(ctx, req.Chat, "Nothing to show right now, try again a bit later.", nil)
		return serr
	}

	for _, t := range titles {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := r.sendCard(ctx, req.Chat, t); err != nil {
			r.log.Warn("card delivery failed",
				logx.Int64("chat_id", req.Chat.ChatID),
				logx.Int64("title_id", t.ID),
				logx.Err(err))
		}
	}
	return nil
}

// sendCard delivers one title card, degrading from photo to plain text when
// the artwork can't be sent.
func (r *Router) sendCard(ctx context.Context, to kit.ChatTarget, t catalog.Title) error {
	subscribed := false
	if r.subs != nil {
		var err error
		subscribed, err = r.subs.IsSubscribed(ctx, to.ChatID, t.ID)
		if err != nil {
			return fmt.Errorf("subscription lookup: %w", err)
		}
	}

	opt := &kit.SendOptions{
		DisablePreview: true,
		ReplyMarkup:    cardMarkup(t, r.baseURL, r.subs != nil, subscribed),
	}
	text := caption(t, r.baseURL)

	if img := absURL(r.baseURL, t.Image); img != "" {
		if _, err := r.adapter.SendPhoto(ctx, to, kit.Photo{URL: img, Caption: text}, opt); err == nil {
			return nil
		}
	}
	_, err := r.adapter.SendText(ctx, to, text, opt)
	return err
}

func (r *Router) handleSubscriptions(ctx context.Context, req *Request) error {
	if r.subs == nil {
		_, err := r.adapter.SendText(ctx, req.Chat,
			"Everyone gets every release here, no subscriptions needed.", nil)
		return err
	}

	list, err := r.subs.List(ctx, req.Chat.ChatID)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	if len(list) == 0 {
		_, err := r.adapter.SendText(ctx, req.Chat,
			"You're not following anything yet. Pick something from "+btnFresh+".", nil)
		return err
	}

	// Resolve titles from the cached season list, best-effort.
	byID := map[int64]catalog.Title{}
	if titles, terr := r.catalog.Titles(ctx, time.Now()); terr == nil || len(titles) > 0 {
		for _, t := range titles {
			byID[t.ID] = t
		}
	}

	ids := make([]int64, 0, len(list))
	for id := range list {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	// Cards for titles still in the season list; a plain summary line for
	// ones the catalog no longer returns.
	var gone []string
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		t, ok := byID[id]
		if !ok {
			gone = append(gone, fmt.Sprintf("• title #%d (seen up to episode %d)", id, list[id]))
			continue
		}
		if err := r.sendCard(ctx, req.Chat, t); err != nil {
			r.log.Warn("card delivery failed",
				logx.Int64("chat_id", req.Chat.ChatID),
				logx.Int64("title_id", t.ID),
				logx.Err(err))
		}
	}
	if len(gone) > 0 {
		msg := "Also on your list, but gone from this season's chart:\n" + strings.Join(gone, "\n")
		if _, err := r.adapter.SendText(ctx, req.Chat, msg, &kit.SendOptions{DisablePreview: true}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) handleCallback(ctx context.Context, req *Request) error {
	cb := req.Update.Callback
	comp, action, payload := tgui.Split(req.Payload)
	if comp != callbackComponent {
		return r.adapter.AnswerCallback(ctx, cb.ID, "")
	}
	if r.subs == nil {
		return r.adapter.AnswerCallback(ctx, cb.ID, "Subscriptions are disabled here.")
	}

	titleID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return r.adapter.AnswerCallback(ctx, cb.ID, "That button looks broken.")
	}

	switch action {
	case actionSubscribe:
		return r.subscribeFromCallback(ctx, req, titleID)
	case actionUnsubscribe:
		return r.unsubscribeFromCallback(ctx, req, titleID)
	default:
		return r.adapter.AnswerCallback(ctx, cb.ID, "")
	}
}

func (r *Router) subscribeFromCallback(ctx context.Context, req *Request, titleID int64) error {
	cb := req.Update.Callback

	t, ok := r.lookupTitle(ctx, titleID)
	if !ok {
		return r.adapter.AnswerCallback(ctx, cb.ID, "That title isn't in this season's list anymore.")
	}

	// Baseline at the current aired count so the new subscriber is only
	// notified about episodes airing from now on.
	if err := r.subs.Subscribe(ctx, req.Chat.ChatID, titleID, t.Aired); err != nil {
		r.log.Error("subscribe failed",
			logx.Int64("chat_id", req.Chat.ChatID),
			logx.Int64("title_id", titleID),
			logx.Err(err))
		return r.adapter.AnswerCallback(ctx, cb.ID, "Couldn't subscribe, try again.")
	}

	r.refreshCardMarkup(ctx, req, t, true)
	return r.adapter.AnswerCallback(ctx, cb.ID, "Subscribed! I'll ping you on new episodes.")
}

func (r *Router) unsubscribeFromCallback(ctx context.Context, req *Request, titleID int64) error {
	cb := req.Update.Callback

	if err := r.subs.Unsubscribe(ctx, req.Chat.ChatID, titleID); err != nil {
		r.log.Error("unsubscribe failed",
			logx.Int64("chat_id", req.Chat.ChatID),
			logx.Int64("title_id", titleID),
			logx.Err(err))
		return r.adapter.AnswerCallback(ctx, cb.ID, "Couldn't unsubscribe, try again.")
	}

	if t, ok := r.lookupTitle(ctx, titleID); ok {
		r.refreshCardMarkup(ctx, req, t, false)
	}
	return r.adapter.AnswerCallback(ctx, cb.ID, "Unsubscribed.")
}

func (r *Router) lookupTitle(ctx context.Context, titleID int64) (catalog.Title, bool) {
	titles, err := r.catalog.Titles(ctx, time.Now())
	if err != nil && len(titles) == 0 {
		return catalog.Title{}, false
	}
	for _, t := range titles {
		if t.ID == titleID {
			return t, true
		}
	}
	return catalog.Title{}, false
}

// refreshCardMarkup flips the toggle button on the card the callback came
// from. Best-effort: a failed edit leaves a stale button, which the next tap
// resolves anyway.
func (r *Router) refreshCardMarkup(ctx context.Context, req *Request, t catalog.Title, subscribed bool) {
	cb := req.Update.Callback
	ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	opt := &kit.SendOptions{ReplyMarkup: cardMarkup(t, r.baseURL, true, subscribed)}
	if err := r.adapter.EditMarkup(ctx, ref, opt); err != nil {
		r.log.Debug("markup refresh failed",
			logx.Int64("chat_id", cb.ChatID),
			logx.Int64("title_id", t.ID),
			logx.Err(err))
	}
}

func formatCooldown(d time.Duration) string {
	if d <= 0 {
		return "a while"
	}
	d = d.Round(time.Minute)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}
