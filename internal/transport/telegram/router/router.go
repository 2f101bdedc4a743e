// Package router dispatches incoming chat updates to handlers: the /start
// greeting, the on-demand fresh-picks list, the subscription overview, and
// the subscribe/unsubscribe inline callbacks.
package router

import (
	"context"
	"strings"
	"sync"
	"time"

	"anibot/internal/catalog"
	kit "anibot/internal/transport"
	logx "anibot/pkg/logx"
)

const (
	btnFresh         = "🔥 Fresh picks"
	btnSubscriptions = "📬 My subscriptions"
)

// Catalog serves the season title list (cached).
type Catalog interface {
	Titles(ctx context.Context, now time.Time) ([]catalog.Title, error)
}

// Gate rate-limits user-initiated catalog requests per chat.
type Gate interface {
	Allow(ctx context.Context, chatID int64, now time.Time) (bool, error)
	Cooldown() time.Duration
}

// Subscriptions is the per-chat subscription surface. Nil in broadcast mode.
type Subscriptions interface {
	Subscribe(ctx context.Context, chatID, titleID int64, airedNow int) error
	Unsubscribe(ctx context.Context, chatID, titleID int64) error
	IsSubscribed(ctx context.Context, chatID, titleID int64) (bool, error)
	List(ctx context.Context, chatID int64) (map[int64]int, error)
}

// Audience registers chats into the broadcast recipient set. Nil in
// subscription mode.
type Audience interface {
	AddRecipient(ctx context.Context, chatID int64) error
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Payload string
}

type Config struct {
	Workers        int
	HandlerTimeout time.Duration
}

type Router struct {
	cfg     Config
	log     logx.Logger
	adapter kit.Adapter

	catalog  Catalog
	gate     Gate
	subs     Subscriptions
	audience Audience

	baseURL string
	handle  HandlerFunc
}

func New(cfg Config, adapter kit.Adapter, cat Catalog, gate Gate, subs Subscriptions, audience Audience, baseURL string, log logx.Logger) *Router {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Router{
		cfg:      cfg,
		log:      log,
		adapter:  adapter,
		catalog:  cat,
		gate:     gate,
		subs:     subs,
		audience: audience,
		baseURL:  baseURL,
	}
	r.handle = Chain(r.route,
		MWPanicRecover(log),
		MWRequestLog(log),
		MWTimeout(cfg.HandlerTimeout),
	)
	return r
}

// Run consumes updates until the context is canceled or the channel closes.
// A fixed worker pool bounds handler concurrency.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up, ok := <-updates:
					if !ok {
						return
					}
					r.dispatch(ctx, up)
				}
			}
		}()
	}
	wg.Wait()
	return nil
}

func (r *Router) dispatch(ctx context.Context, up kit.Update) {
	req := &Request{Update: up}

	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message == nil {
			return
		}
		req.Chat = kit.ChatTarget{ChatID: up.Message.ChatID}
		req.FromID = up.Message.FromID
		req.Command = commandFor(up.Message.Text)
	case kit.UpdateCallback:
		if up.Callback == nil {
			return
		}
		req.Chat = kit.ChatTarget{ChatID: up.Callback.ChatID}
		req.FromID = up.Callback.FromID
		req.Command = "callback"
		req.Payload = up.Callback.Data
	default:
		return
	}

	// Handler errors are logged by MWRequestLog; nothing more to do here.
	_ = r.handle(ctx, req)
}

func commandFor(text string) string {
	text = strings.TrimSpace(text)
	// Strip a possible "@botname" suffix from slash commands.
	if strings.HasPrefix(text, "/") {
		if i := strings.IndexAny(text, "@ "); i > 0 {
			text = text[:i]
		}
	}
	switch text {
	case "/start":
		return "start"
	case "/fresh", btnFresh:
		return "fresh"
	case "/subscriptions", btnSubscriptions:
		return "subscriptions"
	default:
		return "unknown"
	}
}

func (r *Router) route(ctx context.Context, req *Request) error {
	switch req.Command {
	case "start":
		return r.handleStart(ctx, req)
	case "fresh":
		return r.handleFresh(ctx, req)
	case "subscriptions":
		return r.handleSubscriptions(ctx, req)
	case "callback":
		return r.handleCallback(ctx, req)
	default:
		return r.handleUnknown(ctx, req)
	}
}
