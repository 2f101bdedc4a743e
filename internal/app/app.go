// Package app wires the bot together: config, logging, storage, the catalog
// cache, the release tracker, delivery, and the chat surface, all running
// under one supervisor.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"anibot/internal/catalog"
	"anibot/internal/config"
	"anibot/internal/notifier"
	"anibot/internal/ops"
	"anibot/internal/poller"
	"anibot/internal/runtime/supervisor"
	"anibot/internal/storage"
	"anibot/internal/throttle"
	"anibot/internal/tracker"
	kit "anibot/internal/transport"
	telegram "anibot/internal/transport/telegram/adapter"
	"anibot/internal/transport/telegram/router"
	logx "anibot/pkg/logx"
)

const (
	ModeSubscriptions = "subscriptions"
	ModeBroadcast     = "broadcast"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	adapter kit.Adapter

	cache *catalog.Cache
	gate  *throttle.Gate

	mode      string
	subs      *tracker.Subscriptions // nil in broadcast mode
	broadcast *tracker.Broadcast     // nil in subscription mode
	engine    *tracker.Engine

	notif  *notifier.Service
	poll   *poller.Service
	router *router.Router
	ops    *ops.Service

	pollEnabled bool
	startedAt   time.Time
	updates     chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	a := &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		updates: make(chan kit.Update, 256),
	}
	if err := a.build(cfg); err != nil {
		logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	log := a.log

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, a.logs.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		return err
	}
	a.adapter = ad

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return err
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, a.logs.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		return err
	}
	a.store = store

	fetchTimeout, err := config.ParseDurationField("catalog.timeout", cfg.Catalog.Timeout)
	if err != nil {
		return err
	}
	cacheTTL, err := config.ParseDurationField("catalog.cache_ttl", cfg.Catalog.CacheTTL)
	if err != nil {
		return err
	}
	client := catalog.NewClient(catalog.ClientConfig{
		BaseURL: cfg.Catalog.BaseURL,
		Limit:   cfg.Catalog.Limit,
		Timeout: fetchTimeout,
	}, a.logs.Logger().With(logx.String("comp", "catalog")))
	a.cache = catalog.NewCache(client, cacheTTL, a.logs.Logger().With(logx.String("comp", "catalog.cache")))

	cooldown, err := config.ParseDurationField("throttle.cooldown", cfg.Throttle.Cooldown)
	if err != nil {
		return err
	}
	a.gate = throttle.New(store, cooldown, a.logs.Logger().With(logx.String("comp", "throttle")))

	mode, err := trackerMode(cfg)
	if err != nil {
		return err
	}
	a.mode = mode
	var tr tracker.Tracker
	switch mode {
	case ModeBroadcast:
		a.broadcast = tracker.NewBroadcast(store)
		tr = a.broadcast
	default:
		a.subs = tracker.NewSubscriptions(store)
		tr = a.subs
	}
	a.engine = tracker.NewEngine(tr, a.logs.Logger().With(logx.String("comp", "tracker")))

	a.notif = notifier.New(notifier.Config{
		Workers:    cfg.Notifier.Workers,
		QueueSize:  cfg.Notifier.QueueSize,
		RatePerSec: cfg.Notifier.RatePerSec,
	}, ad, notifier.RenderFunc(router.RenderEvent(client.BaseURL())), a.logs.Logger().With(logx.String("comp", "notifier")))

	interval, err := config.ParseDurationOrDefault("poll.interval", cfg.Poll.Interval, 5*time.Minute)
	if err != nil {
		return err
	}
	a.pollEnabled = cfg.Poll.Enabled
	a.poll = poller.New(interval, a.pollPass, a.logs.Logger().With(logx.String("comp", "poller")))

	var subsPort router.Subscriptions
	var audience router.Audience
	if a.subs != nil {
		subsPort = a.subs
	}
	if a.broadcast != nil {
		audience = a.broadcast
	}
	a.router = router.New(router.Config{}, ad, a.cache, a.gate, subsPort, audience,
		client.BaseURL(), a.logs.Logger().With(logx.String("comp", "router")))

	opsCfg := ops.Config{}
	if cfg.Ops != nil {
		opsCfg = ops.Config{
			Enabled:       cfg.Ops.Enabled,
			Addr:          cfg.Ops.Addr,
			AllowInsecure: cfg.Ops.AllowInsecure,
		}
	}
	a.ops = ops.New(opsCfg, a.status, a.logs.Logger().With(logx.String("comp", "ops")))

	log.Info("app assembled",
		logx.String("mode", mode),
		logx.String("storage", cfg.Storage.Driver),
		logx.Bool("poll", cfg.Poll.Enabled),
		logx.Duration("poll_interval", interval))
	return nil
}

func trackerMode(cfg *config.Config) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Tracker.Mode))
	switch mode {
	case "":
		return ModeSubscriptions, nil
	case ModeSubscriptions, ModeBroadcast:
		return mode, nil
	default:
		return "", fmt.Errorf("tracker.mode: unknown mode %q", cfg.Tracker.Mode)
	}
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.startedAt = time.Now()

	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.notif.Start(a.sup.Context())
	a.ops.Start(a.sup.Context())
	if a.pollEnabled {
		a.poll.Start(a.sup.Context())
	} else {
		a.log.Info("scheduled polling disabled")
	}

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})

	// Config hot-reload: the watcher self-heals under restart backoff, and
	// published snapshots are applied live where components support it.
	a.sup.GoRestart("config.watch", a.cfgm.Watch)
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})

	a.log.Info("started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.log.Info("stopping")

	// Stop intake first so no new work arrives, then drain delivery, then
	// cancel the remaining loops.
	a.poll.Stop(ctx)
	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("adapter stop error", logx.Err(err))
	}
	a.notif.Stop(ctx)
	a.ops.Stop(ctx)

	if a.sup != nil {
		a.sup.Cancel()
		if err := a.sup.Wait(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("shutdown wait error", logx.Err(err))
		}
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close error", logx.Err(err))
	}
	a.log.Info("stopped")
	a.logs.Close()
	return nil
}

// pollPass runs one scheduled release check: refresh the season list, in
// broadcast mode baseline unseen titles, then diff and emit.
func (a *App) pollPass(ctx context.Context) error {
	now := time.Now()

	titles, err := a.cache.Titles(ctx, now)
	if len(titles) == 0 {
		// Nothing to diff; a fetch error is the pass result.
		return err
	}
	if err != nil {
		a.log.Warn("poll pass on stale catalog data", logx.Err(err))
	}

	if a.broadcast != nil {
		for _, t := range titles {
			if !t.Airable() {
				continue
			}
			if berr := a.broadcast.Baseline(ctx, t.ID, t.Aired); berr != nil {
				return fmt.Errorf("baseline title %d: %w", t.ID, berr)
			}
		}
	}

	n, derr := a.engine.Run(ctx, titles, a.notif.Dispatch)
	if n > 0 {
		a.log.Info("releases detected", logx.Int("events", n))
	}
	return derr
}

func (a *App) status() any {
	var active int64
	var started uint64
	if a.sup != nil {
		active, started = a.sup.Counters()
	}
	return map[string]any{
		"mode":               a.mode,
		"poll_enabled":       a.pollEnabled,
		"poll_interval":      a.poll.Interval().String(),
		"uptime":             time.Since(a.startedAt).Round(time.Second).String(),
		"goroutines_active":  active,
		"goroutines_started": started,
	}
}
