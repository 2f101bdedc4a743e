package app

import (
	"context"
	"time"

	"anibot/internal/config"
	"anibot/internal/notifier"
	logx "anibot/pkg/logx"
)

// validate rejects a config snapshot before it is committed and published.
// Keeping this strict means a bad hot-reload never reaches the components.
func validate(cfg *config.Config) error {
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("catalog.timeout", cfg.Catalog.Timeout); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("catalog.cache_ttl", cfg.Catalog.CacheTTL); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("poll.interval", cfg.Poll.Interval); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("throttle.cooldown", cfg.Throttle.Cooldown); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}
	if _, err := trackerMode(cfg); err != nil {
		return err
	}
	return nil
}

// reloadLoop applies published config snapshots. Live-appliable settings take
// effect immediately; the rest log a restart-required warning.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: apply only the newest snapshot.
			for coalescing := true; coalescing; {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					coalescing = false
				}
			}
			a.applyConfig(last, cfg)
			last = cfg
		}
	}
}

func (a *App) applyConfig(prev, cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	if ttl, err := config.ParseDurationField("catalog.cache_ttl", cfg.Catalog.CacheTTL); err == nil && ttl > 0 {
		a.cache.SetTTL(ttl)
	}
	if cd, err := config.ParseDurationField("throttle.cooldown", cfg.Throttle.Cooldown); err == nil && cd > 0 {
		a.gate.SetCooldown(cd)
	}

	a.notif.Apply(notifier.Config{
		Workers:    cfg.Notifier.Workers,
		QueueSize:  cfg.Notifier.QueueSize,
		RatePerSec: cfg.Notifier.RatePerSec,
	})

	if interval, err := config.ParseDurationOrDefault("poll.interval", cfg.Poll.Interval, 5*time.Minute); err == nil {
		a.poll.SetInterval(interval)
	}
	if cfg.Poll.Enabled != a.pollEnabled {
		a.pollEnabled = cfg.Poll.Enabled
		if cfg.Poll.Enabled {
			a.poll.Start(a.sup.Context())
			a.log.Info("scheduled polling enabled")
		} else {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			a.poll.Stop(stopCtx)
			cancel()
			a.log.Info("scheduled polling disabled")
		}
	}

	if prev != nil {
		if prev.Telegram != cfg.Telegram {
			a.log.Warn("telegram config changed; restart required for changes to take effect")
		}
		if prev.Storage != cfg.Storage {
			a.log.Warn("storage config changed; restart required for changes to take effect")
		}
		if prev.Tracker != cfg.Tracker {
			a.log.Warn("tracker.mode changed; restart required for changes to take effect")
		}
		if prev.Catalog.BaseURL != cfg.Catalog.BaseURL ||
			prev.Catalog.Limit != cfg.Catalog.Limit ||
			prev.Catalog.Timeout != cfg.Catalog.Timeout {
			a.log.Warn("catalog client config changed; restart required for changes to take effect")
		}
		prevOps, curOps := prev.Ops, cfg.Ops
		if (prevOps == nil) != (curOps == nil) || (prevOps != nil && curOps != nil && *prevOps != *curOps) {
			a.log.Warn("ops config changed; restart required for changes to take effect")
		}
	}

	a.log.Info("config applied")
}
