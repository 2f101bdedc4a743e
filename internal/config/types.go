package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Catalog controls the upstream season catalog client and its response
	// cache. All durations are Go duration strings (e.g. "30s", "1h").
	Catalog CatalogConfig `json:"catalog"`

	// Tracker selects the dedup variant: "subscriptions" (per-chat title
	// subscriptions, the default) or "broadcast" (every known chat gets every
	// release, dedup is per-title).
	Tracker TrackerConfig `json:"tracker"`

	Poll     PollConfig     `json:"poll"`
	Throttle ThrottleConfig `json:"throttle"`
	Notifier NotifierConfig `json:"notifier"`
	Storage  StorageConfig  `json:"storage"`
	Ops      *OpsConfig     `json:"ops,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// CatalogConfig defaults (when fields are omitted/zero):
//   - base_url: "https://shikimori.one"
//   - limit: 99
//   - timeout: "15s"
//   - cache_ttl: "1h"
type CatalogConfig struct {
	BaseURL  string `json:"base_url,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
	CacheTTL string `json:"cache_ttl,omitempty"`
}

type TrackerConfig struct {
	Mode string `json:"mode,omitempty"` // "subscriptions" (default) | "broadcast"
}

type PollConfig struct {
	Enabled bool `json:"enabled"`
	// Interval is a Go duration string; default "5m".
	Interval string `json:"interval,omitempty"`
}

type ThrottleConfig struct {
	// Cooldown is the minimum spacing between a chat's on-demand catalog
	// requests; default "2h".
	Cooldown string `json:"cooldown,omitempty"`
}

// NotifierConfig controls the outbound delivery pipeline.
type NotifierConfig struct {
	Workers    int `json:"workers,omitempty"`
	QueueSize  int `json:"queue_size,omitempty"`
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./anibot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// OpsConfig controls the optional localhost ops HTTP server (healthz, pprof).
//
// Security note: prefer binding to localhost (e.g. "127.0.0.1:6060").
type OpsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:6060"
	// AllowInsecure permits binding to a non-loopback address.
	AllowInsecure bool `json:"allow_insecure,omitempty"`
}
