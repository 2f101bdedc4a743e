package config

import (
	"os"
	"strings"
)

// Environment overrides let deployments inject secrets without writing them
// into the config file. Applied on every parse, so they survive hot-reloads.
const (
	envToken = "ANIBOT_TELEGRAM_TOKEN"
)

func applyEnvOverrides(cfg *Config) {
	if tok := strings.TrimSpace(os.Getenv(envToken)); tok != "" {
		cfg.Telegram.Token = tok
	}
}
