package main

import (
	"log/slog"
	"time"

	"github.com/fastprodman/rewardsledger/internal/config"
)

type apiConfig struct {
	Port            uint16        `env:"APP_PORT" envDefault:"8080"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Postgres config.PostgresConfig
	Journal  config.JournalConfig
	Rewards  config.RewardsConfig
}

// journalEnabled reports whether ledger transactions go to Postgres.
func (c *apiConfig) journalEnabled() bool {
	return c.Journal.Enabled && c.Postgres.DSN != ""
}
