package config

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidConfig = errors.New("invalid config")

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN" envDefault:""`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// JournalConfig controls the Postgres audit journal of ledger transactions.
type JournalConfig struct {
	Enabled       bool          `env:"JOURNAL_ENABLED" envDefault:"true"`
	RetryInterval time.Duration `env:"JOURNAL_RETRY_INTERVAL" envDefault:"2s"`
}

type RewardsConfig struct {
	ReferralCommission int64  `env:"REFERRAL_COMMISSION" envDefault:"50"`
	SeedFile           string `env:"SEED_FILE" envDefault:""`
}

// Validate rejects settings that would make referrals unpayable.
func (c RewardsConfig) Validate() error {
	if c.ReferralCommission <= 0 {
		return fmt.Errorf("REFERRAL_COMMISSION must be positive, got %d: %w",
			c.ReferralCommission, ErrInvalidConfig)
	}

	return nil
}
