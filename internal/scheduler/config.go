package scheduler

import "time"

// Config controls billing tick execution. The fee percent and the cron
// schedule themselves live in config.BillingConfigHolder so they can be
// hot-reloaded.
type Config struct {
	TickTimeout time.Duration
	LockTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		TickTimeout: 5 * time.Minute,
		LockTTL:     10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.TickTimeout <= 0 {
		c.TickTimeout = defaults.TickTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
