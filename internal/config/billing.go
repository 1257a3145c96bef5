package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	cron "github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// BillingConfig controls the recurring charge cycle.
type BillingConfig struct {
	// FeePercent is the platform fee extracted from every successful charge,
	// in whole percent. The fee is floor(amount * FeePercent / 100).
	FeePercent uint64 `mapstructure:"feePercent"`

	// Schedule is a cron expression (or descriptor such as "@daily") that
	// drives the billing tick.
	Schedule string `mapstructure:"schedule"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		FeePercent: 1,
		Schedule:   "@daily",
	}
}

// BillingConfigHolder exposes the current billing config and hot-reloads it
// when the underlying file changes.
type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/patronage/config") // Volume-mounted config
	v.AddConfigPath("/etc/patronage")            // System config
	v.AddConfigPath(".")                         // Current directory (dev mode)

	v.SetEnvPrefix("PATRONAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultBillingConfig()
		v.SetDefault("billing.feePercent", defaults.FeePercent)
		v.SetDefault("billing.schedule", defaults.Schedule)
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	applyBillingDefaults(&cfg)
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		applyBillingDefaults(&updated)
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingConfigHolder returns a holder pinned to cfg. Used by tests
// and by hosts that manage configuration themselves.
func NewStaticBillingConfigHolder(cfg BillingConfig) (*BillingConfigHolder, error) {
	applyBillingDefaults(&cfg)
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder, nil
}

func (h *BillingConfigHolder) Current() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func applyBillingDefaults(cfg *BillingConfig) {
	if strings.TrimSpace(cfg.Schedule) == "" {
		cfg.Schedule = DefaultBillingConfig().Schedule
	}
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.FeePercent > 100 {
		return errors.New("billing: feePercent must be between 0 and 100")
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return errors.New("billing: invalid schedule expression")
	}
	return nil
}
