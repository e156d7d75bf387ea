package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PlanConfig describes the subscription plans offered to clients. It is
// loaded from plans.yml and hot-reloaded on change.
type PlanConfig struct {
	FreeQuota          int    `mapstructure:"freeQuota"`
	ProAmountMinor     int64  `mapstructure:"proAmountMinor"`
	ProDefaultCurrency string `mapstructure:"proDefaultCurrency"`
}

func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		FreeQuota:          6,
		ProAmountMinor:     50_000,
		ProDefaultCurrency: "INR",
	}
}

type PlanHolder struct {
	current atomic.Value // holds PlanConfig
}

func NewPlanHolder() (*PlanHolder, error) {
	v := viper.New()

	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/parley/config")
	v.AddConfigPath("/etc/parley")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PARLEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultPlanConfig()
		v.SetDefault("plans.freeQuota", defaults.FreeQuota)
		v.SetDefault("plans.proAmountMinor", defaults.ProAmountMinor)
		v.SetDefault("plans.proDefaultCurrency", defaults.ProDefaultCurrency)
	}

	var cfg PlanConfig
	if err := v.UnmarshalKey("plans", &cfg); err != nil {
		return nil, err
	}
	if err := validatePlanConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PlanHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PlanConfig
		if err := v.UnmarshalKey("plans", &updated); err != nil {
			log.Printf("[plan-config] reload failed: %v", err)
			return
		}
		if err := validatePlanConfig(updated); err != nil {
			log.Printf("[plan-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[plan-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPlanHolder returns a holder pinned to the given config. Used by tests.
func NewStaticPlanHolder(cfg PlanConfig) *PlanHolder {
	holder := &PlanHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PlanHolder) Get() PlanConfig {
	return h.current.Load().(PlanConfig)
}

func validatePlanConfig(cfg PlanConfig) error {
	if cfg.FreeQuota < 0 {
		return errors.New("plans.freeQuota cannot be negative")
	}
	if cfg.ProAmountMinor <= 0 {
		return errors.New("plans.proAmountMinor must be positive")
	}
	if strings.TrimSpace(cfg.ProDefaultCurrency) == "" {
		return errors.New("plans.proDefaultCurrency cannot be empty")
	}
	return nil
}
