// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything tunable at startup. Defaults suit local
// development; production overrides come from PORTFOLIO_* variables.
type Config struct {
	Addr                string        `env:"PORTFOLIO_ADDR" envDefault:":8088"`
	DBPath              string        `env:"PORTFOLIO_DB" envDefault:"portfolio.db"`
	RulesPath           string        `env:"PORTFOLIO_RULES" envDefault:""`
	EvalInterval        time.Duration `env:"PORTFOLIO_EVAL_INTERVAL" envDefault:"10s"`
	InteractionDebounce time.Duration `env:"PORTFOLIO_INTERACTION_DEBOUNCE" envDefault:"1s"`
	ScrollDebounce      time.Duration `env:"PORTFOLIO_SCROLL_DEBOUNCE" envDefault:"500ms"`
	Debug               bool          `env:"PORTFOLIO_DEBUG" envDefault:"false"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.EvalInterval <= 0 {
		return fmt.Errorf("eval interval must be positive, got %s", c.EvalInterval)
	}
	if c.InteractionDebounce <= 0 {
		return fmt.Errorf("interaction debounce must be positive, got %s", c.InteractionDebounce)
	}
	if c.ScrollDebounce <= 0 {
		return fmt.Errorf("scroll debounce must be positive, got %s", c.ScrollDebounce)
	}
	return nil
}
