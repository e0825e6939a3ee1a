package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8088", cfg.Addr)
	assert.Equal(t, "portfolio.db", cfg.DBPath)
	assert.Empty(t, cfg.RulesPath)
	assert.Equal(t, 10*time.Second, cfg.EvalInterval)
	assert.Equal(t, time.Second, cfg.InteractionDebounce)
	assert.Equal(t, 500*time.Millisecond, cfg.ScrollDebounce)
	assert.False(t, cfg.Debug)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORTFOLIO_ADDR", ":9999")
	t.Setenv("PORTFOLIO_DB", "/tmp/custom.db")
	t.Setenv("PORTFOLIO_RULES", "/etc/portfolio/rules.yaml")
	t.Setenv("PORTFOLIO_EVAL_INTERVAL", "30s")
	t.Setenv("PORTFOLIO_INTERACTION_DEBOUNCE", "250ms")
	t.Setenv("PORTFOLIO_DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, "/tmp/custom.db", cfg.DBPath)
	assert.Equal(t, "/etc/portfolio/rules.yaml", cfg.RulesPath)
	assert.Equal(t, 30*time.Second, cfg.EvalInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.InteractionDebounce)
	assert.True(t, cfg.Debug)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("PORTFOLIO_EVAL_INTERVAL", "not-a-duration")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveIntervals(t *testing.T) {
	t.Setenv("PORTFOLIO_EVAL_INTERVAL", "0s")
	_, err := Load()
	assert.ErrorContains(t, err, "eval interval")
}
