package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.APIKey)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 10, cfg.HistoryCap)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_GoogleKeyFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "fallback-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fallback-key", cfg.APIKey)
}

func TestValidate_MissingKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
}
