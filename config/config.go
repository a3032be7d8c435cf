// Package config loads console configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned when no vendor API key is configured.
var ErrMissingAPIKey = errors.New("no API key configured: set GEMINI_API_KEY or GOOGLE_API_KEY")

// Config holds all console settings. Fields are populated from the
// environment, with GEMINI_API_KEY taking precedence over GOOGLE_API_KEY.
type Config struct {
	// Vendor API
	APIKey         string        `env:"GEMINI_API_KEY"`
	GoogleAPIKey   string        `env:"GOOGLE_API_KEY"`
	BaseURL        string        `env:"API_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	LiveURL        string        `env:"LIVE_API_URL" envDefault:"wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"`
	TextModel      string        `env:"TEXT_MODEL" envDefault:"gemini-2.5-flash"`
	ImageModel     string        `env:"IMAGE_MODEL" envDefault:"imagen-4.0-generate-001"`
	VideoModel     string        `env:"VIDEO_MODEL" envDefault:"veo-3.0-generate-001"`
	LiveModel      string        `env:"LIVE_MODEL" envDefault:"gemini-2.5-flash-native-audio"`
	TTSModel       string        `env:"TTS_MODEL" envDefault:"gemini-2.5-flash-preview-tts"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`

	// Job polling
	PollInterval time.Duration `env:"VIDEO_POLL_INTERVAL" envDefault:"10s"`

	// History persistence
	HistoryDir    string `env:"HISTORY_DIR" envDefault:""`
	HistoryCap    int    `env:"HISTORY_CAP" envDefault:"10"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:""`
	TemplatesPath string `env:"TEMPLATES_PATH" envDefault:"templates.yaml"`

	// Server
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; a missing file is not an error.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = cfg.GoogleAPIKey
	}

	return cfg, nil
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
