package main

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// config is read once at startup from VIDYA_* variables. A .env file in the
// working directory is loaded first when present.
type config struct {
	StateTable       string  `envconfig:"STATE_TABLE" required:"true"`
	ParamPrefix      string  `envconfig:"PARAM_PREFIX" default:"/vidyaguide"`
	APIKey           string  `envconfig:"API_KEY"`
	Model            string  `envconfig:"MODEL" default:"llama-3.3-70b-versatile"`
	BaseURL          string  `envconfig:"BASE_URL" default:"https://api.groq.com/openai/v1"`
	MaxMessageLength int     `envconfig:"MAX_MESSAGE_LENGTH" default:"2000"`
	HistoryLimit     int     `envconfig:"HISTORY_LIMIT" default:"50"`
	RatePerSecond    float64 `envconfig:"RATE_PER_SECOND" default:"0"`
	RateBurst        int     `envconfig:"RATE_BURST" default:"1"`
	LocalAddr        string  `envconfig:"LOCAL_ADDR"`
	LogLevel         string  `envconfig:"LOG_LEVEL" default:"INFO"`
}

func loadConfig() (config, error) {
	_ = godotenv.Load()

	var cfg config
	if err := envconfig.Process("VIDYA", &cfg); err != nil {
		return config{}, fmt.Errorf("config error: %w", err)
	}
	if cfg.MaxMessageLength <= 0 {
		return config{}, errors.New("config error: VIDYA_MAX_MESSAGE_LENGTH must be positive")
	}
	if cfg.HistoryLimit < 0 {
		return config{}, errors.New("config error: VIDYA_HISTORY_LIMIT must not be negative")
	}
	if cfg.RatePerSecond < 0 || cfg.RateBurst < 1 {
		return config{}, errors.New("config error: VIDYA_RATE_PER_SECOND must be >= 0 and VIDYA_RATE_BURST >= 1")
	}
	return cfg, nil
}
