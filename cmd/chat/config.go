package main

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type config struct {
	Server string `envconfig:"SERVER" default:"http://127.0.0.1:5000"`
	// VIDYA_CHAT_TIMEOUT bounds each request to the server
	Timeout time.Duration `envconfig:"TIMEOUT" default:"30s"`
	Colours bool          `envconfig:"COLOURS" default:"true"`
}

func loadConfig() (config, error) {
	_ = godotenv.Load()

	var cfg config
	err := envconfig.Process("VIDYA_CHAT", &cfg)
	return cfg, err
}
