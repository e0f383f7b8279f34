package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string `env:"APP_PORT" envDefault:"8080"`

	// BaseURL is the externally reachable origin of this service. It is
	// used as the OpenID realm and as the base of every auth redirect.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// ServerSecret feeds both the link-state cookie signature and the
	// derived directory credentials. Rotating it invalidates in-flight
	// handshakes and forces Steam-only accounts through provisioning again.
	ServerSecret string `env:"SERVER_SECRET,required"`

	SteamAPIKey string `env:"STEAM_API_KEY,required"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	DatabaseDSN string `env:"DATABASE_DSN,required"`
}

func Load() (Config, error) {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}
