package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type HTTPConfig struct {
	Addr string
}

type EngineConfig struct {
	TickInterval  time.Duration
	FlushDebounce time.Duration
}

type AppConfig struct {
	ServiceName string
	LogLevel    string
	HTTP        HTTPConfig
	Engine      EngineConfig

	// DatabaseURL empty means the in-memory store; fine for dev, data is
	// lost on restart.
	DatabaseURL string
	NATSURL     string
	JWTSecret   string
}

func Load() (AppConfig, error) {
	cfg := AppConfig{
		ServiceName: strings.TrimSpace(os.Getenv("SERVICE_NAME")),
		LogLevel:    strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		HTTP: HTTPConfig{
			Addr: strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		},
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		NATSURL:     strings.TrimSpace(os.Getenv("NATS_URL")),
		JWTSecret:   strings.TrimSpace(os.Getenv("JWT_SECRET")),
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "watchtime"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.JWTSecret == "" {
		return AppConfig{}, errors.New("JWT_SECRET is required")
	}

	var err error
	if cfg.Engine.TickInterval, err = duration("TICK_INTERVAL", time.Second); err != nil {
		return AppConfig{}, err
	}
	if cfg.Engine.FlushDebounce, err = duration("FLUSH_DEBOUNCE", 2*time.Second); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
