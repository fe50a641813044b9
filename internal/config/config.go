// Package config loads environment-driven configuration shared by the vote,
// worker, and result binaries.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	RedisURL    string `env:"REDIS_URL" default:"redis://localhost:6379"`
	DatabaseURL string `env:"DATABASE_URL"`

	VotePort      string `env:"VOTE_PORT" default:"8080"`
	ResultPort    string `env:"RESULT_PORT" default:"8081"`
	SessionSecret string `env:"SESSION_SECRET"`

	// Display labels for the two choices; the wire tokens stay "a" and "b".
	OptionA string `env:"OPTION_A" default:"Cats"`
	OptionB string `env:"OPTION_B" default:"Dogs"`

	ConnectAttempts int           `env:"CONNECT_ATTEMPTS" default:"10"`
	ConnectBackoff  time.Duration `env:"CONNECT_BACKOFF" default:"2s"`

	QueuePollTimeout  time.Duration `env:"QUEUE_POLL_TIMEOUT" default:"1s"`
	ReconnectPause    time.Duration `env:"RECONNECT_PAUSE" default:"2s"`
	RefreshInterval   time.Duration `env:"REFRESH_INTERVAL" default:"1s"`
	BroadcastInterval time.Duration `env:"BROADCAST_INTERVAL" default:"500ms"`

	MaxStreamClients int `env:"MAX_STREAM_CLIENTS" default:"10000"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return &cfg, nil
}

// ValidateVote checks the fields the vote capture server needs.
func (c *Config) ValidateVote() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	return nil
}

// ValidateWorker checks the fields the processing worker needs.
func (c *Config) ValidateWorker() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.ConnectAttempts < 1 {
		return fmt.Errorf("CONNECT_ATTEMPTS must be at least 1")
	}
	if c.QueuePollTimeout <= 0 {
		return fmt.Errorf("QUEUE_POLL_TIMEOUT must be positive")
	}
	return nil
}

// ValidateResult checks the fields the result server needs.
func (c *Config) ValidateResult() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive")
	}
	if c.BroadcastInterval <= 0 {
		return fmt.Errorf("BROADCAST_INTERVAL must be positive")
	}
	return nil
}
