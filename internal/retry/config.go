package retry

import (
	"encoding/json"
	"errors"
	"time"
)

// Config defines the configuration for the retry mechanism.
type Config struct {
	MaxAttempts int           `mapstructure:"max_attempts"` // Total attempts including the first
	BaseDelay   time.Duration `mapstructure:"base_delay"`   // Delay before the second attempt; doubles each retry
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
	}
}

// Validate validates the retry configuration.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return nil
	}
	if cfg.MaxAttempts <= 0 {
		return errors.New("MaxAttempts must be greater than zero")
	}
	if cfg.BaseDelay < 0 {
		return errors.New("BaseDelay cannot be negative")
	}
	return nil
}

// String returns a JSON string representation of the Config.
func (cfg *Config) String() string {
	data, _ := json.Marshal(cfg)
	return string(data)
}
