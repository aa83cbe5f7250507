package config

import (
	"fmt"
	"strings"

	"wanwatch/internal/retry"
)

// NotifyConfig represents notification configuration
type NotifyConfig struct {
	// Notification channels
	Discord  DiscordConfig  `mapstructure:"discord"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Email    EmailConfig    `mapstructure:"email"`

	// Delivery retry policy, shared by all channels
	Retry retry.Config `mapstructure:"retry"`
}

// DiscordConfig represents Discord webhook notification configuration
type DiscordConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url" validate:"omitempty,url"`
	AvatarURL  string `mapstructure:"avatar_url" validate:"omitempty,url"`
}

// TelegramConfig represents Telegram bot notification configuration
type TelegramConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BotToken  string `mapstructure:"bot_token"`
	ChatID    string `mapstructure:"chat_id"`
	ParseMode string `mapstructure:"parse_mode"` // HTML, Markdown
}

// EmailConfig represents SMTP notification configuration
type EmailConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	SMTPHost      string   `mapstructure:"smtp_host"`
	SMTPPort      int      `mapstructure:"smtp_port" validate:"omitempty,min=1,max=65535"`
	Username      string   `mapstructure:"username"`
	Password      string   `mapstructure:"password"`
	From          string   `mapstructure:"from" validate:"omitempty,email"`
	To            []string `mapstructure:"to" validate:"omitempty,dive,email"`
	UseTLS        bool     `mapstructure:"use_tls"`
	UseSSL        bool     `mapstructure:"use_ssl"`
	SubjectPrefix string   `mapstructure:"subject_prefix"`
}

// AnyEnabled reports whether at least one channel is configured on.
func (cfg *NotifyConfig) AnyEnabled() bool {
	return cfg.Discord.Enabled || cfg.Telegram.Enabled || cfg.Email.Enabled
}

// Validate checks per-channel required fields for the enabled channels.
func (cfg *NotifyConfig) Validate() error {
	if !cfg.AnyEnabled() {
		return fmt.Errorf("no notification channels enabled")
	}

	if cfg.Discord.Enabled && cfg.Discord.WebhookURL == "" {
		return fmt.Errorf("discord webhook URL is required")
	}

	if cfg.Telegram.Enabled {
		if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "" {
			return fmt.Errorf("telegram bot token and chat ID are required")
		}
		if !strings.Contains(cfg.Telegram.BotToken, ":") {
			return fmt.Errorf("telegram bot token format is invalid")
		}
	}

	if cfg.Email.Enabled {
		if cfg.Email.SMTPHost == "" || cfg.Email.From == "" || len(cfg.Email.To) == 0 {
			return fmt.Errorf("email SMTP host, from and to addresses are required")
		}
		if cfg.Email.UseTLS && cfg.Email.UseSSL {
			return fmt.Errorf("email use_tls and use_ssl are mutually exclusive")
		}
	}

	return cfg.Retry.Validate()
}
