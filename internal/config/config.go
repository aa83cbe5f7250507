package config

import (
	"fmt"
	"strings"
	"time"

	"wanwatch/internal/logger"
	"wanwatch/internal/resolver"
	"wanwatch/internal/retry"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// AppName is used for config search paths and log fields.
var AppName = "wanwatch"

// Config is the immutable runtime configuration. It is constructed once at
// startup and passed into each component's constructor.
type Config struct {
	ServerName string `mapstructure:"server_name"`
	BotName    string `mapstructure:"bot_name"`

	CheckInterval time.Duration `mapstructure:"check_interval" validate:"min=60s"`
	MonitorIPv4   bool          `mapstructure:"monitor_ipv4"`
	MonitorIPv6   bool          `mapstructure:"monitor_ipv6"`

	StateFile      string `mapstructure:"state_file" validate:"required"`
	UpdateMarkFile string `mapstructure:"update_mark_file" validate:"required"`

	Resolver resolver.Config `mapstructure:"resolver"`
	Notify   NotifyConfig    `mapstructure:"notify"`
	Update   UpdateConfig    `mapstructure:"update"`
	Log      logger.Config   `mapstructure:"log"`
}

// UpdateConfig represents the self-update check configuration
type UpdateConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	OnStartup bool          `mapstructure:"on_startup"`
	FeedURL   string        `mapstructure:"feed_url" validate:"omitempty,url"`
}

// envBindings maps config keys to the environment variables the original
// deployments use.
var envBindings = map[string]string{
	"server_name":                "SERVER_NAME",
	"bot_name":                   "BOT_NAME",
	"check_interval":             "CHECK_INTERVAL",
	"monitor_ipv4":               "MONITOR_IPV4",
	"monitor_ipv6":               "MONITOR_IPV6",
	"state_file":                 "IP_DB_FILE",
	"update_mark_file":           "UPDATE_NOTIFIED_FILE",
	"resolver.geo_token":         "IPINFO_TOKEN",
	"log.file":                   "LOG_FILE",
	"log.level":                  "LOG_LEVEL",
	"notify.discord.enabled":     "DISCORD_ENABLED",
	"notify.discord.webhook_url": "DISCORD_WEBHOOK_URL",
	"notify.discord.avatar_url":  "DISCORD_AVATAR_URL",
	"notify.telegram.enabled":    "TELEGRAM_ENABLED",
	"notify.telegram.bot_token":  "TELEGRAM_BOT_TOKEN",
	"notify.telegram.chat_id":    "TELEGRAM_CHAT_ID",
	"notify.telegram.parse_mode": "TELEGRAM_PARSE_MODE",
	"notify.email.enabled":       "EMAIL_ENABLED",
	"notify.email.smtp_host":     "EMAIL_SMTP_HOST",
	"notify.email.smtp_port":     "EMAIL_SMTP_PORT",
	"notify.email.username":      "EMAIL_SMTP_USER",
	"notify.email.password":      "EMAIL_SMTP_PASSWORD",
	"notify.email.from":          "EMAIL_FROM",
	"notify.email.to":            "EMAIL_TO",
	"notify.email.use_tls":       "EMAIL_USE_TLS",
	"notify.email.use_ssl":       "EMAIL_USE_SSL",
	"update.enabled":             "UPDATE_CHECK_ENABLED",
	"update.interval":            "UPDATE_CHECK_INTERVAL",
	"update.on_startup":          "UPDATE_CHECK_ON_STARTUP",
}

// Load reads configuration from the environment and an optional config
// file, applies defaults and validates the result. Validation failure is
// a startup gate: the caller is expected to exit non-zero.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalize(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults mirrors the original deployment defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server_name", "WANwatch")
	v.SetDefault("bot_name", "WANwatch")
	v.SetDefault("check_interval", "900s")
	v.SetDefault("monitor_ipv4", true)
	v.SetDefault("monitor_ipv6", true)
	v.SetDefault("state_file", "/var/lib/wanwatch/state.json")
	v.SetDefault("update_mark_file", "/var/lib/wanwatch/update_notified")
	v.SetDefault("log.level", "info")
	v.SetDefault("notify.telegram.parse_mode", "HTML")
	v.SetDefault("notify.email.smtp_port", 587)
	v.SetDefault("notify.email.use_tls", true)
	v.SetDefault("notify.retry.max_attempts", 3)
	v.SetDefault("notify.retry.base_delay", "2s")
	v.SetDefault("update.enabled", true)
	v.SetDefault("update.interval", "86400s")
	v.SetDefault("update.on_startup", true)
}

// normalize cleans up values that arrive as single env strings.
func normalize(cfg *Config) {
	// EMAIL_TO is a comma-separated list in the environment.
	if len(cfg.Notify.Email.To) > 0 {
		to := make([]string, 0, len(cfg.Notify.Email.To))
		for _, entry := range cfg.Notify.Email.To {
			for _, p := range strings.Split(entry, ",") {
				if p = strings.TrimSpace(p); p != "" {
					to = append(to, p)
				}
			}
		}
		cfg.Notify.Email.To = to
	}

	if cfg.Notify.Email.SubjectPrefix == "" {
		cfg.Notify.Email.SubjectPrefix = "[" + cfg.BotName + "]"
	}
	if cfg.Notify.Retry.MaxAttempts == 0 {
		cfg.Notify.Retry = *retry.DefaultConfig()
	}
	cfg.Log.SetDefaults()
}

// Validate runs struct-tag validation plus the cross-field startup checks.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if !cfg.MonitorIPv4 && !cfg.MonitorIPv6 {
		return fmt.Errorf("both MONITOR_IPV4 and MONITOR_IPV6 are disabled, at least one must be enabled")
	}

	if err := cfg.Notify.Validate(); err != nil {
		return err
	}

	if cfg.Update.Enabled && cfg.Update.Interval < time.Hour {
		return fmt.Errorf("UPDATE_CHECK_INTERVAL must be at least one hour")
	}

	if err := cfg.Log.Validate(); err != nil {
		return err
	}

	return nil
}
