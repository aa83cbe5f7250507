package notify

import (
	"context"

	"wanwatch/internal/config"
	"wanwatch/internal/retry"
	"wanwatch/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Meta carries the identity fields every outgoing notification renders.
type Meta struct {
	ServerName string
	BotName    string
	Version    string
}

// Sender is one notification channel. Implementations render and deliver;
// the dispatcher only cares about success or failure.
type Sender interface {
	// Name returns the channel name used in result maps and logs
	Name() string

	// SendChange delivers an address change notification
	SendChange(ctx context.Context, event *types.ChangeEvent, meta Meta) error

	// SendUpdate delivers an update-available notification
	SendUpdate(ctx context.Context, info *types.UpdateInfo, meta Meta) error

	// SendError delivers an error notification
	SendError(ctx context.Context, message string, meta Meta) error
}

// Manager fans notifications out to the enabled channels, applying the
// retry policy per channel. Channels are fully independent: one channel
// exhausting its retries never blocks another.
type Manager struct {
	logger  *zap.Logger
	senders []Sender
	retry   retry.Config
	meta    Meta
}

// NewManager creates a manager with the channels enabled in cfg.
func NewManager(cfg *config.NotifyConfig, meta Meta, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		logger: logger,
		retry:  cfg.Retry,
		meta:   meta,
	}

	if cfg.Discord.Enabled {
		n, err := NewDiscordSender(&cfg.Discord, logger)
		if err != nil {
			return nil, err
		}
		m.senders = append(m.senders, n)
	}

	if cfg.Telegram.Enabled {
		n, err := NewTelegramSender(&cfg.Telegram, logger)
		if err != nil {
			return nil, err
		}
		m.senders = append(m.senders, n)
	}

	if cfg.Email.Enabled {
		n, err := NewEmailSender(&cfg.Email, logger)
		if err != nil {
			return nil, err
		}
		m.senders = append(m.senders, n)
	}

	return m, nil
}

// Senders returns the names of the registered channels.
func (m *Manager) Senders() []string {
	names := make([]string, 0, len(m.senders))
	for _, s := range m.senders {
		names = append(names, s.Name())
	}
	return names
}

// DispatchChange sends the change event to every channel under the retry
// policy and returns the per-channel outcome.
func (m *Manager) DispatchChange(ctx context.Context, event *types.ChangeEvent) map[string]bool {
	return m.dispatch(ctx, "change", func(ctx context.Context, s Sender) error {
		return s.SendChange(ctx, event, m.meta)
	})
}

// DispatchUpdate sends the update notification to every channel under the
// retry policy and returns the per-channel outcome.
func (m *Manager) DispatchUpdate(ctx context.Context, info *types.UpdateInfo) map[string]bool {
	return m.dispatch(ctx, "update", func(ctx context.Context, s Sender) error {
		return s.SendUpdate(ctx, info, m.meta)
	})
}

// DispatchError sends an error notification once per channel, no retry.
// Failures are logged and swallowed: the error path must never itself
// take down the cycle.
func (m *Manager) DispatchError(ctx context.Context, message string) {
	for _, s := range m.senders {
		if err := s.SendError(ctx, message, m.meta); err != nil {
			m.logger.Error("Failed to send error notification",
				zap.String("channel", s.Name()),
				zap.Error(err))
		}
	}
}

// dispatch runs one send operation against every channel sequentially,
// each under the retry policy, and aggregates the results.
func (m *Manager) dispatch(ctx context.Context, kind string, send func(context.Context, Sender) error) map[string]bool {
	results := make(map[string]bool, len(m.senders))

	for _, s := range m.senders {
		eventID := uuid.New().String()
		err := retry.Execute(ctx, &m.retry, func(ctx context.Context) error {
			return send(ctx, s)
		})

		results[s.Name()] = err == nil
		if err != nil {
			m.logger.Error("Notification delivery exhausted retries",
				zap.String("channel", s.Name()),
				zap.String("kind", kind),
				zap.String("event_id", eventID),
				zap.Int("max_attempts", m.retry.MaxAttempts),
				zap.Error(err))
		} else {
			m.logger.Info("Notification delivered",
				zap.String("channel", s.Name()),
				zap.String("kind", kind),
				zap.String("event_id", eventID))
		}
	}

	return results
}
