package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"wanwatch/internal/config"
	"wanwatch/internal/retry"
	"wanwatch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeSender scripts per-attempt outcomes for dispatcher tests.
type fakeSender struct {
	name        string
	failures    int // attempts that fail before succeeding; -1 fails forever
	changeCalls int
	updateCalls int
	errorCalls  int
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) attempt(calls int) error {
	if f.failures < 0 || calls <= f.failures {
		return errors.New("send failed")
	}
	return nil
}

func (f *fakeSender) SendChange(_ context.Context, _ *types.ChangeEvent, _ Meta) error {
	f.changeCalls++
	return f.attempt(f.changeCalls)
}

func (f *fakeSender) SendUpdate(_ context.Context, _ *types.UpdateInfo, _ Meta) error {
	f.updateCalls++
	return f.attempt(f.updateCalls)
}

func (f *fakeSender) SendError(_ context.Context, _ string, _ Meta) error {
	f.errorCalls++
	return f.attempt(f.errorCalls)
}

func newTestManager(t *testing.T, senders ...Sender) *Manager {
	t.Helper()
	return &Manager{
		logger:  zaptest.NewLogger(t),
		senders: senders,
		retry:   retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond},
		meta:    Meta{ServerName: "test-host", BotName: "WANwatch", Version: "1.0.0"},
	}
}

func testEvent() *types.ChangeEvent {
	return &types.ChangeEvent{
		Kind:     types.ChangeIPv4,
		Current:  types.AddressPair{IPv4: "2.2.2.2"},
		Previous: types.AddressPair{IPv4: "1.1.1.1"},
	}
}

func TestDispatchChangeRetriesUntilSuccess(t *testing.T) {
	// Fails twice, then succeeds: three invocations, reported success
	s := &fakeSender{name: "flaky", failures: 2}
	m := newTestManager(t, s)

	results := m.DispatchChange(context.Background(), testEvent())

	assert.Equal(t, map[string]bool{"flaky": true}, results)
	assert.Equal(t, 3, s.changeCalls)
}

func TestDispatchChangeExhaustsRetries(t *testing.T) {
	s := &fakeSender{name: "broken", failures: -1}
	m := newTestManager(t, s)

	results := m.DispatchChange(context.Background(), testEvent())

	assert.Equal(t, map[string]bool{"broken": false}, results)
	// Exactly MaxAttempts invocations
	assert.Equal(t, 3, s.changeCalls)
}

func TestDispatchChannelsAreIndependent(t *testing.T) {
	failing := &fakeSender{name: "a", failures: -1}
	working := &fakeSender{name: "b"}
	m := newTestManager(t, failing, working)

	results := m.DispatchChange(context.Background(), testEvent())

	assert.Equal(t, map[string]bool{"a": false, "b": true}, results)
	assert.Equal(t, 3, failing.changeCalls)
	assert.Equal(t, 1, working.changeCalls)
}

func TestDispatchUpdate(t *testing.T) {
	s := &fakeSender{name: "chan", failures: 1}
	m := newTestManager(t, s)

	info := &types.UpdateInfo{CurrentVersion: "1.4.0", LatestVersion: "1.4.1"}
	results := m.DispatchUpdate(context.Background(), info)

	assert.Equal(t, map[string]bool{"chan": true}, results)
	assert.Equal(t, 2, s.updateCalls)
}

func TestDispatchErrorSingleAttemptNoRetry(t *testing.T) {
	failing := &fakeSender{name: "a", failures: -1}
	working := &fakeSender{name: "b"}
	m := newTestManager(t, failing, working)

	// Must not panic or retry; failures are swallowed
	m.DispatchError(context.Background(), "something broke")

	assert.Equal(t, 1, failing.errorCalls)
	assert.Equal(t, 1, working.errorCalls)
}

func TestNewManagerBuildsEnabledChannels(t *testing.T) {
	cfg := &config.NotifyConfig{
		Discord: config.DiscordConfig{
			Enabled:    true,
			WebhookURL: "https://discord.com/api/webhooks/xxx/yyy",
		},
		Telegram: config.TelegramConfig{
			Enabled:  true,
			BotToken: "123456:test-token",
			ChatID:   "123456789",
		},
		Email: config.EmailConfig{
			Enabled:  true,
			SMTPHost: "smtp.example.com",
			SMTPPort: 587,
			From:     "wanwatch@example.com",
			To:       []string{"admin@example.com"},
		},
		Retry: *retry.DefaultConfig(),
	}

	m, err := NewManager(cfg, Meta{ServerName: "test"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"discord", "telegram", "email"}, m.Senders())
}

func TestNewManagerNoChannels(t *testing.T) {
	m, err := NewManager(&config.NotifyConfig{Retry: *retry.DefaultConfig()},
		Meta{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Empty(t, m.Senders())
}

func TestNewManagerRejectsIncompleteChannel(t *testing.T) {
	cfg := &config.NotifyConfig{
		Discord: config.DiscordConfig{Enabled: true}, // missing webhook URL
		Retry:   *retry.DefaultConfig(),
	}

	_, err := NewManager(cfg, Meta{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
