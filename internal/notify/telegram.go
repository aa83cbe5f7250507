package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"wanwatch/internal/config"
	"wanwatch/internal/types"

	"go.uber.org/zap"
)

// TelegramSender delivers notifications through the Telegram bot API.
type TelegramSender struct {
	config *config.TelegramConfig
	logger *zap.Logger
	client *http.Client
	apiURL string
}

// TelegramMessage represents a sendMessage payload
type TelegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

// NewTelegramSender creates a new Telegram sender
func NewTelegramSender(cfg *config.TelegramConfig, logger *zap.Logger) (*TelegramSender, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram bot token and chat ID are required")
	}

	return &TelegramSender{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				DisableCompression:  true,
				MaxIdleConnsPerHost: 5,
			},
		},
		apiURL: fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", cfg.BotToken),
	}, nil
}

// Name returns the channel name
func (n *TelegramSender) Name() string {
	return "telegram"
}

// SendChange delivers an address change notification
func (n *TelegramSender) SendChange(ctx context.Context, event *types.ChangeEvent, meta Meta) error {
	var lines []string

	if event.IsFirstRun() {
		lines = append(lines,
			"<b>WAN IP Monitor Alert</b>",
			"<b>Initial IP Detection</b>",
			fmt.Sprintf("Monitoring started for <b>%s</b>", meta.ServerName),
			"")
	} else {
		lines = append(lines,
			"<b>WAN IP Monitor Alert</b>",
			"<b>IP Address Changed</b>",
			"")
		lines = append(lines, "<b>Changes Detected:</b>")
		if event.Current.IPv4 != event.Previous.IPv4 {
			lines = append(lines, fmt.Sprintf("IPv4: <code>%s</code> -> <code>%s</code>",
				valueOrNone(event.Previous.IPv4), valueOrNone(event.Current.IPv4)))
		}
		if event.Current.IPv6 != event.Previous.IPv6 {
			lines = append(lines, fmt.Sprintf("IPv6: <code>%s</code> -> <code>%s</code>",
				valueOrNone(event.Previous.IPv6), valueOrNone(event.Current.IPv6)))
		}
		lines = append(lines, "")
	}

	if event.Current.IPv4 != "" {
		lines = append(lines, fmt.Sprintf("<b>Current IPv4:</b> <code>%s</code>", event.Current.IPv4))
	}
	if event.Current.IPv6 != "" {
		lines = append(lines, fmt.Sprintf("<b>Current IPv6:</b> <code>%s</code>", event.Current.IPv6))
	}

	if event.Geo != nil {
		lines = append(lines, "", "<b>Location Information</b>")
		if loc := geoLocation(event.Geo); loc != "" {
			lines = append(lines, loc)
		}
		if event.Geo.Org != "" {
			lines = append(lines, event.Geo.Org)
		}
		if event.Geo.Timezone != "" {
			lines = append(lines, event.Geo.Timezone)
		}
	}

	lines = append(lines, "",
		fmt.Sprintf("<b>Detected At:</b> %s", time.Now().Format("2006-01-02 15:04:05")),
		fmt.Sprintf("<b>Version:</b> v%s", meta.Version))

	return n.sendMessage(ctx, strings.Join(lines, "\n"), false)
}

// SendUpdate delivers an update-available notification
func (n *TelegramSender) SendUpdate(ctx context.Context, info *types.UpdateInfo, meta Meta) error {
	lines := []string{
		fmt.Sprintf("<b>%s Update Available</b>", meta.BotName),
		"",
		fmt.Sprintf("<b>Current Version:</b> v%s", info.CurrentVersion),
		fmt.Sprintf("<b>Latest Version:</b> v%s", info.LatestVersion),
		"",
		"<b>What's New:</b>",
		changelogPreview(info.ReleaseNotes),
		"",
		fmt.Sprintf("<a href=\"%s\">View Release Notes</a>", info.ReleaseURL),
		"",
		fmt.Sprintf("<i>Update check for %s</i>", meta.ServerName),
	}

	return n.sendMessage(ctx, strings.Join(lines, "\n"), false)
}

// SendError delivers an error notification
func (n *TelegramSender) SendError(ctx context.Context, message string, meta Meta) error {
	if len(message) > 1000 {
		message = message[:1000]
	}

	lines := []string{
		fmt.Sprintf("<b>%s Error</b>", meta.BotName),
		fmt.Sprintf("An error occurred on <b>%s</b>", meta.ServerName),
		"",
		"<code>" + html.EscapeString(message) + "</code>",
	}

	return n.sendMessage(ctx, strings.Join(lines, "\n"), true)
}

// sendMessage posts one message to the configured chat.
func (n *TelegramSender) sendMessage(ctx context.Context, text string, disablePreview bool) error {
	parseMode := n.config.ParseMode
	if parseMode == "" {
		parseMode = "HTML"
	}

	msg := TelegramMessage{
		ChatID:                n.config.ChatID,
		Text:                  text,
		ParseMode:             parseMode,
		DisableWebPagePreview: disablePreview,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			n.logger.Error("Failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Description string `json:"description"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil || errorResp.Description == "" {
			return fmt.Errorf("telegram API error: status %d", resp.StatusCode)
		}
		return fmt.Errorf("telegram API error: %s", errorResp.Description)
	}

	return nil
}
