package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wanwatch/internal/config"
	"wanwatch/internal/types"

	"go.uber.org/zap"
)

// Embed colors per event kind.
const (
	discordColorFirstRun = 0x00ff00
	discordColorChanged  = 0xff9900
	discordColorUpdate   = 0x00d9ff
	discordColorError    = 0xe74c3c
)

// DiscordSender delivers notifications to a Discord webhook.
type DiscordSender struct {
	config *config.DiscordConfig
	logger *zap.Logger
	client *http.Client
}

// DiscordMessage represents a webhook payload
type DiscordMessage struct {
	Username  string         `json:"username,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Embeds    []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed represents a rich embed
type DiscordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []DiscordField `json:"fields,omitempty"`
	Footer      struct {
		Text string `json:"text"`
	} `json:"footer"`
	Timestamp string `json:"timestamp"`
}

// DiscordField represents an embed field
type DiscordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// NewDiscordSender creates a new Discord sender
func NewDiscordSender(cfg *config.DiscordConfig, logger *zap.Logger) (*DiscordSender, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("discord webhook URL is required")
	}

	return &DiscordSender{
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
	}, nil
}

// Name returns the channel name
func (n *DiscordSender) Name() string {
	return "discord"
}

// SendChange delivers an address change notification
func (n *DiscordSender) SendChange(ctx context.Context, event *types.ChangeEvent, meta Meta) error {
	var description string
	var color int

	if event.IsFirstRun() {
		description = fmt.Sprintf("**Initial IP Detection**\nMonitoring started for **%s**", meta.ServerName)
		color = discordColorFirstRun
	} else {
		description = fmt.Sprintf("**IP Address Changed**\n%s", strings.Join(changeLines(event), "\n"))
		color = discordColorChanged
	}

	var fields []DiscordField
	if event.Current.IPv4 != "" {
		fields = append(fields, DiscordField{Name: "Current IPv4", Value: "`" + event.Current.IPv4 + "`"})
	}
	if event.Current.IPv6 != "" {
		fields = append(fields, DiscordField{Name: "Current IPv6", Value: "`" + event.Current.IPv6 + "`"})
	}

	if event.Geo != nil {
		var geoText []string
		if loc := geoLocation(event.Geo); loc != "" {
			geoText = append(geoText, loc)
		}
		if event.Geo.Org != "" {
			geoText = append(geoText, event.Geo.Org)
		}
		if event.Geo.Timezone != "" {
			geoText = append(geoText, event.Geo.Timezone)
		}
		if len(geoText) > 0 {
			fields = append(fields, DiscordField{Name: "Location Information", Value: strings.Join(geoText, "\n")})
		}
	}

	fields = append(fields,
		DiscordField{Name: "Detected At", Value: time.Now().Format("Monday, January 2, 2006 at 15:04:05")},
		DiscordField{Name: "Version", Value: "v" + meta.Version, Inline: true},
	)

	embed := DiscordEmbed{
		Title:       "WAN IP Monitor Alert",
		Description: description,
		Color:       color,
		Fields:      fields,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	embed.Footer.Text = fmt.Sprintf("%s on %s", meta.BotName, meta.ServerName)

	return n.sendWebhook(ctx, embed, meta)
}

// SendUpdate delivers an update-available notification
func (n *DiscordSender) SendUpdate(ctx context.Context, info *types.UpdateInfo, meta Meta) error {
	embed := DiscordEmbed{
		Title:       "Update Available",
		Description: fmt.Sprintf("A new version of %s is ready to install.", meta.BotName),
		Color:       discordColorUpdate,
		Fields: []DiscordField{
			{Name: "Current Version", Value: "`v" + info.CurrentVersion + "`", Inline: true},
			{Name: "Latest Version", Value: "`v" + info.LatestVersion + "`", Inline: true},
			{Name: "What's New", Value: changelogPreview(info.ReleaseNotes)},
			{Name: "Full Changelog", Value: fmt.Sprintf("[View Release Notes](%s)", info.ReleaseURL)},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	embed.Footer.Text = "Update check for " + meta.ServerName

	return n.sendWebhook(ctx, embed, meta)
}

// SendError delivers an error notification
func (n *DiscordSender) SendError(ctx context.Context, message string, meta Meta) error {
	if len(message) > 1000 {
		message = message[:1000]
	}

	embed := DiscordEmbed{
		Title:       "Monitor Error",
		Description: "An error occurred on " + meta.ServerName,
		Color:       discordColorError,
		Fields: []DiscordField{
			{Name: "Error Details", Value: "```" + message + "```"},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	embed.Footer.Text = fmt.Sprintf("%s on %s", meta.BotName, meta.ServerName)

	return n.sendWebhook(ctx, embed, meta)
}

// sendWebhook posts one embed to the configured webhook.
func (n *DiscordSender) sendWebhook(ctx context.Context, embed DiscordEmbed, meta Meta) error {
	msg := DiscordMessage{
		Username:  meta.BotName,
		AvatarURL: n.config.AvatarURL,
		Embeds:    []DiscordEmbed{embed},
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.WebhookURL, bytes.NewBuffer(payload))
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

	// Discord returns 204 on success
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}

	return nil
}
