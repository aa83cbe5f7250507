package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"wanwatch/internal/config"
	"wanwatch/internal/types"

	"go.uber.org/zap"
)

// EmailSender delivers notifications over SMTP.
type EmailSender struct {
	config *config.EmailConfig
	logger *zap.Logger
}

// NewEmailSender creates a new email sender
func NewEmailSender(cfg *config.EmailConfig, logger *zap.Logger) (*EmailSender, error) {
	if cfg.SMTPHost == "" || cfg.From == "" || len(cfg.To) == 0 {
		return nil, fmt.Errorf("email SMTP host, from and to addresses are required")
	}

	return &EmailSender{
		config: cfg,
		logger: logger,
	}, nil
}

// Name returns the channel name
func (n *EmailSender) Name() string {
	return "email"
}

// SendChange delivers an address change notification
func (n *EmailSender) SendChange(_ context.Context, event *types.ChangeEvent, meta Meta) error {
	var subject string
	if event.IsFirstRun() {
		subject = fmt.Sprintf("%s Initial IP Detection - %s", n.config.SubjectPrefix, meta.ServerName)
	} else {
		subject = fmt.Sprintf("%s IP Address Changed - %s", n.config.SubjectPrefix, meta.ServerName)
	}

	text := n.buildChangeText(event, meta)
	htmlBody := n.buildChangeHTML(event, meta)

	return n.sendEmail(subject, text, htmlBody)
}

// SendUpdate delivers an update-available notification
func (n *EmailSender) SendUpdate(_ context.Context, info *types.UpdateInfo, meta Meta) error {
	subject := fmt.Sprintf("%s Update Available: v%s", n.config.SubjectPrefix, info.LatestVersion)

	text := strings.Join([]string{
		fmt.Sprintf("A new version of %s is available.", meta.BotName),
		"",
		"Current Version: v" + info.CurrentVersion,
		"Latest Version: v" + info.LatestVersion,
		"",
		"What's New:",
		changelogPreview(info.ReleaseNotes),
		"",
		"Release notes: " + info.ReleaseURL,
	}, "\n")

	htmlBody := fmt.Sprintf(
		"<html><body><h2>Update Available</h2>"+
			"<p><strong>Current Version:</strong> v%s<br>"+
			"<strong>Latest Version:</strong> v%s</p>"+
			"<pre>%s</pre>"+
			"<p><a href=%q>View Release Notes</a></p>"+
			"<p><em>Update check for %s</em></p></body></html>",
		html.EscapeString(info.CurrentVersion),
		html.EscapeString(info.LatestVersion),
		html.EscapeString(changelogPreview(info.ReleaseNotes)),
		info.ReleaseURL,
		html.EscapeString(meta.ServerName))

	return n.sendEmail(subject, text, htmlBody)
}

// SendError delivers an error notification
func (n *EmailSender) SendError(_ context.Context, message string, meta Meta) error {
	subject := fmt.Sprintf("%s Monitor Error - %s", n.config.SubjectPrefix, meta.ServerName)

	text := fmt.Sprintf("An error occurred on %s:\n\n%s\n", meta.ServerName, message)
	htmlBody := fmt.Sprintf(
		"<html><body><h2>Monitor Error</h2><p>An error occurred on %s:</p><pre>%s</pre></body></html>",
		html.EscapeString(meta.ServerName), html.EscapeString(message))

	return n.sendEmail(subject, text, htmlBody)
}

// buildChangeText renders the plain-text body.
func (n *EmailSender) buildChangeText(event *types.ChangeEvent, meta Meta) string {
	var b strings.Builder

	if event.IsFirstRun() {
		fmt.Fprintf(&b, "Initial IP detection. Monitoring started for %s.\n\n", meta.ServerName)
	} else {
		b.WriteString("WAN IP address changed.\n\n")
		for _, line := range changeLines(event) {
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Current addresses:\n")
	fmt.Fprintf(&b, "  IPv4: %s\n", valueOrNone(event.Current.IPv4))
	fmt.Fprintf(&b, "  IPv6: %s\n", valueOrNone(event.Current.IPv6))

	if event.Geo != nil {
		b.WriteString("\nLocation:\n")
		if loc := geoLocation(event.Geo); loc != "" {
			fmt.Fprintf(&b, "  %s\n", loc)
		}
		if event.Geo.Org != "" {
			fmt.Fprintf(&b, "  %s\n", event.Geo.Org)
		}
		if event.Geo.Timezone != "" {
			fmt.Fprintf(&b, "  %s\n", event.Geo.Timezone)
		}
	}

	fmt.Fprintf(&b, "\nDetected at: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "%s v%s on %s\n", meta.BotName, meta.Version, meta.ServerName)

	return b.String()
}

// buildChangeHTML renders the HTML body.
func (n *EmailSender) buildChangeHTML(event *types.ChangeEvent, meta Meta) string {
	var b strings.Builder

	b.WriteString("<html><body>")
	if event.IsFirstRun() {
		fmt.Fprintf(&b, "<h2>Initial IP Detection</h2><p>Monitoring started for <strong>%s</strong>.</p>",
			html.EscapeString(meta.ServerName))
	} else {
		b.WriteString("<h2>IP Address Changed</h2><ul>")
		for _, line := range changeLines(event) {
			fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(line))
		}
		b.WriteString("</ul>")
	}

	b.WriteString("<h3>Current Addresses</h3><table>")
	fmt.Fprintf(&b, "<tr><td>IPv4</td><td><code>%s</code></td></tr>", html.EscapeString(valueOrNone(event.Current.IPv4)))
	fmt.Fprintf(&b, "<tr><td>IPv6</td><td><code>%s</code></td></tr>", html.EscapeString(valueOrNone(event.Current.IPv6)))
	b.WriteString("</table>")

	if event.Geo != nil {
		b.WriteString("<h3>Location</h3><p>")
		if loc := geoLocation(event.Geo); loc != "" {
			b.WriteString(html.EscapeString(loc) + "<br>")
		}
		if event.Geo.Org != "" {
			b.WriteString(html.EscapeString(event.Geo.Org) + "<br>")
		}
		if event.Geo.Timezone != "" {
			b.WriteString(html.EscapeString(event.Geo.Timezone))
		}
		b.WriteString("</p>")
	}

	fmt.Fprintf(&b, "<p><small>Detected at %s &middot; %s v%s on %s</small></p>",
		time.Now().Format("2006-01-02 15:04:05"),
		html.EscapeString(meta.BotName),
		html.EscapeString(meta.Version),
		html.EscapeString(meta.ServerName))
	b.WriteString("</body></html>")

	return b.String()
}

// sendEmail builds the multipart message and delivers it.
func (n *EmailSender) sendEmail(subject, textBody, htmlBody string) error {
	msg, err := buildEmailMessage(n.config.From, n.config.To, subject, textBody, htmlBody)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	auth := smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.SMTPHost)
	addr := fmt.Sprintf("%s:%d", n.config.SMTPHost, n.config.SMTPPort)

	if n.config.UseSSL {
		err = n.sendImplicitTLS(addr, auth, msg)
	} else {
		// smtp.SendMail upgrades to STARTTLS when the server offers it
		err = smtp.SendMail(addr, auth, cleanEmailAddress(n.config.From), cleanEmailAddresses(n.config.To), msg)
	}

	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// sendImplicitTLS delivers over a TLS connection established up front.
func (n *EmailSender) sendImplicitTLS(addr string, auth smtp.Auth, msg []byte) error {
	tlsConfig := &tls.Config{
		ServerName: n.config.SMTPHost,
		MinVersion: tls.VersionTLS12,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("failed to create TLS connection: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, n.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if err = client.Auth(auth); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	from := cleanEmailAddress(n.config.From)
	if err = client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM failed for %s: %w", from, err)
	}

	for _, rcpt := range cleanEmailAddresses(n.config.To) {
		if err = client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO failed for %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err = w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}

	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close message writer: %w", err)
	}

	return client.Quit()
}

// buildEmailMessage assembles a multipart/alternative message with plain
// text and HTML parts.
func buildEmailMessage(from string, to []string, subject, textBody, htmlBody string) ([]byte, error) {
	var msg bytes.Buffer

	alt := multipart.NewWriter(&msg)

	headers := []string{
		"From: " + cleanEmailAddress(from),
		"To: " + strings.Join(cleanEmailAddresses(to), ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=" + alt.Boundary(),
		"Date: " + time.Now().Format(time.RFC1123Z),
	}

	for _, h := range headers {
		msg.WriteString(h + "\r\n")
	}
	msg.WriteString("\r\n")

	textPart, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=UTF-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write([]byte(textBody)); err != nil {
		return nil, err
	}

	htmlPart, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=UTF-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := htmlPart.Write([]byte(htmlBody)); err != nil {
		return nil, err
	}

	if err := alt.Close(); err != nil {
		return nil, err
	}

	return msg.Bytes(), nil
}

// cleanEmailAddress strips a display name and angle brackets.
func cleanEmailAddress(addr string) string {
	if idx := strings.LastIndex(addr, "<"); idx >= 0 {
		return strings.Trim(addr[idx:], "<>")
	}
	return addr
}

// cleanEmailAddresses cleans a list of email addresses
func cleanEmailAddresses(addrs []string) []string {
	cleaned := make([]string, len(addrs))
	for i, addr := range addrs {
		cleaned[i] = cleanEmailAddress(addr)
	}
	return cleaned
}
