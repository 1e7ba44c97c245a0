// Package notify delivers formatted messages to conversation callback
// endpoints. The Dispatcher picks a transport from the URL: Slack incoming
// webhooks, Discord webhooks, or the generic markdown group-bot webhook.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Color constants for message severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// Severity levels.
const (
	SeveritySuccess = "success"
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Message is a transport-neutral outbound notification.
type Message struct {
	Title    string  // headline, rendered bold
	Text     string  // markdown body
	Severity string  // "info", "warning", "error", "success"
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed with a message.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// Notifier delivers a message to one destination URL.
type Notifier interface {
	Notify(ctx context.Context, target string, msg Message) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, target string, msg Message) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, target string, msg Message) error {
	return f(ctx, target, msg)
}

// SeverityColor maps a severity to a sidebar color.
func SeverityColor(severity string) string {
	switch severity {
	case SeveritySuccess:
		return ColorSuccess
	case SeverityWarning:
		return ColorWarning
	case SeverityError:
		return ColorError
	default:
		return ColorInfo
	}
}

// Dispatcher routes messages to the transport matching each target URL
// and bounds every delivery with Timeout.
type Dispatcher struct {
	Timeout time.Duration
	Slack   Notifier
	Discord Notifier
	Webhook Notifier
}

// NewDispatcher creates a Dispatcher with the standard transports sharing
// one HTTP client.
func NewDispatcher(timeout time.Duration) *Dispatcher {
	client := &http.Client{Timeout: timeout}
	return &Dispatcher{
		Timeout: timeout,
		Slack:   &SlackNotifier{Client: client},
		Discord: &DiscordNotifier{Client: client},
		Webhook: &WebhookNotifier{Client: client},
	}
}

// Notify delivers msg to target. It never panics past its boundary; any
// failure comes back as an error for the caller to log.
func (d *Dispatcher) Notify(ctx context.Context, target string, msg Message) (err error) {
	if strings.TrimSpace(target) == "" {
		return fmt.Errorf("notify: no callback url")
	}
	n, err := d.pick(target)
	if err != nil {
		return err
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notify: %s: panic: %v", redact(target), r)
		}
	}()
	if err := n.Notify(ctx, target, msg); err != nil {
		return fmt.Errorf("notify: %s: %w", redact(target), err)
	}
	return nil
}

// Kind reports which transport a target URL selects: "slack", "discord"
// or "webhook".
func Kind(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return "webhook"
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case host == "hooks.slack.com":
		return "slack"
	case (host == "discord.com" || host == "discordapp.com" || strings.HasSuffix(host, ".discord.com")) &&
		strings.HasPrefix(u.Path, "/api/webhooks/"):
		return "discord"
	default:
		return "webhook"
	}
}

func (d *Dispatcher) pick(target string) (Notifier, error) {
	var n Notifier
	switch Kind(target) {
	case "slack":
		n = d.Slack
	case "discord":
		n = d.Discord
	default:
		n = d.Webhook
	}
	if n == nil {
		return nil, fmt.Errorf("notify: no %s transport configured", Kind(target))
	}
	return n, nil
}

// redact strips the path and query from a URL for logging; webhook URLs
// embed their credentials.
func redact(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return "callback"
	}
	return u.Scheme + "://" + u.Host
}
