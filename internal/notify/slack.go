package notify

import (
	"context"
	"net/http"

	"github.com/slack-go/slack"
)

// SlackNotifier posts to Slack incoming webhooks.
type SlackNotifier struct {
	Client *http.Client
}

// Notify posts msg as a webhook message with one colored attachment.
func (n *SlackNotifier) Notify(ctx context.Context, target string, msg Message) error {
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	return slack.PostWebhookCustomHTTPContext(ctx, target, client, buildWebhookMessage(msg))
}

// buildWebhookMessage translates a Message into a Slack webhook payload.
func buildWebhookMessage(msg Message) *slack.WebhookMessage {
	att := slack.Attachment{
		Title:    msg.Title,
		Text:     msg.Text,
		Color:    SeverityColor(msg.Severity),
		Fallback: msg.Title,
	}
	for _, f := range msg.Fields {
		att.Fields = append(att.Fields, slack.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	text := msg.Title
	if text == "" {
		text = msg.Text
	}
	return &slack.WebhookMessage{
		Text:        text,
		Attachments: []slack.Attachment{att},
	}
}
