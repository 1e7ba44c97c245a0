package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// DiscordNotifier executes Discord webhooks.
type DiscordNotifier struct {
	Client *http.Client
}

// Notify executes the webhook named by target with msg as one embed.
func (n *DiscordNotifier) Notify(ctx context.Context, target string, msg Message) error {
	id, token, err := parseDiscordWebhook(target)
	if err != nil {
		return err
	}
	s, err := discordgo.New("")
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	if n.Client != nil {
		s.Client = n.Client
	}
	_, err = s.WebhookExecute(id, token, false, buildWebhookParams(msg), discordgo.WithContext(ctx))
	return err
}

// parseDiscordWebhook extracts id and token from
// https://discord.com/api/webhooks/{id}/{token}.
func parseDiscordWebhook(target string) (id, token string, err error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", "", fmt.Errorf("discord webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(u.Path, "/api/webhooks/"), "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("discord webhook url: missing id or token")
	}
	return parts[0], parts[1], nil
}

// buildWebhookParams translates a Message into Discord webhook params.
func buildWebhookParams(msg Message) *discordgo.WebhookParams {
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Text,
		Color:       parseHexColor(SeverityColor(msg.Severity)),
	}
	for _, f := range msg.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	return &discordgo.WebhookParams{
		Content: msg.Title,
		Embeds:  []*discordgo.MessageEmbed{embed},
	}
}

// parseHexColor converts "#rrggbb" to the integer color Discord expects.
// Malformed input yields 0.
func parseHexColor(hex string) int {
	v, err := strconv.ParseInt(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}
