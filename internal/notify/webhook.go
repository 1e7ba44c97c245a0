package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// WebhookNotifier posts markdown payloads in the group-bot format:
//
//	{"msgtype":"markdown","markdown":{"content":"..."}}
//
// A JSON response carrying a non-zero "errcode" counts as a failure.
type WebhookNotifier struct {
	Client *http.Client
}

type markdownPayload struct {
	MsgType  string          `json:"msgtype"`
	Markdown markdownContent `json:"markdown"`
}

type markdownContent struct {
	Content string `json:"content"`
}

// Notify posts msg rendered as markdown to target.
func (n *WebhookNotifier) Notify(ctx context.Context, target string, msg Message) error {
	body, err := json.Marshal(markdownPayload{
		MsgType:  "markdown",
		Markdown: markdownContent{Content: RenderMarkdown(msg)},
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if code := gjson.GetBytes(data, "errcode"); code.Exists() && code.Int() != 0 {
		return fmt.Errorf("errcode %d: %s", code.Int(), gjson.GetBytes(data, "errmsg").String())
	}
	return nil
}

// fontColor maps a severity to a group-bot markdown font color.
func fontColor(severity string) string {
	switch severity {
	case SeverityError:
		return "warning"
	case SeverityWarning:
		return "comment"
	default:
		return "info"
	}
}

// RenderMarkdown renders msg as group-bot markdown: a colored bold title,
// the body, then one "> name: value" line per field.
func RenderMarkdown(msg Message) string {
	var b strings.Builder
	if msg.Title != "" {
		fmt.Fprintf(&b, "<font color=\"%s\">**%s**</font>\n", fontColor(msg.Severity), msg.Title)
	}
	if msg.Text != "" {
		b.WriteString(msg.Text)
		b.WriteString("\n")
	}
	for _, f := range msg.Fields {
		fmt.Fprintf(&b, "> %s: %s\n", f.Name, f.Value)
	}
	return strings.TrimRight(b.String(), "\n")
}
