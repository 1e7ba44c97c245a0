package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/signalbox/internal/models"
)

// --- Dispatcher tests ---

func TestKind(t *testing.T) {
	tests := map[string]string{
		"https://hooks.slack.com/services/T/B/X":          "slack",
		"https://discord.com/api/webhooks/123/abc":        "discord",
		"https://discordapp.com/api/webhooks/123/abc":     "discord",
		"https://discord.com/channels/1/2":                "webhook",
		"https://qyapi.weixin.qq.com/cgi-bin/webhook/send": "webhook",
		"::not a url":                                     "webhook",
	}
	for in, want := range tests {
		if got := Kind(in); got != want {
			t.Errorf("Kind(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDispatcher_Routes(t *testing.T) {
	slack, discord, hook := NewMock(), NewMock(), NewMock()
	d := &Dispatcher{Slack: slack, Discord: discord, Webhook: hook}
	ctx := context.Background()

	d.Notify(ctx, "https://hooks.slack.com/services/x", Message{Title: "s"})
	d.Notify(ctx, "https://discord.com/api/webhooks/1/t", Message{Title: "d"})
	d.Notify(ctx, "https://example.com/hook", Message{Title: "w"})

	if slack.SentCount() != 1 || discord.SentCount() != 1 || hook.SentCount() != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1", slack.SentCount(), discord.SentCount(), hook.SentCount())
	}
}

func TestDispatcher_EmptyTarget(t *testing.T) {
	d := &Dispatcher{Webhook: NewMock()}
	if err := d.Notify(context.Background(), "  ", Message{}); err == nil {
		t.Fatal("expected error for empty target")
	}
}

func TestDispatcher_TimeoutBoundsSlowNotifier(t *testing.T) {
	slow := NotifierFunc(func(ctx context.Context, target string, msg Message) error {
		<-ctx.Done()
		return ctx.Err()
	})
	d := &Dispatcher{Timeout: 20 * time.Millisecond, Webhook: slow}

	start := time.Now()
	err := d.Notify(context.Background(), "https://example.com/hook", Message{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout not applied")
	}
}

func TestDispatcher_RecoversPanic(t *testing.T) {
	boom := NotifierFunc(func(ctx context.Context, target string, msg Message) error {
		panic("bad transport")
	})
	d := &Dispatcher{Webhook: boom}
	err := d.Notify(context.Background(), "https://example.com/hook?key=secret", Message{})
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("err = %v, want panic error", err)
	}
	if strings.Contains(err.Error(), "secret") {
		t.Errorf("error leaks callback credentials: %v", err)
	}
}

// --- Webhook tests ---

func TestWebhookNotifier_PostsMarkdown(t *testing.T) {
	var got markdownPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	n := &WebhookNotifier{Client: srv.Client()}
	err := n.Notify(context.Background(), srv.URL, Message{
		Title:    "Task #3 overdue",
		Text:     "write report",
		Severity: SeverityError,
		Fields:   []Field{{Name: "Assignee", Value: "alice"}},
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got.MsgType != "markdown" {
		t.Errorf("msgtype = %q", got.MsgType)
	}
	for _, want := range []string{`<font color="warning">**Task #3 overdue**</font>`, "write report", "> Assignee: alice"} {
		if !strings.Contains(got.Markdown.Content, want) {
			t.Errorf("content = %q, want to contain %q", got.Markdown.Content, want)
		}
	}
}

func TestWebhookNotifier_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"http error", http.StatusInternalServerError, "down", "status 500"},
		{"errcode", http.StatusOK, `{"errcode":93000,"errmsg":"invalid webhook url"}`, "errcode 93000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			err := (&WebhookNotifier{}).Notify(context.Background(), srv.URL, Message{Text: "x"})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want to contain %q", err, tt.want)
			}
		})
	}
}

func TestWebhookNotifier_PlainOKBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()
	if err := (&WebhookNotifier{}).Notify(context.Background(), srv.URL, Message{Text: "x"}); err != nil {
		t.Errorf("Notify: %v", err)
	}
}

func TestRenderMarkdown_BodyOnly(t *testing.T) {
	if got := RenderMarkdown(Message{Text: "hello"}); got != "hello" {
		t.Errorf("RenderMarkdown = %q, want hello", got)
	}
}

// --- Slack tests ---

func TestSlackNotifier_PostsAttachment(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n := &SlackNotifier{Client: srv.Client()}
	err := n.Notify(context.Background(), srv.URL, Message{Title: "Digest", Text: "2 tasks", Severity: SeverityWarning})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if payload["text"] != "Digest" {
		t.Errorf("text = %v", payload["text"])
	}
	atts, _ := payload["attachments"].([]interface{})
	if len(atts) != 1 {
		t.Fatalf("attachments = %v", payload["attachments"])
	}
	att := atts[0].(map[string]interface{})
	if att["color"] != ColorWarning {
		t.Errorf("color = %v, want %s", att["color"], ColorWarning)
	}
}

func TestBuildWebhookMessage_Fields(t *testing.T) {
	wm := buildWebhookMessage(Message{Title: "t", Fields: []Field{{Name: "a", Value: "1", Short: true}}})
	if len(wm.Attachments) != 1 || len(wm.Attachments[0].Fields) != 1 {
		t.Fatalf("attachments = %+v", wm.Attachments)
	}
	f := wm.Attachments[0].Fields[0]
	if f.Title != "a" || f.Value != "1" || !f.Short {
		t.Errorf("field = %+v", f)
	}
}

// --- Discord tests ---

// rewriteTransport sends every request to a test server, keeping the path.
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func TestDiscordNotifier_ExecutesWebhook(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		path = r.URL.Path
		body, _ = io.ReadAll(r.Body)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	u, _ := url.Parse(srv.URL)

	n := &DiscordNotifier{Client: &http.Client{Transport: rewriteTransport{target: u}}}
	err := n.Notify(context.Background(), "https://discord.com/api/webhooks/123/tok", Message{Title: "Alert", Text: "refund", Severity: SeverityError})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !strings.HasSuffix(path, "/webhooks/123/tok") {
		t.Errorf("path = %q", path)
	}
	if !strings.Contains(string(body), `"refund"`) {
		t.Errorf("body = %s", body)
	}
}

func TestParseDiscordWebhook(t *testing.T) {
	id, token, err := parseDiscordWebhook("https://discord.com/api/webhooks/42/secret/")
	if err != nil || id != "42" || token != "secret" {
		t.Errorf("parse = %q, %q, %v", id, token, err)
	}
	if _, _, err := parseDiscordWebhook("https://discord.com/api/webhooks/42"); err == nil {
		t.Error("expected error for missing token")
	}
}

func TestBuildWebhookParams_Color(t *testing.T) {
	p := buildWebhookParams(Message{Title: "t", Severity: SeveritySuccess})
	if len(p.Embeds) != 1 || p.Embeds[0].Color != 0x36a64f {
		t.Errorf("embeds = %+v", p.Embeds)
	}
}

// --- Mock tests ---

func TestMock_FailTarget(t *testing.T) {
	m := NewMock()
	m.FailTarget("bad", errors.New("down"))
	ctx := context.Background()
	if err := m.Notify(ctx, "bad", Message{}); err == nil {
		t.Error("expected failure")
	}
	m.Notify(ctx, "good", Message{Text: "hi"})
	if m.SentCount() != 1 || len(m.SentTo("good")) != 1 {
		t.Errorf("sent = %+v", m.AllSent())
	}
	last, ok := m.LastSent()
	if !ok || last.Message.Text != "hi" {
		t.Errorf("LastSent = %+v, %v", last, ok)
	}
}

// --- Format tests ---

func TestFormatAlert(t *testing.T) {
	a := &models.Alert{GroupID: "g1", Type: models.AlertSensitive, Severity: models.SeverityUrgent, Detail: "matched: refund"}
	g := &models.Group{ID: "g1", Name: "VIP"}
	m := &models.Message{SenderName: "Bob", Content: "I want a refund", SentAt: time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)}

	out := FormatAlert(a, g, m)
	if out.Title != "Policy alert in VIP" {
		t.Errorf("Title = %q", out.Title)
	}
	if out.Severity != SeverityError {
		t.Errorf("Severity = %q", out.Severity)
	}
	if out.Text != "I want a refund" {
		t.Errorf("Text = %q", out.Text)
	}
	if len(out.Fields) != 4 {
		t.Errorf("Fields = %+v", out.Fields)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("hello world", 8); got != "hello..." {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("你好世界你好", 5); got != "你好..." {
		t.Errorf("Truncate runes = %q", got)
	}
}
