package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/signalbox/internal/command"
	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/db"
	"github.com/zulandar/signalbox/internal/identity"
	"github.com/zulandar/signalbox/internal/intake"
	"github.com/zulandar/signalbox/internal/intent"
	"github.com/zulandar/signalbox/internal/lifecycle"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/notify"
	"github.com/zulandar/signalbox/internal/policy"
	"github.com/zulandar/signalbox/internal/store"
)

type fixture struct {
	store   *store.Store
	handler http.Handler
	mock    *notify.Mock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Init(gdb); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { db.Close(gdb) })
	s := store.New(gdb)
	mock := notify.NewMock()

	scanner, err := policy.NewScanner(policy.ScannerOpts{Store: s})
	if err != nil {
		t.Fatal(err)
	}
	router, err := command.NewRouter(command.RouterOpts{Store: s, Classifier: &intent.Static{Intent: intent.Help{}}})
	if err != nil {
		t.Fatal(err)
	}
	pipeline, err := intake.NewPipeline(intake.PipelineOpts{
		Store:    s,
		Identity: identity.New(config.IdentityConfig{InternalPrefixes: []string{"system_"}, BotID: "system_bot"}),
		Scanner:  scanner,
		Router:   router,
		Notifier: mock,
	})
	if err != nil {
		t.Fatal(err)
	}
	sweeper, err := lifecycle.NewSweeper(lifecycle.SweeperOpts{Store: s, Notifier: mock})
	if err != nil {
		t.Fatal(err)
	}
	srv, err := New(Opts{Store: s, Pipeline: pipeline, Pusher: sweeper, Location: time.UTC})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{store: s, handler: srv.Handler(), mock: mock}
}

type response struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, isStr := body.(string); isStr {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	var resp response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, resp
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode data %s: %v", raw, err)
	}
}

// --- New tests ---

func TestNew_Required(t *testing.T) {
	if _, err := New(Opts{}); err == nil || !strings.Contains(err.Error(), "store is required") {
		t.Errorf("err = %v", err)
	}
}

// --- Health / events ---

func TestHealth(t *testing.T) {
	f := newFixture(t)
	code, resp := f.do(t, "GET", "/api/health", nil)
	if code != http.StatusOK || resp.Code != 0 || resp.Message != "ok" {
		t.Errorf("code = %d, resp = %+v", code, resp)
	}
}

func TestEvents_IntakeAndDuplicate(t *testing.T) {
	f := newFixture(t)
	ev := map[string]interface{}{"message_id": "m1", "group_id": "g1", "sender_id": "cust", "content": "my refund please"}
	code, resp := f.do(t, "POST", "/api/events", ev)
	if code != http.StatusOK {
		t.Fatalf("code = %d, resp = %+v", code, resp)
	}
	var v eventView
	decode(t, resp.Data, &v)
	if v.MessageID != "m1" || !v.GroupCreated || v.AlertID == 0 {
		t.Errorf("event = %+v", v)
	}

	_, resp = f.do(t, "POST", "/api/events", ev)
	decode(t, resp.Data, &v)
	if !v.Duplicate {
		t.Errorf("redelivery not reported as duplicate: %+v", v)
	}
}

func TestEvents_CommandReply(t *testing.T) {
	f := newFixture(t)
	ev := map[string]interface{}{"group_id": "g1", "sender_id": "cust", "content": "@bot help", "response_url": "http://cb/r"}
	_, resp := f.do(t, "POST", "/api/events", ev)
	var v eventView
	decode(t, resp.Data, &v)
	if v.Reply != command.HelpText || !v.Delivered {
		t.Errorf("event = %+v", v)
	}
	if len(f.mock.SentTo("http://cb/r")) != 1 {
		t.Error("reply not posted")
	}
}

func TestEvents_Invalid(t *testing.T) {
	f := newFixture(t)
	code, resp := f.do(t, "POST", "/api/events", map[string]string{"group_id": "g1"})
	if code != http.StatusBadRequest || !strings.Contains(resp.Message, "content") {
		t.Errorf("code = %d, resp = %+v", code, resp)
	}
	code, _ = f.do(t, "POST", "/api/events", "{not json")
	if code != http.StatusBadRequest {
		t.Errorf("malformed body code = %d", code)
	}
}

// --- Groups ---

func TestGroups_CRUD(t *testing.T) {
	f := newFixture(t)
	code, resp := f.do(t, "POST", "/api/groups", map[string]interface{}{"id": "vip", "name": "VIP", "priority": 1, "callback_url": "http://cb/vip"})
	if code != http.StatusOK {
		t.Fatalf("create code = %d, resp = %+v", code, resp)
	}
	var g groupView
	decode(t, resp.Data, &g)
	if g.ID != "vip" || g.Priority != 1 || !g.Active || !g.AutoRemind {
		t.Errorf("group = %+v", g)
	}

	if code, _ := f.do(t, "POST", "/api/groups", map[string]interface{}{"id": "vip", "name": "again"}); code != http.StatusConflict {
		t.Errorf("duplicate code = %d, want 409", code)
	}

	code, resp = f.do(t, "PUT", "/api/groups/vip", map[string]interface{}{"auto_remind": false, "response_threshold": 5})
	if code != http.StatusOK {
		t.Fatalf("update code = %d, resp = %+v", code, resp)
	}
	decode(t, resp.Data, &g)
	if g.AutoRemind || g.ResponseThreshold != 5 || g.Name != "VIP" {
		t.Errorf("updated group = %+v", g)
	}

	if code, _ := f.do(t, "DELETE", "/api/groups/vip", nil); code != http.StatusOK {
		t.Errorf("delete code = %d", code)
	}
	stored, err := f.store.GetGroup(context.Background(), "vip")
	if err != nil {
		t.Fatalf("soft delete removed the row: %v", err)
	}
	if stored.Active {
		t.Error("group still active after delete")
	}

	_, resp = f.do(t, "GET", "/api/groups?active=true", nil)
	var groups []groupView
	decode(t, resp.Data, &groups)
	if len(groups) != 0 {
		t.Errorf("active groups = %+v", groups)
	}
}

func TestGroups_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"missing name", "POST", "/api/groups", map[string]interface{}{"id": "x"}, http.StatusBadRequest},
		{"bad priority", "POST", "/api/groups", map[string]interface{}{"name": "x", "priority": 7}, http.StatusBadRequest},
		{"update unknown", "PUT", "/api/groups/nope", map[string]interface{}{"name": "x"}, http.StatusNotFound},
		{"delete unknown", "DELETE", "/api/groups/nope", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := f.do(t, tt.method, tt.path, tt.body)
			if code != tt.status || resp.Code != tt.status {
				t.Errorf("code = %d (%d), want %d: %s", code, resp.Code, tt.status, resp.Message)
			}
		})
	}
}

// --- Policy terms ---

func TestPolicyTerms(t *testing.T) {
	f := newFixture(t)
	_, resp := f.do(t, "GET", "/api/policy-terms", nil)
	var terms []termView
	decode(t, resp.Data, &terms)
	if len(terms) != len(db.DefaultPolicyTerms) {
		t.Errorf("seeded terms = %d, want %d", len(terms), len(db.DefaultPolicyTerms))
	}

	code, resp := f.do(t, "POST", "/api/policy-terms", map[string]interface{}{"term": "chargeback"})
	if code != http.StatusOK {
		t.Fatalf("create code = %d, resp = %+v", code, resp)
	}
	var pt termView
	decode(t, resp.Data, &pt)
	if pt.Severity != models.SeverityWarning {
		t.Errorf("default severity = %d", pt.Severity)
	}

	if code, _ := f.do(t, "POST", "/api/policy-terms", map[string]interface{}{"term": "x", "severity": 9}); code != http.StatusBadRequest {
		t.Errorf("bad severity code = %d", code)
	}
	if code, _ := f.do(t, "POST", "/api/policy-terms", map[string]interface{}{"term": "  "}); code != http.StatusBadRequest {
		t.Errorf("empty term code = %d", code)
	}
	if code, _ := f.do(t, "POST", "/api/policy-terms", map[string]interface{}{"term": "chargeback"}); code != http.StatusConflict {
		t.Errorf("duplicate term code = %d", code)
	}

	path := "/api/policy-terms/" + jsonNumber(pt.ID)
	if code, _ := f.do(t, "DELETE", path, nil); code != http.StatusOK {
		t.Errorf("delete code = %d", code)
	}
	if code, _ := f.do(t, "DELETE", path, nil); code != http.StatusNotFound {
		t.Errorf("second delete code = %d", code)
	}
	if code, _ := f.do(t, "DELETE", "/api/policy-terms/abc", nil); code != http.StatusBadRequest {
		t.Errorf("bad id code = %d", code)
	}
}

func jsonNumber(n uint) string {
	b, _ := json.Marshal(n)
	return string(b)
}

// --- Alerts ---

func TestAlerts_ListAndResolve(t *testing.T) {
	f := newFixture(t)
	f.do(t, "POST", "/api/events", map[string]interface{}{"message_id": "m1", "group_id": "g1", "sender_id": "cust", "content": "this is a scam"})

	_, resp := f.do(t, "GET", "/api/alerts?status=open&group_id=g1", nil)
	var alerts []alertView
	decode(t, resp.Data, &alerts)
	if len(alerts) != 1 || alerts[0].Type != models.AlertSensitive {
		t.Fatalf("alerts = %+v", alerts)
	}

	code, resp := f.do(t, "POST", "/api/alerts/"+jsonNumber(alerts[0].ID)+"/resolve", nil)
	if code != http.StatusOK {
		t.Fatalf("resolve code = %d, resp = %+v", code, resp)
	}
	var a alertView
	decode(t, resp.Data, &a)
	if a.Status != models.AlertResolved || a.ResolvedAt == nil {
		t.Errorf("alert = %+v", a)
	}

	if code, _ := f.do(t, "GET", "/api/alerts?status=bogus", nil); code != http.StatusBadRequest {
		t.Errorf("bad status code = %d", code)
	}
	if code, _ := f.do(t, "POST", "/api/alerts/999/resolve", nil); code != http.StatusNotFound {
		t.Errorf("missing alert code = %d", code)
	}
}

// --- Tasks ---

func TestTasks_ListAndPush(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := &models.Group{ID: "g1", Name: "G", Active: true, Priority: 2, CallbackURL: "http://cb/g1"}
	if err := f.store.CreateGroup(ctx, g); err != nil {
		t.Fatal(err)
	}
	open := &models.Task{GroupID: "g1", Content: "open"}
	closed := &models.Task{GroupID: "g1", Content: "closed"}
	for _, tk := range []*models.Task{open, closed} {
		if err := f.store.CreateTask(ctx, tk); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.store.CompleteTask(ctx, "g1", closed.ID, time.Now()); err != nil {
		t.Fatal(err)
	}

	_, resp := f.do(t, "GET", "/api/tasks?group_id=g1&status=in_progress", nil)
	var tasks []taskView
	decode(t, resp.Data, &tasks)
	if len(tasks) != 1 || tasks[0].Content != "open" {
		t.Errorf("tasks = %+v", tasks)
	}

	code, resp := f.do(t, "POST", "/api/tasks/"+jsonNumber(open.ID)+"/push", map[string]string{"content": "nudge"})
	if code != http.StatusOK {
		t.Fatalf("push code = %d, resp = %+v", code, resp)
	}
	var r reminderView
	decode(t, resp.Data, &r)
	if r.Type != models.ReminderManual || r.Status != models.ReminderSent {
		t.Errorf("reminder = %+v", r)
	}
	sent := f.mock.SentTo("http://cb/g1")
	if len(sent) != 1 || !strings.Contains(sent[0].Message.Text, "nudge") {
		t.Errorf("sent = %+v", sent)
	}

	if code, _ := f.do(t, "POST", "/api/tasks/"+jsonNumber(closed.ID)+"/push", nil); code != http.StatusConflict {
		t.Errorf("done push code = %d, want 409", code)
	}
	if code, _ := f.do(t, "POST", "/api/tasks/999/push", nil); code != http.StatusNotFound {
		t.Errorf("missing task push code = %d", code)
	}
}

// --- Settings ---

func TestSettings(t *testing.T) {
	f := newFixture(t)
	_, resp := f.do(t, "GET", "/api/settings", nil)
	var got map[string]interface{}
	decode(t, resp.Data, &got)
	if got[models.SettingAlertEnabled] != true || got[models.SettingAlertTimeoutMinutes] != float64(30) {
		t.Errorf("settings = %+v", got)
	}

	code, resp := f.do(t, "PUT", "/api/settings", map[string]interface{}{"alert_enabled": false, "notification_channels": []string{"webhook", "email"}})
	if code != http.StatusOK {
		t.Fatalf("put code = %d, resp = %+v", code, resp)
	}
	decode(t, resp.Data, &got)
	if got[models.SettingAlertEnabled] != false {
		t.Errorf("alert_enabled = %v", got[models.SettingAlertEnabled])
	}
	if ch, isList := got[models.SettingNotificationChannels].([]interface{}); !isList || len(ch) != 2 {
		t.Errorf("channels = %v", got[models.SettingNotificationChannels])
	}

	if code, _ := f.do(t, "PUT", "/api/settings", map[string]interface{}{"alert_timeout_minutes": 0}); code != http.StatusBadRequest {
		t.Errorf("zero timeout code = %d", code)
	}
	if code, _ := f.do(t, "PUT", "/api/settings", map[string]interface{}{}); code != http.StatusBadRequest {
		t.Errorf("empty update code = %d", code)
	}
}

// --- Monitoring ---

func TestMonitoring(t *testing.T) {
	f := newFixture(t)
	f.do(t, "POST", "/api/events", map[string]interface{}{"group_id": "g1", "sender_id": "cust", "content": "hello"})

	_, resp := f.do(t, "GET", "/api/monitoring/overview", nil)
	var ov store.Overview
	decode(t, resp.Data, &ov)
	if ov.ActiveGroups != 1 || ov.MessagesToday != 1 || ov.Unreplied != 1 {
		t.Errorf("overview = %+v", ov)
	}

	_, resp = f.do(t, "GET", "/api/monitoring/group-stats", nil)
	var stats []store.GroupStat
	decode(t, resp.Data, &stats)
	if len(stats) != 1 || stats[0].Status != store.HealthWarning {
		t.Errorf("stats = %+v", stats)
	}
}

func seedMessages(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.CreateGroup(ctx, &models.Group{ID: "g1", Name: "Support", Active: true, Priority: 2}); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	replied := now.Add(-time.Hour)
	msgs := []models.Message{
		{ID: "old", GroupID: "g1", SenderID: "c1", SenderName: "Ann", Content: "still waiting", SentAt: now.Add(-90 * time.Minute)},
		{ID: "mid", GroupID: "g1", SenderID: "c2", SenderName: "Ben", Content: "any news?", SentAt: now.Add(-40 * time.Minute)},
		{ID: "new", GroupID: "g1", SenderID: "c3", SenderName: "Cat", Content: "hi", SentAt: now.Add(-5 * time.Minute)},
		{ID: "done", GroupID: "g1", SenderID: "c4", SenderName: "Dan", Content: "thanks", SentAt: now.Add(-2 * time.Hour), ReplyStatus: models.ReplyReplied, ReplyTime: &replied},
	}
	for i := range msgs {
		if _, err := s.InsertMessage(ctx, &msgs[i]); err != nil {
			t.Fatal(err)
		}
	}
}

func TestMonitoring_ReplyTimeouts(t *testing.T) {
	f := newFixture(t)
	seedMessages(t, f.store)

	code, resp := f.do(t, "GET", "/api/monitoring/alerts", nil)
	if code != http.StatusOK {
		t.Fatalf("code = %d, resp = %+v", code, resp)
	}
	var rows []timeoutView
	decode(t, resp.Data, &rows)
	if len(rows) != 2 || rows[0].MessageID != "old" || rows[1].MessageID != "mid" {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].Priority != "emergency" || rows[1].Priority != "warning" {
		t.Errorf("priorities = %q, %q", rows[0].Priority, rows[1].Priority)
	}
	if rows[0].GroupName != "Support" || rows[0].TimeoutMinutes < 89 {
		t.Errorf("row = %+v", rows[0])
	}

	_, resp = f.do(t, "GET", "/api/monitoring/alerts?limit=1", nil)
	decode(t, resp.Data, &rows)
	if len(rows) != 1 || rows[0].MessageID != "old" {
		t.Errorf("limited rows = %+v", rows)
	}
}

func TestMonitoring_ReplyTimeoutsRespectSetting(t *testing.T) {
	f := newFixture(t)
	seedMessages(t, f.store)
	f.store.PutSetting(context.Background(), models.SettingAlertTimeoutMinutes, 60)

	_, resp := f.do(t, "GET", "/api/monitoring/alerts", nil)
	var rows []timeoutView
	decode(t, resp.Data, &rows)
	if len(rows) != 1 || rows[0].MessageID != "old" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestMonitoring_MessagesPaged(t *testing.T) {
	f := newFixture(t)
	seedMessages(t, f.store)

	_, resp := f.do(t, "GET", "/api/monitoring/messages?limit=3", nil)
	var page1 []messageView
	decode(t, resp.Data, &page1)
	if len(page1) != 3 || page1[0].ID != "new" || page1[0].GroupName != "Support" {
		t.Fatalf("page 1 = %+v", page1)
	}

	_, resp = f.do(t, "GET", "/api/monitoring/messages?limit=3&page=2", nil)
	var page2 []messageView
	decode(t, resp.Data, &page2)
	if len(page2) != 1 || page2[0].ID != "done" || page2[0].ReplyStatus != models.ReplyReplied {
		t.Errorf("page 2 = %+v", page2)
	}

	if code, _ := f.do(t, "GET", "/api/monitoring/messages?page=0", nil); code != http.StatusBadRequest {
		t.Errorf("page=0 code = %d", code)
	}
}
