package digest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/signalbox/internal/db"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/notify"
	"github.com/zulandar/signalbox/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	gdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "digest.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close(gdb) })
	return store.New(gdb)
}

func seedGroup(t *testing.T, s *store.Store, id string, autoRemind bool, callback string) {
	t.Helper()
	g := &models.Group{ID: id, Name: "Group " + id, Active: true, Priority: 2, AutoRemind: autoRemind, CallbackURL: callback}
	if err := s.CreateGroup(context.Background(), g); err != nil {
		t.Fatalf("create group: %v", err)
	}
}

func seedTask(t *testing.T, s *store.Store, group, content, status string) *models.Task {
	t.Helper()
	tk := &models.Task{GroupID: group, Content: content, Status: status}
	if err := s.CreateTask(context.Background(), tk); err != nil {
		t.Fatalf("create task: %v", err)
	}
	return tk
}

func testScheduler(t *testing.T, s *store.Store, n notify.Notifier) *Scheduler {
	t.Helper()
	sc, err := NewScheduler(SchedulerOpts{Store: s, Notifier: n, Location: time.UTC})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return sc
}

// --- NewScheduler tests ---

func TestNewScheduler_Validation(t *testing.T) {
	s := testStore(t)
	if _, err := NewScheduler(SchedulerOpts{Notifier: notify.NewMock()}); err == nil {
		t.Error("expected error without store")
	}
	if _, err := NewScheduler(SchedulerOpts{Store: s}); err == nil {
		t.Error("expected error without notifier")
	}
	_, err := NewScheduler(SchedulerOpts{Store: s, Notifier: notify.NewMock(), Spec: "not a cron"})
	if err == nil || !strings.Contains(err.Error(), "digest: schedule") {
		t.Errorf("err = %v, want schedule error", err)
	}
}

func TestScheduler_StartStopNext(t *testing.T) {
	sc := testScheduler(t, testStore(t), notify.NewMock())
	sc.Start()
	sc.Start()
	next := sc.Next()
	if next.IsZero() || next.Hour() != 9 || next.Minute() != 0 {
		t.Errorf("Next = %v, want 09:00", next)
	}
	sc.Stop()
	sc.Stop()
}

func TestScheduler_RestartAfterStop(t *testing.T) {
	s := testStore(t)
	seedGroup(t, s, "g1", true, "http://cb/g1")
	seedTask(t, s, "g1", "write report", models.TaskInProgress)
	mock := notify.NewMock()
	sc := testScheduler(t, s, mock)

	sc.Start()
	sc.Stop()
	sc.Start()
	defer sc.Stop()

	if sc.Next().IsZero() {
		t.Error("Next is zero after restart")
	}
	sc.fire()
	if got := mock.SentCount(); got != 1 {
		t.Errorf("sent = %d after restart, want 1", got)
	}
}

// --- RunOnce tests ---

func TestRunOnce_OverdueFirstAndSkipsEmpty(t *testing.T) {
	s := testStore(t)
	seedGroup(t, s, "g1", true, "http://cb/g1")
	seedGroup(t, s, "g2", true, "http://cb/g2")
	seedGroup(t, s, "g3", false, "http://cb/g3")
	seedGroup(t, s, "g4", true, "")
	seedTask(t, s, "g1", "write report", models.TaskInProgress)
	seedTask(t, s, "g1", "pay vendor", models.TaskOverdue)
	seedTask(t, s, "g1", "old thing", models.TaskDone)
	seedTask(t, s, "g2", "closed", models.TaskDone)
	seedTask(t, s, "g3", "quiet group", models.TaskOverdue)
	seedTask(t, s, "g4", "no callback", models.TaskOverdue)

	mock := notify.NewMock()
	n, err := testScheduler(t, s, mock).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 || mock.SentCount() != 1 {
		t.Fatalf("sent = %d/%d, want 1", n, mock.SentCount())
	}
	sent, _ := mock.LastSent()
	if sent.Target != "http://cb/g1" {
		t.Errorf("target = %q", sent.Target)
	}
	text := sent.Message.Text
	if strings.Index(text, "pay vendor") > strings.Index(text, "write report") {
		t.Errorf("overdue should be listed first:\n%s", text)
	}
	if strings.Contains(text, "old thing") {
		t.Errorf("done tasks should be excluded:\n%s", text)
	}
	if sent.Message.Severity != notify.SeverityWarning {
		t.Errorf("severity = %q, want warning", sent.Message.Severity)
	}
}

func TestRunOnce_FailureContinues(t *testing.T) {
	s := testStore(t)
	seedGroup(t, s, "g1", true, "http://cb/g1")
	seedGroup(t, s, "g2", true, "http://cb/g2")
	seedTask(t, s, "g1", "a", models.TaskInProgress)
	seedTask(t, s, "g2", "b", models.TaskInProgress)

	mock := notify.NewMock()
	mock.FailTarget("http://cb/g1", errors.New("down"))
	n, err := testScheduler(t, s, mock).RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || len(mock.SentTo("http://cb/g2")) != 1 {
		t.Errorf("sent = %d, to g2 = %d", n, len(mock.SentTo("http://cb/g2")))
	}
}

// --- Build tests ---

func TestBuild_InProgressOnly(t *testing.T) {
	g := &models.Group{ID: "g1", Name: "Ops"}
	msg, ok := Build(g, []models.Task{{ID: 4, Content: "x", Status: models.TaskInProgress, Assignee: "amy", Deadline: "2024-06-01"}}, time.UTC)
	if !ok {
		t.Fatal("expected digest")
	}
	if strings.Contains(msg.Text, "Overdue") {
		t.Errorf("text = %q", msg.Text)
	}
	for _, want := range []string{"In progress (1)", "[#4] x", "@amy", "due 2024-06-01"} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("text missing %q: %q", want, msg.Text)
		}
	}
	if !strings.Contains(msg.Title, "Ops") || msg.Severity != notify.SeverityInfo {
		t.Errorf("msg = %+v", msg)
	}
}

func TestBuild_NothingOutstanding(t *testing.T) {
	if _, ok := Build(&models.Group{ID: "g"}, []models.Task{{Status: models.TaskDone}}, time.UTC); ok {
		t.Error("expected no digest for done-only tasks")
	}
	if _, ok := Build(&models.Group{ID: "g"}, nil, time.UTC); ok {
		t.Error("expected no digest for empty list")
	}
}
