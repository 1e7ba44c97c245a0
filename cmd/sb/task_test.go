package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/db"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/store"
)

// seedTask inserts an active group with callback and one open task.
func seedTask(t *testing.T, configPath, callback string) uint {
	t.Helper()
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close(gormDB)

	st := store.New(gormDB)
	ctx := context.Background()
	if err := st.CreateGroup(ctx, &models.Group{ID: "g1", Name: "Ops", Active: true, CallbackURL: callback}); err != nil {
		t.Fatalf("create group: %v", err)
	}
	task := &models.Task{GroupID: "g1", Content: "ship the report", Assignee: "alice"}
	if err := st.CreateTask(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task.ID
}

func TestTaskPush_DeliversToCallback(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	path := initConfig(t)
	id := seedTask(t, path, srv.URL)

	out, err := run(t, "task", "push", fmt.Sprint(id), "--content", "please follow up", "--config", path)
	if err != nil {
		t.Fatalf("task push: %v\n%s", err, out)
	}
	if !strings.Contains(out, fmt.Sprintf("sent for task %d", id)) {
		t.Errorf("unexpected output: %s", out)
	}
	if hits.Load() != 1 {
		t.Errorf("callback hits = %d, want 1", hits.Load())
	}
}

func TestTaskList_ShowsSeededTask(t *testing.T) {
	path := initConfig(t)
	seedTask(t, path, "")

	out, err := run(t, "task", "list", "--group", "g1", "--config", path)
	if err != nil {
		t.Fatalf("task list: %v", err)
	}
	if !strings.Contains(out, "ship the report") || !strings.Contains(out, "alice") {
		t.Errorf("expected task row, got: %s", out)
	}

	out, _ = run(t, "group", "list", "--config", path)
	if !strings.Contains(out, "Ops") {
		t.Errorf("expected group row, got: %s", out)
	}
}
