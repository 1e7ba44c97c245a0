package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// run executes the root command with args and returns its combined output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// testConfig writes a config pointing at a fresh SQLite file and returns its path.
func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "signalbox.yaml")
	content := fmt.Sprintf("database:\n  driver: sqlite\n  path: %s\ndigest:\n  enabled: false\n", filepath.Join(dir, "sb.db"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// initConfig is testConfig with the database already initialized.
func initConfig(t *testing.T) string {
	t.Helper()
	path := testConfig(t)
	if out, err := run(t, "db", "init", "--config", path); err != nil {
		t.Fatalf("db init: %v\n%s", err, out)
	}
	return path
}

// --- Version tests ---

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "sb dev") {
		t.Errorf("expected output to contain 'sb dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "sb 1.0.0") || !strings.Contains(out, "built: 2026-01-01") {
		t.Errorf("unexpected version output: %s", out)
	}
}

func TestRootCmdHelp(t *testing.T) {
	out, err := run(t, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, sub := range []string{"db", "serve", "sweep", "digest", "task", "term", "group"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q, got: %s", sub, out)
		}
	}
}

func TestExecute_ReturnsOneOnError(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"no-such-command"})
	if code := execute(cmd); code != 1 {
		t.Errorf("execute = %d, want 1", code)
	}
}

// --- DB tests ---

func TestDBInitCmd_Help(t *testing.T) {
	out, err := run(t, "db", "init", "--help")
	if err != nil {
		t.Fatalf("db init --help failed: %v", err)
	}
	if !strings.Contains(out, "--config") || !strings.Contains(out, "signalbox.yaml") {
		t.Errorf("expected help to show the config flag and default, got: %s", out)
	}
}

func TestDBInitCmd_MissingConfig(t *testing.T) {
	_, err := run(t, "db", "init", "--config", "/nonexistent/signalbox.yaml")
	if err == nil {
		t.Fatal("expected error for missing config")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want load config", err)
	}
}

func TestDBInitCmd_Idempotent(t *testing.T) {
	path := testConfig(t)
	for i := 0; i < 2; i++ {
		out, err := run(t, "db", "init", "--config", path)
		if err != nil {
			t.Fatalf("db init #%d: %v", i+1, err)
		}
		if !strings.Contains(out, "initialized successfully") {
			t.Errorf("unexpected output: %s", out)
		}
	}
	out, err := run(t, "term", "list", "--config", path)
	if err != nil {
		t.Fatalf("term list: %v", err)
	}
	if n := strings.Count(out, "refund"); n != 1 {
		t.Errorf("seeded term listed %d times, want 1:\n%s", n, out)
	}
}

// --- Term tests ---

func TestTermAddListRemove(t *testing.T) {
	path := initConfig(t)

	out, err := run(t, "term", "add", "chargeback", "--severity", "1", "--config", path)
	if err != nil {
		t.Fatalf("term add: %v", err)
	}
	if !strings.Contains(out, "chargeback (severity 1)") {
		t.Errorf("unexpected add output: %s", out)
	}

	var id int
	if _, err := fmt.Sscanf(out, "Added term %d:", &id); err != nil {
		t.Fatalf("parse term id from %q: %v", out, err)
	}

	out, err = run(t, "term", "list", "--config", path)
	if err != nil {
		t.Fatalf("term list: %v", err)
	}
	if !strings.Contains(out, "chargeback") {
		t.Errorf("expected new term in list, got: %s", out)
	}

	if _, err := run(t, "term", "rm", fmt.Sprint(id), "--config", path); err != nil {
		t.Fatalf("term rm: %v", err)
	}
	out, _ = run(t, "term", "list", "--config", path)
	if strings.Contains(out, "chargeback") {
		t.Errorf("term still listed after rm: %s", out)
	}
}

func TestTermAdd_Duplicate(t *testing.T) {
	path := initConfig(t)
	if _, err := run(t, "term", "add", "refund", "--config", path); err == nil {
		t.Fatal("expected duplicate error for seeded term")
	}
}

func TestTermAdd_BadSeverity(t *testing.T) {
	path := initConfig(t)
	_, err := run(t, "term", "add", "x", "--severity", "7", "--config", path)
	if err == nil || !strings.Contains(err.Error(), "severity") {
		t.Fatalf("err = %v, want severity error", err)
	}
}

func TestTermRemove_InvalidID(t *testing.T) {
	_, err := run(t, "term", "rm", "abc")
	if err == nil || !strings.Contains(err.Error(), "invalid term id") {
		t.Fatalf("err = %v, want invalid term id", err)
	}
}

func TestTermRemove_NotFound(t *testing.T) {
	path := initConfig(t)
	if _, err := run(t, "term", "rm", "9999", "--config", path); err == nil {
		t.Fatal("expected not found error")
	}
}

// --- Group tests ---

func TestGroupList_Empty(t *testing.T) {
	path := initConfig(t)
	out, err := run(t, "group", "list", "--config", path)
	if err != nil {
		t.Fatalf("group list: %v", err)
	}
	if !strings.Contains(out, "No groups found.") {
		t.Errorf("unexpected output: %s", out)
	}
}

// --- Sweep and digest tests ---

func TestSweepCmd_EmptyStore(t *testing.T) {
	path := initConfig(t)
	out, err := run(t, "sweep", "--config", path)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !strings.Contains(out, "Escalated: 0") || !strings.Contains(out, "Reminded: 0") {
		t.Errorf("unexpected sweep output: %s", out)
	}
}

func TestDigestCmd_NoGroups(t *testing.T) {
	path := initConfig(t)
	out, err := run(t, "digest", "--config", path)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if !strings.Contains(out, "Digest sent to 0 groups") {
		t.Errorf("unexpected digest output: %s", out)
	}
}

// --- Task tests ---

func TestTaskPush_InvalidID(t *testing.T) {
	_, err := run(t, "task", "push", "0")
	if err == nil || !strings.Contains(err.Error(), "invalid task id") {
		t.Fatalf("err = %v, want invalid task id", err)
	}
}

func TestTaskPush_RequiresArg(t *testing.T) {
	if _, err := run(t, "task", "push"); err == nil {
		t.Fatal("expected error without task id")
	}
}

func TestTaskPush_NotFound(t *testing.T) {
	path := initConfig(t)
	_, err := run(t, "task", "push", "42", "--config", path)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestTaskList_Empty(t *testing.T) {
	path := initConfig(t)
	out, err := run(t, "task", "list", "--config", path)
	if err != nil {
		t.Fatalf("task list: %v", err)
	}
	if !strings.Contains(out, "No tasks found.") {
		t.Errorf("unexpected output: %s", out)
	}
}
