// Package cmd provides tests for CLI command handlers.
package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/nibzard/taskman/internal/registry"
)

// chdir moves into a fresh temp directory so commands resolve the
// registry file there.
func chdir(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(oldWd) })
	return tmpDir
}

func loadFile(t *testing.T, path string) *registry.Registry {
	t.Helper()
	reg := registry.New(registry.WithLogger(log.New(io.Discard)))
	if err := reg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile(%q) error = %v", path, err)
	}
	return reg
}

// TestRun tests the main Run function.
func TestRun(t *testing.T) {
	t.Run("shows help with --help flag", func(t *testing.T) {
		ctx := context.Background()
		if err := Run(ctx, []string{"--help"}); err != nil {
			t.Errorf("expected no error with --help, got %v", err)
		}
	})

	t.Run("shows help with help command", func(t *testing.T) {
		ctx := context.Background()
		if err := Run(ctx, []string{"help"}); err != nil {
			t.Errorf("expected no error with help command, got %v", err)
		}
	})

	t.Run("shows version with --version flag", func(t *testing.T) {
		ctx := context.Background()
		if err := Run(ctx, []string{"--version"}); err != nil {
			t.Errorf("expected no error with --version, got %v", err)
		}
	})

	t.Run("unknown command returns error", func(t *testing.T) {
		chdir(t)
		ctx := context.Background()
		err := Run(ctx, []string{"unknown-command"})
		if err == nil {
			t.Fatal("expected error for unknown command, got nil")
		}
		if !strings.Contains(err.Error(), "unknown command") {
			t.Errorf("expected 'unknown command' error, got %v", err)
		}
	})

	t.Run("report on missing registry is empty", func(t *testing.T) {
		chdir(t)
		ctx := context.Background()
		if err := Run(ctx, []string{"report"}); err != nil {
			t.Errorf("report on missing registry: %v", err)
		}
	})
}

func TestDemoCommand(t *testing.T) {
	tmpDir := chdir(t)
	ctx := context.Background()

	if err := Run(ctx, []string{"demo"}); err != nil {
		t.Fatalf("demo error = %v", err)
	}

	reg := loadFile(t, filepath.Join(tmpDir, "tasks.json"))

	report := reg.Report()
	if report.Total != 3 || report.Done != 1 || report.Pending != 2 {
		t.Errorf("report = %+v, want total=3 done=1 pending=2", report)
	}
	if len(reg.Users()) != 2 {
		t.Errorf("users = %d, want 2", len(reg.Users()))
	}

	task, ok := reg.Task(2)
	if !ok {
		t.Fatal("task 2 not found")
	}
	if task.Title != "Plan event" || !task.Done() {
		t.Errorf("task 2 = %q status %s, want Plan event done", task.Title, task.Status)
	}
	for _, task := range reg.ListTasks("") {
		if task.DueDate == nil {
			t.Errorf("task %d has no due date", task.ID)
		}
	}
}

func TestMutatingCommandsRoundTrip(t *testing.T) {
	tmpDir := chdir(t)
	ctx := context.Background()
	path := filepath.Join(tmpDir, "tasks.json")

	if err := Run(ctx, []string{"add-user", "-name", "Carol", "-email", "carol@example.com"}); err != nil {
		t.Fatalf("add-user error = %v", err)
	}
	if err := Run(ctx, []string{"add-task", "-title", "Write docs", "-priority", "low", "-owner", "1"}); err != nil {
		t.Fatalf("add-task error = %v", err)
	}
	if err := Run(ctx, []string{"done", "1"}); err != nil {
		t.Fatalf("done error = %v", err)
	}
	if err := Run(ctx, []string{"assign"}); err != nil {
		t.Fatalf("assign error = %v", err)
	}

	reg := loadFile(t, path)
	report := reg.Report()
	if report.Total != 1 || report.Done != 1 {
		t.Errorf("report = %+v, want total=1 done=1", report)
	}
	task, ok := reg.Task(1)
	if !ok {
		t.Fatal("task 1 not found")
	}
	if task.OwnerID != 1 || task.Priority != registry.PriorityLow {
		t.Errorf("task = owner %d priority %s, want owner 1 priority low", task.OwnerID, task.Priority)
	}
}

func TestAddUserRejectsBadEmail(t *testing.T) {
	chdir(t)
	ctx := context.Background()

	err := Run(ctx, []string{"add-user", "-name", "Carol", "-email", "not-an-email"})
	if err == nil {
		t.Fatal("expected error for invalid email, got nil")
	}
	if _, statErr := os.Stat("tasks.json"); statErr == nil {
		t.Error("registry file written despite failed add-user")
	}
}

func TestDoneRejectsBadArgs(t *testing.T) {
	chdir(t)
	ctx := context.Background()

	if err := Run(ctx, []string{"done"}); err == nil {
		t.Error("expected error for missing task id")
	}
	if err := Run(ctx, []string{"done", "abc"}); err == nil {
		t.Error("expected error for non-numeric task id")
	}
	if err := Run(ctx, []string{"done", "42"}); err == nil {
		t.Error("expected error for unknown task id")
	}
}

func TestInitCommand(t *testing.T) {
	tmpDir := chdir(t)
	ctx := context.Background()

	if err := Run(ctx, []string{"init"}); err != nil {
		t.Fatalf("init error = %v", err)
	}

	for _, name := range []string{"tasks.json", "tasks.schema.json", "taskman.toml"} {
		if _, err := os.Stat(filepath.Join(tmpDir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}

	// Starter registry must load and validate cleanly.
	reg := loadFile(t, filepath.Join(tmpDir, "tasks.json"))
	if report := reg.Report(); report.Total != 0 {
		t.Errorf("starter registry report = %+v, want empty", report)
	}

	// A second init must not overwrite.
	marker := []byte(`{"users": {}, "tasks": {}}`)
	if err := os.WriteFile(filepath.Join(tmpDir, "tasks.json"), marker, 0644); err != nil {
		t.Fatal(err)
	}
	if err := Run(ctx, []string{"init"}); err != nil {
		t.Fatalf("second init error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(tmpDir, "tasks.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(marker) {
		t.Error("second init overwrote an existing file")
	}
}

func TestValidateCommand(t *testing.T) {
	chdir(t)
	ctx := context.Background()

	if err := Run(ctx, []string{"init"}); err != nil {
		t.Fatalf("init error = %v", err)
	}
	if err := Run(ctx, []string{"validate"}); err != nil {
		t.Errorf("validate on starter registry: %v", err)
	}

	bad := `{
  "users": {"1": {"name": "A", "email": "a@example.com"}},
  "tasks": {"1": {"title": "T", "description": "", "priority": "urgent", "status": "pending", "owner_id": 1, "due_date": null}}
}`
	if err := os.WriteFile("bad.json", []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Run(ctx, []string{"validate", "bad.json"}); err == nil {
		t.Error("expected validation failure for bad priority")
	}
}

func TestDoctorCommand(t *testing.T) {
	chdir(t)
	ctx := context.Background()

	if err := Run(ctx, []string{"init"}); err != nil {
		t.Fatalf("init error = %v", err)
	}
	if err := Run(ctx, []string{"doctor"}); err != nil {
		t.Errorf("doctor on initialized project: %v", err)
	}
}
