package registry

import (
	"errors"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

var testNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestRegistry(opts ...Option) *Registry {
	base := []Option{
		WithLogger(log.New(io.Discard)),
		WithNow(func() time.Time { return testNow }),
		WithRand(rand.New(rand.NewSource(1))),
	}
	return New(append(base, opts...)...)
}

func TestAddUser(t *testing.T) {
	t.Run("assigns sequential ids starting at 1", func(t *testing.T) {
		r := newTestRegistry()
		for i := 1; i <= 3; i++ {
			u, err := r.AddUser("Test", "test@example.com")
			if err != nil {
				t.Fatalf("AddUser failed: %v", err)
			}
			if u.ID != i {
				t.Errorf("user ID: got %d, want %d", u.ID, i)
			}
		}
		if got := len(r.Users()); got != 3 {
			t.Errorf("user count: got %d, want 3", got)
		}
	})

	t.Run("sets created_at from the clock", func(t *testing.T) {
		r := newTestRegistry()
		u, err := r.AddUser("Test", "test@example.com")
		if err != nil {
			t.Fatalf("AddUser failed: %v", err)
		}
		if !u.CreatedAt.Equal(testNow) {
			t.Errorf("CreatedAt: got %v, want %v", u.CreatedAt, testNow)
		}
	})

	t.Run("rejects invalid input without changing state", func(t *testing.T) {
		tests := []struct {
			name  string
			uname string
			email string
		}{
			{"email without at sign", "Test", "not-an-email"},
			{"empty email", "Test", ""},
			{"empty name", "", "test@example.com"},
			{"blank name", "   ", "test@example.com"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				r := newTestRegistry()
				_, err := r.AddUser(tt.uname, tt.email)
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("expected ValidationError, got %T", err)
				}
				if got := len(r.Users()); got != 0 {
					t.Errorf("user count after failed add: got %d, want 0", got)
				}
			})
		}
	})
}

func TestAddTask(t *testing.T) {
	t.Run("unknown owner fails with NotFoundError", func(t *testing.T) {
		r := newTestRegistry()
		_, err := r.AddTask("Task", "Desc", "low", 42)
		var nferr *NotFoundError
		if !errors.As(err, &nferr) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
		if nferr.Kind != "user" || nferr.ID != 42 {
			t.Errorf("NotFoundError = %+v, want user 42", nferr)
		}
		if got := len(r.ListTasks("")); got != 0 {
			t.Errorf("task count after failed add: got %d, want 0", got)
		}
	})

	t.Run("new tasks start pending", func(t *testing.T) {
		r := newTestRegistry()
		u, _ := r.AddUser("Test", "test@example.com")
		task, err := r.AddTask("Task", "Desc", "high", u.ID)
		if err != nil {
			t.Fatalf("AddTask failed: %v", err)
		}
		if task.Status != StatusPending {
			t.Errorf("status: got %s, want %s", task.Status, StatusPending)
		}
		if task.DueDate != nil {
			t.Errorf("due date: got %v, want nil", task.DueDate)
		}
		if task.OwnerID != u.ID {
			t.Errorf("owner: got %d, want %d", task.OwnerID, u.ID)
		}
	})

	t.Run("priority normalization", func(t *testing.T) {
		tests := []struct {
			input string
			want  Priority
		}{
			{"low", PriorityLow},
			{"MEDIUM", PriorityMedium},
			{"High", PriorityHigh},
			{"URGENT", PriorityLow},
			{"", PriorityLow},
		}
		r := newTestRegistry()
		u, _ := r.AddUser("Test", "test@example.com")
		for _, tt := range tests {
			t.Run(tt.input, func(t *testing.T) {
				task, err := r.AddTask("Task", "Desc", tt.input, u.ID)
				if err != nil {
					t.Fatalf("AddTask failed: %v", err)
				}
				if task.Priority != tt.want {
					t.Errorf("priority: got %s, want %s", task.Priority, tt.want)
				}
			})
		}
	})
}

func TestMarkTaskDone(t *testing.T) {
	t.Run("unknown id fails with NotFoundError", func(t *testing.T) {
		r := newTestRegistry()
		err := r.MarkTaskDone(99)
		var nferr *NotFoundError
		if !errors.As(err, &nferr) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	})

	t.Run("moves one task from pending to done", func(t *testing.T) {
		r := newTestRegistry()
		u, _ := r.AddUser("Test", "test@example.com")
		task, _ := r.AddTask("Task", "Desc", "low", u.ID)
		r.AddTask("Other", "Desc", "low", u.ID)

		before := r.Report()
		if err := r.MarkTaskDone(task.ID); err != nil {
			t.Fatalf("MarkTaskDone failed: %v", err)
		}
		after := r.Report()

		if after.Done != before.Done+1 {
			t.Errorf("done: got %d, want %d", after.Done, before.Done+1)
		}
		if after.Pending != before.Pending-1 {
			t.Errorf("pending: got %d, want %d", after.Pending, before.Pending-1)
		}
	})

	t.Run("idempotent on an already done task", func(t *testing.T) {
		r := newTestRegistry()
		u, _ := r.AddUser("Test", "test@example.com")
		task, _ := r.AddTask("Task", "Desc", "low", u.ID)

		if err := r.MarkTaskDone(task.ID); err != nil {
			t.Fatalf("MarkTaskDone failed: %v", err)
		}
		before := r.Report()
		if err := r.MarkTaskDone(task.ID); err != nil {
			t.Fatalf("second MarkTaskDone failed: %v", err)
		}
		if after := r.Report(); after != before {
			t.Errorf("report changed on repeat: got %+v, want %+v", after, before)
		}
	})
}

func TestListTasks(t *testing.T) {
	r := newTestRegistry()
	u, _ := r.AddUser("Test", "test@example.com")
	first, _ := r.AddTask("First", "Desc", "low", u.ID)
	second, _ := r.AddTask("Second", "Desc", "low", u.ID)
	r.MarkTaskDone(second.ID)

	t.Run("empty status returns all in insertion order", func(t *testing.T) {
		tasks := r.ListTasks("")
		if len(tasks) != 2 {
			t.Fatalf("task count: got %d, want 2", len(tasks))
		}
		if tasks[0].ID != first.ID || tasks[1].ID != second.ID {
			t.Errorf("order: got [%d %d], want [%d %d]", tasks[0].ID, tasks[1].ID, first.ID, second.ID)
		}
	})

	t.Run("status filter is case-insensitive", func(t *testing.T) {
		tasks := r.ListTasks("DONE")
		if len(tasks) != 1 || tasks[0].ID != second.ID {
			t.Fatalf("filtered tasks: got %v, want task %d", tasks, second.ID)
		}
	})

	t.Run("returns live references", func(t *testing.T) {
		tasks := r.ListTasks("pending")
		if len(tasks) != 1 {
			t.Fatalf("pending count: got %d, want 1", len(tasks))
		}
		tasks[0].Status = StatusDone
		if got := r.Report().Done; got != 2 {
			t.Errorf("done after mutating returned task: got %d, want 2", got)
		}
		tasks[0].Status = StatusPending
	})
}

func TestAssignDueDates(t *testing.T) {
	r := newTestRegistry(WithDueWindow(1, 30))
	u, _ := r.AddUser("Test", "test@example.com")
	withDue, _ := r.AddTask("Has due", "Desc", "low", u.ID)
	fixed := testNow.AddDate(0, 0, 5)
	withDue.DueDate = &fixed
	r.AddTask("No due", "Desc", "low", u.ID)
	r.AddTask("Also no due", "Desc", "low", u.ID)

	r.AssignDueDates()

	for _, task := range r.ListTasks("") {
		if task.DueDate == nil {
			t.Fatalf("task %d still has no due date", task.ID)
		}
		days := int(task.DueDate.Sub(testNow).Hours() / 24)
		if days < 1 || days > 30 {
			t.Errorf("task %d due %d days out, want 1-30", task.ID, days)
		}
	}
	if !withDue.DueDate.Equal(fixed) {
		t.Errorf("existing due date was overwritten: got %v, want %v", withDue.DueDate, fixed)
	}

	// Re-running must not move anything.
	snapshot := make(map[int]time.Time)
	for _, task := range r.ListTasks("") {
		snapshot[task.ID] = *task.DueDate
	}
	r.AssignDueDates()
	for _, task := range r.ListTasks("") {
		if !task.DueDate.Equal(snapshot[task.ID]) {
			t.Errorf("task %d due date moved on re-run", task.ID)
		}
	}
}

func TestSetDueDate(t *testing.T) {
	task := &Task{ID: 1, Status: StatusPending}
	if err := task.SetDueDate(-1); err == nil {
		t.Error("expected error for negative offset, got nil")
	}
	if task.DueDate != nil {
		t.Error("due date set despite error")
	}
	if err := task.SetDueDate(7); err != nil {
		t.Fatalf("SetDueDate failed: %v", err)
	}
	if task.DueDate == nil || !task.DueDate.After(time.Now().UTC().AddDate(0, 0, 6)) {
		t.Errorf("due date: got %v, want about 7 days out", task.DueDate)
	}
}

func TestReportScenario(t *testing.T) {
	// Empty store, one user, two tasks, first marked done.
	r := newTestRegistry()
	u, err := r.AddUser("X", "x@x.com")
	if err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	if _, err := r.AddTask("Task1", "Desc", "low", u.ID); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if _, err := r.AddTask("Task2", "Desc", "low", u.ID); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if err := r.MarkTaskDone(1); err != nil {
		t.Fatalf("MarkTaskDone failed: %v", err)
	}

	got := r.Report()
	want := Report{Total: 2, Done: 1, Pending: 1}
	if got != want {
		t.Errorf("report: got %+v, want %+v", got, want)
	}
}

func TestNormalizePriority(t *testing.T) {
	tests := []struct {
		input string
		want  Priority
		ok    bool
	}{
		{"low", PriorityLow, true},
		{"Low", PriorityLow, true},
		{"MEDIUM", PriorityMedium, true},
		{" high ", PriorityHigh, true},
		{"urgent", PriorityLow, false},
		{"", PriorityLow, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := NormalizePriority(tt.input)
			if got != tt.want || ok != tt.ok {
				t.Errorf("NormalizePriority(%q) = (%s, %v), want (%s, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestOverdue(t *testing.T) {
	due := testNow.AddDate(0, 0, -1)
	task := &Task{Status: StatusPending, DueDate: &due}
	if !task.Overdue(testNow) {
		t.Error("pending task past due date should be overdue")
	}
	task.Status = StatusDone
	if task.Overdue(testNow) {
		t.Error("done task should never be overdue")
	}
	task = &Task{Status: StatusPending}
	if task.Overdue(testNow) {
		t.Error("task without due date should not be overdue")
	}
}
