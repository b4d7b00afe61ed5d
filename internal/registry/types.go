package registry

import (
	"errors"
	"strings"
	"time"
)

// Status represents a task status.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// ParseStatus normalizes a status string. The empty string is returned
// unchanged so callers can use it as "no filter".
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", true
	case StatusPending:
		return StatusPending, true
	case StatusDone:
		return StatusDone, true
	default:
		return Status(s), false
	}
}

// Priority represents a task priority.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// NormalizePriority lowercases the input and reports whether it is one of
// the known priorities. The caller decides what to do with an unknown
// value; the registry coerces it to PriorityLow.
func NormalizePriority(s string) (Priority, bool) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, true
	default:
		return PriorityLow, false
	}
}

// User represents a registered user. Users are created only through
// Registry.AddUser, which assigns the id.
type User struct {
	ID        int
	Name      string
	Email     string
	CreatedAt time.Time
}

// Task represents a single task. Tasks are created only through
// Registry.AddTask. OwnerID is a non-owning reference into the registry's
// user collection, fixed at creation.
type Task struct {
	ID          int
	Title       string
	Description string
	Priority    Priority
	Status      Status
	OwnerID     int
	CreatedAt   time.Time
	DueDate     *time.Time
}

// Done reports whether the task has been completed.
func (t *Task) Done() bool {
	return t.Status == StatusDone
}

// Overdue reports whether the task has a due date in the past and is still
// pending.
func (t *Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && !t.Done()
}

// SetDueDate sets the due date to the given number of days from now.
// Negative offsets are rejected.
func (t *Task) SetDueDate(days int) error {
	if days < 0 {
		return &ValidationError{Field: "due_date", Err: errors.New("days from now must not be negative")}
	}
	due := time.Now().UTC().AddDate(0, 0, days)
	t.DueDate = &due
	return nil
}
