package registry

import (
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mcnijman/go-emailaddress"
)

// Default window for randomly assigned due dates, in days from now.
const (
	DefaultDueDaysMin = 1
	DefaultDueDaysMax = 30
)

// Registry is the in-memory store of all users and tasks. Identifiers are
// assigned sequentially starting at 1 and never reused within a process
// lifetime. The registry is not safe for concurrent use; callers must
// serialize access externally.
type Registry struct {
	users     map[int]*User
	tasks     map[int]*Task
	userOrder []int
	taskOrder []int

	nextUserID int
	nextTaskID int

	logger     *log.Logger
	now        func() time.Time
	rng        *rand.Rand
	dueDaysMin int
	dueDaysMax int
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger the registry reports operations on.
func WithLogger(logger *log.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRand sets the random source used by AssignDueDates.
func WithRand(rng *rand.Rand) Option {
	return func(r *Registry) {
		if rng != nil {
			r.rng = rng
		}
	}
}

// WithDueWindow sets the inclusive range of days ahead that AssignDueDates
// draws from. Invalid windows are ignored.
func WithDueWindow(minDays, maxDays int) Option {
	return func(r *Registry) {
		if minDays >= 0 && maxDays >= minDays {
			r.dueDaysMin = minDays
			r.dueDaysMax = maxDays
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		users:      make(map[int]*User),
		tasks:      make(map[int]*Task),
		nextUserID: 1,
		nextTaskID: 1,
		logger:     log.Default(),
		now:        func() time.Time { return time.Now().UTC() },
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		dueDaysMin: DefaultDueDaysMin,
		dueDaysMax: DefaultDueDaysMax,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddUser validates the input, allocates the next user id, registers the
// user and returns it. The email must parse as an address (which implies
// the "@" the flat file format relies on); the name must be non-empty.
func (r *Registry) AddUser(name, email string) (*User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Field: "name", Err: errors.New("must not be empty")}
	}
	if _, err := emailaddress.Parse(strings.TrimSpace(email)); err != nil {
		return nil, &ValidationError{Field: "email", Err: err}
	}

	user := &User{
		ID:        r.nextUserID,
		Name:      name,
		Email:     email,
		CreatedAt: r.now(),
	}
	r.users[user.ID] = user
	r.userOrder = append(r.userOrder, user.ID)
	r.nextUserID++

	r.logger.Info("added user", "id", user.ID, "name", user.Name)
	return user, nil
}

// AddTask allocates the next task id and registers a pending task owned by
// ownerID. Unknown owners are rejected with a NotFoundError. An unknown
// priority is coerced to low with a warning rather than an error.
func (r *Registry) AddTask(title, description, priority string, ownerID int) (*Task, error) {
	if _, ok := r.users[ownerID]; !ok {
		return nil, &NotFoundError{Kind: "user", ID: ownerID}
	}

	p, ok := NormalizePriority(priority)
	if !ok {
		r.logger.Warn("unknown priority, defaulting to low", "priority", priority)
	}

	task := &Task{
		ID:          r.nextTaskID,
		Title:       title,
		Description: description,
		Priority:    p,
		Status:      StatusPending,
		OwnerID:     ownerID,
		CreatedAt:   r.now(),
	}
	r.tasks[task.ID] = task
	r.taskOrder = append(r.taskOrder, task.ID)
	r.nextTaskID++

	r.logger.Info("added task", "id", task.ID, "title", task.Title, "owner", ownerID)
	return task, nil
}

// AssignDueDates gives every task without a due date one drawn uniformly
// at random from the configured window ahead of now. Tasks that already
// have a due date are left untouched, so the operation is re-runnable.
func (r *Registry) AssignDueDates() {
	for _, id := range r.taskOrder {
		task := r.tasks[id]
		if task.DueDate != nil {
			continue
		}
		days := r.dueDaysMin + r.rng.Intn(r.dueDaysMax-r.dueDaysMin+1)
		due := r.now().AddDate(0, 0, days)
		task.DueDate = &due
		r.logger.Debug("assigned due date", "task", task.ID, "days", days)
	}
}

// ListTasks returns tasks in insertion order. An empty status returns all
// tasks; otherwise the match is case-insensitive. The returned pointers
// are the registry's live tasks, not copies.
func (r *Registry) ListTasks(status string) []*Task {
	tasks := make([]*Task, 0, len(r.taskOrder))
	for _, id := range r.taskOrder {
		task := r.tasks[id]
		if status != "" && !strings.EqualFold(status, string(task.Status)) {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// Users returns all users in insertion order.
func (r *Registry) Users() []*User {
	users := make([]*User, 0, len(r.userOrder))
	for _, id := range r.userOrder {
		users = append(users, r.users[id])
	}
	return users
}

// User returns a user by id.
func (r *Registry) User(id int) (*User, bool) {
	user, ok := r.users[id]
	return user, ok
}

// Task returns a task by id.
func (r *Registry) Task(id int) (*Task, bool) {
	task, ok := r.tasks[id]
	return task, ok
}

// MarkTaskDone sets the task's status to done. Marking an already done
// task is a no-op, not an error.
func (r *Registry) MarkTaskDone(id int) error {
	task, ok := r.tasks[id]
	if !ok {
		return &NotFoundError{Kind: "task", ID: id}
	}
	task.Status = StatusDone
	r.logger.Info("task marked done", "id", id)
	return nil
}

// Report holds aggregate counts derived from current task statuses.
type Report struct {
	Total   int `json:"total"`
	Done    int `json:"done"`
	Pending int `json:"pending"`
}

// Report counts tasks by status. Pure query, no side effects.
func (r *Registry) Report() Report {
	report := Report{Total: len(r.tasks)}
	for _, task := range r.tasks {
		if task.Done() {
			report.Done++
		}
	}
	report.Pending = report.Total - report.Done
	return report
}
