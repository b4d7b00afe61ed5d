package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// fileDocument mirrors the on-disk layout: users and tasks keyed by the
// string form of their integer ids.
type fileDocument struct {
	Users map[string]userRecord `json:"users"`
	Tasks map[string]taskRecord `json:"tasks"`
}

type userRecord struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type taskRecord struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	OwnerID     int     `json:"owner_id"`
	Status      string  `json:"status"`
	DueDate     *string `json:"due_date"`
}

// Due dates are written as RFC 3339. Files written by older tooling carry
// zone-less ISO-8601 timestamps, which loading also accepts.
var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func parseDueDate(s string) (time.Time, error) {
	for _, layout := range dueDateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// SaveToFile serializes the registry and writes it to path with 2-space
// indentation, overwriting any existing file.
func (r *Registry) SaveToFile(path string) error {
	doc := fileDocument{
		Users: make(map[string]userRecord, len(r.users)),
		Tasks: make(map[string]taskRecord, len(r.tasks)),
	}
	for id, user := range r.users {
		doc.Users[strconv.Itoa(id)] = userRecord{Name: user.Name, Email: user.Email}
	}
	for id, task := range r.tasks {
		rec := taskRecord{
			Title:       task.Title,
			Description: task.Description,
			Priority:    string(task.Priority),
			OwnerID:     task.OwnerID,
			Status:      string(task.Status),
		}
		if task.DueDate != nil {
			due := task.DueDate.Format(time.RFC3339Nano)
			rec.DueDate = &due
		}
		doc.Tasks[strconv.Itoa(id)] = rec
	}

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}

	// Add trailing newline
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}

	r.logger.Info("saved registry", "path", path, "users", len(r.users), "tasks", len(r.tasks))
	return nil
}

// LoadFromFile reads a registry file and replaces the in-memory user and
// task collections wholesale. A missing file is a logged no-op. Records
// that cannot be fully reconstructed are degraded rather than failing the
// load: tasks with an unknown owner are skipped, unparsable due dates are
// dropped, a missing status defaults to pending. After a successful load
// the id counters continue one past the highest loaded id.
func (r *Registry) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Warn("no saved registry found", "path", path)
			return nil
		}
		return &PersistenceError{Op: "load", Path: path, Err: err}
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return &PersistenceError{Op: "load", Path: path, Err: err}
	}

	now := r.now()

	users := make(map[int]*User, len(doc.Users))
	userOrder := make([]int, 0, len(doc.Users))
	for key, rec := range doc.Users {
		id, err := strconv.Atoi(key)
		if err != nil || id < 1 {
			r.logger.Error("skipping user with invalid id", "key", key)
			continue
		}
		users[id] = &User{ID: id, Name: rec.Name, Email: rec.Email, CreatedAt: now}
		userOrder = append(userOrder, id)
	}
	sort.Ints(userOrder)

	tasks := make(map[int]*Task, len(doc.Tasks))
	taskOrder := make([]int, 0, len(doc.Tasks))
	for key, rec := range doc.Tasks {
		id, err := strconv.Atoi(key)
		if err != nil || id < 1 {
			r.logger.Error("skipping task with invalid id", "key", key)
			continue
		}
		if _, ok := users[rec.OwnerID]; !ok {
			r.logger.Error("skipping task with unknown owner", "task", key, "owner_id", rec.OwnerID)
			continue
		}

		priority, ok := NormalizePriority(rec.Priority)
		if !ok {
			r.logger.Warn("unknown priority in file, defaulting to low", "task", key, "priority", rec.Priority)
		}
		status := StatusPending
		if rec.Status != "" {
			status = Status(strings.ToLower(rec.Status))
		}

		task := &Task{
			ID:          id,
			Title:       rec.Title,
			Description: rec.Description,
			Priority:    priority,
			Status:      status,
			OwnerID:     rec.OwnerID,
			CreatedAt:   now,
		}
		if rec.DueDate != nil && *rec.DueDate != "" {
			due, err := parseDueDate(*rec.DueDate)
			if err != nil {
				r.logger.Error("dropping unparsable due date", "task", key, "due_date", *rec.DueDate)
			} else {
				task.DueDate = &due
			}
		}
		tasks[id] = task
		taskOrder = append(taskOrder, id)
	}
	sort.Ints(taskOrder)

	r.users = users
	r.userOrder = userOrder
	r.tasks = tasks
	r.taskOrder = taskOrder

	// Resynchronize the counters so ids assigned after a load cannot
	// collide with loaded ids.
	r.nextUserID = nextID(userOrder)
	r.nextTaskID = nextID(taskOrder)

	r.logger.Info("loaded registry", "path", path, "users", len(users), "tasks", len(tasks))
	return nil
}

// nextID returns one past the highest id in a sorted ascending slice.
func nextID(ids []int) int {
	if len(ids) == 0 {
		return 1
	}
	return ids[len(ids)-1] + 1
}

// ValidationOptions controls registry file validation.
type ValidationOptions struct {
	// SchemaPath is the path to the JSON Schema file.
	// If empty, validation uses only minimal fallback checks.
	SchemaPath string
}

// ValidationResult contains validation results.
type ValidationResult struct {
	Valid      bool
	Errors     []error
	Warnings   []string
	UsedSchema bool // true if JSON Schema validation was performed
}

// ValidateFile validates a registry file on disk. It tries JSON Schema
// validation when a schema path is given and falls back to minimal checks
// when the schema is unavailable.
func ValidateFile(path string, opts ValidationOptions) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Path: path, Err: err}
	}

	result := &ValidationResult{
		Valid:    true,
		Errors:   make([]error, 0),
		Warnings: make([]string, 0),
	}

	if opts.SchemaPath != "" {
		if validateWithSchema(result, data, opts.SchemaPath); result.UsedSchema {
			return result, nil
		}
		result.Warnings = append(result.Warnings, "JSON Schema validation not available, using minimal checks")
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, &ValidationError{Err: err})
		return result, nil
	}
	validateMinimal(result, &doc)
	return result, nil
}

// validateMinimal performs minimal structural checks without JSON Schema.
func validateMinimal(result *ValidationResult, doc *fileDocument) {
	fail := func(field string, format string, args ...any) {
		result.Valid = false
		result.Errors = append(result.Errors, &ValidationError{
			Field: field,
			Err:   fmt.Errorf(format, args...),
		})
	}

	userIDs := make(map[int]bool, len(doc.Users))
	for key, rec := range doc.Users {
		field := "users." + key
		id, err := strconv.Atoi(key)
		if err != nil || id < 1 {
			fail(field, "key must be a positive integer")
			continue
		}
		userIDs[id] = true
		if rec.Name == "" {
			fail(field+".name", "missing required field")
		}
		if !strings.Contains(rec.Email, "@") {
			fail(field+".email", "must contain @")
		}
	}

	for key, rec := range doc.Tasks {
		field := "tasks." + key
		if id, err := strconv.Atoi(key); err != nil || id < 1 {
			fail(field, "key must be a positive integer")
			continue
		}
		if rec.Title == "" {
			fail(field+".title", "missing required field")
		}
		if _, ok := NormalizePriority(rec.Priority); !ok {
			fail(field+".priority", "invalid priority %q, must be one of: low, medium, high", rec.Priority)
		}
		if _, ok := ParseStatus(rec.Status); !ok {
			fail(field+".status", "invalid status %q, must be one of: pending, done", rec.Status)
		}
		if !userIDs[rec.OwnerID] {
			fail(field+".owner_id", "unknown user %d", rec.OwnerID)
		}
		if rec.DueDate != nil && *rec.DueDate != "" {
			if _, err := parseDueDate(*rec.DueDate); err != nil {
				fail(field+".due_date", "%v", err)
			}
		}
	}
}

// validateWithSchema attempts JSON Schema validation. It sets UsedSchema
// only when the schema could be compiled; otherwise it records a warning
// and leaves the caller to fall back to minimal checks.
func validateWithSchema(result *ValidationResult, data []byte, schemaPath string) {
	absPath, err := filepath.Abs(schemaPath)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("invalid schema path: %v", err))
		return
	}

	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("schema file not found: %s", absPath))
		} else {
			result.Warnings = append(result.Warnings, fmt.Sprintf("failed to read schema file: %v", err))
		}
		return
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	schema, err := compiler.Compile(absPath)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("invalid schema file: %v", err))
		return
	}

	result.UsedSchema = true

	var fileObj interface{}
	if err := json.Unmarshal(data, &fileObj); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, &ValidationError{Err: err})
		return
	}

	if err := schema.Validate(fileObj); err != nil {
		result.Valid = false
		appendSchemaErrors(result, err)
	}
}

func appendSchemaErrors(result *ValidationResult, err error) {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		result.Errors = append(result.Errors, err)
		return
	}
	collectSchemaErrors(result, ve)
}

func collectSchemaErrors(result *ValidationResult, err *jsonschema.ValidationError) {
	if err == nil {
		return
	}
	if len(err.Causes) == 0 {
		result.Errors = append(result.Errors, &ValidationError{
			Field: jsonPointerToField(err.InstanceLocation),
			Err:   fmt.Errorf("%s", err.Message),
		})
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(result, cause)
	}
}

func jsonPointerToField(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "#")
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}

	parts := strings.Split(ptr, "/")
	for i, part := range parts {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		parts[i] = part
	}
	return strings.Join(parts, ".")
}
