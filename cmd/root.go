// Package cmd implements the CLI command structure for taskman.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nibzard/taskman/internal/config"
	"github.com/nibzard/taskman/internal/logging"
	"github.com/nibzard/taskman/internal/registry"
	"github.com/nibzard/taskman/internal/ui"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Run executes the taskman CLI.
func Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("taskman", flag.ContinueOnError)
	fs.Usage = func() {
		printUsage(fs, os.Stderr)
	}
	help := fs.Bool("help", false, "Show help")
	fs.BoolVar(help, "h", false, "Show help")
	showVersion := fs.Bool("version", false, "Show version")
	fs.BoolVar(showVersion, "v", false, "Show version")

	cfg, err := config.Load(fs, args)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *help {
		printUsage(fs, os.Stdout)
		return nil
	}
	if *showVersion {
		return versionCommand()
	}

	logger := newLogger(cfg)

	// Determine the subcommand. No args or a leading flag means "demo".
	subcommand := "demo"
	remainingArgs := fs.Args()
	if len(remainingArgs) > 0 && !strings.HasPrefix(remainingArgs[0], "-") {
		subcommand = remainingArgs[0]
		remainingArgs = remainingArgs[1:]
	}

	switch subcommand {
	case "demo":
		return demoCommand(cfg, logger, remainingArgs)
	case "add-user":
		return addUserCommand(cfg, logger, remainingArgs)
	case "add-task":
		return addTaskCommand(cfg, logger, remainingArgs)
	case "done":
		return doneCommand(cfg, logger, remainingArgs)
	case "assign":
		return assignCommand(cfg, logger, remainingArgs)
	case "ls":
		return lsCommand(cfg, logger, remainingArgs)
	case "report":
		return reportCommand(cfg, logger, remainingArgs)
	case "validate":
		return validateCommand(cfg, remainingArgs)
	case "init":
		return initCommand(cfg, remainingArgs)
	case "doctor":
		return doctorCommand(cfg, remainingArgs)
	case "tui":
		return tuiCommand(ctx, cfg, remainingArgs)
	case "version", "--version", "-v":
		return versionCommand()
	case "help", "--help", "-h":
		printUsage(fs, os.Stdout)
		return nil
	default:
		// An existing file path is treated as the registry file for demo.
		if fi, err := os.Stat(subcommand); err == nil && !fi.IsDir() {
			cfg.RegistryFile = subcommand
			return demoCommand(cfg, logger, remainingArgs)
		}
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", subcommand)
		printUsage(fs, os.Stderr)
		return fmt.Errorf("unknown command: %s", subcommand)
	}
}

// newLogger builds the process logger from config values.
func newLogger(cfg *config.Config) *log.Logger {
	return logging.New(logging.Options{
		Level:           cfg.LogLevel,
		Format:          cfg.LogFormat,
		ReportTimestamp: cfg.LogTimestamps,
		ReportCaller:    cfg.LogCaller,
		Prefix:          "taskman",
	})
}

// newRegistry builds a registry wired with config values.
func newRegistry(cfg *config.Config, logger *log.Logger) *registry.Registry {
	opts := []registry.Option{
		registry.WithLogger(logger),
		registry.WithDueWindow(cfg.DueDaysMin, cfg.DueDaysMax),
	}
	if cfg.Seed != 0 {
		opts = append(opts, registry.WithRand(rand.New(rand.NewSource(cfg.Seed))))
	}
	return registry.New(opts...)
}

// loadRegistry builds a registry and loads the configured file into it.
// A missing file is fine; the registry starts empty.
func loadRegistry(cfg *config.Config, logger *log.Logger) (*registry.Registry, error) {
	reg := newRegistry(cfg, logger)
	if err := reg.LoadFromFile(cfg.RegistryFile); err != nil {
		return nil, fmt.Errorf("loading registry: %w", err)
	}
	return reg, nil
}

// demoCommand populates sample data, prints the tasks and report, and
// saves the result.
func demoCommand(cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("taskman demo", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	reg := newRegistry(cfg, logger)

	alice, err := reg.AddUser("Alice", "alice@example.com")
	if err != nil {
		return err
	}
	bob, err := reg.AddUser("Bob", "bob@example.com")
	if err != nil {
		return err
	}

	type seedTask struct {
		title    string
		desc     string
		priority string
		owner    int
		dueDays  int
	}
	seeds := []seedTask{
		{"Finish report", "Quarterly financials", "high", alice.ID, 7},
		{"Plan event", "Company offsite", "medium", bob.ID, 3},
		{"Fix bug", "Crash on startup", "high", alice.ID, 2},
	}
	for _, s := range seeds {
		task, err := reg.AddTask(s.title, s.desc, s.priority, s.owner)
		if err != nil {
			return err
		}
		if err := task.SetDueDate(s.dueDays); err != nil {
			return err
		}
	}

	if err := reg.MarkTaskDone(2); err != nil {
		return err
	}
	reg.AssignDueDates()

	for _, task := range reg.ListTasks("") {
		printTask(task, reg, false)
	}
	fmt.Println()
	printReport(reg.Report())

	if err := reg.SaveToFile(cfg.RegistryFile); err != nil {
		return err
	}
	return nil
}

// addUserCommand adds a user to the registry file.
func addUserCommand(cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("taskman add-user", flag.ContinueOnError)
	name := fs.String("name", "", "User display name")
	email := fs.String("email", "", "User email address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	reg, err := loadRegistry(cfg, logger)
	if err != nil {
		return err
	}
	user, err := reg.AddUser(*name, *email)
	if err != nil {
		return err
	}
	if err := reg.SaveToFile(cfg.RegistryFile); err != nil {
		return err
	}
	fmt.Printf("Added user #%d: %s <%s>\n", user.ID, user.Name, user.Email)
	return nil
}

// addTaskCommand adds a task to the registry file.
func addTaskCommand(cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("taskman add-task", flag.ContinueOnError)
	title := fs.String("title", "", "Task title")
	desc := fs.String("desc", "", "Task description")
	priority := fs.String("priority", "medium", "Task priority (low|medium|high)")
	owner := fs.Int("owner", 0, "Owner user id")
	due := fs.Int("due", -1, "Due date offset in days from now (-1 = unset)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	reg, err := loadRegistry(cfg, logger)
	if err != nil {
		return err
	}
	task, err := reg.AddTask(*title, *desc, *priority, *owner)
	if err != nil {
		return err
	}
	if *due >= 0 {
		if err := task.SetDueDate(*due); err != nil {
			return err
		}
	}
	if err := reg.SaveToFile(cfg.RegistryFile); err != nil {
		return err
	}
	fmt.Printf("Added task #%d: %s (%s)\n", task.ID, task.Title, task.Priority)
	return nil
}

// doneCommand marks a task done in the registry file.
func doneCommand(cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("taskman done", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: taskman done <task-id>")
	}
	id, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid task id %q", fs.Arg(0))
	}

	reg, err := loadRegistry(cfg, logger)
	if err != nil {
		return err
	}
	if err := reg.MarkTaskDone(id); err != nil {
		return err
	}
	if err := reg.SaveToFile(cfg.RegistryFile); err != nil {
		return err
	}
	fmt.Printf("Marked task #%d done\n", id)
	return nil
}

// assignCommand assigns random due dates to tasks without one.
func assignCommand(cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("taskman assign", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	reg, err := loadRegistry(cfg, logger)
	if err != nil {
		return err
	}
	reg.AssignDueDates()
	if err := reg.SaveToFile(cfg.RegistryFile); err != nil {
		return err
	}
	return nil
}

// lsCommand lists tasks, optionally filtered by status.
func lsCommand(cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("taskman ls", flag.ContinueOnError)
	statusFilter := fs.String("status", "", "Filter by status (pending|done)")
	verbose := fs.Bool("v", false, "Show more details")
	if err := fs.Parse(args); err != nil {
		return err
	}

	remaining := fs.Args()
	if len(remaining) >= 1 && *statusFilter == "" {
		*statusFilter = remaining[0]
		remaining = remaining[1:]
	}
	if len(remaining) > 0 {
		return fmt.Errorf("unexpected arguments: %v", remaining)
	}

	reg, err := loadRegistry(cfg, logger)
	if err != nil {
		return err
	}
	tasks := reg.ListTasks(*statusFilter)
	if len(tasks) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}
	for _, task := range tasks {
		printTask(task, reg, *verbose)
	}
	return nil
}

// reportCommand prints task counts.
func reportCommand(cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("taskman report", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	reg, err := loadRegistry(cfg, logger)
	if err != nil {
		return err
	}
	printReport(reg.Report())
	return nil
}

// validateCommand validates a registry file against the schema.
func validateCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("taskman validate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	remaining := fs.Args()
	if len(remaining) > 1 {
		return fmt.Errorf("unexpected arguments: %v", remaining[1:])
	}
	path := cfg.RegistryFile
	if len(remaining) == 1 {
		path = remaining[0]
	}

	result, err := registry.ValidateFile(path, registry.ValidationOptions{SchemaPath: cfg.SchemaFile})
	if err != nil {
		return err
	}
	for _, w := range result.Warnings {
		fmt.Printf("⚠️  %s\n", w)
	}
	if result.Valid {
		fmt.Printf("✅ %s is valid\n", path)
		return nil
	}
	fmt.Printf("❌ %s is invalid:\n", path)
	for _, e := range result.Errors {
		fmt.Printf("   - %v\n", e)
	}
	return fmt.Errorf("validation failed")
}

// initCommand writes starter files, never overwriting existing ones.
func initCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("taskman init", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	starter := []struct {
		path string
		data []byte
	}{
		{cfg.RegistryFile, []byte("{\n  \"users\": {},\n  \"tasks\": {}\n}\n")},
		{cfg.SchemaFile, registry.BundledSchema()},
		{filepath.Join(cfg.ProjectRoot, "taskman.toml"), []byte(config.ExampleConfig())},
	}
	for _, f := range starter {
		if _, err := os.Stat(f.path); err == nil {
			fmt.Printf("⚠️  %s already exists, skipping\n", f.path)
			continue
		}
		if err := os.WriteFile(f.path, f.data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", f.path, err)
		}
		fmt.Printf("✅ Created %s\n", f.path)
	}
	return nil
}

// doctorCommand checks config and file validity.
func doctorCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("taskman doctor", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	// Reload with source tracking so the report can say where each
	// value came from.
	cws, err := config.LoadWithSources(flag.NewFlagSet("taskman doctor config", flag.ContinueOnError), nil)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Println("Taskman Doctor")
	fmt.Println("==============")
	fmt.Println()

	allOK := true

	fmt.Printf("Project root: %s\n", cfg.ProjectRoot)
	if _, err := os.Stat(cfg.ProjectRoot); err != nil {
		fmt.Printf("  ❌ Error: %v\n", err)
		allOK = false
	} else {
		fmt.Println("  ✅ OK")
	}
	fmt.Println()

	fmt.Println("Config:")
	if cfg.DueDaysMin >= 0 && cfg.DueDaysMax >= cfg.DueDaysMin {
		fmt.Printf("  ✅ Due window: %d-%d days\n", cfg.DueDaysMin, cfg.DueDaysMax)
	} else {
		fmt.Printf("  ❌ Due window: %d-%d days (min must be >= 0 and max >= min)\n", cfg.DueDaysMin, cfg.DueDaysMax)
		allOK = false
	}
	fmt.Printf("  ✅ Log level: %s\n", cfg.LogLevel)
	if *verbose {
		for _, field := range []string{"registry_file", "schema_file", "due_days_min", "due_days_max", "seed", "log_level", "log_format"} {
			fmt.Printf("  %s: %s\n", field, cws.Sources[field])
		}
	}
	fmt.Println()

	fmt.Printf("Registry file: %s\n", cfg.RegistryFile)
	info, err := os.Stat(cfg.RegistryFile)
	switch {
	case os.IsNotExist(err):
		fmt.Println("  ⚠️  Not found (will be created on save)")
	case err != nil:
		fmt.Printf("  ❌ Error: %v\n", err)
		allOK = false
	case info.IsDir():
		fmt.Println("  ❌ Error: path is a directory")
		allOK = false
	default:
		fmt.Println("  ✅ OK")
		result, vErr := registry.ValidateFile(cfg.RegistryFile, registry.ValidationOptions{SchemaPath: cfg.SchemaFile})
		if vErr != nil {
			fmt.Printf("  ❌ Load error: %v\n", vErr)
			allOK = false
		} else {
			for _, w := range result.Warnings {
				fmt.Printf("  ⚠️  %s\n", w)
			}
			if result.Valid {
				fmt.Println("  ✅ Valid")
			} else {
				fmt.Println("  ❌ Validation failed:")
				for _, e := range result.Errors {
					fmt.Printf("     - %v\n", e)
				}
				allOK = false
			}
		}
	}
	fmt.Println()

	fmt.Printf("Schema file: %s\n", cfg.SchemaFile)
	if info, err := os.Stat(cfg.SchemaFile); err != nil {
		if os.IsNotExist(err) {
			fmt.Println("  ⚠️  Not found (bundled schema will be used)")
		} else {
			fmt.Printf("  ❌ Error: %v\n", err)
			allOK = false
		}
	} else if info.IsDir() {
		fmt.Println("  ❌ Error: path is a directory")
		allOK = false
	} else {
		fmt.Println("  ✅ OK")
	}
	fmt.Println()

	if allOK {
		fmt.Println("✅ All checks passed!")
		return nil
	}
	fmt.Println("⚠️  Some checks failed. Taskman may not function correctly.")
	return fmt.Errorf("doctor checks failed")
}

// tuiCommand launches the TUI.
func tuiCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("taskman tui", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	remaining := fs.Args()
	if len(remaining) > 1 {
		return fmt.Errorf("unexpected arguments: %v", remaining[1:])
	}
	if len(remaining) == 1 {
		cfg.RegistryFile = remaining[0]
	}

	return ui.RunTUI(ctx, cfg)
}

// versionCommand prints version information.
func versionCommand() error {
	fmt.Printf("taskman version %s\n", Version)
	return nil
}

// printUsage prints the usage message.
func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "Taskman - A user and task registry with a JSON file backend")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  taskman [command] [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  demo             Populate sample data, print a report, save (default)")
	fmt.Fprintln(w, "  add-user         Add a user (-name, -email)")
	fmt.Fprintln(w, "  add-task         Add a task (-title, -desc, -priority, -owner, -due)")
	fmt.Fprintln(w, "  done <id>        Mark a task done")
	fmt.Fprintln(w, "  assign           Assign random due dates to tasks without one")
	fmt.Fprintln(w, "  ls [status]      List tasks (-status pending|done, -v)")
	fmt.Fprintln(w, "  report           Print task counts")
	fmt.Fprintln(w, "  validate [file]  Validate a registry file against the schema")
	fmt.Fprintln(w, "  init             Write starter registry, schema, and config files")
	fmt.Fprintln(w, "  doctor           Check config and file validity (-v)")
	fmt.Fprintln(w, "  tui [file]       Launch terminal UI")
	fmt.Fprintln(w, "  version          Show version information")
	fmt.Fprintln(w, "  help             Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

// printTask prints a single task line.
func printTask(t *registry.Task, reg *registry.Registry, verbose bool) {
	statusIcon := "📝"
	if t.Done() {
		statusIcon = "✅"
	}
	due := "no due date"
	if t.DueDate != nil {
		due = "due " + t.DueDate.Format("2006-01-02")
	}
	fmt.Printf("  %s #%d [%s] (%s) %s - %s\n", statusIcon, t.ID, t.Status, t.Priority, t.Title, due)

	if verbose {
		if t.Description != "" {
			fmt.Printf("      Description: %s\n", t.Description)
		}
		if owner, ok := reg.User(t.OwnerID); ok {
			fmt.Printf("      Owner: #%d %s <%s>\n", owner.ID, owner.Name, owner.Email)
		}
	}
}

// printReport prints the task counts.
func printReport(r registry.Report) {
	fmt.Printf("Report: total=%d done=%d pending=%d\n", r.Total, r.Done, r.Pending)
}
