package config

// ExampleConfig returns the annotated TOML the init command writes.
func ExampleConfig() string {
	return `# taskman configuration
# Values here are overridden by TASKMAN_* environment variables and CLI flags.

# Registry file the commands read and write.
registry_file = "tasks.json"

# JSON Schema used by the validate and doctor commands.
schema_file = "tasks.schema.json"

# Window for randomly assigned due dates, in days from now.
due_days_min = 1
due_days_max = 30

# Random seed for due date assignment; 0 means time-based.
seed = 0

# Logging: level is one of debug|info|warn|error|fatal,
# format is one of text|json|logfmt.
log_level = "info"
log_format = "text"
log_timestamps = false
log_caller = false
`
}
