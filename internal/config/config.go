package config

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceUserFile ConfigSource = "user file"
	SourceProjFile ConfigSource = "project file"
	SourceEnv      ConfigSource = "environment"
	SourceFlag     ConfigSource = "flag"
)

// ConfigWithSources holds configuration along with source information for
// each field.
type ConfigWithSources struct {
	Config  *Config
	Sources map[string]ConfigSource
}

// Default values.
const (
	DefaultRegistryFile = "tasks.json"
	DefaultSchemaFile   = "tasks.schema.json"
	DefaultDueDaysMin   = 1
	DefaultDueDaysMax   = 30
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

// Config holds the full configuration for taskman.
type Config struct {
	// Paths
	RegistryFile string `toml:"registry_file"`
	SchemaFile   string `toml:"schema_file"`

	// Window for randomly assigned due dates, in days from now.
	DueDaysMin int `toml:"due_days_min"`
	DueDaysMax int `toml:"due_days_max"`

	// Seed for the due-date random source; 0 means time-based.
	Seed int64 `toml:"seed"`

	// Logging configuration
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogTimestamps bool   `toml:"log_timestamps"`
	LogCaller     bool   `toml:"log_caller"`

	// Project root (computed)
	ProjectRoot string `toml:"-"`
}

func setDefaults(cfg *Config) {
	cfg.RegistryFile = DefaultRegistryFile
	cfg.SchemaFile = DefaultSchemaFile
	cfg.DueDaysMin = DefaultDueDaysMin
	cfg.DueDaysMax = DefaultDueDaysMax
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
}

// configFields returns the configurable field names for source tracking.
func configFields() []string {
	return []string{
		"registry_file",
		"schema_file",
		"due_days_min",
		"due_days_max",
		"seed",
		"log_level",
		"log_format",
		"log_timestamps",
		"log_caller",
	}
}
