package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load loads configuration from multiple sources in priority order:
// defaults, user config file, project config file, environment, CLI flags.
// Flags are registered on the provided FlagSet, which this call parses.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cws, err := LoadWithSources(fs, args)
	if err != nil {
		return nil, err
	}
	return cws.Config, nil
}

// LoadWithSources loads configuration and tracks the source of each value.
func LoadWithSources(fs *flag.FlagSet, args []string) (*ConfigWithSources, error) {
	cfg := &Config{}
	sources := make(map[string]ConfigSource)

	// 1. Set defaults
	setDefaults(cfg)
	for _, field := range configFields() {
		sources[field] = SourceDefault
	}

	// 2. Try to load from user config file
	if path := findUserConfigFile(); path != "" {
		if err := loadConfigFile(cfg, path, sources, SourceUserFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", path, err)
		}
	}

	// 3. Try to load from project config file (overrides user config)
	if path := findProjectConfigFile(); path != "" {
		if err := loadConfigFile(cfg, path, sources, SourceProjFile); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", path, err)
		}
	}

	// 4. Override from environment
	loadFromEnv(cfg, sources)

	// 5. Parse CLI flags (they override everything)
	if err := parseFlags(cfg, fs, args, sources); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// 6. Compute derived values
	if err := finalizeConfig(cfg); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}

	return &ConfigWithSources{Config: cfg, Sources: sources}, nil
}

// loadConfigFile loads TOML config from the given file and records the
// source of every key the file actually defines.
func loadConfigFile(cfg *Config, path string, sources map[string]ConfigSource, source ConfigSource) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	for _, field := range configFields() {
		if md.IsDefined(field) {
			sources[field] = source
		}
	}
	return nil
}

// loadFromEnv overrides config from TASKMAN_* environment variables.
func loadFromEnv(cfg *Config, sources map[string]ConfigSource) {
	setString := func(env, field string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
			sources[field] = SourceEnv
		}
	}
	setInt := func(env, field string, dst *int) {
		if v := os.Getenv(env); v != "" {
			if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = i
				sources[field] = SourceEnv
			}
		}
	}
	setBool := func(env, field string, dst *bool) {
		if v := os.Getenv(env); v != "" {
			*dst = boolFromString(v)
			sources[field] = SourceEnv
		}
	}

	setString("TASKMAN_REGISTRY", "registry_file", &cfg.RegistryFile)
	setString("TASKMAN_SCHEMA", "schema_file", &cfg.SchemaFile)
	setInt("TASKMAN_DUE_MIN", "due_days_min", &cfg.DueDaysMin)
	setInt("TASKMAN_DUE_MAX", "due_days_max", &cfg.DueDaysMax)
	if v := os.Getenv("TASKMAN_SEED"); v != "" {
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.Seed = i
			sources["seed"] = SourceEnv
		}
	}
	setString("TASKMAN_LOG_LEVEL", "log_level", &cfg.LogLevel)
	setString("TASKMAN_LOG_FORMAT", "log_format", &cfg.LogFormat)
	setBool("TASKMAN_LOG_TIMESTAMPS", "log_timestamps", &cfg.LogTimestamps)
	setBool("TASKMAN_LOG_CALLER", "log_caller", &cfg.LogCaller)
}

// parseFlags registers the global flags on fs, parses args, and records
// which flags were set explicitly.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string, sources map[string]ConfigSource) error {
	fs.StringVar(&cfg.RegistryFile, "registry", cfg.RegistryFile, "Registry file path")
	fs.StringVar(&cfg.SchemaFile, "schema", cfg.SchemaFile, "Registry schema file path")
	fs.IntVar(&cfg.DueDaysMin, "due-min", cfg.DueDaysMin, "Minimum days ahead for assigned due dates")
	fs.IntVar(&cfg.DueDaysMax, "due-max", cfg.DueDaysMax, "Maximum days ahead for assigned due dates")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed for due date assignment (0 = time-based)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error|fatal)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text|json|logfmt)")
	fs.BoolVar(&cfg.LogTimestamps, "log-timestamps", cfg.LogTimestamps, "Include timestamps in log output")
	fs.BoolVar(&cfg.LogCaller, "log-caller", cfg.LogCaller, "Include caller locations in log output")

	if err := fs.Parse(args); err != nil {
		return err
	}

	flagFields := map[string]string{
		"registry":       "registry_file",
		"schema":         "schema_file",
		"due-min":        "due_days_min",
		"due-max":        "due_days_max",
		"seed":           "seed",
		"log-level":      "log_level",
		"log-format":     "log_format",
		"log-timestamps": "log_timestamps",
		"log-caller":     "log_caller",
	}
	fs.Visit(func(f *flag.Flag) {
		if field, ok := flagFields[f.Name]; ok {
			sources[field] = SourceFlag
		}
	})
	return nil
}

// finalizeConfig computes derived values and validates the result.
func finalizeConfig(cfg *Config) error {
	cfg.RegistryFile = expandPath(cfg.RegistryFile)
	cfg.SchemaFile = expandPath(cfg.SchemaFile)

	if cfg.ProjectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		cfg.ProjectRoot = wd
	}

	if !filepath.IsAbs(cfg.RegistryFile) {
		cfg.RegistryFile = filepath.Join(cfg.ProjectRoot, cfg.RegistryFile)
	}
	if !filepath.IsAbs(cfg.SchemaFile) {
		cfg.SchemaFile = filepath.Join(cfg.ProjectRoot, cfg.SchemaFile)
	}

	if cfg.DueDaysMin < 0 {
		return fmt.Errorf("due_days_min must not be negative, got %d", cfg.DueDaysMin)
	}
	if cfg.DueDaysMax < cfg.DueDaysMin {
		return fmt.Errorf("due_days_max (%d) must not be below due_days_min (%d)", cfg.DueDaysMax, cfg.DueDaysMin)
	}

	return nil
}

// findUserConfigFile returns the first user-level config file that exists.
func findUserConfigFile() string {
	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".taskman", "taskman.toml"))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "taskman", "taskman.toml"))
	}
	for _, path := range candidates {
		if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
			return path
		}
	}
	return ""
}

// findProjectConfigFile returns the first project-level config file in the
// current directory.
func findProjectConfigFile() string {
	for _, name := range []string{"taskman.toml", ".taskman.toml"} {
		if fi, err := os.Stat(name); err == nil && !fi.IsDir() {
			return name
		}
	}
	return ""
}

// expandPath expands a leading ~ and environment variables in paths.
func expandPath(p string) string {
	expanded := os.ExpandEnv(p)
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return expanded
		}
		if expanded == "~" {
			return home
		}
		return filepath.Join(home, expanded[2:])
	}
	return expanded
}

func boolFromString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
