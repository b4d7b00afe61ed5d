// Package config handles configuration loading and defaults.
//
// Configuration is loaded from multiple sources in priority order:
// 1. Built-in defaults
// 2. User config file (~/.taskman/taskman.toml or OS-specific config directory)
// 3. Project config file (taskman.toml or .taskman.toml in the working directory)
// 4. Environment variables (TASKMAN_*)
// 5. CLI flags
//
// Each level overrides the previous one, so CLI flags take precedence.
// LoadWithSources additionally records which layer supplied each value,
// which the doctor command reports.
package config
