// Package config loads, validates, and defaults the TOML configuration that
// drives the echopod pipeline: library paths, audio normalization settings,
// external capability credentials (ASR, generation, TTS), retrieval tuning,
// cache budgets, and logging options.
//
// Load resolves the configuration file, applies defaults for missing values,
// expands ~ in paths, and validates the result so downstream components can
// trust every field.
package config
