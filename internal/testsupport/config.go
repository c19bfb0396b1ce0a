package testsupport

import (
	"path/filepath"
	"testing"

	"echopod/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.ASR.APIKey = "test"
	cfg.Generation.APIKey = "test"
	cfg.TTS.APIKey = "test"
	cfg.TTS.VoiceID = "test-voice"
	cfg.Workflow.RetryInitialSeconds = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithResponseBudgetMiB overrides the synthesized-audio cache budget.
func WithResponseBudgetMiB(mib int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Cache.ResponseBudgetMiB = mib
	}
}

// WithIndexMinScore overrides the retrieval relevance threshold.
func WithIndexMinScore(score float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Index.MinScore = score
	}
}

// WithMaxDurationMinutes overrides the transcription duration ceiling.
func WithMaxDurationMinutes(minutes int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Audio.MaxDurationMinutes = minutes
	}
}
