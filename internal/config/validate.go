package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the pipeline cannot operate
// with. Capability API keys are intentionally not required here: commands that
// do not touch a capability (config inspection, listing podcasts) must work
// without them, and each client reports a precise error when first used.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		problems = append(problems, "paths.library_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must be set")
	}

	if c.Audio.TargetSampleRate <= 0 {
		problems = append(problems, "audio.target_sample_rate must be positive")
	}
	if c.Audio.MaxUploadMiB <= 0 {
		problems = append(problems, "audio.max_upload_mib must be positive")
	}
	if c.Audio.MaxDurationMinutes <= 0 {
		problems = append(problems, "audio.max_duration_minutes must be positive")
	}

	if c.ASR.TimeoutSeconds <= 0 {
		problems = append(problems, "asr.timeout_seconds must be positive")
	}
	if c.Generation.TimeoutSeconds <= 0 {
		problems = append(problems, "generation.timeout_seconds must be positive")
	}
	if c.TTS.TimeoutSeconds <= 0 {
		problems = append(problems, "tts.timeout_seconds must be positive")
	}

	if c.Index.WindowSeconds <= 0 {
		problems = append(problems, "index.window_seconds must be positive")
	}
	if c.Index.WindowOverlap < 0 {
		problems = append(problems, "index.window_overlap must not be negative")
	}
	if c.Index.MinScore < 0 || c.Index.MinScore >= 1 {
		problems = append(problems, "index.min_score must be in [0, 1)")
	}
	if c.Index.DefaultTopK <= 0 {
		problems = append(problems, "index.default_top_k must be positive")
	}
	if c.Index.MinTokenLength <= 0 {
		problems = append(problems, "index.min_token_length must be positive")
	}

	if c.Cache.ResponseBudgetMiB <= 0 {
		problems = append(problems, "cache.response_budget_mib must be positive")
	}

	if c.Workflow.TranscriptionWorkers <= 0 {
		problems = append(problems, "workflow.transcription_workers must be positive")
	}
	if c.Workflow.RetryAttempts < 1 {
		problems = append(problems, "workflow.retry_attempts must be at least 1")
	}
	if c.Workflow.RetryInitialSeconds <= 0 {
		problems = append(problems, "workflow.retry_initial_seconds must be positive")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
