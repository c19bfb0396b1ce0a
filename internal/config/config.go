package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	LibraryDir string `toml:"library_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
}

// Audio contains configuration for upload validation and normalization.
type Audio struct {
	TargetSampleRate   int    `toml:"target_sample_rate"`
	MaxUploadMiB       int    `toml:"max_upload_mib"`
	MaxDurationMinutes int    `toml:"max_duration_minutes"`
	FFmpegBinary       string `toml:"ffmpeg_binary"`
}

// ASR contains connection settings for the speech-to-text capability.
type ASR struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Generation contains connection settings for the answer generation capability.
type Generation struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TTS contains connection settings for the text-to-speech capability.
type TTS struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	VoiceID        string `toml:"voice_id"`
	Model          string `toml:"model"`
	OutputFormat   string `toml:"output_format"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Index contains retrieval tuning for the segment index.
type Index struct {
	WindowSeconds  int     `toml:"window_seconds"`
	WindowOverlap  int     `toml:"window_overlap"`
	MinScore       float64 `toml:"min_score"`
	DefaultTopK    int     `toml:"default_top_k"`
	MinTokenLength int     `toml:"min_token_length"`
}

// Cache contains budgets for evictable artifacts.
type Cache struct {
	ResponseBudgetMiB int `toml:"response_budget_mib"`
}

// Workflow contains background processing and retry settings.
type Workflow struct {
	TranscriptionWorkers int `toml:"transcription_workers"`
	RetryAttempts        int `toml:"retry_attempts"`
	RetryInitialSeconds  int `toml:"retry_initial_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for echopod.
//
// Configuration sections by subsystem:
//   - Paths: library/log directories and API bind address
//   - Audio: upload limits and normalization target
//   - ASR / Generation / TTS: external capability connections
//   - Index: retrieval windowing and relevance thresholds
//   - Cache: synthesized-audio eviction budget
//   - Workflow: background workers and transient retry policy
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Audio      Audio      `toml:"audio"`
	ASR        ASR        `toml:"asr"`
	Generation Generation `toml:"generation"`
	TTS        TTS        `toml:"tts"`
	Index      Index      `toml:"index"`
	Cache      Cache      `toml:"cache"`
	Workflow   Workflow   `toml:"workflow"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/echopod/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. The second return value is the
// resolved path; the third reports whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("echopod.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for pipeline operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LibraryDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the SQLite library database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.LibraryDir, "library.db")
}

// BlobDir returns the root directory of the content-addressed blob store.
func (c *Config) BlobDir() string {
	return filepath.Join(c.Paths.LibraryDir, "blobs")
}

// MaxUploadBytes returns the upload size ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Audio.MaxUploadMiB) * 1024 * 1024
}

// MaxDurationSeconds returns the transcription duration ceiling in seconds.
func (c *Config) MaxDurationSeconds() float64 {
	return float64(c.Audio.MaxDurationMinutes) * 60
}

// ResponseBudgetBytes returns the synthesized-audio cache budget in bytes.
func (c *Config) ResponseBudgetBytes() int64 {
	return int64(c.Cache.ResponseBudgetMiB) * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
