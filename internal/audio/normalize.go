package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"echopod/internal/config"
	"echopod/internal/logging"
	"echopod/internal/services"
)

// runFunc executes the external decoder; tests stub it.
type runFunc func(ctx context.Context, binary string, args []string) (stderr string, err error)

// Normalizer converts arbitrary uploaded audio into canonical mono PCM WAV.
type Normalizer struct {
	binary     string
	sampleRate int
	logger     *slog.Logger
	run        runFunc
}

// NewNormalizer builds a normalizer from configuration.
func NewNormalizer(cfg *config.Config, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		binary:     cfg.Audio.FFmpegBinary,
		sampleRate: cfg.Audio.TargetSampleRate,
		logger:     logging.NewComponentLogger(logger, "audio"),
		run:        runCommand,
	}
}

// Result carries the canonical audio and its measured duration.
type Result struct {
	WAV             []byte
	DurationSeconds float64
}

// Normalize decodes raw audio bytes and re-encodes them as mono 16-bit PCM at
// the target sample rate. A decode failure maps to ErrUnsupportedFormat and a
// zero-length decode to ErrEmptyAudio.
func (n *Normalizer) Normalize(ctx context.Context, raw []byte, mimeType string) (*Result, error) {
	if len(raw) == 0 {
		return nil, services.Wrap(services.ErrEmptyAudio, "audio", "normalize", "no payload", nil)
	}

	dir, err := os.MkdirTemp("", "echopod-normalize-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input"+extensionForMime(mimeType))
	output := filepath.Join(dir, "normalized.wav")
	if err := os.WriteFile(input, raw, 0o600); err != nil {
		return nil, fmt.Errorf("write scratch input: %w", err)
	}

	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", input,
		"-ac", "1",
		"-ar", strconv.Itoa(n.sampleRate),
		"-sample_fmt", "s16",
		"-f", "wav",
		output,
	}
	started := time.Now()
	stderr, err := n.run(ctx, n.binary, args)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrUnsupportedFormat, "audio", "decode", lastLine(stderr), err)
	}

	wav, err := os.ReadFile(output)
	if err != nil {
		return nil, services.Wrap(services.ErrUnsupportedFormat, "audio", "decode", "decoder produced no output", err)
	}

	duration, err := Duration(wav)
	if err != nil {
		return nil, services.Wrap(services.ErrUnsupportedFormat, "audio", "inspect", "", err)
	}
	if duration <= 0 {
		return nil, services.Wrap(services.ErrEmptyAudio, "audio", "inspect", "decoded audio has zero duration", nil)
	}

	n.logger.DebugContext(ctx, "normalized upload",
		logging.Int("input_bytes", len(raw)),
		logging.Int("output_bytes", len(wav)),
		logging.Float64("duration_seconds", duration),
		logging.Duration("elapsed", time.Since(started)),
	)
	return &Result{WAV: wav, DurationSeconds: duration}, nil
}

func runCommand(ctx context.Context, binary string, args []string) (string, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

// extensionForMime gives the decoder a filename hint for containers whose
// probing is unreliable without one.
func extensionForMime(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	switch mimeType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/ogg", "application/ogg":
		return ".ogg"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	case "audio/webm", "video/webm":
		return ".webm"
	default:
		return ".bin"
	}
}

// lastLine extracts the final non-empty stderr line; ffmpeg puts the relevant
// error there.
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}
