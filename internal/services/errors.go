package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for pipeline failures. User-fixable errors are surfaced
// directly; transient errors are retried with bounded backoff before being
// surfaced as a degraded result.
var (
	// ErrUnsupportedFormat indicates uploaded audio could not be decoded.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrEmptyAudio indicates decoded audio has zero duration.
	ErrEmptyAudio = errors.New("empty audio")
	// ErrAudioTooLong indicates audio duration exceeds the configured ceiling.
	ErrAudioTooLong = errors.New("audio too long")
	// ErrTranscriptionFailed indicates the ASR capability failed.
	ErrTranscriptionFailed = errors.New("transcription failed")
	// ErrSynthesisFailed indicates the TTS capability failed.
	ErrSynthesisFailed = errors.New("synthesis failed")
	// ErrNoRelevantContent indicates retrieval produced no supporting segments.
	// It is a "no answer found" outcome, not a fault, and is never retried.
	ErrNoRelevantContent = errors.New("no relevant content")
	// ErrValidation indicates caller input failed validation.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration indicates missing or inconsistent configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound indicates a referenced podcast, answer, or artifact is absent.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks failures worth retrying (network, rate limits).
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsUserFixable reports whether the failure should be surfaced directly to the
// caller without retrying (bad input the caller can correct).
func IsUserFixable(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrEmptyAudio) ||
		errors.Is(err, ErrAudioTooLong) ||
		errors.Is(err, ErrValidation)
}

// IsRetryable reports whether the failure may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil || IsUserFixable(err) {
		return false
	}
	if errors.Is(err, ErrNoRelevantContent) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConfiguration) {
		return false
	}
	return errors.Is(err, ErrTransient) ||
		errors.Is(err, ErrTranscriptionFailed) ||
		errors.Is(err, ErrSynthesisFailed)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
