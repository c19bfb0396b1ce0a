package services

import "context"

type contextKey string

const (
	podcastIDKey   contextKey = "podcast_id"
	fingerprintKey contextKey = "fingerprint"
	stageKey       contextKey = "stage"
	requestIDKey   contextKey = "request_id"
)

// WithPodcastID annotates context with the podcast identifier.
func WithPodcastID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, podcastIDKey, id)
}

// PodcastIDFromContext extracts the podcast identifier if present.
func PodcastIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(podcastIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithFingerprint annotates context with the query fingerprint.
func WithFingerprint(ctx context.Context, fingerprint string) context.Context {
	if fingerprint == "" {
		return ctx
	}
	return context.WithValue(ctx, fingerprintKey, fingerprint)
}

// FingerprintFromContext extracts the query fingerprint if present.
func FingerprintFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(fingerprintKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
