package transcribe

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"

	"echopod/internal/asr"
	"echopod/internal/blobstore"
	"echopod/internal/config"
	"echopod/internal/logging"
	"echopod/internal/services"
	"echopod/internal/store"
)

// Blobs is the slice of the blob store the engine needs.
type Blobs interface {
	Path(category blobstore.Category, id string) (string, error)
}

// Invalidator drops cached retrieval state after a transcript changes.
type Invalidator interface {
	Invalidate(podcastID string)
}

// Engine drives podcasts from pending to ready.
type Engine struct {
	store        *store.Store
	blobs        Blobs
	client       asr.Client
	index        Invalidator
	maxDuration  float64
	retryTries   uint
	retryInitial time.Duration
	logger       *slog.Logger

	group singleflight.Group
}

// NewEngine wires a transcription engine.
func NewEngine(cfg *config.Config, st *store.Store, blobs Blobs, client asr.Client, index Invalidator, logger *slog.Logger) *Engine {
	return &Engine{
		store:        st,
		blobs:        blobs,
		client:       client,
		index:        index,
		maxDuration:  cfg.MaxDurationSeconds(),
		retryTries:   uint(cfg.Workflow.RetryAttempts),
		retryInitial: time.Duration(cfg.Workflow.RetryInitialSeconds) * time.Second,
		logger:       logging.NewComponentLogger(logger, "transcribe"),
	}
}

// Transcribe ensures the podcast has a transcript, running recognition if
// needed. Concurrent calls for the same podcast join one in-flight run; the
// shared run is detached from any single caller's cancellation. Already-ready
// podcasts return immediately.
func (e *Engine) Transcribe(ctx context.Context, podcastID string) error {
	podcast, err := e.store.GetPodcast(ctx, podcastID)
	if err != nil {
		return err
	}
	if podcast == nil {
		return services.Wrap(services.ErrNotFound, "transcribe", "lookup", podcastID, nil)
	}
	if podcast.Transcribed() {
		return nil
	}

	resultCh := e.group.DoChan(podcastID, func() (any, error) {
		detached := services.WithPodcastID(context.WithoutCancel(ctx), podcastID)
		return nil, e.run(detached, podcast)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-resultCh:
		return res.Err
	}
}

func (e *Engine) run(ctx context.Context, podcast *store.Podcast) error {
	if e.maxDuration > 0 && podcast.DurationSeconds > e.maxDuration {
		err := services.Wrap(services.ErrAudioTooLong, "transcribe", "validate",
			fmt.Sprintf("duration %.0fs exceeds limit of %.0fs", podcast.DurationSeconds, e.maxDuration), nil)
		return e.fail(ctx, podcast.ID, err)
	}

	if err := e.store.SetPodcastStatus(ctx, podcast.ID, store.StatusTranscribing, ""); err != nil {
		return err
	}

	audioPath, err := e.blobs.Path(blobstore.CategoryAudio, podcast.AudioRef)
	if err != nil {
		return e.fail(ctx, podcast.ID, err)
	}

	started := time.Now()
	recognized, err := e.recognize(ctx, audioPath)
	if err != nil {
		return e.fail(ctx, podcast.ID, err)
	}

	segments := cleanSegments(podcast.ID, recognized)
	if len(segments) == 0 {
		err := services.Wrap(services.ErrTranscriptionFailed, "transcribe", "clean", "recognition produced no usable segments", nil)
		return e.fail(ctx, podcast.ID, err)
	}

	if err := e.store.ReplaceSegments(ctx, podcast.ID, segments, podcast.DurationSeconds); err != nil {
		return e.fail(ctx, podcast.ID, err)
	}
	if e.index != nil {
		e.index.Invalidate(podcast.ID)
	}

	e.logger.InfoContext(ctx, "transcript ready",
		logging.String("podcast_id", podcast.ID),
		logging.Int("segments", len(segments)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// recognize calls the ASR client with bounded exponential backoff. Failures
// classified as user-fixable or otherwise non-retryable abort immediately.
func (e *Engine) recognize(ctx context.Context, audioPath string) ([]asr.Segment, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.retryInitial

	attempt := 0
	operation := func() ([]asr.Segment, error) {
		attempt++
		segments, err := e.client.Transcribe(ctx, audioPath)
		if err != nil {
			if !services.IsRetryable(err) {
				return nil, backoff.Permanent(err)
			}
			e.logger.WarnContext(ctx, "recognition attempt failed",
				logging.Int("attempt", attempt),
				logging.Error(err),
			)
			return nil, err
		}
		return segments, nil
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(e.retryTries),
	)
}

func (e *Engine) fail(ctx context.Context, podcastID string, cause error) error {
	if statusErr := e.store.SetPodcastStatus(ctx, podcastID, store.StatusFailed, cause.Error()); statusErr != nil {
		e.logger.ErrorContext(ctx, "failed to record transcription failure",
			logging.String("podcast_id", podcastID),
			logging.Error(statusErr),
		)
	}
	return cause
}
