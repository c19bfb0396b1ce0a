package synthesize

import (
	"context"
	"time"

	"log/slog"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"

	"echopod/internal/blobstore"
	"echopod/internal/config"
	"echopod/internal/logging"
	"echopod/internal/services"
	"echopod/internal/store"
	"echopod/internal/tts"
)

// Blobs is the slice of the blob store synthesis needs.
type Blobs interface {
	Put(ctx context.Context, category blobstore.Category, data []byte) (string, error)
	Has(category blobstore.Category, id string) bool
}

// Synthesizer renders answers to speech and caches the result.
type Synthesizer struct {
	store        *store.Store
	blobs        Blobs
	client       tts.Client
	retryTries   uint
	retryInitial time.Duration
	logger       *slog.Logger

	group singleflight.Group
}

// NewSynthesizer wires an answer synthesizer.
func NewSynthesizer(cfg *config.Config, st *store.Store, blobs Blobs, client tts.Client, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		store:        st,
		blobs:        blobs,
		client:       client,
		retryTries:   uint(cfg.Workflow.RetryAttempts),
		retryInitial: time.Duration(cfg.Workflow.RetryInitialSeconds) * time.Second,
		logger:       logging.NewComponentLogger(logger, "synthesize"),
	}
}

// EnsureAudio returns the audio reference for an answer, synthesizing speech
// if none is attached or the attached blob has been evicted. Concurrent calls
// for the same fingerprint share one synthesis. Failures leave the answer
// text intact.
func (s *Synthesizer) EnsureAudio(ctx context.Context, fingerprint string) (string, error) {
	answer, err := s.store.GetAnswer(ctx, fingerprint)
	if err != nil {
		return "", err
	}
	if answer == nil {
		return "", services.Wrap(services.ErrNotFound, "synthesize", "lookup", fingerprint, nil)
	}
	if ref, ok := s.cachedRef(answer); ok {
		return ref, nil
	}

	resultCh := s.group.DoChan(fingerprint, func() (any, error) {
		detached := services.WithFingerprint(context.WithoutCancel(ctx), fingerprint)
		return s.synthesize(detached, fingerprint)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// cachedRef reports a usable existing audio reference. A ref left dangling by
// eviction does not count.
func (s *Synthesizer) cachedRef(answer *store.Answer) (string, bool) {
	if answer.AudioRef == "" {
		return "", false
	}
	if !s.blobs.Has(blobstore.CategoryResponses, answer.AudioRef) {
		return "", false
	}
	return answer.AudioRef, true
}

func (s *Synthesizer) synthesize(ctx context.Context, fingerprint string) (string, error) {
	// Re-read inside the single flight: a racing call may have finished, and
	// eviction may have cleared the ref since the caller's check.
	answer, err := s.store.GetAnswer(ctx, fingerprint)
	if err != nil {
		return "", err
	}
	if answer == nil {
		return "", services.Wrap(services.ErrNotFound, "synthesize", "lookup", fingerprint, nil)
	}
	if ref, ok := s.cachedRef(answer); ok {
		return ref, nil
	}

	started := time.Now()
	audio, err := s.render(ctx, answer.Text)
	if err != nil {
		return "", err
	}

	ref, err := s.blobs.Put(ctx, blobstore.CategoryResponses, audio)
	if err != nil {
		return "", err
	}
	if err := s.store.SetAnswerAudioRef(ctx, fingerprint, ref); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "answer audio synthesized",
		logging.String("fingerprint", fingerprint),
		logging.Int("audio_bytes", len(audio)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return ref, nil
}

func (s *Synthesizer) render(ctx context.Context, text string) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retryInitial

	operation := func() ([]byte, error) {
		audio, err := s.client.Synthesize(ctx, text)
		if err != nil {
			if !services.IsRetryable(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return audio, nil
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(s.retryTries),
	)
}
