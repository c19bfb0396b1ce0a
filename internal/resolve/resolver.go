package resolve

import (
	"context"
	"fmt"
	"sort"
	"time"

	"log/slog"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"

	"echopod/internal/config"
	"echopod/internal/generation"
	"echopod/internal/index"
	"echopod/internal/logging"
	"echopod/internal/services"
	"echopod/internal/store"
)

// Searcher retrieves transcript windows relevant to a question.
type Searcher interface {
	Search(ctx context.Context, podcastID string, question string, topK int) ([]index.Match, error)
}

// Resolver turns questions into cached grounded answers.
type Resolver struct {
	store        *store.Store
	searcher     Searcher
	generator    generation.Client
	retryTries   uint
	retryInitial time.Duration
	logger       *slog.Logger

	group singleflight.Group
}

// NewResolver wires a question resolver.
func NewResolver(cfg *config.Config, st *store.Store, searcher Searcher, generator generation.Client, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:        st,
		searcher:     searcher,
		generator:    generator,
		retryTries:   uint(cfg.Workflow.RetryAttempts),
		retryInitial: time.Duration(cfg.Workflow.RetryInitialSeconds) * time.Second,
		logger:       logging.NewComponentLogger(logger, "resolve"),
	}
}

// Resolve returns the answer to a question about a podcast, generating and
// caching it on first ask. Identical concurrent questions join one in-flight
// resolution keyed by fingerprint.
func (r *Resolver) Resolve(ctx context.Context, podcastID string, question string) (*store.Answer, error) {
	normalized := NormalizeQuestion(question)
	if len(normalized) < minQuestionLength {
		return nil, services.Wrap(services.ErrValidation, "resolve", "validate",
			fmt.Sprintf("question too short (minimum %d characters)", minQuestionLength), nil)
	}

	podcast, err := r.store.GetPodcast(ctx, podcastID)
	if err != nil {
		return nil, err
	}
	if podcast == nil {
		return nil, services.Wrap(services.ErrNotFound, "resolve", "lookup", podcastID, nil)
	}
	if !podcast.Transcribed() {
		return nil, services.Wrap(services.ErrValidation, "resolve", "lookup",
			fmt.Sprintf("podcast is %s, not ready for questions", podcast.Status), nil)
	}

	fingerprint := Fingerprint(podcastID, normalized)
	ctx = services.WithFingerprint(services.WithPodcastID(ctx, podcastID), fingerprint)

	if cached, err := r.store.GetAnswer(ctx, fingerprint); err != nil {
		return nil, err
	} else if cached != nil {
		r.logger.DebugContext(ctx, "answer served from cache",
			logging.String("fingerprint", fingerprint),
		)
		return cached, nil
	}

	resultCh := r.group.DoChan(fingerprint, func() (any, error) {
		detached := services.WithFingerprint(
			services.WithPodcastID(context.WithoutCancel(ctx), podcastID), fingerprint)
		return r.generate(detached, podcast, fingerprint, normalized, question)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*store.Answer), nil
	}
}

func (r *Resolver) generate(ctx context.Context, podcast *store.Podcast, fingerprint, normalized, original string) (*store.Answer, error) {
	// A racing resolution may have completed between the cache check and the
	// single-flight join.
	if cached, err := r.store.GetAnswer(ctx, fingerprint); err != nil {
		return nil, err
	} else if cached != nil {
		return cached, nil
	}

	matches, err := r.searcher.Search(ctx, podcast.ID, normalized, 0)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, services.Wrap(services.ErrNoRelevantContent, "resolve", "search",
			"no transcript passages matched the question", nil)
	}

	excerpts := make([]generation.Excerpt, len(matches))
	seqSet := make(map[int]struct{})
	for i, match := range matches {
		excerpts[i] = generation.Excerpt{
			StartSeconds: match.StartSeconds,
			EndSeconds:   match.EndSeconds,
			Text:         match.Text,
		}
		for _, seq := range match.SegmentSeqs {
			seqSet[seq] = struct{}{}
		}
	}
	seqs := make([]int, 0, len(seqSet))
	for seq := range seqSet {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)

	started := time.Now()
	text, err := r.generateWithRetry(ctx, generation.Request{
		PodcastTitle: podcast.Title,
		Question:     normalized,
		Excerpts:     excerpts,
	})
	if err != nil {
		return nil, err
	}

	answer := &store.Answer{
		Fingerprint: fingerprint,
		PodcastID:   podcast.ID,
		Question:    original,
		Text:        text,
		SegmentSeqs: seqs,
	}
	if err := r.store.SaveAnswer(ctx, answer); err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "answer resolved",
		logging.String("fingerprint", fingerprint),
		logging.Int("supporting_segments", len(seqs)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return answer, nil
}

func (r *Resolver) generateWithRetry(ctx context.Context, req generation.Request) (string, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.retryInitial

	operation := func() (string, error) {
		text, err := r.generator.Generate(ctx, req)
		if err != nil {
			if !services.IsRetryable(err) {
				return "", backoff.Permanent(err)
			}
			return "", err
		}
		return text, nil
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(r.retryTries),
	)
}
