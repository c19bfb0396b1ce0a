package pipeline

import (
	"context"
	"errors"
	"sync"

	"log/slog"

	"echopod/internal/asr"
	"echopod/internal/audio"
	"echopod/internal/blobstore"
	"echopod/internal/config"
	"echopod/internal/generation"
	"echopod/internal/index"
	"echopod/internal/ingest"
	"echopod/internal/logging"
	"echopod/internal/resolve"
	"echopod/internal/services"
	"echopod/internal/store"
	"echopod/internal/synthesize"
	"echopod/internal/transcribe"
	"echopod/internal/tts"
)

// Option overrides a pipeline component, used by tests to substitute fakes
// for the external capabilities.
type Option func(*components)

type components struct {
	normalizer ingest.Normalizer
	asrClient  asr.Client
	generator  generation.Client
	ttsClient  tts.Client
}

// WithNormalizer substitutes the audio normalizer.
func WithNormalizer(n ingest.Normalizer) Option { return func(c *components) { c.normalizer = n } }

// WithASRClient substitutes the speech recognition client.
func WithASRClient(client asr.Client) Option { return func(c *components) { c.asrClient = client } }

// WithGenerator substitutes the answer generation client.
func WithGenerator(client generation.Client) Option { return func(c *components) { c.generator = client } }

// WithTTSClient substitutes the speech synthesis client.
func WithTTSClient(client tts.Client) Option { return func(c *components) { c.ttsClient = client } }

// Pipeline owns the shared stores and the per-stage engines.
type Pipeline struct {
	cfg    *config.Config
	logger *slog.Logger

	store *store.Store
	blobs *blobstore.Store
	index *index.Index

	ingester    *ingest.Manager
	transcriber *transcribe.Engine
	resolver    *resolve.Resolver
	synthesizer *synthesize.Synthesizer

	nudge chan struct{}

	mu      sync.Mutex
	stop    context.CancelFunc
	workers sync.WaitGroup
}

// New builds a pipeline over the configured library. Directories are created
// as needed and evicted response audio is detached from its answers.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}
	blobs, err := blobstore.New(cfg, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	blobs.SetEvictionHook(func(ctx context.Context, id string) {
		if err := st.ClearAudioRef(ctx, id); err != nil {
			logger.ErrorContext(ctx, "failed to detach evicted audio",
				logging.String("content_id", id),
				logging.Error(err),
			)
		}
	})

	comps := components{
		normalizer: audio.NewNormalizer(cfg, logger),
		asrClient:  asr.NewOpenAIClient(cfg, logger),
		generator:  generation.NewOpenAIClient(cfg, logger),
		ttsClient:  tts.NewElevenLabsClient(cfg, logger),
	}
	for _, opt := range opts {
		opt(&comps)
	}

	ix := index.New(cfg, st, logger)
	p := &Pipeline{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
		store:       st,
		blobs:       blobs,
		index:       ix,
		ingester:    ingest.NewManager(cfg, st, blobs, comps.normalizer, logger),
		transcriber: transcribe.NewEngine(cfg, st, blobs, comps.asrClient, ix, logger),
		resolver:    resolve.NewResolver(cfg, st, ix, comps.generator, logger),
		synthesizer: synthesize.NewSynthesizer(cfg, st, blobs, comps.ttsClient, logger),
		nudge:       make(chan struct{}, 1),
	}
	return p, nil
}

// Close stops background workers and releases the library store.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
	p.mu.Unlock()
	p.workers.Wait()
	return p.store.Close()
}

// Ingest admits an upload and queues it for background transcription.
func (p *Pipeline) Ingest(ctx context.Context, req ingest.Request) (*ingest.Outcome, error) {
	outcome, err := p.ingester.Ingest(ctx, req)
	if err != nil {
		return nil, err
	}
	if outcome.Created {
		p.Nudge()
	}
	return outcome, nil
}

// Podcast fetches one podcast record.
func (p *Pipeline) Podcast(ctx context.Context, id string) (*store.Podcast, error) {
	podcast, err := p.store.GetPodcast(ctx, id)
	if err != nil {
		return nil, err
	}
	if podcast == nil {
		return nil, services.Wrap(services.ErrNotFound, "pipeline", "podcast", id, nil)
	}
	return podcast, nil
}

// Podcasts lists the library, newest first.
func (p *Pipeline) Podcasts(ctx context.Context) ([]*store.Podcast, error) {
	return p.store.ListPodcasts(ctx)
}

// Transcript returns the ordered transcript of a ready podcast.
func (p *Pipeline) Transcript(ctx context.Context, podcastID string) ([]store.Segment, error) {
	if _, err := p.Podcast(ctx, podcastID); err != nil {
		return nil, err
	}
	return p.store.Segments(ctx, podcastID)
}

// Transcribe runs (or joins) transcription for one podcast synchronously.
func (p *Pipeline) Transcribe(ctx context.Context, podcastID string) error {
	return p.transcriber.Transcribe(ctx, podcastID)
}

// Ask resolves a question against a transcribed podcast.
func (p *Pipeline) Ask(ctx context.Context, podcastID, question string) (*store.Answer, error) {
	return p.resolver.Resolve(ctx, podcastID, question)
}

// Answers lists cached answers for a podcast.
func (p *Pipeline) Answers(ctx context.Context, podcastID string) ([]*store.Answer, error) {
	return p.store.AnswersByPodcast(ctx, podcastID)
}

// EnsureAnswerAudio synthesizes (or reuses) spoken audio for a cached answer
// and returns its content reference.
func (p *Pipeline) EnsureAnswerAudio(ctx context.Context, fingerprint string) (string, error) {
	return p.synthesizer.EnsureAudio(ctx, fingerprint)
}

// AudioBytes serves a stored blob by content id, checking the response cache
// before the podcast audio library.
func (p *Pipeline) AudioBytes(ctx context.Context, id string) ([]byte, blobstore.Category, error) {
	if data, err := p.blobs.Get(ctx, blobstore.CategoryResponses, id); err == nil {
		return data, blobstore.CategoryResponses, nil
	} else if !errors.Is(err, services.ErrNotFound) {
		return nil, "", err
	}
	data, err := p.blobs.Get(ctx, blobstore.CategoryAudio, id)
	if err != nil {
		return nil, "", err
	}
	return data, blobstore.CategoryAudio, nil
}

// DeletePodcast removes a podcast, its transcript, answers, stored audio, and
// any synthesized response audio.
func (p *Pipeline) DeletePodcast(ctx context.Context, podcastID string) error {
	podcast, err := p.Podcast(ctx, podcastID)
	if err != nil {
		return err
	}
	answers, err := p.store.AnswersByPodcast(ctx, podcastID)
	if err != nil {
		return err
	}
	for _, answer := range answers {
		if answer.AudioRef != "" {
			if err := p.blobs.Delete(blobstore.CategoryResponses, answer.AudioRef); err != nil {
				return err
			}
		}
	}
	if err := p.store.DeletePodcast(ctx, podcastID); err != nil {
		return err
	}
	p.index.Invalidate(podcastID)
	if err := p.blobs.Delete(blobstore.CategoryAudio, podcast.AudioRef); err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "podcast deleted",
		logging.String("podcast_id", podcastID),
		logging.Int("answers_removed", len(answers)),
	)
	return nil
}

// CacheStats reports blob store usage.
func (p *Pipeline) CacheStats(ctx context.Context) (blobstore.Stats, error) {
	return p.blobs.Stats(ctx)
}

// Store exposes the library store for read-mostly callers (CLI listings).
func (p *Pipeline) Store() *store.Store {
	return p.store
}
