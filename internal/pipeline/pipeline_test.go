package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"echopod/internal/asr"
	"echopod/internal/audio"
	"echopod/internal/config"
	"echopod/internal/generation"
	"echopod/internal/ingest"
	"echopod/internal/logging"
	"echopod/internal/pipeline"
	"echopod/internal/services"
	"echopod/internal/store"
	"echopod/internal/testsupport"
)

type fakeNormalizer struct {
	t        *testing.T
	duration float64
}

func (n *fakeNormalizer) Normalize(_ context.Context, raw []byte, _ string) (*audio.Result, error) {
	wav := testsupport.WAVBytes(n.t, 16000, 2)
	copy(wav[44:], raw)
	return &audio.Result{WAV: wav, DurationSeconds: n.duration}, nil
}

// episodeASR fabricates a ten minute episode as forty 15-second segments that
// walk through a handful of topics.
type episodeASR struct{}

func (episodeASR) Transcribe(context.Context, string) ([]asr.Segment, error) {
	topics := []string{
		"the history of lighthouse keeping on remote islands",
		"how lighthouse lenses focus light across the ocean",
		"automation replacing resident lighthouse keepers",
		"preserving heritage lighthouse stations for visitors",
	}
	segments := make([]asr.Segment, 0, 40)
	for i := 0; i < 40; i++ {
		topic := topics[i/10]
		segments = append(segments, asr.Segment{
			StartSeconds: float64(i * 15),
			EndSeconds:   float64(i*15 + 15),
			Text:         fmt.Sprintf("Part %d covers %s in detail.", i, topic),
			Confidence:   0.85,
		})
	}
	return segments, nil
}

type scriptedGenerator struct{ calls int }

func (g *scriptedGenerator) Generate(_ context.Context, req generation.Request) (string, error) {
	g.calls++
	return fmt.Sprintf("Grounded in %d excerpts: the episode explains this topic.", len(req.Excerpts)), nil
}

type countingTTS struct{ calls int }

func (c *countingTTS) Synthesize(_ context.Context, text string) ([]byte, error) {
	c.calls++
	return []byte(fmt.Sprintf("speech-%d: %s", c.calls, text)), nil
}

func newPipeline(t *testing.T, opts ...testsupport.ConfigOption) (*pipeline.Pipeline, *config.Config, *scriptedGenerator, *countingTTS) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	gen := &scriptedGenerator{}
	speech := &countingTTS{}
	p, err := pipeline.New(cfg, logging.NewNop(),
		pipeline.WithNormalizer(&fakeNormalizer{t: t, duration: 600}),
		pipeline.WithASRClient(episodeASR{}),
		pipeline.WithGenerator(gen),
		pipeline.WithTTSClient(speech),
	)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p, cfg, gen, speech
}

func waitForStatus(t *testing.T, p *pipeline.Pipeline, id string, want store.Status) *store.Podcast {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		podcast, err := p.Podcast(context.Background(), id)
		if err != nil {
			t.Fatalf("Podcast: %v", err)
		}
		if podcast.Status == want {
			return podcast
		}
		if podcast.Status == store.StatusFailed && want != store.StatusFailed {
			t.Fatalf("podcast failed: %s", podcast.ErrorMessage)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("podcast never reached status %s", want)
	return nil
}

func TestPipelineEndToEnd(t *testing.T) {
	p, _, gen, speech := newPipeline(t)
	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	out, err := p.Ingest(ctx, ingest.Request{
		Data:     []byte("ten minute lighthouse episode"),
		MimeType: "audio/mpeg",
		Filename: "lighthouse_keepers.mp3",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !out.Created {
		t.Fatal("expected a new podcast")
	}

	podcast := waitForStatus(t, p, out.Podcast.ID, store.StatusReady)
	if podcast.DurationSeconds != 600 {
		t.Fatalf("duration = %.0f, want 600", podcast.DurationSeconds)
	}

	transcript, err := p.Transcript(ctx, podcast.ID)
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if len(transcript) != 40 {
		t.Fatalf("transcript has %d segments, want 40", len(transcript))
	}
	for i := 1; i < len(transcript); i++ {
		if transcript[i].StartSeconds < transcript[i-1].EndSeconds {
			t.Fatalf("segments overlap at %d", i)
		}
	}

	answer, err := p.Ask(ctx, podcast.ID, "hey pod, how do lighthouse lenses focus light?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Text == "" || len(answer.SegmentSeqs) == 0 {
		t.Fatalf("incomplete answer: %+v", answer)
	}
	if gen.calls != 1 {
		t.Fatalf("generation ran %d times, want 1", gen.calls)
	}

	// Same question re-asked serves from cache.
	again, err := p.Ask(ctx, podcast.ID, "How do lighthouse lenses focus light")
	if err != nil {
		t.Fatalf("cached Ask: %v", err)
	}
	if again.Fingerprint != answer.Fingerprint || gen.calls != 1 {
		t.Fatal("identical question must be served from the answer cache")
	}

	ref, err := p.EnsureAnswerAudio(ctx, answer.Fingerprint)
	if err != nil {
		t.Fatalf("EnsureAnswerAudio: %v", err)
	}
	data, category, err := p.AudioBytes(ctx, ref)
	if err != nil {
		t.Fatalf("AudioBytes: %v", err)
	}
	if category != "responses" || len(data) == 0 {
		t.Fatalf("unexpected audio serve: category=%s bytes=%d", category, len(data))
	}
	if speech.calls != 1 {
		t.Fatalf("synthesis ran %d times, want 1", speech.calls)
	}
}

func TestPipelineDuplicateIngestSharesRecord(t *testing.T) {
	p, _, _, _ := newPipeline(t)
	ctx := context.Background()

	first, err := p.Ingest(ctx, ingest.Request{Data: []byte("same episode"), Filename: "a.mp3"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	second, err := p.Ingest(ctx, ingest.Request{Data: []byte("same episode"), Filename: "b.mp3"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if second.Created || second.Podcast.ID != first.Podcast.ID {
		t.Fatal("duplicate upload must resolve to the existing podcast")
	}
}

func TestPipelineEvictionKeepsAnswerText(t *testing.T) {
	// A zero budget evicts every response blob as soon as the next one lands.
	p, _, _, speech := newPipeline(t, testsupport.WithResponseBudgetMiB(0))
	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	out, err := p.Ingest(ctx, ingest.Request{Data: []byte("eviction episode"), Filename: "e.mp3"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	podcast := waitForStatus(t, p, out.Podcast.ID, store.StatusReady)

	first, err := p.Ask(ctx, podcast.ID, "what happened to resident lighthouse keepers")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if _, err := p.EnsureAnswerAudio(ctx, first.Fingerprint); err != nil {
		t.Fatalf("EnsureAnswerAudio: %v", err)
	}

	second, err := p.Ask(ctx, podcast.ID, "how are heritage lighthouse stations preserved")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if _, err := p.EnsureAnswerAudio(ctx, second.Fingerprint); err != nil {
		t.Fatalf("EnsureAnswerAudio: %v", err)
	}

	// The first answer's audio was evicted to make room; its text survives and
	// the stale ref is detached.
	evicted, err := p.Store().GetAnswer(ctx, first.Fingerprint)
	if err != nil {
		t.Fatalf("GetAnswer: %v", err)
	}
	if evicted.Text != first.Text {
		t.Fatal("answer text must survive eviction")
	}
	if evicted.AudioRef != "" {
		t.Fatalf("evicted answer still references audio %q", evicted.AudioRef)
	}

	// Asking for audio again re-synthesizes.
	before := speech.calls
	if _, err := p.EnsureAnswerAudio(ctx, first.Fingerprint); err != nil {
		t.Fatalf("re-synthesis: %v", err)
	}
	if speech.calls != before+1 {
		t.Fatalf("expected one more synthesis, got %d -> %d", before, speech.calls)
	}
}

func TestPipelineDeletePodcast(t *testing.T) {
	p, _, _, _ := newPipeline(t)
	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	out, err := p.Ingest(ctx, ingest.Request{Data: []byte("short lived episode"), Filename: "d.mp3"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	podcast := waitForStatus(t, p, out.Podcast.ID, store.StatusReady)

	answer, err := p.Ask(ctx, podcast.ID, "what replaced resident lighthouse keepers")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	ref, err := p.EnsureAnswerAudio(ctx, answer.Fingerprint)
	if err != nil {
		t.Fatalf("EnsureAnswerAudio: %v", err)
	}

	if err := p.DeletePodcast(ctx, podcast.ID); err != nil {
		t.Fatalf("DeletePodcast: %v", err)
	}
	if _, err := p.Podcast(ctx, podcast.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, _, err := p.AudioBytes(ctx, ref); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected response audio removed, got %v", err)
	}
}

func TestPipelineHealth(t *testing.T) {
	p, _, _, _ := newPipeline(t)
	health := p.Health(context.Background())

	if !health.Components["database"].Ready {
		t.Fatal("database should be healthy")
	}
	if !health.Components["blobstore"].Ready {
		t.Fatal("blobstore should be healthy")
	}
	for _, name := range []string{"asr", "generation", "tts"} {
		if !health.Components[name].Ready {
			t.Fatalf("%s should be ready with test credentials", name)
		}
	}
}

func TestPipelineHealthReportsMissingCredentials(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Generation.APIKey = ""
	p, err := pipeline.New(cfg, logging.NewNop(),
		pipeline.WithNormalizer(&fakeNormalizer{t: t, duration: 60}),
		pipeline.WithASRClient(episodeASR{}),
		pipeline.WithGenerator(&scriptedGenerator{}),
		pipeline.WithTTSClient(&countingTTS{}),
	)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	health := p.Health(context.Background())
	if health.Healthy {
		t.Fatal("missing credential must degrade aggregate health")
	}
	if health.Components["generation"].Ready {
		t.Fatal("generation must report not ready")
	}
}
