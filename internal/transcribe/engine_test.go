package transcribe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"echopod/internal/asr"
	"echopod/internal/blobstore"
	"echopod/internal/logging"
	"echopod/internal/services"
	"echopod/internal/store"
	"echopod/internal/testsupport"
)

type fakeASR struct {
	mu       sync.Mutex
	calls    int
	delay    time.Duration
	failures int
	failWith error
	segments []asr.Segment
}

func (f *fakeASR) Transcribe(ctx context.Context, _ string) ([]asr.Segment, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if call <= f.failures {
		return nil, f.failWith
	}
	return f.segments, nil
}

func (f *fakeASR) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) Invalidate(podcastID string) {
	r.mu.Lock()
	r.ids = append(r.ids, podcastID)
	r.mu.Unlock()
}

type fixture struct {
	engine      *Engine
	store       *store.Store
	asr         *fakeASR
	invalidator *recordingInvalidator
	podcastID   string
}

func newFixture(t *testing.T, client *fakeASR, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	blobs, err := blobstore.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("blobstore: %v", err)
	}
	inv := &recordingInvalidator{}
	engine := NewEngine(cfg, st, blobs, client, inv, logging.NewNop())
	engine.retryInitial = time.Millisecond

	ctx := context.Background()
	audioRef, err := blobs.Put(ctx, blobstore.CategoryAudio, testsupport.WAVBytes(t, 16000, 2))
	if err != nil {
		t.Fatalf("store audio: %v", err)
	}
	podcast := &store.Podcast{
		ID:              audioRef,
		Title:           "Test Episode",
		DurationSeconds: 120,
		AudioRef:        audioRef,
		Status:          store.StatusPending,
	}
	if err := st.CreatePodcast(ctx, podcast); err != nil {
		t.Fatalf("create podcast: %v", err)
	}
	return &fixture{engine: engine, store: st, asr: client, invalidator: inv, podcastID: podcast.ID}
}

func speech(start, end float64, text string) asr.Segment {
	return asr.Segment{StartSeconds: start, EndSeconds: end, Text: text, Confidence: 0.8}
}

func TestTranscribePersistsCleanTranscript(t *testing.T) {
	client := &fakeASR{segments: []asr.Segment{
		speech(10, 20, "second part"),
		speech(0, 12, "first part"),
		speech(20, 30, "third part"),
	}}
	f := newFixture(t, client)
	ctx := context.Background()

	if err := f.engine.Transcribe(ctx, f.podcastID); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	podcast, err := f.store.GetPodcast(ctx, f.podcastID)
	if err != nil {
		t.Fatalf("GetPodcast: %v", err)
	}
	if podcast.Status != store.StatusReady {
		t.Fatalf("status = %s, want ready", podcast.Status)
	}

	segments, err := f.store.Segments(ctx, f.podcastID)
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(segments))
	}
	// The earlier segment's end is trimmed down to where the next one starts.
	if segments[0].StartSeconds != 0 || segments[0].EndSeconds != 10 {
		t.Fatalf("segment 0 span = %.0f-%.0f, want trimmed to 0-10", segments[0].StartSeconds, segments[0].EndSeconds)
	}
	if segments[1].StartSeconds != 10 || segments[1].EndSeconds != 20 {
		t.Fatalf("segment 1 span = %.0f-%.0f", segments[1].StartSeconds, segments[1].EndSeconds)
	}
	for i, seg := range segments {
		if seg.Seq != i {
			t.Fatalf("segment %d has seq %d", i, seg.Seq)
		}
	}
	if len(f.invalidator.ids) != 1 || f.invalidator.ids[0] != f.podcastID {
		t.Fatalf("index invalidations = %v", f.invalidator.ids)
	}
}

func TestTranscribeSharesInflightRun(t *testing.T) {
	client := &fakeASR{
		delay:    50 * time.Millisecond,
		segments: []asr.Segment{speech(0, 5, "hello")},
	}
	f := newFixture(t, client)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.engine.Transcribe(context.Background(), f.podcastID)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d failed: %v", i, err)
		}
	}
	if got := f.asr.callCount(); got != 1 {
		t.Fatalf("recognition ran %d times, want 1", got)
	}
}

func TestTranscribeAlreadyReadyIsNoop(t *testing.T) {
	client := &fakeASR{segments: []asr.Segment{speech(0, 5, "hello")}}
	f := newFixture(t, client)
	ctx := context.Background()

	if err := f.engine.Transcribe(ctx, f.podcastID); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if err := f.engine.Transcribe(ctx, f.podcastID); err != nil {
		t.Fatalf("second Transcribe failed: %v", err)
	}
	if got := f.asr.callCount(); got != 1 {
		t.Fatalf("recognition ran %d times, want 1", got)
	}
}

func TestTranscribeUnknownPodcast(t *testing.T) {
	f := newFixture(t, &fakeASR{segments: []asr.Segment{speech(0, 5, "hello")}})
	err := f.engine.Transcribe(context.Background(), "0000000000000000000000000000000000000000000000000000000000000000")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTranscribeRejectsOverlongAudio(t *testing.T) {
	client := &fakeASR{segments: []asr.Segment{speech(0, 5, "hello")}}
	f := newFixture(t, client, testsupport.WithMaxDurationMinutes(1))
	ctx := context.Background()

	err := f.engine.Transcribe(ctx, f.podcastID)
	if !errors.Is(err, services.ErrAudioTooLong) {
		t.Fatalf("expected ErrAudioTooLong, got %v", err)
	}
	if f.asr.callCount() != 0 {
		t.Fatal("recognition must not run for overlong audio")
	}
	podcast, _ := f.store.GetPodcast(ctx, f.podcastID)
	if podcast.Status != store.StatusFailed {
		t.Fatalf("status = %s, want failed", podcast.Status)
	}
	if podcast.ErrorMessage == "" {
		t.Fatal("failure reason must be recorded")
	}
}

func TestTranscribeRetriesTransientFailures(t *testing.T) {
	client := &fakeASR{
		failures: 2,
		failWith: services.Wrap(services.ErrTransient, "asr", "transcribe", "rate limited", nil),
		segments: []asr.Segment{speech(0, 5, "hello")},
	}
	f := newFixture(t, client)

	if err := f.engine.Transcribe(context.Background(), f.podcastID); err != nil {
		t.Fatalf("Transcribe failed after retries: %v", err)
	}
	if got := f.asr.callCount(); got != 3 {
		t.Fatalf("recognition ran %d times, want 3", got)
	}
}

func TestTranscribeExhaustsRetriesAndFails(t *testing.T) {
	client := &fakeASR{
		failures: 100,
		failWith: services.Wrap(services.ErrTransient, "asr", "transcribe", "still down", nil),
	}
	f := newFixture(t, client)
	ctx := context.Background()

	err := f.engine.Transcribe(ctx, f.podcastID)
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	podcast, _ := f.store.GetPodcast(ctx, f.podcastID)
	if podcast.Status != store.StatusFailed {
		t.Fatalf("status = %s, want failed", podcast.Status)
	}
}

func TestTranscribeEmptyRecognitionFails(t *testing.T) {
	client := &fakeASR{segments: nil}
	f := newFixture(t, client)
	ctx := context.Background()

	err := f.engine.Transcribe(ctx, f.podcastID)
	if !errors.Is(err, services.ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed, got %v", err)
	}
	podcast, _ := f.store.GetPodcast(ctx, f.podcastID)
	if podcast.Status != store.StatusFailed {
		t.Fatalf("status = %s, want failed", podcast.Status)
	}
}

func TestCleanSegments(t *testing.T) {
	raw := []asr.Segment{
		speech(5, 4, "inverted span"),
		speech(-1, 2, "negative start"),
		speech(0, 0, "zero width"),
		speech(3, 6, "  padded  "),
		speech(0, 4, "first"),
		speech(4, 4.5, "  "),
		speech(10, 12, "last"),
	}
	cleaned := cleanSegments("p1", raw)
	if len(cleaned) != 3 {
		t.Fatalf("got %d segments, want 3: %+v", len(cleaned), cleaned)
	}
	if cleaned[0].Text != "first" || cleaned[0].StartSeconds != 0 || cleaned[0].EndSeconds != 3 {
		t.Fatalf("earlier segment not trimmed to the later start: %+v", cleaned[0])
	}
	if cleaned[1].Text != "padded" || cleaned[1].StartSeconds != 3 || cleaned[1].EndSeconds != 6 {
		t.Fatalf("later segment altered: %+v", cleaned[1])
	}
	if cleaned[2].Text != "last" {
		t.Fatalf("unexpected final segment: %+v", cleaned[2])
	}
	for i, seg := range cleaned {
		if seg.Seq != i || seg.PodcastID != "p1" {
			t.Fatalf("segment %d misnumbered: %+v", i, seg)
		}
	}
}

func TestCleanSegmentsTrimsEarlierEnd(t *testing.T) {
	cleaned := cleanSegments("p1", []asr.Segment{
		speech(0, 10, "earlier"),
		speech(5, 12, "later"),
	})
	if len(cleaned) != 2 {
		t.Fatalf("got %d segments, want 2: %+v", len(cleaned), cleaned)
	}
	if cleaned[0].StartSeconds != 0 || cleaned[0].EndSeconds != 5 {
		t.Fatalf("earlier span = %.0f-%.0f, want 0-5", cleaned[0].StartSeconds, cleaned[0].EndSeconds)
	}
	if cleaned[1].StartSeconds != 5 || cleaned[1].EndSeconds != 12 {
		t.Fatalf("later span = %.0f-%.0f, want 5-12", cleaned[1].StartSeconds, cleaned[1].EndSeconds)
	}
}

func TestCleanSegmentsDropsFullyCoveredSegment(t *testing.T) {
	cleaned := cleanSegments("p1", []asr.Segment{
		speech(2, 4, "swallowed"),
		speech(2, 9, "survivor"),
		speech(9, 11, "tail"),
	})
	if len(cleaned) != 2 {
		t.Fatalf("got %d segments, want 2: %+v", len(cleaned), cleaned)
	}
	if cleaned[0].Text != "survivor" || cleaned[0].StartSeconds != 2 || cleaned[0].EndSeconds != 9 {
		t.Fatalf("covered segment not dropped: %+v", cleaned[0])
	}
	if cleaned[1].Text != "tail" || cleaned[1].Seq != 1 {
		t.Fatalf("sequence not renumbered after drop: %+v", cleaned[1])
	}
}
