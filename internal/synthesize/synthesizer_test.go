package synthesize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"echopod/internal/blobstore"
	"echopod/internal/logging"
	"echopod/internal/services"
	"echopod/internal/store"
	"echopod/internal/testsupport"
)

type fakeTTS struct {
	mu       sync.Mutex
	calls    int
	delay    time.Duration
	failWith error
	audio    []byte
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.audio != nil {
		return f.audio, nil
	}
	return []byte("spoken: " + text), nil
}

func (f *fakeTTS) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

const fingerprint = "f1e2d3c4b5a6978887796a5b4c3d2e1f0f1e2d3c4b5a6978887796a5b4c3d2e1"

func newSynthesizer(t *testing.T, client *fakeTTS) (*Synthesizer, *store.Store, *blobstore.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	blobs, err := blobstore.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("blobstore: %v", err)
	}
	s := NewSynthesizer(cfg, st, blobs, client, logging.NewNop())
	s.retryInitial = time.Millisecond

	ctx := context.Background()
	podcastID := "c000000000000000000000000000000000000000000000000000000000000000"
	podcast := &store.Podcast{ID: podcastID, Title: "Ocean Hour", AudioRef: podcastID, Status: store.StatusReady}
	if err := st.CreatePodcast(ctx, podcast); err != nil {
		t.Fatalf("create podcast: %v", err)
	}
	answer := &store.Answer{
		Fingerprint: fingerprint,
		PodcastID:   podcastID,
		Question:    "what lives in tide pools",
		Text:        "Anemones and hermit crabs live there.",
		SegmentSeqs: []int{1, 2},
	}
	if err := st.SaveAnswer(ctx, answer); err != nil {
		t.Fatalf("save answer: %v", err)
	}
	return s, st, blobs
}

func TestEnsureAudioSynthesizesOnceAndCaches(t *testing.T) {
	client := &fakeTTS{}
	s, st, blobs := newSynthesizer(t, client)
	ctx := context.Background()

	ref, err := s.EnsureAudio(ctx, fingerprint)
	if err != nil {
		t.Fatalf("EnsureAudio failed: %v", err)
	}
	if !blobs.Has(blobstore.CategoryResponses, ref) {
		t.Fatal("synthesized audio must land in the response cache")
	}
	answer, _ := st.GetAnswer(ctx, fingerprint)
	if answer.AudioRef != ref {
		t.Fatalf("answer audio ref = %q, want %q", answer.AudioRef, ref)
	}

	again, err := s.EnsureAudio(ctx, fingerprint)
	if err != nil {
		t.Fatalf("second EnsureAudio failed: %v", err)
	}
	if again != ref {
		t.Fatalf("refs differ: %q vs %q", ref, again)
	}
	if client.callCount() != 1 {
		t.Fatalf("synthesis ran %d times, want 1", client.callCount())
	}
}

func TestEnsureAudioResynthesizesAfterEviction(t *testing.T) {
	client := &fakeTTS{}
	s, st, blobs := newSynthesizer(t, client)
	ctx := context.Background()

	ref, err := s.EnsureAudio(ctx, fingerprint)
	if err != nil {
		t.Fatalf("EnsureAudio failed: %v", err)
	}
	// Simulate budget eviction: blob removed, answer ref detached.
	if err := blobs.Delete(blobstore.CategoryResponses, ref); err != nil {
		t.Fatalf("delete blob: %v", err)
	}
	if err := st.ClearAudioRef(ctx, ref); err != nil {
		t.Fatalf("clear audio ref: %v", err)
	}

	answer, _ := st.GetAnswer(ctx, fingerprint)
	if answer.Text == "" {
		t.Fatal("answer text must survive eviction")
	}

	ref2, err := s.EnsureAudio(ctx, fingerprint)
	if err != nil {
		t.Fatalf("re-synthesis failed: %v", err)
	}
	if !blobs.Has(blobstore.CategoryResponses, ref2) {
		t.Fatal("regenerated audio must be stored")
	}
	if client.callCount() != 2 {
		t.Fatalf("synthesis ran %d times, want 2", client.callCount())
	}
}

func TestEnsureAudioDanglingRefResynthesizes(t *testing.T) {
	client := &fakeTTS{}
	s, _, blobs := newSynthesizer(t, client)
	ctx := context.Background()

	ref, err := s.EnsureAudio(ctx, fingerprint)
	if err != nil {
		t.Fatalf("EnsureAudio failed: %v", err)
	}
	// Blob gone but the ref still recorded: the stale ref must not be served.
	if err := blobs.Delete(blobstore.CategoryResponses, ref); err != nil {
		t.Fatalf("delete blob: %v", err)
	}

	client.audio = []byte("different take")
	ref2, err := s.EnsureAudio(ctx, fingerprint)
	if err != nil {
		t.Fatalf("EnsureAudio failed: %v", err)
	}
	if ref2 == ref {
		t.Fatal("dangling ref must be replaced, not returned")
	}
	if !blobs.Has(blobstore.CategoryResponses, ref2) {
		t.Fatal("replacement audio must be stored")
	}
}

func TestEnsureAudioConcurrentCallsShareSynthesis(t *testing.T) {
	client := &fakeTTS{delay: 50 * time.Millisecond}
	s, _, _ := newSynthesizer(t, client)

	const callers = 8
	var wg sync.WaitGroup
	refs := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			refs[i], errs[i] = s.EnsureAudio(context.Background(), fingerprint)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if refs[i] != refs[0] {
			t.Fatalf("caller %d got ref %q, others got %q", i, refs[i], refs[0])
		}
	}
	if client.callCount() != 1 {
		t.Fatalf("synthesis ran %d times, want 1", client.callCount())
	}
}

func TestEnsureAudioFailureLeavesTextIntact(t *testing.T) {
	client := &fakeTTS{failWith: services.Wrap(services.ErrValidation, "tts", "synthesize", "voice rejected", nil)}
	s, st, _ := newSynthesizer(t, client)
	ctx := context.Background()

	_, err := s.EnsureAudio(ctx, fingerprint)
	if err == nil {
		t.Fatal("expected synthesis failure")
	}
	answer, getErr := st.GetAnswer(ctx, fingerprint)
	if getErr != nil {
		t.Fatalf("GetAnswer: %v", getErr)
	}
	if answer.Text == "" {
		t.Fatal("answer text must remain after synthesis failure")
	}
	if answer.AudioRef != "" {
		t.Fatalf("no audio ref should be recorded on failure, got %q", answer.AudioRef)
	}
}

func TestEnsureAudioUnknownFingerprint(t *testing.T) {
	s, _, _ := newSynthesizer(t, &fakeTTS{})
	_, err := s.EnsureAudio(context.Background(), fmt.Sprintf("%064d", 0))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
