package index

import (
	"context"
	"sort"
	"sync"

	"log/slog"

	"echopod/internal/config"
	"echopod/internal/logging"
	"echopod/internal/store"
)

// SegmentSource supplies the ordered transcript of one podcast.
type SegmentSource interface {
	Segments(ctx context.Context, podcastID string) ([]store.Segment, error)
}

// Match is one retrieved passage with its relevance score.
type Match struct {
	SegmentSeqs  []int
	StartSeconds float64
	EndSeconds   float64
	Text         string
	Score        float64
}

// Index ranks transcript windows against questions. Built corpora are cached
// per podcast until invalidated.
type Index struct {
	source         SegmentSource
	windowSeconds  int
	windowOverlap  int
	minScore       float64
	defaultTopK    int
	minTokenLength int
	logger         *slog.Logger

	mu     sync.RWMutex
	builds map[string]*podcastIndex
}

type podcastIndex struct {
	windows []Window
	docs    []termVector
	weights corpusWeights
}

// New builds an index over the given segment source.
func New(cfg *config.Config, source SegmentSource, logger *slog.Logger) *Index {
	return &Index{
		source:         source,
		windowSeconds:  cfg.Index.WindowSeconds,
		windowOverlap:  cfg.Index.WindowOverlap,
		minScore:       cfg.Index.MinScore,
		defaultTopK:    cfg.Index.DefaultTopK,
		minTokenLength: cfg.Index.MinTokenLength,
		logger:         logging.NewComponentLogger(logger, "index"),
		builds:         make(map[string]*podcastIndex),
	}
}

// Invalidate drops the cached corpus for a podcast. Call after its transcript
// changes or the podcast is deleted.
func (ix *Index) Invalidate(podcastID string) {
	ix.mu.Lock()
	delete(ix.builds, podcastID)
	ix.mu.Unlock()
}

// Search returns up to topK windows relevant to the question, best score
// first with chronological order breaking ties. An empty result means no
// window cleared the relevance threshold; it is not an error.
func (ix *Index) Search(ctx context.Context, podcastID string, question string, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = ix.defaultTopK
	}

	build, err := ix.build(ctx, podcastID)
	if err != nil {
		return nil, err
	}

	query := ix.weightedQuery(build, question)
	matches := make([]Match, 0, topK)
	for i, doc := range build.docs {
		score := cosine(query, doc)
		if score < ix.minScore {
			continue
		}
		win := build.windows[i]
		matches = append(matches, Match{
			SegmentSeqs:  win.SegmentSeqs,
			StartSeconds: win.StartSeconds,
			EndSeconds:   win.EndSeconds,
			Text:         win.Text,
			Score:        score,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].StartSeconds < matches[j].StartSeconds
		}
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}

	ix.logger.DebugContext(ctx, "search complete",
		logging.String("podcast_id", podcastID),
		logging.Int("windows", build.weights.docCount),
		logging.Int("matches", len(matches)),
	)
	return matches, nil
}

func (ix *Index) weightedQuery(build *podcastIndex, question string) termVector {
	tokens := tokenize(question, ix.minTokenLength)
	return build.weights.weighted(newTermVector(tokens))
}

// build returns the cached corpus for a podcast, constructing it on first use.
func (ix *Index) build(ctx context.Context, podcastID string) (*podcastIndex, error) {
	ix.mu.RLock()
	cached, ok := ix.builds[podcastID]
	ix.mu.RUnlock()
	if ok {
		return cached, nil
	}

	segments, err := ix.source.Segments(ctx, podcastID)
	if err != nil {
		return nil, err
	}

	windows := buildWindows(segments, ix.windowSeconds, ix.windowOverlap)
	docs := make([]termVector, len(windows))
	for i, win := range windows {
		docs[i] = newTermVector(tokenize(win.Text, ix.minTokenLength))
	}
	build := &podcastIndex{
		windows: windows,
		docs:    docs,
		weights: buildWeights(docs),
	}

	ix.mu.Lock()
	// Another goroutine may have built concurrently; either result is valid.
	ix.builds[podcastID] = build
	ix.mu.Unlock()
	return build, nil
}
