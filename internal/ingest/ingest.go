package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"log/slog"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"echopod/internal/audio"
	"echopod/internal/blobstore"
	"echopod/internal/config"
	"echopod/internal/logging"
	"echopod/internal/services"
	"echopod/internal/store"
)

// Normalizer converts raw uploaded audio to canonical WAV.
type Normalizer interface {
	Normalize(ctx context.Context, raw []byte, mimeType string) (*audio.Result, error)
}

// Blobs is the slice of the blob store ingestion needs.
type Blobs interface {
	Put(ctx context.Context, category blobstore.Category, data []byte) (string, error)
}

// Request is one upload to admit.
type Request struct {
	Data     []byte
	MimeType string
	Filename string
	Title    string
}

// Outcome reports the admitted podcast and whether this upload created it.
type Outcome struct {
	Podcast *store.Podcast
	Created bool
}

// Manager runs the ingestion flow.
type Manager struct {
	store          *store.Store
	blobs          Blobs
	normalizer     Normalizer
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewManager wires an ingestion manager.
func NewManager(cfg *config.Config, st *store.Store, blobs Blobs, normalizer Normalizer, logger *slog.Logger) *Manager {
	return &Manager{
		store:          st,
		blobs:          blobs,
		normalizer:     normalizer,
		maxUploadBytes: cfg.MaxUploadBytes(),
		logger:         logging.NewComponentLogger(logger, "ingest"),
	}
}

// Ingest validates and admits one upload. The podcast id is the SHA-256 of
// the normalized audio, so byte-identical uploads dedupe to one record no
// matter the container they arrived in.
func (m *Manager) Ingest(ctx context.Context, req Request) (*Outcome, error) {
	if len(req.Data) == 0 {
		return nil, services.Wrap(services.ErrValidation, "ingest", "validate", "empty upload", nil)
	}
	if int64(len(req.Data)) > m.maxUploadBytes {
		return nil, services.Wrap(services.ErrValidation, "ingest", "validate",
			fmt.Sprintf("upload of %d bytes exceeds limit of %d", len(req.Data), m.maxUploadBytes), nil)
	}

	normalized, err := m.normalizer.Normalize(ctx, req.Data, req.MimeType)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(normalized.WAV)
	id := hex.EncodeToString(sum[:])
	ctx = services.WithPodcastID(ctx, id)

	existing, err := m.store.GetPodcast(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		m.logger.InfoContext(ctx, "duplicate upload matched existing podcast",
			logging.String("podcast_id", id),
			logging.String("status", string(existing.Status)),
		)
		return &Outcome{Podcast: existing}, nil
	}

	audioRef, err := m.blobs.Put(ctx, blobstore.CategoryAudio, normalized.WAV)
	if err != nil {
		return nil, err
	}

	podcast := &store.Podcast{
		ID:              id,
		Title:           resolveTitle(req.Title, req.Filename),
		DurationSeconds: normalized.DurationSeconds,
		AudioRef:        audioRef,
		Status:          store.StatusPending,
	}
	if err := m.store.CreatePodcast(ctx, podcast); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "podcast admitted",
		logging.String("podcast_id", id),
		logging.String("title", podcast.Title),
		logging.Float64("duration_seconds", podcast.DurationSeconds),
	)
	return &Outcome{Podcast: podcast, Created: true}, nil
}

var titleCaser = cases.Title(language.English)

// resolveTitle prefers an explicit title, then a cleaned-up filename, then a
// placeholder.
func resolveTitle(title, filename string) string {
	if title = strings.TrimSpace(title); title != "" {
		return title
	}
	base := filepath.Base(strings.TrimSpace(filename))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" || base == "/" {
		return "Untitled Episode"
	}
	return titleCaser.String(base)
}
