package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"log/slog"

	"golang.org/x/sys/unix"

	"echopod/internal/config"
	"echopod/internal/logging"
	"echopod/internal/services"
)

// Category partitions blobs by lifecycle.
type Category string

const (
	// CategoryAudio holds normalized podcast audio. Never evicted automatically.
	CategoryAudio Category = "audio"
	// CategoryResponses holds synthesized answer audio. Evicted LRU past the budget.
	CategoryResponses Category = "responses"
)

// freeSpaceFloor is the minimum free-space ratio allowed before pruning kicks
// in regardless of the configured budget (0.05 => 95% full).
const freeSpaceFloor = 0.05

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

// EvictionHook is invoked after a response blob is removed so secondary
// indexes (answer records) can detach the dangling reference.
type EvictionHook func(ctx context.Context, id string)

// Store is a content-addressed blob store rooted in one directory per category.
type Store struct {
	root           string
	responseBudget int64
	logger         *slog.Logger
	statfs         statfsFunc

	mu      sync.Mutex
	onEvict EvictionHook
}

// Stats describes current response-cache usage.
type Stats struct {
	ResponseEntries int   `json:"response_entries"`
	ResponseBytes   int64 `json:"response_bytes"`
	BudgetBytes     int64 `json:"budget_bytes"`
	AudioEntries    int   `json:"audio_entries"`
	AudioBytes      int64 `json:"audio_bytes"`
}

// New builds a blob store rooted at the config's blob directory.
func New(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("blobstore requires config")
	}
	root := cfg.BlobDir()
	for _, category := range []Category{CategoryAudio, CategoryResponses} {
		if err := os.MkdirAll(filepath.Join(root, string(category)), 0o755); err != nil {
			return nil, fmt.Errorf("create blob directory: %w", err)
		}
	}
	return &Store{
		root:           root,
		responseBudget: cfg.ResponseBudgetBytes(),
		logger:         logging.NewComponentLogger(logger, "blobstore"),
		statfs:         realStatfs,
	}, nil
}

// SetEvictionHook registers the callback invoked for each evicted response blob.
func (s *Store) SetEvictionHook(hook EvictionHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = hook
}

// Put stores bytes and returns their content id. Storing identical bytes is
// idempotent and refreshes recency. Response writes trigger pruning.
func (s *Store) Put(ctx context.Context, category Category, data []byte) (string, error) {
	if len(data) == 0 {
		return "", services.Wrap(services.ErrValidation, "blobstore", "put", "empty payload", nil)
	}
	sum := sha256.Sum256(data)
	id := hex.EncodeToString(sum[:])

	path := s.blobPath(category, id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("ensure blob shard: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		now := time.Now()
		_ = os.Chtimes(path, now, now)
	} else {
		tmp := path + fmt.Sprintf(".tmp-%d", time.Now().UnixNano())
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return "", fmt.Errorf("write blob temp: %w", err)
		}
		if err := os.Rename(tmp, path); err != nil {
			_ = os.Remove(tmp)
			return "", fmt.Errorf("rename blob: %w", err)
		}
	}

	if category == CategoryResponses {
		if err := s.prune(ctx, id); err != nil {
			return "", err
		}
	}
	return id, nil
}

// Get returns blob bytes by content id and refreshes recency.
func (s *Store) Get(ctx context.Context, category Category, id string) ([]byte, error) {
	path, err := s.lookupPath(category, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "blobstore", "get", id, nil)
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	now := time.Now()
	_ = os.Chtimes(path, now, now)
	return data, nil
}

// Has reports whether a blob is currently present.
func (s *Store) Has(category Category, id string) bool {
	path, err := s.lookupPath(category, id)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Path returns the on-disk location of a blob without touching recency.
func (s *Store) Path(category Category, id string) (string, error) {
	path, err := s.lookupPath(category, id)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "blobstore", "path", id, nil)
		}
		return "", fmt.Errorf("stat blob: %w", err)
	}
	return path, nil
}

// Delete removes a blob. Missing blobs are not an error.
func (s *Store) Delete(category Category, id string) error {
	path, err := s.lookupPath(category, id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// Stats returns usage for both categories.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	responses, responseBytes, err := s.scan(CategoryResponses)
	if err != nil {
		return Stats{}, err
	}
	audio, audioBytes, err := s.scan(CategoryAudio)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		ResponseEntries: len(responses),
		ResponseBytes:   responseBytes,
		BudgetBytes:     s.responseBudget,
		AudioEntries:    len(audio),
		AudioBytes:      audioBytes,
	}, nil
}

// Prune removes least-recently-used response blobs until the budget and
// free-space constraints are satisfied. keepID, when present, is never removed.
func (s *Store) Prune(ctx context.Context, keepID string) error {
	return s.prune(ctx, keepID)
}

func (s *Store) prune(ctx context.Context, keepID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, totalSize, err := s.scan(CategoryResponses)
	if err != nil {
		return err
	}

	for len(entries) > 0 {
		freeOK, err := s.freeSpaceOK()
		if err != nil {
			return err
		}
		if totalSize <= s.responseBudget && freeOK {
			return nil
		}
		oldest := entries[0]
		if oldest.id == keepID {
			if len(entries) == 1 {
				return nil
			}
			entries = entries[1:]
			continue
		}
		if err := os.Remove(oldest.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("evict blob %q: %w", oldest.id, err)
		}
		s.logger.InfoContext(ctx, "evicted response audio",
			logging.String("content_id", oldest.id),
			logging.Int64("size_bytes", oldest.sizeBytes),
		)
		if s.onEvict != nil {
			s.onEvict(ctx, oldest.id)
		}
		totalSize -= oldest.sizeBytes
		entries = entries[1:]
	}
	return nil
}

type blobEntry struct {
	id        string
	path      string
	sizeBytes int64
	modTime   time.Time
}

// scan walks one category and returns entries sorted oldest-access first.
func (s *Store) scan(category Category) ([]blobEntry, int64, error) {
	root := filepath.Join(s.root, string(category))
	var (
		entries []blobEntry
		total   int64
	)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.Contains(d.Name(), ".tmp-") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		entries = append(entries, blobEntry{
			id:        d.Name(),
			path:      path,
			sizeBytes: info.Size(),
			modTime:   info.ModTime(),
		})
		total += info.Size()
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan %s blobs: %w", category, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].modTime.Equal(entries[j].modTime) {
			return entries[i].id < entries[j].id
		}
		return entries[i].modTime.Before(entries[j].modTime)
	})
	return entries, total, nil
}

func (s *Store) freeSpaceOK() (bool, error) {
	total, free, err := s.statfs(s.root)
	if err != nil {
		return false, fmt.Errorf("statfs: %w", err)
	}
	if total == 0 {
		return true, nil
	}
	return float64(free)/float64(total) >= freeSpaceFloor, nil
}

func (s *Store) blobPath(category Category, id string) string {
	shard := "00"
	if len(id) >= 2 {
		shard = id[:2]
	}
	return filepath.Join(s.root, string(category), shard, id)
}

func (s *Store) lookupPath(category Category, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "/\\.") {
		return "", services.Wrap(services.ErrValidation, "blobstore", "lookup", "invalid content id", nil)
	}
	return s.blobPath(category, id), nil
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
