package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const podcastColumns = `id, title, duration_seconds, audio_ref, status,
	COALESCE(error_message, ''), created_at, updated_at`

// CreatePodcast inserts a new podcast record. The id must be the content hash
// of the normalized audio; inserting an id that already exists is an error
// (callers dedupe with GetPodcast first).
func (s *Store) CreatePodcast(ctx context.Context, podcast *Podcast) error {
	if podcast == nil {
		return errors.New("podcast is nil")
	}
	if strings.TrimSpace(podcast.ID) == "" {
		return errors.New("podcast id is empty")
	}
	if strings.TrimSpace(podcast.AudioRef) == "" {
		return errors.New("podcast audio ref is empty")
	}
	if podcast.Status == "" {
		podcast.Status = StatusPending
	}
	now := time.Now().UTC()
	podcast.CreatedAt = now
	podcast.UpdatedAt = now

	err := s.execWithRetry(
		ctx,
		`INSERT INTO podcasts (id, title, duration_seconds, audio_ref, status, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		podcast.ID,
		podcast.Title,
		podcast.DurationSeconds,
		podcast.AudioRef,
		podcast.Status,
		nullableString(podcast.ErrorMessage),
		timestamp(now),
		timestamp(now),
	)
	if err != nil {
		return fmt.Errorf("insert podcast: %w", err)
	}
	return nil
}

// GetPodcast fetches a podcast by identifier. Returns nil when absent.
func (s *Store) GetPodcast(ctx context.Context, id string) (*Podcast, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+podcastColumns+` FROM podcasts WHERE id = ?`, id)
	podcast, err := scanPodcast(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get podcast: %w", err)
	}
	return podcast, nil
}

// ListPodcasts returns all podcasts ordered by creation time, newest first.
func (s *Store) ListPodcasts(ctx context.Context) ([]*Podcast, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+podcastColumns+` FROM podcasts ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list podcasts: %w", err)
	}
	defer rows.Close()

	var podcasts []*Podcast
	for rows.Next() {
		podcast, err := scanPodcast(rows)
		if err != nil {
			return nil, fmt.Errorf("scan podcast: %w", err)
		}
		podcasts = append(podcasts, podcast)
	}
	return podcasts, rows.Err()
}

// ListPodcastsByStatus returns podcasts in the given status, oldest first, so
// background workers pick up the longest-waiting work.
func (s *Store) ListPodcastsByStatus(ctx context.Context, status Status) ([]*Podcast, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+podcastColumns+` FROM podcasts WHERE status = ? ORDER BY created_at, id`, status)
	if err != nil {
		return nil, fmt.Errorf("list podcasts by status: %w", err)
	}
	defer rows.Close()

	var podcasts []*Podcast
	for rows.Next() {
		podcast, err := scanPodcast(rows)
		if err != nil {
			return nil, fmt.Errorf("scan podcast: %w", err)
		}
		podcasts = append(podcasts, podcast)
	}
	return podcasts, rows.Err()
}

// SetPodcastStatus transitions a podcast's lifecycle status. The error message
// is cleared unless the new status is failed.
func (s *Store) SetPodcastStatus(ctx context.Context, id string, status Status, errorMessage string) error {
	if status != StatusFailed {
		errorMessage = ""
	}
	if err := s.execWithRetry(
		ctx,
		`UPDATE podcasts SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status,
		nullableString(errorMessage),
		timestamp(time.Now().UTC()),
		id,
	); err != nil {
		return fmt.Errorf("set podcast status: %w", err)
	}
	return nil
}

// DeletePodcast removes a podcast along with its segments and answers.
func (s *Store) DeletePodcast(ctx context.Context, id string) error {
	if err := s.execWithRetry(ctx, `DELETE FROM podcasts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete podcast: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPodcast(row rowScanner) (*Podcast, error) {
	var (
		podcast   Podcast
		status    string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(
		&podcast.ID,
		&podcast.Title,
		&podcast.DurationSeconds,
		&podcast.AudioRef,
		&status,
		&podcast.ErrorMessage,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	podcast.Status = Status(status)
	podcast.CreatedAt = parseTimestamp(createdAt)
	podcast.UpdatedAt = parseTimestamp(updatedAt)
	return &podcast, nil
}
