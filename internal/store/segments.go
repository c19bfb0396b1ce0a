package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ReplaceSegments atomically replaces a podcast's transcript and marks it
// ready. Any previous segments are removed in the same transaction, so readers
// never observe a partial sequence. Segments must already be ordered and
// non-overlapping; Seq is assigned from slice position.
func (s *Store) ReplaceSegments(ctx context.Context, podcastID string, segments []Segment, durationSeconds float64) error {
	if len(segments) == 0 {
		return errors.New("refusing to persist empty transcript")
	}
	ctx = ensureContext(ctx)

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transcript tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE podcast_id = ?`, podcastID); err != nil {
			return fmt.Errorf("clear segments: %w", err)
		}

		insert, err := tx.PrepareContext(ctx,
			`INSERT INTO segments (podcast_id, seq, start_seconds, end_seconds, text, confidence)
			 VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare segment insert: %w", err)
		}
		defer insert.Close()

		for i, segment := range segments {
			if _, err := insert.ExecContext(ctx, podcastID, i, segment.StartSeconds, segment.EndSeconds, segment.Text, segment.Confidence); err != nil {
				return fmt.Errorf("insert segment %d: %w", i, err)
			}
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE podcasts SET status = ?, duration_seconds = ?, error_message = NULL, updated_at = ? WHERE id = ?`,
			StatusReady, durationSeconds, timestamp(time.Now().UTC()), podcastID)
		if err != nil {
			return fmt.Errorf("mark podcast ready: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("podcast %s not found", podcastID)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transcript: %w", err)
		}
		return nil
	})
}

// Segments returns a podcast's transcript ordered by sequence index.
func (s *Store) Segments(ctx context.Context, podcastID string) ([]Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT podcast_id, seq, start_seconds, end_seconds, text, confidence
		 FROM segments WHERE podcast_id = ? ORDER BY seq`, podcastID)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var segment Segment
		if err := rows.Scan(
			&segment.PodcastID,
			&segment.Seq,
			&segment.StartSeconds,
			&segment.EndSeconds,
			&segment.Text,
			&segment.Confidence,
		); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		segments = append(segments, segment)
	}
	return segments, rows.Err()
}

// SegmentCount reports the number of persisted segments for a podcast.
func (s *Store) SegmentCount(ctx context.Context, podcastID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM segments WHERE podcast_id = ?`, podcastID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count segments: %w", err)
	}
	return count, nil
}
