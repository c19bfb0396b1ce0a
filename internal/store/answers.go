package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const answerColumns = `fingerprint, podcast_id, question, answer_text, segment_seqs,
	COALESCE(audio_ref, ''), created_at`

// SaveAnswer persists an answer keyed by fingerprint. Saving an existing
// fingerprint replaces the record (used when synthesis attaches audio).
func (s *Store) SaveAnswer(ctx context.Context, answer *Answer) error {
	if answer == nil {
		return errors.New("answer is nil")
	}
	if strings.TrimSpace(answer.Fingerprint) == "" {
		return errors.New("answer fingerprint is empty")
	}
	if answer.CreatedAt.IsZero() {
		answer.CreatedAt = time.Now().UTC()
	}
	seqs, err := json.Marshal(answer.SegmentSeqs)
	if err != nil {
		return fmt.Errorf("marshal segment seqs: %w", err)
	}

	if err := s.execWithRetry(
		ctx,
		`INSERT INTO answers (fingerprint, podcast_id, question, answer_text, segment_seqs, audio_ref, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET
		   answer_text = excluded.answer_text,
		   segment_seqs = excluded.segment_seqs,
		   audio_ref = excluded.audio_ref`,
		answer.Fingerprint,
		answer.PodcastID,
		answer.Question,
		answer.Text,
		string(seqs),
		nullableString(answer.AudioRef),
		timestamp(answer.CreatedAt),
	); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// GetAnswer fetches a cached answer by fingerprint. Returns nil when absent.
func (s *Store) GetAnswer(ctx context.Context, fingerprint string) (*Answer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+answerColumns+` FROM answers WHERE fingerprint = ?`, fingerprint)
	answer, err := scanAnswer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get answer: %w", err)
	}
	return answer, nil
}

// SetAnswerAudioRef records the synthesized-audio reference for an answer.
func (s *Store) SetAnswerAudioRef(ctx context.Context, fingerprint, audioRef string) error {
	if err := s.execWithRetry(
		ctx,
		`UPDATE answers SET audio_ref = ? WHERE fingerprint = ?`,
		nullableString(audioRef),
		fingerprint,
	); err != nil {
		return fmt.Errorf("set answer audio ref: %w", err)
	}
	return nil
}

// ClearAudioRef detaches an evicted audio blob from any answer referencing it.
// The answer text remains retrievable; a later synthesis re-attaches audio.
func (s *Store) ClearAudioRef(ctx context.Context, audioRef string) error {
	if strings.TrimSpace(audioRef) == "" {
		return nil
	}
	if err := s.execWithRetry(
		ctx,
		`UPDATE answers SET audio_ref = NULL WHERE audio_ref = ?`,
		audioRef,
	); err != nil {
		return fmt.Errorf("clear audio ref: %w", err)
	}
	return nil
}

// AnswersByPodcast returns cached answers for a podcast, newest first.
func (s *Store) AnswersByPodcast(ctx context.Context, podcastID string) ([]*Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+answerColumns+` FROM answers WHERE podcast_id = ? ORDER BY created_at DESC, fingerprint`, podcastID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var answers []*Answer
	for rows.Next() {
		answer, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, answer)
	}
	return answers, rows.Err()
}

func scanAnswer(row rowScanner) (*Answer, error) {
	var (
		answer    Answer
		seqsJSON  string
		createdAt string
	)
	if err := row.Scan(
		&answer.Fingerprint,
		&answer.PodcastID,
		&answer.Question,
		&answer.Text,
		&seqsJSON,
		&answer.AudioRef,
		&createdAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(seqsJSON), &answer.SegmentSeqs); err != nil {
		return nil, fmt.Errorf("decode segment seqs: %w", err)
	}
	answer.CreatedAt = parseTimestamp(createdAt)
	return &answer, nil
}
