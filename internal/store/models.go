package store

import (
	"strings"
	"time"
)

// Status represents the ingestion lifecycle of a podcast.
type Status string

const (
	StatusPending      Status = "pending"
	StatusTranscribing Status = "transcribing"
	StatusReady        Status = "ready"
	StatusFailed       Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusTranscribing,
	StatusReady,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Podcast represents one ingested long-form audio item. The id is the content
// hash of the normalized audio, so byte-identical uploads share a record.
type Podcast struct {
	ID              string
	Title           string
	DurationSeconds float64
	AudioRef        string
	Status          Status
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Transcribed reports whether the podcast has a usable transcript.
func (p *Podcast) Transcribed() bool {
	return p != nil && p.Status == StatusReady
}

// Segment is one time-aligned slice of transcript text. Segments are ordered
// by Seq, which matches chronological order once persisted.
type Segment struct {
	PodcastID    string
	Seq          int
	StartSeconds float64
	EndSeconds   float64
	Text         string
	Confidence   float64
}

// Answer is a cached grounded response to a question about a podcast.
// SegmentSeqs lists the sequence indexes of the supporting segments; AudioRef
// points at synthesized audio in the blob store and may be empty (or dangling
// after eviction) while the text stays valid.
type Answer struct {
	Fingerprint string
	PodcastID   string
	Question    string
	Text        string
	SegmentSeqs []int
	AudioRef    string
	CreatedAt   time.Time
}
