package asr

import "context"

// Segment is one recognized span of speech with absolute timestamps.
type Segment struct {
	StartSeconds float64
	EndSeconds   float64
	Text         string
	// Confidence is in [0, 1], derived from the recognizer's token log
	// probabilities.
	Confidence float64
}

// Client recognizes speech from an audio file on disk.
type Client interface {
	Transcribe(ctx context.Context, audioPath string) ([]Segment, error)
}
