package generation

import "context"

// Excerpt is a transcript passage offered to the model as grounding.
type Excerpt struct {
	StartSeconds float64
	EndSeconds   float64
	Text         string
}

// Request describes one answer to produce.
type Request struct {
	PodcastTitle string
	Question     string
	Excerpts     []Excerpt
}

// Client produces a grounded plain-text answer.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}
