package daemon

import (
	"time"

	"echopod/internal/store"
)

type questionRequest struct {
	Question string `json:"question"`
}

type podcastResponse struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	DurationSeconds float64 `json:"duration_seconds"`
	Status          string  `json:"status"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

type podcastListResponse struct {
	Podcasts []podcastResponse `json:"podcasts"`
}

type segmentResponse struct {
	Seq          int     `json:"seq"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence"`
}

type transcriptResponse struct {
	PodcastID string            `json:"podcast_id"`
	Segments  []segmentResponse `json:"segments"`
}

type answerResponse struct {
	Fingerprint string `json:"fingerprint"`
	PodcastID   string `json:"podcast_id"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	SegmentSeqs []int  `json:"segment_seqs"`
	AudioURL    string `json:"audio_url"`
	CreatedAt   string `json:"created_at"`
}

type answerListResponse struct {
	Answers []answerResponse `json:"answers"`
}

func podcastPayload(podcast *store.Podcast) podcastResponse {
	return podcastResponse{
		ID:              podcast.ID,
		Title:           podcast.Title,
		DurationSeconds: podcast.DurationSeconds,
		Status:          string(podcast.Status),
		ErrorMessage:    podcast.ErrorMessage,
		CreatedAt:       podcast.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       podcast.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func answerPayload(answer *store.Answer) answerResponse {
	seqs := answer.SegmentSeqs
	if seqs == nil {
		seqs = []int{}
	}
	return answerResponse{
		Fingerprint: answer.Fingerprint,
		PodcastID:   answer.PodcastID,
		Question:    answer.Question,
		Answer:      answer.Text,
		SegmentSeqs: seqs,
		AudioURL:    "/api/answers/" + answer.Fingerprint + "/audio",
		CreatedAt:   answer.CreatedAt.UTC().Format(time.RFC3339),
	}
}
