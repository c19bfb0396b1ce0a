package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// apiClient is a thin HTTP wrapper around the daemon API. Question and audio
// requests run without a client-side deadline because the daemon may need to
// call external capabilities before it can respond.
type apiClient struct {
	base string
	http *http.Client
	slow *http.Client
}

type podcastModel struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	DurationSeconds float64 `json:"duration_seconds"`
	Status          string  `json:"status"`
	ErrorMessage    string  `json:"error_message"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

type podcastListModel struct {
	Podcasts []podcastModel `json:"podcasts"`
}

type segmentModel struct {
	Seq          int     `json:"seq"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence"`
}

type transcriptModel struct {
	PodcastID string         `json:"podcast_id"`
	Segments  []segmentModel `json:"segments"`
}

type answerModel struct {
	Fingerprint string `json:"fingerprint"`
	PodcastID   string `json:"podcast_id"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	SegmentSeqs []int  `json:"segment_seqs"`
	AudioURL    string `json:"audio_url"`
	CreatedAt   string `json:"created_at"`
}

type answerListModel struct {
	Answers []answerModel `json:"answers"`
}

type componentHealthModel struct {
	Ready  bool   `json:"ready"`
	Detail string `json:"detail"`
}

type healthModel struct {
	Healthy    bool                            `json:"healthy"`
	Components map[string]componentHealthModel `json:"components"`
}

func newAPIClient(address string) *apiClient {
	return &apiClient{
		base: "http://" + address,
		http: &http.Client{Timeout: 30 * time.Second},
		slow: &http.Client{},
	}
}

func (c *apiClient) address() string {
	return strings.TrimPrefix(c.base, "http://")
}

func (c *apiClient) Upload(ctx context.Context, filename, title string, data []byte) (podcastModel, bool, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return podcastModel{}, false, fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return podcastModel{}, false, fmt.Errorf("build upload: %w", err)
	}
	if title != "" {
		if err := writer.WriteField("title", title); err != nil {
			return podcastModel{}, false, fmt.Errorf("build upload: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return podcastModel{}, false, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/podcasts", &body)
	if err != nil {
		return podcastModel{}, false, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.slow.Do(req)
	if err != nil {
		return podcastModel{}, false, wrapDialError(err, c.address())
	}
	defer resp.Body.Close()

	var podcast podcastModel
	if err := decodeResponse(resp, &podcast); err != nil {
		return podcastModel{}, false, err
	}
	return podcast, resp.StatusCode == http.StatusCreated, nil
}

func (c *apiClient) Podcasts(ctx context.Context) ([]podcastModel, error) {
	var payload podcastListModel
	if err := c.get(ctx, "/api/podcasts", &payload); err != nil {
		return nil, err
	}
	return payload.Podcasts, nil
}

func (c *apiClient) Podcast(ctx context.Context, id string) (podcastModel, error) {
	var podcast podcastModel
	err := c.get(ctx, "/api/podcasts/"+url.PathEscape(id), &podcast)
	return podcast, err
}

func (c *apiClient) Delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+"/api/podcasts/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapDialError(err, c.address())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return responseError(resp)
	}
	return nil
}

func (c *apiClient) Transcript(ctx context.Context, id string) (transcriptModel, error) {
	var payload transcriptModel
	err := c.get(ctx, "/api/podcasts/"+url.PathEscape(id)+"/transcript", &payload)
	return payload, err
}

func (c *apiClient) Answers(ctx context.Context, id string) ([]answerModel, error) {
	var payload answerListModel
	if err := c.get(ctx, "/api/podcasts/"+url.PathEscape(id)+"/answers", &payload); err != nil {
		return nil, err
	}
	return payload.Answers, nil
}

func (c *apiClient) Ask(ctx context.Context, id, question string) (answerModel, error) {
	body, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return answerModel{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/api/podcasts/"+url.PathEscape(id)+"/questions", bytes.NewReader(body))
	if err != nil {
		return answerModel{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.slow.Do(req)
	if err != nil {
		return answerModel{}, wrapDialError(err, c.address())
	}
	defer resp.Body.Close()

	var answer answerModel
	if err := decodeResponse(resp, &answer); err != nil {
		return answerModel{}, err
	}
	return answer, nil
}

func (c *apiClient) AnswerAudio(ctx context.Context, fingerprint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/api/answers/"+url.PathEscape(fingerprint)+"/audio", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.slow.Do(req)
	if err != nil {
		return nil, wrapDialError(err, c.address())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read answer audio: %w", err)
	}
	return data, nil
}

func (c *apiClient) Health(ctx context.Context) (healthModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/health", nil)
	if err != nil {
		return healthModel{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return healthModel{}, wrapDialError(err, c.address())
	}
	defer resp.Body.Close()

	// The daemon reports 503 for a degraded service but still includes the
	// per-component breakdown.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return healthModel{}, responseError(resp)
	}
	var payload healthModel
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return healthModel{}, fmt.Errorf("decode health response: %w", err)
	}
	return payload, nil
}

func (c *apiClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapDialError(err, c.address())
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return responseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func responseError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon: %s", payload.Error)
	}
	return fmt.Errorf("daemon returned %s", resp.Status)
}
