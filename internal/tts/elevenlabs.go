package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"echopod/internal/config"
	"echopod/internal/logging"
	"echopod/internal/services"
)

// ElevenLabsClient implements Client against the ElevenLabs streaming-free
// text-to-speech endpoint.
type ElevenLabsClient struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	voiceID      string
	model        string
	outputFormat string
	logger       *slog.Logger
}

// NewElevenLabsClient builds a synthesis client from configuration.
func NewElevenLabsClient(cfg *config.Config, logger *slog.Logger) *ElevenLabsClient {
	return &ElevenLabsClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TTS.TimeoutSeconds) * time.Second,
		},
		baseURL:      strings.TrimRight(cfg.TTS.BaseURL, "/"),
		apiKey:       cfg.TTS.APIKey,
		voiceID:      cfg.TTS.VoiceID,
		model:        cfg.TTS.Model,
		outputFormat: cfg.TTS.OutputFormat,
		logger:       logging.NewComponentLogger(logger, "tts"),
	}
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize renders the text with the configured voice and returns the
// encoded audio bytes.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "tts", "synthesize", "empty text", nil)
	}
	if c.voiceID == "" {
		return nil, services.Wrap(services.ErrConfiguration, "tts", "synthesize", "voice_id is not configured", nil)
	}

	payload, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: c.model,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode synthesis request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, url.PathEscape(c.voiceID))
	if c.outputFormat != "" {
		endpoint += "?output_format=" + url.QueryEscape(c.outputFormat)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", ContentType(c.outputFormat))
	req.Header.Set("xi-api-key", c.apiKey)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrTransient, "tts", "synthesize", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		marker := services.ErrSynthesisFailed
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			marker = services.ErrTransient
		}
		return nil, services.Wrap(marker, "tts", "synthesize",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "tts", "synthesize", "read response body", err)
	}
	if len(audio) == 0 {
		return nil, services.Wrap(services.ErrSynthesisFailed, "tts", "synthesize", "empty audio response", nil)
	}

	c.logger.InfoContext(ctx, "speech synthesized",
		logging.Int("text_chars", len(text)),
		logging.Int("audio_bytes", len(audio)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return audio, nil
}
