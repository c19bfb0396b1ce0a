package asr

import (
	"context"
	"math"
	"strings"
	"time"

	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"echopod/internal/config"
	"echopod/internal/logging"
	"echopod/internal/services"
)

// OpenAIClient implements Client against the OpenAI audio transcription API
// (or any compatible endpoint configured via base_url).
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAIClient builds a transcription client from configuration.
func NewOpenAIClient(cfg *config.Config, logger *slog.Logger) *OpenAIClient {
	cc := openai.DefaultConfig(cfg.ASR.APIKey)
	if cfg.ASR.BaseURL != "" {
		cc.BaseURL = cfg.ASR.BaseURL
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(cc),
		model:   cfg.ASR.Model,
		timeout: time.Duration(cfg.ASR.TimeoutSeconds) * time.Second,
		logger:  logging.NewComponentLogger(logger, "asr"),
	}
}

// Transcribe uploads the audio file and maps the verbose response into timed
// segments. Segments with empty text are dropped.
func (c *OpenAIClient) Transcribe(ctx context.Context, audioPath string) ([]Segment, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrTranscriptionFailed, "asr", "transcribe", "recognition request failed", err)
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			StartSeconds: seg.Start,
			EndSeconds:   seg.End,
			Text:         text,
			Confidence:   confidenceFromLogprob(seg.AvgLogprob),
		})
	}

	c.logger.InfoContext(ctx, "transcription complete",
		logging.Int("segments", len(segments)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return segments, nil
}

// confidenceFromLogprob converts a mean token log probability into a [0, 1]
// confidence score.
func confidenceFromLogprob(avgLogprob float64) float64 {
	conf := math.Exp(avgLogprob)
	if math.IsNaN(conf) || conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}
