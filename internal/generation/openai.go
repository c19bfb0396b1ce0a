package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"echopod/internal/config"
	"echopod/internal/logging"
	"echopod/internal/services"
)

const systemPrompt = `You answer listener questions about a single podcast episode.
Use only the provided transcript excerpts. If the excerpts do not contain the
answer, say so briefly. Answer in 40 to 80 words of plain conversational prose
suitable for reading aloud. Do not use markdown, lists, or headings.`

// OpenAIClient implements Client against a chat completion endpoint.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAIClient builds a generation client from configuration.
func NewOpenAIClient(cfg *config.Config, logger *slog.Logger) *OpenAIClient {
	cc := openai.DefaultConfig(cfg.Generation.APIKey)
	if cfg.Generation.BaseURL != "" {
		cc.BaseURL = cfg.Generation.BaseURL
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(cc),
		model:   cfg.Generation.Model,
		timeout: time.Duration(cfg.Generation.TimeoutSeconds) * time.Second,
		logger:  logging.NewComponentLogger(logger, "generation"),
	}
}

// Generate asks the model for an answer grounded in the request's excerpts
// and returns it stripped to plain text.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Question) == "" {
		return "", services.Wrap(services.ErrValidation, "generation", "generate", "empty question", nil)
	}
	if len(req.Excerpts) == 0 {
		return "", services.Wrap(services.ErrNoRelevantContent, "generation", "generate", "no grounding excerpts", nil)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", services.Wrap(services.ErrTransient, "generation", "generate", "completion request failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", services.Wrap(services.ErrTransient, "generation", "generate", "completion returned no choices", nil)
	}

	answer := PlainText(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", services.Wrap(services.ErrTransient, "generation", "generate", "completion returned empty text", nil)
	}

	c.logger.InfoContext(ctx, "answer generated",
		logging.Int("excerpts", len(req.Excerpts)),
		logging.Int("answer_chars", len(answer)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return answer, nil
}

func buildPrompt(req Request) string {
	var b strings.Builder
	if req.PodcastTitle != "" {
		fmt.Fprintf(&b, "Episode: %s\n\n", req.PodcastTitle)
	}
	b.WriteString("Transcript excerpts:\n")
	for _, ex := range req.Excerpts {
		fmt.Fprintf(&b, "[%s - %s] %s\n", clock(ex.StartSeconds), clock(ex.EndSeconds), ex.Text)
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n", strings.TrimSpace(req.Question))
	return b.String()
}

func clock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

var markdownReplacer = strings.NewReplacer(
	"**", "", "__", "", "*", "", "`", "", "~~", "",
)

// PlainText strips the markdown decorations models add despite instructions,
// leaving prose a speech synthesizer can read verbatim.
func PlainText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "#")
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		line = markdownReplacer.Replace(line)
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, " ")
}
