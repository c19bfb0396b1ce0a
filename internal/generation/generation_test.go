package generation_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"echopod/internal/generation"
	"echopod/internal/logging"
	"echopod/internal/services"
	"echopod/internal/testsupport"
)

func newServerClient(t *testing.T, handler http.HandlerFunc) generation.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := testsupport.NewConfig(t)
	cfg.Generation.BaseURL = srv.URL
	return generation.NewOpenAIClient(cfg, logging.NewNop())
}

func completionBody(content string) string {
	return `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":` +
		mustJSON(content) + `},"finish_reason":"stop"}]}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func sampleRequest() generation.Request {
	return generation.Request{
		PodcastTitle: "Ocean Hour",
		Question:     "what lives in tide pools",
		Excerpts: []generation.Excerpt{
			{StartSeconds: 12, EndSeconds: 55, Text: "Tide pools host anemones, crabs, and sea stars."},
		},
	}
}

func TestGenerateGroundsPromptInExcerpts(t *testing.T) {
	var prompt string
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		for _, m := range req.Messages {
			if m.Role == "user" {
				prompt = m.Content
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody("Anemones, crabs, and sea stars live there."))) //nolint:errcheck
	})

	answer, err := client.Generate(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if answer != "Anemones, crabs, and sea stars live there." {
		t.Fatalf("unexpected answer: %q", answer)
	}
	for _, want := range []string{"Ocean Hour", "[00:12 - 00:55]", "anemones", "what lives in tide pools"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestGenerateStripsMarkdown(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody("## Answer\n\n**Tide pools** host:\n- crabs\n- `sea stars`"))) //nolint:errcheck
	})

	answer, err := client.Generate(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if strings.ContainsAny(answer, "#*`") {
		t.Fatalf("markdown survived stripping: %q", answer)
	}
	if !strings.Contains(answer, "Tide pools host") {
		t.Fatalf("content lost during stripping: %q", answer)
	}
}

func TestGenerateRequiresExcerpts(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent without excerpts")
	})
	req := sampleRequest()
	req.Excerpts = nil
	_, err := client.Generate(context.Background(), req)
	if !errors.Is(err, services.ErrNoRelevantContent) {
		t.Fatalf("expected ErrNoRelevantContent, got %v", err)
	}
}

func TestGenerateServerError(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	})
	_, err := client.Generate(context.Background(), sampleRequest())
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestPlainText(t *testing.T) {
	got := generation.PlainText("# Heading\n\n**bold** and *italic* and `code`\n- item one\n")
	want := "Heading bold and italic and code item one"
	if got != want {
		t.Fatalf("PlainText = %q, want %q", got, want)
	}
}
