package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	testPodcastID = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testOtherID   = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	testAnswerFP  = "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
)

// newFakeDaemon serves canned API responses so command tests exercise the
// client and rendering paths without a full pipeline.
func newFakeDaemon(t *testing.T) *httptest.Server {
	t.Helper()

	podcasts := []podcastModel{
		{
			ID:              testPodcastID,
			Title:           "Deep Sea Mining",
			DurationSeconds: 1845,
			Status:          "ready",
			CreatedAt:       "2026-08-01T10:00:00Z",
			UpdatedAt:       "2026-08-01T10:05:00Z",
		},
		{
			ID:              testOtherID,
			Title:           "Lighthouse Keepers",
			DurationSeconds: 600,
			Status:          "pending",
			CreatedAt:       "2026-08-02T09:00:00Z",
			UpdatedAt:       "2026-08-02T09:00:00Z",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/podcasts", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, podcastListModel{Podcasts: podcasts})
	})
	mux.HandleFunc("GET /api/podcasts/{id}", func(w http.ResponseWriter, r *http.Request) {
		for _, podcast := range podcasts {
			if podcast.ID == r.PathValue("id") {
				writeTestJSON(w, http.StatusOK, podcast)
				return
			}
		}
		writeTestJSON(w, http.StatusNotFound, map[string]string{"error": "podcast not found"})
	})
	mux.HandleFunc("DELETE /api/podcasts/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != testPodcastID {
			writeTestJSON(w, http.StatusNotFound, map[string]string{"error": "podcast not found"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/podcasts/{id}/transcript", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, transcriptModel{
			PodcastID: r.PathValue("id"),
			Segments: []segmentModel{
				{Seq: 0, StartSeconds: 0, EndSeconds: 12, Text: "Welcome back to the show.", Confidence: 0.97},
				{Seq: 1, StartSeconds: 12, EndSeconds: 70, Text: "Today we cover polymetallic nodules.", Confidence: 0.94},
			},
		})
	})
	mux.HandleFunc("GET /api/podcasts/{id}/answers", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, answerListModel{Answers: []answerModel{
			{
				Fingerprint: testAnswerFP,
				PodcastID:   r.PathValue("id"),
				Question:    "what are nodules",
				Answer:      "Nodules are mineral lumps on the seabed.",
				SegmentSeqs: []int{1},
				AudioURL:    "/api/answers/" + testAnswerFP + "/audio",
				CreatedAt:   "2026-08-03T08:00:00Z",
			},
		}})
	})
	mux.HandleFunc("POST /api/podcasts/{id}/questions", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Question string `json:"question"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Question) == "" {
			writeTestJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
			return
		}
		writeTestJSON(w, http.StatusOK, answerModel{
			Fingerprint: testAnswerFP,
			PodcastID:   r.PathValue("id"),
			Question:    body.Question,
			Answer:      "Mining targets polymetallic nodules rich in nickel and cobalt.",
			SegmentSeqs: []int{1},
			AudioURL:    "/api/answers/" + testAnswerFP + "/audio",
			CreatedAt:   "2026-08-03T08:00:00Z",
		})
	})
	mux.HandleFunc("GET /api/answers/{fingerprint}/audio", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mpeg-frames"))
	})
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, healthModel{
			Healthy: true,
			Components: map[string]componentHealthModel{
				"database": {Ready: true},
				"ffmpeg":   {Ready: true, Detail: "/usr/bin/ffmpeg"},
			},
		})
	})
	mux.HandleFunc("POST /api/podcasts", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			writeTestJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid upload"})
			return
		}
		title := r.FormValue("title")
		if title == "" {
			title = "Untitled Episode"
		}
		writeTestJSON(w, http.StatusCreated, podcastModel{
			ID:              testOtherID,
			Title:           title,
			DurationSeconds: 300,
			Status:          "pending",
			CreatedAt:       "2026-08-04T12:00:00Z",
			UpdatedAt:       "2026-08-04T12:00:00Z",
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func writeTestJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func runCLI(t *testing.T, args []string, address, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if address != "" {
		flags = append(flags, "--address", address)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// isolateHome points config resolution at a throwaway home directory so tests
// never touch the developer's real configuration.
func isolateHome(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	return home
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
