package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPodcastsCommandRendersTable(t *testing.T) {
	isolateHome(t)
	server := newFakeDaemon(t)
	address := strings.TrimPrefix(server.URL, "http://")

	out, _, err := runCLI(t, []string{"podcasts"}, address, "")
	if err != nil {
		t.Fatalf("podcasts: %v", err)
	}
	requireContains(t, out, "Deep Sea Mining")
	requireContains(t, out, "Lighthouse Keepers")
	requireContains(t, out, "30:45")
	requireContains(t, out, shortID(testPodcastID))
	if strings.Contains(out, testPodcastID) {
		t.Fatalf("expected truncated ids in table output, got %q", out)
	}
}

func TestShowCommandResolvesPrefix(t *testing.T) {
	isolateHome(t)
	server := newFakeDaemon(t)
	address := strings.TrimPrefix(server.URL, "http://")

	out, _, err := runCLI(t, []string{"show", "aaaa"}, address, "")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, testPodcastID)
	requireContains(t, out, "Deep Sea Mining")
	requireContains(t, out, "ready")
}

func TestShowCommandUnknownPrefix(t *testing.T) {
	isolateHome(t)
	server := newFakeDaemon(t)
	address := strings.TrimPrefix(server.URL, "http://")

	_, _, err := runCLI(t, []string{"show", "ffff"}, address, "")
	if err == nil {
		t.Fatal("expected error for unknown podcast id")
	}
	requireContains(t, err.Error(), "no podcast matches")
}

func TestTranscriptCommand(t *testing.T) {
	isolateHome(t)
	server := newFakeDaemon(t)
	address := strings.TrimPrefix(server.URL, "http://")

	out, _, err := runCLI(t, []string{"transcript", testPodcastID}, address, "")
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	requireContains(t, out, "[0:00 - 0:12] Welcome back to the show.")
	requireContains(t, out, "[0:12 - 1:10] Today we cover polymetallic nodules.")
}

func TestAskCommandPrintsAnswer(t *testing.T) {
	isolateHome(t)
	server := newFakeDaemon(t)
	address := strings.TrimPrefix(server.URL, "http://")

	out, _, err := runCLI(t, []string{"ask", testPodcastID, "what", "gets", "mined"}, address, "")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	requireContains(t, out, "polymetallic nodules rich in nickel and cobalt")
}

func TestAskCommandWritesAudio(t *testing.T) {
	isolateHome(t)
	server := newFakeDaemon(t)
	address := strings.TrimPrefix(server.URL, "http://")

	target := filepath.Join(t.TempDir(), "answer.mp3")
	out, _, err := runCLI(t, []string{"ask", testPodcastID, "what gets mined", "--audio", target}, address, "")
	if err != nil {
		t.Fatalf("ask --audio: %v", err)
	}
	requireContains(t, out, "Spoken answer written to")

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read audio file: %v", err)
	}
	if string(data) != "mpeg-frames" {
		t.Fatalf("unexpected audio payload %q", data)
	}
}

func TestAnswersCommand(t *testing.T) {
	isolateHome(t)
	server := newFakeDaemon(t)
	address := strings.TrimPrefix(server.URL, "http://")

	out, _, err := runCLI(t, []string{"answers", testPodcastID}, address, "")
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	requireContains(t, out, "Q: what are nodules")
	requireContains(t, out, "A: Nodules are mineral lumps on the seabed.")
}

func TestDeleteCommand(t *testing.T) {
	isolateHome(t)
	server := newFakeDaemon(t)
	address := strings.TrimPrefix(server.URL, "http://")

	out, _, err := runCLI(t, []string{"delete", testPodcastID}, address, "")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	requireContains(t, out, "deleted")
}

func TestIngestCommandUploadsFile(t *testing.T) {
	isolateHome(t)
	server := newFakeDaemon(t)
	address := strings.TrimPrefix(server.URL, "http://")

	source := filepath.Join(t.TempDir(), "episode.mp3")
	if err := os.WriteFile(source, []byte("not-really-audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	out, _, err := runCLI(t, []string{"ingest", source, "--title", "Test Episode"}, address, "")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	requireContains(t, out, `Accepted "Test Episode"`)
	requireContains(t, out, "transcription queued")
}

func TestStatusCommand(t *testing.T) {
	isolateHome(t)
	server := newFakeDaemon(t)
	address := strings.TrimPrefix(server.URL, "http://")

	out, _, err := runCLI(t, []string{"status"}, address, "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "echopod daemon at "+address)
	requireContains(t, out, "database")
	requireContains(t, out, "service healthy")
}

func TestStatusCommandJSON(t *testing.T) {
	isolateHome(t)
	server := newFakeDaemon(t)
	address := strings.TrimPrefix(server.URL, "http://")

	out, _, err := runCLI(t, []string{"status", "--json"}, address, "")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	requireContains(t, out, `"healthy": true`)
}
