package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"echopod/internal/config"
	"echopod/internal/ingest"
	"echopod/internal/logging"
	"echopod/internal/pipeline"
	"echopod/internal/services"
	"echopod/internal/tts"
)

type apiServer struct {
	bind       string
	logger     *slog.Logger
	pipeline   *pipeline.Pipeline
	maxBody    int64
	speechType string

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:       strings.TrimSpace(cfg.Paths.APIBind),
		logger:     logging.NewComponentLogger(logger, "api"),
		pipeline:   p,
		maxBody:    cfg.MaxUploadBytes(),
		speechType: tts.ContentType(cfg.TTS.OutputFormat),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/podcasts", srv.handleUpload)
	mux.HandleFunc("GET /api/podcasts", srv.handleListPodcasts)
	mux.HandleFunc("GET /api/podcasts/{id}", srv.handleGetPodcast)
	mux.HandleFunc("DELETE /api/podcasts/{id}", srv.handleDeletePodcast)
	mux.HandleFunc("GET /api/podcasts/{id}/transcript", srv.handleTranscript)
	mux.HandleFunc("GET /api/podcasts/{id}/answers", srv.handleAnswers)
	mux.HandleFunc("POST /api/podcasts/{id}/questions", srv.handleQuestion)
	mux.HandleFunc("GET /api/answers/{fingerprint}/audio", srv.handleAnswerAudio)
	mux.HandleFunc("GET /api/audio/{id}", srv.handleAudio)
	mux.HandleFunc("GET /api/health", srv.handleHealth)

	srv.server = &http.Server{
		Handler:           srv.withRequestID(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.InfoContext(ctx, "api server listening",
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// withRequestID tags every request with a correlation id, honoring one the
// caller already supplied.
func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := services.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// handleUpload admits a new podcast. Accepts multipart form uploads (field
// "audio", optional "title") and raw audio bodies.
func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody+1)

	req, err := readUpload(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	outcome, err := s.pipeline.Ingest(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if outcome.Created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, podcastPayload(outcome.Podcast))
}

func readUpload(r *http.Request) (ingest.Request, error) {
	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}

	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("audio")
		if err != nil {
			return ingest.Request{}, services.Wrap(services.ErrValidation, "api", "upload",
				`multipart upload requires an "audio" file field`, err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return ingest.Request{}, uploadReadError(err)
		}
		return ingest.Request{
			Data:     data,
			MimeType: header.Header.Get("Content-Type"),
			Filename: header.Filename,
			Title:    r.FormValue("title"),
		}, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return ingest.Request{}, uploadReadError(err)
	}
	return ingest.Request{
		Data:     data,
		MimeType: mediaType,
		Title:    r.URL.Query().Get("title"),
		Filename: r.URL.Query().Get("filename"),
	}, nil
}

func uploadReadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return services.Wrap(services.ErrValidation, "api", "upload", "upload exceeds size limit", nil)
	}
	return fmt.Errorf("read upload: %w", err)
}

func (s *apiServer) handleListPodcasts(w http.ResponseWriter, r *http.Request) {
	podcasts, err := s.pipeline.Podcasts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payload := podcastListResponse{Podcasts: make([]podcastResponse, 0, len(podcasts))}
	for _, podcast := range podcasts {
		payload.Podcasts = append(payload.Podcasts, podcastPayload(podcast))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleGetPodcast(w http.ResponseWriter, r *http.Request) {
	podcast, err := s.pipeline.Podcast(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, podcastPayload(podcast))
}

func (s *apiServer) handleDeletePodcast(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.DeletePodcast(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	segments, err := s.pipeline.Transcript(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payload := transcriptResponse{PodcastID: id, Segments: make([]segmentResponse, 0, len(segments))}
	for _, segment := range segments {
		payload.Segments = append(payload.Segments, segmentResponse{
			Seq:          segment.Seq,
			StartSeconds: segment.StartSeconds,
			EndSeconds:   segment.EndSeconds,
			Text:         segment.Text,
			Confidence:   segment.Confidence,
		})
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleAnswers(w http.ResponseWriter, r *http.Request) {
	answers, err := s.pipeline.Answers(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payload := answerListResponse{Answers: make([]answerResponse, 0, len(answers))}
	for _, answer := range answers {
		payload.Answers = append(payload.Answers, answerPayload(answer))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleQuestion(w http.ResponseWriter, r *http.Request) {
	var body questionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "question", "invalid JSON body", err))
		return
	}
	answer, err := s.pipeline.Ask(r.Context(), r.PathValue("id"), body.Question)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, answerPayload(answer))
}

// handleAnswerAudio synthesizes (or reuses) speech for an answer and serves it.
func (s *apiServer) handleAnswerAudio(w http.ResponseWriter, r *http.Request) {
	fingerprint := r.PathValue("fingerprint")
	ref, err := s.pipeline.EnsureAnswerAudio(r.Context(), fingerprint)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, _, err := s.pipeline.AudioBytes(r.Context(), ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", s.speechType)
	w.Header().Set("X-Content-ID", ref)
	_, _ = w.Write(data)
}

func (s *apiServer) handleAudio(w http.ResponseWriter, r *http.Request) {
	data, category, err := s.pipeline.AudioBytes(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	contentType := s.speechType
	if category == "audio" {
		contentType = "audio/wav"
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(data)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.pipeline.Health(r.Context())
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

// writeError maps service failures onto HTTP statuses.
func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case services.IsUserFixable(err):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrNoRelevantContent):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrConfiguration):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	}
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
