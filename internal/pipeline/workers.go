package pipeline

import (
	"context"
	"time"

	"log/slog"

	"echopod/internal/logging"
	"echopod/internal/store"
)

// pollInterval bounds how long a pending podcast waits for a worker when no
// nudge arrives (e.g. work left over from a previous run).
const pollInterval = 5 * time.Second

// Start launches the background transcription workers. Podcasts left in the
// transcribing state by a previous run are requeued first.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.stop != nil {
		p.mu.Unlock()
		return nil
	}
	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.stop = cancel
	p.mu.Unlock()

	if err := p.requeueInterrupted(workCtx); err != nil {
		return err
	}

	workers := p.cfg.Workflow.TranscriptionWorkers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.workers.Add(1)
		go p.transcriptionWorker(workCtx, i)
	}
	p.logger.InfoContext(ctx, "pipeline started",
		logging.Int("transcription_workers", workers),
	)
	return nil
}

// Nudge wakes the transcription workers without waiting for the next poll.
func (p *Pipeline) Nudge() {
	select {
	case p.nudge <- struct{}{}:
	default:
	}
}

// requeueInterrupted returns podcasts stranded mid-transcription to pending so
// workers pick them up again.
func (p *Pipeline) requeueInterrupted(ctx context.Context) error {
	stranded, err := p.store.ListPodcastsByStatus(ctx, store.StatusTranscribing)
	if err != nil {
		return err
	}
	for _, podcast := range stranded {
		if err := p.store.SetPodcastStatus(ctx, podcast.ID, store.StatusPending, ""); err != nil {
			return err
		}
		p.logger.WarnContext(ctx, "requeued interrupted transcription",
			logging.String("podcast_id", podcast.ID),
		)
	}
	return nil
}

func (p *Pipeline) transcriptionWorker(ctx context.Context, id int) {
	defer p.workers.Done()
	logger := p.logger.With(logging.Int("worker", id))

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		p.drainPending(ctx, logger)
		select {
		case <-ctx.Done():
			return
		case <-p.nudge:
		case <-ticker.C:
		}
	}
}

// drainPending transcribes the current pending set, oldest first. Single-flight
// in the engine keeps workers from duplicating effort on the same podcast, and
// failed podcasts leave the pending set so a bad episode cannot wedge the loop.
func (p *Pipeline) drainPending(ctx context.Context, logger *slog.Logger) {
	pending, err := p.store.ListPodcastsByStatus(ctx, store.StatusPending)
	if err != nil {
		if ctx.Err() == nil {
			logger.WarnContext(ctx, "failed to list pending podcasts", logging.Error(err))
		}
		return
	}
	for _, podcast := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := p.transcriber.Transcribe(ctx, podcast.ID); err != nil {
			logger.WarnContext(ctx, "transcription failed",
				logging.String("podcast_id", podcast.ID),
				logging.Error(err),
			)
		}
	}
}
