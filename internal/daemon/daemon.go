package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"echopod/internal/config"
	"echopod/internal/logging"
	"echopod/internal/pipeline"
)

// Daemon coordinates the pipeline workers and the API server, and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon around an assembled pipeline.
func New(cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || p == nil || logger == nil {
		return nil, errors.New("daemon requires config, pipeline, and logger")
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "echopodd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		pipeline: p,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, p, logger)
	return d, nil
}

// Start acquires the daemon lock, starts background transcription, and begins
// serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another echopod daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.pipeline.Start(runCtx); err != nil {
		d.releaseLock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start pipeline: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.releaseLock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start api: %w", err)
	}

	d.running.Store(true)
	d.logger.InfoContext(ctx, "echopod daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.cfg.Paths.APIBind),
	)
	return nil
}

// Stop shuts down the API server and background workers and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("echopod daemon stopped")
}

// Close stops the daemon and releases the pipeline's resources.
func (d *Daemon) Close() error {
	d.Stop()
	return d.pipeline.Close()
}

// Addr returns the bound API address once the daemon is started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}
