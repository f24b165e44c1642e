package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driving"
)

// Worker runs embedding backfill on an interval so chunks ingested
// without embeddings eventually get them, even when the embedding
// service was down at ingest time.
type Worker struct {
	ingestor driving.Ingestor
	store    driven.KnowledgeStore
	logger   *slog.Logger

	interval time.Duration
	opts     domain.BackfillOptions

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Config holds configuration for the backfill worker.
type Config struct {
	Ingestor driving.Ingestor
	Store    driven.KnowledgeStore
	Logger   *slog.Logger

	// Interval between backfill runs.
	Interval time.Duration

	// Backfill bounds passed to every run.
	Backfill domain.BackfillOptions
}

// Health reports the worker's liveness and its view of the store.
type Health struct {
	Running        bool   `json:"running"`
	StoreReachable bool   `json:"store_reachable"`
	StoreError     string `json:"store_error,omitempty"`
}

// New creates a backfill worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	return &Worker{
		ingestor: cfg.Ingestor,
		store:    cfg.Store,
		logger:   logger,
		interval: interval,
		opts:     cfg.Backfill,
	}
}

// Start begins the backfill loop. It runs until Stop is called or the
// context is cancelled. Calling Start on a running worker is a no-op.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("backfill worker starting", "interval", w.interval)

	go w.loop(ctx)

	return nil
}

// Stop gracefully stops the worker and waits for an in-flight run to
// finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("backfill worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	w.mu.RLock()
	doneCh := w.doneCh
	w.mu.RUnlock()
	if doneCh == nil {
		return
	}
	<-doneCh
}

// Running reports whether the worker loop is active.
func (w *Worker) Running() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Health reports liveness and store reachability.
func (w *Worker) Health(ctx context.Context) Health {
	h := Health{Running: w.Running()}

	if err := w.store.Ping(ctx); err != nil {
		h.StoreError = err.Error()
	} else {
		h.StoreReachable = true
	}

	return h
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.doneCh)

	// Run once immediately, then on the interval
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("backfill worker context cancelled")
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	start := time.Now()

	result, err := w.ingestor.Backfill(ctx, w.opts)
	if err != nil {
		w.logger.Error("backfill run failed", "error", err)
		return
	}

	if result.Updated > 0 || result.Failed > 0 || result.Remained > 0 {
		w.logger.Info("backfill run complete",
			"duration", time.Since(start),
			"sweeps", result.Sweeps,
			"updated", result.Updated,
			"failed", result.Failed,
			"skipped", result.Skipped,
			"remained", result.Remained,
		)
	}
}
