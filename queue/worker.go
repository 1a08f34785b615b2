package queue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"geotiler/metrics"
)

// Renderer renders the tile string url and reports an HTTP style status.
// Anything above 200, or a non-nil error, is a failure.
type Renderer interface {
	Render(ctx context.Context, url string) (status int, err error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, url string) (int, error)

func (f RendererFunc) Render(ctx context.Context, url string) (int, error) {
	return f(ctx, url)
}

// DefaultRenderTimeout bounds a single render call.
const DefaultRenderTimeout = 2 * time.Minute

// Worker takes items off the queue and renders them, one at a time.
type Worker struct {
	store    Store
	renderer Renderer

	// RenderTimeout bounds each render call, 0 disables it.
	RenderTimeout time.Duration

	logger *log.Entry
}

// NewWorker returns a Worker with the default render timeout.
func NewWorker(store Store, renderer Renderer) *Worker {
	return &Worker{
		store:         store,
		renderer:      renderer,
		RenderTimeout: DefaultRenderTimeout,
		logger:        log.WithField("component", "queue"),
	}
}

// ProcessBatch renders up to limit of the oldest Open items. Each item is
// marked Processing before its render starts and deleted afterwards,
// whether the render succeeded or not, so a tile that always fails cannot
// block the queue. A render interrupted by ctx puts the item back to Open. It returns how many items were rendered; only a failure
// to read the queue is returned as an error.
func (w *Worker) ProcessBatch(ctx context.Context, limit int) (int, error) {
	if limit < 1 {
		limit = 1
	}
	items, err := w.store.SelectOpen(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("select open items: %w", err)
	}
	if len(items) == 0 {
		w.logger.Info("nothing to process")
		return 0, nil
	}

	n := 0
	for i := range items {
		if ctx.Err() != nil {
			break
		}
		if w.process(ctx, &items[i]) {
			n++
		}
	}
	return n, nil
}

// process claims, renders and deletes one item. It reports false when the
// item could not be claimed or its render was cut short by ctx, in which
// case the item is reopened.
func (w *Worker) process(ctx context.Context, it *Item) bool {
	if err := w.store.UpdateStatus(ctx, it, Processing); err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			w.logger.Debugf("tile %s taken by another worker", it.URL)
		} else {
			w.logger.Errorf("claim tile %s error ~ %s", it.URL, err)
		}
		return false
	}

	w.logger.Infof("processing tile %s", it.URL)
	start := time.Now()
	status, err := w.render(ctx, it.URL)
	metrics.RenderDuration.Observe(time.Since(start).Seconds())
	if err != nil && ctx.Err() != nil {
		// shutting down, the tile was never rendered
		w.reopen(it)
		return false
	}
	if err == nil && status > http.StatusOK {
		err = fmt.Errorf("status %d", status)
	}
	if err != nil {
		metrics.TilesProcessed.WithLabelValues(metrics.ResultFailed).Inc()
		w.logger.Errorf("error processing tile %s ~ %s", it.URL, err)
	} else {
		metrics.TilesProcessed.WithLabelValues(metrics.ResultOK).Inc()
		w.logger.Debugf("tile %s done, %.3fs", it.URL, time.Since(start).Seconds())
	}

	// deleted even after a failure, a failed tile is not retried
	if err := w.store.Delete(context.WithoutCancel(ctx), *it); err != nil {
		w.logger.Errorf("delete tile %s error ~ %s", it.URL, err)
	}
	return true
}

func (w *Worker) reopen(it *Item) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.store.UpdateStatus(ctx, it, Open); err != nil {
		w.logger.Errorf("reopen tile %s error ~ %s", it.URL, err)
		return
	}
	w.logger.Warnf("render of %s interrupted, tile reopened", it.URL)
}

func (w *Worker) render(ctx context.Context, url string) (int, error) {
	if w.RenderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.RenderTimeout)
		defer cancel()
	}
	return w.renderer.Render(ctx, url)
}
