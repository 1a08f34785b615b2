// Package metrics exposes the render queue counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	TilesEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geotiler",
		Subsystem: "queue",
		Name:      "tiles_enqueued_total",
		Help:      "Tiles newly added to the render queue",
	})

	TilesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geotiler",
		Subsystem: "queue",
		Name:      "tiles_processed_total",
		Help:      "Queue items taken off the queue, by render result",
	}, []string{"result"})

	RenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "geotiler",
		Subsystem: "queue",
		Name:      "render_duration_seconds",
		Help:      "Time spent in the renderer per queue item",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	QueueItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "geotiler",
		Subsystem: "queue",
		Name:      "items",
		Help:      "Items in the render queue, by status",
	}, []string{"status"})

	DaemonMemory = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geotiler",
		Subsystem: "daemon",
		Name:      "memory_bytes",
		Help:      "Memory obtained from the OS by the daemon process",
	})
)

// Result labels of TilesProcessed.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Handler routes GET /metrics to the Prometheus exposition.
func Handler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return router
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: Handler(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	log.WithField("component", "metrics").Infof("serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
