package queue

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"

	"geotiler/metrics"
)

// DaemonConfig configures a Daemon.
type DaemonConfig struct {
	// MemoryLimit is the ceiling, in bytes, at which the daemon stops.
	MemoryLimit uint64

	// IdleInterval is the pause after finding the queue empty,
	// BusyInterval the pause after each batch.
	IdleInterval time.Duration
	BusyInterval time.Duration

	BatchSize int
}

// DefaultDaemonConfig returns the settings the daemon runs with unless configured otherwise.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		MemoryLimit:  1 << 30,
		IdleInterval: 300 * time.Second,
		BusyInterval: time.Second,
		BatchSize:    1,
	}
}

// ParseMemoryLimit reads sizes like "1GiB" or "512 MB".
func ParseMemoryLimit(s string) (uint64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid memory limit %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid memory limit %q", s)
	}
	return n, nil
}

// Daemon keeps a Worker draining the queue until the process has taken
// more memory from the OS than allowed, then returns so that a supervisor
// can start a fresh process.
type Daemon struct {
	ID     string
	Config *DaemonConfig

	store  Store
	worker *Worker
	memory func() uint64
	logger *log.Entry
}

// NewDaemon returns a Daemon running worker against store. A nil cfg
// selects DefaultDaemonConfig.
func NewDaemon(store Store, worker *Worker, cfg *DaemonConfig) *Daemon {
	if cfg == nil {
		cfg = DefaultDaemonConfig()
	}
	id, _ := shortid.Generate()
	return &Daemon{
		ID:     id,
		Config: cfg,
		store:  store,
		worker: worker,
		memory: systemMemory,
		logger: log.WithFields(log.Fields{"component": "daemon", "daemon": id}),
	}
}

func systemMemory() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Sys
}

// Run loops until the memory ceiling is reached or ctx is done; both end
// it with a nil error. Queue and render errors are logged and the loop
// goes on.
func (d *Daemon) Run(ctx context.Context) error {
	limit := d.Config.MemoryLimit
	if limit == 0 {
		limit = DefaultDaemonConfig().MemoryLimit
	}
	d.logger.Infof("daemon %s started, memory limit %s", d.ID, humanize.IBytes(limit))

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		used := d.memory()
		metrics.DaemonMemory.Set(float64(used))
		if used >= limit {
			d.logger.Warnf("memory %s reached limit %s, exiting ~", humanize.IBytes(used), humanize.IBytes(limit))
			return nil
		}

		wait := d.Config.IdleInterval
		st, err := StatusOf(ctx, d.store)
		switch {
		case ctx.Err() != nil:
		case err != nil:
			d.logger.Errorf("read queue status error ~ %s", err)
		default:
			metrics.QueueItems.WithLabelValues(string(Open)).Set(float64(st.Open))
			metrics.QueueItems.WithLabelValues(string(Processing)).Set(float64(st.Processing))
			if st.Open > 0 {
				if _, err := d.worker.ProcessBatch(ctx, d.Config.BatchSize); err != nil {
					d.logger.Errorf("process batch error ~ %s", err)
				}
				wait = d.Config.BusyInterval
			}
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			d.logger.Infof("daemon %s stopped", d.ID)
			return nil
		case <-timer.C:
		}
	}
}
