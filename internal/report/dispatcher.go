package report

import (
	"context"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultQueueSize    = 16
	defaultWriteTimeout = 5 * time.Second
)

// Stats counts dispatcher outcomes.
type Stats struct {
	Enqueued uint64 `json:"enqueued"`
	Dropped  uint64 `json:"dropped"`
	Written  uint64 `json:"written"`
	Failed   uint64 `json:"failed"`
}

// Dispatcher queues reports and writes them to every sink from a single
// worker goroutine. Enqueue never blocks: a full queue drops the report.
// Sink failures are logged and swallowed.
type Dispatcher struct {
	logger       *slog.Logger
	sinks        []Sink
	queue        chan Report
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	enqueued atomic.Uint64
	dropped  atomic.Uint64
	written  atomic.Uint64
	failed   atomic.Uint64
}

// NewDispatcher starts the worker. size <= 0 selects DefaultQueueSize.
func NewDispatcher(logger *slog.Logger, size int, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if size <= 0 {
		size = DefaultQueueSize
	}
	d := &Dispatcher{
		logger:       logger,
		sinks:        sinks,
		queue:        make(chan Report, size),
		writeTimeout: defaultWriteTimeout,
		done:         make(chan struct{}),
	}
	go d.loop()
	return d
}

// Enqueue hands r to the worker. It reports false when the report was dropped.
func (d *Dispatcher) Enqueue(r Report) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return false
	}
	select {
	case d.queue <- r:
		d.enqueued.Add(1)
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn("report queue full, dropping report", "cycle_id", r.CycleID)
		return false
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for r := range d.queue {
		for _, s := range d.sinks {
			d.write(s, r)
		}
	}
}

func (d *Dispatcher) write(s Sink, r Report) {
	defer func() {
		if rec := recover(); rec != nil {
			d.failed.Add(1)
			d.logger.Error("report sink panic", "sink", s.Name(), "error", rec, "stack", string(debug.Stack()))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()
	if err := s.Write(ctx, r); err != nil {
		d.failed.Add(1)
		d.logger.Debug("report sink failed", "sink", s.Name(), "cycle_id", r.CycleID, "error", err)
		return
	}
	d.written.Add(1)
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Enqueued: d.enqueued.Load(),
		Dropped:  d.dropped.Load(),
		Written:  d.written.Load(),
		Failed:   d.failed.Load(),
	}
}

// Close drains queued reports, stops the worker and closes the sinks. Sink
// close errors are logged, not returned.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
	for _, s := range d.sinks {
		if err := s.Close(); err != nil {
			d.logger.Debug("report sink close failed", "sink", s.Name(), "error", err)
		}
	}
	return nil
}
