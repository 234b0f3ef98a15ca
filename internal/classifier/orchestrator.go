// Package classifier runs capture/classify cycles one at a time.
//
// The Orchestrator owns the cycle State. All transitions happen on its event
// loop goroutine; capture callbacks, timeouts and pipeline completions are
// posted to the loop as events. Inference runs on a per-cycle worker
// goroutine so the loop can keep answering triggers with a busy notice while
// a cycle is in flight. At most one worker exists at a time.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Brownie44l1/chillbot/internal/report"
)

// DefaultCaptureTimeout bounds the wait for a capture source.
const DefaultCaptureTimeout = 10 * time.Second

// ErrCaptureTimeout is reported when the source never delivers.
var ErrCaptureTimeout = errors.New("capture timed out")

// Options configures an Orchestrator. Pipeline and Source are required.
type Options struct {
	Pipeline       *Pipeline
	Source         Source
	Notifier       Notifier
	Reporter       Reporter
	Logger         *slog.Logger
	CaptureTimeout time.Duration // zero selects DefaultCaptureTimeout, negative disables
}

// Orchestrator is the Idle → AwaitingImage → Classifying → Idle state machine.
type Orchestrator struct {
	pipeline       *Pipeline
	source         Source
	notifier       Notifier
	reporter       Reporter
	logger         *slog.Logger
	captureTimeout time.Duration

	state  atomic.Int32
	last   atomic.Pointer[Result]
	events chan interface{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// owned by the loop goroutine
	cycle       string
	cycleStart  time.Time
	cycleCancel context.CancelFunc
	timer       *time.Timer
	listeners   []Listener

	started   atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	busy      atomic.Uint64
	timedOut  atomic.Uint64
}

// events
type (
	evtTrigger struct{ reply chan bool }
	evtImage   struct {
		cycle string
		img   image.Image
		err   error
	}
	evtCaptureTimeout struct{ cycle string }
	evtClassified     struct {
		cycle  string
		result Result
		err    error
	}
	evtAddListener struct{ l Listener }
)

// New validates opts and starts the event loop.
func New(opts Options) (*Orchestrator, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("orchestrator: pipeline is required")
	}
	if err := opts.Pipeline.validate(); err != nil {
		return nil, err
	}
	if opts.Source == nil {
		return nil, errors.New("orchestrator: capture source is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.CaptureTimeout == 0 {
		opts.CaptureTimeout = DefaultCaptureTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		pipeline:       opts.Pipeline,
		source:         opts.Source,
		notifier:       opts.Notifier,
		reporter:       opts.Reporter,
		logger:         opts.Logger,
		captureTimeout: opts.CaptureTimeout,
		events:         make(chan interface{}, 64),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	go func() {
		defer close(o.done)
		defer recoverLog(o.logger, "orchestrator panic")
		o.loop()
	}()
	return o, nil
}

func (o *Orchestrator) loop() {
	for {
		select {
		case <-o.ctx.Done():
			o.endCycle()
			o.transition(Idle)
			return
		case ev := <-o.events:
			switch e := ev.(type) {
			case evtAddListener:
				o.listeners = append(o.listeners, e.l)
			case evtTrigger:
				e.reply <- o.handleTrigger()
			case evtImage:
				o.handleImage(e)
			case evtCaptureTimeout:
				if e.cycle == o.cycle && o.Current() == AwaitingImage {
					o.timedOut.Add(1)
					o.abort(ErrCaptureTimeout, "Capture failed")
				}
			case evtClassified:
				o.handleClassified(e)
			}
		}
	}
}

func (o *Orchestrator) handleTrigger() bool {
	if st := o.Current(); st != Idle {
		o.busy.Add(1)
		o.logger.Debug("trigger ignored, cycle in flight", "cycle_id", o.cycle, "state", st.String())
		o.notify(MsgStillProcessing)
		return false
	}

	id := uuid.NewString()
	o.cycle = id
	o.cycleStart = time.Now()
	o.started.Add(1)
	o.notify(MsgProcessing)
	o.transition(AwaitingImage)

	ctx, cancel := context.WithCancel(o.ctx)
	o.cycleCancel = cancel
	if o.captureTimeout > 0 {
		o.timer = time.AfterFunc(o.captureTimeout, func() {
			o.post(evtCaptureTimeout{cycle: id})
		})
	}

	var once sync.Once
	onReady := func(img image.Image, err error) {
		once.Do(func() {
			go o.post(evtImage{cycle: id, img: img, err: err})
		})
	}
	if err := o.source.RequestImage(ctx, onReady); err != nil {
		o.abort(fmt.Errorf("request image: %w", err), "Capture failed")
		return false
	}
	return true
}

func (o *Orchestrator) handleImage(e evtImage) {
	if e.cycle != o.cycle || o.Current() != AwaitingImage {
		o.logger.Debug("stale capture discarded", "cycle_id", e.cycle)
		return
	}
	o.stopCaptureWait()
	if e.err == nil && e.img == nil {
		e.err = errors.New("capture returned no image")
	}
	if e.err != nil {
		o.abort(e.err, "Capture failed")
		return
	}
	o.transition(Classifying)
	go o.classify(e.cycle, e.img)
}

// classify runs on the worker goroutine. A panic anywhere in the pipeline
// fails the cycle instead of the process.
func (o *Orchestrator) classify(cycle string, img image.Image) {
	var (
		res Result
		err error
	)
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("classification panic", "cycle_id", cycle, "error", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
		o.post(evtClassified{cycle: cycle, result: res, err: err})
	}()
	res, err = o.pipeline.Classify(img)
}

func (o *Orchestrator) handleClassified(e evtClassified) {
	if e.cycle != o.cycle || o.Current() != Classifying {
		return
	}
	if e.err != nil {
		o.abort(e.err, "Classification failed")
		return
	}

	res := e.result
	res.CycleID = e.cycle
	o.last.Store(&res)
	o.notify(res.Summary)
	if o.reporter != nil {
		o.reporter.Enqueue(report.Report{
			CycleID:   res.CycleID,
			Timestamp: res.CompletedAt,
			Facts:     res.Facts,
			Summary:   res.Summary,
		})
	}
	o.completed.Add(1)
	o.logger.Info("cycle completed",
		"cycle_id", res.CycleID,
		"summary", res.Summary,
		"inference", res.Duration,
		"total", time.Since(o.cycleStart),
	)
	o.endCycle()
	o.transition(Idle)
}

// abort ends the current cycle with a status message; the orchestrator is
// always back in Idle afterwards.
func (o *Orchestrator) abort(err error, prefix string) {
	o.failed.Add(1)
	o.logger.Warn("cycle aborted", "cycle_id", o.cycle, "state", o.Current().String(), "error", err)
	o.notify(fmt.Sprintf("%s: %v", prefix, err))
	o.endCycle()
	o.transition(Idle)
}

func (o *Orchestrator) stopCaptureWait() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	if o.cycleCancel != nil {
		o.cycleCancel()
		o.cycleCancel = nil
	}
}

func (o *Orchestrator) endCycle() {
	o.stopCaptureWait()
	o.cycle = ""
}

func (o *Orchestrator) transition(next State) {
	prev := o.Current()
	if prev == next {
		return
	}
	o.state.Store(int32(next))
	o.logger.Debug("cycle state transition", "from", prev.String(), "to", next.String())
	for _, l := range o.listeners {
		l(prev, next)
	}
}

func (o *Orchestrator) notify(msg string) {
	if o.notifier != nil {
		o.notifier.Notify(msg)
	}
}

// post hands an event to the loop; it gives up once the loop has stopped.
func (o *Orchestrator) post(ev interface{}) bool {
	select {
	case o.events <- ev:
		return true
	case <-o.done:
		return false
	}
}

// Trigger asks for a new cycle. It returns false when a cycle is already in
// flight (the caller has been sent a busy notice), when the capture source
// refused the request (the cycle was aborted with a status message) or when
// the orchestrator is closed.
func (o *Orchestrator) Trigger() bool {
	reply := make(chan bool, 1)
	if !o.post(evtTrigger{reply: reply}) {
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-o.done:
		return false
	}
}

// AddListener registers a transition callback.
func (o *Orchestrator) AddListener(l Listener) { o.post(evtAddListener{l: l}) }

// Current returns the cycle state.
func (o *Orchestrator) Current() State { return State(o.state.Load()) }

// LastResult returns the most recent completed cycle.
func (o *Orchestrator) LastResult() (Result, bool) {
	r := o.last.Load()
	if r == nil {
		return Result{}, false
	}
	return *r, true
}

// Stats returns a snapshot of the cycle counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Started:   o.started.Load(),
		Completed: o.completed.Load(),
		Failed:    o.failed.Load(),
		Busy:      o.busy.Load(),
		TimedOut:  o.timedOut.Load(),
	}
}

// Close stops the loop and cancels a pending capture. A running inference
// finishes on its own; its result is dropped.
func (o *Orchestrator) Close() {
	o.cancel()
	<-o.done
}

func recoverLog(logger *slog.Logger, msg string) {
	if r := recover(); r != nil {
		logger.Error(msg, "error", r, "stack", string(debug.Stack()))
	}
}
