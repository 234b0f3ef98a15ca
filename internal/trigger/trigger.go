// Package trigger turns external stimuli into cycle requests.
package trigger

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Func starts a cycle. It reports whether the cycle was accepted.
type Func func() bool

// Keyboard fires once per line read from r, like pressing the shutter
// button. It returns when r is exhausted or ctx is cancelled.
func Keyboard(ctx context.Context, r io.Reader, fire Func, logger *slog.Logger) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return err
		case line := <-lines:
			if strings.TrimSpace(line) == "q" {
				return nil
			}
			accepted := fire()
			if logger != nil {
				logger.Debug("keyboard trigger", "accepted", accepted)
			}
		}
	}
}

var parser = rcron.NewParser(
	rcron.SecondOptional | rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor,
)

// ParseSchedule validates a cron expression. Seconds are optional and
// descriptors such as "@every 30s" are accepted.
func ParseSchedule(expr string) (rcron.Schedule, error) {
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	return s, nil
}

// Schedule fires on a cron expression.
type Schedule struct {
	expr   string
	fire   Func
	logger *slog.Logger

	mu   sync.Mutex
	cron *rcron.Cron

	fired   int
	skipped int
}

// NewSchedule validates expr and returns a stopped schedule.
func NewSchedule(expr string, fire Func, logger *slog.Logger) (*Schedule, error) {
	if _, err := ParseSchedule(expr); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Schedule{expr: expr, fire: fire, logger: logger}, nil
}

// Start registers the job and starts the scheduler. It stops when ctx is done.
func (s *Schedule) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cron != nil {
		s.mu.Unlock()
		return fmt.Errorf("schedule %q already started", s.expr)
	}
	c := rcron.New(rcron.WithParser(parser), rcron.WithChain(rcron.SkipIfStillRunning(rcron.DiscardLogger)))
	if _, err := c.AddFunc(s.expr, s.run); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("register schedule %q: %w", s.expr, err)
	}
	s.cron = c
	s.mu.Unlock()

	c.Start()
	s.logger.Info("trigger schedule started", "expr", s.expr)
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Schedule) run() {
	accepted := s.fire()
	s.mu.Lock()
	if accepted {
		s.fired++
	} else {
		s.skipped++
	}
	s.mu.Unlock()
	s.logger.Debug("scheduled trigger", "expr", s.expr, "accepted", accepted)
}

// Counts returns how many scheduled triggers were accepted and rejected.
func (s *Schedule) Counts() (fired, skipped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired, s.skipped
}

// Stop halts the scheduler and waits briefly for a running job.
func (s *Schedule) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn("trigger schedule stop timed out", "expr", s.expr)
	}
	s.logger.Info("trigger schedule stopped", "expr", s.expr)
}
