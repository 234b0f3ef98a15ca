// Package app assembles a runnable chillbot from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Brownie44l1/chillbot/internal/capture"
	"github.com/Brownie44l1/chillbot/internal/classifier"
	"github.com/Brownie44l1/chillbot/internal/codec"
	"github.com/Brownie44l1/chillbot/internal/config"
	"github.com/Brownie44l1/chillbot/internal/handlers"
	"github.com/Brownie44l1/chillbot/internal/model"
	"github.com/Brownie44l1/chillbot/internal/preprocess"
	"github.com/Brownie44l1/chillbot/internal/report"
	"github.com/Brownie44l1/chillbot/internal/status"
	"github.com/Brownie44l1/chillbot/internal/trigger"
)

// Engine is a loaded model.
type Engine interface {
	classifier.Executor
	Close() error
}

// EngineFactory loads the model and its label list.
type EngineFactory func(cfg model.Config) (Engine, model.Vocabulary, error)

// DefaultEngine loads an ONNX Runtime session.
func DefaultEngine(cfg model.Config) (Engine, model.Vocabulary, error) {
	s, err := model.NewServer(cfg)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Vocabulary, nil
}

// BuildOptions overrides the default collaborators.
type BuildOptions struct {
	Engine     EngineFactory
	BotFactory status.BotFactory
}

// Container holds every long-lived component.
type Container struct {
	Config       *config.Config
	Logger       *slog.Logger
	Engine       Engine
	Vocabulary   model.Vocabulary
	Source       capture.Source
	Push         *capture.PushSource // nil unless capture.kind is push
	Dispatcher   *report.Dispatcher
	SQLite       *report.SQLiteSink
	Recorder     *status.Recorder
	Telegram     *status.TelegramNotifier
	Notifier     status.Multi
	Orchestrator *classifier.Orchestrator
	Schedule     *trigger.Schedule
	HTTP         *http.Server

	idle      chan struct{}
	closeOnce sync.Once
}

// Build constructs all components. A model asset problem is returned as a
// *model.ConfigurationError before any other component exists.
func Build(cfg *config.Config, logger *slog.Logger, opts BuildOptions) (*Container, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Engine == nil {
		opts.Engine = DefaultEngine
	}
	c := &Container{
		Config:   cfg,
		Logger:   logger,
		Recorder: status.NewRecorder(cfg.Status.History),
		idle:     make(chan struct{}, 1),
	}
	c.Notifier = status.Multi{status.NewLogNotifier(logger), c.Recorder}
	c.Notifier.Notify(classifier.MsgInitializing)

	engine, vocab, err := opts.Engine(model.Config{
		ModelPath:   cfg.Model.Path,
		LabelsPath:  cfg.Model.LabelsPath,
		LibraryPath: cfg.Model.LibraryPath,
		InputName:   cfg.Model.InputName,
		OutputName:  cfg.Model.OutputName,
		OutputType:  cfg.Model.OutputType,
		ImageSize:   cfg.Model.ImageSize,
	})
	if err != nil {
		return nil, err
	}
	c.Engine, c.Vocabulary = engine, vocab
	logger.Info("model loaded", "path", cfg.Model.Path, "labels", len(vocab))

	if err := c.build(opts); err != nil {
		c.Close()
		return nil, err
	}
	c.Notifier.Notify(classifier.MsgReady)
	return c, nil
}

func (c *Container) build(opts BuildOptions) error {
	cfg, logger := c.Config, c.Logger

	src, err := c.buildSource()
	if err != nil {
		return fmt.Errorf("capture source: %w", err)
	}
	c.Source = src

	sinks, err := c.buildSinks()
	if err != nil {
		return err
	}
	c.Dispatcher = report.NewDispatcher(logger, cfg.Report.QueueSize, sinks...)

	if tg := cfg.Status.Telegram; tg.Token != "" {
		factory := opts.BotFactory
		var n *status.TelegramNotifier
		if factory != nil {
			n, err = status.NewTelegramNotifierWithFactory(tg.Token, tg.ChatID, logger, factory)
		} else {
			n, err = status.NewTelegramNotifier(tg.Token, tg.ChatID, logger)
		}
		if err != nil {
			return fmt.Errorf("telegram status: %w", err)
		}
		c.Telegram = n
		c.Notifier = append(c.Notifier, n)
	}

	norm, err := codec.ParseNormalization(cfg.Model.Normalization)
	if err != nil {
		return err
	}
	size := cfg.Model.ImageSize
	p := classifier.NewPipeline(c.Engine, c.Vocabulary, preprocess.New(size, size))
	p.Codec = codec.New(norm)
	p.Width, p.Height = size, size
	p.MaxResults = cfg.Selection.MaxResults
	p.MinConfidence = cfg.Selection.MinConfidence
	p.Threshold = cfg.Selection.Threshold
	p.Interest = cfg.Selection.Interest

	timeout := cfg.Capture.Timeout
	if timeout == 0 {
		timeout = -1
	}
	o, err := classifier.New(classifier.Options{
		Pipeline:       p,
		Source:         c.Source,
		Notifier:       c.Notifier,
		Reporter:       c.Dispatcher,
		Logger:         logger,
		CaptureTimeout: timeout,
	})
	if err != nil {
		return err
	}
	c.Orchestrator = o
	o.AddListener(func(prev, next classifier.State) {
		if next == classifier.Idle {
			select {
			case c.idle <- struct{}{}:
			default:
			}
		}
	})

	if expr := cfg.Trigger.Schedule; expr != "" {
		s, err := trigger.NewSchedule(expr, o.Trigger, logger)
		if err != nil {
			return err
		}
		c.Schedule = s
	}

	if cfg.HTTP.Addr != "" {
		h := handlers.NewHandler(o, handlers.Options{
			Uploads:       c.uploads(),
			History:       c.history(),
			Status:        c.Recorder,
			DispatchStats: c.Dispatcher.Stats,
			Logger:        logger,
		})
		c.HTTP = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handlers.Routes(h),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return nil
}

// uploads and history return untyped nils when disabled so the handler sees
// a nil interface.
func (c *Container) uploads() handlers.Uploads {
	if c.Push == nil {
		return nil
	}
	return c.Push
}

func (c *Container) history() handlers.History {
	if c.SQLite == nil {
		return nil
	}
	return c.SQLite
}

func (c *Container) buildSource() (capture.Source, error) {
	cc := c.Config.Capture
	switch cc.Kind {
	case "file":
		return capture.NewFileSource(cc.Paths...)
	case "dir":
		return capture.NewDirSource(cc.Dir, c.Logger)
	case "screen":
		return capture.NewScreenSource(cc.Width, cc.Height), nil
	case "push":
		c.Push = capture.NewPushSource()
		return c.Push, nil
	default:
		return nil, fmt.Errorf("unknown capture kind %q", cc.Kind)
	}
}

func (c *Container) buildSinks() ([]report.Sink, error) {
	rc := c.Config.Report
	var sinks []report.Sink
	if rc.Log {
		sinks = append(sinks, report.NewLogSink(c.Logger))
	}
	if rc.SQLite.Path != "" {
		s, err := report.OpenSQLite(rc.SQLite.Path)
		if err != nil {
			closeSinks(sinks)
			return nil, fmt.Errorf("sqlite report sink: %w", err)
		}
		c.SQLite = s
		sinks = append(sinks, s)
	}
	if rc.MQTT.Broker != "" {
		s, err := report.DialMQTT(report.MQTTConfig{
			Broker:   rc.MQTT.Broker,
			ClientID: rc.MQTT.ClientID,
			Topic:    rc.MQTT.Topic,
			QoS:      rc.MQTT.QoS,
			Retain:   rc.MQTT.Retain,
			Format:   rc.MQTT.Format,
		}, c.Logger)
		if err != nil {
			closeSinks(sinks)
			c.SQLite = nil
			return nil, fmt.Errorf("mqtt report sink: %w", err)
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func closeSinks(sinks []report.Sink) {
	for _, s := range sinks {
		_ = s.Close()
	}
}

// Run starts the triggers and the HTTP server and blocks until ctx is done
// or the server fails. stdin feeds the keyboard trigger when enabled.
func (c *Container) Run(ctx context.Context, stdin io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.Schedule != nil {
		if err := c.Schedule.Start(ctx); err != nil {
			return err
		}
	}
	if c.Config.Trigger.Keyboard && stdin != nil {
		go func() {
			c.Logger.Info("press Enter to take a photo")
			if err := trigger.Keyboard(ctx, stdin, c.Orchestrator.Trigger, c.Logger); err != nil && !errors.Is(err, context.Canceled) {
				c.Logger.Warn("keyboard trigger stopped", "error", err)
			}
		}()
	}

	errc := make(chan error, 1)
	if c.HTTP != nil {
		go func() {
			c.Logger.Info("http server starting", "addr", c.HTTP.Addr)
			if err := c.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	}
}

// ClassifyNext runs one cycle and waits for it to end.
func (c *Container) ClassifyNext(ctx context.Context) (classifier.Result, error) {
	select {
	case <-c.idle:
	default:
	}
	before := c.Orchestrator.Stats()
	if !c.Orchestrator.Trigger() {
		if msg, ok := c.Recorder.Last(); ok {
			return classifier.Result{}, errors.New(msg.Text)
		}
		return classifier.Result{}, errors.New(classifier.MsgStillProcessing)
	}
	select {
	case <-c.idle:
	case <-ctx.Done():
		return classifier.Result{}, ctx.Err()
	}
	if c.Orchestrator.Stats().Completed > before.Completed {
		res, _ := c.Orchestrator.LastResult()
		return res, nil
	}
	if msg, ok := c.Recorder.Last(); ok {
		return classifier.Result{}, errors.New(msg.Text)
	}
	return classifier.Result{}, errors.New("cycle failed")
}

// Close shuts everything down in dependency order. Errors are logged and
// shutdown always completes.
func (c *Container) Close() {
	c.closeOnce.Do(func() {
		if c.Schedule != nil {
			c.Schedule.Stop()
		}
		if c.HTTP != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := c.HTTP.Shutdown(ctx); err != nil {
				c.Logger.Warn("http shutdown failed", "error", err)
			}
			cancel()
		}
		if c.Orchestrator != nil {
			c.Orchestrator.Close()
		}
		if c.Source != nil {
			if err := c.Source.Close(); err != nil {
				c.Logger.Warn("capture source close failed", "error", err)
			}
		}
		if c.Dispatcher != nil {
			if err := c.Dispatcher.Close(); err != nil {
				c.Logger.Warn("report dispatcher close failed", "error", err)
			}
		}
		if c.Telegram != nil {
			if err := c.Telegram.Close(); err != nil {
				c.Logger.Warn("telegram close failed", "error", err)
			}
		}
		if c.Engine != nil {
			if err := c.Engine.Close(); err != nil {
				c.Logger.Warn("model close failed", "error", err)
			}
		}
		c.Logger.Info("shutdown complete")
	})
}
