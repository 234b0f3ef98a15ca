package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/chillbot/internal/app"
	"github.com/Brownie44l1/chillbot/internal/codec"
	"github.com/Brownie44l1/chillbot/internal/config"
	"github.com/Brownie44l1/chillbot/internal/model"
)

var (
	configFlag string
	debugFlag  bool
	dumpFlag   string

	// engineFactory is replaced in tests.
	engineFactory app.EngineFactory = app.DefaultEngine
)

var rootCmd = &cobra.Command{
	Use:   "chillbot",
	Short: "chillbot - photo classification for the drinks fridge",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger(debugFlag)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the capture/classify loop until interrupted",
	RunE:  runDaemon,
}

var classifyCmd = &cobra.Command{
	Use:   "classify IMAGE...",
	Short: "Classify image files and print the derived facts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to chillbot.yaml (defaults when empty)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
	classifyCmd.Flags().StringVar(&dumpFlag, "dump-tensor", "", "Write each encoded model input to this directory as raw float32")
	rootCmd.AddCommand(runCmd, classifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

func loadConfig() (*config.Config, error) {
	if configFlag == "" {
		cfg := config.DefaultConfig()
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTP.Addr = ":" + port
		}
		return cfg, config.Validate(cfg)
	}
	return config.Load(configFlag)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("starting chillbot",
		"model", cfg.Model.Path,
		"capture", cfg.Capture.Kind,
		"http", cfg.HTTP.Addr,
	)

	c, err := app.Build(cfg, slog.Default(), app.BuildOptions{Engine: engineFactory})
	if err != nil {
		var cfgErr *model.ConfigurationError
		if errors.As(err, &cfgErr) {
			slog.Error("model assets unusable", "asset", cfgErr.Asset, "error", cfgErr.Err)
		}
		return err
	}
	slog.Info("model ready", "labels", len(c.Vocabulary), "classes", strings.Join(c.Vocabulary, ","))

	// Setup signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := c.Run(ctx, cmd.InOrStdin())
	if runErr != nil {
		slog.Error("service error", "error", runErr)
	} else {
		slog.Info("received shutdown signal")
	}

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("chillbot stopped")
	case <-time.After(10 * time.Second):
		slog.Warn("shutdown timed out")
	}
	return runErr
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Capture.Kind = "file"
	cfg.Capture.Paths = args
	cfg.HTTP.Addr = ""
	cfg.Trigger = config.TriggerConfig{}
	cfg.Status.Telegram = config.TelegramConfig{}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	factory := engineFactory
	if dumpFlag != "" {
		if err := os.MkdirAll(dumpFlag, 0o755); err != nil {
			return fmt.Errorf("tensor dump dir: %w", err)
		}
		factory = dumpingEngine(engineFactory, dumpFlag)
	}

	c, err := app.Build(cfg, slog.Default(), app.BuildOptions{Engine: factory})
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Capture.Timeout+30*time.Second)
		res, err := c.ClassifyNext(ctx)
		cancel()
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s: error: %v\n", path, err)
			continue
		}
		var set []string
		for _, name := range res.Facts.Names() {
			set = append(set, fmt.Sprintf("%s=%t", name, res.Facts[name]))
		}
		fmt.Fprintf(out, "%s: %s [%s]\n", path, res.Summary, strings.Join(set, " "))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(args))
	}
	return nil
}

// tensorDump writes every input it forwards as raw float32 in codec.ByteOrder,
// for replaying a cycle against another runtime.
type tensorDump struct {
	app.Engine
	dir string
	n   int
}

func dumpingEngine(next app.EngineFactory, dir string) app.EngineFactory {
	return func(cfg model.Config) (app.Engine, model.Vocabulary, error) {
		e, vocab, err := next(cfg)
		if err != nil {
			return nil, nil, err
		}
		return &tensorDump{Engine: e, dir: dir}, vocab, nil
	}
}

func (d *tensorDump) Run(input codec.InputTensor) ([]float32, error) {
	d.n++
	path := filepath.Join(d.dir, fmt.Sprintf("input-%03d.f32", d.n))
	if err := os.WriteFile(path, input.Bytes(), 0o644); err != nil {
		slog.Warn("tensor dump failed", "path", path, "error", err)
	} else {
		slog.Debug("tensor dumped", "path", path, "shape", input.Shape())
	}
	return d.Engine.Run(input)
}
