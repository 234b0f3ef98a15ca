// Command server runs chillbot as a plain HTTP service: photos arrive through
// POST /capture and cycles start with POST /trigger. Configuration comes from
// CHILLBOT_CONFIG when set, otherwise from the assets under models/.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Brownie44l1/chillbot/internal/app"
	"github.com/Brownie44l1/chillbot/internal/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Get the project root directory
	execPath, err := os.Getwd()
	if err != nil {
		slog.Error("failed to get working directory", "error", err)
		os.Exit(1)
	}

	// If running from cmd/server, go up two levels
	if filepath.Base(execPath) == "server" {
		execPath = filepath.Join(execPath, "../..")
	}

	cfg, err := loadConfig(execPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	c, err := app.Build(cfg, logger, app.BuildOptions{})
	if err != nil {
		slog.Error("failed to initialize chillbot", "error", err)
		os.Exit(1)
	}

	slog.Info("server starting",
		"addr", cfg.HTTP.Addr,
		"model", cfg.Model.Path,
		"classes", []string(c.Vocabulary),
	)
	slog.Info("endpoints",
		"health", "GET /health",
		"trigger", "POST /trigger",
		"capture", "POST /capture (multipart field 'image')",
		"status", "GET /status",
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Run(ctx, nil); err != nil {
		slog.Error("server failed", "error", err)
		c.Close()
		os.Exit(1)
	}
	c.Close()
}

func loadConfig(root string) (*config.Config, error) {
	var cfg *config.Config
	if path := os.Getenv("CHILLBOT_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
		cfg.Model.Path = filepath.Join(root, "models", "model.onnx")
		cfg.Model.LabelsPath = filepath.Join(root, "models", "labels.txt")
	}

	cfg.Capture.Kind = "push"
	cfg.Trigger.Keyboard = false
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	cfg.HTTP.Addr = ":" + port
	return cfg, config.Validate(cfg)
}
