package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Brownie44l1/chillbot/internal/facts"
)

// Config represents the complete chillbot configuration
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Selection SelectionConfig `yaml:"selection"`
	Capture   CaptureConfig   `yaml:"capture"`
	Report    ReportConfig    `yaml:"report"`
	Status    StatusConfig    `yaml:"status"`
	Trigger   TriggerConfig   `yaml:"trigger"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// ModelConfig locates the classifier assets
type ModelConfig struct {
	Path          string `yaml:"path"`
	LabelsPath    string `yaml:"labels_path"`
	LibraryPath   string `yaml:"library_path"` // onnxruntime shared library
	InputName     string `yaml:"input_name"`
	OutputName    string `yaml:"output_name"`
	OutputType    string `yaml:"output_type"`   // float32, uint8
	Normalization string `yaml:"normalization"` // unit, signed
	ImageSize     int    `yaml:"image_size"`
}

// SelectionConfig tunes result selection and fact extraction
type SelectionConfig struct {
	MaxResults    int              `yaml:"max_results"`
	MinConfidence float32          `yaml:"min_confidence"`
	Threshold     float32          `yaml:"threshold"`
	Interest      []facts.Interest `yaml:"interest"`
}

// CaptureConfig selects the image source
type CaptureConfig struct {
	Kind    string        `yaml:"kind"` // file, dir, screen, push
	Paths   []string      `yaml:"paths"`
	Dir     string        `yaml:"dir"`
	Width   int           `yaml:"width"`
	Height  int           `yaml:"height"`
	Timeout time.Duration `yaml:"timeout"`
}

// ReportConfig lists the fact sinks
type ReportConfig struct {
	QueueSize int          `yaml:"queue_size"`
	MQTT      MQTTConfig   `yaml:"mqtt"`
	SQLite    SQLiteConfig `yaml:"sqlite"`
	Log       bool         `yaml:"log"`
}

// MQTTConfig contains MQTT broker settings; an empty broker disables the sink
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
	Format   string `yaml:"format"` // json, msgpack
}

// SQLiteConfig enables the local fact history
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// StatusConfig lists the status channels besides the log
type StatusConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	History  int            `yaml:"history"`
}

// TelegramConfig enables status messages to a chat
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// TriggerConfig enables the non-HTTP triggers
type TriggerConfig struct {
	Keyboard bool   `yaml:"keyboard"`
	Schedule string `yaml:"schedule"`
}

// HTTPConfig contains the control server settings; an empty addr disables it
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the drinks fridge setup.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Path:          "models/model.onnx",
			LabelsPath:    "models/labels.txt",
			InputName:     "input",
			OutputName:    "output",
			OutputType:    "float32",
			Normalization: "unit",
			ImageSize:     224,
		},
		Selection: SelectionConfig{
			MaxResults:    3,
			MinConfidence: 0.1,
			Threshold:     facts.DefaultThreshold,
			Interest:      append([]facts.Interest(nil), facts.DefaultInterest...),
		},
		Capture: CaptureConfig{
			Kind:    "push",
			Width:   640,
			Height:  480,
			Timeout: 10 * time.Second,
		},
		Report: ReportConfig{
			QueueSize: 16,
			MQTT: MQTTConfig{
				Topic:    "chillbot/drinks",
				ClientID: "chillbot",
				QoS:      1,
				Format:   "json",
			},
			Log: true,
		},
		Status: StatusConfig{History: 50},
		HTTP:   HTTPConfig{Addr: ":8080"},
	}
}

// Load reads and parses a YAML configuration file over the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.HTTP.Addr = ":" + port
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
