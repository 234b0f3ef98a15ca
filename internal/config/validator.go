package config

import (
	"fmt"

	"github.com/Brownie44l1/chillbot/internal/codec"
	"github.com/Brownie44l1/chillbot/internal/report"
	"github.com/Brownie44l1/chillbot/internal/trigger"
)

// Validate checks if the configuration is valid and fills unset defaults
func Validate(cfg *Config) error {
	// Validate model
	if cfg.Model.Path == "" {
		return fmt.Errorf("model.path is required")
	}
	if cfg.Model.LabelsPath == "" {
		return fmt.Errorf("model.labels_path is required")
	}
	switch cfg.Model.OutputType {
	case "":
		cfg.Model.OutputType = "float32"
	case "float32", "uint8":
	default:
		return fmt.Errorf("model.output_type must be 'float32' or 'uint8', got '%s'", cfg.Model.OutputType)
	}
	if cfg.Model.Normalization == "" {
		cfg.Model.Normalization = codec.UnitRange.String()
	}
	if _, err := codec.ParseNormalization(cfg.Model.Normalization); err != nil {
		return fmt.Errorf("model.normalization: %w", err)
	}
	if cfg.Model.ImageSize <= 0 {
		cfg.Model.ImageSize = codec.ImageSize
	}

	// Validate selection
	if cfg.Selection.MaxResults <= 0 {
		return fmt.Errorf("selection.max_results must be > 0")
	}
	if cfg.Selection.MinConfidence < 0 || cfg.Selection.MinConfidence > 1 {
		return fmt.Errorf("selection.min_confidence must be within [0,1]")
	}
	if cfg.Selection.Threshold < 0 || cfg.Selection.Threshold > 1 {
		return fmt.Errorf("selection.threshold must be within [0,1]")
	}
	if err := validateInterest(cfg.Selection); err != nil {
		return err
	}

	// Validate capture
	switch cfg.Capture.Kind {
	case "file":
		if len(cfg.Capture.Paths) == 0 {
			return fmt.Errorf("capture.paths is required for kind 'file'")
		}
	case "dir":
		if cfg.Capture.Dir == "" {
			return fmt.Errorf("capture.dir is required for kind 'dir'")
		}
	case "screen", "push":
	default:
		return fmt.Errorf("capture.kind must be one of file, dir, screen, push, got '%s'", cfg.Capture.Kind)
	}
	if cfg.Capture.Width <= 0 {
		cfg.Capture.Width = 640
	}
	if cfg.Capture.Height <= 0 {
		cfg.Capture.Height = 480
	}
	if cfg.Capture.Timeout < 0 {
		return fmt.Errorf("capture.timeout must be >= 0")
	}
	if cfg.Capture.Kind == "push" && cfg.HTTP.Addr == "" {
		return fmt.Errorf("capture.kind 'push' requires http.addr")
	}

	// Validate report
	if cfg.Report.QueueSize <= 0 {
		cfg.Report.QueueSize = report.DefaultQueueSize
	}
	switch cfg.Report.MQTT.Format {
	case "":
		cfg.Report.MQTT.Format = report.FormatJSON
	case report.FormatJSON, report.FormatMsgpack:
	default:
		return fmt.Errorf("report.mqtt.format must be 'json' or 'msgpack', got '%s'", cfg.Report.MQTT.Format)
	}
	if cfg.Report.MQTT.QoS > 2 {
		return fmt.Errorf("report.mqtt.qos must be 0, 1 or 2")
	}
	if cfg.Report.MQTT.Broker != "" && cfg.Report.MQTT.Topic == "" {
		return fmt.Errorf("report.mqtt.topic is required when a broker is set")
	}

	// Validate status
	if cfg.Status.Telegram.Token != "" && cfg.Status.Telegram.ChatID == 0 {
		return fmt.Errorf("status.telegram.chat_id is required when a token is set")
	}
	if cfg.Status.History <= 0 {
		cfg.Status.History = 50
	}

	// Validate trigger
	if cfg.Trigger.Schedule != "" {
		if _, err := trigger.ParseSchedule(cfg.Trigger.Schedule); err != nil {
			return fmt.Errorf("trigger.schedule: %w", err)
		}
	}

	return nil
}

func validateInterest(sel SelectionConfig) error {
	facts := make(map[string]bool, len(sel.Interest))
	for i, in := range sel.Interest {
		if in.Label == "" || in.Fact == "" {
			return fmt.Errorf("selection.interest[%d]: label and fact are required", i)
		}
		if facts[in.Fact] {
			return fmt.Errorf("selection.interest[%d]: duplicate fact '%s'", i, in.Fact)
		}
		facts[in.Fact] = true
	}
	return nil
}
