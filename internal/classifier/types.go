package classifier

import (
	"context"
	"image"
	"time"

	"github.com/Brownie44l1/chillbot/internal/capture"
	"github.com/Brownie44l1/chillbot/internal/codec"
	"github.com/Brownie44l1/chillbot/internal/facts"
	"github.com/Brownie44l1/chillbot/internal/model"
	"github.com/Brownie44l1/chillbot/internal/report"
)

// State enumerates the phases of a capture/classify cycle.
type State int32

const (
	Idle State = iota
	AwaitingImage
	Classifying
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingImage:
		return "awaiting_image"
	case Classifying:
		return "classifying"
	default:
		return "unknown"
	}
}

// User-facing status messages.
const (
	MsgInitializing    = "Initializing..."
	MsgReady           = "Press the button to take a photo"
	MsgProcessing      = "Running photo recognition"
	MsgStillProcessing = "Still processing, please wait"
	MsgEmptyResult     = "I don't understand what I see"
)

// Executor runs the model on one input tensor and returns one row of scores.
// It is never called concurrently by the orchestrator.
type Executor interface {
	Run(input codec.InputTensor) ([]float32, error)
}

// Source is where a cycle gets its photo from.
type Source interface {
	RequestImage(ctx context.Context, onReady capture.ReadyFunc) error
}

// Notifier receives status messages.
type Notifier interface {
	Notify(msg string)
}

// Reporter takes derived facts off the cycle's critical path.
type Reporter interface {
	Enqueue(r report.Report) bool
}

// Preprocessor brings a captured frame to the model input size.
type Preprocessor interface {
	Fit(src image.Image) image.Image
}

// Listener is called on each state transition, from the orchestrator goroutine.
type Listener func(prev, next State)

// Result is the outcome of one completed cycle.
type Result struct {
	CycleID      string              `json:"cycle_id"`
	Recognitions []model.Recognition `json:"recognitions"`
	Facts        facts.Facts         `json:"facts"`
	Summary      string              `json:"summary"`
	Duration     time.Duration       `json:"duration"`
	CompletedAt  time.Time           `json:"completed_at"`
}

// Stats counts cycle outcomes.
type Stats struct {
	Started   uint64 `json:"started"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Busy      uint64 `json:"busy"`
	TimedOut  uint64 `json:"timed_out"`
}
