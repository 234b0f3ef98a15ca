// Package report delivers derived facts to persistence sinks off the
// classification path.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Brownie44l1/chillbot/internal/facts"
)

// Report is what one completed cycle hands to the sinks.
type Report struct {
	CycleID   string      `json:"cycle_id" msgpack:"cycle_id"`
	Timestamp time.Time   `json:"timestamp" msgpack:"timestamp"`
	Facts     facts.Facts `json:"facts" msgpack:"facts"`
	Summary   string      `json:"summary" msgpack:"summary"`
}

// Sink persists reports.
type Sink interface {
	Name() string
	Write(ctx context.Context, r Report) error
	Close() error
}

// Payload formats.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Encode serializes r in the given format.
func Encode(r Report, format string) ([]byte, error) {
	switch format {
	case "", FormatJSON:
		return json.Marshal(r)
	case FormatMsgpack:
		return msgpack.Marshal(r)
	default:
		return nil, fmt.Errorf("unknown payload format %q", format)
	}
}

// Decode is the inverse of Encode.
func Decode(data []byte, format string) (Report, error) {
	var r Report
	var err error
	switch format {
	case "", FormatJSON:
		err = json.Unmarshal(data, &r)
	case FormatMsgpack:
		err = msgpack.Unmarshal(data, &r)
	default:
		err = fmt.Errorf("unknown payload format %q", format)
	}
	return r, err
}
