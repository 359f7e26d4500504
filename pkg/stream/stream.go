// Package stream consumes an assistant reply that arrives as a chunked text
// stream from the esca backend.
//
// A reply body may be followed by a single trailing statistics block:
//
//	Hello world\n\n<|METADATA|>{"tokens":5,"duration":1.2,"tps":4.1}
//
// The Consumer accumulates the body, splits off and decodes the metadata,
// re-renders the partial body at a throttled cadence and stops cooperatively
// when its context is cancelled.
package stream

import (
	"fmt"
	"time"
)

const (
	// MetadataDelimiter separates the reply body from its trailing JSON
	// statistics payload.
	MetadataDelimiter = "<|METADATA|>"

	// StoppedMarker is appended to the body of a reply that was cancelled
	// before the stream ended.
	StoppedMarker = " *[Stopped]*"

	// DefaultRenderInterval is the minimum wall-clock time between two
	// throttled renders.
	DefaultRenderInterval = 50 * time.Millisecond
)

// Metadata holds the generation statistics the backend appends to a reply.
type Metadata struct {
	Tokens   int     `json:"tokens"`
	Duration float64 `json:"duration"`
	TPS      float64 `json:"tps"`
}

// String formats the statistics the way they are shown under a reply.
func (m Metadata) String() string {
	return fmt.Sprintf("%d tokens in %gs (%g t/s)", m.Tokens, m.Duration, m.TPS)
}

// State is a Consumer lifecycle state.
type State int

const (
	// Idle consumers have not started reading.
	Idle State = iota

	// Streaming is the only state in which reads happen.
	Streaming

	// Completed, Cancelled and Failed are terminal.
	Completed
	Cancelled
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether s is one of the absorbing end states.
func (s State) Terminal() bool {
	return s == Completed || s == Cancelled || s == Failed
}

// Result is the final outcome of a consumed reply.
type Result struct {
	// Body is the assembled reply text. Cancelled replies end with
	// StoppedMarker.
	Body string

	// Metadata is nil when the stream carried no metadata block or the block
	// could not be decoded.
	Metadata *Metadata

	State State
}

// RenderFunc receives the current best-effort reply body.
type RenderFunc func(body string)
