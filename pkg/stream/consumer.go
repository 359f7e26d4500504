package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Option configures a Consumer created with New.
type Option func(*Consumer)

// WithRender sets the callback that displays the partial reply.
func WithRender(fn RenderFunc) Option {
	return func(c *Consumer) {
		c.render = fn
	}
}

// WithInterval overrides DefaultRenderInterval. A non-positive interval
// renders on every chunk.
func WithInterval(d time.Duration) Option {
	return func(c *Consumer) {
		c.interval = d
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Consumer) {
		c.logger = l
	}
}

// Consumer reads one reply stream. It moves Idle → Streaming → one of
// Completed, Cancelled or Failed, and cannot be reused.
type Consumer struct {
	render   RenderFunc
	interval time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	state State
}

func New(opts ...Option) *Consumer {
	c := &Consumer{
		interval: DefaultRenderInterval,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.render == nil {
		c.render = func(string) {}
	}
	return c
}

// State returns the current lifecycle state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Consume reads src until it ends, fails, or ctx is cancelled.
//
// The render callback is invoked on the first chunk of body text, then at
// most once per interval, and exactly once more with the final body after
// the stream completes or is cancelled. Cancellation is checked between
// reads: it yields a Cancelled result whose body ends with StoppedMarker and
// a nil error. A failing source yields a *TransportError alongside a Failed
// result holding the body received so far.
func (c *Consumer) Consume(ctx context.Context, src Source) (*Result, error) {
	if !c.begin() {
		return nil, ErrConsumed
	}

	acc := &reply{}
	renderPartial := c.throttled()

	final := Completed
	var failure error

	for {
		if ctx.Err() != nil {
			final = Cancelled
			break
		}

		chunk, err := src.Next(ctx)
		if chunk != "" && acc.add(chunk) {
			renderPartial(acc.body.String())
		}

		if err == nil {
			continue
		}

		switch {
		case errors.Is(err, io.EOF):
		case ctx.Err() != nil:
			final = Cancelled
		default:
			final = Failed
			failure = &TransportError{Err: err}
		}
		break
	}

	result := &Result{
		Body:     acc.finish(),
		Metadata: c.decodeMetadata(acc),
		State:    final,
	}
	if final == Cancelled {
		result.Body += StoppedMarker
	}

	c.end(final)

	c.logger.Debug("reply stream finished",
		"state", final.String(),
		"body_bytes", len(result.Body),
		"metadata", result.Metadata != nil,
	)

	if final == Failed {
		return result, failure
	}

	c.render(result.Body)
	return result, nil
}

func (c *Consumer) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return false
	}
	c.state = Streaming
	return true
}

func (c *Consumer) end(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// throttled wraps the render callback so it runs eagerly the first time and
// then at most once per interval.
func (c *Consumer) throttled() RenderFunc {
	if c.interval <= 0 {
		return c.render
	}

	limiter := &rate.Sometimes{Interval: c.interval}
	return func(body string) {
		limiter.Do(func() { c.render(body) })
	}
}

func (c *Consumer) decodeMetadata(acc *reply) *Metadata {
	if !acc.inMeta {
		return nil
	}

	raw := strings.TrimSpace(acc.meta.String())
	meta := &Metadata{}
	if err := json.Unmarshal([]byte(raw), meta); err != nil {
		// Malformed statistics leave the reply without metadata.
		c.logger.Debug("ignoring malformed reply metadata", "error", err)
		return nil
	}
	return meta
}

// reply accumulates body text and, once the delimiter has been seen, the
// metadata payload. A body tail that could be the start of a delimiter split
// across chunks is held in pending until the next chunk resolves it.
type reply struct {
	body    strings.Builder
	pending string

	inMeta bool
	meta   strings.Builder
}

// add appends chunk and reports whether visible body text grew.
func (r *reply) add(chunk string) bool {
	if r.inMeta {
		r.meta.WriteString(chunk)
		return false
	}

	text := r.pending + chunk
	r.pending = ""

	if before, after, found := strings.Cut(text, MetadataDelimiter); found {
		r.body.WriteString(before)
		r.inMeta = true
		r.meta.WriteString(after)
		return before != ""
	}

	keep := partialDelimiter(text)
	visible := text[:len(text)-keep]
	r.body.WriteString(visible)
	r.pending = text[len(text)-keep:]
	return visible != ""
}

// finish flushes any held-back text and returns the body.
func (r *reply) finish() string {
	r.body.WriteString(r.pending)
	r.pending = ""
	return r.body.String()
}

// partialDelimiter returns the length of the longest suffix of s that is a
// proper prefix of MetadataDelimiter.
func partialDelimiter(s string) int {
	for k := min(len(s), len(MetadataDelimiter)-1); k > 0; k-- {
		if strings.HasSuffix(s, MetadataDelimiter[:k]) {
			return k
		}
	}
	return 0
}
