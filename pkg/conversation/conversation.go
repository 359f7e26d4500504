// Package conversation holds the state of one chat: the current session id,
// its turn history and the reply request in flight, if any.
//
// At most one reply request is active per Conversation. Send, NewChat, Load
// and deleting the current session cancel the active request and wait for it
// to finish, including persisting its stopped turn, before going on.
package conversation

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/backend"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/logger"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/stream"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/utils"
)

const (
	// DefaultTitle names a session before its first message.
	DefaultTitle = "New Chat"

	titleLength = 30
)

// Backend is the subset of the backend client a Conversation drives.
type Backend interface {
	Chat(ctx context.Context, req backend.ChatRequest) (io.ReadCloser, error)
	GetSession(ctx context.Context, id string) (*backend.Session, error)
	SaveSession(ctx context.Context, req backend.SaveSessionRequest) (string, error)
	DeleteSession(ctx context.Context, id string) error
}

// Params are the generation settings sent with a message.
type Params struct {
	MaxTokens    int
	Temperature  float64
	TopP         float64
	SystemPrompt string
}

// Reply is the outcome of one Send.
type Reply struct {
	Text     string
	Metadata *stream.Metadata
	State    stream.State
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Conversation) {
		c.logger = logger.OrNop(l)
	}
}

// WithInterval sets the render throttle interval passed to each consumer.
func WithInterval(d time.Duration) Option {
	return func(c *Conversation) {
		c.interval = d
	}
}

// request is the in-flight reply exchange.
type request struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Conversation is safe for concurrent use.
type Conversation struct {
	backend  Backend
	logger   *slog.Logger
	interval time.Duration

	mu        sync.Mutex
	sessionID string
	history   []backend.Turn
	active    *request
}

// New returns an empty conversation bound to b.
func New(b Backend, opts ...Option) *Conversation {
	c := &Conversation{
		backend:  b,
		logger:   logger.Nop(),
		interval: stream.DefaultRenderInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send submits text and streams the reply through render. render may be nil.
//
// A completed or cancelled reply is appended to the history and the session
// is saved; a failed one leaves the history untouched and returns the
// transport error with whatever text had arrived.
func (c *Conversation) Send(ctx context.Context, text string, params Params, render stream.RenderFunc) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if render == nil {
		render = func(string) {}
	}

	reqCtx, req := c.acquire(ctx)
	defer c.release(req)

	c.mu.Lock()
	history := slices.Clone(c.history)
	c.mu.Unlock()

	c.logger.Debug("sending message",
		"session_id", c.SessionID(),
		"history_turns", len(history),
		"max_tokens", params.MaxTokens,
	)

	reply, err := c.exchange(reqCtx, backend.ChatRequest{
		Message:      text,
		History:      history,
		MaxTokens:    params.MaxTokens,
		Temperature:  params.Temperature,
		TopP:         params.TopP,
		SystemPrompt: params.SystemPrompt,
	}, render)
	if err != nil {
		return reply, err
	}

	c.record(context.WithoutCancel(ctx), backend.Turn{User: text, Bot: reply.Text})
	return reply, nil
}

// exchange opens the chat stream and consumes it.
func (c *Conversation) exchange(ctx context.Context, req backend.ChatRequest, render stream.RenderFunc) (*Reply, error) {
	body, err := c.backend.Chat(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			// Stopped before the backend answered.
			render(stream.StoppedMarker)
			return &Reply{Text: stream.StoppedMarker, State: stream.Cancelled}, nil
		}
		return &Reply{State: stream.Failed}, &stream.TransportError{Err: err}
	}
	defer body.Close()

	// Unblocks a read in progress when the request is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	consumer := stream.New(
		stream.WithRender(render),
		stream.WithInterval(c.interval),
		stream.WithLogger(c.logger),
	)

	res, err := consumer.Consume(ctx, stream.NewReaderSource(body))
	return &Reply{Text: res.Body, Metadata: res.Metadata, State: res.State}, err
}

// record appends turn and persists the session. Save failures are logged:
// the turn stays in the local history and is saved again with the next one.
func (c *Conversation) record(ctx context.Context, turn backend.Turn) {
	c.mu.Lock()
	c.history = append(c.history, turn)
	save := backend.SaveSessionRequest{
		ID:      c.sessionID,
		Title:   c.titleLocked(),
		History: slices.Clone(c.history),
	}
	c.mu.Unlock()

	id, err := c.backend.SaveSession(ctx, save)
	if err != nil {
		c.logger.Warn("saving session", "session_id", save.ID, "error", err)
		return
	}

	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// acquire cancels and waits out any active request, then registers a new
// one derived from ctx.
func (c *Conversation) acquire(ctx context.Context) (context.Context, *request) {
	reqCtx, cancel := context.WithCancel(ctx)
	req := &request{cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	for c.active != nil {
		prev := c.active
		c.mu.Unlock()
		prev.cancel()
		<-prev.done
		c.mu.Lock()
	}
	c.active = req
	c.mu.Unlock()

	return reqCtx, req
}

func (c *Conversation) release(req *request) {
	req.cancel()

	c.mu.Lock()
	if c.active == req {
		c.active = nil
	}
	c.mu.Unlock()

	close(req.done)
}

// halt cancels the active request, if any, and waits for it to finish.
func (c *Conversation) halt() {
	c.mu.Lock()
	prev := c.active
	c.mu.Unlock()

	if prev == nil {
		return
	}
	prev.cancel()
	<-prev.done
}

// Stop cancels the active request, if any. It does not wait; the pending
// Send returns a Cancelled reply. Stop is idempotent.
func (c *Conversation) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		c.active.cancel()
	}
}

// Busy reports whether a reply is streaming.
func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// NewChat stops any active request and clears the session and history.
func (c *Conversation) NewChat() {
	c.halt()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = ""
	c.history = nil
}

// Load stops any active request and replaces the conversation with the
// stored session id.
func (c *Conversation) Load(ctx context.Context, id string) error {
	c.halt()

	session, err := c.backend.GetSession(ctx, id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = session.ID
	c.history = slices.Clone(session.History)
	return nil
}

// Delete removes a stored session. Deleting the current session resets the
// conversation to a new chat.
func (c *Conversation) Delete(ctx context.Context, id string) error {
	current := id == c.SessionID()
	if current {
		c.halt()
	}

	if err := c.backend.DeleteSession(ctx, id); err != nil {
		return err
	}

	if current {
		c.NewChat()
	}
	return nil
}

// SessionID returns the backend id of the current session, empty until the
// first turn is saved.
func (c *Conversation) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// History returns a copy of the turns so far.
func (c *Conversation) History() []backend.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.history)
}

// Title is the first user message cut to 30 characters, or DefaultTitle.
func (c *Conversation) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.titleLocked()
}

func (c *Conversation) titleLocked() string {
	if len(c.history) == 0 {
		return DefaultTitle
	}
	return utils.Truncate(c.history[0].User, titleLength)
}
