// Package backend is a typed HTTP client for the Esca backend: model
// management, chat sessions, model downloads and the streaming chat endpoint.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/logger"
)

const (
	// DefaultTimeout bounds every JSON call. Loading a large model can take
	// a while, so it is generous. Chat streams are not bounded.
	DefaultTimeout = 5 * time.Minute

	// RequestIDHeader carries a per-request uuid for correlating client and
	// backend logs.
	RequestIDHeader = "X-Request-ID"
)

// Client talks to one Esca backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. The client must not set
// Timeout, it would cut long chat streams short.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the deadline applied to JSON calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.OrNop(l)
	}
}

// NewClient returns a Client for the backend at baseURL
// (e.g. "http://localhost:5000").
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend URL the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListModels returns the .gguf files available in the backend's models
// directory.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var models []string
	if err := c.doJSON(ctx, http.MethodGet, "/api/models", nil, &models); err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	return models, nil
}

// LoadModel asks the backend to load a model with the given context size
// and GPU offload.
func (c *Client) LoadModel(ctx context.Context, req LoadModelRequest) error {
	if err := c.doJSON(ctx, http.MethodPost, "/api/load_model", req, nil); err != nil {
		return fmt.Errorf("loading model %s: %w", req.Model, err)
	}
	return nil
}

// ListSessions returns stored session summaries, newest first.
func (c *Client) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	var sessions []SessionSummary
	if err := c.doJSON(ctx, http.MethodGet, "/api/sessions", nil, &sessions); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// GetSession fetches one session. A missing session wraps ErrSessionNotFound.
func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	var session Session
	if err := c.doJSON(ctx, http.MethodGet, sessionPath(id), nil, &session); err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, notFound(err))
	}
	return &session, nil
}

// SaveSession creates or replaces a session and returns its id, which the
// backend assigns when req.ID is empty.
func (c *Client) SaveSession(ctx context.Context, req SaveSessionRequest) (string, error) {
	if req.History == nil {
		req.History = []Turn{}
	}

	var resp saveSessionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/sessions", req, &resp); err != nil {
		return "", fmt.Errorf("saving session: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("saving session: backend returned no id")
	}
	return resp.ID, nil
}

// DeleteSession removes a session. A missing session wraps ErrSessionNotFound.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, sessionPath(id), nil, nil); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, notFound(err))
	}
	return nil
}

// StartDownload starts the backend's download job for a .gguf URL and
// returns the destination file name.
func (c *Client) StartDownload(ctx context.Context, modelURL string) (string, error) {
	var resp downloadResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/download_model", downloadRequest{URL: modelURL}, &resp); err != nil {
		return "", fmt.Errorf("starting download: %w", err)
	}
	return resp.Filename, nil
}

// DownloadProgress returns the state of the backend's download job.
func (c *Client) DownloadProgress(ctx context.Context) (*DownloadStatus, error) {
	var status DownloadStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/download_model/progress", nil, &status); err != nil {
		return nil, fmt.Errorf("getting download progress: %w", err)
	}
	return &status, nil
}

// Chat sends a message and returns the chunked reply body. A non-2xx status
// is returned as an error before any of the body is read. The caller must
// close the body; cancelling ctx aborts the stream.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	if req.History == nil {
		req.History = []Turn{}
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/chat", req)
	if err != nil {
		return nil, fmt.Errorf("sending chat request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, fmt.Errorf("sending chat request: %w", apiError(resp))
	}

	return resp.Body, nil
}

// do builds and sends a request. body, when non-nil, is encoded as JSON.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	c.logger.Debug("backend request",
		"method", method,
		"path", path,
		"request_id", requestID,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("backend response",
		"method", method,
		"path", path,
		"request_id", requestID,
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)

	return resp, nil
}

// doJSON sends a request bounded by the client timeout and decodes a 2xx
// JSON response into out, which may be nil.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.do(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// apiError reads a failed response into an *APIError.
func apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	apiErr := &APIError{Status: resp.StatusCode}

	var body errorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

// notFound maps a 404 APIError onto ErrSessionNotFound, keeping the
// APIError reachable through errors.As.
func notFound(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ErrSessionNotFound, apiErr)
	}
	return err
}

func sessionPath(id string) string {
	return "/api/sessions/" + url.PathEscape(id)
}
