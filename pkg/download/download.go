// Package download drives the backend's model download job: it validates the
// URL, starts the job and polls its progress until it finishes.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/backend"
	"github.com/Esca-Byte/ESCA-GGUF/pkg/logger"
)

// DefaultPollInterval is how often progress is requested.
const DefaultPollInterval = time.Second

// ErrDownloadStopped is returned when the backend reports the job is no
// longer running but neither finished nor failed.
var ErrDownloadStopped = errors.New("download stopped before completing")

// Error is a failure reported by the backend's download job.
type Error struct {
	Filename string
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("downloading %s: %s", e.Filename, e.Message)
}

// Backend is the subset of the backend client a Watcher drives.
type Backend interface {
	StartDownload(ctx context.Context, modelURL string) (string, error)
	DownloadProgress(ctx context.Context) (*backend.DownloadStatus, error)
}

// ProgressFunc receives every polled status.
type ProgressFunc func(status backend.DownloadStatus)

// Watcher starts downloads and follows them to completion.
type Watcher struct {
	backend  Backend
	interval time.Duration
	logger   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger.OrNop(l)
	}
}

// NewWatcher returns a Watcher bound to b.
func NewWatcher(b Backend, opts ...Option) *Watcher {
	w := &Watcher{
		backend:  b,
		interval: DefaultPollInterval,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run normalizes rawURL, starts the download and polls until the job
// completes, fails or ctx is done. It returns the stored file name, which
// is empty until the backend has accepted the job. onProgress may be nil.
func (w *Watcher) Run(ctx context.Context, rawURL string, onProgress ProgressFunc) (string, error) {
	modelURL, name, err := NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	if onProgress == nil {
		onProgress = func(backend.DownloadStatus) {}
	}

	started, err := w.backend.StartDownload(ctx, modelURL)
	if err != nil {
		return "", err
	}
	if started != "" {
		name = started
	}

	w.logger.Info("download started", "filename", name, "url", modelURL)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return name, ctx.Err()
		case <-ticker.C:
		}

		status, err := w.backend.DownloadProgress(ctx)
		if err != nil {
			return name, err
		}
		if status.Filename != "" {
			name = status.Filename
		}

		onProgress(*status)

		switch {
		case status.Error != "":
			w.logger.Warn("download failed", "filename", name, "error", status.Error)
			return name, &Error{Filename: name, Message: status.Error}

		case !status.Downloading && status.Progress >= 100:
			w.logger.Info("download completed", "filename", name)
			return name, nil

		case !status.Downloading:
			return name, ErrDownloadStopped
		}

		w.logger.Debug("download progress", "filename", name, "progress", status.Progress)
	}
}
