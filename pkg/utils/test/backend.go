package testutils

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/backend"
)

// FakeBackend is an in-memory Esca backend for tests. It serves the same
// routes as the real backend and records what it was sent.
type FakeBackend struct {
	mu sync.Mutex

	// Models is returned by GET /api/models.
	Models []string

	// Reply is streamed by POST /api/chat as one chunk per element.
	Reply []string

	// FailChat makes POST /api/chat answer 400 "Model not loaded".
	FailChat bool

	// ProgressSteps is handed out one entry per progress poll once a
	// download starts. The last entry repeats.
	ProgressSteps []backend.DownloadStatus

	// ChatRequests records every decoded chat request.
	ChatRequests []backend.ChatRequest

	// LoadRequests records every decoded load_model request.
	LoadRequests []backend.LoadModelRequest

	// RequestIDs records the X-Request-ID header of every request.
	RequestIDs []string

	loaded    string
	sessions  map[string]*backend.Session
	clock     time.Time
	download  *backend.DownloadStatus
	pollCount int

	app *fiber.App
}

// NewFakeBackend returns a FakeBackend with no sessions and no model loaded.
func NewFakeBackend() *FakeBackend {
	f := &FakeBackend{
		sessions: make(map[string]*backend.Session),
		clock:    time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(f.recordRequestID)
	app.Get("/api/models", f.handleModels)
	app.Post("/api/load_model", f.handleLoadModel)
	app.Get("/api/sessions", f.handleListSessions)
	app.Get("/api/sessions/:id", f.handleGetSession)
	app.Post("/api/sessions", f.handleSaveSession)
	app.Delete("/api/sessions/:id", f.handleDeleteSession)
	app.Post("/api/download_model", f.handleStartDownload)
	app.Get("/api/download_model/progress", f.handleDownloadProgress)
	app.Post("/api/chat", f.handleChat)

	f.app = app
	return f
}

// Handler adapts the fiber app for httptest.NewServer.
func (f *FakeBackend) Handler() http.HandlerFunc {
	return adaptor.FiberApp(f.app)
}

// Session returns a copy of a stored session, or nil.
func (f *FakeBackend) Session(id string) *backend.Session {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[id]
	if !ok {
		return nil
	}
	cp := *s
	cp.History = slices.Clone(s.History)
	return &cp
}

// SessionCount returns the number of stored sessions.
func (f *FakeBackend) SessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// Loaded returns the name of the last successfully loaded model.
func (f *FakeBackend) Loaded() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

// RequestCount returns the number of requests served so far.
func (f *FakeBackend) RequestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.RequestIDs)
}

// Downloading reports whether a download job is running.
func (f *FakeBackend) Downloading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.download != nil && f.download.Downloading
}

func (f *FakeBackend) recordRequestID(c *fiber.Ctx) error {
	f.mu.Lock()
	f.RequestIDs = append(f.RequestIDs, c.Get(backend.RequestIDHeader))
	f.mu.Unlock()
	return c.Next()
}

// tick returns a strictly increasing timestamp so session ordering is
// deterministic.
func (f *FakeBackend) tick() string {
	f.clock = f.clock.Add(time.Second)
	return f.clock.Format("2006-01-02T15:04:05.000000")
}

func (f *FakeBackend) handleModels(c *fiber.Ctx) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	models := f.Models
	if models == nil {
		models = []string{}
	}
	return c.JSON(models)
}

func (f *FakeBackend) handleLoadModel(c *fiber.Ctx) error {
	var req backend.LoadModelRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.LoadRequests = append(f.LoadRequests, req)

	if req.Model == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No model specified"})
	}
	if !slices.Contains(f.Models, req.Model) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Model file not found"})
	}

	f.loaded = req.Model
	return c.JSON(fiber.Map{"status": "success", "message": "Loaded " + req.Model})
}

func (f *FakeBackend) handleListSessions(c *fiber.Ctx) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	summaries := make([]backend.SessionSummary, 0, len(f.sessions))
	for _, s := range f.sessions {
		summaries = append(summaries, backend.SessionSummary{
			ID:        s.ID,
			Title:     s.Title,
			UpdatedAt: s.UpdatedAt,
		})
	}
	slices.SortFunc(summaries, func(a, b backend.SessionSummary) int {
		return strings.Compare(b.UpdatedAt, a.UpdatedAt)
	})
	return c.JSON(summaries)
}

func (f *FakeBackend) handleGetSession(c *fiber.Ctx) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[c.Params("id")]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	}
	return c.JSON(s)
}

func (f *FakeBackend) handleSaveSession(c *fiber.Ctx) error {
	var req backend.SaveSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ts := f.tick()
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	s, ok := f.sessions[id]
	if !ok {
		s = &backend.Session{ID: id, CreatedAt: ts}
		f.sessions[id] = s
	}
	s.Title = req.Title
	s.History = req.History
	s.UpdatedAt = ts

	return c.JSON(fiber.Map{"id": id, "status": "saved"})
}

func (f *FakeBackend) handleDeleteSession(c *fiber.Ctx) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := c.Params("id")
	if _, ok := f.sessions[id]; !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	}
	delete(f.sessions, id)
	return c.JSON(fiber.Map{"status": "deleted"})
}

func (f *FakeBackend) handleStartDownload(c *fiber.Ctx) error {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.BodyParser(&req); err != nil || req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No URL provided"})
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.download != nil && f.download.Downloading {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Download in progress"})
	}

	name := req.URL[strings.LastIndex(req.URL, "/")+1:]
	if !strings.HasSuffix(name, ".gguf") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "URL must point to a .gguf file"})
	}

	f.download = &backend.DownloadStatus{Downloading: true, Filename: name}
	f.pollCount = 0
	return c.JSON(fiber.Map{"status": "started", "filename": name})
}

func (f *FakeBackend) handleDownloadProgress(c *fiber.Ctx) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.download == nil {
		return c.JSON(backend.DownloadStatus{})
	}

	if len(f.ProgressSteps) > 0 {
		step := f.ProgressSteps[min(f.pollCount, len(f.ProgressSteps)-1)]
		f.pollCount++
		if step.Filename == "" {
			step.Filename = f.download.Filename
		}
		*f.download = step
	}
	return c.JSON(f.download)
}

func (f *FakeBackend) handleChat(c *fiber.Ctx) error {
	var req backend.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	f.mu.Lock()
	f.ChatRequests = append(f.ChatRequests, req)
	failing := f.FailChat
	reply := slices.Clone(f.Reply)
	f.mu.Unlock()

	if failing {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Model not loaded"})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No message provided"})
	}

	if reply == nil {
		reply = []string{
			"echo: " + req.Message,
			"\n\n<|METADATA|>{\"duration\": 0.5, \"tokens\": 4, \"tps\": 8.0}",
		}
	}

	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	return c.SendString(strings.Join(reply, ""))
}
