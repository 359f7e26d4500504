package backend

import "time"

// Turn is one user message and the assistant reply it produced.
type Turn struct {
	User string `json:"user"`
	Bot  string `json:"bot"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message      string  `json:"message"`
	History      []Turn  `json:"history"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"top_p"`
	SystemPrompt string  `json:"system_prompt"`
}

// LoadModelRequest is the body of POST /api/load_model.
type LoadModelRequest struct {
	Model      string `json:"model"`
	NCtx       int    `json:"n_ctx"`
	NGPULayers int    `json:"n_gpu_layers"`
}

// SessionSummary is one entry of GET /api/sessions.
type SessionSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	UpdatedAt string `json:"updated_at"`
}

// Updated parses UpdatedAt. The backend writes ISO 8601 timestamps without a
// zone; the zero time is returned when the value does not parse.
func (s SessionSummary) Updated() time.Time {
	return parseTimestamp(s.UpdatedAt)
}

// Session is a stored conversation.
type Session struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	History   []Turn `json:"history"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// SaveSessionRequest is the body of POST /api/sessions. An empty ID asks the
// backend to assign one.
type SaveSessionRequest struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	History []Turn `json:"history"`
}

// DownloadStatus is the backend's single download job.
type DownloadStatus struct {
	Downloading bool   `json:"downloading"`
	Progress    int    `json:"progress"`
	Filename    string `json:"filename"`
	Error       string `json:"error"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type saveSessionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type downloadRequest struct {
	URL string `json:"url"`
}

type downloadResponse struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseTimestamp(v string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
