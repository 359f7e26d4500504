package download

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

var (
	// ErrEmptyURL is returned for a blank model URL.
	ErrEmptyURL = errors.New("no URL provided")

	// ErrNotGGUF is returned when the URL does not name a .gguf file.
	ErrNotGGUF = errors.New("URL must point to a .gguf file")
)

// NormalizeURL validates a model URL and returns it with Hugging Face
// "/blob/" page links rewritten to "/resolve/" download links, along with
// the file name the backend will store it under.
func NormalizeURL(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", ErrEmptyURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parsing model URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", fmt.Errorf("parsing model URL: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", "", errors.New("parsing model URL: missing host")
	}

	if strings.Contains(u.Host, "huggingface.co") && strings.Contains(u.Path, "/blob/") {
		u.Path = strings.ReplaceAll(u.Path, "/blob/", "/resolve/")
		u.RawPath = ""
	}

	name := path.Base(u.Path)
	if !strings.HasSuffix(name, ".gguf") {
		return "", "", ErrNotGGUF
	}

	return u.String(), name, nil
}
