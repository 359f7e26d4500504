package conversation

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// MaxAttachmentSize bounds files accepted by Attach.
const MaxAttachmentSize = 1 << 20

// AttachmentBlock wraps file content in the markers the backend's models
// were prompted with.
func AttachmentBlock(name, content string) string {
	return fmt.Sprintf("\n\n--- Content of %s ---\n%s\n--- End of %s ---\n\n", name, content, name)
}

// Attach reads a text file and returns it as an attachment block to append
// to the next message.
func Attach(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("attaching %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("attaching %s: is a directory", path)
	}
	if info.Size() > MaxAttachmentSize {
		return "", fmt.Errorf("attaching %s: %w", path, ErrAttachmentTooLarge)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("attaching %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("attaching %s: %w", path, ErrBinaryFile)
	}

	return AttachmentBlock(filepath.Base(path), string(data)), nil
}
