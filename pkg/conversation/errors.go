package conversation

import "errors"

var (
	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrEmptyHistory is returned when exporting a chat with no turns.
	ErrEmptyHistory = errors.New("conversation has no messages")

	// ErrBinaryFile is returned by Attach for files that are not UTF-8 text.
	ErrBinaryFile = errors.New("file is not valid UTF-8 text")

	// ErrAttachmentTooLarge is returned by Attach for files over
	// MaxAttachmentSize.
	ErrAttachmentTooLarge = errors.New("file is too large to attach")
)
