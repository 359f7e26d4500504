package stream

import (
	"context"
	"io"
	"unicode/utf8"
)

const defaultReadSize = 4096

// Source delivers reply chunks in order. Next returns io.EOF once the
// stream has ended; a chunk may accompany any returned error and is still
// part of the reply.
type Source interface {
	Next(ctx context.Context) (string, error)
}

// ReaderSource splits an io.Reader into text chunks, one per Read. A UTF-8
// sequence split across two reads is held back until it is complete so no
// chunk ever ends in half a rune.
type ReaderSource struct {
	r     io.Reader
	buf   []byte
	carry []byte
}

// NewReaderSource returns a Source reading from r. Cancelling the context
// passed to Next does not interrupt a Read already in progress; callers that
// need that close r when the context is done.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{
		r:   r,
		buf: make([]byte, defaultReadSize),
	}
}

func (s *ReaderSource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	n, err := s.r.Read(s.buf)

	data := make([]byte, 0, len(s.carry)+n)
	data = append(data, s.carry...)
	data = append(data, s.buf[:n]...)
	s.carry = nil

	if err == nil {
		cut := completePrefix(data)
		if cut < len(data) {
			s.carry = append([]byte(nil), data[cut:]...)
			data = data[:cut]
		}
	}

	return string(data), err
}

// completePrefix returns the length of the longest prefix of b that does not
// end inside a multi-byte UTF-8 sequence.
func completePrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}

// SliceSource replays a fixed list of chunks, then io.EOF.
type SliceSource struct {
	chunks []string
	pos    int
}

func NewSliceSource(chunks ...string) *SliceSource {
	return &SliceSource{chunks: chunks}
}

func (s *SliceSource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.pos >= len(s.chunks) {
		return "", io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}
