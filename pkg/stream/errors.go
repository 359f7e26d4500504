package stream

import "errors"

// ErrConsumed is returned when Consume is called on a Consumer that has
// already run.
var ErrConsumed = errors.New("stream consumer already used")

// TransportError reports that the reply stream could not be opened or read.
// It is distinct from cancellation, which is not an error.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "reply transport failed"
	}
	return "reply transport failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
