package transcribe

import (
	"errors"
	"fmt"
)

// ErrAudioNotFound is returned when the audio locator does not resolve to a
// readable local file.
var ErrAudioNotFound = errors.New("audio file not found")

// Error is a failed call to the remote API: either a non-2xx response
// (StatusCode and Message set) or a transport failure (Err set).
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: API error (status %d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
