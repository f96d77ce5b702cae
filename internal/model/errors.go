package model

import (
	"errors"

	"github.com/rotisserie/eris"
)

// Error taxonomy for the analysis session. Components wrap these with
// context; callers classify with eris.Is.
var (
	ErrCapabilityUnavailable = eris.New("capability unavailable")
	ErrAlreadyCapturing      = eris.New("already capturing")
	ErrAlreadyAnalyzing      = eris.New("already analyzing")
	ErrNoArtifact            = eris.New("no artifact")
	ErrServiceUnavailable    = eris.New("service unavailable")
	ErrMalformedResponse     = eris.New("malformed response")
	ErrRecognitionFailed     = eris.New("recognition failed")
	ErrExportFailed          = eris.New("export failed")
)

var userMessages = []struct {
	sentinel error
	msg      string
}{
	{ErrCapabilityUnavailable, "Voice not supported on this device."},
	{ErrAlreadyCapturing, "Already listening."},
	{ErrAlreadyAnalyzing, "An analysis is already running."},
	{ErrNoArtifact, "Add a screenshot or record your voice first."},
	{ErrMalformedResponse, "Aegis Core returned an unreadable verdict."},
	{ErrRecognitionFailed, "Voice recognition failed. Please try again."},
	{ErrExportFailed, "Could not create the safety card."},
}

// UserMessage maps err to the single human-readable message the session
// surfaces. ServiceUnavailable errors carry their own message from the
// gateway, so the wrapped text is shown as-is.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if eris.Is(err, ErrServiceUnavailable) {
		if msg := ServiceMessage(err); msg != "" {
			return msg
		}
		return "Aegis Core disconnected."
	}
	for _, m := range userMessages {
		if eris.Is(err, m.sentinel) {
			return m.msg
		}
	}
	return "Something went wrong"
}

// ServiceError carries the human-readable message of a ServiceUnavailable
// failure alongside the sentinel.
type ServiceError struct {
	Message string
	Status  int
	cause   error
}

// NewServiceError wraps cause (may be nil) as a ServiceUnavailable failure.
func NewServiceError(message string, status int, cause error) error {
	return &ServiceError{Message: message, Status: status, cause: cause}
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the sentinel so eris.Is(err, ErrServiceUnavailable) holds.
func (e *ServiceError) Unwrap() error { return ErrServiceUnavailable }

// Cause returns the transport or HTTP failure behind e, if any.
func (e *ServiceError) Cause() error { return e.cause }

// ServiceMessage extracts the message of the first ServiceError in err's
// chain, or "" when there is none.
func ServiceMessage(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}
