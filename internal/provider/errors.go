// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     provider
// Description: Session error taxonomy
// License:     MIT
// ============================================================================

package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors checked with errors.Is across the session pipeline
var (
	// ErrCaptureFailure means the audio hardware stream could not be
	// started or read
	ErrCaptureFailure = errors.New("audio capture failed")

	// ErrClipTooShort means the recorded clip fell below the minimum
	// duration/size and was discarded silently
	ErrClipTooShort = errors.New("clip too short")

	// ErrQuotaExceeded means the account quota check rejected the
	// session before transcription
	ErrQuotaExceeded = errors.New("transcription quota exceeded")

	// ErrNoSpeechDetected means the voice-activity gate found no
	// speech in the clip; a silent discard, not a failure
	ErrNoSpeechDetected = errors.New("no speech detected")

	// ErrMissingCredential means the selected provider has no API key
	// configured
	ErrMissingCredential = errors.New("missing provider credential")

	// ErrPermissionDenied means an OS permission (input injection,
	// accessibility) is unavailable
	ErrPermissionDenied = errors.New("permission denied")

	// ErrEngineNotReady means the on-device engine has not finished
	// its model download/initialization
	ErrEngineNotReady = errors.New("engine not ready")
)

// Error is a failure reported by a remote provider, carrying the HTTP
// status so callers can distinguish auth, quota, and server faults.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider error (status %d): %s", e.Status, e.Message)
}

// Is maps well-known statuses onto the sentinel taxonomy so callers
// can use errors.Is without unwrapping to *Error first.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrQuotaExceeded:
		return e.Status == http.StatusTooManyRequests || e.Status == http.StatusPaymentRequired
	case ErrMissingCredential:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}

// statusError builds the typed error for a non-2xx provider response
func statusError(status int, body []byte) error {
	return &Error{Status: status, Message: string(body)}
}
