// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     provider
// Description: Transcription and completion collaborator contracts
// License:     MIT
// ============================================================================

package provider

import "context"

// Transcriber converts a recorded audio clip to text
type Transcriber interface {
	// Transcribe sends encoded audio (format is the container name,
	// e.g. "wav") and returns the transcript. The optional prompt
	// biases recognition toward expected vocabulary.
	Transcribe(ctx context.Context, audio []byte, format string, prompt string) (string, error)

	// Close releases resources
	Close() error
}

// Completer runs a single system+user prompt through an LLM
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// EngineState is the on-device engine lifecycle
type EngineState int

const (
	EngineInitialized EngineState = iota
	EngineDownloading
	EngineReady
	EngineError
)

// String returns the string representation of the engine state
func (s EngineState) String() string {
	switch s {
	case EngineInitialized:
		return "initialized"
	case EngineDownloading:
		return "downloading"
	case EngineReady:
		return "ready"
	case EngineError:
		return "error"
	default:
		return "unknown"
	}
}

// Engine is an on-device transcription backend with a model lifecycle.
// Transcribe may only be called once the engine is ready.
type Engine interface {
	// State reports the current lifecycle state
	State() EngineState

	// AwaitReady blocks until the engine is ready or the context ends
	AwaitReady(ctx context.Context) error

	// Transcribe converts 16 kHz mono samples to text
	Transcribe(ctx context.Context, samples []float32) (string, error)

	// Close releases the engine
	Close() error
}
