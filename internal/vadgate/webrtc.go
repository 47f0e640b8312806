// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     vadgate
// Description: WebRTC VAD classifier adapter
// License:     MIT
// ============================================================================

package vadgate

import (
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// webrtcFrameSize is 10ms at the gate sample rate, the smallest frame
// the WebRTC VAD accepts.
const webrtcFrameSize = GateSampleRate / 100

// WebRTCClassifier adapts the frame-based WebRTC VAD to the streaming
// Classifier contract. The detector is stateless, so the recurrent state
// passes through untouched and probabilities are binary.
type WebRTCClassifier struct {
	vad  *webrtcvad.VAD
	mode int
}

// NewWebRTCClassifier creates a classifier with the given aggressiveness
// mode (0-3, higher filters more non-speech).
func NewWebRTCClassifier(mode int) (*WebRTCClassifier, error) {
	vad, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create WebRTC VAD: %w", err)
	}

	if mode < 0 {
		mode = 0
	}
	if mode > 3 {
		mode = 3
	}
	if err := vad.SetMode(mode); err != nil {
		return nil, fmt.Errorf("failed to set VAD mode: %w", err)
	}

	return &WebRTCClassifier{vad: vad, mode: mode}, nil
}

// Step scores one chunk. Any speech-positive 10ms frame inside the chunk
// marks the whole chunk as speech.
func (w *WebRTCClassifier) Step(chunk []float32, hidden, cell []float32) (float32, []float32, []float32, error) {
	int16Samples := make([]int16, len(chunk))
	for i, s := range chunk {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		int16Samples[i] = int16(s * 32767)
	}

	for off := 0; off+webrtcFrameSize <= len(int16Samples); off += webrtcFrameSize {
		frame := int16ToBytes(int16Samples[off : off+webrtcFrameSize])
		active, err := w.vad.Process(GateSampleRate, frame)
		if err != nil {
			return 0, hidden, cell, fmt.Errorf("VAD processing failed: %w", err)
		}
		if active {
			return 1.0, hidden, cell, nil
		}
	}

	return 0.0, hidden, cell, nil
}

// Mode returns the aggressiveness mode
func (w *WebRTCClassifier) Mode() int {
	return w.mode
}

// int16ToBytes converts int16 samples to little-endian bytes
func int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}
