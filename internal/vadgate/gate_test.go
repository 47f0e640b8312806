// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     vadgate
// Description: Tests for the voice-activity gate
// License:     MIT
// ============================================================================

package vadgate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/voxkey/voxkey/internal/capture"
	"github.com/voxkey/voxkey/pkg/core/logging"
)

// scriptedClassifier returns a fixed probability sequence and records
// the state passed between steps.
type scriptedClassifier struct {
	probs     []float32
	step      int
	chunkLens []int
	gotStates [][]float32
	failAt    int // step index to fail at, -1 = never
}

func newScripted(probs ...float32) *scriptedClassifier {
	return &scriptedClassifier{probs: probs, failAt: -1}
}

func (s *scriptedClassifier) Step(chunk []float32, hidden, cell []float32) (float32, []float32, []float32, error) {
	if s.failAt >= 0 && s.step == s.failAt {
		return 0, hidden, cell, errors.New("inference blew up")
	}

	s.chunkLens = append(s.chunkLens, len(chunk))
	s.gotStates = append(s.gotStates, append([]float32{}, hidden...))

	prob := float32(0)
	if s.step < len(s.probs) {
		prob = s.probs[s.step]
	}
	s.step++

	// Mutate the state so threading is observable.
	nh := append([]float32{}, hidden...)
	if len(nh) > 0 {
		nh[0] = float32(s.step)
	}
	return prob, nh, cell, nil
}

func testLogger() *logging.Logger {
	return logging.NewWithConfig(logging.Config{Name: "test", Level: logging.LevelError})
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name  string
		probs []float32
		want  bool
	}{
		{"empty", nil, false},
		{"all silence", []float32{0, 0, 0, 0}, false},
		{"all speech", []float32{1, 1, 1, 1}, true},
		// Mean passes, ratio fails is impossible (mean>=t implies some
		// chunk >= t), but ratio-only must pass: one loud chunk in ten
		// keeps the mean at 0.1 < 0.3 while the ratio hits exactly 0.1.
		{"short loud utterance", []float32{1, 0, 0, 0, 0, 0, 0, 0, 0, 0}, true},
		// Below both disjuncts: one chunk at 0.29 never crosses threshold.
		{"sub-threshold energy", []float32{0.29, 0.29, 0.29, 0.29}, false},
		// Mean 0.3 exactly meets the threshold.
		{"mean at threshold", []float32{0.3, 0.3, 0.3, 0.3}, true},
		// Ratio just under 0.1 with negligible mean.
		{"ratio under minimum", []float32{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.probs, 0.3, 0.1); got != tt.want {
				t.Errorf("Decide(%v) = %v, want %v", tt.probs, got, tt.want)
			}
		})
	}
}

func TestHasSpeechSamplesChunking(t *testing.T) {
	cls := newScripted(1, 1, 1)
	gate := New(DefaultConfig(), cls, testLogger())

	// 1300 samples at 16kHz: two full chunks and one padded partial.
	samples := make([]float32, 1300)
	ok, err := gate.HasSpeechSamples(context.Background(), samples, GateSampleRate)
	if err != nil {
		t.Fatalf("HasSpeechSamples() error = %v", err)
	}
	if !ok {
		t.Error("all-speech probabilities should pass the gate")
	}

	if len(cls.chunkLens) != 3 {
		t.Fatalf("classifier saw %d chunks, want 3", len(cls.chunkLens))
	}
	for i, n := range cls.chunkLens {
		if n != ChunkSize {
			t.Errorf("chunk %d length = %v, want %v (partial must be padded)", i, n, ChunkSize)
		}
	}
}

func TestHasSpeechSamplesStateThreading(t *testing.T) {
	cls := newScripted(0, 0, 0)
	gate := New(DefaultConfig(), cls, testLogger())

	samples := make([]float32, ChunkSize*3)
	if _, err := gate.HasSpeechSamples(context.Background(), samples, GateSampleRate); err != nil {
		t.Fatal(err)
	}

	// First step sees zeroed state; later steps see the previous output.
	if cls.gotStates[0][0] != 0 {
		t.Errorf("first chunk hidden[0] = %v, want 0 (state reset per clip)", cls.gotStates[0][0])
	}
	if cls.gotStates[1][0] != 1 {
		t.Errorf("second chunk hidden[0] = %v, want 1 (state threaded)", cls.gotStates[1][0])
	}
	if cls.gotStates[2][0] != 2 {
		t.Errorf("third chunk hidden[0] = %v, want 2 (state threaded)", cls.gotStates[2][0])
	}
}

func TestHasSpeechSamplesSilence(t *testing.T) {
	cls := newScripted(0, 0, 0, 0)
	gate := New(DefaultConfig(), cls, testLogger())

	samples := make([]float32, ChunkSize*4)
	ok, err := gate.HasSpeechSamples(context.Background(), samples, GateSampleRate)
	if err != nil {
		t.Fatalf("HasSpeechSamples() error = %v", err)
	}
	if ok {
		t.Error("pure silence should not pass the gate")
	}
}

func TestHasSpeechClassifierError(t *testing.T) {
	cls := newScripted(1, 1, 1)
	cls.failAt = 1
	gate := New(DefaultConfig(), cls, testLogger())

	samples := make([]float32, ChunkSize*3)
	_, err := gate.HasSpeechSamples(context.Background(), samples, GateSampleRate)
	if !errors.Is(err, ErrClassifier) {
		t.Errorf("error = %v, want ErrClassifier", err)
	}
}

func TestHasSpeechEmptyClip(t *testing.T) {
	gate := New(DefaultConfig(), newScripted(), testLogger())

	ok, err := gate.HasSpeechSamples(context.Background(), nil, GateSampleRate)
	if err != nil {
		t.Fatalf("HasSpeechSamples() error = %v", err)
	}
	if ok {
		t.Error("empty clip should not pass the gate")
	}
}

func TestHasSpeechFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "clip.wav")

	samples := make([]float32, ChunkSize*2)
	if err := os.WriteFile(path, capture.EncodeWav(samples, GateSampleRate), 0644); err != nil {
		t.Fatal(err)
	}

	cls := newScripted(1, 1)
	gate := New(DefaultConfig(), cls, testLogger())

	ok, err := gate.HasSpeech(context.Background(), path)
	if err != nil {
		t.Fatalf("HasSpeech() error = %v", err)
	}
	if !ok {
		t.Error("scripted speech clip should pass")
	}
}

func TestHasSpeechMissingFile(t *testing.T) {
	gate := New(DefaultConfig(), newScripted(), testLogger())
	if _, err := gate.HasSpeech(context.Background(), "/nonexistent/clip.wav"); err == nil {
		t.Error("expected error for missing clip file")
	}
}

func TestHasSpeechCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gate := New(DefaultConfig(), newScripted(1), testLogger())
	samples := make([]float32, ChunkSize)
	if _, err := gate.HasSpeechSamples(ctx, samples, GateSampleRate); err == nil {
		t.Error("expected context error after cancellation")
	}
}
