// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     vadgate
// Description: Speech/no-speech gate over a streaming voice classifier
// License:     MIT
// ============================================================================

package vadgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/voxkey/voxkey/internal/capture"
	"github.com/voxkey/voxkey/pkg/core/logging"
)

const (
	// ChunkSize is the fixed classifier input length in samples
	ChunkSize = 576

	// GateSampleRate is the rate the classifier expects
	GateSampleRate = 16000

	// DefaultThreshold is the per-chunk speech probability cutoff
	DefaultThreshold = 0.3

	// DefaultMinSpeechRatio passes clips where a short utterance sits
	// amid silence: enough chunks over threshold, even if the mean is low
	DefaultMinSpeechRatio = 0.1

	// stateSize is the classifier recurrent state width
	stateSize = 128
)

// ErrClassifier wraps classifier inference failures so callers can
// distinguish them from I/O errors.
var ErrClassifier = errors.New("voice classifier failed")

// Classifier scores one fixed-size chunk for speech. Recurrent state is
// threaded by the caller: both slices are zeroed at clip start and the
// returned state feeds the next chunk.
type Classifier interface {
	Step(chunk []float32, hidden, cell []float32) (prob float32, newHidden, newCell []float32, err error)
}

// Config holds gate configuration
type Config struct {
	Threshold      float32
	MinSpeechRatio float32
}

// DefaultConfig returns default gate configuration
func DefaultConfig() Config {
	return Config{
		Threshold:      DefaultThreshold,
		MinSpeechRatio: DefaultMinSpeechRatio,
	}
}

// Gate decides whether a completed clip contains speech
type Gate struct {
	cfg        Config
	classifier Classifier
	logger     *logging.Logger
}

// New creates a gate over the given classifier
func New(cfg Config, classifier Classifier, logger *logging.Logger) *Gate {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MinSpeechRatio == 0 {
		cfg.MinSpeechRatio = DefaultMinSpeechRatio
	}
	return &Gate{cfg: cfg, classifier: classifier, logger: logger}
}

// HasSpeech decodes the clip file and evaluates it for speech
func (g *Gate) HasSpeech(ctx context.Context, clipPath string) (bool, error) {
	samples, rate, err := capture.DecodeWavFile(clipPath)
	if err != nil {
		return false, fmt.Errorf("failed to decode clip: %w", err)
	}
	return g.HasSpeechSamples(ctx, samples, rate)
}

// HasSpeechSamples evaluates raw samples at the given rate. The clip is
// resampled to 16kHz mono, chunked, and each chunk scored; the decision
// is mean(probs) >= threshold OR ratio(probs >= threshold) >= minRatio.
func (g *Gate) HasSpeechSamples(ctx context.Context, samples []float32, sampleRate int) (bool, error) {
	if len(samples) == 0 {
		return false, nil
	}

	if sampleRate != GateSampleRate {
		resampled, err := resampleTo16k(samples, sampleRate)
		if err != nil {
			return false, fmt.Errorf("%w: resample: %v", ErrClassifier, err)
		}
		samples = resampled
	}

	probs, err := g.chunkProbabilities(ctx, samples)
	if err != nil {
		return false, err
	}

	speech := Decide(probs, g.cfg.Threshold, g.cfg.MinSpeechRatio)
	g.logger.Debug("Gate evaluated clip",
		"chunks", len(probs), "speech", speech, "threshold", g.cfg.Threshold)
	return speech, nil
}

// chunkProbabilities runs the classifier over fixed-size chunks,
// threading the recurrent state and zero-padding the final chunk.
func (g *Gate) chunkProbabilities(ctx context.Context, samples []float32) ([]float32, error) {
	hidden := make([]float32, stateSize)
	cell := make([]float32, stateSize)

	var probs []float32
	for off := 0; off < len(samples); off += ChunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := off + ChunkSize
		var chunk []float32
		if end <= len(samples) {
			chunk = samples[off:end]
		} else {
			chunk = make([]float32, ChunkSize)
			copy(chunk, samples[off:])
		}

		prob, h, c, err := g.classifier.Step(chunk, hidden, cell)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrClassifier, err)
		}
		hidden, cell = h, c
		probs = append(probs, prob)
	}

	return probs, nil
}

// Decide applies the gate decision rule to per-chunk probabilities
func Decide(probs []float32, threshold, minSpeechRatio float32) bool {
	if len(probs) == 0 {
		return false
	}

	var sum float32
	over := 0
	for _, p := range probs {
		sum += p
		if p >= threshold {
			over++
		}
	}

	mean := sum / float32(len(probs))
	ratio := float32(over) / float32(len(probs))
	return mean >= threshold || ratio >= minSpeechRatio
}
