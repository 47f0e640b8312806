// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     vadgate
// Description: Clip resampling to the classifier rate
// License:     MIT
// ============================================================================

package vadgate

import (
	"bytes"
	"encoding/binary"
	"fmt"

	soxr "github.com/zaf/resample"
)

// resampleTo16k converts mono samples at an arbitrary rate to 16kHz
func resampleTo16k(samples []float32, sampleRate int) ([]float32, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if sampleRate == GateSampleRate {
		return samples, nil
	}

	in := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		binary.LittleEndian.PutUint16(in[i*2:], uint16(int16(s*32767)))
	}

	var out bytes.Buffer
	res, err := soxr.New(&out, float64(sampleRate), float64(GateSampleRate), 1, soxr.I16, soxr.HighQ)
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	if _, err := res.Write(in); err != nil {
		res.Close()
		return nil, fmt.Errorf("resampler write failed: %w", err)
	}
	// Close flushes the final output samples.
	if err := res.Close(); err != nil {
		return nil, fmt.Errorf("resampler close failed: %w", err)
	}

	data := out.Bytes()
	resampled := make([]float32, len(data)/2)
	for i := range resampled {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		resampled[i] = float32(v) / 32768.0
	}
	return resampled, nil
}
