// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     analyzer
// Description: FFT-based frequency band and level analysis for live audio
// License:     MIT
// ============================================================================

package analyzer

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// NumBands is the number of frequency bands reported per frame
	NumBands = 14

	// fftSize is the analysis window length in samples
	fftSize = 2048

	// minFreq and maxFreq bound the voice-relevant part of the spectrum
	minFreq = 50.0
	maxFreq = 2400.0

	// noiseFloor is subtracted from each band magnitude before scaling
	noiseFloor = 0.005

	// gain scales floor-subtracted magnitudes into the [0,1] range
	gain = 8.0

	// attackBlend and decayBlend control asymmetric smoothing: rising
	// values blend mostly toward the new value, falling values mostly
	// toward the old one
	attackBlend = 0.9
	decayBlend  = 0.4

	// levelPeakPos is the relative band position with the highest weight
	// in the scalar level, emphasizing speech-formant energy
	levelPeakPos = 0.45

	// levelWeightFloor is the minimum weight for any band
	levelWeightFloor = 0.3
)

// Frame is the per-callback analysis output: a scalar level and the
// smoothed per-band magnitudes, all in [0,1].
type Frame struct {
	Level float32
	Bands [NumBands]float32
}

// Analyzer converts raw PCM buffers into smoothed band energies. The
// mapping from buffer to output depends on the previous call: each band
// is exponentially smoothed against its prior value.
type Analyzer struct {
	mu       sync.Mutex
	fft      *fourier.FFT
	window   []float64
	windowed []float64
	coeffs   []complex128
	smoothed [NumBands]float64
	weights  [NumBands]float64
}

// New creates an analyzer with precomputed Hann window and band weights
func New() *Analyzer {
	a := &Analyzer{
		fft:      fourier.NewFFT(fftSize),
		window:   make([]float64, fftSize),
		windowed: make([]float64, fftSize),
		coeffs:   make([]complex128, fftSize/2+1),
	}

	for i := range a.window {
		a.window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}

	for i := 0; i < NumBands; i++ {
		rel := float64(i) / float64(NumBands-1)
		w := 1.0 - math.Abs(rel-levelPeakPos)*2.0
		if w < levelWeightFloor {
			w = levelWeightFloor
		}
		a.weights[i] = w
	}

	return a
}

// Analyze computes the smoothed band frame for one PCM buffer. A nil,
// empty, or non-finite buffer yields the all-zero frame; Analyze never
// panics.
func (a *Analyzer) Analyze(buf []float32, sampleRate float64) Frame {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(buf) == 0 || sampleRate <= 0 {
		return Frame{}
	}

	// Use the newest fftSize samples, zero-padding short buffers.
	start := 0
	if len(buf) > fftSize {
		start = len(buf) - fftSize
	}
	n := len(buf) - start

	for i := 0; i < n; i++ {
		s := float64(buf[start+i])
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return Frame{}
		}
		a.windowed[i] = s * a.window[i]
	}
	for i := n; i < fftSize; i++ {
		a.windowed[i] = 0
	}

	a.fft.Coefficients(a.coeffs, a.windowed)

	raw := a.bandMagnitudes(sampleRate)

	var frame Frame
	var weightedSum, weightTotal float64
	for i := 0; i < NumBands; i++ {
		prev := a.smoothed[i]
		blend := decayBlend
		if raw[i] > prev {
			blend = attackBlend
		}
		v := prev + blend*(raw[i]-prev)
		a.smoothed[i] = v

		frame.Bands[i] = float32(v)
		weightedSum += v * a.weights[i]
		weightTotal += a.weights[i]
	}

	frame.Level = float32(weightedSum / weightTotal)
	return frame
}

// bandMagnitudes averages spectrum magnitude over NumBands equal-width
// groups of the voice sub-band, applies the noise floor and gain, and
// clamps to [0,1].
func (a *Analyzer) bandMagnitudes(sampleRate float64) [NumBands]float64 {
	var bands [NumBands]float64

	binWidth := sampleRate / float64(fftSize)
	bandWidth := (maxFreq - minFreq) / float64(NumBands)

	for i := 0; i < NumBands; i++ {
		lo := minFreq + float64(i)*bandWidth
		hi := lo + bandWidth

		loBin := int(math.Ceil(lo / binWidth))
		hiBin := int(math.Floor(hi / binWidth))
		if hiBin >= len(a.coeffs) {
			hiBin = len(a.coeffs) - 1
		}
		if loBin > hiBin {
			continue
		}

		var sum float64
		for b := loBin; b <= hiBin; b++ {
			// Amplitude-normalized magnitude.
			sum += cmplxAbs(a.coeffs[b]) * 2.0 / fftSize
		}
		mag := sum / float64(hiBin-loBin+1)

		mag = (mag - noiseFloor) * gain
		if mag < 0 {
			mag = 0
		}
		if mag > 1 {
			mag = 1
		}
		bands[i] = mag
	}

	return bands
}

// Reset clears the smoothing state
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.smoothed = [NumBands]float64{}
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
