// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     capture
// Description: Streaming WAV file writer and PCM decoder
// License:     MIT
// ============================================================================

package capture

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const wavHeaderSize = 44

// WavWriter writes 16-bit PCM WAV incrementally. Samples are buffered
// so per-callback writes do not block on disk I/O; the RIFF size fields
// are patched when the writer is closed.
type WavWriter struct {
	file       *os.File
	buf        *bufio.Writer
	sampleRate int
	channels   int
	dataBytes  uint32
	closed     bool
}

// NewWavWriter creates a WAV file at path and writes a placeholder header
func NewWavWriter(path string, sampleRate, channels int) (*WavWriter, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid wav parameters: rate=%d channels=%d", sampleRate, channels)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create wav file: %w", err)
	}

	w := &WavWriter{
		file:       file,
		buf:        bufio.NewWriterSize(file, 64*1024),
		sampleRate: sampleRate,
		channels:   channels,
	}

	if err := w.writeHeader(0); err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}

	return w, nil
}

// WriteSamples appends float32 samples as 16-bit little-endian PCM
func (w *WavWriter) WriteSamples(samples []float32) error {
	if w.closed {
		return fmt.Errorf("wav writer is closed")
	}

	for _, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(s * 32767)
		if err := w.buf.WriteByte(byte(v)); err != nil {
			return fmt.Errorf("failed to write sample: %w", err)
		}
		if err := w.buf.WriteByte(byte(v >> 8)); err != nil {
			return fmt.Errorf("failed to write sample: %w", err)
		}
	}

	w.dataBytes += uint32(len(samples) * 2)
	return nil
}

// Size returns the number of data bytes written so far
func (w *WavWriter) Size() int64 {
	return int64(w.dataBytes) + wavHeaderSize
}

// Close flushes buffered samples and patches the RIFF header sizes
func (w *WavWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush wav data: %w", err)
	}

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to seek wav header: %w", err)
	}
	if err := w.writeHeaderTo(w.file, w.dataBytes); err != nil {
		w.file.Close()
		return err
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close wav file: %w", err)
	}
	return nil
}

func (w *WavWriter) writeHeader(dataSize uint32) error {
	return w.writeHeaderTo(w.buf, dataSize)
}

func (w *WavWriter) writeHeaderTo(out io.Writer, dataSize uint32) error {
	numChannels := uint16(w.channels)
	sampleRate := uint32(w.sampleRate)
	bitsPerSample := uint16(16)
	byteRate := sampleRate * uint32(numChannels) * uint32(bitsPerSample) / 8
	blockAlign := numChannels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16)) // chunk size
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // PCM
	binary.Write(&buf, binary.LittleEndian, numChannels)
	binary.Write(&buf, binary.LittleEndian, sampleRate)
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, bitsPerSample)

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)

	if _, err := out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write wav header: %w", err)
	}
	return nil
}

// EncodeWav converts float32 samples to a complete in-memory WAV file
func EncodeWav(samples []float32, sampleRate int) []byte {
	var buf bytes.Buffer

	numChannels := uint16(1)
	rate := uint32(sampleRate)
	bitsPerSample := uint16(16)
	byteRate := rate * uint32(numChannels) * uint32(bitsPerSample) / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataSize := uint32(len(samples) * 2)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, numChannels)
	binary.Write(&buf, binary.LittleEndian, rate)
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, bitsPerSample)

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)

	for _, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		binary.Write(&buf, binary.LittleEndian, int16(s*32767))
	}

	return buf.Bytes()
}

// DecodeWav parses a 16-bit PCM WAV file into float32 samples. Stereo
// input is mixed down to mono.
func DecodeWav(data []byte) ([]float32, int, error) {
	if len(data) < wavHeaderSize {
		return nil, 0, fmt.Errorf("wav data too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		pcm           []byte
	)

	// Walk the chunk list; fmt must precede data.
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, 0, fmt.Errorf("unsupported wav format %d, want PCM", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+size]
		}

		// Chunks are word-aligned.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if sampleRate == 0 || channels == 0 {
		return nil, 0, fmt.Errorf("missing fmt chunk")
	}
	if bitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d, want 16", bitsPerSample)
	}
	if pcm == nil {
		return nil, 0, fmt.Errorf("missing data chunk")
	}

	frameCount := len(pcm) / (2 * channels)
	samples := make([]float32, frameCount)
	for i := 0; i < frameCount; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * 2
			v := int16(binary.LittleEndian.Uint16(pcm[off : off+2]))
			sum += float32(v) / 32768.0
		}
		samples[i] = sum / float32(channels)
	}

	return samples, sampleRate, nil
}

// DecodeWavFile reads and decodes a WAV file from disk
func DecodeWavFile(path string) ([]float32, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read wav file: %w", err)
	}
	return DecodeWav(data)
}
