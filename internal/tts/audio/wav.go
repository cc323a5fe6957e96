// Package audio provides the PCM buffer model, WAV codec, and waveform
// concatenation used to stitch per-chunk synthesis results into one clip.
//
// The encoder emits the canonical 44-byte RIFF/WAVE container with 16-bit
// little-endian interleaved PCM, which is the one bit-exact external contract
// of the pipeline: the output must play in any standard audio player.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// WAV container constants.
const (
	riffHeaderSize = 44
	fmtChunkSize   = 16
	pcmFormatTag   = 1
	bitsPerSample  = 16
	bytesPerSample = 2
)

// Static errors.
var (
	ErrNoBuffers          = errors.New("no audio buffers to combine")
	ErrEmptyBuffer        = errors.New("audio buffer holds no samples")
	ErrNotWAV             = errors.New("data is not a RIFF/WAVE container")
	ErrUnsupportedFormat  = errors.New("unsupported WAV format: expected 16-bit PCM")
	ErrMalformedContainer = errors.New("malformed WAV container")
)

// Buffer is an in-memory PCM representation of one audio clip. Samples holds
// one slice per channel; every channel slice has the same length. Sample
// values are normalized floats in [-1, 1].
type Buffer struct {
	SampleRate int
	Channels   int
	Samples    [][]float64
}

// FrameCount returns the number of per-channel samples in the buffer.
func (b *Buffer) FrameCount() int {
	if len(b.Samples) == 0 {
		return 0
	}

	return len(b.Samples[0])
}

// Duration returns the playback length of the buffer in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}

	return float64(b.FrameCount()) / float64(b.SampleRate)
}

// DecodeWAV parses a RIFF/WAVE container holding 16-bit PCM and returns its
// contents as a normalized Buffer. Unknown chunks (LIST, fact, cue) are
// skipped; only the fmt and data chunks are interpreted.
func DecodeWAV(data []byte) (*Buffer, error) {
	if len(data) < riffHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrNotWAV, len(data))
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		sampleRate int
		channels   int
		pcm        []byte
		haveFmt    bool
	)

	// Walk the chunk list after the 12-byte RIFF/WAVE preamble.
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		if body+chunkSize > len(data) {
			return nil, fmt.Errorf(
				"%w: chunk %q overruns container", ErrMalformedContainer, chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < fmtChunkSize {
				return nil, fmt.Errorf(
					"%w: fmt chunk too small (%d bytes)", ErrMalformedContainer, chunkSize)
			}

			formatTag := binary.LittleEndian.Uint16(data[body : body+2])
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])

			if formatTag != pcmFormatTag || bits != bitsPerSample {
				return nil, fmt.Errorf(
					"%w: format tag %d, %d bits", ErrUnsupportedFormat, formatTag, bits)
			}

			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			haveFmt = true
		case "data":
			pcm = data[body : body+chunkSize]
		}

		// Chunks are word-aligned; odd sizes carry a pad byte.
		offset = body + chunkSize + chunkSize%2
	}

	if !haveFmt || pcm == nil {
		return nil, fmt.Errorf("%w: missing fmt or data chunk", ErrMalformedContainer)
	}

	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf(
			"%w: %d channels at %d Hz", ErrMalformedContainer, channels, sampleRate)
	}

	return pcmToBuffer(pcm, sampleRate, channels), nil
}

// pcmToBuffer de-interleaves 16-bit little-endian PCM into per-channel
// normalized float samples.
func pcmToBuffer(pcm []byte, sampleRate, channels int) *Buffer {
	frameBytes := bytesPerSample * channels
	frames := len(pcm) / frameBytes

	samples := make([][]float64, channels)
	for channel := range samples {
		samples[channel] = make([]float64, frames)
	}

	for frame := range frames {
		base := frame * frameBytes
		for channel := range channels {
			index := base + channel*bytesPerSample
			value := int16(binary.LittleEndian.Uint16(pcm[index : index+2]))
			samples[channel][frame] = float64(value) / 32768.0
		}
	}

	return &Buffer{
		SampleRate: sampleRate,
		Channels:   channels,
		Samples:    samples,
	}
}

// Concat produces a single buffer whose sample sequence is the channel-wise
// concatenation of the inputs in order. The first buffer fixes the target
// channel count and sample rate; buffers that disagree on either are skipped
// entirely rather than resampled. The skipped indices are returned so the
// caller can log the degradation. An empty input, or inputs whose every
// buffer was skipped or empty, is an error.
func Concat(buffers []*Buffer) (*Buffer, []int, error) {
	if len(buffers) == 0 {
		return nil, nil, ErrNoBuffers
	}

	target := buffers[0]

	var (
		skipped     []int
		totalFrames int
	)

	kept := make([]*Buffer, 0, len(buffers))

	for i, buffer := range buffers {
		if buffer.Channels != target.Channels || buffer.SampleRate != target.SampleRate {
			skipped = append(skipped, i)

			continue
		}

		kept = append(kept, buffer)
		totalFrames += buffer.FrameCount()
	}

	if totalFrames == 0 {
		return nil, skipped, fmt.Errorf("%w: all buffers skipped or empty", ErrNoBuffers)
	}

	samples := make([][]float64, target.Channels)
	for channel := range samples {
		samples[channel] = make([]float64, 0, totalFrames)
		for _, buffer := range kept {
			samples[channel] = append(samples[channel], buffer.Samples[channel]...)
		}
	}

	combined := &Buffer{
		SampleRate: target.SampleRate,
		Channels:   target.Channels,
		Samples:    samples,
	}

	return combined, skipped, nil
}

// EncodeWAV serializes the buffer into a complete RIFF/WAVE container with a
// 16-byte fmt chunk (PCM) and 16-bit little-endian interleaved samples.
// Samples outside [-1, 1] are clamped. A buffer with no samples is an error;
// a single short buffer still receives the full 44-byte header.
func EncodeWAV(buffer *Buffer) ([]byte, error) {
	if buffer == nil || buffer.Channels <= 0 || buffer.FrameCount() == 0 {
		return nil, ErrEmptyBuffer
	}

	frames := buffer.FrameCount()
	blockAlign := bytesPerSample * buffer.Channels
	dataSize := frames * blockAlign
	byteRate := buffer.SampleRate * blockAlign

	out := make([]byte, riffHeaderSize+dataSize)

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataSize))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], fmtChunkSize)
	binary.LittleEndian.PutUint16(out[20:22], pcmFormatTag)
	binary.LittleEndian.PutUint16(out[22:24], uint16(buffer.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(buffer.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))

	for frame := range frames {
		base := riffHeaderSize + frame*blockAlign
		for channel := range buffer.Channels {
			value := sampleToInt16(buffer.Samples[channel][frame])
			index := base + channel*bytesPerSample
			binary.LittleEndian.PutUint16(out[index:index+2], uint16(value))
		}
	}

	return out, nil
}

// sampleToInt16 clamps a normalized sample and scales it to int16 range.
func sampleToInt16(sample float64) int16 {
	clamped := math.Max(-1.0, math.Min(1.0, sample))

	return int16(clamped * math.MaxInt16)
}
