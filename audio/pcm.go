// Package audio provides PCM codec helpers for the live session and the
// transcription and speech panels: sample conversion, base64 transport
// encoding, fixed-size chunking, resampling, and WAV wrapping.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/LyrebirdAI/console/types"
)

var (
	// ErrEmptyAudioData indicates no audio data was provided.
	ErrEmptyAudioData = errors.New("empty audio data")

	// ErrUnalignedData indicates PCM data is not a whole number of samples.
	ErrUnalignedData = errors.New("PCM data not aligned to sample size")
)

// Wire format constants for the live API.
const (
	// UploadSampleRate is the rate the live API expects for input audio.
	UploadSampleRate = 16000 // Hz

	// PlaybackSampleRate is the rate of model audio output.
	PlaybackSampleRate = 24000 // Hz

	// BitDepth is bits per sample for linear PCM.
	BitDepth = 16

	// Channels is the channel count (mono).
	Channels = 1

	bytesPerSample = BitDepth / 8

	// DefaultFrameDuration is the capture frame length in milliseconds.
	DefaultFrameDuration = 100

	// DefaultFrameSize is bytes per capture frame:
	// 16000 Hz * 0.1 s * 2 bytes/sample = 3200 bytes.
	DefaultFrameSize = (UploadSampleRate * DefaultFrameDuration / 1000) * bytesPerSample
)

// EncodePCM encodes raw PCM audio to base64 for JSON transport.
func EncodePCM(pcm []byte) (string, error) {
	if len(pcm) == 0 {
		return "", ErrEmptyAudioData
	}
	if len(pcm)%bytesPerSample != 0 {
		return "", fmt.Errorf("%w: %d bytes", ErrUnalignedData, len(pcm))
	}
	return base64.StdEncoding.EncodeToString(pcm), nil
}

// DecodePCM decodes base64-encoded audio back to raw PCM.
func DecodePCM(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, ErrEmptyAudioData
	}

	pcm, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 audio: %w", err)
	}
	if len(pcm)%bytesPerSample != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrUnalignedData, len(pcm))
	}

	return pcm, nil
}

// SplitFrames splits PCM data into frames of at most frameSize bytes,
// preserving order. The final frame may be shorter and is marked IsLast.
func SplitFrames(pcm []byte, frameSize int) ([]*types.MediaChunk, error) {
	if len(pcm) == 0 {
		return nil, ErrEmptyAudioData
	}
	if frameSize <= 0 || frameSize%bytesPerSample != 0 {
		return nil, fmt.Errorf("invalid frame size %d", frameSize)
	}

	numFrames := (len(pcm) + frameSize - 1) / frameSize
	frames := make([]*types.MediaChunk, 0, numFrames)

	for i := 0; i < len(pcm); i += frameSize {
		end := min(i+frameSize, len(pcm))
		data := make([]byte, end-i)
		copy(data, pcm[i:end])

		frames = append(frames, &types.MediaChunk{
			Data:        data,
			MimeType:    fmt.Sprintf("audio/pcm;rate=%d", UploadSampleRate),
			SequenceNum: int64(len(frames)),
			IsLast:      end == len(pcm),
		})
	}

	return frames, nil
}

// Int16ToPCM converts int16 samples to little-endian PCM bytes.
func Int16ToPCM(samples []int16) []byte {
	pcm := make([]byte, len(samples)*bytesPerSample)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(pcm[i*bytesPerSample:], uint16(sample))
	}
	return pcm
}

// PCMToInt16 converts little-endian PCM bytes to int16 samples.
func PCMToInt16(pcm []byte) ([]int16, error) {
	if len(pcm)%bytesPerSample != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrUnalignedData, len(pcm))
	}

	samples := make([]int16, len(pcm)/bytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*bytesPerSample:]))
	}
	return samples, nil
}

// Duration returns the play time of PCM data at the given sample rate.
func Duration(pcm []byte, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(len(pcm)/bytesPerSample) / float64(sampleRate)
}

// SineWave generates PCM for a sine wave at the given sample rate.
// Useful for tests and audio path diagnostics.
func SineWave(frequency float64, durationMs int, amplitude float64, sampleRate int) []byte {
	if amplitude > 1.0 {
		amplitude = 1.0
	}

	numSamples := (sampleRate * durationMs) / 1000
	samples := make([]int16, numSamples)

	for i := range numSamples {
		t := float64(i) / float64(sampleRate)
		value := amplitude * math.Sin(2*math.Pi*frequency*t)
		samples[i] = int16(value * math.MaxInt16)
	}

	return Int16ToPCM(samples)
}
