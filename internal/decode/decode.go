// SPDX-License-Identifier: MIT

// Package decode loads local audio files into mono float32 tracks.
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lumen/internal/log"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

var logger = log.Component("decode")

// ErrUnsupportedFormat is returned for files that are neither WAV nor MP3.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Track is a fully decoded, mono, normalized audio file.
type Track struct {
	Name       string
	SampleRate int
	Channels   int       // Channel count of the source before downmix.
	Samples    []float32 // Mono samples in [-1, 1].
	Duration   time.Duration
}

// FromSamples wraps already decoded mono samples in a Track.
func FromSamples(name string, sampleRate int, samples []float32) *Track {
	t := &Track{Name: name, SampleRate: sampleRate, Channels: 1, Samples: samples}
	t.Duration = durationOf(len(samples), sampleRate)
	return t
}

// Seconds returns the track length in seconds.
func (t *Track) Seconds() float64 {
	if t == nil || t.SampleRate <= 0 {
		return 0
	}
	return float64(len(t.Samples)) / float64(t.SampleRate)
}

// File decodes the WAV or MP3 file at path, selected by extension.
func File(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	name := filepath.Base(path)
	start := time.Now()

	var track *Track
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		track, err = WAV(f)
	case ".mp3":
		track, err = MP3(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}

	track.Name = name
	logger.Infof("decoded %s (%d Hz, %d ch, %.1fs) in %s",
		name, track.SampleRate, track.Channels, track.Seconds(), time.Since(start).Round(time.Millisecond))
	return track, nil
}

// WAV decodes PCM WAV data of any bit depth go-audio supports.
func WAV(r io.ReadSeeker) (*Track, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, errors.New("WAV file has no usable format chunk")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(decoder.BitDepth)
	}
	if bitDepth == 0 {
		return nil, errors.New("unknown bit depth")
	}
	scale := 1 / math.Pow(2, float64(bitDepth-1))

	channels := buf.Format.NumChannels
	samples := downmix(buf.Data, channels, func(v int) float64 { return float64(v) * scale })

	return &Track{
		SampleRate: buf.Format.SampleRate,
		Channels:   channels,
		Samples:    samples,
		Duration:   durationOf(len(samples), buf.Format.SampleRate),
	}, nil
}

// MP3 decodes an MP3 stream. go-mp3 always yields 16-bit little endian stereo.
func MP3(r io.Reader) (*Track, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("reading MP3 frames: %w", err)
	}

	const channels = 2
	pcm := make([]int, len(raw)/2)
	for i := range pcm {
		pcm[i] = int(int16(binary.LittleEndian.Uint16(raw[2*i:])))
	}
	samples := downmix(pcm, channels, func(v int) float64 { return float64(v) / 32768 })

	return &Track{
		SampleRate: decoder.SampleRate(),
		Channels:   channels,
		Samples:    samples,
		Duration:   durationOf(len(samples), decoder.SampleRate()),
	}, nil
}

// downmix averages interleaved frames into mono and clamps to [-1, 1].
func downmix(data []int, channels int, conv func(int) float64) []float32 {
	frames := len(data) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			sum += conv(data[i*channels+c])
		}
		v := sum / float64(channels)
		out[i] = float32(max(-1, min(1, v)))
	}
	return out
}

func durationOf(frames, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second))
}
