// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"time"
)

// OnsetConfig configures an OnsetDetector. Zero values take defaults.
type OnsetConfig struct {
	FrameSize   int
	SampleRate  float64
	Window      WindowFunc
	Threshold   float64       // Relative margin over the recent mean flux.
	SilenceDB   float64       // Blocks quieter than this (dBFS) never trigger.
	MinInterval time.Duration // Minimum time between onsets.
	History     int           // Number of past flux values in the adaptive mean.
}

const (
	DefaultOnsetThreshold = 0.3
	DefaultSilenceDB      = -70.0
	DefaultMinInterval    = 20 * time.Millisecond
	DefaultFluxHistory    = 8

	// fluxFloor keeps steady tones and noise floors from crossing an adaptive
	// threshold that has settled near zero.
	fluxFloor = 0.02
)

// OnsetDetector flags blocks whose log spectrum rises sharply compared to the
// previous block. It is not safe for concurrent use.
type OnsetDetector struct {
	cfg      OnsetConfig
	fft      *FFTProcessor
	mags     []float64
	prev     []float64
	flux     []float64 // Ring of recent flux values.
	fluxPos  int
	fluxLen  int
	elapsed  time.Duration // Time since the last onset.
	blockDur time.Duration
}

// NewOnsetDetector validates cfg and allocates the detector's FFT workspace.
func NewOnsetDetector(cfg OnsetConfig) (*OnsetDetector, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", cfg.SampleRate)
	}
	if cfg.FrameSize == 0 {
		cfg.FrameSize = DefaultFrameSize
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultOnsetThreshold
	}
	if cfg.SilenceDB == 0 {
		cfg.SilenceDB = DefaultSilenceDB
	}
	if cfg.MinInterval == 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.History <= 0 {
		cfg.History = DefaultFluxHistory
	}

	fft, err := NewFFTProcessor(cfg.FrameSize, cfg.SampleRate, cfg.Window)
	if err != nil {
		return nil, err
	}

	bins := len(fft.workspace.magnitude)
	d := &OnsetDetector{
		cfg:      cfg,
		fft:      fft,
		mags:     make([]float64, bins),
		prev:     make([]float64, bins),
		flux:     make([]float64, cfg.History),
		blockDur: time.Duration(float64(cfg.FrameSize) / cfg.SampleRate * float64(time.Second)),
	}
	d.Reset()
	return d, nil
}

// Detect reports whether block starts a new onset.
func (d *OnsetDetector) Detect(block []float32) bool {
	d.elapsed += d.blockDur

	d.fft.Process(block)
	d.fft.copyMagnitudes(d.mags)

	var flux float64
	for i, m := range d.mags {
		v := math.Log1p(m)
		if diff := v - d.prev[i]; diff > 0 {
			flux += diff
		}
		d.prev[i] = v
	}
	flux /= float64(len(d.mags))

	mean := d.meanFlux()
	d.pushFlux(flux)

	if dBFS(RMS(block)) < d.cfg.SilenceDB {
		return false
	}
	if flux <= mean*(1+d.cfg.Threshold)+fluxFloor {
		return false
	}
	if d.elapsed < d.cfg.MinInterval {
		return false
	}

	d.elapsed = 0
	return true
}

// Reset forgets the previous spectrum and flux history, as after a seek.
func (d *OnsetDetector) Reset() {
	clear(d.prev)
	clear(d.flux)
	d.fluxPos = 0
	d.fluxLen = 0
	d.elapsed = d.cfg.MinInterval
}

func (d *OnsetDetector) meanFlux() float64 {
	if d.fluxLen == 0 {
		return 0
	}
	var sum float64
	for i := range d.fluxLen {
		sum += d.flux[i]
	}
	return sum / float64(d.fluxLen)
}

func (d *OnsetDetector) pushFlux(v float64) {
	d.flux[d.fluxPos] = v
	d.fluxPos = (d.fluxPos + 1) % len(d.flux)
	if d.fluxLen < len(d.flux) {
		d.fluxLen++
	}
}

func dBFS(rms float64) float64 {
	if rms <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}
