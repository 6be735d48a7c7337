// SPDX-License-Identifier: MIT

// Package analysis turns blocks of mono audio into spectral features and
// onset decisions. Processors own their FFT workspace, are not safe for
// concurrent use, and run on the audio cadence.
package analysis

import (
	"fmt"
	"math"

	"lumen/internal/log"

	"gonum.org/v1/gonum/floats"
)

var logger = log.Component("analysis")

// FeatureFrame is the per-block feature set handed to the conditioner. Each
// frame owns its slices.
type FeatureFrame struct {
	Loudness             float64   // RMS of the raw block.
	SpectralCentroid     float64   // Magnitude weighted mean frequency in Hz.
	CepstralCoefficients []float64 // Mel cepstrum, fixed length.
	AmplitudeSpectrum    []float64 // Magnitudes, FrameSize/2+1 bins.
}

// FeatureConfig configures a FeatureExtractor. Zero values take defaults.
type FeatureConfig struct {
	FrameSize    int
	SampleRate   float64
	Window       WindowFunc
	MelBands     int
	Coefficients int
	LowHz        float64
	HighHz       float64 // 0 means Nyquist.
}

const (
	DefaultFrameSize    = 512
	DefaultMelBands     = 26
	DefaultCoefficients = 13
)

func (c *FeatureConfig) applyDefaults() {
	if c.FrameSize == 0 {
		c.FrameSize = DefaultFrameSize
	}
	if c.MelBands == 0 {
		c.MelBands = DefaultMelBands
	}
	if c.Coefficients == 0 {
		c.Coefficients = DefaultCoefficients
	}
	if c.HighHz <= 0 || c.HighHz > c.SampleRate/2 {
		c.HighHz = c.SampleRate / 2
	}
}

// FeatureExtractor computes loudness, centroid, cepstrum and spectrum for one
// block at a time. It is not safe for concurrent use.
type FeatureExtractor struct {
	cfg  FeatureConfig
	fft  *FFTProcessor
	mfcc *mfcc
	mags []float64
}

// NewFeatureExtractor validates cfg and allocates the FFT workspace and mel
// filterbank.
func NewFeatureExtractor(cfg FeatureConfig) (*FeatureExtractor, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", cfg.SampleRate)
	}
	cfg.applyDefaults()
	if cfg.Coefficients > cfg.MelBands {
		return nil, fmt.Errorf("coefficients (%d) exceed mel bands (%d)", cfg.Coefficients, cfg.MelBands)
	}
	if cfg.MelBands < 2 {
		return nil, fmt.Errorf("need at least 2 mel bands, got %d", cfg.MelBands)
	}

	fft, err := NewFFTProcessor(cfg.FrameSize, cfg.SampleRate, cfg.Window)
	if err != nil {
		return nil, err
	}

	logger.Debugf("feature extractor: size=%d rate=%.0f window=%s mel=%d coeffs=%d",
		cfg.FrameSize, cfg.SampleRate, cfg.Window, cfg.MelBands, cfg.Coefficients)

	return &FeatureExtractor{
		cfg:  cfg,
		fft:  fft,
		mfcc: newMFCC(cfg.MelBands, cfg.Coefficients, cfg.FrameSize, cfg.SampleRate, cfg.LowHz, cfg.HighHz),
		mags: make([]float64, len(fft.workspace.magnitude)),
	}, nil
}

// Extract analyses block and returns a new frame. Short blocks are zero padded.
func (e *FeatureExtractor) Extract(block []float32) *FeatureFrame {
	e.fft.Process(block)
	e.fft.copyMagnitudes(e.mags)

	spectrum := make([]float64, len(e.mags))
	copy(spectrum, e.mags)

	return &FeatureFrame{
		Loudness:             RMS(block),
		SpectralCentroid:     centroid(spectrum, e.fft.sampleRate/float64(e.fft.fftSize)),
		CepstralCoefficients: e.mfcc.compute(spectrum),
		AmplitudeSpectrum:    spectrum,
	}
}

// FrameSize returns the configured block length.
func (e *FeatureExtractor) FrameSize() int { return e.cfg.FrameSize }

// RMS returns the root mean square of block, 0 for an empty block.
func RMS(block []float32) float64 {
	if len(block) == 0 {
		return 0
	}
	var sumSquare float64
	for _, s := range block {
		v := float64(s)
		sumSquare += v * v
	}
	return math.Sqrt(sumSquare / float64(len(block)))
}

// centroid is sum(f*m)/sum(m) in Hz, 0 for an all-zero spectrum.
func centroid(mags []float64, binHz float64) float64 {
	total := floats.Sum(mags)
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return 0
	}
	var weighted float64
	for i, m := range mags {
		weighted += float64(i) * binHz * m
	}
	return weighted / total
}
