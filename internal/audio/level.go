// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

// level holds an atomically shared float64 in [0, 1].
type level struct{ bits atomic.Uint64 }

func (l *level) load() float64 { return math.Float64frombits(l.bits.Load()) }

func (l *level) store(v float64) {
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	l.bits.Store(math.Float64bits(v))
}

// SetVolume adjusts the playback gain. The value is clamped to 0.0-1.0.
// Analysis always sees the unscaled signal.
func (e *Engine) SetVolume(v float64) { e.volume.store(v) }

// Volume returns the playback gain.
func (e *Engine) Volume() float64 { return e.volume.load() }

// Peak returns the absolute peak of the most recently played block.
func (e *Engine) Peak() float64 { return e.peak.load() }

// peakOf returns max |x| over buffer.
func peakOf(buffer []float32) float32 {
	var maxAmplitude float32
	for _, s := range buffer {
		if s < 0 {
			s = -s
		}
		if s > maxAmplitude {
			maxAmplitude = s
		}
	}
	return maxAmplitude
}

// scaleInterleaved writes mono into out, duplicating each sample across
// channels and applying gain.
func scaleInterleaved(out, mono []float32, channels int, gain float32) {
	for i := range len(out) / channels {
		var s float32
		if i < len(mono) {
			s = mono[i] * gain
		}
		for ch := range channels {
			out[i*channels+ch] = s
		}
	}
}
