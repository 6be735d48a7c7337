// SPDX-License-Identifier: MIT

// Package conditioner turns raw per-block audio features into bounded,
// smoothed control signals and decides when a beat has occurred.
//
// A Conditioner is driven from a single goroutine: the audio cadence calls
// OnFeatureFrame and OnOnsetFrame once per analysis block, and Reset or Load
// when playback jumps. Outputs are pushed to a Sink after every call.
package conditioner

import (
	"math"

	"lumen/internal/analysis"
	"lumen/internal/params"

	"gonum.org/v1/gonum/floats"
)

const (
	ProfileAlpha = 0.02 // Track profile and slow envelope smoothing.
	FastAlpha    = 0.2
	TempoAlpha   = 0.05

	EnergyGain = 3.0

	// VarianceFloor bounds the variance from below; a standard deviation at
	// the floor yields a z-score of exactly 0.
	VarianceFloor = 1e-8

	ToneLowHz  = 80.0
	ToneHighHz = 8000.0

	LowBandBins = 8

	WarmupFrames   = 360
	BeatLoudnessZ  = 0.3
	MinOnsets      = 5
	MinTempo       = 60.0
	MaxTempo       = 200.0
	FallbackPeriod = 0.5 // Seconds, used when the median interval is 0.
	RefractoryBeat = 0.5 // Fraction of a beat period.
)

// Sink receives a snapshot after every update.
type Sink interface {
	Publish(params.VisualParameters)
}

// TrackProfile is the running loudness statistic for the current track.
type TrackProfile struct {
	Mean         float64 // EMA of loudness.
	SecondMoment float64 // EMA of loudness squared.
}

// Std returns the floored standard deviation and whether the floor applied.
func (p TrackProfile) Std() (float64, bool) {
	return flooredStd(p.SecondMoment - p.Mean*p.Mean)
}

// Conditioner owns all per-session signal state. The zero value is not usable;
// call New.
type Conditioner struct {
	sink Sink

	profile TrackProfile
	fast    float64
	slow    float64
	slowSq  float64

	history  OnsetHistory
	warmup   int
	lastBeat float64

	out      params.VisualParameters
	waveform [params.WaveformLength]float32
}

// New returns a Conditioner in the Idle phase with the default tempo. sink may
// be nil.
func New(sink Sink) *Conditioner {
	c := &Conditioner{sink: sink}
	c.Load()
	return c
}

// OnFeatureFrame folds one feature frame into the running statistics and
// updates loudness z-score, energy, tone and low band. A nil frame advances
// the warm-up counter and leaves every output at its previous value.
func (c *Conditioner) OnFeatureFrame(frame *analysis.FeatureFrame) {
	c.warmup++
	c.out.Features = frame
	c.out.Phase = c.Phase()

	if frame == nil {
		c.publish()
		return
	}

	if x := frame.Loudness; finite(x) && x >= 0 {
		c.profile.Mean = ema(c.profile.Mean, x, ProfileAlpha)
		c.profile.SecondMoment = ema(c.profile.SecondMoment, x*x, ProfileAlpha)
		std, floored := c.profile.Std()
		c.out.LoudnessZ = zscore(x, c.profile.Mean, std, floored)

		c.fast = ema(c.fast, x, FastAlpha)
		c.slow = ema(c.slow, x, ProfileAlpha)
		c.slowSq = ema(c.slowSq, x*x, ProfileAlpha)
		slowStd, slowFloored := flooredStd(c.slowSq - c.slow*c.slow)
		contrast := zscore(c.fast, c.slow, slowStd, slowFloored)
		c.out.Energy = sigmoid(EnergyGain * contrast)
	}

	if sc := frame.SpectralCentroid; finite(sc) {
		c.out.Tone = Tone(sc)
	}

	c.out.LowBand = LowBand(frame.AmplitudeSpectrum)
	c.publish()
}

// OnOnsetFrame records the waveform snapshot, appends now to the onset history
// when onset is set, refreshes the tempo estimate and runs the beat gate. now
// is the playback position of the block in seconds.
func (c *Conditioner) OnOnsetFrame(buffer []float32, onset bool, now float64) {
	for i := range c.waveform {
		j := 2 * i
		if j < len(buffer) && finite(float64(buffer[j])) {
			c.waveform[i] = buffer[j]*0.5 + 0.5
		} else {
			c.waveform[i] = 0.5
		}
	}
	c.out.Waveform = c.waveform[:]
	c.out.Onset = onset
	if finite(now) {
		c.out.Position = now
	}

	if onset && finite(now) {
		c.history.Push(now)
	}

	if c.history.Len() >= MinOnsets {
		period := c.history.MedianInterval()
		if period <= 0 || !finite(period) {
			period = FallbackPeriod
		}
		instant := clamp(60/math.Max(1e-3, period), MinTempo, MaxTempo)
		c.out.Tempo = clamp(lerp(c.out.Tempo, instant, TempoAlpha), MinTempo, MaxTempo)
	}

	if onset && c.beatAllowed(now) {
		c.lastBeat = now
		c.out.LastBeat = now
	}

	c.out.Phase = c.Phase()
	c.publish()
}

func (c *Conditioner) beatAllowed(now float64) bool {
	if c.warmup <= WarmupFrames {
		return false
	}
	if c.out.LoudnessZ <= BeatLoudnessZ {
		return false
	}
	return now-c.lastBeat > c.MinBeatInterval()
}

// MinBeatInterval is the refractory window at the current tempo, in seconds.
func (c *Conditioner) MinBeatInterval() float64 {
	tempo := c.out.Tempo
	if tempo <= 0 {
		tempo = params.DefaultTempo
	}
	return RefractoryBeat * 60 / tempo
}

// Reset clears the onset history, warm-up counter, track profile and last
// beat, as after a seek. Tempo and envelopes are kept. Calling it twice is the
// same as calling it once.
func (c *Conditioner) Reset() {
	c.history.Clear()
	c.warmup = 0
	c.profile = TrackProfile{}
	c.lastBeat = 0
	c.out.LastBeat = 0
	c.out.Phase = params.Idle
	c.publish()
}

// Load prepares for a new track: Reset plus default tempo and cleared
// envelopes and outputs.
func (c *Conditioner) Load() {
	c.fast, c.slow, c.slowSq = 0, 0, 0
	for i := range c.waveform {
		c.waveform[i] = 0.5
	}
	c.out = params.VisualParameters{
		Tempo:    params.DefaultTempo,
		Waveform: c.waveform[:],
	}
	c.Reset()
}

// Phase reports the warm-up state.
func (c *Conditioner) Phase() params.Phase {
	switch {
	case c.warmup == 0:
		return params.Idle
	case c.warmup <= WarmupFrames:
		return params.Warming
	default:
		return params.Tracking
	}
}

// Snapshot returns a deep copy of the current outputs.
func (c *Conditioner) Snapshot() params.VisualParameters { return c.out.Clone() }

func (c *Conditioner) Profile() TrackProfile { return c.profile }
func (c *Conditioner) History() []float64    { return c.history.Values() }
func (c *Conditioner) WarmupFrames() int     { return c.warmup }
func (c *Conditioner) Tempo() float64        { return c.out.Tempo }
func (c *Conditioner) LastBeat() float64     { return c.lastBeat }
func (c *Conditioner) LoudnessZ() float64    { return c.out.LoudnessZ }

func (c *Conditioner) publish() {
	if c.sink != nil {
		c.sink.Publish(c.out)
	}
}

// Tone maps a spectral centroid onto [0, 1] on a log2 scale between ToneLowHz
// and ToneHighHz.
func Tone(centroid float64) float64 {
	lo := math.Log2(ToneLowHz)
	hi := math.Log2(ToneHighHz)
	return clamp((math.Log2(math.Max(ToneLowHz, centroid))-lo)/(hi-lo), 0, 1)
}

// LowBand is the unweighted mean of the first LowBandBins bins, or of all bins
// when fewer are available. Non-finite bins count as 0.
func LowBand(spectrum []float64) float64 {
	n := min(LowBandBins, len(spectrum))
	if n == 0 {
		return 0
	}
	lows := spectrum[:n]
	sum := floats.Sum(lows)
	if !finite(sum) {
		sum = 0
		for _, v := range lows {
			if finite(v) {
				sum += v
			}
		}
	}
	return sum / float64(n)
}

func ema(prev, x, alpha float64) float64 { return (1-alpha)*prev + alpha*x }
func lerp(a, b, t float64) float64       { return a + (b-a)*t }
func sigmoid(x float64) float64          { return 1 / (1 + math.Exp(-x)) }

func clamp(x, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, x))
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func flooredStd(variance float64) (float64, bool) {
	if !(variance > VarianceFloor) {
		return math.Sqrt(VarianceFloor), true
	}
	return math.Sqrt(variance), false
}

func zscore(x, mean, std float64, floored bool) float64 {
	if floored {
		return 0
	}
	z := (x - mean) / std
	if !finite(z) {
		return 0
	}
	return z
}
