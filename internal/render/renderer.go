// SPDX-License-Identifier: MIT

// Package render maps conditioned audio parameters and user controls onto a
// shader uniform block at display cadence.
package render

import (
	"sync"
	"time"

	"lumen/internal/controls"
	"lumen/internal/params"
)

// DefaultOnsetDecay is the per-frame decay of the onset envelope.
const DefaultOnsetDecay = 0.9

// ParamSource yields the latest conditioned parameters.
type ParamSource interface {
	Latest() params.VisualParameters
}

// ControlSource yields the current user controls.
type ControlSource interface {
	Get() controls.Controls
}

// Pauser reports whether playback is paused.
type Pauser interface {
	Paused() bool
}

// Config sets the target resolution and envelope behaviour.
type Config struct {
	Width      int
	Height     int
	OnsetDecay float64
}

// Frame is one display frame.
type Frame struct {
	Seq       uint64       `json:"seq"`
	Timestamp time.Time    `json:"timestamp"`
	Paused    bool         `json:"paused"`
	Uniforms  Uniforms     `json:"uniforms"`
	Palette   [3]string    `json:"palette"` // Hex colours.
	Position  float64      `json:"position"`
	Phase     params.Phase `json:"phase"`
	Onset     bool         `json:"onset"`
	Waveform  []float32    `json:"waveform,omitempty"`
}

// Time returns the simulation time carried by the frame.
func (f *Frame) Time() float64 { return float64(f.Uniforms[UTime]) }

// Renderer builds frames. While playback is paused every audio-derived value,
// the onset envelope and the simulation clock hold still; on resume the clock
// continues from where it stopped.
type Renderer struct {
	params   ParamSource
	controls ControlSource
	pauser   Pauser
	cfg      Config

	mu          sync.Mutex
	started     bool
	start       time.Time
	wasPaused   bool
	pauseStart  time.Time
	pausedAccum time.Duration
	frozenSim   float64
	frozen      audioState
	onsetEnv    float64
	seq         uint64
}

// NewRenderer returns a renderer reading from the given sources. pauser may
// be nil, meaning never paused.
func NewRenderer(p ParamSource, c ControlSource, pauser Pauser, cfg Config) *Renderer {
	if cfg.OnsetDecay <= 0 || cfg.OnsetDecay >= 1 {
		cfg.OnsetDecay = DefaultOnsetDecay
	}
	return &Renderer{
		params:   p,
		controls: c,
		pauser:   pauser,
		cfg:      cfg,
		frozen:   audioState{bpm: params.DefaultTempo},
	}
}

// Frame produces the frame for wall time now.
func (r *Renderer) Frame(now time.Time) Frame {
	latest := r.params.Latest()
	ctl := r.controls.Get()
	paused := r.pauser != nil && r.pauser.Paused()

	r.mu.Lock()
	if !r.started {
		r.started = true
		r.start = now
	}

	switch {
	case paused && !r.wasPaused:
		r.pauseStart = now
		r.frozen = r.current(latest)
		r.frozen.onsetEnv = r.onsetEnv
		r.frozenSim = r.simTime(now)
	case !paused && r.wasPaused:
		r.pausedAccum += now.Sub(r.pauseStart)
	}
	r.wasPaused = paused

	var state audioState
	var sim float64
	if paused {
		state = r.frozen
		r.onsetEnv = r.frozen.onsetEnv
		sim = r.frozenSim
	} else {
		r.onsetEnv *= r.cfg.OnsetDecay
		if latest.Onset {
			r.onsetEnv = 1
		}
		state = r.current(latest)
		state.onsetEnv = r.onsetEnv
		r.frozen = state
		sim = r.simTime(now)
	}

	r.seq++
	f := Frame{
		Seq:       r.seq,
		Timestamp: now,
		Paused:    paused,
		Position:  latest.Position,
		Phase:     latest.Phase,
		Onset:     latest.Onset && !paused,
		Waveform:  latest.Waveform,
	}
	r.mu.Unlock()

	pack(&f.Uniforms, state, sim, r.cfg.Width, r.cfg.Height, &ctl)
	f.Palette = PaletteHex(Palette(BaseHue(state.tone, state.energy, ctl.HueShift), ctl))
	return f
}

func (r *Renderer) simTime(now time.Time) float64 {
	return (now.Sub(r.start) - r.pausedAccum).Seconds()
}

func (r *Renderer) current(p params.VisualParameters) audioState {
	return audioState{
		rmsZ:     p.LoudnessZ,
		bpm:      p.Tempo,
		energy:   p.Energy,
		lastBeat: p.LastBeat,
		tone:     p.Tone,
		lowBand:  p.LowBand,
	}
}
