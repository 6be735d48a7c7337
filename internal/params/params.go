// Package params holds the latest conditioned parameter snapshot shared
// between the audio cadence and the display cadence.
package params

import (
	"fmt"
	"sync/atomic"

	"lumen/internal/analysis"
)

// WaveformLength is the number of points in a waveform snapshot.
const WaveformLength = 256

// DefaultTempo is the tempo reported before any estimate exists.
const DefaultTempo = 120.0

// Phase is the conditioner's warm-up state.
type Phase int

const (
	Idle     Phase = iota // No frame since the last reset.
	Warming               // Collecting statistics, beats suppressed.
	Tracking              // Beats may be accepted.
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Warming:
		return "warming"
	case Tracking:
		return "tracking"
	default:
		return "unknown"
	}
}

// MarshalText lets Phase appear as a string in JSON.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText parses the names produced by MarshalText.
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*p = Idle
	case "warming":
		*p = Warming
	case "tracking":
		*p = Tracking
	default:
		return fmt.Errorf("unknown phase %q", text)
	}
	return nil
}

// VisualParameters is one snapshot of the conditioned audio features.
type VisualParameters struct {
	Features  *analysis.FeatureFrame `json:"-"`
	LoudnessZ float64                `json:"loudnessZ"`
	Energy    float64                `json:"energy"`
	Tempo     float64                `json:"tempo"`
	LastBeat  float64                `json:"lastBeat"` // Playback seconds of the last accepted beat.
	Tone      float64                `json:"tone"`
	LowBand   float64                `json:"lowBand"`
	Waveform  []float32              `json:"waveform"`
	Onset     bool                   `json:"onset"` // Raw onset flag of the latest block.
	Phase     Phase                  `json:"phase"`
	Position  float64                `json:"position"` // Playback seconds of the latest block.
}

// Clone returns a deep copy, sharing nothing with p.
func (p VisualParameters) Clone() VisualParameters {
	out := p
	if p.Waveform != nil {
		out.Waveform = append([]float32(nil), p.Waveform...)
	}
	if p.Features != nil {
		f := *p.Features
		f.CepstralCoefficients = append([]float64(nil), p.Features.CepstralCoefficients...)
		f.AmplitudeSpectrum = append([]float64(nil), p.Features.AmplitudeSpectrum...)
		out.Features = &f
	}
	return out
}

// Store is a single-writer, multi-reader holder of the latest snapshot.
// Readers always see one whole published snapshot; there is no ordering
// relation to the reader's own frame boundaries.
type Store struct {
	latest atomic.Pointer[VisualParameters]
	seq    atomic.Uint64
}

// NewStore returns a Store whose initial snapshot carries DefaultTempo.
func NewStore() *Store {
	s := &Store{}
	s.latest.Store(&VisualParameters{Tempo: DefaultTempo})
	return s
}

// Publish stores a deep copy of p. Only one goroutine may publish.
func (s *Store) Publish(p VisualParameters) {
	c := p.Clone()
	s.latest.Store(&c)
	s.seq.Add(1)
}

// Latest returns the most recent snapshot. The returned value must be treated
// as read-only since it is shared between readers.
func (s *Store) Latest() VisualParameters {
	return *s.latest.Load()
}

// Seq counts publishes, letting pollers skip unchanged snapshots.
func (s *Store) Seq() uint64 { return s.seq.Load() }
