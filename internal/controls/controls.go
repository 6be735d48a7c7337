// SPDX-License-Identifier: MIT

// Package controls defines the user-tunable visual controls, their ranges and
// the shared store the renderer reads them from.
package controls

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Controls are the look-and-feel parameters. Integer valued controls are kept
// as float64 so every control maps directly onto a shader uniform.
type Controls struct {
	PetalsWeight  float64 `json:"petalsWeight" yaml:"petalsWeight"`
	GridWeight    float64 `json:"gridWeight" yaml:"gridWeight"`
	FlowWeight    float64 `json:"flowWeight" yaml:"flowWeight"`
	PetalCount    float64 `json:"petalCount" yaml:"petalCount"`
	HueShift      float64 `json:"hueShift" yaml:"hueShift"`
	Saturation    float64 `json:"saturation" yaml:"saturation"`
	Exposure      float64 `json:"exposure" yaml:"exposure"`
	GlowAmount    float64 `json:"glowAmount" yaml:"glowAmount"`
	RingDensity   float64 `json:"ringDensity" yaml:"ringDensity"`
	WarpAmount    float64 `json:"warpAmount" yaml:"warpAmount"`
	TempoBias     float64 `json:"tempoBias" yaml:"tempoBias"`
	PaletteMode   float64 `json:"paletteMode" yaml:"paletteMode"`
	BaseScale     float64 `json:"baseScale" yaml:"baseScale"`
	CenterOffsetX float64 `json:"centerOffsetX" yaml:"centerOffsetX"`
	CenterOffsetY float64 `json:"centerOffsetY" yaml:"centerOffsetY"`
	BaseSize      float64 `json:"baseSize" yaml:"baseSize"`
	MinSoft       float64 `json:"minSoft" yaml:"minSoft"`
	PetalBulge    float64 `json:"petalBulge" yaml:"petalBulge"`
	EchoBase      float64 `json:"echoBase" yaml:"echoBase"`
	RingRFreq     float64 `json:"ringRFreq" yaml:"ringRFreq"`
	RingTFreq     float64 `json:"ringTFreq" yaml:"ringTFreq"`
	RingsLo       float64 `json:"ringsLo" yaml:"ringsLo"`
	RingsHi       float64 `json:"ringsHi" yaml:"ringsHi"`
	GridFreqBase  float64 `json:"gridFreqBase" yaml:"gridFreqBase"`
	GridEdgeLo    float64 `json:"gridEdgeLo" yaml:"gridEdgeLo"`
	GridEdgeHi    float64 `json:"gridEdgeHi" yaml:"gridEdgeHi"`
	GridMode      float64 `json:"gridMode" yaml:"gridMode"`
	FlowLo        float64 `json:"flowLo" yaml:"flowLo"`
	FlowHi        float64 `json:"flowHi" yaml:"flowHi"`
	FlowGain      float64 `json:"flowGain" yaml:"flowGain"`
	FbmLacunarity float64 `json:"fbmLacunarity" yaml:"fbmLacunarity"`
	NoiseABY      float64 `json:"noiseABY" yaml:"noiseABY"`
	NoiseBBY      float64 `json:"noiseBBY" yaml:"noiseBBY"`
	MirrorMode    float64 `json:"mirrorMode" yaml:"mirrorMode"`
}

// Palette modes.
const (
	PaletteTriad = iota
	PaletteComplementary
	PaletteAnalogic
)

// Grid and mirror modes share the same axis encoding.
const (
	AxisOff = iota
	AxisX
	AxisY
	AxisBoth
)

// Field describes one control: its name, valid range and randomization rule.
type Field struct {
	Name     string
	Min, Max float64
	Integer  bool
	Fixed    bool    // Left alone by Randomize.
	RandMax  float64 // Upper bound for Randomize when narrower than Max.
	PairLo   string  // For the high end of a threshold pair, the low end's name.
	ptr      func(*Controls) *float64
}

// Fields lists every control in uniform order.
var Fields = []Field{
	{Name: "petalsWeight", Min: 0, Max: 1, ptr: func(c *Controls) *float64 { return &c.PetalsWeight }},
	{Name: "gridWeight", Min: 0, Max: 1, ptr: func(c *Controls) *float64 { return &c.GridWeight }},
	{Name: "flowWeight", Min: 0, Max: 2, RandMax: 1, ptr: func(c *Controls) *float64 { return &c.FlowWeight }},
	{Name: "petalCount", Min: 1, Max: 12, Integer: true, ptr: func(c *Controls) *float64 { return &c.PetalCount }},
	{Name: "hueShift", Min: 0, Max: 1, ptr: func(c *Controls) *float64 { return &c.HueShift }},
	{Name: "saturation", Min: 0, Max: 1, ptr: func(c *Controls) *float64 { return &c.Saturation }},
	{Name: "exposure", Min: 0.5, Max: 1.5, ptr: func(c *Controls) *float64 { return &c.Exposure }},
	{Name: "glowAmount", Min: 0, Max: 2, Fixed: true, ptr: func(c *Controls) *float64 { return &c.GlowAmount }},
	{Name: "ringDensity", Min: 0, Max: 3, ptr: func(c *Controls) *float64 { return &c.RingDensity }},
	{Name: "warpAmount", Min: 0, Max: 2, ptr: func(c *Controls) *float64 { return &c.WarpAmount }},
	{Name: "tempoBias", Min: 0, Max: 2, ptr: func(c *Controls) *float64 { return &c.TempoBias }},
	{Name: "paletteMode", Min: 0, Max: 2, Integer: true, ptr: func(c *Controls) *float64 { return &c.PaletteMode }},
	{Name: "baseScale", Min: 0.5, Max: 5, ptr: func(c *Controls) *float64 { return &c.BaseScale }},
	{Name: "centerOffsetX", Min: -2, Max: 2, ptr: func(c *Controls) *float64 { return &c.CenterOffsetX }},
	{Name: "centerOffsetY", Min: -2, Max: 2, ptr: func(c *Controls) *float64 { return &c.CenterOffsetY }},
	{Name: "baseSize", Min: 0.05, Max: 5, ptr: func(c *Controls) *float64 { return &c.BaseSize }},
	{Name: "minSoft", Min: 0, Max: 1, ptr: func(c *Controls) *float64 { return &c.MinSoft }},
	{Name: "petalBulge", Min: 0, Max: 5, ptr: func(c *Controls) *float64 { return &c.PetalBulge }},
	{Name: "echoBase", Min: 0, Max: 10, ptr: func(c *Controls) *float64 { return &c.EchoBase }},
	{Name: "ringRFreq", Min: 0, Max: 20, ptr: func(c *Controls) *float64 { return &c.RingRFreq }},
	{Name: "ringTFreq", Min: 0, Max: 20, Fixed: true, ptr: func(c *Controls) *float64 { return &c.RingTFreq }},
	{Name: "ringsLo", Min: 0, Max: 1, ptr: func(c *Controls) *float64 { return &c.RingsLo }},
	{Name: "ringsHi", Min: 0, Max: 1, PairLo: "ringsLo", ptr: func(c *Controls) *float64 { return &c.RingsHi }},
	{Name: "gridFreqBase", Min: 0, Max: 20, ptr: func(c *Controls) *float64 { return &c.GridFreqBase }},
	{Name: "gridEdgeLo", Min: 0, Max: 1, ptr: func(c *Controls) *float64 { return &c.GridEdgeLo }},
	{Name: "gridEdgeHi", Min: 0, Max: 1, PairLo: "gridEdgeLo", ptr: func(c *Controls) *float64 { return &c.GridEdgeHi }},
	{Name: "gridMode", Min: 0, Max: 3, Integer: true, ptr: func(c *Controls) *float64 { return &c.GridMode }},
	{Name: "flowLo", Min: 0, Max: 1, ptr: func(c *Controls) *float64 { return &c.FlowLo }},
	{Name: "flowHi", Min: 0, Max: 1, PairLo: "flowLo", ptr: func(c *Controls) *float64 { return &c.FlowHi }},
	{Name: "flowGain", Min: 0, Max: 5, ptr: func(c *Controls) *float64 { return &c.FlowGain }},
	{Name: "fbmLacunarity", Min: 0, Max: 20, ptr: func(c *Controls) *float64 { return &c.FbmLacunarity }},
	{Name: "noiseABY", Min: 0, Max: 1, Integer: true, ptr: func(c *Controls) *float64 { return &c.NoiseABY }},
	{Name: "noiseBBY", Min: 0, Max: 1, Integer: true, ptr: func(c *Controls) *float64 { return &c.NoiseBBY }},
	{Name: "mirrorMode", Min: 0, Max: 3, Integer: true, ptr: func(c *Controls) *float64 { return &c.MirrorMode }},
}

// Count is the number of controls.
const Count = 34

var fieldIndex = func() map[string]int {
	m := make(map[string]int, len(Fields))
	for i, f := range Fields {
		m[f.Name] = i
	}
	return m
}()

// Lookup returns the field description for name.
func Lookup(name string) (Field, bool) {
	i, ok := fieldIndex[name]
	if !ok {
		return Field{}, false
	}
	return Fields[i], true
}

// Defaults returns the starting look.
func Defaults() Controls {
	return Controls{
		PetalsWeight:  0.7,
		GridWeight:    0.4,
		FlowWeight:    0.55,
		PetalCount:    6,
		HueShift:      0,
		Saturation:    0.8,
		Exposure:      1.0,
		GlowAmount:    0.4,
		RingDensity:   1.5,
		WarpAmount:    0.8,
		TempoBias:     1.0,
		PaletteMode:   PaletteTriad,
		BaseScale:     1.3,
		CenterOffsetX: 0,
		CenterOffsetY: 0,
		BaseSize:      0.20,
		MinSoft:       0.004,
		PetalBulge:    0.15,
		EchoBase:      0.8,
		RingRFreq:     10,
		RingTFreq:     5,
		RingsLo:       0.20,
		RingsHi:       0.25,
		GridFreqBase:  1.0,
		GridEdgeLo:    0.48,
		GridEdgeHi:    0.50,
		GridMode:      AxisBoth,
		FlowLo:        0.35,
		FlowHi:        0.95,
		FlowGain:      0.2,
		FbmLacunarity: 2.0,
		NoiseABY:      0,
		NoiseBBY:      0,
		MirrorMode:    AxisOff,
	}
}

// Get returns the value of the named control.
func (c *Controls) Get(name string) (float64, bool) {
	i, ok := fieldIndex[name]
	if !ok {
		return 0, false
	}
	return *Fields[i].ptr(c), true
}

// Values returns every control in uniform order.
func (c *Controls) Values() []float64 {
	out := make([]float64, len(Fields))
	for i, f := range Fields {
		out[i] = *f.ptr(c)
	}
	return out
}

// FromValues is the inverse of Values. Missing trailing values keep their
// defaults.
func FromValues(values []float64) Controls {
	c := Defaults()
	for i, f := range Fields {
		if i >= len(values) {
			break
		}
		*f.ptr(&c) = values[i]
	}
	return c
}

// Clamp forces every control into its range, rounds integer controls and
// replaces non-finite values with the default.
func (c *Controls) Clamp() {
	defaults := Defaults()
	for _, f := range Fields {
		p := f.ptr(c)
		v := *p
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = *f.ptr(&defaults)
		}
		if f.Integer {
			v = math.Round(v)
		}
		*p = math.Min(f.Max, math.Max(f.Min, v))
	}
}

// Randomize draws a new look. Threshold pairs are drawn so low <= high, and
// fixed controls keep their value.
func (c *Controls) Randomize(rng *rand.Rand) {
	for _, f := range Fields {
		if f.Fixed {
			continue
		}
		lo, hi := f.Min, f.Max
		if f.RandMax != 0 {
			hi = f.RandMax
		}
		if f.PairLo != "" {
			lo, _ = c.Get(f.PairLo)
		}

		var v float64
		if f.Integer {
			v = math.Floor(lo + rng.Float64()*(hi+1-lo))
			v = math.Min(v, hi)
		} else {
			v = lo + rng.Float64()*(hi-lo)
		}
		*f.ptr(c) = v
	}
}

// Merge applies a partial update keyed by control name, clamping the result.
// Unknown names reject the whole update.
func (c *Controls) Merge(partial map[string]float64) error {
	var unknown []string
	for name := range partial {
		if _, ok := fieldIndex[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown controls: %v", unknown)
	}

	for name, v := range partial {
		*Fields[fieldIndex[name]].ptr(c) = v
	}
	c.Clamp()
	return nil
}

// Validate reports controls outside their range without changing them.
func (c *Controls) Validate() error {
	var errs []error
	for _, f := range Fields {
		v := *f.ptr(c)
		if math.IsNaN(v) || v < f.Min || v > f.Max {
			errs = append(errs, fmt.Errorf("%s = %g outside [%g, %g]", f.Name, v, f.Min, f.Max))
		}
	}
	return errors.Join(errs...)
}
