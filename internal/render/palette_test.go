package render

import (
	"math"
	"testing"

	"lumen/internal/controls"
)

func TestBaseHue(t *testing.T) {
	tests := []struct {
		name                   string
		tone, energy, hueShift float64
		want                   float64
	}{
		{"low tone", 0, 0, 0, 0.05},
		{"high tone", 1, 0, 0, 0.65},
		{"tone clamped", 4, 0, 0, 0.65},
		{"energy nudge", 0, 1, 0, 0.07},
		{"wraps", 1, 0, 0.5, 0.15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BaseHue(tt.tone, tt.energy, tt.hueShift)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("BaseHue = %v, want %v", got, tt.want)
			}
		})
	}
}

func hueDist(a, b float64) float64 {
	d := math.Abs(a - b)
	return math.Min(d, 360-d)
}

func TestPalette_Modes(t *testing.T) {
	c := controls.Defaults()
	c.Saturation = 1
	c.Exposure = 1

	c.PaletteMode = controls.PaletteTriad
	tri := Palette(0.1, c)
	h0, _, _ := tri[0].Hsv()
	h1, _, _ := tri[1].Hsv()
	h2, _, _ := tri[2].Hsv()
	if hueDist(h0, 36) > 0.5 || hueDist(h1, h0+120) > 0.5 || hueDist(h2, h0+240) > 0.5 {
		t.Errorf("triad hues = %v %v %v", h0, h1, h2)
	}

	c.PaletteMode = controls.PaletteComplementary
	comp := Palette(0.1, c)
	h0, _, v0 := comp[0].Hsv()
	h1, _, _ = comp[1].Hsv()
	_, _, v2 := comp[2].Hsv()
	if hueDist(h1, h0+180) > 0.5 {
		t.Errorf("complement hue = %v, base %v", h1, h0)
	}
	if math.Abs(v2-0.9*v0) > 1e-6 {
		t.Errorf("accent value = %v, want %v", v2, 0.9*v0)
	}

	c.PaletteMode = controls.PaletteAnalogic
	ana := Palette(0.1, c)
	h0, _, _ = ana[0].Hsv()
	h1, _, _ = ana[1].Hsv()
	if hueDist(h0, 36-21.6) > 0.5 || hueDist(h1, 36) > 0.5 {
		t.Errorf("analogic hues = %v %v", h0, h1)
	}
}

func TestPaletteHex(t *testing.T) {
	c := controls.Defaults()
	c.Saturation = 0
	c.Exposure = 1.5
	hex := PaletteHex(Palette(0, c))
	for i, h := range hex {
		if h != "#ffffff" {
			t.Errorf("colour %d = %s, want clamped white", i, h)
		}
	}
}
