// SPDX-License-Identifier: MIT
package render

import (
	"math"

	"lumen/internal/controls"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// BaseHue derives the palette's base hue in [0, 1) from tone and energy.
func BaseHue(tone, energy, hueShift float64) float64 {
	return fract(mix(0.05, 0.65, clamp01(tone)) + hueShift + 0.02*energy)
}

// Palette returns the three scene colours for a base hue. Saturation and
// exposure cap the colours; paletteMode picks triad, complementary or analogic
// spacing.
func Palette(baseHue float64, c controls.Controls) [3]colorful.Color {
	sat, val := c.Saturation, c.Exposure
	switch int(math.Round(c.PaletteMode)) {
	case controls.PaletteTriad:
		return [3]colorful.Color{
			hsv(baseHue, sat, val),
			hsv(baseHue+1.0/3.0, sat, val),
			hsv(baseHue+2.0/3.0, sat, val),
		}
	case controls.PaletteComplementary:
		return [3]colorful.Color{
			hsv(baseHue, sat, val),
			hsv(baseHue+0.5, sat, val),
			hsv(baseHue+0.08, sat, val*0.9),
		}
	default:
		return [3]colorful.Color{
			hsv(baseHue-0.06, sat, val),
			hsv(baseHue, sat, val),
			hsv(baseHue+0.06, sat, val),
		}
	}
}

// PaletteHex formats clamped colours as #rrggbb.
func PaletteHex(cols [3]colorful.Color) [3]string {
	var out [3]string
	for i, c := range cols {
		out[i] = c.Clamped().Hex()
	}
	return out
}

// hsv takes a hue in turns. Values above 1 are allowed and brighten the colour
// past full scale, matching exposure above 1.
func hsv(hueTurns, s, v float64) colorful.Color {
	return colorful.Hsv(fract(hueTurns)*360, clamp01(s), math.Max(0, v))
}

func fract(x float64) float64 { return x - math.Floor(x) }

func mix(a, b, t float64) float64 { return a + (b-a)*t }

func clamp01(x float64) float64 { return math.Min(1, math.Max(0, x)) }

func smoothstep(e0, e1, x float64) float64 {
	if e0 == e1 {
		if x < e0 {
			return 0
		}
		return 1
	}
	t := clamp01((x - e0) / (e1 - e0))
	return t * t * (3 - 2*t)
}
