package render

import (
	"image"
	"image/color"
	"math"
	"runtime"
	"sync"

	"lumen/internal/controls"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Preview rasterizes a frame's uniforms on the CPU at the given size. It
// evaluates the same scene the GPU shader draws, so snapshots and terminal
// previews match the display up to tone mapping: colours are clamped to
// [0, 1] here.
func Preview(u *Uniforms, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if width <= 0 || height <= 0 {
		return img
	}

	s := newScene(u, width, height)

	workers := min(runtime.GOMAXPROCS(0), height)
	rows := make(chan int, height)
	for y := range height {
		rows <- y
	}
	close(rows)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				for x := range width {
					img.SetRGBA(x, y, s.shade(float64(x)+0.5, float64(y)+0.5))
				}
			}
		}()
	}
	wg.Wait()
	return img
}

type vec2 struct{ x, y float64 }

func (a vec2) add(b vec2) vec2          { return vec2{a.x + b.x, a.y + b.y} }
func (a vec2) scale(k float64) vec2     { return vec2{a.x * k, a.y * k} }
func (a vec2) addScalar(k float64) vec2 { return vec2{a.x + k, a.y + k} }
func (a vec2) length() float64          { return math.Hypot(a.x, a.y) }

type rgb struct{ r, g, b float64 }

func fromColor(c colorful.Color) rgb   { return rgb{c.R, c.G, c.B} }
func (a rgb) add(b rgb) rgb            { return rgb{a.r + b.r, a.g + b.g, a.b + b.b} }
func (a rgb) scale(k float64) rgb      { return rgb{a.r * k, a.g * k, a.b * k} }
func (a rgb) mix(b rgb, t float64) rgb { return a.scale(1 - t).add(b.scale(t)) }

// scene holds per-frame values shared by every pixel.
type scene struct {
	u        *Uniforms
	c        controls.Controls
	w, h     float64
	t        float64
	bpmPhase float64
	baseHue  float64
	cols     [3]rgb
	bg       rgb
}

func newScene(u *Uniforms, width, height int) *scene {
	vals := make([]float64, controls.Count)
	for i := range vals {
		vals[i] = float64(u[ControlsOffset+i])
	}
	c := controls.FromValues(vals)

	s := &scene{
		u: u,
		c: c,
		w: float64(width),
		h: float64(height),
		t: float64(u[UTime]),
	}
	s.bpmPhase = s.t * (float64(u[UBPM]) * c.TempoBias) * math.Pi / 60
	s.baseHue = BaseHue(float64(u[UTone]), float64(u[UEnergy]), c.HueShift)
	pal := Palette(s.baseHue, c)
	for i := range pal {
		s.cols[i] = fromColor(pal[i])
	}
	bgHue := s.baseHue + 0.03*math.Sin(s.bpmPhase*0.25)
	s.bg = fromColor(hsv(bgHue, c.Saturation*0.6, c.Exposure*0.6))
	return s
}

func (s *scene) shade(fx, fy float64) color.RGBA {
	c := &s.c
	energy := float64(s.u[UEnergy])
	onset := float64(s.u[UOnset])

	aspect := s.w / math.Max(1, s.h)
	uv := vec2{(fx/s.w*2 - 1) * aspect, fy/s.h*2 - 1}

	switch int(math.Round(c.MirrorMode)) {
	case controls.AxisX:
		uv.x = math.Abs(uv.x)
	case controls.AxisY:
		uv.y = math.Abs(uv.y)
	case controls.AxisBoth:
		uv = vec2{math.Abs(uv.x), math.Abs(uv.y)}
	}
	uv = uv.add(vec2{c.CenterOffsetX, c.CenterOffsetY})

	// Domain warp.
	p := uv.scale(c.BaseScale + 0.6*energy)
	w := c.WarpAmount * (0.4 + 0.6*clamp01(energy))
	warp := vec2{
		s.fbm(p.add(vec2{0, s.t * 0.15})) - 0.5,
		s.fbm(p.add(vec2{4.2, s.t * 0.12})) - 0.5,
	}
	p = p.add(warp.scale(w))

	// Petals and echo rings.
	r := p.length()
	ang := math.Atan2(p.y, p.x)
	k := math.Max(2, math.Round(c.PetalCount))
	petals := 0.5 + 0.5*math.Cos(ang*k+s.bpmPhase)

	size := c.BaseSize + 0.003*math.Min(3000, math.Max(0, float64(s.u[ULowBand])))
	soft := mix(c.MinSoft, 0.5, clamp01(energy))
	ring := 1 - smoothstep(size-soft, size+soft, r*(1+c.PetalBulge*petals))

	echo := onset * (c.EchoBase + 0.2*energy)
	vibes := 0.5 + 0.5*math.Cos((r*c.RingRFreq+s.t*c.RingTFreq)*c.RingDensity)
	rings := smoothstep(c.RingsLo, c.RingsHi, vibes) * echo

	// Grid.
	gridFreq := c.GridFreqBase + 16*energy
	gv := 0.5 - math.Abs(fract((p.x+0.15*math.Sin(s.bpmPhase*0.5))*gridFreq)-0.5)
	gh := 0.5 - math.Abs(fract((p.y+0.15*math.Cos(s.bpmPhase*0.5))*gridFreq)-0.5)
	var pick float64
	switch int(math.Round(c.GridMode)) {
	case controls.AxisOff:
		pick = -10
	case controls.AxisX:
		pick = gv
	case controls.AxisY:
		pick = gh
	default:
		pick = math.Max(gv, gh)
	}
	grid := smoothstep(c.GridEdgeLo, c.GridEdgeHi, pick)

	// Flow field.
	flow := s.fbm(p.scale(2).add(vec2{0, s.t * 0.2}))
	flowSoft := smoothstep(c.FlowLo, c.FlowHi, flow)

	// Compose.
	col := s.bg.scale((0.6 + 0.4*flowSoft) * (1 - c.PetalsWeight*0.35))
	layer := clamp01(ring + rings)
	col = col.add(s.cols[0].scale(layer * c.PetalsWeight))
	col = col.add(s.cols[0].scale(math.Pow(layer, 4) * c.PetalsWeight * 1.5))
	col = col.mix(col.add(s.cols[1].scale(grid*c.GridWeight)), 0.8)
	col = col.add(s.cols[2].scale(flowSoft * c.FlowWeight * c.FlowGain))

	exposure := 0.70 + 0.40*math.Min(1.5, math.Max(-1.5, float64(s.u[URMSZ])))
	col = col.scale(exposure * (1 + 0.35*clamp01(onset)))

	return color.RGBA{R: channel(col.r), G: channel(col.g), B: channel(col.b), A: 0xff}
}

func channel(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	return uint8(math.Round(clamp01(v) * 255))
}

func (s *scene) fbm(p vec2) float64 {
	var f float64
	amp := 0.5
	q := p
	for range 4 {
		f += amp * noise(q, s.c.NoiseABY, s.c.NoiseBBY)
		q = q.scale(s.c.FbmLacunarity).addScalar(31.416)
		amp *= 0.5
	}
	return f
}

func hash21(p vec2) float64 {
	h := p.x*127.1 + p.y*311.7
	return fract(math.Sin(h) * 43758.5453123)
}

func noise(p vec2, aby, bby float64) float64 {
	i := vec2{math.Floor(p.x), math.Floor(p.y)}
	f := vec2{fract(p.x), fract(p.y)}
	a := hash21(i.add(vec2{0, aby}))
	b := hash21(i.add(vec2{1, bby}))
	c := hash21(i.add(vec2{0, 1}))
	d := hash21(i.add(vec2{1, 1}))
	ux := f.x * f.x * (3 - 2*f.x)
	uy := f.y * f.y * (3 - 2*f.y)
	return mix(mix(a, b, ux), mix(c, d, ux), uy)
}
