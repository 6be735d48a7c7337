package export

import (
	"fmt"
	"os"
	"time"

	"lumen/internal/params"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Plot dimensions.
const (
	PlotWidth  = 8 * vg.Inch
	PlotHeight = 6 * vg.Inch
)

// PlotPNG draws the waveform snapshot and amplitude spectrum of p, stacked,
// to dir/analysis_<unixms>.png. sampleRate labels the spectrum axis.
func PlotPNG(dir string, p params.VisualParameters, sampleRate float64, ts time.Time) (string, error) {
	wave, err := waveformPlot(p)
	if err != nil {
		return "", err
	}
	spec, err := spectrumPlot(p, sampleRate)
	if err != nil {
		return "", err
	}

	img := vgimg.New(PlotWidth, PlotHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      2,
		Cols:      1,
		PadY:      vg.Centimeter,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	plots := [][]*plot.Plot{{wave}, {spec}}
	canvases := plot.Align(plots, tiles, dc)
	for j := range plots {
		for i := range plots[j] {
			plots[j][i].Draw(canvases[j][i])
		}
	}

	path, err := fileName(dir, "analysis", ".png", ts)
	if err != nil {
		return "", err
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create plot: %w", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(file); err != nil {
		file.Close()
		return "", fmt.Errorf("encode plot: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close plot: %w", err)
	}
	logger.Infof("plot saved to %s", path)
	return path, nil
}

func waveformPlot(p params.VisualParameters) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("Waveform at %.2fs (tempo %.1f BPM, z %.2f)", p.Position, p.Tempo, p.LoudnessZ)
	pl.X.Label.Text = "Point"
	pl.Y.Label.Text = "Level"
	pl.Y.Min, pl.Y.Max = 0, 1
	pl.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(p.Waveform))
	for i, v := range p.Waveform {
		pts[i] = plotter.XY{X: float64(i), Y: float64(v)}
	}
	if len(pts) == 0 {
		return pl, nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("waveform line: %w", err)
	}
	pl.Add(line)
	return pl, nil
}

func spectrumPlot(p params.VisualParameters, sampleRate float64) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("Amplitude spectrum (energy %.2f, tone %.2f)", p.Energy, p.Tone)
	pl.X.Label.Text = "Frequency (Hz)"
	pl.Y.Label.Text = "Magnitude"
	pl.Add(plotter.NewGrid())

	if p.Features == nil || len(p.Features.AmplitudeSpectrum) < 2 {
		return pl, nil
	}
	spectrum := p.Features.AmplitudeSpectrum
	binHz := sampleRate / float64(2*(len(spectrum)-1))
	pts := make(plotter.XYs, len(spectrum))
	for i, m := range spectrum {
		pts[i] = plotter.XY{X: float64(i) * binHz, Y: m}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("spectrum line: %w", err)
	}
	pl.Add(line)
	return pl, nil
}
