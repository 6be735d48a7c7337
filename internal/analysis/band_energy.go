package analysis

import "math"

// FrequencyBand names a frequency range summarised by BandLevels.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// DefaultBands covers the audible range in six perceptual groups.
var DefaultBands = []FrequencyBand{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000, HighHz: math.Inf(1)},
}

// BandLevel is the normalised level of one band, in [0, 1].
type BandLevel struct {
	Name  string
	Level float64
}

// BandLevels summarises a magnitude spectrum as the RMS magnitude of each
// band, scaled by the FFT size and clamped to [0, 1]. Bands with no bins at
// this resolution read 0.
func BandLevels(spectrum []float64, sampleRate float64, bands []FrequencyBand) []BandLevel {
	levels := make([]BandLevel, len(bands))
	for i, b := range bands {
		levels[i].Name = b.Name
	}
	if len(spectrum) < 2 || sampleRate <= 0 {
		return levels
	}

	fftSize := 2 * (len(spectrum) - 1)
	binHz := sampleRate / float64(fftSize)
	energy := make([]float64, len(bands))
	counts := make([]int, len(bands))

	for k, m := range spectrum {
		freq := float64(k) * binHz
		for i, b := range bands {
			if freq >= b.LowHz && freq < b.HighHz {
				energy[i] += m * m
				counts[i]++
				break
			}
		}
	}

	// A full scale sine under a Hann window peaks near fftSize/4.
	scale := 4 / float64(fftSize)
	for i := range bands {
		if counts[i] == 0 {
			continue
		}
		v := math.Sqrt(energy[i]/float64(counts[i])) * scale
		if math.IsNaN(v) {
			v = 0
		}
		levels[i].Level = math.Min(1, v)
	}
	return levels
}
