// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const logFloor = 1e-10

// mfcc holds a triangular mel filterbank and the cosine transform applied to
// its log energies.
type mfcc struct {
	bank   [][]float64 // bank[m][k] weight of bin k in band m.
	dct    *fourier.DCT
	energy []float64
	out    []float64
	coeffs int
}

func hzToMel(hz float64) float64  { return 2595 * math.Log10(1+hz/700) }
func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

func newMFCC(bands, coeffs, fftSize int, sampleRate, lowHz, highHz float64) *mfcc {
	return &mfcc{
		bank:   melFilterBank(bands, fftSize, sampleRate, lowHz, highHz),
		dct:    fourier.NewDCT(bands),
		energy: make([]float64, bands),
		out:    make([]float64, bands),
		coeffs: coeffs,
	}
}

// melFilterBank builds bands triangular filters evenly spaced on the mel scale
// between lowHz and highHz, over fftSize/2+1 bins.
func melFilterBank(bands, fftSize int, sampleRate, lowHz, highHz float64) [][]float64 {
	bins := fftSize/2 + 1
	binHz := sampleRate / float64(fftSize)

	lowMel, highMel := hzToMel(lowHz), hzToMel(highHz)
	edges := make([]float64, bands+2)
	for i := range edges {
		edges[i] = melToHz(lowMel + (highMel-lowMel)*float64(i)/float64(bands+1))
	}

	bank := make([][]float64, bands)
	for m := range bands {
		left, centre, right := edges[m], edges[m+1], edges[m+2]
		weights := make([]float64, bins)
		for k := range bins {
			f := float64(k) * binHz
			switch {
			case f > left && f <= centre && centre > left:
				weights[k] = (f - left) / (centre - left)
			case f > centre && f < right && right > centre:
				weights[k] = (right - f) / (right - centre)
			}
		}
		bank[m] = weights
	}
	return bank
}

// compute returns a new slice of cepstral coefficients for a magnitude
// spectrum.
func (c *mfcc) compute(mags []float64) []float64 {
	for m, weights := range c.bank {
		var sum float64
		for k, w := range weights {
			if w == 0 || k >= len(mags) {
				continue
			}
			sum += w * mags[k] * mags[k]
		}
		c.energy[m] = math.Log(max(sum, logFloor))
	}
	c.dct.Transform(c.out, c.energy)

	result := make([]float64, c.coeffs)
	copy(result, c.out)
	return result
}
