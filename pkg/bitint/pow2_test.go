// SPDX-License-Identifier: MIT
package bitint

import (
	"fmt"
	"testing"
)

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{-10, 1},
		{0, 1},
		{1, 1},
		{64, 64},     // Smallest accepted block
		{500, 512},   // Rounds a near miss up to the default block
		{513, 1024},  // Just past a power of two
		{8191, 8192}, // Largest accepted block
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%d", tt.n, tt.expected), func(t *testing.T) {
			if got := NextPowerOfTwo(tt.n); got != tt.expected {
				t.Errorf("NextPowerOfTwo(%d) = %d, expected %d", tt.n, got, tt.expected)
			}
			if tt.n > 0 && !IsPowerOfTwo(NextPowerOfTwo(tt.n)) {
				t.Errorf("NextPowerOfTwo(%d) is not a power of two", tt.n)
			}
		})
	}
}

// Block sizes as they reach the FFT: only powers of two are accepted, and each
// yields n/2+1 magnitude bins.
func TestBlockSizing(t *testing.T) {
	tests := []struct {
		n    int
		ok   bool
		bins int
	}{
		{-2, false, 0},
		{0, false, 0},
		{2, true, 2},
		{500, false, 251},
		{512, true, 257},
		{1 << 13, true, 1<<12 + 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			if got := IsPowerOfTwo(tt.n); got != tt.ok {
				t.Errorf("IsPowerOfTwo(%d) = %v, expected %v", tt.n, got, tt.ok)
			}
			if got := SpectrumBins(tt.n); got != tt.bins {
				t.Errorf("SpectrumBins(%d) = %d, expected %d", tt.n, got, tt.bins)
			}
		})
	}
}

func BenchmarkIsPowerOfTwo(b *testing.B) {
	var i int
	b.ReportAllocs()
	for b.Loop() {
		IsPowerOfTwo(i % maxBlock)
		i++
	}
}

const maxBlock = 8192
