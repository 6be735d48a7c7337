// SPDX-License-Identifier: MIT

/*
Package bitint holds the small integer helpers the analysis chain needs when
sizing FFT blocks. Everything here is allocation free and safe to call from the
audio callback.

Usage:

	// Round a requested analysis block up to something the FFT accepts.
	block := bitint.NextPowerOfTwo(500) // 512

	// Reject a configured block size early.
	if !bitint.IsPowerOfTwo(cfg.FrameSize) { ... }

	// Number of magnitude bins a real FFT of n points produces.
	bins := bitint.SpectrumBins(512) // 257

NextPowerOfTwo subtracts one before taking the bit length so that exact powers
of two map to themselves: Len(7) is 3 and 1<<3 is 8, whereas Len(8) would be 4.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Non-positive sizes
// map to 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return int(1 << bits.Len64(uint64(size-1)))
}

// IsPowerOfTwo reports whether n is a positive power of two. Powers of two
// have a single bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// SpectrumBins returns the number of non-redundant bins (n/2 + 1) produced by
// a real FFT of n points. It returns 0 for n <= 0.
func SpectrumBins(n int) int {
	if n <= 0 {
		return 0
	}
	return n/2 + 1
}
