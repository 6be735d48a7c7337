package conditioner

import "slices"

// HistoryCapacity bounds the number of onset timestamps kept.
const HistoryCapacity = 60

// OnsetHistory is a fixed-capacity FIFO of onset timestamps in seconds.
type OnsetHistory struct {
	times [HistoryCapacity]float64
	start int
	n     int
	iois  [HistoryCapacity - 1]float64 // Scratch for Median.
}

// Push appends t, evicting the oldest entry when full.
func (h *OnsetHistory) Push(t float64) {
	if h.n < HistoryCapacity {
		h.times[(h.start+h.n)%HistoryCapacity] = t
		h.n++
		return
	}
	h.times[h.start] = t
	h.start = (h.start + 1) % HistoryCapacity
}

func (h *OnsetHistory) Len() int { return h.n }

// At returns the i-th oldest timestamp.
func (h *OnsetHistory) At(i int) float64 {
	return h.times[(h.start+i)%HistoryCapacity]
}

// Values returns the timestamps oldest first.
func (h *OnsetHistory) Values() []float64 {
	out := make([]float64, h.n)
	for i := range out {
		out[i] = h.At(i)
	}
	return out
}

func (h *OnsetHistory) Clear() {
	h.start = 0
	h.n = 0
}

// MedianInterval returns the median gap between consecutive timestamps,
// averaging the middle pair for an even count. It returns 0 with fewer than
// two entries.
func (h *OnsetHistory) MedianInterval() float64 {
	if h.n < 2 {
		return 0
	}
	iois := h.iois[:h.n-1]
	for i := range iois {
		iois[i] = h.At(i+1) - h.At(i)
	}
	slices.Sort(iois)

	m := len(iois) / 2
	if len(iois)%2 == 1 {
		return iois[m]
	}
	return 0.5 * (iois[m-1] + iois[m])
}
