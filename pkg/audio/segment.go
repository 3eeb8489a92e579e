package audio

import (
	"math"
	"sort"
)

// SlidingWindows splits a signal into overlapping fixed-length windows.
// Window and hop are given in seconds. If the signal is shorter than one
// window, the result is a single segment containing the whole signal
// (no padding). The returned segments share the input's backing array.
func SlidingWindows(b Buffer, windowSeconds, hopSeconds float64) []Buffer {
	win := int(windowSeconds * float64(b.Rate))
	hop := int(hopSeconds * float64(b.Rate))
	if win <= 0 || hop <= 0 || len(b.Samples) < win {
		return []Buffer{b}
	}
	var segs []Buffer
	for start := 0; start+win <= len(b.Samples); start += hop {
		segs = append(segs, Buffer{Samples: b.Samples[start : start+win], Rate: b.Rate})
	}
	return segs
}

// PruneByEnergy ranks segments by RMS descending and keeps the top
// max(minKeep, round(keepFrac*n)). A single segment is returned as-is.
// The kept segments come back in energy order, highest first.
//
// This drops likely-silent or noisy windows before they reach the
// embedding model while never discarding everything: a uniformly quiet
// recording still keeps its minKeep best windows.
func PruneByEnergy(segs []Buffer, keepFrac float64, minKeep int) []Buffer {
	if len(segs) <= 1 {
		return segs
	}
	keep := int(math.Round(keepFrac * float64(len(segs))))
	if keep < minKeep {
		keep = minKeep
	}
	if keep > len(segs) {
		keep = len(segs)
	}

	idx := make([]int, len(segs))
	rms := make([]float64, len(segs))
	for i, s := range segs {
		idx[i] = i
		rms[i] = s.RMS()
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return rms[idx[a]] > rms[idx[b]]
	})

	kept := make([]Buffer, keep)
	for i := 0; i < keep; i++ {
		kept[i] = segs[idx[i]]
	}
	return kept
}
