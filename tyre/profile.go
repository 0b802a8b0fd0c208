// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package tyre

// Profile is one temperature per sensor column.
type Profile [Width]float64

// extractProfile collapses the band rows of f into one value per column.
//
// Hot pixels (e.g. a glowing brake disc in the field of view) are replaced
// before the median, then each value is clamped to [MinTemp, MaxTemp].
func extractProfile(f *Frame, c *Config, out *Profile) {
	var rows [BandRows][Width]float64
	for r := range rows {
		for x := 0; x < Width; x++ {
			rows[r][x] = float64(f.At(x, BandStart+r))
		}
		removeHotPixels(&rows[r], c.HotPixelThreshold)
	}
	var col [BandRows]float64
	for x := 0; x < Width; x++ {
		for r := range rows {
			col[r] = rows[r][x]
		}
		out[x] = clamp(median(col[:]), c.MinTemp, c.MaxTemp)
	}
}

// removeHotPixels replaces, left to right and in place, every value above
// threshold with the median of its two neighbours. Edge values use their only
// neighbour.
func removeHotPixels(row *[Width]float64, threshold float64) {
	for x := 0; x < Width; x++ {
		if row[x] <= threshold {
			continue
		}
		switch x {
		case 0:
			row[x] = row[1]
		case Width - 1:
			row[x] = row[Width-2]
		default:
			row[x] = (row[x-1] + row[x+1]) / 2
		}
	}
}

// spatialMedian applies a 3-tap median. The edges use the median of their
// two values.
func spatialMedian(in, out *Profile) {
	out[0] = (in[0] + in[1]) / 2
	out[Width-1] = (in[Width-2] + in[Width-1]) / 2
	for x := 1; x < Width-1; x++ {
		out[x] = median3(in[x-1], in[x], in[x+1])
	}
}

func median3(a, b, c float64) float64 {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b = c
	}
	if a > b {
		return a
	}
	return b
}

// ema blends cur into the state's previous profile and stores the result as
// the new previous profile. The first call only seeds the state.
func ema(s *State, alpha float64, cur, out *Profile) {
	if !s.HasPrevious {
		*out = *cur
	} else {
		for x := range out {
			out[x] = alpha*cur[x] + (1-alpha)*s.PrevProfile[x]
		}
	}
	s.PrevProfile = *out
	s.HasPrevious = true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
