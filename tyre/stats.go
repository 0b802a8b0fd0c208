// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package tyre

import (
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// madScale makes the median absolute deviation a consistent estimator of the
// standard deviation for normally distributed data.
const madScale = 1.4826

// median returns the median of v. v is sorted in place.
//
// Even counts return the mean of the two middle values. Returns 0 when empty.
func median(v []float64) float64 {
	n := len(v)
	if n == 0 {
		return 0
	}
	slices.Sort(v)
	if n%2 == 0 {
		return (v[n/2-1] + v[n/2]) / 2
	}
	return v[n/2]
}

// mad returns the scaled median absolute deviation of v around med. scratch
// must be at least as long as v.
func mad(v []float64, med float64, scratch []float64) float64 {
	d := scratch[:len(v)]
	for i, x := range v {
		if x < med {
			d[i] = med - x
		} else {
			d[i] = x - med
		}
	}
	return median(d) * madScale
}

// ZoneStats summarizes the raw temperatures of one lateral zone.
type ZoneStats struct {
	Avg    float64
	Median float64
	MAD    float64
	Min    float64
	Max    float64
	Range  float64
	StdDev float64 // Population standard deviation.
	Count  int
}

// zoneStats computes ZoneStats over columns [start, end] of the band rows of
// the raw frame.
func zoneStats(f *Frame, start, end int) ZoneStats {
	var buf, scratch [BandRows * Width]float64
	v := buf[:0]
	for y := BandStart; y < BandStart+BandRows; y++ {
		for x := start; x <= end; x++ {
			v = append(v, float64(f.At(x, y)))
		}
	}
	if len(v) == 0 {
		return ZoneStats{}
	}
	z := ZoneStats{
		Min:   floats.Min(v),
		Max:   floats.Max(v),
		Count: len(v),
	}
	z.Avg, z.StdDev = stat.PopMeanStdDev(v, nil)
	z.Range = z.Max - z.Min
	z.Median = median(v)
	z.MAD = mad(v, z.Median, scratch[:])
	return z
}
