// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package tyre

import (
	"math"
)

// Sensor geometry.
const (
	Width  = 32
	Height = 24
	Pixels = Width * Height

	// BandStart is the first row of the horizontal band used to build the
	// lateral profile.
	BandStart = 10
	// BandRows is the number of rows in the band.
	BandRows = 4
)

// Frame is one thermal frame in °C, row-major.
//
// It is essentially a [Height][Width]float32 but kept flat so it can be
// streamed as is.
type Frame struct {
	Pix [Pixels]float32 // 3072 bytes.
}

// At returns the temperature at column x, row y.
func (f *Frame) At(x, y int) float32 {
	return f.Pix[y*Width+x]
}

// Set sets the temperature at column x, row y.
func (f *Frame) Set(x, y int, t float32) {
	f.Pix[y*Width+x] = t
}

// Fill sets every pixel to t.
func (f *Frame) Fill(t float32) {
	for i := range f.Pix {
		f.Pix[i] = t
	}
}

// Sanitize replaces every NaN or infinite pixel with fill and returns the
// number of pixels replaced.
func (f *Frame) Sanitize(fill float32) int {
	n := 0
	for i, v := range f.Pix {
		if isFinite32(v) {
			continue
		}
		f.Pix[i] = fill
		n++
	}
	return n
}

// MinMax returns the coldest and hottest finite pixels.
//
// Returns 0, 0 if no pixel is finite.
func (f *Frame) MinMax() (float32, float32) {
	min := float32(math.MaxFloat32)
	max := float32(-math.MaxFloat32)
	for _, v := range f.Pix {
		if !isFinite32(v) {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min > max {
		return 0, 0
	}
	return min, max
}

func isFinite32(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}
