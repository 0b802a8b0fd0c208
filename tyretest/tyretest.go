// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package tyretest implements a fake thermal sensor looking at a tyre and
// frame builders for tests.
package tyretest

import (
	"math/rand"
	"time"

	"github.com/maruel/go-tyre/tyre"
)

// Fake is a fake sensor looking at a slowly wandering hot tyre.
//
// It implements sensor.Source.
type Fake struct {
	// Period is the delay between frames. Defaults to ~8Hz when created with
	// NewFake.
	Period time.Duration
	// Brake adds a glowing brake disc on the left edge of the band.
	Brake bool

	noise *noise
	count uint32
}

// NewFake returns a fake sensor. The sequence of frames is deterministic.
func NewFake() *Fake {
	return &Fake{Period: 125 * time.Millisecond, noise: makeNoise()}
}

// NextFrame implements sensor.Source.
func (f *Fake) NextFrame(img *tyre.Frame) error {
	if f.Period != 0 {
		time.Sleep(f.Period)
	}
	f.count++
	f.noise.update()
	f.noise.render(img)
	if f.Brake {
		for y := tyre.BandStart; y < tyre.BandStart+tyre.BandRows-1; y++ {
			img.Set(0, y, 400)
			img.Set(1, y, 350)
		}
	}
	return nil
}

// Frames returns the number of frames generated.
func (f *Fake) Frames() uint32 {
	return f.count
}

// Close implements io.Closer.
func (f *Fake) Close() error {
	return nil
}

// Uniform returns a frame at the same temperature everywhere.
func Uniform(t float32) *tyre.Frame {
	f := &tyre.Frame{}
	f.Fill(t)
	return f
}

// Band returns a frame with a vertical band at temperature t over columns
// [left, right] in front of a background warming by 0.3°C per column from
// bg.
func Band(bg, t float32, left, right int) *tyre.Frame {
	f := &tyre.Frame{}
	for y := 0; y < tyre.Height; y++ {
		for x := 0; x < tyre.Width; x++ {
			v := bg + 0.3*float32(x)
			if x >= left && x <= right {
				v = t
			}
			f.Set(x, y, v)
		}
	}
	return f
}

//

// noise is cheezy but gets us going for testing without a device.
type noise struct {
	rand    *rand.Rand
	ambient float64
	centre  float64 // Column of the centre of the tyre.
	width   float64
	temp    float64
	camber  float64 // Inner to outer temperature difference.
}

func makeNoise() *noise {
	n := &noise{rand: rand.New(rand.NewSource(0))}
	n.ambient = 25 + n.rand.NormFloat64()
	n.centre = 16 + n.rand.NormFloat64()
	n.width = 16 + n.rand.NormFloat64()*2
	n.temp = 60 + n.rand.NormFloat64()*5
	n.camber = n.rand.NormFloat64() * 4
	return n
}

func (n *noise) update() {
	n.centre = clamp(n.centre+n.rand.NormFloat64()*0.1, 12, 20)
	n.width = clamp(n.width+n.rand.NormFloat64()*0.1, 10, 22)
	n.temp = clamp(n.temp+n.rand.NormFloat64()*0.2, 35, 110)
	n.camber = clamp(n.camber+n.rand.NormFloat64()*0.1, -8, 8)
}

func (n *noise) render(f *tyre.Frame) {
	left := n.centre - n.width/2
	right := n.centre + n.width/2
	for y := 0; y < tyre.Height; y++ {
		for x := 0; x < tyre.Width; x++ {
			fx := float64(x)
			v := n.ambient
			if fx >= left && fx <= right {
				// Linear from inner to outer shoulder.
				v = n.temp + n.camber*((fx-left)/(right-left)-0.5)
			}
			f.Set(x, y, float32(v+n.rand.NormFloat64()*0.2))
		}
	}
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
