// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package tyre

// localRadius is the half width of the window used for the seed local MAD.
const localRadius = 2

// Span is an inclusive column range.
type Span struct {
	Left  int
	Right int
}

// Width returns the number of columns covered.
func (s Span) Width() int {
	return s.Right - s.Left + 1
}

// gate is the outcome of the global statistics over the smoothed profile.
type gate struct {
	median   float64
	mad      float64
	delta    float64
	inverted bool
}

func newGate(p *Profile, c *Config) gate {
	var buf, scratch Profile
	buf = *p
	g := gate{median: median(buf[:])}
	g.mad = mad(p[:], g.median, scratch[:])
	g.delta = max(c.DeltaFloor, c.DeltaMultiplier*g.mad)
	g.inverted = p[c.CentreCol] < g.median-g.delta
	return g
}

// contrasts returns true if v stands out of the background in the direction
// of the tyre.
func (g *gate) contrasts(v float64) bool {
	if g.inverted {
		return v <= g.median-g.delta
	}
	return v >= g.median+g.delta
}

// grow expands a region from the seed column. A column joins the region when
// it is close to the seed temperature or when it contrasts with the
// background. Up to MaxFailCount consecutive misses are tolerated before the
// growth stops; the boundary is the last column that joined.
func grow(p *Profile, c *Config, g *gate) Span {
	seed := c.CentreCol
	seedTemp := p[seed]
	lo := max(0, seed-localRadius)
	hi := min(Width-1, seed+localRadius)
	var win, scratch [2*localRadius + 1]float64
	n := copy(win[:], p[lo:hi+1])
	localMAD := mad(p[lo:hi+1], median(win[:n]), scratch[:])
	k := max(c.KFloor, c.KMultiplier*localMAD)

	accept := func(v float64) bool {
		d := v - seedTemp
		if d < 0 {
			d = -d
		}
		return d <= k || g.contrasts(v)
	}

	s := Span{Left: seed, Right: seed}
	for x, fails := seed-1, 0; x >= 0; x-- {
		if accept(p[x]) {
			s.Left = x
			fails = 0
		} else if fails++; fails > c.MaxFailCount {
			break
		}
	}
	for x, fails := seed+1, 0; x < Width; x++ {
		if accept(p[x]) {
			s.Right = x
			fails = 0
		} else if fails++; fails > c.MaxFailCount {
			break
		}
	}
	return s
}
