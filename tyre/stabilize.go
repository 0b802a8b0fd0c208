// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package tyre

import "math"

// State is the part of a Pipeline carried from one frame to the next.
type State struct {
	PrevProfile Profile
	HasPrevious bool
	// History holds past stabilized detections, oldest first. Only the first
	// Count entries are valid.
	History [MaxPersistence]Span
	Count   int
}

// last returns the most recent stored detection. The temporal clamp
// compares against it, not against the oldest entry of a full history.
func (s *State) last() (Span, bool) {
	if s.Count == 0 {
		return Span{}, false
	}
	return s.History[s.Count-1], true
}

// push appends sp, evicting the oldest entry once depth entries are stored.
func (s *State) push(sp Span, depth int) {
	if s.Count < depth {
		s.History[s.Count] = sp
		s.Count++
		return
	}
	copy(s.History[:depth-1], s.History[1:depth])
	s.History[depth-1] = sp
}

// persistenceWeights returns the quadratic weights 1², 2², ..., (depth+1)².
// The last one applies to the current frame.
func persistenceWeights(depth int) [MaxPersistence + 1]float64 {
	var w [MaxPersistence + 1]float64
	for i := 0; i <= depth; i++ {
		w[i] = float64((i + 1) * (i + 1))
	}
	return w
}

// clampGeometry pulls the span width towards [MinTyreWidth, MaxTyreWidth]
// by moving both edges by half the deficit, then keeps the span inside the
// sensor. An odd deficit leaves the width one column short of the bound.
func clampGeometry(s Span, c *Config) Span {
	if w := s.Width(); w < c.MinTyreWidth {
		half := (c.MinTyreWidth - w) / 2
		s.Left -= half
		s.Right += half
		s = reflect(s)
	} else if w > c.MaxTyreWidth {
		half := (w - c.MaxTyreWidth) / 2
		s.Left += half
		s.Right -= half
	}
	return clampSpan(s)
}

// clampTemporal limits the width change relative to the previous detection
// to MaxWidthChangeRatio of its width.
func clampTemporal(s Span, prev Span, c *Config) Span {
	pw := float64(prev.Width())
	change := pw * c.MaxWidthChangeRatio
	w := s.Width()
	if hi := int(math.Floor(pw + change)); w > hi {
		s = resize(s, hi-w)
	} else if lo := int(math.Ceil(pw - change)); w < lo {
		s = resize(s, lo-w)
	}
	return clampSpan(s)
}

// resize grows (d > 0) or shrinks (d < 0) the span by exactly d columns, d/2
// on the left and the remainder on the right.
func resize(s Span, d int) Span {
	half := d / 2
	s.Left -= half
	s.Right += d - half
	return reflect(s)
}

// reflect moves the overflow past one edge of the sensor to the other side.
func reflect(s Span) Span {
	if s.Left < 0 {
		s.Right -= s.Left
		s.Left = 0
	}
	if s.Right > Width-1 {
		s.Left -= s.Right - (Width - 1)
		s.Right = Width - 1
	}
	return s
}

func clampSpan(s Span) Span {
	s.Left = max(0, min(s.Left, Width-1))
	s.Right = max(s.Left, min(s.Right, Width-1))
	return s
}

// stabilize runs the geometry, temporal continuity and persistence
// constraints in that order and records the result in the history.
func stabilize(s Span, st *State, c *Config, weights *[MaxPersistence + 1]float64) Span {
	s = clampGeometry(s, c)
	if prev, ok := st.last(); ok {
		s = clampTemporal(s, prev, c)
	}
	depth := c.PersistenceFrames
	if st.Count < depth {
		st.push(s, depth)
		return s
	}
	wl := weights[depth] * float64(s.Left)
	wr := weights[depth] * float64(s.Right)
	total := weights[depth]
	for i := 0; i < depth; i++ {
		wl += weights[i] * float64(st.History[i].Left)
		wr += weights[i] * float64(st.History[i].Right)
		total += weights[i]
	}
	s = Span{Left: int(wl / total), Right: int(wr / total)}
	st.push(s, depth)
	return s
}
