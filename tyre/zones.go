// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package tyre

// zoneBounds splits s into inner, centre and outer thirds. The remainder of
// the division goes to the centre zone. Each zone has at least one column.
func zoneBounds(s Span) [3]Span {
	third := s.Width() / 3
	z := [3]Span{
		{s.Left, s.Left + third - 1},
		{s.Left + third, s.Right - third},
		{s.Right - third + 1, s.Right},
	}
	for i := range z {
		if z[i].Right < z[i].Left {
			z[i].Right = z[i].Left
		}
		if z[i].Left > s.Right {
			z[i].Left = s.Right
			z[i].Right = s.Right
		}
	}
	return z
}

// analyzeZones fills the zone statistics, gradient and confidence of r for
// the span s.
func analyzeZones(f *Frame, smoothed *Profile, s Span, c *Config, r *FrameResult) {
	z := zoneBounds(s)
	r.Inner = zoneStats(f, z[0].Left, z[0].Right)
	r.Centre = zoneStats(f, z[1].Left, z[1].Right)
	r.Outer = zoneStats(f, z[2].Left, z[2].Right)

	lo, hi := smoothed[s.Left], smoothed[s.Left]
	for x := s.Left + 1; x <= s.Right; x++ {
		lo = min(lo, smoothed[x])
		hi = max(hi, smoothed[x])
	}
	r.LateralGradient = hi - lo

	d := &r.Detection
	d.Start = s.Left
	d.End = s.Right
	d.Width = s.Width()
	d.Gradient = r.LateralGradient
	widthScore := 0.5
	if d.Width >= c.MinTyreWidth && d.Width <= c.MaxTyreWidth {
		widthScore = 1
	}
	d.Confidence = (widthScore + min(r.LateralGradient/10, 1)) / 2
	d.Clipped = ClipNone
	if s.Left == 0 {
		d.Clipped |= ClipLeft
	}
	if s.Right == Width-1 {
		d.Clipped |= ClipRight
	}
}
