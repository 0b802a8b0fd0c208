// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package tyre

import (
	"strings"
)

// Warning is a bitmask of conditions worth flagging to the consumer.
type Warning uint8

// Valid values for Warning.
const (
	WarnHighGradient  Warning = 0x01 // Lateral gradient above GradientWarning.
	WarnHighVariance  Warning = 0x02 // Centre zone range above VarianceWarning.
	WarnLowConfidence Warning = 0x04
	WarnInverted      Warning = 0x08 // Tyre colder than the background.
	WarnClipped       Warning = 0x10 // Span touches an edge of the sensor.
	WarnZoneSpread    Warning = 0x20 // Zone averages differ by more than ZoneSpreadWarning.
	WarnHighTemp      Warning = 0x40
	WarnSanitized     Warning = 0x80 // Input frame had non-finite pixels.
)

var warningNames = [...]string{
	"high_gradient",
	"high_variance",
	"low_confidence",
	"inverted",
	"clipped",
	"zone_spread",
	"high_temp",
	"sanitized",
}

// Names returns the name of each bit set.
func (w Warning) Names() []string {
	var out []string
	for i, n := range warningNames {
		if w&(1<<uint(i)) != 0 {
			out = append(out, n)
		}
	}
	return out
}

func (w Warning) String() string {
	if w == 0 {
		return "none"
	}
	return strings.Join(w.Names(), "|")
}

// Clip tells which edges of the sensor the detected span touches.
type Clip uint8

// Valid values for Clip.
const (
	ClipNone  Clip = 0
	ClipLeft  Clip = 1
	ClipRight Clip = 2
	ClipBoth  Clip = ClipLeft | ClipRight
)

func (c Clip) String() string {
	switch c {
	case ClipNone:
		return "none"
	case ClipLeft:
		return "left"
	case ClipRight:
		return "right"
	default:
		return "both"
	}
}

// Detection is the stabilized tyre span.
//
// When Detected is false the span covers the whole sensor and Confidence is
// 0.
type Detection struct {
	Detected   bool
	Start      int
	End        int
	Width      int
	Confidence float64
	Gradient   float64
	Inverted   bool
	Clipped    Clip
}

// FrameResult is everything computed for one frame.
type FrameResult struct {
	FrameNumber     uint32
	Inner           ZoneStats
	Centre          ZoneStats
	Outer           ZoneStats
	Detection       Detection
	LateralGradient float64
	Warnings        Warning

	// Global statistics of the smoothed profile.
	MedianTemp float64
	MADGlobal  float64
	Delta      float64
	// Profile is the smoothed lateral profile.
	Profile Profile
}

// Passthrough returns the result emitted when detection is bypassed.
func Passthrough(frame uint32) FrameResult {
	return FrameResult{
		FrameNumber: frame,
		Detection:   Detection{End: Width - 1, Width: Width},
	}
}

func (c *Config) warnings(r *FrameResult) Warning {
	var w Warning
	if r.LateralGradient > c.GradientWarning {
		w |= WarnHighGradient
	}
	if r.Centre.Range > c.VarianceWarning {
		w |= WarnHighVariance
	}
	d := &r.Detection
	if d.Detected {
		if d.Confidence < c.ConfidenceWarning {
			w |= WarnLowConfidence
		}
		if d.Inverted {
			w |= WarnInverted
		}
		if d.Clipped != ClipNone {
			w |= WarnClipped
		}
	}
	lo := min(r.Inner.Avg, r.Centre.Avg, r.Outer.Avg)
	hi := max(r.Inner.Avg, r.Centre.Avg, r.Outer.Avg)
	if hi-lo > c.ZoneSpreadWarning {
		w |= WarnZoneSpread
	}
	if max(r.Inner.Max, r.Centre.Max, r.Outer.Max) > c.HighTempWarning {
		w |= WarnHighTemp
	}
	return w
}
