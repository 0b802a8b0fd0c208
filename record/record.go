// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package record serializes frame results, either as a compact CSV line or as
// a JSON document.
//
// Non-finite values are always written as 0.
package record

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/maruel/go-tyre/tyre"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Header names the columns of the compact line.
const Header = "frame,fps,inner_avg,inner_median,centre_avg,centre_median,outer_avg,outer_median,width,confidence,detected"

// Format selects the serialization.
type Format int

// Valid values for Format.
const (
	FormatCompact Format = iota
	FormatJSON
)

// ParseFormat parses "compact" or "json".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "compact", "csv":
		return FormatCompact, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("unknown format %q", s)
	}
}

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "compact"
}

// Line is the content of a compact line.
type Line struct {
	Frame        uint32
	FPS          float64
	InnerAvg     float64
	InnerMedian  float64
	CentreAvg    float64
	CentreMedian float64
	OuterAvg     float64
	OuterMedian  float64
	Width        int
	Confidence   float64
	Detected     bool
}

// AppendCompact appends the compact line for r, without trailing newline.
func AppendCompact(b []byte, r *tyre.FrameResult, fps float64) []byte {
	b = strconv.AppendUint(b, uint64(r.FrameNumber), 10)
	for _, v := range [...]float64{fps, r.Inner.Avg, r.Inner.Median, r.Centre.Avg, r.Centre.Median, r.Outer.Avg, r.Outer.Median} {
		b = append(b, ',')
		b = strconv.AppendFloat(b, finite(v), 'f', 1, 64)
	}
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(r.Detection.Width), 10)
	b = append(b, ',')
	b = strconv.AppendFloat(b, finite(r.Detection.Confidence), 'f', 2, 64)
	if r.Detection.Detected {
		return append(b, ",1"...)
	}
	return append(b, ",0"...)
}

// ParseCompact decodes a line produced by AppendCompact.
func ParseCompact(s string) (Line, error) {
	var l Line
	f := strings.Split(strings.TrimSpace(s), ",")
	if len(f) != 11 {
		return l, fmt.Errorf("expected 11 fields, got %d", len(f))
	}
	n, err := strconv.ParseUint(f[0], 10, 32)
	if err != nil {
		return l, err
	}
	l.Frame = uint32(n)
	for i, p := range [...]*float64{&l.FPS, &l.InnerAvg, &l.InnerMedian, &l.CentreAvg, &l.CentreMedian, &l.OuterAvg, &l.OuterMedian} {
		if *p, err = strconv.ParseFloat(f[i+1], 64); err != nil {
			return l, err
		}
	}
	if l.Width, err = strconv.Atoi(f[8]); err != nil {
		return l, err
	}
	if l.Confidence, err = strconv.ParseFloat(f[9], 64); err != nil {
		return l, err
	}
	switch f[10] {
	case "0":
	case "1":
		l.Detected = true
	default:
		return l, errors.New("detected must be 0 or 1")
	}
	return l, nil
}

// Zone is the JSON form of tyre.ZoneStats.
type Zone struct {
	Avg    float64 `json:"avg"`
	Median float64 `json:"median"`
	MAD    float64 `json:"mad"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Range  float64 `json:"range"`
	StdDev float64 `json:"std_dev"`
}

// Analysis holds the per zone statistics.
type Analysis struct {
	Inner           Zone    `json:"inner"`
	Centre          Zone    `json:"centre"`
	Outer           Zone    `json:"outer"`
	LateralGradient float64 `json:"lateral_gradient"`
}

// Detection is the JSON form of tyre.Detection.
type Detection struct {
	Detected   bool    `json:"detected"`
	SpanStart  int     `json:"span_start"`
	SpanEnd    int     `json:"span_end"`
	TyreWidth  int     `json:"tyre_width"`
	Confidence float64 `json:"confidence"`
	Inverted   bool    `json:"inverted"`
	Clipped    string  `json:"clipped"`
}

// Record is the structured document emitted per frame.
type Record struct {
	FrameNumber        uint32              `json:"frame_number"`
	FPS                float64             `json:"fps"`
	Analysis           Analysis            `json:"analysis"`
	Detection          Detection           `json:"detection"`
	TemperatureProfile [tyre.Width]float64 `json:"temperature_profile"`
	Warnings           []string            `json:"warnings"`
}

// New converts r.
func New(r *tyre.FrameResult, fps float64) *Record {
	d := &r.Detection
	out := &Record{
		FrameNumber: r.FrameNumber,
		FPS:         round(fps, 10),
		Analysis: Analysis{
			Inner:           zone(&r.Inner),
			Centre:          zone(&r.Centre),
			Outer:           zone(&r.Outer),
			LateralGradient: round(r.LateralGradient, 100),
		},
		Detection: Detection{
			Detected:   d.Detected,
			SpanStart:  d.Start,
			SpanEnd:    d.End,
			TyreWidth:  d.Width,
			Confidence: round(d.Confidence, 100),
			Inverted:   d.Inverted,
			Clipped:    d.Clipped.String(),
		},
		Warnings: r.Warnings.Names(),
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	for i, v := range r.Profile {
		out.TemperatureProfile[i] = round(v, 10)
	}
	return out
}

// Marshal returns the JSON document for r.
func Marshal(r *tyre.FrameResult, fps float64) ([]byte, error) {
	return json.Marshal(New(r, fps))
}

// Unmarshal decodes a document produced by Marshal.
func Unmarshal(b []byte) (*Record, error) {
	r := &Record{}
	if err := json.Unmarshal(b, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Writer emits one record per line.
type Writer struct {
	// Header prints Header before the first compact line.
	Header bool

	w      io.Writer
	format Format
	buf    []byte
	lines  int
}

// NewWriter returns a Writer.
func NewWriter(w io.Writer, f Format) *Writer {
	return &Writer{w: w, format: f, buf: make([]byte, 0, 512)}
}

// Emit writes the record for r.
//
// The frame itself is not serialized.
func (w *Writer) Emit(r *tyre.FrameResult, _ *tyre.Frame, fps float64) error {
	w.buf = w.buf[:0]
	if w.format == FormatJSON {
		b, err := Marshal(r, fps)
		if err != nil {
			return err
		}
		w.buf = append(w.buf, b...)
	} else {
		if w.Header && w.lines == 0 {
			w.buf = append(w.buf, Header...)
			w.buf = append(w.buf, '\n')
		}
		w.buf = AppendCompact(w.buf, r, fps)
	}
	w.buf = append(w.buf, '\n')
	w.lines++
	_, err := w.w.Write(w.buf)
	return err
}

func zone(z *tyre.ZoneStats) Zone {
	return Zone{
		Avg:    round(z.Avg, 10),
		Median: round(z.Median, 10),
		MAD:    round(z.MAD, 100),
		Min:    round(z.Min, 10),
		Max:    round(z.Max, 10),
		Range:  round(z.Range, 10),
		StdDev: round(z.StdDev, 100),
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func round(v, scale float64) float64 {
	return math.Round(finite(v)*scale) / scale
}
