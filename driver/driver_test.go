// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package driver

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/maruel/go-tyre/regmap"
	"github.com/maruel/go-tyre/tyre"
	"github.com/maruel/go-tyre/tyretest"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpiotest"
)

// script replays frames; a nil frame is a read failure.
type script struct {
	frames []*tyre.Frame
}

func (s *script) NextFrame(f *tyre.Frame) error {
	if len(s.frames) == 0 {
		return io.EOF
	}
	n := s.frames[0]
	s.frames = s.frames[1:]
	if n == nil {
		return errors.New("i/o error")
	}
	*f = *n
	return nil
}

type collect struct {
	results []tyre.FrameResult
	err     error
}

func (c *collect) Emit(r *tyre.FrameResult, f *tyre.Frame, fps float64) error {
	c.results = append(c.results, *r)
	return c.err
}

func newLoop(t *testing.T, frames ...*tyre.Frame) (*Loop, *collect) {
	p, err := tyre.New(tyre.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	c := &collect{}
	return &Loop{Source: &script{frames: frames}, Pipeline: p, Sinks: []Sink{c}}, c
}

func TestLoop_failedReadKeepsState(t *testing.T) {
	band := tyretest.Band(20, 60, 9, 22)
	l, c := newLoop(t, band, nil, band)
	if err := l.Step(); err != nil {
		t.Fatal(err)
	}
	before := l.Pipeline.State()
	if err := l.Step(); err == nil {
		t.Fatal("expected failure")
	}
	if diff := cmp.Diff(before, l.Pipeline.State()); diff != "" {
		t.Fatalf("state changed (-want +got):\n%s", diff)
	}
	if err := l.Step(); err != nil {
		t.Fatal(err)
	}
	if len(c.results) != 2 || c.results[1].FrameNumber != 2 {
		t.Fatalf("%+v", c.results)
	}
	if s := l.Stats(); s.Frames != 2 || s.Failures != 1 {
		t.Fatalf("%+v", s)
	}
	if err := l.Step(); err != io.EOF {
		t.Fatal(err)
	}
}

func TestLoop_sanitize(t *testing.T) {
	f := tyretest.Band(20, 60, 9, 22)
	f.Pix[0] = float32(math.NaN())
	l, c := newLoop(t, f)
	if err := l.Step(); err != nil {
		t.Fatal(err)
	}
	r := c.results[0]
	if r.Warnings&tyre.WarnSanitized == 0 || !r.Detection.Detected {
		t.Fatalf("%+v", r)
	}
	if s := l.Stats(); s.Sanitized != 1 {
		t.Fatalf("%+v", s)
	}
}

func TestLoop_regmap(t *testing.T) {
	band := tyretest.Band(20, 60, 9, 22)
	l, c := newLoop(t, band, band, band, band, band)
	m := regmap.New(regmap.DefaultAddress, binary.LittleEndian)
	ctl := regmap.NewController(m, binary.LittleEndian)
	l.Map = m
	serial := &collect{}
	l.Serial = []Sink{serial}
	pin := &gpiotest.Pin{N: "LED"}
	l.LED = pin

	for i := 0; i < 2; i++ {
		if err := l.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if pin.L != gpio.Low {
		t.Fatal("LED should have toggled twice")
	}
	if l.Pipeline.State().Count != 2 {
		t.Fatal(l.Pipeline.State())
	}

	// Raw mode bypasses the pipeline and resets it.
	if err := ctl.SetRawMode(true); err != nil {
		t.Fatal(err)
	}
	if err := l.Step(); err != nil {
		t.Fatal(err)
	}
	r := c.results[2]
	if r.Detection.Detected || r.FrameNumber != 3 {
		t.Fatalf("%+v", r)
	}
	if st := l.Pipeline.State(); st.Count != 0 || st.HasPrevious {
		t.Fatalf("%+v", st)
	}

	// Back to detection; the pipeline starts over but the frame number
	// doesn't go backward.
	if err := ctl.SetRawMode(false); err != nil {
		t.Fatal(err)
	}
	if err := ctl.SetOutputMode(regmap.OutputBus); err != nil {
		t.Fatal(err)
	}
	if err := l.Step(); err != nil {
		t.Fatal(err)
	}
	if r := c.results[3]; !r.Detection.Detected || r.FrameNumber != 4 {
		t.Fatalf("%+v", r)
	}
	if len(serial.results) != 3 {
		t.Fatalf("serial output should be disabled: %d", len(serial.results))
	}

	// Reset command.
	if err := ctl.Command(regmap.CmdReset); err != nil {
		t.Fatal(err)
	}
	if err := l.Step(); err != nil {
		t.Fatal(err)
	}
	if r := c.results[4]; r.FrameNumber != 5 {
		t.Fatalf("%+v", r)
	}
	s, err := ctl.Status()
	if err != nil {
		t.Fatal(err)
	}
	if !s.Detected || s.Frame != 5 || s.SpanStart != 9 || s.SpanEnd != 22 {
		t.Fatalf("%+v", s)
	}
	if st := l.Stats(); st.Resets != 3 {
		t.Fatalf("%+v", st)
	}
}

func TestLoop_sinkError(t *testing.T) {
	l, c := newLoop(t, tyretest.Uniform(20))
	c.err = errors.New("disk full")
	if err := l.Step(); err == nil {
		t.Fatal("expected error")
	}
	if s := l.Stats(); s.SinkErrors != 1 || s.Frames != 1 {
		t.Fatalf("%+v", s)
	}
}

func TestLoop_run(t *testing.T) {
	band := tyretest.Band(20, 60, 9, 22)
	l, c := newLoop(t, band, nil, band, band)
	if err := l.Run(make(chan struct{})); err != nil {
		t.Fatal(err)
	}
	if len(c.results) != 3 {
		t.Fatal(len(c.results))
	}

	stop := make(chan struct{})
	close(stop)
	l, c = newLoop(t, band)
	if err := l.Run(stop); err != nil {
		t.Fatal(err)
	}
	if len(c.results) != 0 {
		t.Fatal(len(c.results))
	}
}
