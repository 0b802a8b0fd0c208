// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package driver runs the acquisition loop: it reads frames from a source,
// runs them through a tyre.Pipeline and hands the results to sinks.
package driver

import (
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/maruel/go-tyre/regmap"
	"github.com/maruel/go-tyre/sensor"
	"github.com/maruel/go-tyre/tyre"
	"periph.io/x/periph/conn/gpio"
)

// Sink consumes frame results.
//
// f is only valid for the duration of the call.
type Sink interface {
	Emit(r *tyre.FrameResult, f *tyre.Frame, fps float64) error
}

// Stats is the loop health.
type Stats struct {
	Frames     int // Frames processed.
	Failures   int // Failed reads.
	Sanitized  int // Frames with non-finite pixels.
	Resets     int
	SinkErrors int
	FPS        float64
}

// Loop is the acquisition loop. Set the fields before calling Run or Step.
//
// Results carry the number of frames read by the loop, so the frame number
// keeps increasing across pipeline resets and raw mode.
type Loop struct {
	Source   sensor.Source
	Pipeline *tyre.Pipeline
	// Map is optional. When set, its raw mode and commands are honored and it
	// receives every result.
	Map *regmap.Map
	// Serial receives the results when Map is nil or its output mode enables
	// serial output.
	Serial []Sink
	// Sinks always receive the results.
	Sinks []Sink
	// LED is optional and toggled on every frame.
	LED gpio.PinOut

	frame tyre.Frame
	seq   uint32
	raw   bool
	led   gpio.Level
	last  time.Time

	mu    sync.Mutex
	stats Stats
}

// Stats returns a snapshot of the loop health. It is safe to call
// concurrently with Run.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Step processes one frame.
//
// When the source fails the pipeline is not run and its state doesn't
// change.
func (l *Loop) Step() error {
	if err := l.Source.NextFrame(&l.frame); err != nil {
		l.mu.Lock()
		l.stats.Failures++
		l.mu.Unlock()
		return err
	}
	now := time.Now()
	fps := l.updateFPS(now)
	l.seq++

	sanitized := l.frame.Sanitize(0)
	resets := 0
	if l.Map != nil {
		if l.Map.TakeReset() {
			l.Pipeline.Reset()
			resets++
		}
		if raw := l.Map.RawMode(); raw != l.raw {
			log.Printf("raw mode: %t", raw)
			l.Pipeline.Reset()
			l.raw = raw
			resets++
		}
		if l.Map.TakeFrameRequest() {
			log.Printf("frame %d requested", l.seq)
		}
	}
	var r tyre.FrameResult
	if l.raw {
		r = tyre.Passthrough(l.seq)
	} else {
		r = l.Pipeline.Process(&l.frame)
		r.FrameNumber = l.seq
	}
	if sanitized != 0 {
		r.Warnings |= tyre.WarnSanitized
	}

	var errs []error
	if l.Map != nil {
		errs = append(errs, l.Map.Emit(&r, &l.frame, fps))
	}
	if l.Map == nil || l.Map.SerialEnabled() {
		for _, s := range l.Serial {
			errs = append(errs, s.Emit(&r, &l.frame, fps))
		}
	}
	for _, s := range l.Sinks {
		errs = append(errs, s.Emit(&r, &l.frame, fps))
	}
	err := errors.Join(errs...)
	if l.LED != nil {
		l.led = !l.led
		if e := l.LED.Out(l.led); e != nil {
			err = errors.Join(err, e)
		}
	}

	l.mu.Lock()
	l.stats.Frames++
	l.stats.FPS = fps
	l.stats.Resets += resets
	if sanitized != 0 {
		l.stats.Sanitized++
	}
	if err != nil {
		l.stats.SinkErrors++
	}
	l.mu.Unlock()
	return err
}

// Run calls Step until stop is closed or the source is exhausted.
//
// Source and sink errors are logged and do not stop the loop.
func (l *Loop) Run(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		err := l.Step()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			log.Printf("frame %d: %s", l.seq, err)
			if errors.Is(err, sensor.ErrShort) {
				continue
			}
			select {
			case <-stop:
				return nil
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}

func (l *Loop) updateFPS(now time.Time) float64 {
	fps := l.Stats().FPS
	if !l.last.IsZero() {
		if dt := now.Sub(l.last).Seconds(); dt > 0 {
			if fps == 0 {
				fps = 1 / dt
			} else {
				fps = 0.9*fps + 0.1/dt
			}
		}
	}
	l.last = now
	return fps
}
