// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// tyre-grab captures a single image with the detection drawn over it.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"os"

	"github.com/maruel/go-tyre/sensor"
	"github.com/maruel/go-tyre/thermimg"
	"github.com/maruel/go-tyre/tyre"
	"github.com/maruel/interrupt"
)

func mainImpl() error {
	src := flag.String("source", "fake", "frame source: fake, a recording, or serial:<port>")
	baud := flag.Int("baud", 115200, "serial port speed")
	settle := flag.Int("n", 8, "frames to process before saving, so the smoothing settles")
	scale := flag.Int("scale", 10, "upscaling factor")
	agc := flag.Bool("agc", false, "save the gray scale frame without overlay")
	meta := flag.Bool("meta", false, "print the detection")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(io.Discard)
	}
	log.SetFlags(log.Lmicroseconds)

	if flag.NArg() != 1 {
		return errors.New("supply path to PNG to save")
	}
	if *settle < 1 {
		return errors.New("-n must be at least 1")
	}
	interrupt.HandleCtrlC()

	s, err := sensor.Open(*src, *baud)
	if err != nil {
		return fmt.Errorf("%s\nIf testing without hardware, use -source fake to simulate a sensor", err)
	}
	defer s.Close()
	p, err := tyre.New(tyre.DefaultConfig())
	if err != nil {
		return err
	}

	var frame tyre.Frame
	var r tyre.FrameResult
	n := 0
	for ; n < *settle && !interrupt.IsSet(); n++ {
		if err := s.NextFrame(&frame); err != nil {
			if errors.Is(err, io.EOF) && n != 0 {
				break
			}
			return err
		}
		if c := frame.Sanitize(0); c != 0 {
			log.Printf("frame %d: %d pixels replaced", n, c)
		}
		r = p.Process(&frame)
	}
	if n == 0 {
		return errors.New("interrupted")
	}

	if *meta {
		fmt.Printf("Frames:      %d\n", n)
		fmt.Printf("Detected:    %t\n", r.Detection.Detected)
		fmt.Printf("Span:        %d..%d\n", r.Detection.Start, r.Detection.End)
		fmt.Printf("Width:       %d\n", r.Detection.Width)
		fmt.Printf("Confidence:  %.2f\n", r.Detection.Confidence)
		fmt.Printf("Inner:       %.1f°C\n", r.Inner.Avg)
		fmt.Printf("Centre:      %.1f°C\n", r.Centre.Avg)
		fmt.Printf("Outer:       %.1f°C\n", r.Outer.Avg)
		fmt.Printf("Gradient:    %.2f\n", r.LateralGradient)
		fmt.Printf("Warnings:    %s\n", r.Warnings)
	}

	var img image.Image
	if *agc {
		img = thermimg.Scale(thermimg.AGC(&frame), *scale)
	} else {
		rgba := thermimg.Scale(thermimg.PseudoColor(&frame), *scale)
		thermimg.Overlay(rgba, &r, *scale)
		img = rgba
	}
	f, err := os.Create(flag.Args()[0])
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\ntyre-grab: %s.\n", err)
		os.Exit(1)
	}
}
