// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package thermimg

import (
	"image/color"
	"math"
	"testing"

	"github.com/maruel/go-tyre/tyre"
	"github.com/maruel/go-tyre/tyretest"
)

func TestAGC(t *testing.T) {
	f := tyretest.Band(20, 60, 9, 22)
	f.Pix[0] = float32(math.NaN())
	g := AGC(f)
	if v := g.GrayAt(10, 0).Y; v != 255 {
		t.Fatal(v)
	}
	// NaN maps to the coldest value.
	if v := g.GrayAt(0, 0).Y; v != 0 {
		t.Fatal(v)
	}
	if v := g.GrayAt(0, 1).Y; v != 0 {
		t.Fatal(v)
	}
}

func TestAGC_uniform(t *testing.T) {
	g := AGC(tyretest.Uniform(30))
	for i, v := range g.Pix {
		if v != 0 {
			t.Fatalf("%d: %d", i, v)
		}
	}
}

func TestPalette(t *testing.T) {
	data := []struct {
		in   uint8
		want color.RGBA
	}{
		{0, color.RGBA{0, 0, 0, 0xff}},
		{63, color.RGBA{0, 0, 252, 0xff}},
		{64, color.RGBA{0, 0, 255, 0xff}},
		{128, color.RGBA{0xff, 0, 0, 0xff}},
		{255, color.RGBA{0xff, 0xff, 252, 0xff}},
	}
	for i, line := range data {
		if got := palette(line.in); got != line.want {
			t.Fatalf("#%d: palette(%d) = %v; want %v", i, line.in, got, line.want)
		}
	}
}

func TestScaleOverlay(t *testing.T) {
	f := tyretest.Band(20, 60, 9, 22)
	img := Scale(PseudoColor(f), 10)
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Fatal(b)
	}
	// Each sensor pixel is a 10x10 block.
	if img.RGBAAt(90, 0) != img.RGBAAt(99, 9) {
		t.Fatal("interpolated")
	}
	r := tyre.FrameResult{Detection: tyre.Detection{Detected: true, Start: 9, End: 22, Width: 14}}
	Overlay(img, &r, 10)
	if c := img.RGBAAt(90, 5); c != SpanColor {
		t.Fatal(c)
	}
	if c := img.RGBAAt(229, 5); c != SpanColor {
		t.Fatal(c)
	}
	if c := img.RGBAAt(130, 5); c != ZoneColor {
		t.Fatal(c)
	}
	if c := img.RGBAAt(5, 100); c != BandColor {
		t.Fatal(c)
	}
}
