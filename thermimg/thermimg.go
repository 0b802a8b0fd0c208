// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package thermimg renders thermal frames as images.
package thermimg

import (
	"image"
	"image/color"

	"github.com/maruel/go-tyre/tyre"
	"golang.org/x/image/draw"
)

// Colors of the overlay.
var (
	SpanColor = color.RGBA{0x00, 0xff, 0x00, 0xff}
	ZoneColor = color.RGBA{0xff, 0xff, 0xff, 0xff}
	BandColor = color.RGBA{0x00, 0x80, 0xff, 0xff}
)

// AGC reduces the frame to 8 bits very naively, linearly between the coldest
// and the hottest pixels without gamma.
func AGC(f *tyre.Frame) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, tyre.Width, tyre.Height))
	min, max := f.MinMax()
	delta := max - min
	if delta == 0 {
		return dst
	}
	for i, v := range f.Pix {
		// Non-finite values were skipped by MinMax; NaN maps to min.
		switch {
		case v > max:
			v = max
		case !(v >= min):
			v = min
		}
		dst.Pix[i] = uint8((v - min) * 255 / delta)
	}
	return dst
}

// PseudoColor maps the frame linearly on a black, blue, red, yellow, white
// palette.
func PseudoColor(f *tyre.Frame) *image.RGBA {
	g := AGC(f)
	dst := image.NewRGBA(g.Bounds())
	for i, v := range g.Pix {
		c := palette(v)
		dst.Pix[4*i+0] = c.R
		dst.Pix[4*i+1] = c.G
		dst.Pix[4*i+2] = c.B
		dst.Pix[4*i+3] = 0xff
	}
	return dst
}

func palette(v uint8) color.RGBA {
	// 4 segments of 64 levels.
	s := int(v) * 4
	switch {
	case s < 256:
		return color.RGBA{0, 0, uint8(s), 0xff}
	case s < 512:
		return color.RGBA{uint8(s - 256), 0, uint8(511 - s), 0xff}
	case s < 768:
		return color.RGBA{0xff, uint8(s - 512), 0, 0xff}
	default:
		return color.RGBA{0xff, 0xff, uint8(min(s-768, 255)), 0xff}
	}
}

// Scale enlarges src by factor without interpolation so each sensor pixel
// stays visible.
func Scale(src image.Image, factor int) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// Overlay draws the band rows and, when a tyre is detected, the span and the
// zone boundaries on img, an image scaled by factor.
func Overlay(img draw.Image, r *tyre.FrameResult, factor int) {
	band := image.Rect(0, tyre.BandStart*factor, tyre.Width*factor, (tyre.BandStart+tyre.BandRows)*factor)
	hline(img, band.Min.X, band.Max.X, band.Min.Y, BandColor)
	hline(img, band.Min.X, band.Max.X, band.Max.Y-1, BandColor)
	d := &r.Detection
	if !d.Detected {
		return
	}
	third := d.Width / 3
	vline(img, (d.Start+third)*factor, 0, tyre.Height*factor, ZoneColor)
	vline(img, (d.End-third+1)*factor, 0, tyre.Height*factor, ZoneColor)
	vline(img, d.Start*factor, 0, tyre.Height*factor, SpanColor)
	vline(img, (d.End+1)*factor-1, 0, tyre.Height*factor, SpanColor)
}

func vline(img draw.Image, x, y0, y1 int, c color.Color) {
	draw.Draw(img, image.Rect(x, y0, x+1, y1), image.NewUniform(c), image.Point{}, draw.Src)
}

func hline(img draw.Image, x0, x1, y int, c color.Color) {
	draw.Draw(img, image.Rect(x0, y, x1, y+1), image.NewUniform(c), image.Point{}, draw.Src)
}
