// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// tyre-plot charts the zone temperatures and the detected span of a session.
//
// The session is either replayed from a frame recording or read back from a
// sqlite database written by tyre -db.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"io"
	"log"
	"os"
	"slices"

	"github.com/maruel/go-tyre/sensor"
	"github.com/maruel/go-tyre/store"
	"github.com/maruel/go-tyre/tyre"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// series is what gets charted, one point per frame.
type series struct {
	inner, centre, outer plotter.XYs
	start, end           plotter.XYs
	profile              tyre.Profile
}

func (s *series) add(n float64, inner, centre, outer float64, detected bool, start, end int) {
	s.inner = append(s.inner, plotter.XY{X: n, Y: inner})
	s.centre = append(s.centre, plotter.XY{X: n, Y: centre})
	s.outer = append(s.outer, plotter.XY{X: n, Y: outer})
	if detected {
		s.start = append(s.start, plotter.XY{X: n, Y: float64(start)})
		s.end = append(s.end, plotter.XY{X: n, Y: float64(end)})
	}
}

// replay runs the pipeline over a recording.
func replay(path string, limit int) (*series, error) {
	f, err := sensor.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := tyre.New(tyre.DefaultConfig())
	if err != nil {
		return nil, err
	}
	s := &series{}
	var frame tyre.Frame
	for i := 0; limit <= 0 || i < limit; i++ {
		if err := f.NextFrame(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		frame.Sanitize(0)
		r := p.Process(&frame)
		d := &r.Detection
		s.add(float64(r.FrameNumber), r.Inner.Avg, r.Centre.Avg, r.Outer.Avg, d.Detected, d.Start, d.End)
		s.profile = r.Profile
	}
	return s, nil
}

// load reads a run back from the database. An empty run selects the most
// recent one.
func load(path, run string, limit int) (*series, error) {
	db, err := store.NewDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if run == "" {
		runs, err := db.Runs()
		if err != nil {
			return nil, err
		}
		if len(runs) == 0 {
			return nil, fmt.Errorf("%s has no run", path)
		}
		run = runs[0]
	}
	if limit <= 0 {
		limit = 1 << 30
	}
	rows, err := db.Frames(run, limit)
	if err != nil {
		return nil, err
	}
	slices.Reverse(rows)
	s := &series{}
	for _, r := range rows {
		s.add(float64(r.FrameNumber), r.InnerAvg, r.CentreAvg, r.OuterAvg, r.Detected, r.SpanStart, r.SpanEnd)
	}
	return s, nil
}

func addLine(p *plot.Plot, name string, pts plotter.XYs, c color.Color) error {
	if len(pts) == 0 {
		return nil
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	l.Color = c
	l.Width = vg.Points(1)
	p.Add(l)
	p.Legend.Add(name, l)
	return nil
}

var (
	red   = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	green = color.RGBA{R: 40, G: 160, B: 40, A: 255}
	blue  = color.RGBA{R: 40, G: 80, B: 220, A: 255}
)

func (s *series) save(prefix string, withProfile bool) error {
	p := plot.New()
	p.Title.Text = "Zone temperatures"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "°C"
	if err := addLine(p, "inner", s.inner, red); err != nil {
		return err
	}
	if err := addLine(p, "centre", s.centre, green); err != nil {
		return err
	}
	if err := addLine(p, "outer", s.outer, blue); err != nil {
		return err
	}
	p.Legend.Top = true
	if err := p.Save(14*vg.Inch, 6*vg.Inch, prefix+"_zones.png"); err != nil {
		return fmt.Errorf("save zones plot: %w", err)
	}

	p = plot.New()
	p.Title.Text = "Detected span"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Column"
	p.Y.Min = 0
	p.Y.Max = tyre.Width - 1
	if err := addLine(p, "start", s.start, red); err != nil {
		return err
	}
	if err := addLine(p, "end", s.end, blue); err != nil {
		return err
	}
	p.Legend.Top = true
	if err := p.Save(14*vg.Inch, 6*vg.Inch, prefix+"_span.png"); err != nil {
		return fmt.Errorf("save span plot: %w", err)
	}

	if !withProfile {
		return nil
	}
	p = plot.New()
	p.Title.Text = "Last smoothed profile"
	p.X.Label.Text = "Column"
	p.Y.Label.Text = "°C"
	pts := make(plotter.XYs, len(s.profile))
	for i, v := range s.profile {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}
	if err := addLine(p, "profile", pts, green); err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, prefix+"_profile.png"); err != nil {
		return fmt.Errorf("save profile plot: %w", err)
	}
	return nil
}

func mainImpl() error {
	rec := flag.String("record", "", "frame recording to replay")
	dbPath := flag.String("db", "", "sqlite database written by tyre")
	run := flag.String("run", "", "run to plot; defaults to the most recent")
	limit := flag.Int("n", 0, "maximum number of frames, 0 for all")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(io.Discard)
	}
	log.SetFlags(log.Lmicroseconds)

	if flag.NArg() != 1 {
		return errors.New("supply the prefix of the PNG files to save")
	}
	if (*rec == "") == (*dbPath == "") {
		return errors.New("use exactly one of -record or -db")
	}
	var s *series
	var err error
	if *rec != "" {
		s, err = replay(*rec, *limit)
	} else {
		s, err = load(*dbPath, *run, *limit)
	}
	if err != nil {
		return err
	}
	if len(s.inner) == 0 {
		return errors.New("no frame to plot")
	}
	log.Printf("%d frames", len(s.inner))
	// The database doesn't keep the profile.
	return s.save(flag.Args()[0], *rec != "")
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\ntyre-plot: %s.\n", err)
		os.Exit(1)
	}
}
