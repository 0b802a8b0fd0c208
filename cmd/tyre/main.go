// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// tyre measures the temperature of a tyre seen by a 32x24 thermal sensor.
//
// Frames come from a serial sensor bridge, a recording or a simulated sensor.
// Results are written on stdout or a serial port, published in a register
// map, optionally logged in a sqlite database and shown on a web page.
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/maruel/go-tyre/driver"
	"github.com/maruel/go-tyre/record"
	"github.com/maruel/go-tyre/regmap"
	"github.com/maruel/go-tyre/sensor"
	"github.com/maruel/go-tyre/store"
	"github.com/maruel/go-tyre/tyre"
	"github.com/maruel/interrupt"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// frameRecorder saves the frames so a session can be replayed.
type frameRecorder struct {
	w io.Writer
}

func (f *frameRecorder) Emit(_ *tyre.FrameResult, img *tyre.Frame, _ float64) error {
	return sensor.WriteFrame(f.w, img)
}

func openOutput(name string, baud int) (io.WriteCloser, error) {
	switch {
	case name == "" || name == "-":
		return nopCloser{os.Stdout}, nil
	case strings.HasPrefix(name, "serial:"):
		return sensor.OpenPort(strings.TrimPrefix(name, "serial:"), baud)
	default:
		return os.Create(name)
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}

func mainImpl() error {
	cpuprofile := flag.String("cpuprofile", "", "dump CPU profile in file")
	src := flag.String("source", "fake", "frame source: fake, a recording, or serial:<port>")
	baud := flag.Int("baud", 115200, "serial ports speed")
	out := flag.String("out", "", "where to write the results: stdout, a file, or serial:<port>")
	format := flag.String("format", "compact", "results format: compact or json")
	header := flag.Bool("header", false, "print the header before compact results")
	configPath := flag.String("config", "", "JSON file overriding the default tuning")
	port := flag.Int("port", 8010, "http port to listen on, 0 to disable")
	dbPath := flag.String("db", "", "sqlite database to log results into")
	rec := flag.String("record", "", "save the raw frames in this file")
	led := flag.String("led", "", "GPIO pin of the status LED")
	addr := flag.Int("addr", regmap.DefaultAddress, "register map address")
	bigEndian := flag.Bool("bigendian", false, "encode 16 bits registers in big endian")
	upload := flag.Bool("upload", false, "send results to the server in ~/.config/tyre/tyre.json")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(io.Discard)
	}
	log.SetFlags(log.Lmicroseconds)

	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}
	f, err := record.ParseFormat(*format)
	if err != nil {
		return err
	}

	if *cpuprofile != "" {
		p, err := os.Create(*cpuprofile)
		if err != nil {
			return err
		}
		pprof.StartCPUProfile(p)
		defer pprof.StopCPUProfile()
	}

	interrupt.HandleCtrlC()

	cfg := tyre.DefaultConfig()
	var watched []string
	if *configPath != "" {
		if cfg, err = tyre.LoadConfig(*configPath); err != nil {
			return err
		}
		watched = append(watched, *configPath)
	}
	p, err := tyre.New(cfg)
	if err != nil {
		return err
	}

	s, err := sensor.Open(*src, *baud)
	if err != nil {
		return fmt.Errorf("%s\nIf testing without hardware, use -source fake to simulate a sensor", err)
	}
	defer s.Close()

	var order binary.ByteOrder = binary.LittleEndian
	if *bigEndian {
		order = binary.BigEndian
	}
	loop := &driver.Loop{
		Source:   s,
		Pipeline: p,
		Map:      regmap.New(uint8(*addr), order),
	}

	o, err := openOutput(*out, *baud)
	if err != nil {
		return err
	}
	defer o.Close()
	w := record.NewWriter(o, f)
	w.Header = *header
	loop.Serial = append(loop.Serial, w)

	if *rec != "" {
		r, err := os.Create(*rec)
		if err != nil {
			return err
		}
		defer r.Close()
		loop.Sinks = append(loop.Sinks, &frameRecorder{r})
	}
	if *dbPath != "" {
		db, err := store.NewDB(*dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		run, err := db.StartRun(cfg)
		if err != nil {
			return err
		}
		log.Printf("run %s", run)
		loop.Sinks = append(loop.Sinks, db)
	}
	if *upload {
		if u := LoadUploader(); u != nil {
			loop.Sinks = append(loop.Sinks, u)
		}
	}
	if *port != 0 {
		loop.Sinks = append(loop.Sinks, StartWebServer(*port, loop, loop.Map))
	}
	if *led != "" {
		if _, err := host.Init(); err != nil {
			return err
		}
		pin := gpioreg.ByName(*led)
		if pin == nil {
			return fmt.Errorf("unknown pin %q", *led)
		}
		loop.LED = pin
	}

	go func() {
		// Restart on new binary or tuning. The service manager brings the
		// process back.
		if err := watchFiles(watched...); err != nil {
			log.Printf("watch: %s", err)
		}
		interrupt.Set()
	}()

	done := make(chan error, 1)
	go func() {
		done <- loop.Run(interrupt.Channel)
	}()

	// Keep stdout for the results unless they go elsewhere.
	status := *out != "" && *out != "-"
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case err := <-done:
			if status {
				fmt.Print("\n")
			}
			return err
		case <-t.C:
			if status {
				st := loop.Stats()
				fmt.Fprintf(os.Stderr, "\r%d frames %.1f fps %d failures %d sanitized %d resets", st.Frames, st.FPS, st.Failures, st.Sanitized, st.Resets)
			}
		case <-interrupt.Channel:
			// Wait for the loop to notice.
			if err := <-done; err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			return nil
		}
	}
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\ntyre: %s.\n", err)
		os.Exit(1)
	}
}
