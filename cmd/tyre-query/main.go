// Copyright 2017 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// tyre-query uses the I²C interface of a sensor module to query its state.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"image/png"
	"os"

	"github.com/maruel/go-tyre/regmap"
	"github.com/maruel/go-tyre/thermimg"
	"github.com/maruel/go-tyre/tyre"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"
)

func mainImpl() error {
	i2cName := flag.String("i2c", "", "I²C bus to use")
	addr := flag.Int("addr", regmap.DefaultAddress, "module address")
	bigEndian := flag.Bool("bigendian", false, "16 bits registers are big endian")
	raw := flag.Bool("raw", false, "print the raw channels")
	rawMode := flag.String("rawmode", "", "on or off; in raw mode the module only publishes the raw channels")
	fallback := flag.String("fallback", "", "on or off; fallback mode is selected by the module itself when unset")
	frame := flag.String("frame", "", "save the last frame as PNG in this file")
	reset := flag.Bool("reset", false, "reset the detection state")
	clearWarnings := flag.Bool("clear", false, "clear the warnings")
	flag.Parse()

	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}

	if _, err := host.Init(); err != nil {
		return err
	}
	i2cBus, err := i2creg.Open(*i2cName)
	if err != nil {
		return err
	}
	defer i2cBus.Close()
	var order binary.ByteOrder = binary.LittleEndian
	if *bigEndian {
		order = binary.BigEndian
	}
	dev := regmap.NewController(&i2c.Dev{Bus: i2cBus, Addr: uint16(*addr)}, order)

	if err := onOff(*rawMode, dev.SetRawMode); err != nil {
		return err
	}
	if err := onOff(*fallback, dev.SetFallback); err != nil {
		return err
	}
	if *reset {
		if err := dev.Command(regmap.CmdReset); err != nil {
			return err
		}
	}
	if *clearWarnings {
		if err := dev.Command(regmap.CmdClearWarnings); err != nil {
			return err
		}
	}

	status, err := dev.Status()
	if err != nil {
		return err
	}
	fmt.Printf("Device:       %s\n", dev)
	fmt.Printf("Firmware:     0x%02x\n", status.Firmware)
	fmt.Printf("Frame:        %d\n", status.Frame)
	fmt.Printf("FPS:          %d\n", status.FPS)
	fmt.Printf("Detected:     %t\n", status.Detected)
	fmt.Printf("Confidence:   %d%%\n", status.Confidence)
	fmt.Printf("Span:         %d..%d (%d)\n", status.SpanStart, status.SpanEnd, status.Width)
	fmt.Printf("Warnings:     %s\n", status.Warnings)
	temps, err := dev.Temps()
	if err != nil {
		return err
	}
	fmt.Printf("Inner:        %.1f°C avg %.1f°C\n", temps.InnerMedian, temps.InnerAvg)
	fmt.Printf("Centre:       %.1f°C avg %.1f°C\n", temps.CentreMedian, temps.CentreAvg)
	fmt.Printf("Outer:        %.1f°C avg %.1f°C\n", temps.OuterMedian, temps.OuterAvg)
	fmt.Printf("Gradient:     %.1f°C\n", temps.Gradient)
	if *raw {
		ch, err := dev.RawChannels()
		if err != nil {
			return err
		}
		for i, v := range ch {
			fmt.Printf("Raw[%2d]:      %.1f°C\n", i, v)
		}
	}
	if *frame != "" {
		if err := dev.Command(regmap.CmdFrameRequest); err != nil {
			return err
		}
		var img tyre.Frame
		if err := dev.Frame(&img); err != nil {
			return err
		}
		f, err := os.Create(*frame)
		if err != nil {
			return err
		}
		defer f.Close()
		return png.Encode(f, thermimg.Scale(thermimg.PseudoColor(&img), 10))
	}
	return nil
}

// onOff calls set when v is "on" or "off".
func onOff(v string, set func(bool) error) error {
	switch v {
	case "":
		return nil
	case "on":
		return set(true)
	case "off":
		return set(false)
	default:
		return fmt.Errorf("expected on or off, got %q", v)
	}
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\ntyre-query: %s.\n", err)
		os.Exit(1)
	}
}
