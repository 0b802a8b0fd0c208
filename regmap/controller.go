// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package regmap

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/maruel/go-tyre/tyre"
	"periph.io/x/periph/conn"
)

// ErrCRC is returned when the temperature block checksum doesn't match.
var ErrCRC = errors.New("regmap: temperature CRC mismatch")

// chunk is the largest read done in one transaction while streaming a frame.
const chunk = 64

// Controller is the bus master side reading a sensor module.
type Controller struct {
	c     conn.Conn
	order binary.ByteOrder
}

// NewController returns a Controller talking over c, usually an *i2c.Dev.
func NewController(c conn.Conn, order binary.ByteOrder) *Controller {
	return &Controller{c: c, order: order}
}

func (c *Controller) String() string {
	return c.c.String()
}

// Status is the content of the status registers.
type Status struct {
	Firmware   uint8
	Frame      uint16
	FPS        uint8
	Detected   bool
	Confidence uint8 // Percent.
	Width      uint8
	SpanStart  uint8
	SpanEnd    uint8
	Warnings   tyre.Warning
}

// Temps is the content of the temperature registers, in °C.
type Temps struct {
	InnerMedian  float64
	CentreMedian float64
	OuterMedian  float64
	InnerAvg     float64
	CentreAvg    float64
	OuterAvg     float64
	Gradient     float64
}

// ReadReg reads len(b) bytes starting at reg.
func (c *Controller) ReadReg(reg uint8, b []byte) error {
	return c.c.Tx([]byte{reg}, b)
}

// WriteReg writes v starting at reg.
func (c *Controller) WriteReg(reg uint8, v ...byte) error {
	return c.c.Tx(append([]byte{reg}, v...), nil)
}

// Status reads the status registers in one transaction.
func (c *Controller) Status() (Status, error) {
	var b [statusLen]byte
	if err := c.ReadReg(RegFirmware, b[:]); err != nil {
		return Status{}, err
	}
	return Status{
		Firmware:   b[RegFirmware-RegFirmware],
		Frame:      uint16(b[RegFrameL-RegFirmware]) | uint16(b[RegFrameH-RegFirmware])<<8,
		FPS:        b[RegFPS-RegFirmware],
		Detected:   b[RegDetected-RegFirmware] != 0,
		Confidence: b[RegConfidence-RegFirmware],
		Width:      b[RegWidth-RegFirmware],
		SpanStart:  b[RegSpanStart-RegFirmware],
		SpanEnd:    b[RegSpanEnd-RegFirmware],
		Warnings:   tyre.Warning(b[RegWarnings-RegFirmware]),
	}, nil
}

// Temps reads the temperature registers and verifies their checksum.
func (c *Controller) Temps() (Temps, error) {
	var b [tempsLen]byte
	if err := c.ReadReg(RegInnerMedian, b[:]); err != nil {
		return Temps{}, err
	}
	const crc = RegTempCRC - RegInnerMedian
	if got := CRC16(b[:crc]); got != c.order.Uint16(b[crc:]) {
		return Temps{}, fmt.Errorf("%w: 0x%04x != 0x%04x", ErrCRC, got, c.order.Uint16(b[crc:]))
	}
	get := func(reg int) float64 {
		return FromTenths(int16(c.order.Uint16(b[reg-RegInnerMedian:])))
	}
	return Temps{
		InnerMedian:  get(RegInnerMedian),
		CentreMedian: get(RegCentreMedian),
		OuterMedian:  get(RegOuterMedian),
		InnerAvg:     get(RegInnerAvg),
		CentreAvg:    get(RegCentreAvg),
		OuterAvg:     get(RegOuterAvg),
		Gradient:     get(RegGradient),
	}, nil
}

// RawChannels reads the 16 raw channels in °C.
func (c *Controller) RawChannels() ([RawChannels]float64, error) {
	var out [RawChannels]float64
	var b [2 * RawChannels]byte
	if err := c.ReadReg(RegRawChannels, b[:]); err != nil {
		return out, err
	}
	for i := range out {
		out[i] = FromTenths(int16(c.order.Uint16(b[2*i:])))
	}
	return out, nil
}

// Frame streams the last frame published into f, with a resolution of 0.1°C.
func (c *Controller) Frame(f *tyre.Frame) error {
	var b [FrameBytes]byte
	for off := 0; off < len(b); off += chunk {
		var w []byte
		if off == 0 {
			w = []byte{RegFrameData}
		}
		if err := c.c.Tx(w, b[off:off+chunk]); err != nil {
			return fmt.Errorf("frame at byte %d: %w", off, err)
		}
	}
	for i := range f.Pix {
		f.Pix[i] = float32(FromTenths(int16(c.order.Uint16(b[2*i:]))))
	}
	return nil
}

// Command writes cmd to RegCommand.
func (c *Controller) Command(cmd uint8) error {
	return c.WriteReg(RegCommand, cmd)
}

// SetRawMode enables or disables the detection bypass.
func (c *Controller) SetRawMode(on bool) error {
	return c.WriteReg(RegRawMode, boolByte(on))
}

// SetFallback enables or disables reporting the centre temperatures for every
// zone when no tyre is detected.
func (c *Controller) SetFallback(on bool) error {
	return c.WriteReg(RegFallbackMode, boolByte(on))
}

// SetOutputMode writes RegOutputMode.
func (c *Controller) SetOutputMode(mode uint8) error {
	return c.WriteReg(RegOutputMode, mode)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
