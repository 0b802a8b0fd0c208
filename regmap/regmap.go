// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package regmap exposes frame results as a 256 bytes register map, the way
// the sensor module presents itself as an I²C peripheral, and implements the
// bus master reading it.
//
// Temperatures are signed 16 bits in tenth of °C.
package regmap

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/maruel/go-tyre/tyre"
	"periph.io/x/periph/conn"
)

// Configuration registers, read-write.
const (
	RegAddress      = 0x00
	RegOutputMode   = 0x01
	RegFrameRate    = 0x02
	RegFallbackMode = 0x03
	RegEmissivity   = 0x04 // Percent.
	RegRawMode      = 0x05
	regConfigEnd    = 0x0F
)

// Status registers, read-only.
const (
	RegFirmware   = 0x10
	RegFrameL     = 0x11
	RegFrameH     = 0x12
	RegFPS        = 0x13
	RegDetected   = 0x14
	RegConfidence = 0x15 // Percent.
	RegWidth      = 0x16
	RegSpanStart  = 0x17
	RegSpanEnd    = 0x18
	RegWarnings   = 0x19
	statusLen     = RegWarnings - RegFirmware + 1
)

// Temperature registers, read-only, 16 bits each.
const (
	RegInnerMedian  = 0x20
	RegCentreMedian = 0x22
	RegOuterMedian  = 0x24
	RegInnerAvg     = 0x26
	RegCentreAvg    = 0x28
	RegOuterAvg     = 0x2A
	RegGradient     = 0x2C
	RegTempCRC      = 0x2E // CRC16 of 0x20 to 0x2D.
	tempsLen        = RegTempCRC + 2 - RegInnerMedian
)

// Raw data.
const (
	// RegRawChannels starts 16 channels of 16 bits, each the average of two
	// columns of the band rows.
	RegRawChannels = 0x30
	RawChannels    = 16
	// RegFrameData streams the whole frame, one 16 bits value per pixel.
	// Selecting it rewinds the stream.
	RegFrameData = 0x50
	// FrameBytes is the length of the frame stream.
	FrameBytes = tyre.Pixels * 2
	// RegCommand executes the command written to it.
	RegCommand = 0xFF
)

// Commands written to RegCommand.
const (
	CmdReset         = 0x01
	CmdClearWarnings = 0x02
	CmdFrameRequest  = 0x10
)

// Values of RegOutputMode.
const (
	OutputSerial = 0x00
	OutputBus    = 0x01
	OutputAll    = 0xFF
)

// Defaults.
const (
	DefaultAddress    = 0x08
	DefaultFrameRate  = 8
	DefaultEmissivity = 95
	FirmwareVersion   = 0x01
)

// Map is the register map of one sensor module.
//
// It implements conn.Conn so a Controller can talk to it in process. It is
// safe for concurrent use.
type Map struct {
	mu     sync.Mutex
	order  binary.ByteOrder
	regs   [256]byte
	frame  [FrameBytes]byte
	ptr    byte
	stream int
	// Pending commands.
	reset        bool
	frameRequest bool
}

// New returns a Map with default configuration. 16 bits values are encoded
// with order.
func New(addr uint8, order binary.ByteOrder) *Map {
	m := &Map{order: order}
	m.regs[RegAddress] = addr
	m.regs[RegOutputMode] = OutputAll
	m.regs[RegFrameRate] = DefaultFrameRate
	m.regs[RegEmissivity] = DefaultEmissivity
	m.regs[RegFirmware] = FirmwareVersion
	m.regs[RegSpanEnd] = tyre.Width - 1
	m.regs[RegWidth] = tyre.Width
	return m
}

func (m *Map) String() string {
	return fmt.Sprintf("regmap@0x%02x", m.Address())
}

// Duplex implements conn.Conn.
func (m *Map) Duplex() conn.Duplex {
	return conn.Half
}

// Tx implements conn.Conn.
//
// The first byte written selects the register; the following bytes are
// written from there with auto-increment. Then len(r) bytes are read from
// the current register with auto-increment. An empty w continues where the
// previous transaction stopped, which is how the frame stream is read in
// chunks.
func (m *Map) Tx(w, r []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(w) != 0 {
		m.ptr = w[0]
		if m.ptr == RegFrameData {
			m.stream = 0
		}
		for _, v := range w[1:] {
			m.write(v)
		}
	}
	for i := range r {
		r[i] = m.read()
	}
	return nil
}

func (m *Map) write(v byte) {
	switch {
	case m.ptr <= regConfigEnd:
		m.regs[m.ptr] = v
	case m.ptr == RegCommand:
		m.command(v)
	}
	m.ptr++
}

func (m *Map) read() byte {
	if m.ptr == RegFrameData {
		if m.stream >= len(m.frame) {
			return 0
		}
		v := m.frame[m.stream]
		m.stream++
		return v
	}
	v := m.regs[m.ptr]
	m.ptr++
	return v
}

func (m *Map) command(c byte) {
	switch c {
	case CmdReset:
		m.reset = true
	case CmdClearWarnings:
		m.regs[RegWarnings] = 0
	case CmdFrameRequest:
		m.frameRequest = true
	}
}

// Emit publishes a frame result. f may be nil, in which case the raw
// registers are left untouched.
func (m *Map) Emit(r *tyre.FrameResult, f *tyre.Frame, fps float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &r.Detection
	m.regs[RegFrameL] = byte(r.FrameNumber)
	m.regs[RegFrameH] = byte(r.FrameNumber >> 8)
	m.regs[RegFPS] = byte(clampFloat(finite(fps), 0, 255))
	m.regs[RegDetected] = 0
	if d.Detected {
		m.regs[RegDetected] = 1
	}
	m.regs[RegConfidence] = byte(clampFloat(d.Confidence*100, 0, 100))
	m.regs[RegWidth] = byte(d.Width)
	m.regs[RegSpanStart] = byte(d.Start)
	m.regs[RegSpanEnd] = byte(d.End)
	m.regs[RegWarnings] = byte(r.Warnings)

	inner, outer, gradient := r.Inner, r.Outer, r.LateralGradient
	if !d.Detected && m.regs[RegFallbackMode] == 1 {
		inner, outer, gradient = r.Centre, r.Centre, 0
	}
	m.put(RegInnerMedian, inner.Median)
	m.put(RegCentreMedian, r.Centre.Median)
	m.put(RegOuterMedian, outer.Median)
	m.put(RegInnerAvg, inner.Avg)
	m.put(RegCentreAvg, r.Centre.Avg)
	m.put(RegOuterAvg, outer.Avg)
	m.put(RegGradient, gradient)
	m.order.PutUint16(m.regs[RegTempCRC:], CRC16(m.regs[RegInnerMedian:RegTempCRC]))

	if f == nil {
		return nil
	}
	for ch := 0; ch < RawChannels; ch++ {
		sum := 0.
		for y := tyre.BandStart; y < tyre.BandStart+tyre.BandRows; y++ {
			sum += float64(f.At(2*ch, y)) + float64(f.At(2*ch+1, y))
		}
		m.put(RegRawChannels+2*ch, sum/(2*tyre.BandRows))
	}
	for i, v := range f.Pix {
		m.order.PutUint16(m.frame[2*i:], uint16(Tenths(float64(v))))
	}
	return nil
}

func (m *Map) put(reg int, v float64) {
	m.order.PutUint16(m.regs[reg:], uint16(Tenths(v)))
}

// Address returns the configured bus address.
func (m *Map) Address() uint8 {
	return m.get(RegAddress)
}

// OutputMode returns RegOutputMode.
func (m *Map) OutputMode() uint8 {
	return m.get(RegOutputMode)
}

// SerialEnabled returns true if results should be written on the serial
// output.
func (m *Map) SerialEnabled() bool {
	return m.OutputMode() != OutputBus
}

// FrameRate returns the requested frame rate in Hz.
func (m *Map) FrameRate() int {
	return int(m.get(RegFrameRate))
}

// Fallback returns true if the centre temperatures are reported for every
// zone when no tyre is detected.
func (m *Map) Fallback() bool {
	return m.get(RegFallbackMode) == 1
}

// Emissivity returns the configured emissivity in [0, 1].
func (m *Map) Emissivity() float64 {
	return math.Min(float64(m.get(RegEmissivity)), 100) / 100
}

// RawMode returns true when detection is bypassed.
func (m *Map) RawMode() bool {
	return m.get(RegRawMode) != 0
}

// TakeReset returns true once after CmdReset was written.
func (m *Map) TakeReset() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.reset
	m.reset = false
	return r
}

// TakeFrameRequest returns true once after CmdFrameRequest was written.
func (m *Map) TakeFrameRequest() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.frameRequest
	m.frameRequest = false
	return r
}

// Snapshot returns a copy of the registers.
func (m *Map) Snapshot() [256]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs
}

func (m *Map) get(reg int) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[reg]
}

// Tenths converts °C to the register encoding, truncating toward zero.
// Non-finite values are encoded as 0.
func Tenths(v float64) int16 {
	return int16(clampFloat(finite(v)*10, math.MinInt16, math.MaxInt16))
}

// FromTenths converts the register encoding to °C.
func FromTenths(v int16) float64 {
	return float64(v) / 10
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var _ conn.Conn = &Map{}
