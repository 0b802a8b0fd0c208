// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package regmap

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/maruel/go-tyre/tyre"
	"github.com/maruel/go-tyre/tyretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2ctest"
)

func TestCRC16(t *testing.T) {
	if c := CRC16([]byte("123456789")); c != 0x31C3 {
		t.Fatalf("0x%04x", c)
	}
	if c := CRC16(nil); c != 0 {
		t.Fatal(c)
	}
}

func TestTenths(t *testing.T) {
	data := []struct {
		in   float64
		want int16
	}{
		{0, 0},
		{25.37, 253},
		{-4.25, -42},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{1e6, math.MaxInt16},
		{-1e6, math.MinInt16},
	}
	for i, line := range data {
		if got := Tenths(line.in); got != line.want {
			t.Fatalf("#%d: Tenths(%g) = %d; want %d", i, line.in, got, line.want)
		}
	}
}

func publish(t *testing.T, m *Map, f *tyre.Frame, frames int) tyre.FrameResult {
	p, err := tyre.New(tyre.DefaultConfig())
	require.NoError(t, err)
	var r tyre.FrameResult
	for i := 0; i < frames; i++ {
		r = p.Process(f)
		require.NoError(t, m.Emit(&r, f, 8.4))
	}
	return r
}

func TestController_inProcess(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		m := New(DefaultAddress, order)
		f := tyretest.Band(20, 60, 9, 22)
		r := publish(t, m, f, 3)
		c := NewController(m, order)

		s, err := c.Status()
		require.NoError(t, err)
		want := Status{
			Firmware: FirmwareVersion, Frame: 3, FPS: 8, Detected: true,
			Confidence: uint8(r.Detection.Confidence * 100), Width: 14,
			SpanStart: 9, SpanEnd: 22, Warnings: r.Warnings,
		}
		assert.Equal(t, want, s)

		temps, err := c.Temps()
		require.NoError(t, err)
		assert.Equal(t, Temps{60, 60, 60, 60, 60, 60, 0}, temps)

		raw, err := c.RawChannels()
		require.NoError(t, err)
		assert.InDelta(t, 20.15, raw[0], 0.11)
		assert.Equal(t, 60., raw[8])

		var got tyre.Frame
		require.NoError(t, c.Frame(&got))
		for i := range got.Pix {
			require.InDelta(t, f.Pix[i], got.Pix[i], 0.11, "pixel %d", i)
		}
	}
}

func TestController_fallback(t *testing.T) {
	m := New(DefaultAddress, binary.LittleEndian)
	c := NewController(m, binary.LittleEndian)
	r := tyre.Passthrough(1)
	r.Inner.Median = 10
	r.Centre.Median = 30
	r.Outer.Median = 50
	r.LateralGradient = 5
	require.NoError(t, m.Emit(&r, nil, 0))
	temps, err := c.Temps()
	require.NoError(t, err)
	assert.Equal(t, 10., temps.InnerMedian)
	assert.Equal(t, 5., temps.Gradient)

	require.NoError(t, c.SetFallback(true))
	assert.True(t, m.Fallback())
	require.NoError(t, m.Emit(&r, nil, 0))
	temps, err = c.Temps()
	require.NoError(t, err)
	assert.Equal(t, Temps{CentreMedian: 30, InnerMedian: 30, OuterMedian: 30}, temps)
}

func TestMap_config(t *testing.T) {
	m := New(0x42, binary.LittleEndian)
	c := NewController(m, binary.LittleEndian)
	assert.Equal(t, "regmap@0x42", m.String())
	assert.True(t, m.SerialEnabled())
	assert.Equal(t, DefaultFrameRate, m.FrameRate())
	assert.Equal(t, 0.95, m.Emissivity())

	// Auto-increment across two registers.
	require.NoError(t, c.WriteReg(RegFallbackMode, 1, 90))
	assert.True(t, m.Fallback())
	assert.Equal(t, 0.9, m.Emissivity())

	require.NoError(t, c.SetOutputMode(OutputBus))
	assert.False(t, m.SerialEnabled())
	require.NoError(t, c.SetRawMode(true))
	assert.True(t, m.RawMode())

	// Read-only registers ignore writes.
	require.NoError(t, c.WriteReg(RegDetected, 1))
	assert.Equal(t, byte(0), m.Snapshot()[RegDetected])
}

func TestMap_commands(t *testing.T) {
	m := New(DefaultAddress, binary.LittleEndian)
	c := NewController(m, binary.LittleEndian)
	r := tyre.Passthrough(1)
	r.Warnings = tyre.WarnHighGradient | tyre.WarnHighVariance
	require.NoError(t, m.Emit(&r, nil, 0))

	require.NoError(t, c.Command(CmdClearWarnings))
	s, err := c.Status()
	require.NoError(t, err)
	assert.Equal(t, tyre.Warning(0), s.Warnings)

	assert.False(t, m.TakeReset())
	require.NoError(t, c.Command(CmdReset))
	assert.True(t, m.TakeReset())
	assert.False(t, m.TakeReset())

	require.NoError(t, c.Command(CmdFrameRequest))
	assert.True(t, m.TakeFrameRequest())
	assert.False(t, m.TakeFrameRequest())
}

func TestMap_streamEnd(t *testing.T) {
	m := New(DefaultAddress, binary.LittleEndian)
	require.NoError(t, m.Emit(&tyre.FrameResult{}, tyretest.Uniform(1), 0))
	b := make([]byte, FrameBytes+4)
	require.NoError(t, m.Tx([]byte{RegFrameData}, b))
	assert.Equal(t, []byte{10, 0}, b[FrameBytes-2:FrameBytes])
	assert.Equal(t, []byte{0, 0, 0, 0}, b[FrameBytes:])
	// Selecting the register again rewinds.
	require.NoError(t, m.Tx([]byte{RegFrameData}, b[:2]))
	assert.Equal(t, []byte{10, 0}, b[:2])
}

func TestController_i2c(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: DefaultAddress, W: []byte{RegFirmware}, R: []byte{1, 0x34, 0x12, 8, 1, 87, 14, 9, 22, 0x09}},
			{Addr: DefaultAddress, W: []byte{RegCommand, CmdReset}},
		},
	}
	c := NewController(&i2c.Dev{Bus: bus, Addr: DefaultAddress}, binary.BigEndian)
	s, err := c.Status()
	require.NoError(t, err)
	want := Status{
		Firmware: 1, Frame: 0x1234, FPS: 8, Detected: true, Confidence: 87,
		Width: 14, SpanStart: 9, SpanEnd: 22,
		Warnings: tyre.WarnHighGradient | tyre.WarnInverted,
	}
	assert.Equal(t, want, s)
	require.NoError(t, c.Command(CmdReset))
	require.NoError(t, bus.Close())
}

func TestController_badCRC(t *testing.T) {
	r := make([]byte, tempsLen)
	binary.BigEndian.PutUint16(r, 250)
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{{Addr: DefaultAddress, W: []byte{RegInnerMedian}, R: r}},
	}
	c := NewController(&i2c.Dev{Bus: bus, Addr: DefaultAddress}, binary.BigEndian)
	_, err := c.Temps()
	assert.True(t, errors.Is(err, ErrCRC), "%v", err)
	require.NoError(t, bus.Close())
}
