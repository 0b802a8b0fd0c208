// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package record

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/maruel/go-tyre/tyre"
	"github.com/maruel/go-tyre/tyretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func process(t *testing.T, frames int) tyre.FrameResult {
	p, err := tyre.New(tyre.DefaultConfig())
	require.NoError(t, err)
	var r tyre.FrameResult
	for i := 0; i < frames; i++ {
		r = p.Process(tyretest.Band(20, 60, 9, 22))
	}
	return r
}

func TestCompact(t *testing.T) {
	r := process(t, 3)
	line := string(AppendCompact(nil, &r, 8.04))
	assert.Equal(t, "3,8.0,60.0,60.0,60.0,60.0,60.0,60.0,14,0.50,1", line)

	l, err := ParseCompact(line)
	require.NoError(t, err)
	want := Line{
		Frame: 3, FPS: 8, InnerAvg: 60, InnerMedian: 60, CentreAvg: 60,
		CentreMedian: 60, OuterAvg: 60, OuterMedian: 60, Width: 14,
		Confidence: 0.5, Detected: true,
	}
	assert.Equal(t, want, l)
}

func TestCompact_nonFinite(t *testing.T) {
	r := tyre.Passthrough(7)
	r.Inner.Avg = math.NaN()
	r.Outer.Median = math.Inf(1)
	line := string(AppendCompact(nil, &r, math.Inf(-1)))
	assert.Equal(t, "7,0.0,0.0,0.0,0.0,0.0,0.0,0.0,32,0.00,0", line)
}

func TestParseCompact_errors(t *testing.T) {
	for _, line := range []string{
		"",
		Header,
		"1,2,3",
		"1,8.0,1,1,1,1,1,1,14,0.5,2",
		"x,8.0,1,1,1,1,1,1,14,0.5,1",
	} {
		_, err := ParseCompact(line)
		assert.Error(t, err, line)
	}
}

func TestJSON(t *testing.T) {
	r := process(t, 1)
	r.Profile[0] = math.NaN()
	b, err := Marshal(&r, 7.96)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), `{"frame_number":1,"fps":8,`), string(b))

	got, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, New(&r, 7.96), got)
	assert.Equal(t, 0., got.TemperatureProfile[0])
	assert.Equal(t, 60., got.Analysis.Centre.Avg)
	assert.Equal(t, Detection{Detected: true, SpanStart: 9, SpanEnd: 22, TyreWidth: 14, Confidence: 0.5, Clipped: "none"}, got.Detection)
	assert.Equal(t, []string{}, got.Warnings)
}

func TestWriter(t *testing.T) {
	r := process(t, 1)
	var buf bytes.Buffer
	w := NewWriter(&buf, FormatCompact)
	w.Header = true
	require.NoError(t, w.Emit(&r, nil, 8))
	require.NoError(t, w.Emit(&r, nil, 8))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, Header, lines[0])
	assert.Equal(t, lines[1], lines[2])

	buf.Reset()
	w = NewWriter(&buf, FormatJSON)
	require.NoError(t, w.Emit(&r, nil, 8))
	got, err := Unmarshal(bytes.TrimSpace(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got.FrameNumber)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	f, err = ParseFormat("compact")
	require.NoError(t, err)
	assert.Equal(t, FormatCompact, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
