// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sensor provides thermal frame sources: recorded text streams,
// serial ports and a fake sensor.
//
// The wire format is one frame per line, 768 comma separated temperatures in
// °C, row major. Lines starting with '#' are ignored.
package sensor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/maruel/go-tyre/tyre"
	"github.com/maruel/go-tyre/tyretest"
	"go.bug.st/serial"
)

// ErrShort is returned when a line does not contain exactly one frame.
var ErrShort = errors.New("sensor: wrong number of pixels")

// Source is anything producing frames.
type Source interface {
	// NextFrame blocks until a frame is available and stores it in f.
	//
	// On error, f content is undefined.
	NextFrame(f *tyre.Frame) error
}

// SourceCloser is a Source that must be closed.
type SourceCloser interface {
	Source
	io.Closer
}

// Reader decodes frames from a text stream.
type Reader struct {
	s    *bufio.Scanner
	line int
}

// NewReader returns a Reader decoding r.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 16*1024), 64*1024)
	return &Reader{s: s}
}

// NextFrame implements Source.
//
// NaN and infinite values are returned as is. Returns io.EOF at the end of
// the stream.
func (r *Reader) NextFrame(f *tyre.Frame) error {
	for r.s.Scan() {
		r.line++
		l := strings.TrimSpace(r.s.Text())
		if l == "" || l[0] == '#' {
			continue
		}
		return r.parse(l, f)
	}
	if err := r.s.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (r *Reader) parse(l string, f *tyre.Frame) error {
	i := 0
	for len(l) != 0 {
		if i == tyre.Pixels {
			return fmt.Errorf("line %d: %w", r.line, ErrShort)
		}
		field := l
		if j := strings.IndexByte(l, ','); j != -1 {
			field, l = l[:j], l[j+1:]
		} else {
			l = ""
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
		if err != nil {
			return fmt.Errorf("line %d: pixel %d: %w", r.line, i, err)
		}
		f.Pix[i] = float32(v)
		i++
	}
	if i != tyre.Pixels {
		return fmt.Errorf("line %d: got %d pixels: %w", r.line, i, ErrShort)
	}
	return nil
}

// WriteFrame encodes f in the format read by Reader.
func WriteFrame(w io.Writer, f *tyre.Frame) error {
	b := make([]byte, 0, tyre.Pixels*6)
	for i, v := range f.Pix {
		if i != 0 {
			b = append(b, ',')
		}
		b = strconv.AppendFloat(b, float64(v), 'f', 2, 32)
	}
	b = append(b, '\n')
	_, err := w.Write(b)
	return err
}

// File replays a recording.
type File struct {
	*Reader
	f *os.File
}

// OpenFile opens a recording created with WriteFrame.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{Reader: NewReader(f), f: f}, nil
}

// Close implements io.Closer.
func (f *File) Close() error {
	return f.f.Close()
}

// Serial reads frames streamed by a sensor bridge on a serial port.
type Serial struct {
	*Reader
	Port serial.Port
}

// OpenPort opens a serial port in 8N1 mode.
func OpenPort(path string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return p, nil
}

// OpenSerial opens a serial port streaming frames.
func OpenSerial(path string, baud int) (*Serial, error) {
	p, err := OpenPort(path, baud)
	if err != nil {
		return nil, err
	}
	return &Serial{Reader: NewReader(p), Port: p}, nil
}

// Close implements io.Closer.
func (s *Serial) Close() error {
	return s.Port.Close()
}

// Open returns the source described by name:
//   - "fake" for a simulated sensor
//   - "serial:<port>" for a serial port at baud
//   - anything else is a path to a recording
func Open(name string, baud int) (SourceCloser, error) {
	switch {
	case name == "fake":
		return tyretest.NewFake(), nil
	case strings.HasPrefix(name, "serial:"):
		return OpenSerial(strings.TrimPrefix(name, "serial:"), baud)
	default:
		return OpenFile(name)
	}
}
