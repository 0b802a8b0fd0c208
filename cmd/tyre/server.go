// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bufio"
	"bytes"
	"embed"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	"image/png"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/maruel/go-tyre/driver"
	"github.com/maruel/go-tyre/record"
	"github.com/maruel/go-tyre/regmap"
	"github.com/maruel/go-tyre/thermimg"
	"github.com/maruel/go-tyre/tyre"
	"github.com/maruel/interrupt"
	"golang.org/x/net/websocket"
)

//go:embed static
var static embed.FS

// scale is the upscaling factor of the images served.
const scale = 10

type snapshot struct {
	frame  tyre.Frame
	result tyre.FrameResult
	fps    float64
}

// WebServer shows the live view and the detection.
type WebServer struct {
	cond      sync.Cond
	snapshots [8 * 10]snapshot // 10 seconds worth of frames at 8Hz. Each is ~3kb.
	lastIndex int              // Index of the most recent snapshot.
	loop      *driver.Loop
	regs      *regmap.Map
}

// Emit implements driver.Sink.
func (s *WebServer) Emit(r *tyre.FrameResult, f *tyre.Frame, fps float64) error {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.lastIndex = (s.lastIndex + 1) % len(s.snapshots)
	snap := &s.snapshots[s.lastIndex]
	snap.frame = *f
	snap.result = *r
	snap.fps = fps
	s.cond.Broadcast()
	return nil
}

// StartWebServer serves on port. loop and regs are used for the status
// endpoints; regs may be nil.
func StartWebServer(port int, loop *driver.Loop, regs *regmap.Map) *WebServer {
	w := &WebServer{lastIndex: -1, loop: loop, regs: regs}
	w.cond.L = &sync.Mutex{}
	mux := http.NewServeMux()
	mux.HandleFunc("/", w.root)
	mux.HandleFunc("/still.png", w.still)
	mux.HandleFunc("/api/stats", w.stats)
	mux.HandleFunc("/api/regs", w.registers)
	mux.Handle("/stream", websocket.Handler(w.stream))
	fmt.Printf("Listening on %d\n", port)
	go http.ListenAndServe(fmt.Sprintf(":%d", port), loggingHandler{mux})
	go func() {
		<-interrupt.Channel
		w.cond.Broadcast()
	}()
	return w
}

func (s *WebServer) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	b, err := static.ReadFile("static/root.html")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write(b)
}

// last returns a copy of the most recent snapshot.
func (s *WebServer) last() (snapshot, bool) {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	if s.lastIndex == -1 {
		return snapshot{}, false
	}
	return s.snapshots[s.lastIndex], true
}

func (s *WebServer) still(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.last()
	if !ok {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	if err := png.Encode(w, render(&snap)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *WebServer) stats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.loop.Stats())
}

// registers dumps the register map in hex.
func (s *WebServer) registers(w http.ResponseWriter, r *http.Request) {
	if s.regs == nil {
		http.Error(w, "no register map", http.StatusNotFound)
		return
	}
	regs := s.regs.Snapshot()
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(hex.Dump(regs[:])))
}

// stream sends all frames as pseudo colored PNG as WebSocket frames, each
// followed by its record.
func (s *WebServer) stream(w *websocket.Conn) {
	log.Printf("websocket from %s", w.Request().RemoteAddr)
	defer w.Close()
	buf := &bytes.Buffer{}
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	lastIndex := s.lastIndex
	for !interrupt.IsSet() {
		s.cond.Wait()
		for !interrupt.IsSet() && lastIndex != s.lastIndex {
			lastIndex = (lastIndex + 1) % len(s.snapshots)
			snap := s.snapshots[lastIndex]
			s.cond.L.Unlock()
			// Do the actual I/O without the lock.
			// Frame I is for Image.
			buf.WriteString("I")
			encoder := base64.NewEncoder(base64.StdEncoding, buf)
			err := png.Encode(encoder, render(&snap))
			if err == nil {
				encoder.Close()
				_, err = w.Write(buf.Bytes())
			}
			buf.Reset()
			// Frame M is for Metadata.
			if err == nil {
				buf.WriteString("M")
				var b []byte
				if b, err = record.Marshal(&snap.result, snap.fps); err == nil {
					buf.Write(b)
					_, err = w.Write(buf.Bytes())
				}
				buf.Reset()
			}

			s.cond.L.Lock()
			// To break out of the loop, the lock must be held.
			if err != nil {
				log.Printf("websocket err: %s", err)
				return
			}
		}
	}
}

func render(s *snapshot) *image.RGBA {
	img := thermimg.Scale(thermimg.PseudoColor(&s.frame), scale)
	thermimg.Overlay(img, &s.result, scale)
	return img
}

// Private details.

type loggingHandler struct {
	handler http.Handler
}

type loggingResponseWriter struct {
	http.ResponseWriter
	length int
	status int
}

func (l *loggingResponseWriter) Write(data []byte) (size int, err error) {
	size, err = l.ResponseWriter.Write(data)
	l.length += size
	return
}

func (l *loggingResponseWriter) WriteHeader(status int) {
	l.ResponseWriter.WriteHeader(status)
	l.status = status
}

// Hijack is needed for websocket.
func (l *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h := l.ResponseWriter.(http.Hijacker)
	return h.Hijack()
}

// ServeHTTP logs each HTTP request if -v is passed.
func (l loggingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lrw := &loggingResponseWriter{ResponseWriter: w}
	l.handler.ServeHTTP(lrw, r)
	log.Printf("%s - %3d %6db %4s %s\n", r.RemoteAddr, lrw.status, lrw.length, r.Method, r.RequestURI)
}
