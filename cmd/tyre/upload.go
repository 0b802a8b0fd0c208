// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maruel/go-tyre/record"
	"github.com/maruel/go-tyre/tyre"
	"github.com/maruel/interrupt"
)

// PushRequest is the body posted to the collection server.
type PushRequest struct {
	ID     int64        `json:"id"`
	Secret []byte       `json:"secret"`
	Items  []PushRecord `json:"items"`
}

// PushRecord is one frame result.
type PushRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Record    *record.Record `json:"record"`
}

// Uploader sends the results in batches to a collection server.
type Uploader struct {
	config uploaderConfig
	c      chan PushRecord

	mu    sync.Mutex
	stats UploaderStats
}

type uploaderConfig struct {
	ID     int64
	Secret []byte
	Server string
}

// UploaderStats is the uploader health.
type UploaderStats struct {
	Sent     int
	Dropped  int
	HTTPReqs int
	Failures int
}

func (u *uploaderConfig) isValid() bool {
	return u.ID != 0 && len(u.Secret) != 0 && len(u.Server) != 0
}

// Stats returns a snapshot of the uploader health.
func (u *Uploader) Stats() UploaderStats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stats
}

// Emit implements driver.Sink. It never blocks; results are dropped when the
// server can't keep up.
func (u *Uploader) Emit(r *tyre.FrameResult, _ *tyre.Frame, fps float64) error {
	select {
	case u.c <- PushRecord{Timestamp: time.Now().UTC(), Record: record.New(r, fps)}:
	default:
		u.mu.Lock()
		u.stats.Dropped++
		u.mu.Unlock()
	}
	return nil
}

func (u *Uploader) run() {
	client := &http.Client{Timeout: 10 * time.Second}
	items := make([]PushRecord, 0, 30)
	for {
		// Do not send more than 30 records at a time.
		items = items[:0]
		select {
		case i := <-u.c:
			items = append(items, i)
		case <-interrupt.Channel:
			return
		}
		for loop := true; loop && len(items) < cap(items); {
			select {
			case i := <-u.c:
				items = append(items, i)
			default:
				loop = false
			}
		}
		err := u.send(client, items)
		u.mu.Lock()
		u.stats.HTTPReqs++
		if err != nil {
			log.Printf("Failed to post results: %s", err)
			u.stats.Failures++
		} else {
			u.stats.Sent += len(items)
		}
		u.mu.Unlock()
	}
}

func (u *Uploader) send(client *http.Client, items []PushRecord) error {
	req := &PushRequest{ID: u.config.ID, Secret: u.config.Secret, Items: items}
	var w bytes.Buffer
	if err := json.NewEncoder(&w).Encode(req); err != nil {
		return err
	}
	url := "https://" + u.config.Server + "/api/tyre/v1/push"
	resp, err := client.Post(url, "application/json", &w)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", url, resp.Status)
	}
	return nil
}

// LoadUploader loads ~/.config/tyre/tyre.json or create one if none exists.
//
// Returns nil if the configuration is incomplete.
func LoadUploader() *Uploader {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("no home directory: %s", err)
		return nil
	}
	configDir := filepath.Join(home, ".config", "tyre")
	configPath := filepath.Join(configDir, "tyre.json")
	u := &Uploader{c: make(chan PushRecord, 8*60)}
	srcData, err := os.ReadFile(configPath)
	if err == nil {
		if err := json.Unmarshal(srcData, &u.config); err != nil {
			log.Printf("%s is invalid json: %s", configPath, err)
		}
	}

	// Normalizes the config file.
	data, err := json.MarshalIndent(&u.config, "", "  ")
	if err != nil {
		panic(err)
	}
	data = append(data, '\n')
	if !bytes.Equal(srcData, data) {
		if err := os.MkdirAll(configDir, 0700); err != nil {
			log.Printf("failed to create %s: %s", configDir, err)
		} else if err := os.WriteFile(configPath, data, 0600); err != nil {
			log.Printf("failed to write %s: %s", configPath, err)
		}
	}
	if !u.config.isValid() {
		return nil
	}
	fmt.Printf("Sending to %s as ID %d\n", u.config.Server, u.config.ID)
	go u.run()
	return u
}
