// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package tyre

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tyre.json")
	if err := os.WriteFile(p, []byte(`{"ema_alpha": 0.5, "persistence_frames": 3}`), 0600); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(p)
	if err != nil {
		t.Fatal(err)
	}
	want := DefaultConfig()
	want.EMAAlpha = 0.5
	want.PersistenceFrames = 3
	if c != want {
		t.Fatalf("%+v", c)
	}
}

func TestLoadConfig_invalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tyre.json")
	if err := os.WriteFile(p, []byte(`{"centre_col": 40}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(p); err == nil {
		t.Fatal("expected error")
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadConfig_malformed(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tyre.json")
	if err := os.WriteFile(p, []byte(`{"ema_alpha": "fast"}`), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := LoadConfig(p)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), p) {
		t.Fatal(err)
	}
	if b, err := json.Marshal(DefaultConfig()); err != nil || !strings.Contains(string(b), `"ema_alpha":`) {
		t.Fatalf("%s %v", b, err)
	}
}
