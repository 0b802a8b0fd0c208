// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package tyre

import (
	"errors"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MaxPersistence is the maximum number of past detections kept for
// persistence smoothing.
const MaxPersistence = 8

// Config is the immutable set of tuning parameters of a Pipeline.
//
// Temperatures are in °C and columns are 0 based.
type Config struct {
	MinTemp             float64 `json:"min_temp"`
	MaxTemp             float64 `json:"max_temp"`
	HotPixelThreshold   float64 `json:"hot_pixel_threshold"`
	MADUniformThreshold float64 `json:"mad_uniform_threshold"`
	KFloor              float64 `json:"k_floor"`
	KMultiplier         float64 `json:"k_multiplier"`
	DeltaFloor          float64 `json:"delta_floor"`
	DeltaMultiplier     float64 `json:"delta_multiplier"`
	MaxFailCount        int     `json:"max_fail_count"`
	CentreCol           int     `json:"centre_col"`
	MinTyreWidth        int     `json:"min_tyre_width"`
	MaxTyreWidth        int     `json:"max_tyre_width"`
	MaxWidthChangeRatio float64 `json:"max_width_change_ratio"`
	EMAAlpha            float64 `json:"ema_alpha"`
	PersistenceFrames   int     `json:"persistence_frames"`

	// Warning thresholds.
	GradientWarning   float64 `json:"gradient_warning"`
	VarianceWarning   float64 `json:"variance_warning"`
	ConfidenceWarning float64 `json:"confidence_warning"`
	ZoneSpreadWarning float64 `json:"zone_spread_warning"`
	HighTempWarning   float64 `json:"high_temp_warning"`
}

// DefaultConfig returns the tuning used on the car.
func DefaultConfig() Config {
	return Config{
		MinTemp:             0,
		MaxTemp:             180,
		HotPixelThreshold:   180,
		MADUniformThreshold: 0.5,
		KFloor:              5,
		KMultiplier:         2,
		DeltaFloor:          3,
		DeltaMultiplier:     1.8,
		MaxFailCount:        2,
		CentreCol:           16,
		MinTyreWidth:        6,
		MaxTyreWidth:        28,
		MaxWidthChangeRatio: 0.3,
		EMAAlpha:            0.3,
		PersistenceFrames:   2,
		GradientWarning:     10,
		VarianceWarning:     20,
		ConfidenceWarning:   0.5,
		ZoneSpreadWarning:   5,
		HighTempWarning:     120,
	}
}

// Validate returns an error if the configuration cannot be used.
func (c *Config) Validate() error {
	if c.MinTemp >= c.MaxTemp {
		return fmt.Errorf("min_temp (%g) must be below max_temp (%g)", c.MinTemp, c.MaxTemp)
	}
	if c.EMAAlpha <= 0 || c.EMAAlpha > 1 {
		return fmt.Errorf("ema_alpha must be in (0, 1], got %g", c.EMAAlpha)
	}
	if c.MADUniformThreshold < 0 {
		return errors.New("mad_uniform_threshold must be positive")
	}
	if c.KFloor < 0 || c.KMultiplier < 0 || c.DeltaFloor < 0 || c.DeltaMultiplier < 0 {
		return errors.New("growth thresholds must be positive")
	}
	if c.MaxFailCount < 0 {
		return fmt.Errorf("max_fail_count must be positive, got %d", c.MaxFailCount)
	}
	if c.CentreCol < 0 || c.CentreCol >= Width {
		return fmt.Errorf("centre_col must be in [0, %d), got %d", Width, c.CentreCol)
	}
	if c.MinTyreWidth < 1 || c.MinTyreWidth > c.MaxTyreWidth || c.MaxTyreWidth > Width {
		return fmt.Errorf("tyre width bounds [%d, %d] must be within [1, %d]", c.MinTyreWidth, c.MaxTyreWidth, Width)
	}
	if c.MaxWidthChangeRatio < 0 {
		return fmt.Errorf("max_width_change_ratio must be positive, got %g", c.MaxWidthChangeRatio)
	}
	if c.PersistenceFrames < 1 || c.PersistenceFrames > MaxPersistence {
		return fmt.Errorf("persistence_frames must be in [1, %d], got %d", MaxPersistence, c.PersistenceFrames)
	}
	return nil
}

// LoadConfig reads a JSON file on top of DefaultConfig.
//
// Keys absent from the file keep their default value.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
