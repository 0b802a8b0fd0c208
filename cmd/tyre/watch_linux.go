// Copyright 2016 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"os"
	"time"

	"github.com/maruel/interrupt"
	fsnotify "gopkg.in/fsnotify.v1"
)

// watchFiles returns when the executable or one of the extra files is
// modified, or on Ctrl-C.
func watchFiles(extra ...string) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	paths := append([]string{exe}, extra...)
	mods := make(map[string]time.Time, len(paths))
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return err
		}
		mods[p] = fi.ModTime()
		if err = watcher.Add(p); err != nil {
			return err
		}
	}
	for {
		select {
		case <-interrupt.Channel:
			return nil
		case err = <-watcher.Errors:
			return err
		case e := <-watcher.Events:
			mod0, ok := mods[e.Name]
			if !ok {
				continue
			}
			fi, err := os.Stat(e.Name)
			if err != nil || !fi.ModTime().Equal(mod0) {
				return err
			}
		}
	}
}
