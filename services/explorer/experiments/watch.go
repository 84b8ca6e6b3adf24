// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package experiments

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce collapses editor save bursts into one reload.
const DefaultReloadDebounce = 200 * time.Millisecond

// Watch reloads s from path whenever the file changes, until ctx is done.
//
// The parent directory is watched so atomic rename-into-place saves are
// seen. A catalog that fails to parse or validate is logged and the
// previous contents stay in effect.
//
// Outputs:
//   - error: Non-nil if the watcher could not be started.
func (s *Static) Watch(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve catalog path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go s.watchLoop(ctx, w, abs, debounce, logger)
	return nil
}

func (s *Static) watchLoop(ctx context.Context, w *fsnotify.Watcher, path string, debounce time.Duration, logger *slog.Logger) {
	defer w.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("catalog watcher error", slog.String("error", err.Error()))
		case <-fire:
			fire = nil
			exps, err := readCatalog(path)
			if err == nil {
				err = s.Replace(exps)
			}
			if err != nil {
				logger.Warn("catalog reload rejected",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				continue
			}
			logger.Info("catalog reloaded",
				slog.String("path", path),
				slog.Int("experiments", s.Len()),
			)
		}
	}
}
