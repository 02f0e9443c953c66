// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/TellerGate/services/orchestrator/classifier"
)

// LoadVocabulary parses a classifier vocabulary overlay file. Empty fields
// in the file keep their built-in values when merged by the classifier.
func LoadVocabulary(path string) (classifier.Vocabulary, error) {
	var vocab classifier.Vocabulary
	raw, err := os.ReadFile(path)
	if err != nil {
		return vocab, fmt.Errorf("read vocabulary file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &vocab); err != nil {
		return vocab, fmt.Errorf("parse vocabulary file %s: %w", path, err)
	}
	return vocab, nil
}

// WatchVocabulary reloads the vocabulary overlay whenever the file changes
// and hands each successful parse to onReload. The new-vocabulary-every-edit
// flow lets operations tune routing keywords without a restart.
//
// The watcher observes the parent directory, not the file, because editors
// and configmap mounts replace files by rename; a watch on the old inode
// would go quiet after the first update. Returns a stop function.
func WatchVocabulary(path string, onReload func(classifier.Vocabulary), logger *slog.Logger) (func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create vocabulary watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	go func() {
		// Debounce: a single save can emit several events.
		var lastReload time.Time
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if time.Since(lastReload) < 200*time.Millisecond {
					continue
				}
				lastReload = time.Now()

				vocab, err := LoadVocabulary(path)
				if err != nil {
					logger.Warn("Vocabulary reload failed, keeping current tables",
						"path", path,
						"error", err,
					)
					continue
				}
				onReload(vocab)
				logger.Info("Vocabulary reloaded", "path", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Vocabulary watcher error", "error", err)
			}
		}
	}()

	return func() { _ = watcher.Close() }, nil
}
