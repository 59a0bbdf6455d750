// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/oops"
)

// Holder keeps the process-default Configuration.
//
// At most one Configuration is the default at a time; the last SetDefault
// wins. Holder is safe for concurrent use.
type Holder struct {
	mu       sync.RWMutex
	current  *Configuration
	onChange []func(*Configuration)
}

// NewHolder creates a holder with no default.
func NewHolder() *Holder {
	return &Holder{}
}

// SetDefault makes c the default and notifies OnChange callbacks.
func (h *Holder) SetDefault(c *Configuration) {
	h.mu.Lock()
	h.current = c
	callbacks := append([]func(*Configuration){}, h.onChange...)
	h.mu.Unlock()

	for _, fn := range callbacks {
		fn(c)
	}
}

// Default returns the default Configuration.
func (h *Holder) Default() (*Configuration, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return nil, oops.In("config").
			Code("CONFIG_NOT_INITIALIZED").
			Hint("call SetDefault or launch an application first").
			Errorf("default configuration not initialized")
	}
	return h.current, nil
}

// OnChange registers fn to run whenever the default changes.
func (h *Holder) OnChange(fn func(*Configuration)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// FromProgram selects program from pool and makes it the default.
func (h *Holder) FromProgram(pool *Pool, program string) (*Configuration, error) {
	c, err := pool.Get(program)
	if err != nil {
		return nil, err
	}
	h.SetDefault(c)
	return c, nil
}

// Reload rebuilds the document at path and makes program the default.
// On failure the current default is kept.
func (h *Holder) Reload(path, program string, opts ...BuildOption) error {
	pool, err := LoadPool(path, opts...)
	if err != nil {
		return oops.In("config").With("path", path).Wrapf(err, "reload")
	}
	_, err = h.FromProgram(pool, program)
	return err
}

// Watch reloads the document at path whenever it is written, until ctx is
// done. The directory is watched so that atomic saves are seen.
func (h *Holder) Watch(ctx context.Context, path, program string, opts ...BuildOption) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return oops.In("config").With("path", path).Wrap(err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return oops.In("config").Wrapf(err, "create watcher")
	}
	defer watcher.Close() //nolint:errcheck // best-effort close on exit

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return oops.In("config").With("path", abs).Wrapf(err, "watch directory")
	}

	slog.Info("watching configuration", "path", abs, "program", program)
	filename := filepath.Base(abs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := h.Reload(abs, program, opts...); err != nil {
				slog.Error("configuration reload failed, keeping previous",
					"path", abs,
					"error", err)
				continue
			}
			slog.Info("configuration reloaded", "path", abs, "program", program)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("configuration watcher error", "error", err)
		}
	}
}
