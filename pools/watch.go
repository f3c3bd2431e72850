// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pools

import (
	"log/slog"
	"path/filepath"

	"cogentcore.org/vframe/base/errors"
	"github.com/fsnotify/fsnotify"
)

type watcher struct {
	fs   *fsnotify.Watcher
	done chan struct{}
	exit chan struct{}
}

// Watch reloads the pool sizes whenever the loaded file changes,
// calling onReload, if non-nil, after each reload. The directory is
// watched, so editors that replace the file are seen.
// It is safe to call multiple times.
func (m *Manager) Watch(onReload func(err error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watch != nil {
		return nil
	}
	if m.Path == "" {
		return errors.New("pools: no file loaded to watch")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "pools: creating watcher")
	}
	path := filepath.Clean(m.Path)
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return errors.Wrap(err, "pools: watching pool sizes")
	}
	w := &watcher{fs: fw, done: make(chan struct{}), exit: make(chan struct{})}
	m.watch = w
	go func() {
		defer close(w.exit)
		for {
			select {
			case <-w.done:
				return
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				err := m.LoadFile(path)
				if err == nil {
					slog.Info("pools: reloaded pool sizes", "file", path)
				}
				errors.Log(err)
				if onReload != nil {
					onReload(err)
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				errors.Log(err)
			}
		}
	}()
	return nil
}

// Close stops watching, if [Manager.Watch] was called.
func (m *Manager) Close() error {
	m.mu.Lock()
	w := m.watch
	m.watch = nil
	m.mu.Unlock()
	if w == nil {
		return nil
	}
	close(w.done)
	err := w.fs.Close()
	<-w.exit
	return err
}
