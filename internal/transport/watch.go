package transport

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ErrNotWatchable is returned by Watch for transports not backed by a
// directory.
var ErrNotWatchable = errors.New("fixture transport is not directory-backed")

// Watch reloads the manifest whenever it changes on disk, until ctx is
// done. Fixture files are read on every request, so only the manifest needs
// watching. onReload, when non-nil, receives the result of each reload.
func (f *FixtureTransport) Watch(ctx context.Context, onReload func(error)) error {
	if f.dir == "" {
		return ErrNotWatchable
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory rather than the file so editors that replace the
	// manifest via rename are still seen.
	if err := w.Add(f.dir); err != nil {
		return err
	}
	target := filepath.Clean(filepath.Join(f.dir, f.manifestName))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			err := f.Reload()
			if err != nil {
				f.logger.Warn("fixture manifest reload failed", "error", err)
			} else {
				f.logger.Debug("fixture manifest reloaded", "entries", f.Entries())
			}
			if onReload != nil {
				onReload(err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("fixture watcher error", "error", err)
		}
	}
}
