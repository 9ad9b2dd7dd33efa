// Package download moves fetched content into the download directory.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"

	"github.com/basecamp/netkit/internal/neterr"
)

// LockTimeout bounds the wait for a destination lock. When it expires the
// write proceeds unlocked rather than hanging.
const LockTimeout = 100 * time.Millisecond

// Sink writes downloads into a directory, replacing existing files.
type Sink struct {
	dir string
}

// NewSink returns a sink writing into dir. An empty dir selects
// DefaultDir().
func NewSink(dir string) *Sink {
	if dir == "" {
		dir = DefaultDir()
	}
	return &Sink{dir: dir}
}

// DefaultDir returns ~/Downloads/netkit, falling back to the temp dir.
func DefaultDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, "Downloads", "netkit")
	}
	return filepath.Join(os.TempDir(), "netkit", "downloads")
}

// Dir returns the destination directory.
func (s *Sink) Dir() string {
	return s.dir
}

// Destination returns where a download named name would be written. Only
// the base name is used.
func (s *Sink) Destination(name string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == "" {
		return "", neterr.Wrap(neterr.FileSavingFailed, fmt.Errorf("invalid file name %q", name))
	}
	return filepath.Join(s.dir, base), nil
}

// Save copies r into the destination for name. The file appears only
// once the copy is complete. A copy failure reports FileDownloadFailed;
// a filesystem failure reports FileSavingFailed.
func (s *Sink) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	dest, err := s.Destination(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", neterr.Wrap(neterr.FileSavingFailed, err)
	}

	unlock, err := lock(ctx, filepath.Join(s.dir, ".lock"))
	if err != nil {
		return "", neterr.Wrap(neterr.FileSavingFailed, err)
	}
	defer unlock()

	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return "", neterr.Wrap(neterr.FileSavingFailed, err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", neterr.Wrap(neterr.FileDownloadFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", neterr.Wrap(neterr.FileSavingFailed, err)
	}

	if err := replace(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", neterr.Wrap(neterr.FileSavingFailed, err)
	}
	return dest, nil
}

// SaveFile moves a file that was already downloaded into place, removing
// src afterwards.
func (s *Sink) SaveFile(ctx context.Context, name, src string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", neterr.Wrap(neterr.FileDownloadFailed, err)
	}
	dest, err := s.Save(ctx, name, f)
	f.Close()
	_ = os.Remove(src) // Best-effort cleanup
	return dest, err
}

func replace(src, dest string) error {
	if err := os.Rename(src, dest); err != nil {
		if runtime.GOOS != "windows" {
			return err
		}
		// Windows cannot rename over an existing file.
		if rmErr := os.Remove(dest); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return err
		}
		return os.Rename(src, dest)
	}
	return nil
}

// lock takes an exclusive lock on path. It fails open on timeout.
func lock(ctx context.Context, path string) (func(), error) {
	fl := flock.New(path)

	lctx, cancel := context.WithTimeout(ctx, LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(lctx, 10*time.Millisecond)
	if err != nil {
		if errors.Is(lctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return func() {}, nil
		}
		return nil, err
	}
	if !locked {
		return func() {}, nil
	}
	return func() { _ = fl.Unlock() }, nil
}
