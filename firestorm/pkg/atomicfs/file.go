package atomicfs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"
)

var ErrFinished = errors.New("atomicfs: file is already committed or discarded")

////////////////////////////////////////////////////////////////////////////////

// File is written next to its destination and renamed over it on Close,
// so readers observe either the old contents or the complete new ones.
type File struct {
	fs      afero.Fs
	tmp     afero.File
	tmpName string
	dst     string
	sync    bool
}

type FileOption func(f *File)

// WithSync flushes the data to stable storage before the rename.
func WithSync() FileOption {
	return func(f *File) {
		f.sync = true
	}
}

// WithFs writes into fs instead of the OS filesystem.
func WithFs(fs afero.Fs) FileOption {
	return func(f *File) {
		f.fs = fs
	}
}

////////////////////////////////////////////////////////////////////////////////

const tmpSuffix = ".tmp-"

// Create opens a temporary file for path, creating missing parent directories.
func Create(path string, opts ...FileOption) (_ *File, err error) {
	f := &File{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(f)
	}

	path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	dir, base := filepath.Split(path)

	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %q: %w", dir, err)
	}

	tmp, err := afero.TempFile(f.fs, dir, base+tmpSuffix)
	if err != nil {
		return nil, err
	}
	f.tmp, f.tmpName, f.dst = tmp, tmp.Name(), path
	defer func() {
		if err != nil {
			_ = f.Discard()
		}
	}()

	// Uncommitted temporaries of abandoned files are removed by the GC.
	runtime.SetFinalizer(f, (*File).Discard)

	if err := f.fs.Chmod(f.tmpName, 0o644); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Name() string {
	return f.dst
}

func (f *File) Write(data []byte) (int, error) {
	if f.tmp == nil {
		return 0, ErrFinished
	}
	return f.tmp.Write(data)
}

// Discard drops the temporary file. It is a no-op after Close or Discard.
func (f *File) Discard() error {
	if f.tmp == nil {
		return nil
	}
	tmp := f.tmp
	f.tmp = nil
	runtime.SetFinalizer(f, nil)

	closeErr := tmp.Close()
	if err := f.fs.Remove(f.tmpName); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		return closeErr
	}
	return nil
}

// Close commits the file by renaming it over the destination.
func (f *File) Close() (err error) {
	if f.tmp == nil {
		return ErrFinished
	}
	defer func() {
		if err != nil {
			_ = f.Discard()
		}
	}()

	if f.sync {
		if err := f.tmp.Sync(); err != nil {
			return err
		}
	}
	if err := f.tmp.Close(); err != nil {
		return err
	}
	if err := f.fs.Rename(f.tmpName, f.dst); err != nil {
		return err
	}

	f.tmp = nil
	runtime.SetFinalizer(f, nil)
	return nil
}

////////////////////////////////////////////////////////////////////////////////

var _ io.WriteCloser = (*File)(nil)
