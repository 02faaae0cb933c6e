package atomicfs

import "io"

// WriteWith streams the contents produced by write into path. The
// destination is left untouched if write fails.
func WriteWith(path string, write func(w io.Writer) error, opts ...FileOption) error {
	f, err := Create(path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Discard()
	}()

	if err := write(f); err != nil {
		return err
	}
	return f.Close()
}
