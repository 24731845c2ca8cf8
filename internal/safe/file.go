// Package safe opens user-named input files (configuration, pprof
// profiles) with type and size checks.
package safe

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultMaxFileSize is the default maximum file size (1MB).
const DefaultMaxFileSize = 1 << 20

// Options configures Open and ReadFile.
type Options struct {
	// MaxSize is the maximum allowed file size in bytes. Zero means DefaultMaxFileSize.
	MaxSize int64
	// AllowSymlinks allows the path to be a symlink. Default is false.
	AllowSymlinks bool
}

// Open opens a regular file for reading after checking its type and size.
// Errors from the file system are wrapped, so errors.Is(err,
// os.ErrNotExist) still works.
func Open(path string, opts *Options) (*os.File, error) {
	if opts == nil {
		opts = &Options{}
	}
	maxSize := opts.MaxSize
	if maxSize == 0 {
		maxSize = DefaultMaxFileSize
	}

	cleanPath := filepath.Clean(path)

	// Check file info without following symlinks.
	info, err := os.Lstat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if !opts.AllowSymlinks {
			return nil, fmt.Errorf("file %q is a symlink, which is not allowed here", path)
		}
		if info, err = os.Stat(cleanPath); err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("path %q is not a regular file", path)
	}
	if info.Size() > maxSize {
		return nil, fmt.Errorf("file %q exceeds maximum allowed size of %d bytes", path, maxSize)
	}

	// #nosec G304 -- validated above.
	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

// ReadFile reads a whole file with the checks of Open.
func ReadFile(path string, opts *Options) ([]byte, error) {
	f, err := Open(path, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
