// Package sourcefile opens an original data file for sequential reading,
// transparently handling the container formats the tool accepts.
//
// A source may be:
//
//   - a plain delimited text file
//   - a .zip archive holding exactly one entry, named like the archive
//     with the .csv extension substituted
//   - a .gz or .zst compressed stream of the text file
//
// Every open returns a single forward-only stream; the partitioning
// engine reads each source exactly once per batch, so no seeking is
// offered.
package sourcefile

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/cbda-tools/subsample/pkg/errors"
)

// Reader is a forward-only stream over the source file's text content.
// Close releases every layer (decompressor, archive, file).
type Reader struct {
	io.Reader
	closers []io.Closer
}

// Close closes the decompression and file layers in reverse order,
// returning the first failure.
func (r *Reader) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens path for sequential reading, unwrapping any recognized
// container by extension.
func Open(path string) (*Reader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return openZip(path)
	case ".gz":
		return openGzip(path)
	case ".zst":
		return openZstd(path)
	}
	return openPlain(path)
}

func openPlain(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "opening source file").WithDetail("path", path)
	}
	return &Reader{Reader: f, closers: []io.Closer{f}}, nil
}

// openZip opens the single archive entry whose name is the archive base
// name with the .zip suffix replaced by .csv.
func openZip(path string) (*Reader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "opening zip archive").WithDetail("path", path)
	}

	entry := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".csv"
	rc, err := zr.Open(entry)
	if err != nil {
		_ = zr.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "opening zip archive entry").
			WithDetail("path", path).
			WithDetail("entry", entry)
	}

	return &Reader{Reader: rc, closers: []io.Closer{zr, rc}}, nil
}

func openGzip(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "opening source file").WithDetail("path", path)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "opening gzip stream").WithDetail("path", path)
	}
	return &Reader{Reader: gz, closers: []io.Closer{f, gz}}, nil
}

func openZstd(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "opening source file").WithDetail("path", path)
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "opening zstd stream").WithDetail("path", path)
	}
	rc := zr.IOReadCloser()
	return &Reader{Reader: rc, closers: []io.Closer{f, rc}}, nil
}
