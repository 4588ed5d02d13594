// Package fixture generates synthetic delimited data files. The tests
// and the fixture subcommand use it to build sources with a known shape
// without shipping data files.
package fixture

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cbda-tools/subsample/pkg/errors"
	"github.com/cbda-tools/subsample/pkg/sampler"
)

// Generate writes a synthetic source file: a header line naming columns
// attr-0..attr-N (the first two renamed case-id and outcome) followed by
// rows of small random integers. The first field of each row is the row
// ordinal so outputs can be traced back to source rows by eye.
func Generate(path string, rows, cols int, delimiter string, rng sampler.Rand) error {
	if rows < 1 || cols < 3 {
		return errors.Newf(errors.ErrorTypeConfig, "fixture needs at least 1 row and 3 columns, got %dx%d", rows, cols)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "creating fixture file").WithDetail("path", path)
	}

	buf := bufio.NewWriter(f)

	header := make([]string, cols)
	header[0] = "case-id"
	header[1] = "outcome"
	for c := 2; c < cols; c++ {
		header[c] = fmt.Sprintf("attr-%d", c)
	}
	if _, err := buf.WriteString(strings.Join(header, delimiter) + "\n"); err != nil {
		_ = f.Close()
		return errors.Wrap(err, errors.ErrorTypeIO, "writing fixture file").WithDetail("path", path)
	}

	fields := make([]string, cols)
	for r := 0; r < rows; r++ {
		fields[0] = strconv.Itoa(r)
		fields[1] = strconv.Itoa(rng.Intn(2))
		for c := 2; c < cols; c++ {
			fields[c] = strconv.Itoa(rng.Intn(100))
		}
		if _, err := buf.WriteString(strings.Join(fields, delimiter) + "\n"); err != nil {
			_ = f.Close()
			return errors.Wrap(err, errors.ErrorTypeIO, "writing fixture file").WithDetail("path", path)
		}
	}

	if err := buf.Flush(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, errors.ErrorTypeIO, "flushing fixture file").WithDetail("path", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "closing fixture file").WithDetail("path", path)
	}
	return nil
}
