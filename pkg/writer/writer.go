// Package writer streams one batch of selection sets out of the source
// file in a single sequential pass.
//
// Every output data stream stays open for the whole pass, which is why
// the planner bounds the batch by the open-file budget. The writer
// guarantees that every handle it opens is closed on every exit path,
// including failures, so repeated invocations never leak handles into
// the next run's budget. Partially written files from a failed pass are
// left on disk for the caller to discard.
//
// The source format is naive delimiter-separated text as produced by the
// profiling step: fields are split on the delimiter with no quoting
// rules, so outputs are exact substrings of the input rows.
package writer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cbda-tools/subsample/pkg/errors"
	"github.com/cbda-tools/subsample/pkg/logger"
	"github.com/cbda-tools/subsample/pkg/sampler"
	"github.com/cbda-tools/subsample/pkg/sourcefile"
)

// maxLineSize bounds a single source line during the pass.
const maxLineSize = 16 * 1024 * 1024

// Params carries the invariant settings of one batch write.
type Params struct {
	// OutDir receives the data files and sidecars.
	OutDir string
	// Delimiter separates fields in the source and the outputs.
	Delimiter string
	// CaseColumn and OutcomeColumn lead every output row, in that order,
	// ahead of the selected attribute columns.
	CaseColumn    int
	OutcomeColumn int
}

// Stats summarizes one pass.
type Stats struct {
	// RowsScanned is the number of data rows read from the source.
	RowsScanned int
	// RowsEmitted is the total rows written across all output sets.
	RowsEmitted int
	// FilesWritten counts data files and sidecars committed.
	FilesWritten int
}

// output is one open data stream plus the projection it applies.
type output struct {
	set  *sampler.SelectionSet
	file *os.File
	buf  *bufio.Writer
	// cols is the fixed output column order (case, outcome, attributes);
	// nil means every original column.
	cols []int
}

// WriteAll opens one data stream per selection set, performs exactly one
// sequential read of the source's data rows fanning each row out to
// every set that contains its ordinal, then writes the ordinal sidecars.
func WriteAll(srcPath string, sets []*sampler.SelectionSet, p Params) (Stats, error) {
	var stats Stats
	log := logger.With(zap.String("component", "writer"))

	src, err := sourcefile.Open(srcPath)
	if err != nil {
		return stats, err
	}
	defer src.Close()

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return stats, errors.Wrap(err, errors.ErrorTypeIO, "reading source file").WithDetail("path", srcPath)
		}
		return stats, errors.New(errors.ErrorTypeFormat, "source file is empty, no header line").WithDetail("path", srcPath)
	}
	header := strings.Split(scanner.Text(), p.Delimiter)

	outs, err := openOutputs(sets, header, p)
	if err != nil {
		closeAll(outs)
		return stats, err
	}
	// Failure below must not leak a handle into the next run's budget.
	defer closeAll(outs)

	for ordinal := 0; scanner.Scan(); ordinal++ {
		line := scanner.Text()
		if !strings.Contains(line, p.Delimiter) {
			return stats, errors.Newf(errors.ErrorTypeFormat, "delimiter %q not found in data row %d", p.Delimiter, ordinal).
				WithDetail("path", srcPath)
		}

		var fields []string // split lazily, most rows match no set
		for _, o := range outs {
			if _, wanted := o.set.RowOrdinals[ordinal]; !wanted {
				continue
			}
			if fields == nil {
				fields = strings.Split(line, p.Delimiter)
			}
			if err := o.writeRow(fields, ordinal, p.Delimiter); err != nil {
				return stats, err
			}
			stats.RowsEmitted++
		}
		stats.RowsScanned++
	}
	if err := scanner.Err(); err != nil {
		return stats, errors.Wrap(err, errors.ErrorTypeIO, "reading source file").WithDetail("path", srcPath)
	}

	// Flush and close the data streams before the sidecars so their
	// handles are returned ahead of opening new ones.
	for _, o := range outs {
		if err := o.close(); err != nil {
			return stats, err
		}
		stats.FilesWritten++
	}

	for _, o := range outs {
		n, err := writeSidecars(o.set, p.OutDir)
		stats.FilesWritten += n
		if err != nil {
			return stats, err
		}
	}

	log.Debug("pass complete",
		zap.Int("rows_scanned", stats.RowsScanned),
		zap.Int("rows_emitted", stats.RowsEmitted),
		zap.Int("files_written", stats.FilesWritten))

	return stats, nil
}

// DataFileName returns the data file name for a set. The single-mode
// shared validation set is unnumbered.
func DataFileName(set *sampler.SelectionSet) string {
	if set.Kind == sampler.KindValidation && set.AllColumns {
		return "validation-set"
	}
	return fmt.Sprintf("%s-set-%d", set.Kind, set.ID)
}

func openOutputs(sets []*sampler.SelectionSet, header []string, p Params) ([]*output, error) {
	outs := make([]*output, 0, len(sets))
	for _, set := range sets {
		path := filepath.Join(p.OutDir, DataFileName(set))
		f, err := os.Create(path)
		if err != nil {
			return outs, errors.Wrap(err, errors.ErrorTypeIO, "creating set data file").WithDetail("path", path)
		}

		o := &output{
			set:  set,
			file: f,
			buf:  bufio.NewWriter(f),
		}
		if !set.AllColumns {
			o.cols = make([]int, 0, len(set.ColumnOrdinals)+2)
			o.cols = append(o.cols, p.CaseColumn, p.OutcomeColumn)
			o.cols = append(o.cols, set.ColumnOrdinals...)
		}
		outs = append(outs, o)

		if err := o.writeRow(header, -1, p.Delimiter); err != nil {
			return outs, err
		}
	}
	return outs, nil
}

// writeRow emits the projected fields of one source row. ordinal -1
// marks the header line in diagnostics.
func (o *output) writeRow(fields []string, ordinal int, delimiter string) error {
	var line string
	if o.cols == nil {
		line = strings.Join(fields, delimiter)
	} else {
		projected := make([]string, len(o.cols))
		for i, c := range o.cols {
			if c >= len(fields) {
				return errors.Newf(errors.ErrorTypeFormat, "row %d has only %d fields but column ordinal %d was selected", ordinal, len(fields), c).
					WithDetail("file", DataFileName(o.set))
			}
			projected[i] = fields[c]
		}
		line = strings.Join(projected, delimiter)
	}

	if _, err := o.buf.WriteString(line); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "writing set data file").WithDetail("file", DataFileName(o.set))
	}
	if err := o.buf.WriteByte('\n'); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "writing set data file").WithDetail("file", DataFileName(o.set))
	}
	return nil
}

// close flushes and closes the data stream, once.
func (o *output) close() error {
	if o.file == nil {
		return nil
	}
	flushErr := o.buf.Flush()
	closeErr := o.file.Close()
	o.file = nil
	if flushErr != nil {
		return errors.Wrap(flushErr, errors.ErrorTypeIO, "flushing set data file").WithDetail("file", DataFileName(o.set))
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, errors.ErrorTypeIO, "closing set data file").WithDetail("file", DataFileName(o.set))
	}
	return nil
}

// closeAll closes whatever is still open, ignoring errors: it runs on
// paths that already carry one.
func closeAll(outs []*output) {
	for _, o := range outs {
		if o.file != nil {
			_ = o.file.Close()
			o.file = nil
		}
	}
}

// writeSidecars writes the row-ordinal sidecar for a set and, when the
// set owns its column selection, the column-ordinal sidecar. Training
// members of paired modes share columns with their validation partner
// and omit the file, as does the all-columns shared validation set.
func writeSidecars(set *sampler.SelectionSet, outDir string) (int, error) {
	base := filepath.Join(outDir, DataFileName(set))

	written := 0
	if err := writeOrdinalFile(base+"-row-ordinals", sampler.SortedOrdinals(set.RowOrdinals)); err != nil {
		return written, err
	}
	written++

	if set.AllColumns || set.SharedColumns {
		return written, nil
	}
	if err := writeOrdinalFile(base+"-column-ordinals", set.ColumnOrdinals); err != nil {
		return written, err
	}
	written++
	return written, nil
}

// writeOrdinalFile writes ordinals one per line in ascending order.
func writeOrdinalFile(path string, ordinals []int) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "creating ordinal sidecar").WithDetail("path", path)
	}

	buf := bufio.NewWriter(f)
	for _, o := range ordinals {
		if _, err := buf.WriteString(strconv.Itoa(o)); err != nil {
			_ = f.Close()
			return errors.Wrap(err, errors.ErrorTypeIO, "writing ordinal sidecar").WithDetail("path", path)
		}
		if err := buf.WriteByte('\n'); err != nil {
			_ = f.Close()
			return errors.Wrap(err, errors.ErrorTypeIO, "writing ordinal sidecar").WithDetail("path", path)
		}
	}
	if err := buf.Flush(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, errors.ErrorTypeIO, "flushing ordinal sidecar").WithDetail("path", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "closing ordinal sidecar").WithDetail("path", path)
	}
	return nil
}
