// Package profile computes and persists the original data file's shape.
//
// Profiling is a separate step from set creation because it needs a full
// scan of the source file: the counts are computed once, written to a
// small versioned JSON record, and reused by every subsequent
// set-creation run against the same file.
package profile

import (
	"bufio"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/cbda-tools/subsample/pkg/errors"
	"github.com/cbda-tools/subsample/pkg/sourcefile"
)

// Version tags the persisted metadata schema. Bump on incompatible
// layout changes; loads reject other versions.
const Version = 1

// maxLineSize bounds a single source line during scanning.
const maxLineSize = 16 * 1024 * 1024

// Metadata is the persisted shape of an original data file. RowCount
// excludes the header line. It must be recomputed if the source file
// changes.
type Metadata struct {
	SchemaVersion int    `json:"schema_version"`
	RowCount      int    `json:"row_count"`
	ColumnCount   int    `json:"column_count"`
	Delimiter     string `json:"delimiter"`
}

// Scan reads the source file once, returning its row and column counts.
// The column count comes from splitting the header on delimiter; the row
// count excludes the header. An empty file or a header without the
// delimiter is a format error.
func Scan(path, delimiter string) (*Metadata, error) {
	src, err := sourcefile.Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeIO, "reading source file").WithDetail("path", path)
		}
		return nil, errors.New(errors.ErrorTypeFormat, "source file is empty, no header line").WithDetail("path", path)
	}

	header := scanner.Text()
	if !strings.Contains(header, delimiter) {
		return nil, errors.Newf(errors.ErrorTypeFormat, "delimiter %q not found in header line", delimiter).WithDetail("path", path)
	}
	columnCount := len(strings.Split(header, delimiter))

	rowCount := 0
	for scanner.Scan() {
		rowCount++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "reading source file").WithDetail("path", path)
	}

	return &Metadata{
		SchemaVersion: Version,
		RowCount:      rowCount,
		ColumnCount:   columnCount,
		Delimiter:     delimiter,
	}, nil
}

// Save writes the metadata record to path as JSON.
func Save(path string, meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "encoding metadata").WithDetail("path", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "writing metadata file").WithDetail("path", path)
	}
	return nil
}

// Load reads a metadata record previously written by Save. A version
// mismatch means the record predates the current layout and must be
// regenerated with the profile command.
func Load(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "reading metadata file").WithDetail("path", path)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "parsing metadata file").WithDetail("path", path)
	}

	if meta.SchemaVersion != Version {
		return nil, errors.Newf(errors.ErrorTypeState, "metadata schema version %d does not match expected %d; regenerate with the profile command", meta.SchemaVersion, Version).
			WithDetail("path", path)
	}
	if meta.RowCount < 0 || meta.ColumnCount < 1 {
		return nil, errors.Newf(errors.ErrorTypeState, "metadata has implausible shape %dx%d; regenerate with the profile command", meta.RowCount, meta.ColumnCount).
			WithDetail("path", path)
	}

	return &meta, nil
}
