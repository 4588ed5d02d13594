package writer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbda-tools/subsample/pkg/errors"
	"github.com/cbda-tools/subsample/pkg/sampler"
)

const source = "id,outcome,a,b,c\n" +
	"r0,y0,a0,b0,c0\n" +
	"r1,y1,a1,b1,c1\n" +
	"r2,y2,a2,b2,c2\n" +
	"r3,y3,a3,b3,c3\n" +
	"r4,y4,a4,b4,c4\n"

func writeSourceFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readOutput(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func testParams(dir string) Params {
	return Params{OutDir: dir, Delimiter: ",", CaseColumn: 0, OutcomeColumn: 1}
}

func rowSet(ordinals ...int) map[int]struct{} {
	rows := make(map[int]struct{}, len(ordinals))
	for _, o := range ordinals {
		rows[o] = struct{}{}
	}
	return rows
}

func TestWriteAllProjectsSelectedColumns(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceFile(t, dir, source)

	set := &sampler.SelectionSet{
		ID:             1,
		Kind:           sampler.KindTraining,
		RowOrdinals:    rowSet(1, 3),
		ColumnOrdinals: []int{3, 4},
	}

	stats, err := WriteAll(src, []*sampler.SelectionSet{set}, testParams(dir))
	require.NoError(t, err)

	assert.Equal(t, 5, stats.RowsScanned)
	assert.Equal(t, 2, stats.RowsEmitted)
	assert.Equal(t, 3, stats.FilesWritten) // data file, row sidecar, column sidecar

	want := "id,outcome,b,c\n" +
		"r1,y1,b1,c1\n" +
		"r3,y3,b3,c3\n"
	assert.Equal(t, want, readOutput(t, dir, "training-set-1"))
	assert.Equal(t, "1\n3\n", readOutput(t, dir, "training-set-1-row-ordinals"))
	assert.Equal(t, "3\n4\n", readOutput(t, dir, "training-set-1-column-ordinals"))
}

func TestWriteAllSharedValidationKeepsEveryColumn(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceFile(t, dir, source)

	set := &sampler.SelectionSet{
		Kind:        sampler.KindValidation,
		RowOrdinals: rowSet(0, 2, 4),
		AllColumns:  true,
	}

	stats, err := WriteAll(src, []*sampler.SelectionSet{set}, testParams(dir))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesWritten) // no column sidecar for the full-width set

	want := "id,outcome,a,b,c\n" +
		"r0,y0,a0,b0,c0\n" +
		"r2,y2,a2,b2,c2\n" +
		"r4,y4,a4,b4,c4\n"
	assert.Equal(t, want, readOutput(t, dir, "validation-set"))
	assert.Equal(t, "0\n2\n4\n", readOutput(t, dir, "validation-set-row-ordinals"))

	_, err = os.Stat(filepath.Join(dir, "validation-set-column-ordinals"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteAllPairedTrainingOmitsColumnSidecar(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceFile(t, dir, source)

	training := &sampler.SelectionSet{
		ID:             2,
		Kind:           sampler.KindTraining,
		RowOrdinals:    rowSet(0, 1),
		ColumnOrdinals: []int{2, 3},
		SharedColumns:  true,
	}
	validation := &sampler.SelectionSet{
		ID:             2,
		Kind:           sampler.KindValidation,
		RowOrdinals:    rowSet(3, 4),
		ColumnOrdinals: []int{2, 3},
	}

	_, err := WriteAll(src, []*sampler.SelectionSet{training, validation}, testParams(dir))
	require.NoError(t, err)

	// The pair's column selection lives on the validation member only.
	_, err = os.Stat(filepath.Join(dir, "training-set-2-column-ordinals"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, "2\n3\n", readOutput(t, dir, "validation-set-2-column-ordinals"))

	assert.Equal(t, "id,outcome,a,b\nr0,y0,a0,b0\nr1,y1,a1,b1\n", readOutput(t, dir, "training-set-2"))
	assert.Equal(t, "id,outcome,a,b\nr3,y3,a3,b3\nr4,y4,a4,b4\n", readOutput(t, dir, "validation-set-2"))
}

func TestWriteAllFansRowOutToEverySet(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceFile(t, dir, source)

	a := &sampler.SelectionSet{ID: 1, Kind: sampler.KindTraining, RowOrdinals: rowSet(2), ColumnOrdinals: []int{2}}
	b := &sampler.SelectionSet{ID: 2, Kind: sampler.KindTraining, RowOrdinals: rowSet(2), ColumnOrdinals: []int{4}}

	stats, err := WriteAll(src, []*sampler.SelectionSet{a, b}, testParams(dir))
	require.NoError(t, err)

	assert.Equal(t, 2, stats.RowsEmitted)
	assert.Equal(t, "id,outcome,a\nr2,y2,a2\n", readOutput(t, dir, "training-set-1"))
	assert.Equal(t, "id,outcome,c\nr2,y2,c2\n", readOutput(t, dir, "training-set-2"))
}

func TestWriteAllRejectsRowWithoutDelimiter(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceFile(t, dir, "id,outcome,a\nr0,y0,a0\nmalformed-line\n")

	set := &sampler.SelectionSet{ID: 1, Kind: sampler.KindTraining, RowOrdinals: rowSet(0), ColumnOrdinals: []int{2}}

	_, err := WriteAll(src, []*sampler.SelectionSet{set}, testParams(dir))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFormat), "got %v", err)
}

func TestWriteAllRejectsShortRow(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceFile(t, dir, "id,outcome,a,b\nr0,y0\n")

	set := &sampler.SelectionSet{ID: 1, Kind: sampler.KindTraining, RowOrdinals: rowSet(0), ColumnOrdinals: []int{3}}

	_, err := WriteAll(src, []*sampler.SelectionSet{set}, testParams(dir))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFormat), "got %v", err)
}

func TestWriteAllEmptySourceIsFormatError(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceFile(t, dir, "")

	_, err := WriteAll(src, nil, testParams(dir))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFormat), "got %v", err)
}

func TestDataFileName(t *testing.T) {
	assert.Equal(t, "training-set-3", DataFileName(&sampler.SelectionSet{ID: 3, Kind: sampler.KindTraining}))
	assert.Equal(t, "validation-set-3", DataFileName(&sampler.SelectionSet{ID: 3, Kind: sampler.KindValidation}))
	assert.Equal(t, "validation-set", DataFileName(&sampler.SelectionSet{Kind: sampler.KindValidation, AllColumns: true}))
}
