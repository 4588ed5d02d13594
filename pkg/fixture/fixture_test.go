package fixture

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbda-tools/subsample/pkg/errors"
	"github.com/cbda-tools/subsample/pkg/sampler"
)

func TestGenerateShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.csv")
	require.NoError(t, Generate(path, 5, 6, ",", sampler.NewRand(1)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 6) // header + 5 rows

	header := strings.Split(lines[0], ",")
	require.Len(t, header, 6)
	assert.Equal(t, "case-id", header[0])
	assert.Equal(t, "outcome", header[1])
	assert.Equal(t, "attr-2", header[2])

	// The first field of each data row is its ordinal.
	for i, line := range lines[1:] {
		fields := strings.Split(line, ",")
		require.Len(t, fields, 6)
		assert.Equal(t, strconv.Itoa(i), fields[0])
	}
}

func TestGenerateDeterministicUnderSeed(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	require.NoError(t, Generate(a, 10, 5, ",", sampler.NewRand(7)))
	require.NoError(t, Generate(b, 10, 5, ",", sampler.NewRand(7)))

	aData, err := os.ReadFile(a)
	require.NoError(t, err)
	bData, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, aData, bData)
}

func TestGenerateRejectsBadShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.csv")

	err := Generate(path, 0, 6, ",", sampler.NewRand(1))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	err = Generate(path, 5, 2, ",", sampler.NewRand(1))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
