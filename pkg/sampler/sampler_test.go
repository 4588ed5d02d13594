package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbda-tools/subsample/pkg/errors"
)

func ordinalRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestFromPoolDrawsDistinctElements(t *testing.T) {
	pool := ordinalRange(100)
	drawn, err := FromPool(pool, 30, NewRand(1))
	require.NoError(t, err)

	assert.Len(t, drawn, 30)
	for o := range drawn {
		assert.GreaterOrEqual(t, o, 0)
		assert.Less(t, o, 100)
	}
	// The pool itself is untouched.
	assert.Equal(t, ordinalRange(100), pool)
}

func TestFromPoolFullDraw(t *testing.T) {
	drawn, err := FromPool([]int{3, 7, 11}, 3, NewRand(1))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7, 11}, SortedOrdinals(drawn))
}

func TestFromPoolOverdraw(t *testing.T) {
	_, err := FromPool(ordinalRange(5), 6, NewRand(1))
	assert.True(t, errors.IsType(err, errors.ErrorTypePool))
}

func TestFromPoolDeterministic(t *testing.T) {
	a, err := FromPool(ordinalRange(1000), 50, NewRand(42))
	require.NoError(t, err)
	b, err := FromPool(ordinalRange(1000), 50, NewRand(42))
	require.NoError(t, err)
	assert.Equal(t, SortedOrdinals(a), SortedOrdinals(b))
}

func TestFromRangeHonorsExclusions(t *testing.T) {
	exclude := map[int]struct{}{0: {}, 1: {}, 2: {}}
	drawn, err := FromRange(5, 10, exclude, NewRand(7))
	require.NoError(t, err)

	assert.Len(t, drawn, 5)
	for o := range drawn {
		_, excluded := exclude[o]
		assert.False(t, excluded, "ordinal %d was excluded", o)
		assert.Less(t, o, 10)
	}
}

func TestFromRangeDenseDraw(t *testing.T) {
	// Draw everything that is not excluded; exercises the pool fallback.
	exclude := map[int]struct{}{4: {}}
	drawn, err := FromRange(9, 10, exclude, NewRand(7))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 5, 6, 7, 8, 9}, SortedOrdinals(drawn))
}

func TestFromRangeOverdraw(t *testing.T) {
	_, err := FromRange(10, 10, map[int]struct{}{0: {}}, NewRand(7))
	assert.True(t, errors.IsType(err, errors.ErrorTypePool))
}

func baseRequest() Request {
	return Request{
		StartIndex:     1,
		Units:          3,
		TrainingRows:   10,
		ValidationRows: 5,
		ColumnCount:    4,
		ColumnUniverse: []int{2, 3, 4, 5, 6, 7, 8, 9},
		RowCount:       100,
		Paired:         true,
	}
}

func TestGeneratePairedDisjointRowsSharedColumns(t *testing.T) {
	pairs, err := Generate(baseRequest(), NewRand(11))
	require.NoError(t, err)
	require.Len(t, pairs, 3)

	for i, pair := range pairs {
		require.NotNil(t, pair.Validation)
		assert.Equal(t, 1+i, pair.Training.ID)
		assert.Equal(t, pair.Training.ID, pair.Validation.ID)
		assert.Equal(t, KindTraining, pair.Training.Kind)
		assert.Equal(t, KindValidation, pair.Validation.Kind)

		// Rows of a pair never intersect.
		assert.Len(t, pair.Training.RowOrdinals, 10)
		assert.Len(t, pair.Validation.RowOrdinals, 5)
		for o := range pair.Validation.RowOrdinals {
			_, clash := pair.Training.RowOrdinals[o]
			assert.False(t, clash, "row %d in both members of pair %d", o, pair.Training.ID)
		}

		// Columns are shared verbatim and drawn from the universe.
		assert.Equal(t, pair.Training.ColumnOrdinals, pair.Validation.ColumnOrdinals)
		assert.Len(t, pair.Training.ColumnOrdinals, 4)
		assert.True(t, pair.Training.SharedColumns)
		for _, c := range pair.Training.ColumnOrdinals {
			assert.Contains(t, []int{2, 3, 4, 5, 6, 7, 8, 9}, c)
		}
	}
}

func TestGenerateColumnsAscending(t *testing.T) {
	pairs, err := Generate(baseRequest(), NewRand(3))
	require.NoError(t, err)

	for _, pair := range pairs {
		cols := pair.Training.ColumnOrdinals
		for i := 1; i < len(cols); i++ {
			assert.Less(t, cols[i-1], cols[i], "columns must keep original file order")
		}
	}
}

func TestGenerateFromPools(t *testing.T) {
	req := baseRequest()
	req.TrainingPool = ordinalRange(50)    // rows 0..49
	req.ValidationPool = ordinalRange(100)[50:] // rows 50..99

	pairs, err := Generate(req, NewRand(5))
	require.NoError(t, err)

	for _, pair := range pairs {
		for o := range pair.Training.RowOrdinals {
			assert.Less(t, o, 50)
		}
		for o := range pair.Validation.RowOrdinals {
			assert.GreaterOrEqual(t, o, 50)
		}
	}
}

func TestGenerateUnpairedWithExclusions(t *testing.T) {
	req := baseRequest()
	req.Paired = false
	req.ExcludeRows = map[int]struct{}{0: {}, 1: {}, 2: {}, 3: {}, 4: {}}

	pairs, err := Generate(req, NewRand(9))
	require.NoError(t, err)

	for _, pair := range pairs {
		assert.Nil(t, pair.Validation)
		assert.False(t, pair.Training.SharedColumns)
		for o := range pair.Training.RowOrdinals {
			assert.GreaterOrEqual(t, o, 5, "excluded row %d was drawn", o)
		}
	}
}

func TestGenerateDeterministicUnderSeed(t *testing.T) {
	a, err := Generate(baseRequest(), NewRand(1234))
	require.NoError(t, err)
	b, err := Generate(baseRequest(), NewRand(1234))
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, SortedOrdinals(a[i].Training.RowOrdinals), SortedOrdinals(b[i].Training.RowOrdinals))
		assert.Equal(t, a[i].Training.ColumnOrdinals, b[i].Training.ColumnOrdinals)
	}
}

func TestGenerateOverdrawFailsWholeBatch(t *testing.T) {
	req := baseRequest()
	req.TrainingRows = 200 // more than RowCount

	_, err := Generate(req, NewRand(1))
	assert.True(t, errors.IsType(err, errors.ErrorTypePool))
}

func TestSharedValidation(t *testing.T) {
	set := SharedValidation(map[int]struct{}{2: {}, 8: {}})
	assert.Equal(t, KindValidation, set.Kind)
	assert.True(t, set.AllColumns)
	assert.Equal(t, []int{2, 8}, SortedOrdinals(set.RowOrdinals))
}
