// Package sampler draws the row and column ordinal subsets that define
// each training and validation set.
//
// All randomness flows through the Rand interface so a run can be made
// deterministic by injecting a seeded source; nothing in this package
// touches global random state. Draws are uniform without replacement.
package sampler

import (
	"math/rand"
	"sort"

	"github.com/cbda-tools/subsample/pkg/errors"
)

// Rand is the injectable uniform random source. *math/rand.Rand
// satisfies it.
type Rand interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// NewRand returns a seeded uniform source.
func NewRand(seed int64) Rand {
	return rand.New(rand.NewSource(seed))
}

// Kind distinguishes training sets from validation sets.
type Kind string

const (
	// KindTraining marks a training set.
	KindTraining Kind = "training"
	// KindValidation marks a validation set.
	KindValidation Kind = "validation"
)

// SelectionSet describes one output set: which source rows it contains
// and which columns of those rows it carries.
type SelectionSet struct {
	// ID is the set number used in output file names.
	ID int
	// Kind is training or validation.
	Kind Kind
	// RowOrdinals holds the zero-based data-row ordinals of this set.
	RowOrdinals map[int]struct{}
	// ColumnOrdinals holds the selected attribute-column ordinals in
	// ascending (original file) order. Empty when AllColumns is set.
	ColumnOrdinals []int
	// AllColumns marks a set that carries every original column, used by
	// the shared validation set of single mode.
	AllColumns bool
	// SharedColumns marks a training set whose columns are shared with
	// its validation partner, which then owns the column sidecar.
	SharedColumns bool
}

// Pair is one unit of output: a training set and, in paired modes, its
// validation partner.
type Pair struct {
	Training   *SelectionSet
	Validation *SelectionSet
}

// FromPool draws count distinct elements uniformly from pool. The pool
// slice is not modified.
func FromPool(pool []int, count int, rng Rand) (map[int]struct{}, error) {
	if count > len(pool) {
		return nil, errors.Newf(errors.ErrorTypePool, "requested %d rows but the pool has only %d", count, len(pool))
	}

	// Partial Fisher-Yates over a copy: the first count positions end up
	// holding a uniform sample.
	scratch := make([]int, len(pool))
	copy(scratch, pool)
	drawn := make(map[int]struct{}, count)
	for i := 0; i < count; i++ {
		j := i + rng.Intn(len(scratch)-i)
		scratch[i], scratch[j] = scratch[j], scratch[i]
		drawn[scratch[i]] = struct{}{}
	}
	return drawn, nil
}

// FromRange draws count distinct integers uniformly from [0,n) that are
// not in exclude.
func FromRange(count, n int, exclude map[int]struct{}, rng Rand) (map[int]struct{}, error) {
	available := n - len(exclude)
	if count > available {
		return nil, errors.Newf(errors.ErrorTypePool, "requested %d ordinals but only %d are available after exclusions", count, available)
	}

	// Rejection sampling is fine while the draw is small relative to the
	// range; fall back to pool sampling when it is not.
	if count*2 > available {
		pool := make([]int, 0, available)
		for i := 0; i < n; i++ {
			if _, skip := exclude[i]; !skip {
				pool = append(pool, i)
			}
		}
		return FromPool(pool, count, rng)
	}

	drawn := make(map[int]struct{}, count)
	for len(drawn) < count {
		r := rng.Intn(n)
		if _, skip := exclude[r]; skip {
			continue
		}
		drawn[r] = struct{}{}
	}
	return drawn, nil
}

// SortedOrdinals returns the elements of a drawn set in ascending order.
func SortedOrdinals(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for o := range set {
		out = append(out, o)
	}
	sort.Ints(out)
	return out
}
