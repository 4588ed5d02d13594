package sampler

// Request describes the draws for one run's batch of units. The planner
// fills it from the validated configuration, the file metadata, and any
// persisted pool state.
type Request struct {
	// StartIndex numbers the first unit; unit i gets ID StartIndex+i.
	StartIndex int
	// Units is the number of training sets (or pairs) to draw.
	Units int

	// TrainingRows and ValidationRows are the per-set row counts.
	TrainingRows   int
	ValidationRows int

	// ColumnCount attribute columns are drawn per unit from
	// ColumnUniverse (ascending, excludes case and outcome ordinals).
	ColumnCount    int
	ColumnUniverse []int

	// RowCount is the full data-row universe size.
	RowCount int

	// Paired adds a validation partner per training set, sharing its
	// columns and disjoint in rows.
	Paired bool

	// TrainingPool and ValidationPool restrict row draws in pool-split
	// mode. Nil pools mean the full row universe.
	TrainingPool   []int
	ValidationPool []int

	// ExcludeRows are row ordinals forbidden to training draws; single
	// mode puts the shared validation rows here.
	ExcludeRows map[int]struct{}
}

// Generate draws every selection set for the batch. Draw overruns
// surface as pool errors; no partial batch is returned.
func Generate(req Request, rng Rand) ([]Pair, error) {
	pairs := make([]Pair, 0, req.Units)

	for u := 0; u < req.Units; u++ {
		id := req.StartIndex + u

		columns, err := FromPool(req.ColumnUniverse, req.ColumnCount, rng)
		if err != nil {
			return nil, err
		}
		columnOrdinals := SortedOrdinals(columns)

		var trainingRows map[int]struct{}
		if req.TrainingPool != nil {
			trainingRows, err = FromPool(req.TrainingPool, req.TrainingRows, rng)
		} else {
			trainingRows, err = FromRange(req.TrainingRows, req.RowCount, req.ExcludeRows, rng)
		}
		if err != nil {
			return nil, err
		}

		training := &SelectionSet{
			ID:             id,
			Kind:           KindTraining,
			RowOrdinals:    trainingRows,
			ColumnOrdinals: columnOrdinals,
			SharedColumns:  req.Paired,
		}

		pair := Pair{Training: training}
		if req.Paired {
			var validationRows map[int]struct{}
			if req.ValidationPool != nil {
				validationRows, err = FromPool(req.ValidationPool, req.ValidationRows, rng)
			} else {
				validationRows, err = FromRange(req.ValidationRows, req.RowCount, trainingRows, rng)
			}
			if err != nil {
				return nil, err
			}

			pair.Validation = &SelectionSet{
				ID:          id,
				Kind:        KindValidation,
				RowOrdinals: validationRows,
				// Shared verbatim with the training member.
				ColumnOrdinals: columnOrdinals,
			}
		}

		pairs = append(pairs, pair)
	}

	return pairs, nil
}

// SharedValidation builds the single-mode shared validation set, which
// carries every original column and is materialized once.
func SharedValidation(rows map[int]struct{}) *SelectionSet {
	return &SelectionSet{
		Kind:        KindValidation,
		RowOrdinals: rows,
		AllColumns:  true,
	}
}
