// Package planner turns validated parameters, file metadata, and any
// persisted pool state into a concrete plan for one invocation: which
// row pools to draw from, how many units fit inside the open-file
// budget, and where set numbering continues on the next run.
//
// The open-file budget is the one scarce resource this tool manages.
// Every unit holds its output handles open for the whole source pass, so
// a run can produce at most
//
//	(budget - reserved) / handlesPerUnit
//
// units, and a job needing more subsets is completed by re-invoking with
// the returned next start index.
package planner

import (
	"math"

	"github.com/cbda-tools/subsample/pkg/config"
	"github.com/cbda-tools/subsample/pkg/errors"
	"github.com/cbda-tools/subsample/pkg/profile"
	"github.com/cbda-tools/subsample/pkg/sampler"
	"github.com/cbda-tools/subsample/pkg/state"
)

// Plan is the resolved work for one invocation.
type Plan struct {
	// Units is how many training sets (or pairs) this run produces.
	Units int
	// StartIndex numbers the first unit of this run.
	StartIndex int
	// NextStartIndex is the start index a follow-up invocation must use.
	NextStartIndex int
	// Remaining is how many of the requested subsets are left after this
	// run.
	Remaining int
	// HandlesPerUnit is the concurrent output handles one unit needs.
	HandlesPerUnit int
	// Shared is the single-mode shared validation set; nil otherwise.
	Shared *sampler.SelectionSet
	// MaterializeShared is true the run that must write the shared
	// validation data file.
	MaterializeShared bool
	// Request carries the resolved pools for the generator.
	Request sampler.Request
}

// Build validates the parameters against the file metadata, loads or
// creates the mode's durable state, and sizes the batch to the open-file
// budget. It returns the state record to persist when this run created
// one; nothing is written here.
func Build(meta *profile.Metadata, cfg *config.CreateConfig, prior *state.Record, rng sampler.Rand) (*Plan, *state.Record, error) {
	if err := crossCheck(meta, cfg); err != nil {
		return nil, nil, err
	}

	universe, err := columnUniverse(meta, cfg)
	if err != nil {
		return nil, nil, err
	}

	plan := &Plan{
		StartIndex:     cfg.StartIndex,
		HandlesPerUnit: 2,
		Request: sampler.Request{
			StartIndex:     cfg.StartIndex,
			TrainingRows:   cfg.TrainingRowCount,
			ValidationRows: cfg.ValidationRowCount,
			ColumnCount:    cfg.ColumnCount,
			ColumnUniverse: universe,
			RowCount:       meta.RowCount,
			Paired:         cfg.Paired(),
		},
	}

	var created *state.Record
	switch cfg.Mode {
	case config.ModeSingle:
		created, err = planSingle(plan, meta, cfg, prior, rng)
	case config.ModePoolSplit:
		created, err = planPoolSplit(plan, meta, cfg, prior, rng)
	case config.ModePerTraining:
		err = planPerTraining(plan, meta, cfg)
	}
	if err != nil {
		return nil, nil, err
	}

	if err := budget(plan, cfg); err != nil {
		return nil, nil, err
	}

	return plan, created, nil
}

// crossCheck performs the parameter checks that need file metadata.
func crossCheck(meta *profile.Metadata, cfg *config.CreateConfig) error {
	if cfg.CaseColumn >= meta.ColumnCount {
		return errors.Newf(errors.ErrorTypeConfig, "case column ordinal %d is beyond the %d columns of the original file", cfg.CaseColumn, meta.ColumnCount)
	}
	if cfg.OutcomeColumn >= meta.ColumnCount {
		return errors.Newf(errors.ErrorTypeConfig, "outcome column ordinal %d is beyond the %d columns of the original file", cfg.OutcomeColumn, meta.ColumnCount)
	}
	if cfg.ColumnCount > meta.ColumnCount-2 {
		return errors.Newf(errors.ErrorTypeConfig, "column count %d exceeds the %d attribute columns available (total columns minus case and outcome)", cfg.ColumnCount, meta.ColumnCount-2)
	}
	return nil
}

// planSingle loads or draws the shared validation set and restricts
// training draws to the remainder of the row universe.
func planSingle(plan *Plan, meta *profile.Metadata, cfg *config.CreateConfig, prior *state.Record, rng sampler.Rand) (*state.Record, error) {
	plan.HandlesPerUnit = 1

	var created *state.Record
	var rows map[int]struct{}
	if prior != nil {
		rows = make(map[int]struct{}, len(prior.FixedValidation.RowOrdinals))
		for _, o := range prior.FixedValidation.RowOrdinals {
			rows[o] = struct{}{}
		}
	} else {
		if cfg.ValidationRowCount > meta.RowCount {
			return nil, errors.Newf(errors.ErrorTypePool, "validation row count %d exceeds the %d data rows available", cfg.ValidationRowCount, meta.RowCount)
		}
		var err error
		rows, err = sampler.FromRange(cfg.ValidationRowCount, meta.RowCount, nil, rng)
		if err != nil {
			return nil, err
		}
		created = &state.Record{
			SchemaVersion: state.Version,
			Mode:          cfg.Mode,
			RowCount:      meta.RowCount,
			FixedValidation: &state.FixedValidation{
				RowsRequested: cfg.ValidationRowCount,
				RowOrdinals:   sampler.SortedOrdinals(rows),
			},
		}
		plan.MaterializeShared = true
	}

	if cfg.TrainingRowCount > meta.RowCount-len(rows) {
		return nil, errors.Newf(errors.ErrorTypePool, "training row count %d exceeds the %d rows left outside the validation set", cfg.TrainingRowCount, meta.RowCount-len(rows))
	}

	plan.Shared = sampler.SharedValidation(rows)
	plan.Request.ExcludeRows = rows
	return created, nil
}

// planPoolSplit loads or creates the durable disjoint row pools.
func planPoolSplit(plan *Plan, meta *profile.Metadata, cfg *config.CreateConfig, prior *state.Record, rng sampler.Rand) (*state.Record, error) {
	var split *state.PoolSplit
	var created *state.Record
	if prior != nil {
		split = prior.PoolSplit
	} else {
		trainingSize := int(math.Round(cfg.TrainingFraction * float64(meta.RowCount)))

		ordinals := make([]int, meta.RowCount)
		for i := range ordinals {
			ordinals[i] = i
		}
		rng.Shuffle(len(ordinals), func(i, j int) {
			ordinals[i], ordinals[j] = ordinals[j], ordinals[i]
		})

		split = &state.PoolSplit{
			Fraction:       cfg.TrainingFraction,
			TrainingPool:   append([]int(nil), ordinals[:trainingSize]...),
			ValidationPool: append([]int(nil), ordinals[trainingSize:]...),
		}
		created = &state.Record{
			SchemaVersion: state.Version,
			Mode:          cfg.Mode,
			RowCount:      meta.RowCount,
			PoolSplit:     split,
		}
	}

	if cfg.TrainingRowCount > len(split.TrainingPool) {
		return nil, errors.Newf(errors.ErrorTypePool, "training row count %d exceeds the training pool of %d rows", cfg.TrainingRowCount, len(split.TrainingPool))
	}
	if cfg.ValidationRowCount > len(split.ValidationPool) {
		return nil, errors.Newf(errors.ErrorTypePool, "validation row count %d exceeds the validation pool of %d rows", cfg.ValidationRowCount, len(split.ValidationPool))
	}

	plan.Request.TrainingPool = split.TrainingPool
	plan.Request.ValidationPool = split.ValidationPool
	return created, nil
}

// planPerTraining needs no durable state; pairs draw independently from
// the full universe with per-pair disjointness only.
func planPerTraining(plan *Plan, meta *profile.Metadata, cfg *config.CreateConfig) error {
	if cfg.TrainingRowCount > meta.RowCount {
		return errors.Newf(errors.ErrorTypePool, "training row count %d exceeds the %d data rows available", cfg.TrainingRowCount, meta.RowCount)
	}
	if cfg.TrainingRowCount+cfg.ValidationRowCount > meta.RowCount {
		return errors.Newf(errors.ErrorTypePool, "training plus validation row counts %d exceed the %d data rows available to a disjoint pair", cfg.TrainingRowCount+cfg.ValidationRowCount, meta.RowCount)
	}
	return nil
}

// budget sizes the batch to the open-file budget and computes numbering
// continuity for the next invocation.
func budget(plan *Plan, cfg *config.CreateConfig) error {
	extra := 0
	if plan.MaterializeShared {
		extra = 1
	}

	available := cfg.FDBudget - config.ReservedHandles - extra
	maxUnits := available / plan.HandlesPerUnit
	if maxUnits < 1 {
		return errors.Newf(errors.ErrorTypeResource, "open-file budget %d cannot fit one unit (%d reserved, %d per unit, %d extra this run)", cfg.FDBudget, config.ReservedHandles, plan.HandlesPerUnit, extra).
			WithDetail("fd_budget", cfg.FDBudget)
	}

	plan.Units = cfg.SetCount
	if plan.Units > maxUnits {
		plan.Units = maxUnits
	}
	plan.Request.Units = plan.Units
	plan.NextStartIndex = plan.StartIndex + plan.Units
	plan.Remaining = cfg.SetCount - plan.Units
	return nil
}
