// Package state persists the durable cross-run sampling records: the
// pool split of pool-split mode and the shared validation draw of single
// mode.
//
// A record is written exactly once per source file and parameter set and
// is read-only truth from then on. Save refuses to replace an existing
// file, and Verify rejects any divergence between a loaded record and
// the current metadata or parameters instead of silently re-drawing;
// recovering from a mismatch is an explicit operator decision (delete
// the record and regenerate).
package state

import (
	"os"

	"github.com/goccy/go-json"

	"github.com/cbda-tools/subsample/pkg/config"
	"github.com/cbda-tools/subsample/pkg/errors"
	"github.com/cbda-tools/subsample/pkg/profile"
)

// Version tags the persisted state schema; loads reject other versions.
const Version = 1

// PoolSplit is the persisted disjoint partition of the row universe.
type PoolSplit struct {
	// Fraction is the training share the split was built with.
	Fraction float64 `json:"fraction"`
	// TrainingPool and ValidationPool are disjoint and together cover
	// every data-row ordinal.
	TrainingPool   []int `json:"training_pool"`
	ValidationPool []int `json:"validation_pool"`
}

// FixedValidation is the persisted shared validation draw of single mode.
type FixedValidation struct {
	// RowsRequested is the validation row count the draw was made with.
	RowsRequested int `json:"rows_requested"`
	// RowOrdinals is the drawn set, ascending.
	RowOrdinals []int `json:"row_ordinals"`
}

// Record is the versioned durable state for one source file and
// parameter set. Exactly one of PoolSplit or FixedValidation is present,
// matching Mode.
type Record struct {
	SchemaVersion int         `json:"schema_version"`
	Mode          config.Mode `json:"mode"`
	// RowCount snapshots the source shape the record was built against.
	RowCount int `json:"row_count"`

	PoolSplit       *PoolSplit       `json:"pool_split,omitempty"`
	FixedValidation *FixedValidation `json:"fixed_validation,omitempty"`
}

// Load reads a state record from path. A missing file returns (nil, nil):
// no state exists yet and the caller may create it.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "reading state file").WithDetail("path", path)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "parsing state file").WithDetail("path", path)
	}
	return &rec, nil
}

// Save writes a new state record. It fails if path already exists:
// persisted state is never regenerated in place.
func Save(path string, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "encoding state record").WithDetail("path", path)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return errors.New(errors.ErrorTypeState, "state file already exists and is never rewritten; delete it to start over").WithDetail("path", path)
		}
		return errors.Wrap(err, errors.ErrorTypeIO, "creating state file").WithDetail("path", path)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "writing state file").WithDetail("path", path)
	}
	return nil
}

// Verify checks a loaded record against the current metadata and
// parameters. Any divergence means the source file or configuration
// changed after the record was created, which invalidates every draw in
// it.
func (r *Record) Verify(meta *profile.Metadata, cfg *config.CreateConfig) error {
	if r.SchemaVersion != Version {
		return errors.Newf(errors.ErrorTypeState, "state schema version %d does not match expected %d; delete the state file and regenerate", r.SchemaVersion, Version)
	}
	if r.Mode != cfg.Mode {
		return errors.Newf(errors.ErrorTypeState, "state was created for mode %q but this run uses %q; delete the state file or match the mode", r.Mode, cfg.Mode)
	}
	if r.RowCount != meta.RowCount {
		return errors.Newf(errors.ErrorTypeState, "state was created for %d data rows but metadata reports %d; regenerate metadata and state", r.RowCount, meta.RowCount)
	}

	switch cfg.Mode {
	case config.ModePoolSplit:
		if r.PoolSplit == nil {
			return errors.New(errors.ErrorTypeState, "state record is missing the pool split; delete the state file and regenerate")
		}
		if r.PoolSplit.Fraction != cfg.TrainingFraction {
			return errors.Newf(errors.ErrorTypeState, "state pool split uses training fraction %g but this run requests %g", r.PoolSplit.Fraction, cfg.TrainingFraction)
		}
		if len(r.PoolSplit.TrainingPool)+len(r.PoolSplit.ValidationPool) != r.RowCount {
			return errors.New(errors.ErrorTypeState, "state pools do not cover the row universe; delete the state file and regenerate")
		}
	case config.ModeSingle:
		if r.FixedValidation == nil {
			return errors.New(errors.ErrorTypeState, "state record is missing the validation draw; delete the state file and regenerate")
		}
		if r.FixedValidation.RowsRequested != cfg.ValidationRowCount {
			return errors.Newf(errors.ErrorTypeState, "state validation set has %d rows but this run requests %d", r.FixedValidation.RowsRequested, cfg.ValidationRowCount)
		}
	}

	return nil
}
