// Package config defines the validated configuration for a set-creation
// run. Raw command-line input is parsed into a CreateConfig exactly once,
// validated with Validate, and treated as immutable from then on;
// downstream packages never re-check raw input.
//
// Checks that need the source file's metadata (ordinals against the
// actual column count, pool capacities) belong to the planner, not here.
//
// Example usage:
//
//	cfg := config.NewCreateConfig()
//	cfg.Input = "data.csv"
//	cfg.MetadataPath = "data.meta.json"
//	cfg.TrainingRowCount = 500
//	cfg.ValidationRowCount = 100
//	cfg.ColumnCount = 20
//	cfg.CaseColumn = 0
//	cfg.OutcomeColumn = 1
//	cfg.SetCount = 16
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"os"

	"github.com/goccy/go-json"

	"github.com/cbda-tools/subsample/pkg/errors"
)

// Mode selects how validation rows relate to training rows.
type Mode string

const (
	// ModeSingle draws one shared validation set, persisted on first use.
	// Training rows are drawn from the full universe minus that set.
	ModeSingle Mode = "single"
	// ModePerTraining draws an independent validation set per training
	// set, disjoint only from its own partner.
	ModePerTraining Mode = "per-training"
	// ModePoolSplit partitions the row universe once into disjoint
	// training and validation pools, persisted on first use.
	ModePoolSplit Mode = "pool-split"
)

// ParseMode converts a mode selector string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSingle, ModePerTraining, ModePoolSplit:
		return Mode(s), nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "unknown validation mode %q (expected single, per-training or pool-split)", s)
}

// ReservedHandles is the number of file descriptors assumed taken by the
// standard streams and therefore unavailable to output files.
const ReservedHandles = 3

// DefaultFDBudget is the default ceiling on simultaneously open file
// handles for one run, used when no override is given.
const DefaultFDBudget = 256

// CreateConfig is the full parameter set for one invocation of set
// creation. It is built once from flags (and an optional JSON config
// file), validated, and then read-only.
type CreateConfig struct {
	// Input is the path of the original data file. It may be a plain
	// delimited text file or a single-entry .zip/.gz/.zst container.
	Input string `json:"input"`
	// MetadataPath is the persisted row/column count record produced by
	// the profile command.
	MetadataPath string `json:"metadata"`
	// StatePath is the persisted pool/validation state record. Empty
	// means derive from MetadataPath.
	StatePath string `json:"state"`
	// OutDir receives the produced set and sidecar files.
	OutDir string `json:"out_dir"`

	// TrainingRowCount is the number of rows per training set.
	TrainingRowCount int `json:"training_row_count"`
	// ValidationRowCount is the number of rows per validation set.
	ValidationRowCount int `json:"validation_row_count"`
	// ColumnCount is the number of attribute columns per set.
	ColumnCount int `json:"column_count"`
	// CaseColumn is the zero-based ordinal of the record-identifier column.
	CaseColumn int `json:"case_column"`
	// OutcomeColumn is the zero-based ordinal of the label column.
	OutcomeColumn int `json:"outcome_column"`

	// SetCount is the number of training sets requested this run.
	SetCount int `json:"set_count"`
	// StartIndex numbers the first set produced this run, for continuity
	// across invocations. Set numbering starts at 1.
	StartIndex int `json:"start_index"`

	// Mode selects the validation strategy.
	Mode Mode `json:"mode"`
	// TrainingFraction is the training share of the row universe in
	// pool-split mode, in (0,1).
	TrainingFraction float64 `json:"training_fraction"`

	// FDBudget caps simultaneously open file handles.
	FDBudget int `json:"fd_budget"`

	// ColumnSetPath optionally restricts the attribute-column universe to
	// ranked ordinals listed in a file.
	ColumnSetPath string `json:"column_set"`
	// Delimiter separates fields in the source file.
	Delimiter string `json:"delimiter"`
	// Seed seeds the uniform random source. Zero means time-derived.
	Seed int64 `json:"seed"`
}

// NewCreateConfig returns a CreateConfig with defaults applied.
func NewCreateConfig() *CreateConfig {
	return &CreateConfig{
		Mode:       ModePerTraining,
		StartIndex: 1,
		FDBudget:   DefaultFDBudget,
		Delimiter:  ",",
	}
}

// LoadFile overlays values from a JSON config file onto cfg. Flags set
// after loading win, matching how the CLI layers them.
func (c *CreateConfig) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "reading config file").WithDetail("path", path)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "parsing config file").WithDetail("path", path)
	}
	return nil
}

// Validate checks everything that can be checked without the source
// file's metadata. It returns a config error naming the offending
// parameter, and writes nothing.
func (c *CreateConfig) Validate() error {
	if c.Input == "" {
		return errors.New(errors.ErrorTypeConfig, "input file is required")
	}
	if c.MetadataPath == "" {
		return errors.New(errors.ErrorTypeConfig, "metadata file is required")
	}
	if c.TrainingRowCount < 1 {
		return errors.Newf(errors.ErrorTypeConfig, "training row count %d is less than 1", c.TrainingRowCount)
	}
	if c.ValidationRowCount < 1 {
		return errors.Newf(errors.ErrorTypeConfig, "validation row count %d is less than 1", c.ValidationRowCount)
	}
	if c.ColumnCount < 1 {
		return errors.Newf(errors.ErrorTypeConfig, "column count %d is less than 1", c.ColumnCount)
	}
	if c.CaseColumn < 0 {
		return errors.Newf(errors.ErrorTypeConfig, "case column ordinal %d is negative", c.CaseColumn)
	}
	if c.OutcomeColumn < 0 {
		return errors.Newf(errors.ErrorTypeConfig, "outcome column ordinal %d is negative", c.OutcomeColumn)
	}
	if c.CaseColumn == c.OutcomeColumn {
		return errors.Newf(errors.ErrorTypeConfig, "case column and outcome column are the same ordinal %d", c.CaseColumn)
	}
	if c.SetCount < 1 {
		return errors.Newf(errors.ErrorTypeConfig, "set count %d is less than 1", c.SetCount)
	}
	if c.StartIndex < 1 {
		return errors.Newf(errors.ErrorTypeConfig, "start index %d is less than 1", c.StartIndex)
	}
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.Mode == ModePoolSplit && (c.TrainingFraction <= 0.0 || c.TrainingFraction >= 1.0) {
		return errors.Newf(errors.ErrorTypeConfig, "training fraction %g must be in (0,1) exclusive", c.TrainingFraction)
	}
	if c.FDBudget <= ReservedHandles {
		return errors.Newf(errors.ErrorTypeConfig, "fd budget %d leaves no handles beyond the %d reserved for standard streams", c.FDBudget, ReservedHandles)
	}
	if len(c.Delimiter) != 1 {
		return errors.Newf(errors.ErrorTypeConfig, "delimiter %q must be a single character", c.Delimiter)
	}
	return nil
}

// StateFile returns the effective state record path.
func (c *CreateConfig) StateFile() string {
	if c.StatePath != "" {
		return c.StatePath
	}
	return c.MetadataPath + ".state"
}

// Paired reports whether the mode produces one validation set per
// training set.
func (c *CreateConfig) Paired() bool {
	return c.Mode == ModePerTraining || c.Mode == ModePoolSplit
}
