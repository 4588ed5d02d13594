// Package run orchestrates one set-creation invocation: load metadata,
// load or create durable pool state, plan the batch against the
// open-file budget, draw the selection sets, and stream the source file
// once to write them.
package run

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cbda-tools/subsample/pkg/config"
	"github.com/cbda-tools/subsample/pkg/errors"
	"github.com/cbda-tools/subsample/pkg/planner"
	"github.com/cbda-tools/subsample/pkg/profile"
	"github.com/cbda-tools/subsample/pkg/sampler"
	"github.com/cbda-tools/subsample/pkg/state"
	"github.com/cbda-tools/subsample/pkg/writer"
)

// Runner executes a single invocation against one source file.
// Invocations against the same source and parameter set must be
// serialized externally; the durable state records are write-once and
// concurrent runs are not supported.
type Runner struct {
	cfg *config.CreateConfig
	log *zap.Logger
}

// Result summarizes a completed invocation.
type Result struct {
	// Units is how many training sets (or pairs) were produced.
	Units int
	// NextStartIndex is the start index for a follow-up invocation.
	NextStartIndex int
	// Remaining is how many requested subsets are still unproduced.
	Remaining int
	// StateCreated is true when this run persisted new pool state.
	StateCreated bool
	// Stats is the writer's pass summary.
	Stats writer.Stats
	// Duration is wall time for the whole invocation.
	Duration time.Duration
}

// NewRunner builds a runner for a validated configuration.
func NewRunner(cfg *config.CreateConfig, log *zap.Logger) *Runner {
	return &Runner{cfg: cfg, log: log}
}

// Run executes the invocation. It either completes the batch or fails
// atomically from the caller's perspective; output files written before
// a mid-pass failure are left on disk for the caller to discard before
// retrying with the same start index.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	meta, err := profile.Load(r.cfg.MetadataPath)
	if err != nil {
		return nil, err
	}
	if meta.Delimiter != r.cfg.Delimiter {
		return nil, errors.Newf(errors.ErrorTypeState, "metadata was profiled with delimiter %q but this run uses %q; re-profile or match the delimiter", meta.Delimiter, r.cfg.Delimiter)
	}

	statePath := r.cfg.StateFile()
	prior, err := state.Load(statePath)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		if err := prior.Verify(meta, r.cfg); err != nil {
			return nil, err
		}
		r.log.Debug("loaded persisted state", zap.String("path", statePath), zap.String("mode", string(prior.Mode)))
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "run canceled")
	}

	seed := r.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := sampler.NewRand(seed)

	plan, created, err := planner.Build(meta, r.cfg, prior, rng)
	if err != nil {
		return nil, err
	}
	r.log.Info("planned batch",
		zap.Int("units", plan.Units),
		zap.Int("start_index", plan.StartIndex),
		zap.Int("remaining_after", plan.Remaining),
		zap.Int("handles_per_unit", plan.HandlesPerUnit),
		zap.Int64("seed", seed))

	// Persist new pool state before any output is written: the draws are
	// authoritative from this point even if the data pass fails.
	if created != nil {
		if err := state.Save(statePath, created); err != nil {
			return nil, err
		}
		r.log.Info("persisted pool state", zap.String("path", statePath))
	}

	pairs, err := sampler.Generate(plan.Request, rng)
	if err != nil {
		return nil, err
	}

	sets := make([]*sampler.SelectionSet, 0, plan.Units*2+1)
	for _, pair := range pairs {
		sets = append(sets, pair.Training)
		if pair.Validation != nil {
			sets = append(sets, pair.Validation)
		}
	}
	if plan.MaterializeShared {
		sets = append(sets, plan.Shared)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "run canceled")
	}

	outDir := r.cfg.OutDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "creating output directory").WithDetail("path", outDir)
	}

	stats, err := writer.WriteAll(r.cfg.Input, sets, writer.Params{
		OutDir:        outDir,
		Delimiter:     r.cfg.Delimiter,
		CaseColumn:    r.cfg.CaseColumn,
		OutcomeColumn: r.cfg.OutcomeColumn,
	})
	if err != nil {
		return nil, err
	}

	if stats.RowsScanned != meta.RowCount {
		r.log.Warn("source row count differs from metadata; sets may be short, re-profile the source",
			zap.Int("rows_scanned", stats.RowsScanned),
			zap.Int("metadata_rows", meta.RowCount))
	}

	result := &Result{
		Units:          plan.Units,
		NextStartIndex: plan.NextStartIndex,
		Remaining:      plan.Remaining,
		StateCreated:   created != nil,
		Stats:          stats,
		Duration:       time.Since(start),
	}

	r.log.Info("run complete",
		zap.Int("units", result.Units),
		zap.Int("rows_scanned", stats.RowsScanned),
		zap.Int("rows_emitted", stats.RowsEmitted),
		zap.Int("files_written", stats.FilesWritten),
		zap.Int("next_start_index", result.NextStartIndex),
		zap.Int("remaining", result.Remaining),
		zap.Duration("duration", result.Duration))

	return result, nil
}
