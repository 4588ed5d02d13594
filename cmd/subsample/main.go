package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cbda-tools/subsample/internal/run"
	"github.com/cbda-tools/subsample/pkg/config"
	"github.com/cbda-tools/subsample/pkg/fixture"
	"github.com/cbda-tools/subsample/pkg/logger"
	"github.com/cbda-tools/subsample/pkg/profile"
	"github.com/cbda-tools/subsample/pkg/sampler"
	"github.com/cbda-tools/subsample/pkg/state"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var logLevel string

	root := &cobra.Command{
		Use:   "subsample",
		Short: "subsample - training and validation set creation for tabular data",
		Long: `subsample partitions one large delimited data file into many
overlapping-but-distinct training sets plus disjoint validation sets for a
later machine learning step. Profile the source once, then create sets in
as many invocations as the open-file budget requires.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logger.Config{
				Level:    logLevel,
				Encoding: "json",
			})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(versionCmd())
	root.AddCommand(profileCmd())
	root.AddCommand(createCmd())
	root.AddCommand(fixtureCmd())
	root.AddCommand(stateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("subsample v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// profileCmd scans the source file once and persists its shape for every
// later create invocation.
func profileCmd() *cobra.Command {
	var input, output, delimiter string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Scan the original data file and persist its row/column counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.With(zap.String("component", "profile"))

			meta, err := profile.Scan(input, delimiter)
			if err != nil {
				return err
			}
			if err := profile.Save(output, meta); err != nil {
				return err
			}

			log.Info("source profiled",
				zap.String("input", input),
				zap.String("metadata", output),
				zap.Int("row_count", meta.RowCount),
				zap.Int("column_count", meta.ColumnCount))

			if meta.RowCount < 1 {
				log.Warn("the source has no data rows")
			}
			if meta.ColumnCount < 4 {
				log.Warn("the source has very few columns; it needs a case column, an outcome column and more than one attribute column",
					zap.Int("column_count", meta.ColumnCount))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Path of the original data file (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Path for the metadata record (required)")
	cmd.Flags().StringVar(&delimiter, "delimiter", ",", "Field delimiter of the original file")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

// createCmd runs one set-creation invocation.
func createCmd() *cobra.Command {
	flagCfg := config.NewCreateConfig()
	var configFile, mode string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create training and validation sets from a profiled data file",
		Long: `Create draws row and column subsets and streams the source file once,
writing every set of the batch in a single pass. The open-file budget caps
how many sets one invocation can produce; re-invoke with the logged next
start index until every requested set exists.

Example:
  subsample create -i data.csv --metadata data.meta.json \
    --training-row-count 500 --validation-row-count 100 --column-count 20 \
    --case-column 0 --outcome-column 1 --set-count 32 --mode pool-split \
    --training-fraction 0.8 --out-dir sets/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewCreateConfig()
			if configFile != "" {
				if err := cfg.LoadFile(configFile); err != nil {
					return err
				}
			}
			applyFlagOverrides(cmd, cfg, flagCfg, mode)

			if err := cfg.Validate(); err != nil {
				return err
			}

			log := logger.With(
				zap.String("component", "create"),
				zap.String("input", cfg.Input),
				zap.String("mode", string(cfg.Mode)))

			result, err := run.NewRunner(cfg, log).Run(context.Background())
			if err != nil {
				return err
			}

			if result.Remaining > 0 {
				log.Info("open-file budget limited this run; re-invoke to continue",
					zap.Int("remaining", result.Remaining),
					zap.Int("next_start_index", result.NextStartIndex))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flagCfg.Input, "input", "i", "", "Path of the original data file (required)")
	cmd.Flags().StringVar(&flagCfg.MetadataPath, "metadata", "", "Path of the metadata record from the profile command (required)")
	cmd.Flags().StringVar(&flagCfg.StatePath, "state", "", "Path of the persisted pool state (default: metadata path + .state)")
	cmd.Flags().StringVar(&flagCfg.OutDir, "out-dir", ".", "Directory for the produced set files")
	cmd.Flags().IntVar(&flagCfg.TrainingRowCount, "training-row-count", 0, "Rows per training set (required)")
	cmd.Flags().IntVar(&flagCfg.ValidationRowCount, "validation-row-count", 0, "Rows per validation set (required)")
	cmd.Flags().IntVar(&flagCfg.ColumnCount, "column-count", 0, "Attribute columns per set (required)")
	cmd.Flags().IntVar(&flagCfg.CaseColumn, "case-column", 0, "Zero-based ordinal of the case-id column")
	cmd.Flags().IntVar(&flagCfg.OutcomeColumn, "outcome-column", 0, "Zero-based ordinal of the outcome column")
	cmd.Flags().IntVar(&flagCfg.SetCount, "set-count", 0, "Training sets to create this run (required)")
	cmd.Flags().IntVarP(&flagCfg.StartIndex, "start", "s", 1, "Starting set number, for continuity across invocations")
	cmd.Flags().StringVar(&mode, "mode", string(config.ModePerTraining), "Validation mode: single, per-training or pool-split")
	cmd.Flags().Float64Var(&flagCfg.TrainingFraction, "training-fraction", 0, "Training share of the row universe in pool-split mode, in (0,1)")
	cmd.Flags().IntVar(&flagCfg.FDBudget, "fd-budget", config.DefaultFDBudget, "Ceiling on simultaneously open file handles")
	cmd.Flags().StringVar(&flagCfg.ColumnSetPath, "column-set", "", "Optional ranked column-set file restricting the attribute universe")
	cmd.Flags().StringVar(&flagCfg.Delimiter, "delimiter", ",", "Field delimiter of the original file")
	cmd.Flags().Int64Var(&flagCfg.Seed, "seed", 0, "Random seed; 0 derives one from the clock")
	cmd.Flags().StringVar(&configFile, "config", "", "Optional JSON config file; explicit flags override it")

	return cmd
}

// applyFlagOverrides copies every explicitly set flag over the config
// file values, so the precedence is defaults < config file < flags.
func applyFlagOverrides(cmd *cobra.Command, cfg, flagCfg *config.CreateConfig, mode string) {
	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}

	set("input", func() { cfg.Input = flagCfg.Input })
	set("metadata", func() { cfg.MetadataPath = flagCfg.MetadataPath })
	set("state", func() { cfg.StatePath = flagCfg.StatePath })
	set("out-dir", func() { cfg.OutDir = flagCfg.OutDir })
	set("training-row-count", func() { cfg.TrainingRowCount = flagCfg.TrainingRowCount })
	set("validation-row-count", func() { cfg.ValidationRowCount = flagCfg.ValidationRowCount })
	set("column-count", func() { cfg.ColumnCount = flagCfg.ColumnCount })
	set("case-column", func() { cfg.CaseColumn = flagCfg.CaseColumn })
	set("outcome-column", func() { cfg.OutcomeColumn = flagCfg.OutcomeColumn })
	set("set-count", func() { cfg.SetCount = flagCfg.SetCount })
	set("start", func() { cfg.StartIndex = flagCfg.StartIndex })
	set("mode", func() { cfg.Mode = config.Mode(mode) })
	set("training-fraction", func() { cfg.TrainingFraction = flagCfg.TrainingFraction })
	set("fd-budget", func() { cfg.FDBudget = flagCfg.FDBudget })
	set("column-set", func() { cfg.ColumnSetPath = flagCfg.ColumnSetPath })
	set("delimiter", func() { cfg.Delimiter = flagCfg.Delimiter })
	set("seed", func() { cfg.Seed = flagCfg.Seed })
}

// fixtureCmd writes a synthetic source file for testing.
func fixtureCmd() *cobra.Command {
	var output, delimiter string
	var rows, cols int
	var seed int64

	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Generate a synthetic delimited data file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			if err := fixture.Generate(output, rows, cols, delimiter, sampler.NewRand(seed)); err != nil {
				return err
			}
			logger.Info("fixture written",
				zap.String("path", output),
				zap.Int("rows", rows),
				zap.Int("columns", cols),
				zap.Int64("seed", seed))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Path for the fixture file (required)")
	cmd.Flags().IntVar(&rows, "rows", 100, "Data rows to generate")
	cmd.Flags().IntVar(&cols, "columns", 10, "Columns to generate")
	cmd.Flags().StringVar(&delimiter, "delimiter", ",", "Field delimiter")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed; 0 derives one from the clock")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

// stateCmd prints a persisted pool state record.
func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state <path>",
		Short: "Summarize a persisted pool state record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := state.Load(args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("no state record at %s", args[0])
			}

			fmt.Printf("schema version: %d\n", rec.SchemaVersion)
			fmt.Printf("mode:           %s\n", rec.Mode)
			fmt.Printf("row count:      %d\n", rec.RowCount)
			if rec.PoolSplit != nil {
				fmt.Printf("training pool:  %d rows (fraction %g)\n", len(rec.PoolSplit.TrainingPool), rec.PoolSplit.Fraction)
				fmt.Printf("validation pool: %d rows\n", len(rec.PoolSplit.ValidationPool))
			}
			if rec.FixedValidation != nil {
				fmt.Printf("validation set: %d rows (%d requested)\n", len(rec.FixedValidation.RowOrdinals), rec.FixedValidation.RowsRequested)
			}
			return nil
		},
	}
}
