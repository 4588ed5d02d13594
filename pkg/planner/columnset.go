package planner

import (
	"bufio"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cbda-tools/subsample/pkg/config"
	"github.com/cbda-tools/subsample/pkg/errors"
	"github.com/cbda-tools/subsample/pkg/profile"
)

// columnUniverse builds the eligible attribute-column ordinals: every
// column except case and outcome, or the restricted set when one is
// configured.
func columnUniverse(meta *profile.Metadata, cfg *config.CreateConfig) ([]int, error) {
	if cfg.ColumnSetPath != "" {
		return loadColumnSet(meta, cfg)
	}

	universe := make([]int, 0, meta.ColumnCount-2)
	for o := 0; o < meta.ColumnCount; o++ {
		if o == cfg.CaseColumn || o == cfg.OutcomeColumn {
			continue
		}
		universe = append(universe, o)
	}
	return universe, nil
}

// loadColumnSet reads a ranked column-set file restricting the attribute
// universe. Each line holds a column ordinal and a predictive-power
// rank, best first; only the first ColumnCount ordinals are used. The
// rank field is carried for the operator's benefit and not read here.
func loadColumnSet(meta *profile.Metadata, cfg *config.CreateConfig) ([]int, error) {
	f, err := os.Open(cfg.ColumnSetPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "opening column set file").WithDetail("path", cfg.ColumnSetPath)
	}
	defer f.Close()

	seen := make(map[int]struct{}, cfg.ColumnCount)
	universe := make([]int, 0, cfg.ColumnCount)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() && len(universe) < cfg.ColumnCount {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		ordinal, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, errors.Newf(errors.ErrorTypeConfig, "column %q on line %d of the column set file is not an integer", fields[0], lineNo).
				WithDetail("path", cfg.ColumnSetPath)
		}

		switch {
		case ordinal < 0 || ordinal >= meta.ColumnCount:
			return nil, errors.Newf(errors.ErrorTypeConfig, "column %d on line %d of the column set file is out of range [0,%d)", ordinal, lineNo, meta.ColumnCount).
				WithDetail("path", cfg.ColumnSetPath)
		case ordinal == cfg.CaseColumn:
			return nil, errors.Newf(errors.ErrorTypeConfig, "column %d on line %d of the column set file is the case column", ordinal, lineNo).
				WithDetail("path", cfg.ColumnSetPath)
		case ordinal == cfg.OutcomeColumn:
			return nil, errors.Newf(errors.ErrorTypeConfig, "column %d on line %d of the column set file is the outcome column", ordinal, lineNo).
				WithDetail("path", cfg.ColumnSetPath)
		}
		if _, dup := seen[ordinal]; dup {
			return nil, errors.Newf(errors.ErrorTypeConfig, "column %d on line %d of the column set file appeared twice", ordinal, lineNo).
				WithDetail("path", cfg.ColumnSetPath)
		}

		seen[ordinal] = struct{}{}
		universe = append(universe, ordinal)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "reading column set file").WithDetail("path", cfg.ColumnSetPath)
	}

	if len(universe) < cfg.ColumnCount {
		return nil, errors.Newf(errors.ErrorTypeConfig, "column set file lists only %d usable columns but %d are requested per set", len(universe), cfg.ColumnCount).
			WithDetail("path", cfg.ColumnSetPath)
	}

	sort.Ints(universe)
	return universe, nil
}
