package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbda-tools/subsample/pkg/errors"
)

func validConfig() *CreateConfig {
	cfg := NewCreateConfig()
	cfg.Input = "data.csv"
	cfg.MetadataPath = "data.meta.json"
	cfg.TrainingRowCount = 10
	cfg.ValidationRowCount = 5
	cfg.ColumnCount = 4
	cfg.CaseColumn = 0
	cfg.OutcomeColumn = 1
	cfg.SetCount = 2
	return cfg
}

func TestValidateAccepts(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateConfig)
	}{
		{"missing input", func(c *CreateConfig) { c.Input = "" }},
		{"missing metadata", func(c *CreateConfig) { c.MetadataPath = "" }},
		{"zero training rows", func(c *CreateConfig) { c.TrainingRowCount = 0 }},
		{"zero validation rows", func(c *CreateConfig) { c.ValidationRowCount = 0 }},
		{"zero columns", func(c *CreateConfig) { c.ColumnCount = 0 }},
		{"negative case column", func(c *CreateConfig) { c.CaseColumn = -1 }},
		{"negative outcome column", func(c *CreateConfig) { c.OutcomeColumn = -1; c.CaseColumn = 2 }},
		{"case equals outcome", func(c *CreateConfig) { c.OutcomeColumn = c.CaseColumn }},
		{"zero set count", func(c *CreateConfig) { c.SetCount = 0 }},
		{"start below one", func(c *CreateConfig) { c.StartIndex = 0 }},
		{"unknown mode", func(c *CreateConfig) { c.Mode = "bootstrap" }},
		{"fraction too low", func(c *CreateConfig) { c.Mode = ModePoolSplit; c.TrainingFraction = 0 }},
		{"fraction too high", func(c *CreateConfig) { c.Mode = ModePoolSplit; c.TrainingFraction = 1.0 }},
		{"budget below reserved", func(c *CreateConfig) { c.FDBudget = ReservedHandles }},
		{"multi-char delimiter", func(c *CreateConfig) { c.Delimiter = ",," }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), "expected a config error, got %v", err)
		})
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"single", "per-training", "pool-split"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}

	_, err := ParseMode("jackknife")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestStateFileDefaultsFromMetadata(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "data.meta.json.state", cfg.StateFile())

	cfg.StatePath = "custom.state"
	assert.Equal(t, "custom.state", cfg.StateFile())
}

func TestPaired(t *testing.T) {
	cfg := validConfig()

	cfg.Mode = ModeSingle
	assert.False(t, cfg.Paired())
	cfg.Mode = ModePerTraining
	assert.True(t, cfg.Paired())
	cfg.Mode = ModePoolSplit
	assert.True(t, cfg.Paired())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	body := `{"input":"big.csv","training_row_count":500,"mode":"pool-split","training_fraction":0.8}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg := NewCreateConfig()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, "big.csv", cfg.Input)
	assert.Equal(t, 500, cfg.TrainingRowCount)
	assert.Equal(t, ModePoolSplit, cfg.Mode)
	assert.Equal(t, 0.8, cfg.TrainingFraction)
	// Untouched fields keep their defaults.
	assert.Equal(t, ",", cfg.Delimiter)
	assert.Equal(t, DefaultFDBudget, cfg.FDBudget)
}

func TestLoadFileMissing(t *testing.T) {
	cfg := NewCreateConfig()
	err := cfg.LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
