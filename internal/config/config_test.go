package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, 15000, cfg.Extract.MaxDocChars)

	// Rate-limit defaults: synthesis runs wider batches with shorter delays
	// than search.
	assert.Equal(t, 5, cfg.Research.SearchBatchSize)
	assert.Equal(t, 10, cfg.Research.SynthesisBatchSize)
	assert.Greater(t, cfg.Research.SynthesisBatchSize, cfg.Research.SearchBatchSize)
	assert.Less(t, cfg.Research.SynthesisBatchDelayMS, cfg.Research.SearchBatchDelayMS)
}

func TestResearchConfig_Durations(t *testing.T) {
	r := ResearchConfig{
		SearchBatchDelayMS:    2000,
		SynthesisBatchDelayMS: 500,
		CallTimeoutSecs:       60,
	}
	assert.Equal(t, 2*time.Second, r.SearchBatchDelay())
	assert.Equal(t, 500*time.Millisecond, r.SynthesisBatchDelay())
	assert.Equal(t, time.Minute, r.CallTimeout())
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	assert.NoError(t, err)
}
