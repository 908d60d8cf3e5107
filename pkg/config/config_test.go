package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 2023, cfg.Grading.FlatExamWeightCohort)
	assert.Equal(t, 2025, cfg.Grading.WeightedCFSCohort)
	assert.Equal(t, "30", cfg.Grading.TriennialExamWeight)
	assert.Equal(t, 2*time.Minute, cfg.Board.CacheTTL)
	assert.Equal(t, 2, cfg.Quiz.RegradeWorkers)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("GRADING_WEIGHTED_CFS_COHORT", "2027")
	t.Setenv("BOARD_CACHE_TTL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2027, cfg.Grading.WeightedCFSCohort)
	assert.Equal(t, 2*time.Minute, cfg.Board.CacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
