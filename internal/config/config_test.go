package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRepositoryStrategyDefault(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, StrategyAggregateORM, cfg.Repository.Strategy)
}

func TestRepositoryStrategyNormalized(t *testing.T) {
	t.Setenv("REPO_STRATEGY", "  Row-SQL ")

	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, StrategyRowSQL, cfg.Repository.Strategy)
}

func TestRepositoryStrategyRejected(t *testing.T) {
	t.Setenv("REPO_STRATEGY", "document-store")

	_, err := New()
	require.Error(t, err)
}
