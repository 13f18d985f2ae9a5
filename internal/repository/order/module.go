package order

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/strata/internal/config"
	"github.com/Additional-Code/strata/internal/database"
)

// Module provides the order repository to Fx.
var Module = fx.Provide(NewRepository)

// NewRepository builds the repository strategy named by configuration. All
// four strategies satisfy the same contract; the choice only moves the
// consistency/efficiency trade-off.
func NewRepository(cfg config.Config, conns *database.Connections, logger *zap.Logger) (Repository, error) {
	var repo Repository
	switch cfg.Repository.Strategy {
	case config.StrategyAggregateORM:
		repo = newAggregateORM(conns)
	case config.StrategyAggregateSQL:
		repo = newAggregateSQL(conns)
	case config.StrategyRowORM:
		repo = newRowORM(conns)
	case config.StrategyRowSQL:
		repo = newRowSQL(conns)
	default:
		return nil, fmt.Errorf("unknown repository strategy %q", cfg.Repository.Strategy)
	}

	logger.Info("order repository initialized",
		zap.String("strategy", cfg.Repository.Strategy),
		zap.Bool("optimistic_locking", repo.SupportsOptimisticLocking()),
	)
	return repo, nil
}
