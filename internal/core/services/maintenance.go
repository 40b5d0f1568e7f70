package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
	"github.com/custodia-labs/dkansync/internal/core/ports/driving"
	"github.com/custodia-labs/dkansync/internal/logger"
)

// Ensure MaintenanceService implements the interface.
var _ driving.Maintenance = (*MaintenanceService)(nil)

// MaintenanceService exposes run history and the response cache.
type MaintenanceService struct {
	runs  driven.RunStore
	cache driven.ResponseCache
}

// NewMaintenanceService creates a maintenance service. Both stores may be nil.
func NewMaintenanceService(runs driven.RunStore, cache driven.ResponseCache) *MaintenanceService {
	return &MaintenanceService{runs: runs, cache: cache}
}

// Runs lists recent runs, newest first. limit 0 lists all.
func (s *MaintenanceService) Runs(ctx context.Context, limit int) ([]domain.Run, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("run history: %w", domain.ErrNotImplemented)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", domain.ErrInvalidInput, limit)
	}
	return s.runs.List(ctx, limit)
}

// Run retrieves one run by id.
func (s *MaintenanceService) Run(ctx context.Context, id string) (*domain.Run, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("run history: %w", domain.ErrNotImplemented)
	}
	if id == "" {
		return nil, fmt.Errorf("%w: run id is empty", domain.ErrInvalidInput)
	}
	return s.runs.Get(ctx, id)
}

// ClearCache drops all cached portal responses. Without a cache there is
// nothing to clear.
func (s *MaintenanceService) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		logger.Info("Response cache disabled, nothing to clear")
		return nil
	}
	if err := s.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	logger.Info("Response cache cleared")
	return nil
}
