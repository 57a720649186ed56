package services

import (
	"context"
	"fmt"

	"github.com/saudeaberta/medstock-api/internal/domain/entities"
	"github.com/saudeaberta/medstock-api/internal/domain/repositories"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/observability"
)

// Loader writes aggregated facilities to the store
type Loader struct {
	repo repositories.HealthUnitRepository
}

// NewLoader creates a loader over repo
func NewLoader(repo repositories.HealthUnitRepository) *Loader {
	return &Loader{repo: repo}
}

// Load upserts units by facility code, replacing each stored facility wholesale.
// Facilities missing from units are kept as they are.
func (l *Loader) Load(ctx context.Context, units []*entities.HealthUnit) (int, error) {
	if len(units) == 0 {
		return 0, nil
	}
	if err := l.repo.UpsertAll(ctx, units); err != nil {
		return 0, fmt.Errorf("upsert %d health units: %w", len(units), err)
	}
	observability.LoggerFromContext(ctx).Info().Int("units", len(units)).Msg("loaded health units")
	return len(units), nil
}
