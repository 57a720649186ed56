package database

import (
	"context"

	"github.com/saudeaberta/medstock-api/internal/infrastructure/clients/postgres"
	apperrors "github.com/saudeaberta/medstock-api/pkg/errors"
)

const healthUnitsTable = "health_units"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS health_units (
		cnes_code         TEXT PRIMARY KEY,
		name              TEXT NOT NULL,
		street            TEXT NOT NULL DEFAULT '',
		number            TEXT NOT NULL DEFAULT '',
		neighborhood      TEXT NOT NULL DEFAULT '',
		cep               TEXT NOT NULL DEFAULT '',
		longitude         DOUBLE PRECISION NOT NULL DEFAULT 0,
		latitude          DOUBLE PRECISION NOT NULL DEFAULT 0,
		city              TEXT NOT NULL DEFAULT '',
		state             TEXT NOT NULL DEFAULT '',
		phone             TEXT,
		email             TEXT,
		location_type     TEXT,
		last_stock_update DATE NOT NULL,
		medicines         JSONB NOT NULL DEFAULT '[]'::jsonb,
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_health_units_location_type ON health_units (location_type)`,
	`CREATE INDEX IF NOT EXISTS idx_health_units_last_stock_update ON health_units (last_stock_update)`,
}

// EnsureSchema creates the health_units table and its indexes when missing
func EnsureSchema(ctx context.Context, client *postgres.Client) error {
	for _, stmt := range schemaStatements {
		if _, err := client.DB().ExecContext(ctx, stmt); err != nil {
			return apperrors.NewInternalError("failed to apply schema", err)
		}
	}
	return nil
}
