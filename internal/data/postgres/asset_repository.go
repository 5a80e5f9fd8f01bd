package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/virtual-currency-ledger/internal/domain/asset"
	"github.com/virtual-currency-ledger/internal/platform/persistence"
)

// AssetRepository implements the asset.Repository interface for PostgreSQL
type AssetRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewAssetRepository creates a new PostgreSQL asset type repository
func NewAssetRepository(logger *slog.Logger, db *persistence.PostgresDB) asset.Repository {
	return &AssetRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *AssetRepository) WithTx(tx pgx.Tx) asset.Repository {
	return &AssetRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// ResolveByCode retrieves an active asset type by its code
func (r *AssetRepository) ResolveByCode(ctx context.Context, code string) (*asset.AssetType, error) {
	query := `
		SELECT id, code, display_name, decimal_places, active, created_at
		FROM asset_types
		WHERE code = $1 AND active
	`

	var a asset.AssetType
	err := r.querier.QueryRow(ctx, query, code).Scan(
		&a.ID,
		&a.Code,
		&a.DisplayName,
		&a.DecimalPlaces,
		&a.Active,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, asset.ErrAssetTypeNotFound{Code: code}
		}
		r.logger.Error("Failed to resolve asset type", "code", code, "error", err)
		return nil, fmt.Errorf("failed to resolve asset type: %w", err)
	}

	return &a, nil
}
