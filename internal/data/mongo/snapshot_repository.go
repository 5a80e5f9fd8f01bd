package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/virtual-currency-ledger/internal/domain/snapshot"
)

const (
	// SnapshotCollectionName is the name of the balance snapshot collection in MongoDB
	SnapshotCollectionName = "balance_snapshots"
)

// SnapshotRepository implements the snapshot.Repository interface for MongoDB
type SnapshotRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewSnapshotRepository creates a new MongoDB balance snapshot repository
func NewSnapshotRepository(logger *slog.Logger, db *mongo.Database) snapshot.Repository {
	return &SnapshotRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert overwrites the snapshot for the document's (wallet, asset) pair.
// The write is a full-document replacement keyed by the pair, which makes
// concurrent refreshes of the same pair converge without coordination.
func (r *SnapshotRepository) Upsert(ctx context.Context, snap *snapshot.BalanceSnapshot) error {
	collection := r.db.Collection(SnapshotCollectionName)

	snap.RefreshedAt = time.Now().UTC()

	filter := bson.M{
		"wallet_id":     snap.WalletID,
		"asset_type_id": snap.AssetTypeID,
	}
	opts := options.Replace().SetUpsert(true)

	_, err := collection.ReplaceOne(ctx, filter, snap, opts)
	if err != nil {
		r.logger.Error("Failed to upsert balance snapshot",
			"wallet_id", snap.WalletID,
			"asset_type_id", snap.AssetTypeID,
			"error", err)
		return fmt.Errorf("failed to upsert balance snapshot: %w", err)
	}

	return nil
}

// ListByExternalUser returns the cached balances for a user, optionally
// filtered to one asset code. Results are sorted by asset code for stable
// output.
func (r *SnapshotRepository) ListByExternalUser(ctx context.Context, externalUserID, assetCode string) ([]*snapshot.BalanceSnapshot, error) {
	collection := r.db.Collection(SnapshotCollectionName)

	filter := bson.M{"external_user_id": externalUserID}
	if assetCode != "" {
		filter["asset_code"] = assetCode
	}
	opts := options.Find().SetSort(bson.M{"asset_code": 1})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list balance snapshots",
			"external_user_id", externalUserID,
			"error", err)
		return nil, fmt.Errorf("failed to list balance snapshots: %w", err)
	}
	defer cursor.Close(ctx)

	var snapshots []*snapshot.BalanceSnapshot
	if err := cursor.All(ctx, &snapshots); err != nil {
		r.logger.Error("Failed to decode balance snapshots",
			"external_user_id", externalUserID,
			"error", err)
		return nil, fmt.Errorf("failed to decode balance snapshots: %w", err)
	}

	return snapshots, nil
}
