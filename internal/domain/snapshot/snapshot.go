// Package snapshot models the read-optimized balance cache. Snapshots are
// derived data: every document is reconstructible from ledger entry
// history, so the whole collection can be dropped and rebuilt at any time
// without correctness loss.
package snapshot

import (
	"context"
	"time"
)

// BalanceSnapshot is the cached signed sum of one (wallet, asset) pair as
// of the last refresh, plus the timestamp of the newest contributing entry.
type BalanceSnapshot struct {
	WalletID       int64     `json:"wallet_id" bson:"wallet_id"`
	WalletKind     string    `json:"wallet_kind" bson:"wallet_kind"`
	ExternalUserID *string   `json:"external_user_id,omitempty" bson:"external_user_id,omitempty"`
	AssetTypeID    int64     `json:"asset_type_id" bson:"asset_type_id"`
	AssetCode      string    `json:"asset_code" bson:"asset_code"`
	Balance        int64     `json:"balance" bson:"balance"`
	LastEntryAt    time.Time `json:"last_entry_at" bson:"last_entry_at"`
	RefreshedAt    time.Time `json:"refreshed_at" bson:"refreshed_at"`
}

// Repository manages the snapshot cache. Upserts are idempotent
// overwrites keyed by (wallet, asset), so concurrent refreshers need no
// coordination.
type Repository interface {
	// Upsert overwrites the snapshot for the document's (wallet, asset) pair.
	Upsert(ctx context.Context, snap *BalanceSnapshot) error

	// ListByExternalUser returns the cached balances for a user, optionally
	// filtered to one asset code (empty string means all assets).
	ListByExternalUser(ctx context.Context, externalUserID, assetCode string) ([]*BalanceSnapshot, error)
}
