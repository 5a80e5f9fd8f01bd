// Package projection derives read views from ledger entry history: the
// realtime and cached balance projections, and the paginated history view
// with running balances. Nothing here writes entries.
package projection

import (
	"context"
	"log/slog"

	"github.com/virtual-currency-ledger/internal/domain/ledger"
	"github.com/virtual-currency-ledger/internal/domain/snapshot"
)

// BalanceProjector serves balances in two modes. Realtime reads sum the
// committed entry history and are authoritative. Cached reads come from
// the snapshot collection and may lag by one refresh; they exist to keep
// hot balance lookups off the authoritative store.
type BalanceProjector struct {
	logger    *slog.Logger
	entries   ledger.Repository
	snapshots snapshot.Repository
}

// NewBalanceProjector creates a balance projector
func NewBalanceProjector(logger *slog.Logger, entries ledger.Repository, snapshots snapshot.Repository) *BalanceProjector {
	return &BalanceProjector{
		logger:    logger,
		entries:   entries,
		snapshots: snapshots,
	}
}

// ComputeRealtime returns the signed sum of all committed entries for the
// pair. A pair with no entries has balance zero.
func (p *BalanceProjector) ComputeRealtime(ctx context.Context, walletID, assetTypeID int64) (int64, error) {
	return p.entries.SumBalance(ctx, walletID, assetTypeID)
}

// ReadCached returns the cached balances for a user, optionally filtered
// to one asset code. Absence of a snapshot means the pair has not been
// refreshed yet, not that the balance is zero.
func (p *BalanceProjector) ReadCached(ctx context.Context, externalUserID, assetCode string) ([]*snapshot.BalanceSnapshot, error) {
	return p.snapshots.ListByExternalUser(ctx, externalUserID, assetCode)
}

// RefreshPair recomputes one (wallet, asset) snapshot from entry history
// and upserts it. A pair that has no entries is left untouched.
func (p *BalanceProjector) RefreshPair(ctx context.Context, walletID, assetTypeID int64) error {
	agg, err := p.entries.AggregateBalance(ctx, walletID, assetTypeID)
	if err != nil {
		return err
	}
	if agg == nil {
		p.logger.Debug("Skipping snapshot refresh for pair without entries",
			"wallet_id", walletID,
			"asset_type_id", assetTypeID)
		return nil
	}
	return p.snapshots.Upsert(ctx, snapshotFromAggregate(agg))
}

// RefreshAll rebuilds the snapshot for every pair that has at least one
// entry. Upserts are independent, so a partial failure leaves the other
// pairs refreshed; the first error is returned after the loop finishes.
func (p *BalanceProjector) RefreshAll(ctx context.Context) (int, error) {
	aggregates, err := p.entries.AggregateBalances(ctx)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	var firstErr error
	for _, agg := range aggregates {
		if err := p.snapshots.Upsert(ctx, snapshotFromAggregate(agg)); err != nil {
			p.logger.Error("Failed to refresh balance snapshot",
				"wallet_id", agg.WalletID,
				"asset_type_id", agg.AssetTypeID,
				"error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		refreshed++
	}
	return refreshed, firstErr
}

func snapshotFromAggregate(agg *ledger.BalanceAggregate) *snapshot.BalanceSnapshot {
	return &snapshot.BalanceSnapshot{
		WalletID:       agg.WalletID,
		WalletKind:     agg.WalletKind,
		ExternalUserID: agg.ExternalUserID,
		AssetTypeID:    agg.AssetTypeID,
		AssetCode:      agg.AssetCode,
		Balance:        agg.Balance,
		LastEntryAt:    agg.LastEntryAt,
	}
}
