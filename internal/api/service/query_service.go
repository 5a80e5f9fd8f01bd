package service

import (
	"context"
	"log/slog"

	"github.com/virtual-currency-ledger/internal/domain/asset"
	"github.com/virtual-currency-ledger/internal/domain/ledger"
	"github.com/virtual-currency-ledger/internal/domain/snapshot"
	"github.com/virtual-currency-ledger/internal/domain/wallet"
	"github.com/virtual-currency-ledger/internal/projection"
)

// queryService resolves user-facing identifiers (external user ids, asset
// codes) to wallet and asset ids and delegates to the projectors.
type queryService struct {
	logger   *slog.Logger
	wallets  wallet.Repository
	assets   asset.Repository
	entries  ledger.Repository
	balances *projection.BalanceProjector
	history  *projection.HistoryProjector
}

// NewQueryService creates a query service over the projectors
func NewQueryService(
	logger *slog.Logger,
	wallets wallet.Repository,
	assets asset.Repository,
	entries ledger.Repository,
	balances *projection.BalanceProjector,
	history *projection.HistoryProjector,
) QueryService {
	return &queryService{
		logger:   logger,
		wallets:  wallets,
		assets:   assets,
		entries:  entries,
		balances: balances,
		history:  history,
	}
}

func (s *queryService) GetUserBalances(ctx context.Context, externalUserID, assetCode string) ([]*snapshot.BalanceSnapshot, error) {
	// Resolve first so an unknown user is a 404, not an empty list
	if _, err := s.wallets.ResolveUser(ctx, externalUserID); err != nil {
		return nil, err
	}
	if assetCode != "" {
		if _, err := s.assets.ResolveByCode(ctx, assetCode); err != nil {
			return nil, err
		}
	}
	return s.balances.ReadCached(ctx, externalUserID, assetCode)
}

func (s *queryService) GetUserBalanceRealtime(ctx context.Context, externalUserID, assetCode string) (int64, error) {
	w, err := s.wallets.ResolveUser(ctx, externalUserID)
	if err != nil {
		return 0, err
	}
	a, err := s.assets.ResolveByCode(ctx, assetCode)
	if err != nil {
		return 0, err
	}
	return s.balances.ComputeRealtime(ctx, w.ID, a.ID)
}

func (s *queryService) GetUserHistory(ctx context.Context, externalUserID, assetCode string, limit, offset int) ([]*ledger.HistoryEntry, bool, error) {
	w, err := s.wallets.ResolveUser(ctx, externalUserID)
	if err != nil {
		return nil, false, err
	}
	a, err := s.assets.ResolveByCode(ctx, assetCode)
	if err != nil {
		return nil, false, err
	}
	return s.history.ListHistory(ctx, w.ID, a.ID, limit, offset)
}

func (s *queryService) GetTransactionDetails(ctx context.Context, referenceKey string) ([]*ledger.Entry, error) {
	return s.entries.ListByReferenceKey(ctx, referenceKey)
}
