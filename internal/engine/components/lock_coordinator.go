// Package components holds the engine's internal collaborators: the lock
// coordinator and the idempotency guard. Both operate inside the engine's
// transaction and never open transactions of their own.
package components

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/virtual-currency-ledger/internal/domain/wallet"
)

// LockCoordinator serializes concurrent operations touching the same
// wallets. Locks are row locks on the wallet rows, taken in ascending id
// order so two operations can never hold locks in opposite orders, and
// with NOWAIT so contention surfaces immediately as a retryable error
// instead of a blocked transaction.
type LockCoordinator struct {
	wallets wallet.Repository
	logger  *slog.Logger
}

// NewLockCoordinator creates a lock coordinator over the wallet repository
func NewLockCoordinator(logger *slog.Logger, wallets wallet.Repository) *LockCoordinator {
	return &LockCoordinator{
		wallets: wallets,
		logger:  logger,
	}
}

// AcquireExclusive locks the given wallet rows within tx. The locks are
// held until the transaction commits or rolls back.
// Returns wallet.ErrWalletLocked when any row is held by a concurrent
// operation and wallet.ErrWalletNotFound when a row does not exist.
func (c *LockCoordinator) AcquireExclusive(ctx context.Context, tx pgx.Tx, walletIDs []int64) error {
	if len(walletIDs) == 0 {
		return nil
	}

	err := c.wallets.WithTx(tx).LockWallets(ctx, walletIDs)
	if err != nil {
		c.logger.Debug("Failed to acquire wallet locks",
			"wallet_ids", walletIDs,
			"error", err)
		return err
	}
	return nil
}
