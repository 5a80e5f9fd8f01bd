package components

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/virtual-currency-ledger/internal/domain/ledger"
)

// IdempotencyGuard rejects replays of already-committed operations. It is
// the first check inside every write transaction: because the lookup runs
// in the same serializable transaction as the subsequent writes, a replay
// either sees the original entries and fails fast here, or collides with
// the reference-key unique index at insert time.
type IdempotencyGuard struct {
	entries ledger.Repository
	logger  *slog.Logger
}

// NewIdempotencyGuard creates a guard over the ledger entry repository
func NewIdempotencyGuard(logger *slog.Logger, entries ledger.Repository) *IdempotencyGuard {
	return &IdempotencyGuard{
		entries: entries,
		logger:  logger,
	}
}

// Check returns ledger.ErrDuplicateOperation carrying the original
// transaction id when the reference key has already been used, and nil
// when the key is fresh.
func (g *IdempotencyGuard) Check(ctx context.Context, tx pgx.Tx, referenceKey string) error {
	existing, err := g.entries.WithTx(tx).FindFirstByReferenceKey(ctx, referenceKey)
	if err != nil {
		return err
	}
	if existing != nil {
		g.logger.Info("Rejected replay of committed operation",
			"reference_key", referenceKey,
			"transaction_id", existing.TransactionID)
		return ledger.ErrDuplicateOperation{
			ReferenceKey:  referenceKey,
			TransactionID: existing.TransactionID,
		}
	}
	return nil
}
