// Package postgres provides PostgreSQL implementations of the domain
// repositories. The ledger entry table is the single source of truth;
// all repositories here keep transaction safety by accepting either the
// shared pool or an open pgx transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/virtual-currency-ledger/internal/domain/wallet"
	"github.com/virtual-currency-ledger/internal/platform/persistence"
)

// pgLockNotAvailable is the PostgreSQL error code raised by FOR UPDATE NOWAIT
// when another transaction already holds the row lock.
const pgLockNotAvailable = "55P03"

// WalletRepository implements the wallet.Repository interface for PostgreSQL
type WalletRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewWalletRepository creates a new PostgreSQL wallet repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewWalletRepository(logger *slog.Logger, db *persistence.PostgresDB) wallet.Repository {
	return &WalletRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic
// operations across multiple repository calls.
func (r *WalletRepository) WithTx(tx pgx.Tx) wallet.Repository {
	return &WalletRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// ResolveUser retrieves the active wallet bound to an external user id
func (r *WalletRepository) ResolveUser(ctx context.Context, externalUserID string) (*wallet.Wallet, error) {
	query := `
		SELECT id, kind, external_user_id, name, active, created_at
		FROM wallets
		WHERE external_user_id = $1 AND kind = 'USER' AND active
	`

	w, err := r.scanWallet(r.querier.QueryRow(ctx, query, externalUserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{Identifier: externalUserID}
		}
		r.logger.Error("Failed to resolve user wallet", "external_user_id", externalUserID, "error", err)
		return nil, fmt.Errorf("failed to resolve user wallet: %w", err)
	}

	return w, nil
}

// ResolveSystem retrieves the active system wallet with the given name
func (r *WalletRepository) ResolveSystem(ctx context.Context, name string) (*wallet.Wallet, error) {
	query := `
		SELECT id, kind, external_user_id, name, active, created_at
		FROM wallets
		WHERE name = $1 AND kind = 'SYSTEM' AND active
	`

	w, err := r.scanWallet(r.querier.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{Identifier: name}
		}
		r.logger.Error("Failed to resolve system wallet", "name", name, "error", err)
		return nil, fmt.Errorf("failed to resolve system wallet: %w", err)
	}

	return w, nil
}

// LockWallets acquires exclusive row locks on the given wallets without
// blocking. Ids are locked in ascending order regardless of caller order;
// the fixed total order is what makes waiter cycles, and therefore
// deadlocks, impossible. NOWAIT turns contention into an immediate
// ErrWalletLocked instead of a queued waiter.
func (r *WalletRepository) LockWallets(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	ordered := make([]int64, len(ids))
	copy(ordered, ids)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })
	ordered = dedupe(ordered)

	query := `
		SELECT id
		FROM wallets
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE NOWAIT
	`

	rows, err := r.querier.Query(ctx, query, ordered)
	if err != nil {
		return r.classifyLockError(err, ordered)
	}
	defer rows.Close()

	locked := 0
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan locked wallet id: %w", err)
		}
		locked++
	}
	if err := rows.Err(); err != nil {
		return r.classifyLockError(err, ordered)
	}

	if locked != len(ordered) {
		return wallet.ErrWalletNotFound{Identifier: fmt.Sprintf("%v", ordered)}
	}

	return nil
}

func (r *WalletRepository) classifyLockError(err error, ids []int64) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		r.logger.Warn("Wallet rows contended, lock not acquired", "wallet_ids", ids)
		return wallet.ErrWalletLocked{WalletIDs: ids}
	}
	r.logger.Error("Failed to lock wallets", "wallet_ids", ids, "error", err)
	return fmt.Errorf("failed to lock wallets: %w", err)
}

func (r *WalletRepository) scanWallet(row pgx.Row) (*wallet.Wallet, error) {
	var w wallet.Wallet
	err := row.Scan(
		&w.ID,
		&w.Kind,
		&w.ExternalUserID,
		&w.Name,
		&w.Active,
		&w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func dedupe(sorted []int64) []int64 {
	out := sorted[:0]
	for i, id := range sorted {
		if i == 0 || id != sorted[i-1] {
			out = append(out, id)
		}
	}
	return out
}
