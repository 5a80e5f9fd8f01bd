package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/virtual-currency-ledger/internal/domain/ledger"
	"github.com/virtual-currency-ledger/internal/platform/persistence"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint violations
const pgUniqueViolation = "23505"

// EntryRepository implements the ledger.Repository interface for PostgreSQL.
// The ledger_entries table is append-only: this repository exposes no
// update or delete operations.
type EntryRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewEntryRepository creates a new PostgreSQL ledger entry repository
func NewEntryRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &EntryRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing entry writes to
// share an atomic unit with locking and balance checks.
func (r *EntryRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &EntryRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Insert appends a new ledger entry and fills in its generated id and
// creation timestamp. A unique violation on the reference key means a
// concurrent operation with the same key won the race; it is reported as
// a serialization conflict so the caller's retry hits the idempotency
// guard and receives the committed transaction id.
func (r *EntryRepository) Insert(ctx context.Context, entry *ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (transaction_id, wallet_id, asset_type_id, kind, amount, operation, reference_key, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode entry metadata: %w", err)
	}

	err = r.querier.QueryRow(ctx, query,
		entry.TransactionID,
		entry.WalletID,
		entry.AssetTypeID,
		entry.Kind,
		entry.Amount,
		entry.Operation,
		entry.ReferenceKey,
		metadata,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			r.logger.Warn("Reference key raced with a concurrent operation",
				"reference_key", entry.ReferenceKey)
			return ledger.ErrSerializationConflict{}
		}
		r.logger.Error("Failed to insert ledger entry",
			"transaction_id", entry.TransactionID.String(),
			"error", err)
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	return nil
}

// FindFirstByReferenceKey returns the earliest entry carrying the
// reference key, or nil if the key has never been used.
func (r *EntryRepository) FindFirstByReferenceKey(ctx context.Context, referenceKey string) (*ledger.Entry, error) {
	if referenceKey == "" {
		return nil, errors.New("reference key cannot be empty")
	}

	query := selectEntryColumns + `
		FROM ledger_entries
		WHERE reference_key = $1
		ORDER BY id
		LIMIT 1
	`

	entry, err := r.scanEntry(r.querier.QueryRow(ctx, query, referenceKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Key never used
		}
		r.logger.Error("Failed to look up entry by reference key", "reference_key", referenceKey, "error", err)
		return nil, fmt.Errorf("failed to look up entry by reference key: %w", err)
	}

	return entry, nil
}

// ListByReferenceKey returns every entry carrying the reference key,
// ordered by entry id.
func (r *EntryRepository) ListByReferenceKey(ctx context.Context, referenceKey string) ([]*ledger.Entry, error) {
	query := selectEntryColumns + `
		FROM ledger_entries
		WHERE reference_key = $1
		ORDER BY id
	`

	rows, err := r.querier.Query(ctx, query, referenceKey)
	if err != nil {
		r.logger.Error("Failed to list entries by reference key", "reference_key", referenceKey, "error", err)
		return nil, fmt.Errorf("failed to list entries by reference key: %w", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		entry, err := r.scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger entries: %w", err)
	}

	return entries, nil
}

// SumBalance computes the signed sum of all entries for the pair.
// Authoritative: this is the balance the engine trusts inside a
// transaction, never the snapshot cache.
func (r *EntryRepository) SumBalance(ctx context.Context, walletID, assetTypeID int64) (int64, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN kind = 'CREDIT' THEN amount ELSE -amount END), 0)
		FROM ledger_entries
		WHERE wallet_id = $1 AND asset_type_id = $2
	`

	var balance int64
	err := r.querier.QueryRow(ctx, query, walletID, assetTypeID).Scan(&balance)
	if err != nil {
		r.logger.Error("Failed to sum balance", "wallet_id", walletID, "asset_type_id", assetTypeID, "error", err)
		return 0, fmt.Errorf("failed to sum balance: %w", err)
	}

	return balance, nil
}

// ListHistory returns up to limit+1 entries for the pair, newest first,
// each annotated with the running balance after that entry. One row beyond
// the limit is fetched so callers can detect a following page without a
// count query. The running balance is a window sum over the full ordered
// history (creation time, then entry id as tie-break), computed in one
// pass by the database.
func (r *EntryRepository) ListHistory(ctx context.Context, walletID, assetTypeID int64, limit, offset int) ([]*ledger.HistoryEntry, error) {
	query := `
		SELECT id, transaction_id, wallet_id, asset_type_id, kind, amount, operation, reference_key, metadata, created_at, running_balance
		FROM (
			SELECT e.*,
			       SUM(CASE WHEN e.kind = 'CREDIT' THEN e.amount ELSE -e.amount END)
			           OVER (ORDER BY e.created_at, e.id) AS running_balance
			FROM ledger_entries e
			WHERE e.wallet_id = $1 AND e.asset_type_id = $2
		) h
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.querier.Query(ctx, query, walletID, assetTypeID, limit+1, offset)
	if err != nil {
		r.logger.Error("Failed to list history", "wallet_id", walletID, "asset_type_id", assetTypeID, "error", err)
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*ledger.HistoryEntry
	for rows.Next() {
		var h ledger.HistoryEntry
		var metadata []byte
		err := rows.Scan(
			&h.ID,
			&h.TransactionID,
			&h.WalletID,
			&h.AssetTypeID,
			&h.Kind,
			&h.Amount,
			&h.Operation,
			&h.ReferenceKey,
			&metadata,
			&h.CreatedAt,
			&h.RunningBalance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if h.Metadata, err = unmarshalMetadata(metadata); err != nil {
			return nil, fmt.Errorf("failed to decode entry metadata: %w", err)
		}
		entries = append(entries, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history entries: %w", err)
	}

	return entries, nil
}

// AggregateBalance computes the balance aggregate for one pair.
// Returns nil if the pair has no entries.
func (r *EntryRepository) AggregateBalance(ctx context.Context, walletID, assetTypeID int64) (*ledger.BalanceAggregate, error) {
	query := aggregateBalanceQuery + `
		WHERE e.wallet_id = $1 AND e.asset_type_id = $2
		GROUP BY e.wallet_id, w.kind, w.external_user_id, e.asset_type_id, a.code
	`

	agg, err := r.scanAggregate(r.querier.QueryRow(ctx, query, walletID, assetTypeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Pair has no entries yet
		}
		r.logger.Error("Failed to aggregate balance", "wallet_id", walletID, "asset_type_id", assetTypeID, "error", err)
		return nil, fmt.Errorf("failed to aggregate balance: %w", err)
	}

	return agg, nil
}

// AggregateBalances computes balance aggregates for every (wallet, asset)
// pair that has at least one entry. Feeds full snapshot cache rebuilds.
func (r *EntryRepository) AggregateBalances(ctx context.Context) ([]*ledger.BalanceAggregate, error) {
	query := aggregateBalanceQuery + `
		GROUP BY e.wallet_id, w.kind, w.external_user_id, e.asset_type_id, a.code
		ORDER BY e.wallet_id, e.asset_type_id
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to aggregate balances", "error", err)
		return nil, fmt.Errorf("failed to aggregate balances: %w", err)
	}
	defer rows.Close()

	var aggregates []*ledger.BalanceAggregate
	for rows.Next() {
		agg, err := r.scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance aggregate: %w", err)
		}
		aggregates = append(aggregates, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read balance aggregates: %w", err)
	}

	return aggregates, nil
}

const selectEntryColumns = `
		SELECT id, transaction_id, wallet_id, asset_type_id, kind, amount, operation, reference_key, metadata, created_at`

const aggregateBalanceQuery = `
		SELECT e.wallet_id, w.kind, w.external_user_id, e.asset_type_id, a.code,
		       COALESCE(SUM(CASE WHEN e.kind = 'CREDIT' THEN e.amount ELSE -e.amount END), 0),
		       MAX(e.created_at)
		FROM ledger_entries e
		JOIN wallets w ON w.id = e.wallet_id
		JOIN asset_types a ON a.id = e.asset_type_id`

func (r *EntryRepository) scanEntry(row pgx.Row) (*ledger.Entry, error) {
	var entry ledger.Entry
	var metadata []byte
	err := row.Scan(
		&entry.ID,
		&entry.TransactionID,
		&entry.WalletID,
		&entry.AssetTypeID,
		&entry.Kind,
		&entry.Amount,
		&entry.Operation,
		&entry.ReferenceKey,
		&metadata,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if entry.Metadata, err = unmarshalMetadata(metadata); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *EntryRepository) scanAggregate(row pgx.Row) (*ledger.BalanceAggregate, error) {
	var agg ledger.BalanceAggregate
	err := row.Scan(
		&agg.WalletID,
		&agg.WalletKind,
		&agg.ExternalUserID,
		&agg.AssetTypeID,
		&agg.AssetCode,
		&agg.Balance,
		&agg.LastEntryAt,
	)
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

// marshalMetadata stores metadata as JSONB, defaulting to an empty object.
// The blob is opaque: it is stored and returned verbatim and never
// influences control flow.
func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return json.Marshal(metadata)
}

func unmarshalMetadata(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var metadata map[string]string
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, err
	}
	if len(metadata) == 0 {
		return nil, nil
	}
	return metadata, nil
}
