package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Repository manages ledger entry persistence. Entries are append-only:
// there are no update or delete operations, by construction.
type Repository interface {
	// Insert appends a new entry and fills in its id and creation time.
	Insert(ctx context.Context, entry *Entry) error

	// FindFirstByReferenceKey returns the earliest entry carrying the
	// reference key, or nil if the key has never been used.
	FindFirstByReferenceKey(ctx context.Context, referenceKey string) (*Entry, error)

	// ListByReferenceKey returns every entry carrying the reference key,
	// ordered by entry id.
	ListByReferenceKey(ctx context.Context, referenceKey string) ([]*Entry, error)

	// SumBalance computes the signed sum of all entries for the pair.
	SumBalance(ctx context.Context, walletID, assetTypeID int64) (int64, error)

	// ListHistory returns up to limit entries for the pair, newest first,
	// each annotated with its running balance. It fetches one extra row so
	// the caller can detect further pages without a count query.
	ListHistory(ctx context.Context, walletID, assetTypeID int64, limit, offset int) ([]*HistoryEntry, error)

	// AggregateBalance computes the balance aggregate for one pair.
	// Returns nil if the pair has no entries.
	AggregateBalance(ctx context.Context, walletID, assetTypeID int64) (*BalanceAggregate, error)

	// AggregateBalances computes balance aggregates for every
	// (wallet, asset) pair that has at least one entry.
	AggregateBalances(ctx context.Context) ([]*BalanceAggregate, error)

	WithTx(tx pgx.Tx) Repository
}
