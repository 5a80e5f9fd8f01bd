package service

import (
	"context"

	"github.com/virtual-currency-ledger/internal/domain/ledger"
	"github.com/virtual-currency-ledger/internal/domain/snapshot"
	"github.com/virtual-currency-ledger/internal/engine"
)

// OperationService defines the ledger write operations exposed over HTTP.
// The engine satisfies this interface directly.
type OperationService interface {
	// Transfer atomically moves an amount between two wallets
	Transfer(ctx context.Context, cmd engine.TransferCommand) (*engine.OperationResult, error)

	// CreditOnly mints units into a wallet with a single credit entry
	CreditOnly(ctx context.Context, cmd engine.SingleSidedCommand) (*engine.OperationResult, error)

	// DebitOnly burns units from a wallet with a single debit entry
	DebitOnly(ctx context.Context, cmd engine.SingleSidedCommand) (*engine.OperationResult, error)
}

// QueryService defines the read operations exposed over HTTP
type QueryService interface {
	// GetUserBalances returns the user's cached balances, optionally
	// filtered to one asset code. Returns ErrWalletNotFound for an
	// unknown user and ErrAssetTypeNotFound for an unknown asset code.
	GetUserBalances(ctx context.Context, externalUserID, assetCode string) ([]*snapshot.BalanceSnapshot, error)

	// GetUserBalanceRealtime computes the authoritative balance for one
	// (user, asset) pair from entry history.
	GetUserBalanceRealtime(ctx context.Context, externalUserID, assetCode string) (int64, error)

	// GetUserHistory returns a page of the user's entries for one asset,
	// newest first with running balances, and whether more pages exist.
	GetUserHistory(ctx context.Context, externalUserID, assetCode string, limit, offset int) ([]*ledger.HistoryEntry, bool, error)

	// GetTransactionDetails returns every entry committed under the
	// reference key. An empty slice means the key was never used.
	GetTransactionDetails(ctx context.Context, referenceKey string) ([]*ledger.Entry, error)
}
