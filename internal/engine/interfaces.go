package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/virtual-currency-ledger/internal/domain/ledger"
)

// AccountRef identifies one side of an operation: either a user wallet by
// external user id or a system wallet by name. Exactly one field is set.
type AccountRef struct {
	ExternalUserID string
	SystemName     string
}

// Identifier returns the ref's human-readable identifier for errors and logs
func (r AccountRef) Identifier() string {
	if r.ExternalUserID != "" {
		return "user:" + r.ExternalUserID
	}
	return "system:" + r.SystemName
}

// TransferCommand moves an amount from one wallet to another as a
// balanced debit/credit pair under a single transaction id.
type TransferCommand struct {
	Source       AccountRef
	Target       AccountRef
	AssetCode    string
	Amount       int64
	Operation    ledger.OperationKind
	ReferenceKey string
	Metadata     map[string]string
}

// SingleSidedCommand mints into or burns from one wallet with a single
// entry. Used by CreditOnly and DebitOnly.
type SingleSidedCommand struct {
	Account      AccountRef
	AssetCode    string
	Amount       int64
	Operation    ledger.OperationKind
	ReferenceKey string
	Metadata     map[string]string
}

// OperationResult reports a committed operation. Balance is the
// post-operation balance of the wallet that received the effect: the
// target for transfers and credits, the debited wallet for debits.
type OperationResult struct {
	TransactionID uuid.UUID
	Balance       int64
}

// TxRunner runs a unit of work in a serializable database transaction
type TxRunner interface {
	ExecuteSerializableTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// LockCoordinator acquires exclusive wallet row locks inside a transaction
type LockCoordinator interface {
	AcquireExclusive(ctx context.Context, tx pgx.Tx, walletIDs []int64) error
}

// IdempotencyGuard fails fast when a reference key was already committed
type IdempotencyGuard interface {
	Check(ctx context.Context, tx pgx.Tx, referenceKey string) error
}
