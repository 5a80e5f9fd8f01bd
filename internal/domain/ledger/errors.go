package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/virtual-currency-ledger/internal/domain/asset"
	"github.com/virtual-currency-ledger/internal/domain/wallet"
)

// ErrInvalidAmount indicates a non-positive amount. Rejected before the
// operation reaches locking.
type ErrInvalidAmount struct {
	Amount int64
}

func (e ErrInvalidAmount) Error() string {
	return fmt.Sprintf("amount must be a positive integer, got %d", e.Amount)
}

// Is matches any ErrInvalidAmount
func (e ErrInvalidAmount) Is(target error) bool {
	_, ok := target.(ErrInvalidAmount)
	return ok
}

// ErrDuplicateOperation indicates the reference key was already used by a
// committed operation. Callers should treat this as already-applied and
// surface the original transaction id.
type ErrDuplicateOperation struct {
	ReferenceKey  string
	TransactionID uuid.UUID
}

func (e ErrDuplicateOperation) Error() string {
	return fmt.Sprintf("operation with reference key %q already applied as transaction %s", e.ReferenceKey, e.TransactionID)
}

// Is matches any ErrDuplicateOperation when the target carries no key
func (e ErrDuplicateOperation) Is(target error) bool {
	t, ok := target.(ErrDuplicateOperation)
	if !ok {
		return false
	}
	if t.ReferenceKey == "" {
		return true
	}
	return e.ReferenceKey == t.ReferenceKey
}

// ErrInsufficientFunds indicates the source balance cannot cover the
// requested amount. The aborted operation writes nothing.
type ErrInsufficientFunds struct {
	Required  int64
	Available int64
	AssetCode string
}

func (e ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient %s funds: required %d, available %d", e.AssetCode, e.Required, e.Available)
}

// Is matches any ErrInsufficientFunds
func (e ErrInsufficientFunds) Is(target error) bool {
	_, ok := target.(ErrInsufficientFunds)
	return ok
}

// ErrSerializationConflict indicates the store detected an isolation
// conflict at commit time. The operation left no trace and may be retried.
type ErrSerializationConflict struct{}

func (e ErrSerializationConflict) Error() string {
	return "transaction aborted by a serialization conflict, retry the operation"
}

// ErrStorage wraps an unexpected store failure. Terminal for this
// attempt; retry is up to caller policy.
type ErrStorage struct {
	Op  string
	Err error
}

func (e ErrStorage) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e ErrStorage) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the error is a transient contention
// condition that a caller should retry with backoff. Everything else in
// the taxonomy is terminal for the given input.
func IsRetryable(err error) bool {
	if errors.Is(err, wallet.ErrWalletLocked{}) {
		return true
	}
	var conflict ErrSerializationConflict
	return errors.As(err, &conflict)
}

// IsNotFound reports whether the error is an unresolved wallet or asset
// identifier.
func IsNotFound(err error) bool {
	return errors.Is(err, wallet.ErrWalletNotFound{}) || errors.Is(err, asset.ErrAssetTypeNotFound{})
}
