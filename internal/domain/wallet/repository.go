package wallet

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Repository defines wallet resolution and locking operations.
// Wallet creation and administration happen outside this service, so the
// interface is read-only apart from row locks taken inside a transaction.
type Repository interface {
	// ResolveUser returns the active wallet bound to the external user id.
	// Returns ErrWalletNotFound if no active wallet matches.
	ResolveUser(ctx context.Context, externalUserID string) (*Wallet, error)

	// ResolveSystem returns the active system wallet with the given name.
	// Returns ErrWalletNotFound if no active wallet matches.
	ResolveSystem(ctx context.Context, name string) (*Wallet, error)

	// LockWallets acquires exclusive row locks on the given wallets in
	// ascending id order without blocking. Must run inside a transaction.
	// Returns ErrWalletLocked if any row is held by a concurrent operation.
	LockWallets(ctx context.Context, ids []int64) error

	WithTx(tx pgx.Tx) Repository
}

// ErrWalletNotFound indicates an unresolved wallet identifier
type ErrWalletNotFound struct {
	Identifier string
}

func (e ErrWalletNotFound) Error() string {
	return "wallet not found: " + e.Identifier
}

// Is matches any ErrWalletNotFound when the target carries no identifier
func (e ErrWalletNotFound) Is(target error) bool {
	t, ok := target.(ErrWalletNotFound)
	if !ok {
		return false
	}
	if t.Identifier == "" {
		return true
	}
	return e.Identifier == t.Identifier
}

// ErrWalletLocked indicates that a requested wallet row is currently held
// by a concurrent in-flight operation. Callers may retry with backoff.
type ErrWalletLocked struct {
	WalletIDs []int64
}

func (e ErrWalletLocked) Error() string {
	return fmt.Sprintf("wallets currently locked by a concurrent operation: %v", e.WalletIDs)
}

// Is matches any ErrWalletLocked regardless of the wallet set
func (e ErrWalletLocked) Is(target error) bool {
	_, ok := target.(ErrWalletLocked)
	return ok
}
