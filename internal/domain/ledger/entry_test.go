package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/virtual-currency-ledger/internal/domain/asset"
	"github.com/virtual-currency-ledger/internal/domain/wallet"
)

func TestEntry_Signed(t *testing.T) {
	credit := &Entry{Kind: EntryCredit, Amount: 250}
	debit := &Entry{Kind: EntryDebit, Amount: 250}

	assert.Equal(t, int64(250), credit.Signed())
	assert.Equal(t, int64(-250), debit.Signed())

	// A transfer pair nets to zero
	assert.Zero(t, credit.Signed()+debit.Signed())
}

func TestErrors_Is(t *testing.T) {
	t.Run("InvalidAmount", func(t *testing.T) {
		assert.ErrorIs(t, ErrInvalidAmount{Amount: -1}, ErrInvalidAmount{})
	})

	t.Run("DuplicateOperationMatchesByReferenceKey", func(t *testing.T) {
		err := ErrDuplicateOperation{ReferenceKey: "topup-001", TransactionID: uuid.New()}
		assert.ErrorIs(t, err, ErrDuplicateOperation{})
		assert.ErrorIs(t, err, ErrDuplicateOperation{ReferenceKey: "topup-001"})
		assert.NotErrorIs(t, err, ErrDuplicateOperation{ReferenceKey: "other"})
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		err := ErrInsufficientFunds{Required: 250, Available: 100, AssetCode: "GOLD"}
		assert.ErrorIs(t, err, ErrInsufficientFunds{})
		assert.Contains(t, err.Error(), "required 250")
		assert.Contains(t, err.Error(), "available 100")
	})

	t.Run("StorageUnwraps", func(t *testing.T) {
		err := ErrStorage{Op: "transfer", Err: assert.AnError}
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrSerializationConflict{}))
	assert.True(t, IsRetryable(wallet.ErrWalletLocked{WalletIDs: []int64{3}}))
	assert.False(t, IsRetryable(ErrInsufficientFunds{}))
	assert.False(t, IsRetryable(ErrDuplicateOperation{}))
	assert.False(t, IsRetryable(ErrStorage{Op: "transfer", Err: assert.AnError}))
	assert.False(t, IsRetryable(nil))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(wallet.ErrWalletNotFound{Identifier: "ghost"}))
	assert.True(t, IsNotFound(asset.ErrAssetTypeNotFound{Code: "SILVER"}))
	assert.False(t, IsNotFound(ErrInsufficientFunds{}))
	assert.False(t, IsNotFound(nil))
}
