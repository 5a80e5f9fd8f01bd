package components

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/virtual-currency-ledger/internal/domain/ledger"
)

type MockEntryRepo struct {
	mock.Mock
}

func (m *MockEntryRepo) Insert(ctx context.Context, entry *ledger.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockEntryRepo) FindFirstByReferenceKey(ctx context.Context, referenceKey string) (*ledger.Entry, error) {
	args := m.Called(ctx, referenceKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockEntryRepo) ListByReferenceKey(ctx context.Context, referenceKey string) ([]*ledger.Entry, error) {
	args := m.Called(ctx, referenceKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockEntryRepo) SumBalance(ctx context.Context, walletID, assetTypeID int64) (int64, error) {
	args := m.Called(ctx, walletID, assetTypeID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEntryRepo) ListHistory(ctx context.Context, walletID, assetTypeID int64, limit, offset int) ([]*ledger.HistoryEntry, error) {
	args := m.Called(ctx, walletID, assetTypeID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.HistoryEntry), args.Error(1)
}

func (m *MockEntryRepo) AggregateBalance(ctx context.Context, walletID, assetTypeID int64) (*ledger.BalanceAggregate, error) {
	args := m.Called(ctx, walletID, assetTypeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.BalanceAggregate), args.Error(1)
}

func (m *MockEntryRepo) AggregateBalances(ctx context.Context) ([]*ledger.BalanceAggregate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.BalanceAggregate), args.Error(1)
}

func (m *MockEntryRepo) WithTx(tx pgx.Tx) ledger.Repository {
	m.Called(tx)
	return m
}

func TestIdempotencyGuard_Check(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("fresh key passes", func(t *testing.T) {
		entries := &MockEntryRepo{}
		entries.On("WithTx", mock.Anything).Return(entries)
		entries.On("FindFirstByReferenceKey", mock.Anything, "order-1").Return(nil, nil)

		guard := NewIdempotencyGuard(logger, entries)
		err := guard.Check(ctx, nil, "order-1")
		assert.NoError(t, err)
		entries.AssertExpectations(t)
	})

	t.Run("used key rejects with the original transaction id", func(t *testing.T) {
		originalID := uuid.New()
		entries := &MockEntryRepo{}
		entries.On("WithTx", mock.Anything).Return(entries)
		entries.On("FindFirstByReferenceKey", mock.Anything, "order-1").
			Return(&ledger.Entry{ID: 11, TransactionID: originalID, ReferenceKey: "order-1"}, nil)

		guard := NewIdempotencyGuard(logger, entries)
		err := guard.Check(ctx, nil, "order-1")
		require.Error(t, err)

		var duplicate ledger.ErrDuplicateOperation
		require.ErrorAs(t, err, &duplicate)
		assert.Equal(t, "order-1", duplicate.ReferenceKey)
		assert.Equal(t, originalID, duplicate.TransactionID)
	})

	t.Run("lookup failure propagates", func(t *testing.T) {
		dbErr := errors.New("lookup failed")
		entries := &MockEntryRepo{}
		entries.On("WithTx", mock.Anything).Return(entries)
		entries.On("FindFirstByReferenceKey", mock.Anything, "order-1").Return(nil, dbErr)

		guard := NewIdempotencyGuard(logger, entries)
		err := guard.Check(ctx, nil, "order-1")
		assert.ErrorIs(t, err, dbErr)
	})
}
