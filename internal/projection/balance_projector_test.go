package projection

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/virtual-currency-ledger/internal/domain/ledger"
	"github.com/virtual-currency-ledger/internal/domain/snapshot"
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

type MockSnapshotRepo struct {
	mock.Mock
}

func (m *MockSnapshotRepo) Upsert(ctx context.Context, snap *snapshot.BalanceSnapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *MockSnapshotRepo) ListByExternalUser(ctx context.Context, externalUserID, assetCode string) ([]*snapshot.BalanceSnapshot, error) {
	args := m.Called(ctx, externalUserID, assetCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*snapshot.BalanceSnapshot), args.Error(1)
}

func strPtr(s string) *string { return &s }

func TestBalanceProjector_ComputeRealtime(t *testing.T) {
	entries := &MockEntryRepo{}
	entries.On("SumBalance", mock.Anything, int64(7), int64(1)).Return(int64(450), nil)

	projector := NewBalanceProjector(slog.Default(), entries, &MockSnapshotRepo{})
	balance, err := projector.ComputeRealtime(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(450), balance)
}

func TestBalanceProjector_ReadCached(t *testing.T) {
	snapshots := &MockSnapshotRepo{}
	cached := []*snapshot.BalanceSnapshot{
		{WalletID: 7, ExternalUserID: strPtr("user-42"), AssetCode: "GOLD", Balance: 450},
		{WalletID: 7, ExternalUserID: strPtr("user-42"), AssetCode: "DIAMONDS", Balance: 3},
	}
	snapshots.On("ListByExternalUser", mock.Anything, "user-42", "").Return(cached, nil)

	projector := NewBalanceProjector(slog.Default(), &MockEntryRepo{}, snapshots)
	got, err := projector.ReadCached(context.Background(), "user-42", "")
	require.NoError(t, err)
	assert.Equal(t, cached, got)
}

func TestBalanceProjector_RefreshPair(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts the recomputed snapshot", func(t *testing.T) {
		entries := &MockEntryRepo{}
		snapshots := &MockSnapshotRepo{}
		lastEntry := time.Now().UTC()
		entries.On("AggregateBalance", mock.Anything, int64(7), int64(1)).Return(&ledger.BalanceAggregate{
			WalletID:       7,
			WalletKind:     "USER",
			ExternalUserID: strPtr("user-42"),
			AssetTypeID:    1,
			AssetCode:      "GOLD",
			Balance:        450,
			LastEntryAt:    lastEntry,
		}, nil)

		var upserted *snapshot.BalanceSnapshot
		snapshots.On("Upsert", mock.Anything, mock.AnythingOfType("*snapshot.BalanceSnapshot")).
			Run(func(args mock.Arguments) { upserted = args.Get(1).(*snapshot.BalanceSnapshot) }).
			Return(nil)

		projector := NewBalanceProjector(slog.Default(), entries, snapshots)
		err := projector.RefreshPair(ctx, 7, 1)
		require.NoError(t, err)

		require.NotNil(t, upserted)
		assert.Equal(t, int64(450), upserted.Balance)
		assert.Equal(t, "GOLD", upserted.AssetCode)
		assert.Equal(t, lastEntry, upserted.LastEntryAt)
	})

	t.Run("pair without entries is left untouched", func(t *testing.T) {
		entries := &MockEntryRepo{}
		snapshots := &MockSnapshotRepo{}
		entries.On("AggregateBalance", mock.Anything, int64(7), int64(9)).Return(nil, nil)

		projector := NewBalanceProjector(slog.Default(), entries, snapshots)
		err := projector.RefreshPair(ctx, 7, 9)
		assert.NoError(t, err)
		snapshots.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("aggregate failure propagates", func(t *testing.T) {
		dbErr := errors.New("aggregate failed")
		entries := &MockEntryRepo{}
		entries.On("AggregateBalance", mock.Anything, int64(7), int64(1)).Return(nil, dbErr)

		projector := NewBalanceProjector(slog.Default(), entries, &MockSnapshotRepo{})
		err := projector.RefreshPair(ctx, 7, 1)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestBalanceProjector_RefreshAll(t *testing.T) {
	ctx := context.Background()
	aggregates := []*ledger.BalanceAggregate{
		{WalletID: 1, AssetTypeID: 1, AssetCode: "GOLD", Balance: -450},
		{WalletID: 7, AssetTypeID: 1, AssetCode: "GOLD", Balance: 450},
		{WalletID: 7, AssetTypeID: 2, AssetCode: "DIAMONDS", Balance: 3},
	}

	t.Run("refreshes every pair", func(t *testing.T) {
		entries := &MockEntryRepo{}
		snapshots := &MockSnapshotRepo{}
		entries.On("AggregateBalances", mock.Anything).Return(aggregates, nil)
		snapshots.On("Upsert", mock.Anything, mock.Anything).Return(nil).Times(3)

		projector := NewBalanceProjector(slog.Default(), entries, snapshots)
		refreshed, err := projector.RefreshAll(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 3, refreshed)
		snapshots.AssertExpectations(t)
	})

	t.Run("partial failure refreshes the rest and reports the first error", func(t *testing.T) {
		upsertErr := errors.New("upsert failed")
		entries := &MockEntryRepo{}
		snapshots := &MockSnapshotRepo{}
		entries.On("AggregateBalances", mock.Anything).Return(aggregates, nil)
		snapshots.On("Upsert", mock.Anything, mock.MatchedBy(func(s *snapshot.BalanceSnapshot) bool {
			return s.WalletID == 1
		})).Return(upsertErr)
		snapshots.On("Upsert", mock.Anything, mock.MatchedBy(func(s *snapshot.BalanceSnapshot) bool {
			return s.WalletID == 7
		})).Return(nil).Twice()

		projector := NewBalanceProjector(slog.Default(), entries, snapshots)
		refreshed, err := projector.RefreshAll(ctx)
		assert.ErrorIs(t, err, upsertErr)
		assert.Equal(t, 2, refreshed)
	})

	t.Run("aggregate failure aborts", func(t *testing.T) {
		dbErr := errors.New("aggregates failed")
		entries := &MockEntryRepo{}
		entries.On("AggregateBalances", mock.Anything).Return(nil, dbErr)

		projector := NewBalanceProjector(slog.Default(), entries, &MockSnapshotRepo{})
		refreshed, err := projector.RefreshAll(ctx)
		assert.ErrorIs(t, err, dbErr)
		assert.Zero(t, refreshed)
	})
}
