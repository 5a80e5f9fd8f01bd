package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/virtual-currency-ledger/internal/domain/asset"
	"github.com/virtual-currency-ledger/internal/domain/ledger"
	"github.com/virtual-currency-ledger/internal/domain/snapshot"
	"github.com/virtual-currency-ledger/internal/domain/wallet"
	"github.com/virtual-currency-ledger/internal/projection"
)

type MockWalletRepo struct {
	mock.Mock
}

func (m *MockWalletRepo) ResolveUser(ctx context.Context, externalUserID string) (*wallet.Wallet, error) {
	args := m.Called(ctx, externalUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepo) ResolveSystem(ctx context.Context, name string) (*wallet.Wallet, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepo) LockWallets(ctx context.Context, ids []int64) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *MockWalletRepo) WithTx(tx pgx.Tx) wallet.Repository {
	m.Called(tx)
	return m
}

type MockAssetRepo struct {
	mock.Mock
}

func (m *MockAssetRepo) ResolveByCode(ctx context.Context, code string) (*asset.AssetType, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asset.AssetType), args.Error(1)
}

func (m *MockAssetRepo) WithTx(tx pgx.Tx) asset.Repository {
	m.Called(tx)
	return m
}

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

type queryFixture struct {
	wallets   *MockWalletRepo
	assets    *MockAssetRepo
	entries   *MockEntryRepo
	snapshots *MockSnapshotRepo
	service   QueryService
}

func newQueryFixture() *queryFixture {
	f := &queryFixture{
		wallets:   &MockWalletRepo{},
		assets:    &MockAssetRepo{},
		entries:   &MockEntryRepo{},
		snapshots: &MockSnapshotRepo{},
	}
	logger := slog.Default()
	balances := projection.NewBalanceProjector(logger, f.entries, f.snapshots)
	history := projection.NewHistoryProjector(logger, f.entries)
	f.service = NewQueryService(logger, f.wallets, f.assets, f.entries, balances, history)
	return f
}

func TestQueryService_GetUserBalances(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves the user then reads the cache", func(t *testing.T) {
		f := newQueryFixture()
		f.wallets.On("ResolveUser", mock.Anything, "user-42").
			Return(&wallet.Wallet{ID: 7, Kind: wallet.KindUser, ExternalUserID: strPtr("user-42"), Active: true}, nil)
		cached := []*snapshot.BalanceSnapshot{{WalletID: 7, AssetCode: "GOLD", Balance: 450}}
		f.snapshots.On("ListByExternalUser", mock.Anything, "user-42", "").Return(cached, nil)

		got, err := f.service.GetUserBalances(ctx, "user-42", "")
		require.NoError(t, err)
		assert.Equal(t, cached, got)
	})

	t.Run("unknown user is a not-found, not an empty list", func(t *testing.T) {
		f := newQueryFixture()
		f.wallets.On("ResolveUser", mock.Anything, "ghost").
			Return(nil, wallet.ErrWalletNotFound{Identifier: "ghost"})

		got, err := f.service.GetUserBalances(ctx, "ghost", "")
		assert.Nil(t, got)
		assert.ErrorIs(t, err, wallet.ErrWalletNotFound{})
		f.snapshots.AssertNotCalled(t, "ListByExternalUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown asset filter is a not-found", func(t *testing.T) {
		f := newQueryFixture()
		f.wallets.On("ResolveUser", mock.Anything, "user-42").
			Return(&wallet.Wallet{ID: 7, Kind: wallet.KindUser, ExternalUserID: strPtr("user-42")}, nil)
		f.assets.On("ResolveByCode", mock.Anything, "SILVER").
			Return(nil, asset.ErrAssetTypeNotFound{Code: "SILVER"})

		got, err := f.service.GetUserBalances(ctx, "user-42", "SILVER")
		assert.Nil(t, got)
		assert.ErrorIs(t, err, asset.ErrAssetTypeNotFound{})
	})
}

func TestQueryService_GetUserBalanceRealtime(t *testing.T) {
	f := newQueryFixture()
	f.wallets.On("ResolveUser", mock.Anything, "user-42").
		Return(&wallet.Wallet{ID: 7, Kind: wallet.KindUser, ExternalUserID: strPtr("user-42")}, nil)
	f.assets.On("ResolveByCode", mock.Anything, "GOLD").
		Return(&asset.AssetType{ID: 1, Code: "GOLD"}, nil)
	f.entries.On("SumBalance", mock.Anything, int64(7), int64(1)).Return(int64(475), nil)

	balance, err := f.service.GetUserBalanceRealtime(context.Background(), "user-42", "GOLD")
	require.NoError(t, err)
	assert.Equal(t, int64(475), balance)
}

func TestQueryService_GetUserHistory(t *testing.T) {
	t.Run("resolves both identities then pages", func(t *testing.T) {
		f := newQueryFixture()
		f.wallets.On("ResolveUser", mock.Anything, "user-42").
			Return(&wallet.Wallet{ID: 7, Kind: wallet.KindUser, ExternalUserID: strPtr("user-42")}, nil)
		f.assets.On("ResolveByCode", mock.Anything, "GOLD").
			Return(&asset.AssetType{ID: 1, Code: "GOLD"}, nil)
		rows := []*ledger.HistoryEntry{
			{Entry: ledger.Entry{ID: 12}, RunningBalance: 450},
			{Entry: ledger.Entry{ID: 11}, RunningBalance: 200},
			{Entry: ledger.Entry{ID: 10}, RunningBalance: 450},
		}
		f.entries.On("ListHistory", mock.Anything, int64(7), int64(1), 2, 0).Return(rows, nil)

		entries, hasMore, err := f.service.GetUserHistory(context.Background(), "user-42", "GOLD", 2, 0)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
		assert.True(t, hasMore)
	})

	t.Run("unknown asset is a not-found", func(t *testing.T) {
		f := newQueryFixture()
		f.wallets.On("ResolveUser", mock.Anything, "user-42").
			Return(&wallet.Wallet{ID: 7, Kind: wallet.KindUser, ExternalUserID: strPtr("user-42")}, nil)
		f.assets.On("ResolveByCode", mock.Anything, "SILVER").
			Return(nil, asset.ErrAssetTypeNotFound{Code: "SILVER"})

		entries, hasMore, err := f.service.GetUserHistory(context.Background(), "user-42", "SILVER", 10, 0)
		assert.Nil(t, entries)
		assert.False(t, hasMore)
		assert.ErrorIs(t, err, asset.ErrAssetTypeNotFound{})
	})
}

func TestQueryService_GetTransactionDetails(t *testing.T) {
	f := newQueryFixture()
	entries := []*ledger.Entry{{ID: 11, ReferenceKey: "topup-001"}, {ID: 12, ReferenceKey: "topup-001"}}
	f.entries.On("ListByReferenceKey", mock.Anything, "topup-001").Return(entries, nil)

	got, err := f.service.GetTransactionDetails(context.Background(), "topup-001")
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}
