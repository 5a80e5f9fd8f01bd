package projection

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/virtual-currency-ledger/internal/domain/ledger"
)

func historyRows(n int) []*ledger.HistoryEntry {
	rows := make([]*ledger.HistoryEntry, n)
	for i := range rows {
		rows[i] = &ledger.HistoryEntry{Entry: ledger.Entry{ID: int64(n - i)}}
	}
	return rows
}

func TestHistoryProjector_ListHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("full page plus sentinel row means more pages", func(t *testing.T) {
		entries := &MockEntryRepo{}
		// Repository is asked for limit+1 rows
		entries.On("ListHistory", mock.Anything, int64(7), int64(1), 2, 0).Return(historyRows(3), nil)

		projector := NewHistoryProjector(slog.Default(), entries)
		rows, hasMore, err := projector.ListHistory(ctx, 7, 1, 2, 0)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
		assert.True(t, hasMore)
	})

	t.Run("short page means last page", func(t *testing.T) {
		entries := &MockEntryRepo{}
		entries.On("ListHistory", mock.Anything, int64(7), int64(1), 5, 0).Return(historyRows(3), nil)

		projector := NewHistoryProjector(slog.Default(), entries)
		rows, hasMore, err := projector.ListHistory(ctx, 7, 1, 5, 0)
		require.NoError(t, err)
		assert.Len(t, rows, 3)
		assert.False(t, hasMore)
	})

	t.Run("exactly full page without sentinel means last page", func(t *testing.T) {
		entries := &MockEntryRepo{}
		entries.On("ListHistory", mock.Anything, int64(7), int64(1), 3, 0).Return(historyRows(3), nil)

		projector := NewHistoryProjector(slog.Default(), entries)
		rows, hasMore, err := projector.ListHistory(ctx, 7, 1, 3, 0)
		require.NoError(t, err)
		assert.Len(t, rows, 3)
		assert.False(t, hasMore)
	})

	t.Run("zero limit falls back to the default", func(t *testing.T) {
		entries := &MockEntryRepo{}
		entries.On("ListHistory", mock.Anything, int64(7), int64(1), DefaultHistoryLimit, 0).Return(historyRows(1), nil)

		projector := NewHistoryProjector(slog.Default(), entries)
		rows, hasMore, err := projector.ListHistory(ctx, 7, 1, 0, 0)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		assert.False(t, hasMore)
		entries.AssertExpectations(t)
	})

	t.Run("oversized limit is clamped", func(t *testing.T) {
		entries := &MockEntryRepo{}
		entries.On("ListHistory", mock.Anything, int64(7), int64(1), MaxHistoryLimit, 0).Return(historyRows(10), nil)

		projector := NewHistoryProjector(slog.Default(), entries)
		_, _, err := projector.ListHistory(ctx, 7, 1, 5000, 0)
		require.NoError(t, err)
		entries.AssertExpectations(t)
	})

	t.Run("negative offset is clamped to zero", func(t *testing.T) {
		entries := &MockEntryRepo{}
		entries.On("ListHistory", mock.Anything, int64(7), int64(1), 10, 0).Return(historyRows(0), nil)

		projector := NewHistoryProjector(slog.Default(), entries)
		rows, hasMore, err := projector.ListHistory(ctx, 7, 1, 10, -4)
		require.NoError(t, err)
		assert.Empty(t, rows)
		assert.False(t, hasMore)
		entries.AssertExpectations(t)
	})

	t.Run("repository failure propagates", func(t *testing.T) {
		dbErr := errors.New("history failed")
		entries := &MockEntryRepo{}
		entries.On("ListHistory", mock.Anything, int64(7), int64(1), 10, 0).Return(nil, dbErr)

		projector := NewHistoryProjector(slog.Default(), entries)
		rows, hasMore, err := projector.ListHistory(ctx, 7, 1, 10, 0)
		assert.ErrorIs(t, err, dbErr)
		assert.Nil(t, rows)
		assert.False(t, hasMore)
	})
}
