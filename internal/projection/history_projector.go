package projection

import (
	"context"
	"log/slog"

	"github.com/virtual-currency-ledger/internal/domain/ledger"
)

// MaxHistoryLimit caps a single history page
const MaxHistoryLimit = 100

// DefaultHistoryLimit is used when the caller does not specify a limit
const DefaultHistoryLimit = 20

// HistoryProjector serves paginated entry history with per-entry running
// balances. The running balance is computed in the store with a window
// function, so a page deep in the history still costs one ordered pass.
type HistoryProjector struct {
	logger  *slog.Logger
	entries ledger.Repository
}

// NewHistoryProjector creates a history projector
func NewHistoryProjector(logger *slog.Logger, entries ledger.Repository) *HistoryProjector {
	return &HistoryProjector{
		logger:  logger,
		entries: entries,
	}
}

// ListHistory returns up to limit entries for the pair, newest first, and
// whether more pages exist. The repository fetches one row beyond the
// limit; seeing it proves another page exists without a count query.
func (p *HistoryProjector) ListHistory(ctx context.Context, walletID, assetTypeID int64, limit, offset int) ([]*ledger.HistoryEntry, bool, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := p.entries.ListHistory(ctx, walletID, assetTypeID, limit, offset)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	return rows, hasMore, nil
}
