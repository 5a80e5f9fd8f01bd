// Package ledger holds the append-only double-entry model: entries, the
// operation vocabulary, and the typed error taxonomy shared by the engine
// and its callers.
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// EntryKind is the side of a posting. Amounts are always positive;
// the kind conveys the sign.
type EntryKind string

const (
	EntryDebit  EntryKind = "DEBIT"
	EntryCredit EntryKind = "CREDIT"
)

// OperationKind labels the business operation that produced an entry
type OperationKind string

const (
	OperationTopUp      OperationKind = "TOPUP"
	OperationSpend      OperationKind = "SPEND"
	OperationBonus      OperationKind = "BONUS"
	OperationInitial    OperationKind = "INITIAL"
	OperationAdjustment OperationKind = "ADJUSTMENT"
)

// Entry is one immutable posting against a (wallet, asset) pair. Entries
// are only ever appended; the entry id is monotonic and serves as the
// tie-break when ordering entries that share a creation timestamp.
type Entry struct {
	ID            int64             `json:"id"`
	TransactionID uuid.UUID         `json:"transaction_id"`
	WalletID      int64             `json:"wallet_id"`
	AssetTypeID   int64             `json:"asset_type_id"`
	Kind          EntryKind         `json:"kind"`
	Amount        int64             `json:"amount"` // Smallest indivisible unit, always > 0
	Operation     OperationKind     `json:"operation"`
	ReferenceKey  string            `json:"reference_key"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Signed returns the entry's contribution to the wallet balance:
// positive for credits, negative for debits.
func (e *Entry) Signed() int64 {
	if e.Kind == EntryDebit {
		return -e.Amount
	}
	return e.Amount
}

// HistoryEntry is an entry annotated with the cumulative balance of its
// (wallet, asset) pair up to and including the entry itself.
type HistoryEntry struct {
	Entry
	RunningBalance int64 `json:"running_balance"`
}

// BalanceAggregate is the signed sum of a (wallet, asset) pair's entry
// history together with the identities needed to serve cached reads.
type BalanceAggregate struct {
	WalletID       int64
	WalletKind     string
	ExternalUserID *string
	AssetTypeID    int64
	AssetCode      string
	Balance        int64
	LastEntryAt    time.Time
}
