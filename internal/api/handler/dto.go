package handler

import (
	"errors"
	"time"

	"github.com/virtual-currency-ledger/internal/domain/ledger"
	"github.com/virtual-currency-ledger/internal/domain/snapshot"
	"github.com/virtual-currency-ledger/internal/engine"
)

var errAmbiguousAccountRef = errors.New("account reference must set exactly one of user_id or system")

// AccountRefRequest identifies one side of an operation: a user wallet by
// external user id or a system wallet by name. Exactly one must be set.
type AccountRefRequest struct {
	UserID string `json:"user_id,omitempty"`
	System string `json:"system,omitempty"`
}

func (r AccountRefRequest) toRef() (engine.AccountRef, error) {
	if (r.UserID == "") == (r.System == "") {
		return engine.AccountRef{}, errAmbiguousAccountRef
	}
	return engine.AccountRef{
		ExternalUserID: r.UserID,
		SystemName:     r.System,
	}, nil
}

// TransferRequest represents a request to move an amount between two wallets
type TransferRequest struct {
	Source       AccountRefRequest `json:"source" binding:"required"`
	Target       AccountRefRequest `json:"target" binding:"required"`
	Asset        string            `json:"asset" binding:"required"`
	Amount       int64             `json:"amount" binding:"required"`
	Operation    string            `json:"operation" binding:"required,oneof=TOPUP SPEND BONUS INITIAL ADJUSTMENT"`
	ReferenceKey string            `json:"reference_key" binding:"required"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// SingleSidedRequest represents a request to mint into or burn from one wallet
type SingleSidedRequest struct {
	Account      AccountRefRequest `json:"account" binding:"required"`
	Asset        string            `json:"asset" binding:"required"`
	Amount       int64             `json:"amount" binding:"required"`
	Operation    string            `json:"operation" binding:"required,oneof=TOPUP SPEND BONUS INITIAL ADJUSTMENT"`
	ReferenceKey string            `json:"reference_key" binding:"required"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// OperationResponse represents a committed (or previously committed)
// ledger operation in API responses
type OperationResponse struct {
	TransactionID  string `json:"transaction_id"`
	Balance        *int64 `json:"balance,omitempty"`
	AlreadyApplied bool   `json:"already_applied,omitempty"`
}

// BalanceResponse represents one cached (wallet, asset) balance
type BalanceResponse struct {
	Asset       string `json:"asset"`
	Balance     int64  `json:"balance"`
	LastEntryAt string `json:"last_entry_at,omitempty"`
	RefreshedAt string `json:"refreshed_at,omitempty"`
}

// BalanceListResponse represents a user's balances
type BalanceListResponse struct {
	UserID   string            `json:"user_id"`
	Balances []BalanceResponse `json:"balances"`
}

// HistoryEntryResponse represents one entry in a history page
type HistoryEntryResponse struct {
	EntryID        int64             `json:"entry_id"`
	TransactionID  string            `json:"transaction_id"`
	Kind           string            `json:"kind"`
	Amount         int64             `json:"amount"`
	Operation      string            `json:"operation"`
	ReferenceKey   string            `json:"reference_key"`
	RunningBalance int64             `json:"running_balance"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      string            `json:"created_at"`
}

// HistoryResponse represents a page of entry history
type HistoryResponse struct {
	UserID  string                 `json:"user_id"`
	Asset   string                 `json:"asset"`
	Entries []HistoryEntryResponse `json:"entries"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
	HasMore bool                   `json:"has_more"`
}

// EntryResponse represents one ledger entry in transaction detail responses
type EntryResponse struct {
	EntryID       int64             `json:"entry_id"`
	TransactionID string            `json:"transaction_id"`
	WalletID      int64             `json:"wallet_id"`
	AssetTypeID   int64             `json:"asset_type_id"`
	Kind          string            `json:"kind"`
	Amount        int64             `json:"amount"`
	Operation     string            `json:"operation"`
	ReferenceKey  string            `json:"reference_key"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     string            `json:"created_at"`
}

// TransactionDetailsResponse summarizes one committed transaction and
// carries every entry written under its reference key. The summary fields
// come from the earliest entry: both sides of a transfer share the
// transaction id, operation, and amount.
type TransactionDetailsResponse struct {
	ReferenceKey  string          `json:"reference_key"`
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	Operation     string          `json:"operation"`
	Amount        int64           `json:"amount"`
	Entries       []EntryResponse `json:"entries"`
}

// HistoryParams represents query parameters for the history endpoint
type HistoryParams struct {
	Asset  string `form:"asset" binding:"required"`
	Limit  int    `form:"limit,default=20" binding:"min=0,max=100"`
	Offset int    `form:"offset,default=0" binding:"min=0"`
}

func mapSnapshotToResponse(snap *snapshot.BalanceSnapshot) BalanceResponse {
	resp := BalanceResponse{
		Asset:   snap.AssetCode,
		Balance: snap.Balance,
	}
	if !snap.LastEntryAt.IsZero() {
		resp.LastEntryAt = snap.LastEntryAt.Format(time.RFC3339)
	}
	if !snap.RefreshedAt.IsZero() {
		resp.RefreshedAt = snap.RefreshedAt.Format(time.RFC3339)
	}
	return resp
}

func mapHistoryEntryToResponse(entry *ledger.HistoryEntry) HistoryEntryResponse {
	return HistoryEntryResponse{
		EntryID:        entry.ID,
		TransactionID:  entry.TransactionID.String(),
		Kind:           string(entry.Kind),
		Amount:         entry.Amount,
		Operation:      string(entry.Operation),
		ReferenceKey:   entry.ReferenceKey,
		RunningBalance: entry.RunningBalance,
		Metadata:       entry.Metadata,
		CreatedAt:      entry.CreatedAt.Format(time.RFC3339),
	}
}

func mapEntryToResponse(entry *ledger.Entry) EntryResponse {
	return EntryResponse{
		EntryID:       entry.ID,
		TransactionID: entry.TransactionID.String(),
		WalletID:      entry.WalletID,
		AssetTypeID:   entry.AssetTypeID,
		Kind:          string(entry.Kind),
		Amount:        entry.Amount,
		Operation:     string(entry.Operation),
		ReferenceKey:  entry.ReferenceKey,
		Metadata:      entry.Metadata,
		CreatedAt:     entry.CreatedAt.Format(time.RFC3339),
	}
}
