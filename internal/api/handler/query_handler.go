package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/virtual-currency-ledger/internal/api/service"
	"github.com/virtual-currency-ledger/internal/domain/ledger"
)

// transactionStatusCommitted is the only status a stored transaction can
// have: the ledger is append-only and entries are written atomically with
// their commit.
const transactionStatusCommitted = "COMMITTED"

// QueryHandler handles HTTP requests for balance, history, and
// transaction detail reads
type QueryHandler struct {
	queries service.QueryService
	logger  *slog.Logger
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(logger *slog.Logger, queries service.QueryService) *QueryHandler {
	return &QueryHandler{
		queries: queries,
		logger:  logger,
	}
}

// GetBalances returns the user's cached balances, optionally filtered by
// the asset query parameter. With mode=realtime and an asset, the balance
// is computed from entry history instead of the snapshot cache.
func (h *QueryHandler) GetBalances(c *gin.Context) {
	userID := c.Param("id")
	assetCode := c.Query("asset")

	if c.Query("mode") == "realtime" {
		if assetCode == "" {
			RespondBadRequest(c, "mode=realtime requires the asset parameter")
			return
		}
		balance, err := h.queries.GetUserBalanceRealtime(c.Request.Context(), userID, assetCode)
		if err != nil {
			h.respondQueryError(c, err)
			return
		}
		RespondOK(c, BalanceListResponse{
			UserID:   userID,
			Balances: []BalanceResponse{{Asset: assetCode, Balance: balance}},
		})
		return
	}

	snapshots, err := h.queries.GetUserBalances(c.Request.Context(), userID, assetCode)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}

	balances := make([]BalanceResponse, 0, len(snapshots))
	for _, snap := range snapshots {
		balances = append(balances, mapSnapshotToResponse(snap))
	}

	RespondOK(c, BalanceListResponse{
		UserID:   userID,
		Balances: balances,
	})
}

// GetHistory returns a page of the user's entry history for one asset,
// newest first, each entry annotated with its running balance
func (h *QueryHandler) GetHistory(c *gin.Context) {
	userID := c.Param("id")

	var params HistoryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.logger.Error("Invalid history parameters", "error", err)
		RespondBadRequest(c, "Invalid history parameters: "+err.Error())
		return
	}

	entries, hasMore, err := h.queries.GetUserHistory(c.Request.Context(), userID, params.Asset, params.Limit, params.Offset)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}

	items := make([]HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, mapHistoryEntryToResponse(entry))
	}

	RespondOK(c, HistoryResponse{
		UserID:  userID,
		Asset:   params.Asset,
		Entries: items,
		Limit:   params.Limit,
		Offset:  params.Offset,
		HasMore: hasMore,
	})
}

// GetTransaction returns every entry committed under a reference key,
// 404 if the key was never used
func (h *QueryHandler) GetTransaction(c *gin.Context) {
	referenceKey := c.Param("reference")

	entries, err := h.queries.GetTransactionDetails(c.Request.Context(), referenceKey)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	if len(entries) == 0 {
		RespondNotFound(c, "Transaction not found")
		return
	}

	items := make([]EntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, mapEntryToResponse(entry))
	}

	// Entries only exist once their transaction committed, so a found key
	// is always COMMITTED
	first := entries[0]
	RespondOK(c, TransactionDetailsResponse{
		ReferenceKey:  referenceKey,
		TransactionID: first.TransactionID.String(),
		Status:        transactionStatusCommitted,
		Operation:     string(first.Operation),
		Amount:        first.Amount,
		Entries:       items,
	})
}

func (h *QueryHandler) respondQueryError(c *gin.Context, err error) {
	if ledger.IsNotFound(err) {
		RespondNotFound(c, err.Error())
		return
	}
	h.logger.Error("Query failed", "error", err)
	RespondInternalError(c)
}
