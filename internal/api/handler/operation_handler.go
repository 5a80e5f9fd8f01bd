package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/virtual-currency-ledger/internal/api/service"
	"github.com/virtual-currency-ledger/internal/domain/ledger"
	"github.com/virtual-currency-ledger/internal/engine"
)

// OperationHandler handles HTTP requests for ledger write operations
type OperationHandler struct {
	operations service.OperationService
	logger     *slog.Logger
}

// NewOperationHandler creates a new operation handler
func NewOperationHandler(logger *slog.Logger, operations service.OperationService) *OperationHandler {
	return &OperationHandler{
		operations: operations,
		logger:     logger,
	}
}

// Transfer atomically moves an amount from a source wallet to a target wallet
func (h *OperationHandler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid transfer request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	source, err := req.Source.toRef()
	if err != nil {
		RespondBadRequest(c, "source: "+err.Error())
		return
	}
	target, err := req.Target.toRef()
	if err != nil {
		RespondBadRequest(c, "target: "+err.Error())
		return
	}

	result, err := h.operations.Transfer(c.Request.Context(), engine.TransferCommand{
		Source:       source,
		Target:       target,
		AssetCode:    req.Asset,
		Amount:       req.Amount,
		Operation:    ledger.OperationKind(req.Operation),
		ReferenceKey: req.ReferenceKey,
		Metadata:     req.Metadata,
	})
	if err != nil {
		h.respondOperationError(c, err)
		return
	}

	RespondCreated(c, operationResponse(result))
}

// Credit mints units into a wallet with a single credit entry
func (h *OperationHandler) Credit(c *gin.Context) {
	h.singleSided(c, h.operations.CreditOnly)
}

// Debit burns units from a wallet with a single debit entry
func (h *OperationHandler) Debit(c *gin.Context) {
	h.singleSided(c, h.operations.DebitOnly)
}

func (h *OperationHandler) singleSided(c *gin.Context, op func(ctx context.Context, cmd engine.SingleSidedCommand) (*engine.OperationResult, error)) {
	var req SingleSidedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid operation request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	account, err := req.Account.toRef()
	if err != nil {
		RespondBadRequest(c, "account: "+err.Error())
		return
	}

	result, err := op(c.Request.Context(), engine.SingleSidedCommand{
		Account:      account,
		AssetCode:    req.Asset,
		Amount:       req.Amount,
		Operation:    ledger.OperationKind(req.Operation),
		ReferenceKey: req.ReferenceKey,
		Metadata:     req.Metadata,
	})
	if err != nil {
		h.respondOperationError(c, err)
		return
	}

	RespondCreated(c, operationResponse(result))
}

// respondOperationError maps the ledger error taxonomy onto HTTP. Replays
// are not errors to the caller: they get 200 with the original
// transaction id. Raw storage errors never leak.
func (h *OperationHandler) respondOperationError(c *gin.Context, err error) {
	var (
		duplicate    ledger.ErrDuplicateOperation
		insufficient ledger.ErrInsufficientFunds
		invalid      ledger.ErrInvalidAmount
	)
	switch {
	case errors.As(err, &duplicate):
		RespondOK(c, OperationResponse{
			TransactionID:  duplicate.TransactionID.String(),
			AlreadyApplied: true,
		})
	case ledger.IsRetryable(err):
		RespondRetryLater(c, "OPERATION_CONTENDED", "The operation hit concurrent contention, retry with backoff")
	case errors.As(err, &insufficient):
		RespondUnprocessable(c, "INSUFFICIENT_FUNDS", insufficient.Error())
	case ledger.IsNotFound(err):
		RespondNotFound(c, err.Error())
	case errors.As(err, &invalid):
		RespondBadRequest(c, invalid.Error())
	default:
		h.logger.Error("Ledger operation failed", "error", err)
		RespondInternalError(c)
	}
}

func operationResponse(result *engine.OperationResult) OperationResponse {
	balance := result.Balance
	return OperationResponse{
		TransactionID: result.TransactionID.String(),
		Balance:       &balance,
	}
}
