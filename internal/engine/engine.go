// Package engine implements the ledger write path. Every operation runs
// as one serializable database transaction: idempotency check, ordered
// non-blocking wallet locks, sufficiency check against the realtime
// balance, then the entry writes. A failure at any step rolls the whole
// transaction back, so a rejected operation leaves no trace.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/virtual-currency-ledger/internal/domain/asset"
	"github.com/virtual-currency-ledger/internal/domain/ledger"
	"github.com/virtual-currency-ledger/internal/domain/shared"
	"github.com/virtual-currency-ledger/internal/domain/wallet"
	"github.com/virtual-currency-ledger/internal/platform/messaging/producers"
	"github.com/virtual-currency-ledger/internal/platform/persistence"
)

// Engine executes ledger operations against the authoritative store and
// publishes an observational event after each one finishes. Publishing is
// best-effort: a producer failure is logged and never affects the
// committed operation.
type Engine struct {
	logger  *slog.Logger
	db      TxRunner
	wallets wallet.Repository
	assets  asset.Repository
	entries ledger.Repository
	locks   LockCoordinator
	guard   IdempotencyGuard
	events  producers.MessagePublisher // May be nil when eventing is disabled
}

// NewEngine creates a ledger engine
func NewEngine(
	logger *slog.Logger,
	db TxRunner,
	wallets wallet.Repository,
	assets asset.Repository,
	entries ledger.Repository,
	locks LockCoordinator,
	guard IdempotencyGuard,
	events producers.MessagePublisher,
) *Engine {
	return &Engine{
		logger:  logger,
		db:      db,
		wallets: wallets,
		assets:  assets,
		entries: entries,
		locks:   locks,
		guard:   guard,
		events:  events,
	}
}

// Transfer atomically debits the source wallet and credits the target
// wallet. Both entries share a fresh transaction id, so the pair nets to
// zero for the asset. The source must cover the amount; system wallets
// get no special treatment here and overdraw like any other wallet would.
func (e *Engine) Transfer(ctx context.Context, cmd TransferCommand) (*OperationResult, error) {
	if cmd.Amount <= 0 {
		return nil, ledger.ErrInvalidAmount{Amount: cmd.Amount}
	}

	var (
		result OperationResult
		event  *shared.OperationEvent
	)
	err := e.db.ExecuteSerializableTx(ctx, func(tx pgx.Tx) error {
		entries := e.entries.WithTx(tx)

		if err := e.guard.Check(ctx, tx, cmd.ReferenceKey); err != nil {
			return err
		}

		source, err := e.resolveRef(ctx, tx, cmd.Source)
		if err != nil {
			return err
		}
		target, err := e.resolveRef(ctx, tx, cmd.Target)
		if err != nil {
			return err
		}
		assetType, err := e.assets.WithTx(tx).ResolveByCode(ctx, cmd.AssetCode)
		if err != nil {
			return err
		}

		if err := e.locks.AcquireExclusive(ctx, tx, []int64{source.ID, target.ID}); err != nil {
			return err
		}

		available, err := entries.SumBalance(ctx, source.ID, assetType.ID)
		if err != nil {
			return err
		}
		if available < cmd.Amount {
			short := ledger.ErrInsufficientFunds{
				Required:  cmd.Amount,
				Available: available,
				AssetCode: assetType.Code,
			}
			event = e.buildEvent(ctx, uuid.Nil, shared.StageFailed, cmd.Operation, cmd.ReferenceKey,
				cmd.Amount, assetType.Code, short.Error(),
				shared.BalancePair{WalletID: source.ID, AssetTypeID: assetType.ID},
				shared.BalancePair{WalletID: target.ID, AssetTypeID: assetType.ID})
			return short
		}

		transactionID := uuid.New()
		debit := &ledger.Entry{
			TransactionID: transactionID,
			WalletID:      source.ID,
			AssetTypeID:   assetType.ID,
			Kind:          ledger.EntryDebit,
			Amount:        cmd.Amount,
			Operation:     cmd.Operation,
			ReferenceKey:  cmd.ReferenceKey,
			Metadata:      cmd.Metadata,
		}
		credit := &ledger.Entry{
			TransactionID: transactionID,
			WalletID:      target.ID,
			AssetTypeID:   assetType.ID,
			Kind:          ledger.EntryCredit,
			Amount:        cmd.Amount,
			Operation:     cmd.Operation,
			ReferenceKey:  cmd.ReferenceKey,
			Metadata:      cmd.Metadata,
		}
		if err := entries.Insert(ctx, debit); err != nil {
			return err
		}
		if err := entries.Insert(ctx, credit); err != nil {
			return err
		}

		balance, err := entries.SumBalance(ctx, target.ID, assetType.ID)
		if err != nil {
			return err
		}

		result = OperationResult{TransactionID: transactionID, Balance: balance}
		event = e.buildEvent(ctx, transactionID, shared.StageCompleted, cmd.Operation, cmd.ReferenceKey,
			cmd.Amount, assetType.Code, "",
			shared.BalancePair{WalletID: source.ID, AssetTypeID: assetType.ID},
			shared.BalancePair{WalletID: target.ID, AssetTypeID: assetType.ID})
		return nil
	})
	if err != nil {
		e.publishIfFailed(ctx, event)
		return nil, e.classify("transfer", err)
	}

	e.publish(ctx, event)
	e.logger.Info("Transfer committed",
		"transaction_id", result.TransactionID,
		"source", cmd.Source.Identifier(),
		"target", cmd.Target.Identifier(),
		"asset", cmd.AssetCode,
		"amount", cmd.Amount)
	return &result, nil
}

// CreditOnly writes a single credit entry: new units enter circulation.
// No sufficiency check applies.
func (e *Engine) CreditOnly(ctx context.Context, cmd SingleSidedCommand) (*OperationResult, error) {
	return e.singleSided(ctx, "credit", ledger.EntryCredit, cmd)
}

// DebitOnly writes a single debit entry: units leave circulation. The
// wallet must cover the amount.
func (e *Engine) DebitOnly(ctx context.Context, cmd SingleSidedCommand) (*OperationResult, error) {
	return e.singleSided(ctx, "debit", ledger.EntryDebit, cmd)
}

func (e *Engine) singleSided(ctx context.Context, op string, kind ledger.EntryKind, cmd SingleSidedCommand) (*OperationResult, error) {
	if cmd.Amount <= 0 {
		return nil, ledger.ErrInvalidAmount{Amount: cmd.Amount}
	}

	var (
		result OperationResult
		event  *shared.OperationEvent
	)
	err := e.db.ExecuteSerializableTx(ctx, func(tx pgx.Tx) error {
		entries := e.entries.WithTx(tx)

		if err := e.guard.Check(ctx, tx, cmd.ReferenceKey); err != nil {
			return err
		}

		acct, err := e.resolveRef(ctx, tx, cmd.Account)
		if err != nil {
			return err
		}
		assetType, err := e.assets.WithTx(tx).ResolveByCode(ctx, cmd.AssetCode)
		if err != nil {
			return err
		}

		if err := e.locks.AcquireExclusive(ctx, tx, []int64{acct.ID}); err != nil {
			return err
		}

		if kind == ledger.EntryDebit {
			available, err := entries.SumBalance(ctx, acct.ID, assetType.ID)
			if err != nil {
				return err
			}
			if available < cmd.Amount {
				short := ledger.ErrInsufficientFunds{
					Required:  cmd.Amount,
					Available: available,
					AssetCode: assetType.Code,
				}
				event = e.buildEvent(ctx, uuid.Nil, shared.StageFailed, cmd.Operation, cmd.ReferenceKey,
					cmd.Amount, assetType.Code, short.Error(),
					shared.BalancePair{WalletID: acct.ID, AssetTypeID: assetType.ID})
				return short
			}
		}

		transactionID := uuid.New()
		entry := &ledger.Entry{
			TransactionID: transactionID,
			WalletID:      acct.ID,
			AssetTypeID:   assetType.ID,
			Kind:          kind,
			Amount:        cmd.Amount,
			Operation:     cmd.Operation,
			ReferenceKey:  cmd.ReferenceKey,
			Metadata:      cmd.Metadata,
		}
		if err := entries.Insert(ctx, entry); err != nil {
			return err
		}

		balance, err := entries.SumBalance(ctx, acct.ID, assetType.ID)
		if err != nil {
			return err
		}

		result = OperationResult{TransactionID: transactionID, Balance: balance}
		event = e.buildEvent(ctx, transactionID, shared.StageCompleted, cmd.Operation, cmd.ReferenceKey,
			cmd.Amount, assetType.Code, "",
			shared.BalancePair{WalletID: acct.ID, AssetTypeID: assetType.ID})
		return nil
	})
	if err != nil {
		e.publishIfFailed(ctx, event)
		return nil, e.classify(op, err)
	}

	e.publish(ctx, event)
	e.logger.Info("Single-sided operation committed",
		"transaction_id", result.TransactionID,
		"kind", kind,
		"account", cmd.Account.Identifier(),
		"asset", cmd.AssetCode,
		"amount", cmd.Amount)
	return &result, nil
}

func (e *Engine) resolveRef(ctx context.Context, tx pgx.Tx, ref AccountRef) (*wallet.Wallet, error) {
	wallets := e.wallets.WithTx(tx)
	if ref.ExternalUserID != "" {
		return wallets.ResolveUser(ctx, ref.ExternalUserID)
	}
	return wallets.ResolveSystem(ctx, ref.SystemName)
}

// classify maps store-level failures onto the operation error taxonomy.
// Domain errors pass through untouched; anything unrecognized is wrapped
// so raw store errors never leak to callers.
func (e *Engine) classify(op string, err error) error {
	if errors.Is(err, persistence.ErrSerializationFailure) {
		return ledger.ErrSerializationConflict{}
	}
	if isDomainError(err) {
		return err
	}
	e.logger.Error("Ledger operation failed on storage", "operation", op, "error", err)
	return ledger.ErrStorage{Op: op, Err: err}
}

func isDomainError(err error) bool {
	if ledger.IsRetryable(err) || ledger.IsNotFound(err) {
		return true
	}
	var (
		invalid      ledger.ErrInvalidAmount
		duplicate    ledger.ErrDuplicateOperation
		insufficient ledger.ErrInsufficientFunds
	)
	return errors.As(err, &invalid) || errors.As(err, &duplicate) || errors.As(err, &insufficient)
}

func (e *Engine) buildEvent(ctx context.Context, transactionID uuid.UUID, stage shared.OperationStage,
	op ledger.OperationKind, referenceKey string, amount int64, assetCode, failureReason string,
	pairs ...shared.BalancePair) *shared.OperationEvent {
	return &shared.OperationEvent{
		TransactionID: transactionID,
		Stage:         stage,
		Operation:     string(op),
		ReferenceKey:  referenceKey,
		Amount:        amount,
		AssetCode:     assetCode,
		Pairs:         pairs,
		FailureReason: failureReason,
		CorrelationID: shared.CorrelationIDFromContext(ctx),
		Timestamp:     time.Now().UTC(),
	}
}

func (e *Engine) publish(ctx context.Context, event *shared.OperationEvent) {
	if e.events == nil || event == nil {
		return
	}
	if err := e.events.Publish(ctx, event.ReferenceKey, event); err != nil {
		e.logger.Error("Failed to publish operation event",
			"reference_key", event.ReferenceKey,
			"stage", event.Stage,
			"error", err)
	}
}

func (e *Engine) publishIfFailed(ctx context.Context, event *shared.OperationEvent) {
	if event != nil && event.Stage == shared.StageFailed {
		e.publish(ctx, event)
	}
}
