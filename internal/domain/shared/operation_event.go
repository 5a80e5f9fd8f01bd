package shared

import (
	"time"

	"github.com/google/uuid"
)

// OperationStage identifies a point in an operation's lifecycle
type OperationStage string

const (
	StageCompleted OperationStage = "COMPLETED"
	StageFailed    OperationStage = "FAILED"
)

// BalancePair identifies one (wallet, asset) pair touched by an operation
type BalancePair struct {
	WalletID    int64 `json:"wallet_id"`
	AssetTypeID int64 `json:"asset_type_id"`
}

// OperationEvent is the Kafka message the engine publishes after an
// operation finishes. It is purely observational: the balance projector
// uses the touched pairs as snapshot refresh triggers, and nothing feeds
// back into engine behavior.
type OperationEvent struct {
	TransactionID uuid.UUID      `json:"transaction_id"`
	Stage         OperationStage `json:"stage"`
	Operation     string         `json:"operation"`
	ReferenceKey  string         `json:"reference_key"`
	Amount        int64          `json:"amount"`
	AssetCode     string         `json:"asset_code"`
	Pairs         []BalancePair  `json:"pairs"`
	FailureReason string         `json:"failure_reason,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}
