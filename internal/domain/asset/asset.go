package asset

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// AssetType is a distinct currency kind tracked independently by the
// ledger. Amounts are integers in the smallest indivisible unit, so
// DecimalPlaces only affects display. Immutable once referenced by an entry.
type AssetType struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	DisplayName   string    `json:"display_name"`
	DecimalPlaces int32     `json:"decimal_places"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// Repository defines asset type resolution
type Repository interface {
	// ResolveByCode returns the asset type with the given code.
	// Returns ErrAssetTypeNotFound if none exists.
	ResolveByCode(ctx context.Context, code string) (*AssetType, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrAssetTypeNotFound indicates an unresolved asset code
type ErrAssetTypeNotFound struct {
	Code string
}

func (e ErrAssetTypeNotFound) Error() string {
	return "asset type not found: " + e.Code
}

// Is matches any ErrAssetTypeNotFound when the target carries no code
func (e ErrAssetTypeNotFound) Is(target error) bool {
	t, ok := target.(ErrAssetTypeNotFound)
	if !ok {
		return false
	}
	if t.Code == "" {
		return true
	}
	return e.Code == t.Code
}
