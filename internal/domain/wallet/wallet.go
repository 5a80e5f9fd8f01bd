package wallet

import (
	"errors"
	"time"
)

// Kind distinguishes user-owned wallets from named system pools
type Kind string

const (
	KindUser   Kind = "USER"
	KindSystem Kind = "SYSTEM"
)

var (
	ErrUserWithoutIdentity = errors.New("user wallet must carry an external user id")
	ErrSystemWithIdentity  = errors.New("system wallet must not carry an external user id")
	ErrSystemWithoutName   = errors.New("system wallet must carry a name")
)

// Wallet is a ledger participant. USER wallets are bound to exactly one
// external user identifier; SYSTEM wallets are named pools (treasury,
// revenue, bonus) with no external identity. Wallets are provisioned
// externally and are only ever deactivated, never deleted.
type Wallet struct {
	ID             int64     `json:"id"`
	Kind           Kind      `json:"kind"`
	ExternalUserID *string   `json:"external_user_id,omitempty"`
	Name           *string   `json:"name,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate enforces the kind/identity invariant
func (w *Wallet) Validate() error {
	switch w.Kind {
	case KindUser:
		if w.ExternalUserID == nil || *w.ExternalUserID == "" {
			return ErrUserWithoutIdentity
		}
	case KindSystem:
		if w.ExternalUserID != nil {
			return ErrSystemWithIdentity
		}
		if w.Name == nil || *w.Name == "" {
			return ErrSystemWithoutName
		}
	}
	return nil
}

// IsSystem reports whether the wallet is a named system pool
func (w *Wallet) IsSystem() bool {
	return w.Kind == KindSystem
}
