package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestWallet_Validate(t *testing.T) {
	t.Run("ValidUserWallet", func(t *testing.T) {
		w := &Wallet{Kind: KindUser, ExternalUserID: strPtr("user-42"), Active: true}
		assert.NoError(t, w.Validate())
	})

	t.Run("UserWalletWithoutIdentity", func(t *testing.T) {
		w := &Wallet{Kind: KindUser}
		assert.ErrorIs(t, w.Validate(), ErrUserWithoutIdentity)

		w = &Wallet{Kind: KindUser, ExternalUserID: strPtr("")}
		assert.ErrorIs(t, w.Validate(), ErrUserWithoutIdentity)
	})

	t.Run("ValidSystemWallet", func(t *testing.T) {
		w := &Wallet{Kind: KindSystem, Name: strPtr("treasury"), Active: true}
		assert.NoError(t, w.Validate())
	})

	t.Run("SystemWalletWithUserIdentity", func(t *testing.T) {
		w := &Wallet{Kind: KindSystem, Name: strPtr("treasury"), ExternalUserID: strPtr("user-42")}
		assert.ErrorIs(t, w.Validate(), ErrSystemWithIdentity)
	})

	t.Run("SystemWalletWithoutName", func(t *testing.T) {
		w := &Wallet{Kind: KindSystem}
		assert.ErrorIs(t, w.Validate(), ErrSystemWithoutName)
	})
}

func TestWallet_IsSystem(t *testing.T) {
	assert.True(t, (&Wallet{Kind: KindSystem}).IsSystem())
	assert.False(t, (&Wallet{Kind: KindUser}).IsSystem())
}

func TestWalletErrors_Is(t *testing.T) {
	t.Run("NotFoundMatchesBareTarget", func(t *testing.T) {
		err := ErrWalletNotFound{Identifier: "user-42"}
		assert.ErrorIs(t, err, ErrWalletNotFound{})
		assert.ErrorIs(t, err, ErrWalletNotFound{Identifier: "user-42"})
		assert.NotErrorIs(t, err, ErrWalletNotFound{Identifier: "other"})
	})

	t.Run("LockedMatchesAnyWalletSet", func(t *testing.T) {
		err := ErrWalletLocked{WalletIDs: []int64{3, 9}}
		assert.ErrorIs(t, err, ErrWalletLocked{})
	})
}
