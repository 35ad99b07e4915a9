// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package passkey

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// registerAndAssert runs a registration followed by an assertion ceremony
// and returns both aggregates.
func registerAndAssert(t *testing.T, provider *Provider, userID []byte, userName string) (*Passkey, *Passkey) {
	t.Helper()
	ctx := context.Background()

	registered, err := provider.CreatePasskey(ctx, userID, userName)
	require.NoError(t, err)

	assertion, err := provider.GetPasskey(ctx)
	require.NoError(t, err)

	return registered, assertion
}

func TestVerifyPasskey(t *testing.T) {
	ctx := context.Background()
	provider, _ := newVirtualProvider(t, WithVirtualUserHandle([]byte("user-1")))

	registered, assertion := registerAndAssert(t, provider, []byte("user-1"), "user-1@example.com")

	ok, err := provider.VerifyPasskey(ctx, assertion, []byte("user-1"), registered.PublicKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyPasskey_TamperedChallenge(t *testing.T) {
	ctx := context.Background()
	provider, _ := newVirtualProvider(t, WithVirtualUserHandle([]byte("user-1")))

	registered, assertion := registerAndAssert(t, provider, []byte("user-1"), "user-1@example.com")
	assertion.Challenge[0] ^= 0xFF

	ok, err := provider.VerifyPasskey(ctx, assertion, []byte("user-1"), registered.PublicKey)
	assert.False(t, ok)
	assert.True(t, IsVerificationFailed(err))
}

func TestVerifyPasskey_TamperedSignature(t *testing.T) {
	ctx := context.Background()
	provider, _ := newVirtualProvider(t, WithVirtualUserHandle([]byte("user-1")))

	registered, assertion := registerAndAssert(t, provider, []byte("user-1"), "user-1@example.com")
	assertion.Signature[len(assertion.Signature)/2] ^= 0xFF

	ok, err := provider.VerifyPasskey(ctx, assertion, []byte("user-1"), registered.PublicKey)
	assert.False(t, ok)
	assert.True(t, IsVerificationFailed(err))
}

func TestVerifyPasskey_TamperedClientData(t *testing.T) {
	ctx := context.Background()
	provider, _ := newVirtualProvider(t, WithVirtualUserHandle([]byte("user-1")))

	registered, assertion := registerAndAssert(t, provider, []byte("user-1"), "user-1@example.com")
	assertion.ClientDataJSON[0] ^= 0xFF

	ok, err := provider.VerifyPasskey(ctx, assertion, []byte("user-1"), registered.PublicKey)
	assert.False(t, ok)
	assert.True(t, IsVerificationFailed(err))
}

func TestVerifyPasskey_WrongPublicKey(t *testing.T) {
	ctx := context.Background()
	provider, _ := newVirtualProvider(t, WithVirtualUserHandle([]byte("user-1")))

	_, assertion := registerAndAssert(t, provider, []byte("user-1"), "user-1@example.com")

	// A second credential's key is a valid key, just not the signer's.
	other, err := provider.CreatePasskey(ctx, []byte("user-1"), "user-1@example.com")
	require.NoError(t, err)

	ok, err := provider.VerifyPasskey(ctx, assertion, []byte("user-1"), other.PublicKey)
	assert.False(t, ok)
	assert.True(t, IsVerificationFailed(err))
}

func TestVerifyPasskey_WrongUserHandle(t *testing.T) {
	ctx := context.Background()
	provider, _ := newVirtualProvider(t, WithVirtualUserHandle([]byte("user-1")))

	registered, assertion := registerAndAssert(t, provider, []byte("user-1"), "user-1@example.com")

	// The assertion identifies user-1; claiming it for user-2 fails the
	// ownership check even though the signature itself is sound.
	ok, err := provider.VerifyPasskey(ctx, assertion, []byte("user-2"), registered.PublicKey)
	assert.False(t, ok)
	assert.True(t, IsVerificationFailed(err))
}

func TestVerifyPasskey_WrongRelyingParty(t *testing.T) {
	ctx := context.Background()
	provider, _ := newVirtualProvider(t, WithVirtualUserHandle([]byte("user-1")))

	registered, assertion := registerAndAssert(t, provider, []byte("user-1"), "user-1@example.com")

	ok, err := provider.VerifyPasskey(ctx, assertion, []byte("user-1"), registered.PublicKey,
		WithConfig(&Config{
			AppName: "Other Corp",
			Domain:  "other.example",
			Origins: []string{"https://other.example"},
		}))
	assert.False(t, ok)
	assert.True(t, IsVerificationFailed(err))
}

func TestVerifyPasskey_IncompleteAssertion(t *testing.T) {
	ctx := context.Background()
	provider, _ := newVirtualProvider(t)

	// A registration aggregate has no assertion proof to verify.
	registered, err := provider.CreatePasskey(ctx, []byte("user-1"), "user-1@example.com")
	require.NoError(t, err)

	ok, err := provider.VerifyPasskey(ctx, registered, []byte("user-1"), registered.PublicKey)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrIncompleteAssertion))
}

func TestVerifyPasskey_InputValidation(t *testing.T) {
	ctx := context.Background()
	provider, _ := newVirtualProvider(t, WithVirtualUserHandle([]byte("user-1")))

	registered, assertion := registerAndAssert(t, provider, []byte("user-1"), "user-1@example.com")

	ok, err := provider.VerifyPasskey(ctx, nil, []byte("user-1"), registered.PublicKey)
	assert.False(t, ok)
	require.Error(t, err)

	ok, err = provider.VerifyPasskey(ctx, assertion, nil, registered.PublicKey)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "user handle is required")

	ok, err = provider.VerifyPasskey(ctx, assertion, []byte("user-1"), nil)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "public key is required")
}

func TestVerifyPasskeyString(t *testing.T) {
	ctx := context.Background()
	provider, _ := newVirtualProvider(t, WithVirtualUserHandle([]byte("user-1")))

	registered, assertion := registerAndAssert(t, provider, []byte("user-1"), "user-1@example.com")
	encodedKey := base64.RawURLEncoding.EncodeToString(registered.PublicKey)

	ok, err := provider.VerifyPasskeyString(ctx, assertion, "user-1", encodedKey)
	require.NoError(t, err)
	assert.True(t, ok)

	// A wrong identity fails ownership, same as the byte-level form.
	ok, err = provider.VerifyPasskeyString(ctx, assertion, "user-2", encodedKey)
	assert.False(t, ok)
	assert.True(t, IsVerificationFailed(err))

	// A malformed key is rejected before any cryptography runs.
	ok, err = provider.VerifyPasskeyString(ctx, assertion, "user-1", "!!!not-base64!!!")
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "failed to decode public key")
}

func TestVerifyPasskeyUUID(t *testing.T) {
	ctx := context.Background()

	id := uuid.New()
	provider, _ := newVirtualProvider(t, WithVirtualUserHandle(UserHandleFromUUID(id)))

	registered, err := provider.CreatePasskeyUUID(ctx, id, "user-1@example.com")
	require.NoError(t, err)

	assertion, err := provider.GetPasskey(ctx)
	require.NoError(t, err)

	encodedKey := base64.RawURLEncoding.EncodeToString(registered.PublicKey)

	ok, err := provider.VerifyPasskeyUUID(ctx, assertion, id, encodedKey)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = provider.VerifyPasskeyUUID(ctx, assertion, uuid.New(), encodedKey)
	assert.False(t, ok)
	assert.True(t, IsVerificationFailed(err))
}
