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

package http

import (
	"context"
	"testing"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedPasskey(userHandle, credentialID string) *passkey.Passkey {
	return &passkey.Passkey{
		UserHandle:   protocol.URLEncodedBase64(userHandle),
		CredentialID: protocol.URLEncodedBase64(credentialID),
		PublicKey:    protocol.URLEncodedBase64("public-key-" + credentialID),
	}
}

func TestMemoryCredentialStore_StoreAndLookup(t *testing.T) {
	store := NewMemoryCredentialStore()
	ctx := context.Background()

	err := store.StoreCredential(ctx, storedPasskey("user-1", "credential-1"))
	require.NoError(t, err)

	found, err := store.LookupCredential(ctx, []byte("credential-1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("user-1"), []byte(found.UserHandle))
	assert.Equal(t, []byte("credential-1"), []byte(found.CredentialID))
	assert.Equal(t, []byte("public-key-credential-1"), []byte(found.PublicKey))
}

func TestMemoryCredentialStore_StoreDuplicate(t *testing.T) {
	store := NewMemoryCredentialStore()
	ctx := context.Background()

	require.NoError(t, store.StoreCredential(ctx, storedPasskey("user-1", "credential-1")))

	err := store.StoreCredential(ctx, storedPasskey("user-2", "credential-1"))
	assert.ErrorIs(t, err, ErrCredentialExists)
	assert.Equal(t, 1, store.Count())
}

func TestMemoryCredentialStore_LookupMissing(t *testing.T) {
	store := NewMemoryCredentialStore()

	_, err := store.LookupCredential(context.Background(), []byte("unknown"))
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestMemoryCredentialStore_UserCredentials(t *testing.T) {
	store := NewMemoryCredentialStore()
	ctx := context.Background()

	require.NoError(t, store.StoreCredential(ctx, storedPasskey("user-1", "credential-1")))
	require.NoError(t, store.StoreCredential(ctx, storedPasskey("user-1", "credential-2")))
	require.NoError(t, store.StoreCredential(ctx, storedPasskey("user-2", "credential-3")))

	creds, err := store.UserCredentials(ctx, []byte("user-1"))
	require.NoError(t, err)
	assert.Len(t, creds, 2)

	creds, err = store.UserCredentials(ctx, []byte("user-2"))
	require.NoError(t, err)
	assert.Len(t, creds, 1)
	assert.Equal(t, []byte("credential-3"), []byte(creds[0].CredentialID))

	creds, err = store.UserCredentials(ctx, []byte("unknown"))
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestMemoryCredentialStore_UserCredentialsCopy(t *testing.T) {
	store := NewMemoryCredentialStore()
	ctx := context.Background()

	require.NoError(t, store.StoreCredential(ctx, storedPasskey("user-1", "credential-1")))

	creds, err := store.UserCredentials(ctx, []byte("user-1"))
	require.NoError(t, err)
	require.Len(t, creds, 1)
	creds[0] = nil

	creds, err = store.UserCredentials(ctx, []byte("user-1"))
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.NotNil(t, creds[0])
}

func TestMemoryCredentialStore_Delete(t *testing.T) {
	store := NewMemoryCredentialStore()
	ctx := context.Background()

	require.NoError(t, store.StoreCredential(ctx, storedPasskey("user-1", "credential-1")))
	require.NoError(t, store.StoreCredential(ctx, storedPasskey("user-1", "credential-2")))

	require.NoError(t, store.Delete(ctx, []byte("credential-1")))

	_, err := store.LookupCredential(ctx, []byte("credential-1"))
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	creds, err := store.UserCredentials(ctx, []byte("user-1"))
	require.NoError(t, err)
	assert.Len(t, creds, 1)

	err = store.Delete(ctx, []byte("credential-1"))
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestMemoryCredentialStore_CountAndClear(t *testing.T) {
	store := NewMemoryCredentialStore()
	ctx := context.Background()

	assert.Zero(t, store.Count())

	require.NoError(t, store.StoreCredential(ctx, storedPasskey("user-1", "credential-1")))
	require.NoError(t, store.StoreCredential(ctx, storedPasskey("user-2", "credential-2")))
	assert.Equal(t, 2, store.Count())

	store.Clear()
	assert.Zero(t, store.Count())

	creds, err := store.UserCredentials(ctx, []byte("user-1"))
	require.NoError(t, err)
	assert.Empty(t, creds)
}
