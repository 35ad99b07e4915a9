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
	"encoding/hex"
	"errors"
	"sync"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Store errors.
var (
	// ErrCredentialNotFound indicates no credential matches the identifier.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialExists indicates the credential identifier is already
	// registered.
	ErrCredentialExists = errors.New("credential already exists")
)

// CredentialStore persists registered credentials for the HTTP surface.
// The ceremony library itself holds no credential state; the handler calls
// the store after registration and before assertion verification.
type CredentialStore interface {
	// StoreCredential persists a registered credential.
	StoreCredential(ctx context.Context, credential *passkey.Passkey) error

	// LookupCredential retrieves a credential by its identifier.
	// Returns ErrCredentialNotFound when no credential matches.
	LookupCredential(ctx context.Context, credentialID []byte) (*passkey.Passkey, error)

	// UserCredentials retrieves all credentials registered to a user
	// handle. An unknown handle yields an empty slice, not an error.
	UserCredentials(ctx context.Context, userHandle []byte) ([]*passkey.Passkey, error)
}

// MemoryCredentialStore is an in-memory implementation of CredentialStore.
// This is intended for development and testing only.
type MemoryCredentialStore struct {
	mu       sync.RWMutex
	byID     map[string]*passkey.Passkey
	byUser   map[string][]*passkey.Passkey
	idToUser map[string]string
}

// NewMemoryCredentialStore creates a new in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byID:     make(map[string]*passkey.Passkey),
		byUser:   make(map[string][]*passkey.Passkey),
		idToUser: make(map[string]string),
	}
}

// StoreCredential stores a new credential.
func (s *MemoryCredentialStore) StoreCredential(ctx context.Context, credential *passkey.Passkey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credKey := hex.EncodeToString(credential.CredentialID)
	userKey := hex.EncodeToString(credential.UserHandle)

	if _, ok := s.byID[credKey]; ok {
		return ErrCredentialExists
	}

	s.byID[credKey] = credential
	s.byUser[userKey] = append(s.byUser[userKey], credential)
	s.idToUser[credKey] = userKey

	return nil
}

// LookupCredential retrieves a credential by its identifier.
func (s *MemoryCredentialStore) LookupCredential(ctx context.Context, credentialID []byte) (*passkey.Passkey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	credential, ok := s.byID[hex.EncodeToString(credentialID)]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return credential, nil
}

// UserCredentials retrieves all credentials for a user handle.
func (s *MemoryCredentialStore) UserCredentials(ctx context.Context, userHandle []byte) ([]*passkey.Passkey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	credentials, ok := s.byUser[hex.EncodeToString(userHandle)]
	if !ok {
		return []*passkey.Passkey{}, nil
	}

	// Return a copy to prevent external modification
	result := make([]*passkey.Passkey, len(credentials))
	copy(result, credentials)
	return result, nil
}

// Delete removes a credential by its identifier.
func (s *MemoryCredentialStore) Delete(ctx context.Context, credentialID []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credKey := hex.EncodeToString(credentialID)
	userKey, ok := s.idToUser[credKey]
	if !ok {
		return ErrCredentialNotFound
	}

	delete(s.byID, credKey)
	delete(s.idToUser, credKey)

	credentials := s.byUser[userKey]
	for i, credential := range credentials {
		if hex.EncodeToString(credential.CredentialID) == credKey {
			s.byUser[userKey] = append(credentials[:i], credentials[i+1:]...)
			break
		}
	}

	return nil
}

// Count returns the total number of credentials in the store.
func (s *MemoryCredentialStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Clear removes all credentials from the store.
func (s *MemoryCredentialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]*passkey.Passkey)
	s.byUser = make(map[string][]*passkey.Passkey)
	s.idToUser = make(map[string]string)
}
