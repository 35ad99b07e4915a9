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
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Passkey is the aggregate returned by ceremony operations. A fresh aggregate
// is created per ceremony and owned exclusively by the caller afterward; the
// provider holds no reference to it.
//
// The persistable fields (UserHandle, CredentialID, PublicKey) are what a
// caller stores after registration. The proof fields (Challenge,
// AuthenticatorData, ClientDataJSON, Signature) are transient: they are
// populated only by assertion retrieval, consumed by the immediately
// following VerifyPasskey call, and are not intended for storage.
//
// All byte fields serialize as unpadded base64url, the one encoding used
// everywhere credentials cross a wire.
type Passkey struct {
	// UserHandle is the opaque application-defined identity bound to the
	// credential. It may be empty after a non-discoverable retrieval, meaning
	// "unknown, resolve the user by CredentialID".
	UserHandle protocol.URLEncodedBase64 `json:"user_handle,omitempty"`

	// CredentialID uniquely identifies the credential. It is immutable once
	// issued and is the primary lookup key for the caller's store.
	CredentialID protocol.URLEncodedBase64 `json:"credential_id"`

	// PublicKey is the credential's COSE-encoded public key. It is present
	// only on aggregates produced by a successful registration.
	PublicKey protocol.URLEncodedBase64 `json:"public_key,omitempty"`

	// Challenge is the 32-byte challenge issued for the retrieval ceremony
	// that produced this aggregate. VerifyPasskey checks the assertion was
	// signed over exactly this challenge.
	Challenge protocol.URLEncodedBase64 `json:"challenge,omitempty"`

	// AuthenticatorData is the raw authenticator data from the assertion.
	AuthenticatorData protocol.URLEncodedBase64 `json:"authenticator_data,omitempty"`

	// ClientDataJSON is the client data record from the assertion.
	ClientDataJSON protocol.URLEncodedBase64 `json:"client_data_json,omitempty"`

	// Signature is the assertion signature over the authenticator data and
	// the client data hash.
	Signature protocol.URLEncodedBase64 `json:"signature,omitempty"`
}

// HasAssertion reports whether the aggregate carries a complete set of
// transient proof fields. Verification requires all four.
func (p *Passkey) HasAssertion() bool {
	return len(p.Challenge) > 0 &&
		len(p.AuthenticatorData) > 0 &&
		len(p.ClientDataJSON) > 0 &&
		len(p.Signature) > 0
}

// ceremonyUser adapts a normalized byte identity, and optionally a single
// stored credential, to the webauthn.User interface for one ceremony. The
// provider persists nothing, so the user exists only for the duration of the
// call that built it.
type ceremonyUser struct {
	id          []byte
	name        string
	displayName string
	credentials []webauthn.Credential
}

// WebAuthnID returns the user's canonical byte identity.
func (u *ceremonyUser) WebAuthnID() []byte {
	return u.id
}

// WebAuthnName returns the user's account name.
func (u *ceremonyUser) WebAuthnName() string {
	return u.name
}

// WebAuthnDisplayName returns the user's display name.
func (u *ceremonyUser) WebAuthnDisplayName() string {
	return u.displayName
}

// WebAuthnCredentials returns the credentials bound to this ceremony.
func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

// WebAuthnIcon satisfies the deprecated icon accessor still present in the
// webauthn.User interface; ceremonies carry no icon.
func (u *ceremonyUser) WebAuthnIcon() string {
	return ""
}

// filterCredentialIDs drops empty identifiers and converts the remainder to
// wire descriptors. A nil result means the list is omitted from the request,
// which for retrieval lets the client surface any discoverable credential.
func filterCredentialIDs(ids [][]byte) []protocol.CredentialDescriptor {
	if len(ids) == 0 {
		return nil
	}

	descriptors := make([]protocol.CredentialDescriptor, 0, len(ids))
	for _, id := range ids {
		if len(id) == 0 {
			continue
		}
		descriptors = append(descriptors, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: id,
		})
	}

	if len(descriptors) == 0 {
		return nil
	}
	return descriptors
}
