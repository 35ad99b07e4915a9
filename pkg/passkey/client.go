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

	"github.com/go-webauthn/webauthn/protocol"
)

// CredentialClient is the client-side credential API as an opaque capability:
// the thing that ferries ceremony requests to a browser's
// navigator.credentials (or a stand-in) and the signed responses back.
//
// The wire contract is WebAuthn JSON with unpadded base64url for every binary
// field, in both directions: requests are the protocol option structs (which
// marshal to that form), responses are the raw JSON bytes of the client's
// PublicKeyCredential, parsed by the provider with the protocol package.
//
// Create and Get block until the user completes or declines the interaction,
// the context is cancelled, or the owning provider is closed. Implementations
// must honor context cancellation promptly: a human may take arbitrarily long
// or never respond, and the provider enforces no timeout of its own.
//
// Implementations report outcomes with the package sentinels where they can
// distinguish them: ErrDeclined for an explicit user cancellation,
// ErrNoSelection for a conditional ceremony that ended without a pick. Any
// other error is treated as a transport fault.
type CredentialClient interface {
	// Available reports whether the client environment can host the
	// credential API at all.
	Available(ctx context.Context) (bool, error)

	// ConditionalMediationAvailable reports whether the autofill-style
	// conditional UI is supported.
	ConditionalMediationAvailable(ctx context.Context) (bool, error)

	// Create performs a registration ceremony and returns the attestation
	// response JSON.
	Create(ctx context.Context, options *protocol.CredentialCreation) ([]byte, error)

	// Get performs a blocking retrieval ceremony and returns the assertion
	// response JSON.
	Get(ctx context.Context, options *protocol.CredentialAssertion) ([]byte, error)

	// GetConditional performs an autofill-style retrieval ceremony. It
	// returns ErrNoSelection when the ceremony ends without the user picking
	// a credential; that is a normal outcome, not a fault.
	GetConditional(ctx context.Context, options *protocol.CredentialAssertion) ([]byte, error)
}

// ClientFactory builds the credential client on first use. The provider
// invokes it at most once, even under concurrent first access, and latches
// the result.
type ClientFactory func(ctx context.Context) (CredentialClient, error)
