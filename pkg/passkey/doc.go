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

// Package passkey orchestrates passkey (WebAuthn/FIDO2) registration and
// authentication ceremonies for server-side Go applications.
//
// The package owns the ceremony contract: it issues per-ceremony challenges,
// shapes creation and retrieval requests for a client-side credential API,
// and validates the resulting cryptographic proofs against caller-supplied
// stored public keys. It deliberately does not persist anything, so
// credential storage is entirely the caller's responsibility, and it does not
// implement any cryptographic verification itself; attestation and assertion
// checking is delegated to the go-webauthn/webauthn library.
//
// # Architecture
//
//  1. Provider - ceremony lifecycle: one-time client initialization, a root
//     cancellation scope shared by all ceremonies, capability probes
//  2. Ceremonies (CreatePasskey, GetPasskey, GetPasskeyConditional) - build a
//     request, suspend on the CredentialClient while the user interacts, and
//     return a Passkey aggregate
//  3. Verification (VerifyPasskey) - a stateless, later evaluation of a
//     retrieved assertion against a stored public key
//  4. Client layer (CredentialClient) - the browser-side credential API as an
//     opaque capability; implementations include the HTTP ceremony relay in
//     pkg/passkey/http and the in-process VirtualClient for tests and demos
//
// # Usage
//
// Register a credential and persist what the caller needs for later logins:
//
//	provider, err := passkey.NewProvider(passkey.ProviderParams{
//	    Config: &passkey.Config{
//	        AppName: "My App",
//	        Domain:  "example.com",
//	        Origins: []string{"https://example.com"},
//	    },
//	    Client: client,
//	})
//	pk, err := provider.CreatePasskeyString(ctx, "user-1", "alice@example.com")
//	// store pk.UserHandle, pk.CredentialID, pk.PublicKey
//
// Authenticate later with the decoupled retrieve-then-verify protocol:
//
//	assertion, err := provider.GetPasskey(ctx)
//	stored := lookupPublicKey(assertion.CredentialID)
//	ok, err := provider.VerifyPasskey(ctx, assertion, expectedHandle, stored)
//
// The retrieval and verification steps are separate calls so the caller can
// look up the stored public key by CredentialID in between. The assertion
// aggregate carries the issued challenge for exactly that purpose.
//
// Note: WebAuthn requires HTTPS for all operations. Browsers will only
// expose the credential API in secure contexts.
package passkey
