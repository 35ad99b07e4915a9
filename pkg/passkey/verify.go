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
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// Authenticator data flag bits, from the flags byte that follows the 32
// byte RP ID hash.
const (
	flagUserPresent    byte = 0x01
	flagUserVerified   byte = 0x04
	flagBackupEligible byte = 0x08
	flagBackupState    byte = 0x10
)

// VerifyPasskey checks an assertion aggregate against a stored credential.
// It is decoupled from the ceremony that produced the aggregate: the caller
// supplies the expected user handle and the public key it persisted at
// registration, and the engine re-validates the challenge, origin, RP ID
// hash, and signature. The boolean answers "is this login valid"; the error
// carries the reason when it is not.
//
// Ownership is part of the check: an assertion signed by a credential that
// reports a different user handle than expected fails verification. Signature
// counters are not tracked across calls; the stored counter is treated as
// zero, matching authenticators that never increment.
func (p *Provider) VerifyPasskey(ctx context.Context, passkey *Passkey, userHandle, publicKey []byte, opts ...Option) (bool, error) {
	const op = "verify passkey"

	if p.closed.Load() {
		return false, newError(op, ErrProviderClosed)
	}
	if err := ctx.Err(); err != nil {
		return false, wrapError(op, err)
	}
	if passkey == nil {
		return false, newError(op, fmt.Errorf("passkey is required"))
	}
	if !passkey.HasAssertion() {
		return false, newError(op, ErrIncompleteAssertion)
	}
	if len(userHandle) == 0 {
		return false, newError(op, fmt.Errorf("user handle is required"))
	}
	if len(publicKey) == 0 {
		return false, newError(op, fmt.Errorf("public key is required"))
	}

	options := applyOptions(opts)
	cfg, engine, err := p.resolveEngine(options.config)
	if err != nil {
		return false, wrapError(op, err)
	}

	parsed, err := assertionFromPasskey(passkey).Parse()
	if err != nil {
		return false, reasonError(op, ErrVerificationFailed, err)
	}

	user := &ceremonyUser{
		id:          userHandle,
		credentials: []webauthn.Credential{storedCredential(passkey, publicKey)},
	}

	session := webauthn.SessionData{
		Challenge:        base64.RawURLEncoding.EncodeToString(passkey.Challenge),
		UserID:           userHandle,
		UserVerification: cfg.userVerificationRequirement(),
	}

	if _, err := engine.ValidateLogin(user, session, parsed); err != nil {
		p.logger.Debug("passkey verification rejected",
			"domain", cfg.Domain,
			"error", err)
		return false, reasonError(op, ErrVerificationFailed, err)
	}

	p.logger.Info("passkey verified",
		"domain", cfg.Domain,
		"credential_id", base64.RawURLEncoding.EncodeToString(passkey.CredentialID))

	return true, nil
}

// VerifyPasskeyString is a pure adapter over VerifyPasskey for text
// identities and base64url-encoded public keys.
func (p *Provider) VerifyPasskeyString(ctx context.Context, passkey *Passkey, userID, publicKey string, opts ...Option) (bool, error) {
	const op = "verify passkey"

	key, err := base64.RawURLEncoding.DecodeString(publicKey)
	if err != nil {
		return false, newError(op, fmt.Errorf("failed to decode public key: %w", err))
	}
	return p.VerifyPasskey(ctx, passkey, UserHandleFromString(userID), key, opts...)
}

// VerifyPasskeyUUID is a pure adapter over VerifyPasskey for UUID
// identities and base64url-encoded public keys.
func (p *Provider) VerifyPasskeyUUID(ctx context.Context, passkey *Passkey, userID uuid.UUID, publicKey string, opts ...Option) (bool, error) {
	const op = "verify passkey"

	key, err := base64.RawURLEncoding.DecodeString(publicKey)
	if err != nil {
		return false, newError(op, fmt.Errorf("failed to decode public key: %w", err))
	}
	return p.VerifyPasskey(ctx, passkey, UserHandleFromUUID(userID), key, opts...)
}

// assertionFromPasskey rebuilds the wire-shape assertion response from the
// transient fields of an aggregate so the engine can re-parse and validate
// it exactly as it would a live ceremony response.
func assertionFromPasskey(passkey *Passkey) protocol.CredentialAssertionResponse {
	return protocol.CredentialAssertionResponse{
		PublicKeyCredential: protocol.PublicKeyCredential{
			Credential: protocol.Credential{
				ID:   base64.RawURLEncoding.EncodeToString(passkey.CredentialID),
				Type: string(protocol.PublicKeyCredentialType),
			},
			RawID: passkey.CredentialID,
		},
		AssertionResponse: protocol.AuthenticatorAssertionResponse{
			AuthenticatorResponse: protocol.AuthenticatorResponse{
				ClientDataJSON: passkey.ClientDataJSON,
			},
			AuthenticatorData: passkey.AuthenticatorData,
			Signature:         passkey.Signature,
			UserHandle:        passkey.UserHandle,
		},
	}
}

// storedCredential builds the engine-side view of the stored credential.
// The backup flags are mirrored from the assertion's own authenticator data
// so flag-consistency checks compare the assertion against itself; the
// caller's trust anchor is the public key, not the flags.
func storedCredential(passkey *Passkey, publicKey []byte) webauthn.Credential {
	var flags byte
	if len(passkey.AuthenticatorData) > 32 {
		flags = passkey.AuthenticatorData[32]
	}

	return webauthn.Credential{
		ID:        passkey.CredentialID,
		PublicKey: publicKey,
		Flags: webauthn.CredentialFlags{
			UserPresent:    flags&flagUserPresent != 0,
			UserVerified:   flags&flagUserVerified != 0,
			BackupEligible: flags&flagBackupEligible != 0,
			BackupState:    flags&flagBackupState != 0,
		},
		Authenticator: webauthn.Authenticator{
			SignCount: 0,
		},
	}
}
