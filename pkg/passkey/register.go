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
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// CreatePasskey runs a registration ceremony: it issues a fresh challenge,
// shapes the creation request, suspends on the credential client while the
// user interacts with an authenticator, and verifies the attestation
// response inline. On success the returned aggregate carries the normalized
// identity, the new credential's ID, and its public key: everything the
// caller needs to persist for later logins.
//
// Duplicate-registration policy belongs to the caller's store: the provider
// always treats the new credential as unique, and callers supply
// WithExcludeCredentials to keep an authenticator from re-registering IDs
// they already hold.
//
// Failures are reason-tagged (declined, transport, verification); callers
// that don't need diagnostics can just test for a nil aggregate.
func (p *Provider) CreatePasskey(ctx context.Context, userID []byte, userName string, opts ...Option) (*Passkey, error) {
	const op = "create passkey"

	if len(userID) == 0 {
		return nil, newError(op, fmt.Errorf("user id is required"))
	}
	if userName == "" {
		return nil, newError(op, fmt.Errorf("user name is required"))
	}

	options := applyOptions(opts)
	cctx, cancel, client, cfg, engine, err := p.beginCeremony(ctx, op, options)
	if err != nil {
		return nil, err
	}
	defer cancel()

	challenge, err := NewChallenge()
	if err != nil {
		return nil, wrapError(op, err)
	}

	displayName := options.displayName
	if displayName == "" {
		displayName = userName
	}

	creation := creationRequest(cfg, userID, userName, displayName, challenge, filterCredentialIDs(options.exclude))

	p.logger.Debug("registration ceremony started",
		"domain", cfg.Domain,
		"user_name", userName)

	raw, err := client.Create(cctx, creation)
	if err != nil {
		return nil, p.clientFault(op, err)
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(raw))
	if err != nil {
		return nil, reasonError(op, ErrInvalidResponse, err)
	}

	user := &ceremonyUser{
		id:          userID,
		name:        userName,
		displayName: displayName,
	}

	credential, err := engine.CreateCredential(user, registrationSession(cfg, userID, challenge), parsed)
	if err != nil {
		return nil, reasonError(op, ErrVerificationFailed, err)
	}

	p.logger.Info("passkey registered",
		"domain", cfg.Domain,
		"credential_id", base64.RawURLEncoding.EncodeToString(credential.ID))

	return &Passkey{
		UserHandle:   userID,
		CredentialID: credential.ID,
		PublicKey:    credential.PublicKey,
	}, nil
}

// CreatePasskeyString is a pure adapter over CreatePasskey for text
// identities: the identity is normalized to UTF-8 bytes.
func (p *Provider) CreatePasskeyString(ctx context.Context, userID, userName string, opts ...Option) (*Passkey, error) {
	return p.CreatePasskey(ctx, UserHandleFromString(userID), userName, opts...)
}

// CreatePasskeyUUID is a pure adapter over CreatePasskey for UUID
// identities: the UUID is normalized to its canonical text form.
func (p *Provider) CreatePasskeyUUID(ctx context.Context, userID uuid.UUID, userName string, opts ...Option) (*Passkey, error) {
	return p.CreatePasskey(ctx, UserHandleFromUUID(userID), userName, opts...)
}

// creationRequest shapes the wire request for a registration ceremony. The
// exclude list is included only when non-empty after filtering.
func creationRequest(cfg *Config, userID []byte, userName, displayName string, challenge []byte, exclude []protocol.CredentialDescriptor) *protocol.CredentialCreation {
	return &protocol.CredentialCreation{
		Response: protocol.PublicKeyCredentialCreationOptions{
			RelyingParty: protocol.RelyingPartyEntity{
				CredentialEntity: protocol.CredentialEntity{
					Name: cfg.AppName,
				},
				ID: cfg.Domain,
			},
			User: protocol.UserEntity{
				CredentialEntity: protocol.CredentialEntity{
					Name: userName,
				},
				DisplayName: displayName,
				ID:          protocol.URLEncodedBase64(userID),
			},
			Challenge:              protocol.URLEncodedBase64(challenge),
			Parameters:             cfg.credentialParameters(),
			Timeout:                cfg.timeoutMilliseconds(),
			AuthenticatorSelection: cfg.authenticatorSelection(),
			Attestation:            cfg.conveyancePreference(),
			CredentialExcludeList:  exclude,
		},
	}
}

// registrationSession builds the single-ceremony session the verification
// engine checks the attestation response against. The session lives exactly
// as long as the ceremony call, so no expiry is stamped.
func registrationSession(cfg *Config, userID, challenge []byte) webauthn.SessionData {
	return webauthn.SessionData{
		Challenge:        base64.RawURLEncoding.EncodeToString(challenge),
		UserID:           userID,
		UserVerification: cfg.userVerificationRequirement(),
	}
}
