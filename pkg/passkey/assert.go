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

	"github.com/go-webauthn/webauthn/protocol"
)

// GetPasskey runs a blocking assertion ceremony: it issues a fresh
// challenge, prompts through the credential client, and returns an
// aggregate carrying the authenticator's full assertion material alongside
// the challenge it answered. The aggregate is NOT yet verified; hand it to
// VerifyPasskey together with the stored public key to complete the login.
//
// With no WithAllowCredentials option the ceremony is discoverable: the
// authenticator picks among its resident credentials for the domain and the
// returned UserHandle identifies who signed.
func (p *Provider) GetPasskey(ctx context.Context, opts ...Option) (*Passkey, error) {
	const op = "get passkey"
	return p.assert(ctx, op, CredentialClient.Get, opts)
}

// GetPasskeyConditional runs an autofill-style assertion ceremony: the
// client surfaces matching credentials passively (for example in a browser
// form autofill) instead of interrupting the user with a modal prompt. The
// call suspends until the user picks a credential, the client reports that
// no selection will happen (ErrNoSelection), or the context ends.
func (p *Provider) GetPasskeyConditional(ctx context.Context, opts ...Option) (*Passkey, error) {
	const op = "get passkey conditional"
	return p.assert(ctx, op, CredentialClient.GetConditional, opts)
}

// assert is the shared assertion flow behind both prompt styles. The
// request shape and response handling are identical; only the client entry
// point differs.
func (p *Provider) assert(ctx context.Context, op string, prompt func(CredentialClient, context.Context, *protocol.CredentialAssertion) ([]byte, error), opts []Option) (*Passkey, error) {
	options := applyOptions(opts)
	cctx, cancel, client, cfg, _, err := p.beginCeremony(ctx, op, options)
	if err != nil {
		return nil, err
	}
	defer cancel()

	challenge, err := NewChallenge()
	if err != nil {
		return nil, wrapError(op, err)
	}

	assertion := assertionRequest(cfg, challenge, filterCredentialIDs(options.allow))

	p.logger.Debug("assertion ceremony started", "domain", cfg.Domain)

	raw, err := prompt(client, cctx, assertion)
	if err != nil {
		if IsNoSelection(err) {
			p.logger.Debug("assertion ceremony ended without a selection", "domain", cfg.Domain)
		}
		return nil, p.clientFault(op, err)
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(raw))
	if err != nil {
		return nil, reasonError(op, ErrInvalidResponse, err)
	}

	p.logger.Info("assertion collected",
		"domain", cfg.Domain,
		"credential_id", base64.RawURLEncoding.EncodeToString(parsed.RawID))

	return &Passkey{
		UserHandle:        parsed.Response.UserHandle,
		CredentialID:      parsed.RawID,
		Challenge:         challenge,
		AuthenticatorData: parsed.Raw.AssertionResponse.AuthenticatorData,
		ClientDataJSON:    parsed.Raw.AssertionResponse.ClientDataJSON,
		Signature:         parsed.Raw.AssertionResponse.Signature,
	}, nil
}

// assertionRequest shapes the wire request for an assertion ceremony. An
// empty allow list keeps the ceremony discoverable.
func assertionRequest(cfg *Config, challenge []byte, allow []protocol.CredentialDescriptor) *protocol.CredentialAssertion {
	return &protocol.CredentialAssertion{
		Response: protocol.PublicKeyCredentialRequestOptions{
			Challenge:          protocol.URLEncodedBase64(challenge),
			Timeout:            cfg.timeoutMilliseconds(),
			RelyingPartyID:     cfg.Domain,
			AllowedCredentials: allow,
			UserVerification:   cfg.userVerificationRequirement(),
		},
	}
}
