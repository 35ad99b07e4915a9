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
	"encoding/json"
	"fmt"
	"sync"

	"github.com/descope/virtualwebauthn"
	"github.com/go-webauthn/webauthn/protocol"
)

// VirtualClient is an in-process CredentialClient backed by a software
// authenticator. It completes ceremonies without a browser or hardware
// token, which makes it the client of choice for tests, examples, and
// local development. Credentials live in memory for the lifetime of the
// client.
type VirtualClient struct {
	mu            sync.Mutex
	rp            virtualwebauthn.RelyingParty
	authenticator virtualwebauthn.Authenticator
	credentials   []virtualwebauthn.Credential
	keyType       virtualwebauthn.KeyType
	available     bool
	conditional   bool
	createErr     error
	getErr        error
}

// VirtualOption customizes a VirtualClient.
type VirtualOption func(*VirtualClient)

// WithVirtualUserHandle attaches a user handle to the software
// authenticator so assertion responses identify their owner, the way a
// discoverable credential does.
func WithVirtualUserHandle(handle []byte) VirtualOption {
	return func(c *VirtualClient) {
		c.authenticator = virtualwebauthn.NewAuthenticatorWithOptions(virtualwebauthn.AuthenticatorOptions{
			UserHandle: handle,
		})
	}
}

// WithVirtualKeyType selects the key type for newly minted credentials.
func WithVirtualKeyType(keyType virtualwebauthn.KeyType) VirtualOption {
	return func(c *VirtualClient) {
		c.keyType = keyType
	}
}

// WithVirtualAvailability overrides the availability probes.
func WithVirtualAvailability(available, conditional bool) VirtualOption {
	return func(c *VirtualClient) {
		c.available = available
		c.conditional = conditional
	}
}

// WithVirtualCreateError makes every registration ceremony fail with the
// given error. Useful for exercising declined and fault paths.
func WithVirtualCreateError(err error) VirtualOption {
	return func(c *VirtualClient) {
		c.createErr = err
	}
}

// WithVirtualGetError makes every assertion ceremony fail with the given
// error.
func WithVirtualGetError(err error) VirtualOption {
	return func(c *VirtualClient) {
		c.getErr = err
	}
}

// NewVirtualClient creates a software authenticator client for the given
// configuration's relying party. The first configured origin is used as the
// ceremony origin.
func NewVirtualClient(cfg *Config, opts ...VirtualOption) *VirtualClient {
	origin := ""
	if len(cfg.Origins) > 0 {
		origin = cfg.Origins[0]
	}

	client := &VirtualClient{
		rp: virtualwebauthn.RelyingParty{
			Name:   cfg.AppName,
			ID:     cfg.Domain,
			Origin: origin,
		},
		authenticator: virtualwebauthn.NewAuthenticator(),
		keyType:       virtualwebauthn.KeyTypeEC2,
		available:     true,
		conditional:   true,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Available reports the configured platform availability.
func (c *VirtualClient) Available(ctx context.Context) (bool, error) {
	return c.available, nil
}

// ConditionalMediationAvailable reports the configured autofill availability.
func (c *VirtualClient) ConditionalMediationAvailable(ctx context.Context) (bool, error) {
	return c.conditional, nil
}

// Create mints a new credential and answers the registration request with
// its attestation response. A request that excludes a credential this
// authenticator already holds is declined, mirroring how browsers surface
// an already-registered authenticator.
func (c *VirtualClient) Create(ctx context.Context, creation *protocol.CredentialCreation) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.createErr != nil {
		return nil, c.createErr
	}

	if c.holdsExcluded(creation.Response.CredentialExcludeList) {
		return nil, fmt.Errorf("%w: authenticator credential is excluded", ErrDeclined)
	}

	optionsJSON, err := json.Marshal(creation.Response)
	if err != nil {
		return nil, fmt.Errorf("failed to encode creation options: %w", err)
	}

	parsedOptions, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse creation options: %w", err)
	}

	credential := virtualwebauthn.NewCredential(c.keyType)
	response := virtualwebauthn.CreateAttestationResponse(c.rp, c.authenticator, credential, *parsedOptions)

	c.authenticator.AddCredential(credential)
	c.credentials = append(c.credentials, credential)

	return []byte(response), nil
}

// Get answers a blocking assertion request with the first held credential
// the allow list admits. With no matching credential the request is
// declined.
func (c *VirtualClient) Get(ctx context.Context, assertion *protocol.CredentialAssertion) ([]byte, error) {
	return c.assert(ctx, assertion, ErrDeclined)
}

// GetConditional answers an autofill assertion request. With no matching
// credential it reports that the user made no selection.
func (c *VirtualClient) GetConditional(ctx context.Context, assertion *protocol.CredentialAssertion) ([]byte, error) {
	return c.assert(ctx, assertion, ErrNoSelection)
}

func (c *VirtualClient) assert(ctx context.Context, assertion *protocol.CredentialAssertion, missing error) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.getErr != nil {
		return nil, c.getErr
	}

	credential, ok := c.pickCredential(assertion.Response.AllowedCredentials)
	if !ok {
		return nil, fmt.Errorf("%w: no matching credential", missing)
	}

	optionsJSON, err := json.Marshal(assertion.Response)
	if err != nil {
		return nil, fmt.Errorf("failed to encode assertion options: %w", err)
	}

	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse assertion options: %w", err)
	}

	response := virtualwebauthn.CreateAssertionResponse(c.rp, c.authenticator, credential, *parsedOptions)

	return []byte(response), nil
}

// pickCredential selects the credential to sign with. An empty allow list
// is a discoverable request and matches the most recently minted
// credential.
func (c *VirtualClient) pickCredential(allowed []protocol.CredentialDescriptor) (virtualwebauthn.Credential, bool) {
	if len(c.credentials) == 0 {
		return virtualwebauthn.Credential{}, false
	}

	if len(allowed) == 0 {
		return c.credentials[len(c.credentials)-1], true
	}

	for _, descriptor := range allowed {
		for _, credential := range c.credentials {
			if bytes.Equal(credential.ID, descriptor.CredentialID) {
				return credential, true
			}
		}
	}

	return virtualwebauthn.Credential{}, false
}

// holdsExcluded reports whether any held credential appears in the exclude
// list.
func (c *VirtualClient) holdsExcluded(excluded []protocol.CredentialDescriptor) bool {
	for _, descriptor := range excluded {
		for _, credential := range c.credentials {
			if bytes.Equal(credential.ID, descriptor.CredentialID) {
				return true
			}
		}
	}
	return false
}

// SetUserHandle rebuilds the software authenticator with the given user
// handle, keeping its minted credentials.
func (c *VirtualClient) SetUserHandle(handle []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	authenticator := virtualwebauthn.NewAuthenticatorWithOptions(virtualwebauthn.AuthenticatorOptions{
		UserHandle: handle,
	})
	for _, credential := range c.credentials {
		authenticator.AddCredential(credential)
	}
	c.authenticator = authenticator
}

// Credentials returns a snapshot of the credentials minted by this client.
func (c *VirtualClient) Credentials() []virtualwebauthn.Credential {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make([]virtualwebauthn.Credential, len(c.credentials))
	copy(snapshot, c.credentials)
	return snapshot
}
