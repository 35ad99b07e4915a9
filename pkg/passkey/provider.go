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
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-webauthn/webauthn/webauthn"
)

// Provider orchestrates passkey ceremonies. It owns one-time initialization
// of the credential client handle and a root cancellation scope shared by all
// ceremonies issued through it: closing the provider aborts every in-flight
// ceremony and fails any later request fast.
//
// A Provider is safe for concurrent use. Each ceremony owns an independent
// challenge and cancellation scope; ceremonies never observe each other.
type Provider struct {
	config *Config
	engine *webauthn.WebAuthn
	logger *slog.Logger

	factory  ClientFactory
	initOnce sync.Once
	client   CredentialClient
	initErr  error

	rootCtx    context.Context
	rootCancel context.CancelFunc
	closed     atomic.Bool
}

// ProviderParams contains dependencies for creating a Provider.
type ProviderParams struct {
	// Config is the relying party configuration (required).
	Config *Config

	// Client is a ready credential client. Exactly one of Client and
	// ClientFactory must be set.
	Client CredentialClient

	// ClientFactory builds the credential client lazily on first use. The
	// factory runs at most once, even when many concurrent ceremonies race
	// to be first, and its result (or error) is latched.
	ClientFactory ClientFactory

	// Logger is an optional structured logger. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewProvider creates a provider with the given dependencies.
func NewProvider(params ProviderParams) (*Provider, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.Client == nil && params.ClientFactory == nil {
		return nil, ErrClientRequired
	}

	// Set defaults and validate
	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	// Create the verification engine
	engine, err := webauthn.New(params.Config.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create verification engine: %w", err)
	}

	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	factory := params.ClientFactory
	if params.Client != nil {
		client := params.Client
		factory = func(context.Context) (CredentialClient, error) {
			return client, nil
		}
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())

	return &Provider{
		config:     params.Config,
		engine:     engine,
		logger:     logger,
		factory:    factory,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
	}, nil
}

// Close cancels the provider's root scope. In-flight ceremonies awaiting
// client interaction or verification are aborted promptly, and any ceremony
// requested afterwards fails immediately with ErrProviderClosed. Close is
// idempotent.
func (p *Provider) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		p.rootCancel()
		p.logger.Debug("passkey provider closed")
	}
	return nil
}

// Config returns the provider's default relying party configuration.
func (p *Provider) Config() *Config {
	return p.config
}

// PasskeysSupported reports whether the client environment can host passkey
// ceremonies. Probe failures and closed providers collapse to false.
func (p *Provider) PasskeysSupported(ctx context.Context) bool {
	ok, err := p.probe(ctx, "passkey support probe", CredentialClient.Available)
	if err != nil {
		p.logger.Debug("passkey support probe failed", "error", err)
		return false
	}
	return ok
}

// ConditionalMediationAvailable reports whether the autofill-style
// conditional UI is supported. Probe failures and closed providers collapse
// to false.
func (p *Provider) ConditionalMediationAvailable(ctx context.Context) bool {
	ok, err := p.probe(ctx, "conditional mediation probe", CredentialClient.ConditionalMediationAvailable)
	if err != nil {
		p.logger.Debug("conditional mediation probe failed", "error", err)
		return false
	}
	return ok
}

// probe runs a capability check against the initialized client.
func (p *Provider) probe(ctx context.Context, op string, check func(CredentialClient, context.Context) (bool, error)) (bool, error) {
	if p.closed.Load() {
		return false, newError(op, ErrProviderClosed)
	}

	cctx, cancel := p.ceremonyContext(ctx)
	defer cancel()

	client, err := p.ensureClient(cctx)
	if err != nil {
		return false, wrapError(op, err)
	}

	ok, err := check(client, cctx)
	if err != nil {
		return false, reasonError(op, ErrUnsupported, err)
	}
	return ok, nil
}

// ensureClient initializes the credential client exactly once and latches
// the outcome. A factory failure is reported as ErrUnsupported: the
// environment cannot host the credential API.
func (p *Provider) ensureClient(ctx context.Context) (CredentialClient, error) {
	p.initOnce.Do(func() {
		client, err := p.factory(ctx)
		if err != nil {
			p.initErr = fmt.Errorf("%w: %w", ErrUnsupported, err)
			p.logger.Error("credential client initialization failed", "error", err)
			return
		}
		if client == nil {
			p.initErr = fmt.Errorf("%w: factory returned no client", ErrUnsupported)
			return
		}
		p.client = client
		p.logger.Debug("credential client initialized")
	})
	return p.client, p.initErr
}

// ceremonyContext derives a per-ceremony cancellation scope linked to both
// the caller's context and the provider's root scope, so closing the
// provider aborts the ceremony even when the caller's context lives on.
func (p *Provider) ceremonyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(p.rootCtx, cancel)
	return cctx, func() {
		stop()
		cancel()
	}
}

// beginCeremony performs the shared ceremony preamble: closed-provider check,
// scope derivation, client initialization, and per-call config resolution.
// The returned cancel func must be called when the ceremony ends.
func (p *Provider) beginCeremony(ctx context.Context, op string, options *ceremonyOptions) (context.Context, context.CancelFunc, CredentialClient, *Config, *webauthn.WebAuthn, error) {
	if p.closed.Load() {
		return nil, nil, nil, nil, nil, newError(op, ErrProviderClosed)
	}

	cctx, cancel := p.ceremonyContext(ctx)

	client, err := p.ensureClient(cctx)
	if err != nil {
		cancel()
		return nil, nil, nil, nil, nil, wrapError(op, err)
	}

	cfg, engine, err := p.resolveEngine(options.config)
	if err != nil {
		cancel()
		return nil, nil, nil, nil, nil, wrapError(op, err)
	}

	return cctx, cancel, client, cfg, engine, nil
}

// resolveEngine returns the configuration and verification engine for a
// ceremony, building a one-off engine when a per-call override is supplied.
func (p *Provider) resolveEngine(override *Config) (*Config, *webauthn.WebAuthn, error) {
	if override == nil {
		return p.config, p.engine, nil
	}

	cfg := override.Clone()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	engine, err := webauthn.New(cfg.ToWebAuthnConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, engine, nil
}

// clientFault classifies a credential client error: the package sentinels
// pass through untouched, a cancellation caused by Close is reported as
// ErrProviderClosed, and everything else is tagged as a transport fault.
func (p *Provider) clientFault(op string, err error) error {
	switch {
	case IsDeclined(err), IsNoSelection(err), IsUnsupported(err):
		return wrapError(op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if p.closed.Load() {
			return reasonError(op, ErrProviderClosed, err)
		}
		return wrapError(op, err)
	default:
		return reasonError(op, ErrTransport, err)
	}
}
