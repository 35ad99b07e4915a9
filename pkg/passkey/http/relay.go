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
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Relay errors.
var (
	// ErrNoCeremony indicates the context carries no ceremony identifier.
	ErrNoCeremony = errors.New("no ceremony bound to context")

	// ErrCeremonyNotFound indicates the ceremony identifier is unknown,
	// already reclaimed, or never opened.
	ErrCeremonyNotFound = errors.New("ceremony not found")

	// ErrCeremonyFinished indicates a response was already delivered for
	// the ceremony.
	ErrCeremonyFinished = errors.New("ceremony response already delivered")
)

// DefaultRelayTimeout bounds how long a parked ceremony waits for the
// browser's response before it is reclaimed.
const DefaultRelayTimeout = 2 * time.Minute

type ceremonyIDKey struct{}

// WithCeremony returns a context bound to the given ceremony identifier.
// The relay uses the identifier to pair a provider ceremony with the HTTP
// requests that complete it.
func WithCeremony(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ceremonyIDKey{}, id)
}

// CeremonyID returns the ceremony identifier bound to the context.
func CeremonyID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ceremonyIDKey{}).(string)
	return id, ok
}

// relayDelivery is a browser response or a cancellation handed to a parked
// ceremony.
type relayDelivery struct {
	body     []byte
	canceled bool
}

// ceremonyOutcome is the terminal result of a ceremony goroutine.
type ceremonyOutcome struct {
	passkey *passkey.Passkey
	err     error
}

// relayCeremony tracks one in-flight ceremony. Each channel is buffered and
// written exactly once, so no writer ever blocks.
type relayCeremony struct {
	id        string
	request   chan json.RawMessage
	response  chan relayDelivery
	outcome   chan ceremonyOutcome
	delivered bool
}

// RelayClient is a CredentialClient that forwards ceremonies over HTTP
// instead of prompting a local authenticator. A ceremony goroutine parks in
// Create or Get until a handler delivers the browser's JSON response for
// the ceremony identifier bound to the context.
//
// A parked ceremony whose response never arrives is reclaimed when the
// relay timeout lapses; the ceremony fails the same way a browser ceremony
// does when its options timeout expires.
type RelayClient struct {
	mu      sync.Mutex
	pending map[string]*relayCeremony
	timeout time.Duration
}

// RelayOption customizes a RelayClient.
type RelayOption func(*RelayClient)

// WithRelayTimeout overrides how long a parked ceremony waits for the
// browser's response. It should be at least the configured ceremony
// timeout.
func WithRelayTimeout(timeout time.Duration) RelayOption {
	return func(c *RelayClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewRelayClient creates a relay with no pending ceremonies.
func NewRelayClient(opts ...RelayOption) *RelayClient {
	client := &RelayClient{
		pending: make(map[string]*relayCeremony),
		timeout: DefaultRelayTimeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Available reports true. Whether the browser on the far side of the relay
// can perform ceremonies is surfaced by the capabilities endpoint, not the
// relay itself.
func (c *RelayClient) Available(ctx context.Context) (bool, error) {
	return true, nil
}

// ConditionalMediationAvailable reports true for the same reason Available
// does.
func (c *RelayClient) ConditionalMediationAvailable(ctx context.Context) (bool, error) {
	return true, nil
}

// Create publishes the registration request and parks until the browser's
// attestation response is delivered.
func (c *RelayClient) Create(ctx context.Context, creation *protocol.CredentialCreation) ([]byte, error) {
	return c.exchange(ctx, creation, passkey.ErrDeclined)
}

// Get publishes the assertion request and parks until the browser's
// assertion response is delivered.
func (c *RelayClient) Get(ctx context.Context, assertion *protocol.CredentialAssertion) ([]byte, error) {
	return c.exchange(ctx, assertion, passkey.ErrDeclined)
}

// GetConditional is Get with autofill semantics: cancellation and timeout
// report that no credential was selected.
func (c *RelayClient) GetConditional(ctx context.Context, assertion *protocol.CredentialAssertion) ([]byte, error) {
	return c.exchange(ctx, assertion, passkey.ErrNoSelection)
}

// exchange publishes the ceremony request document and waits for the
// delivered response. A cancellation or timeout fails with the sentinel the
// ceremony kind maps those events to.
func (c *RelayClient) exchange(ctx context.Context, request any, abort error) ([]byte, error) {
	id, ok := CeremonyID(ctx)
	if !ok {
		return nil, ErrNoCeremony
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ceremony request: %w", err)
	}

	c.mu.Lock()
	ceremony, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return nil, ErrCeremonyNotFound
	}

	ceremony.request <- body

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case delivery := <-ceremony.response:
		if delivery.canceled {
			return nil, fmt.Errorf("%w: ceremony canceled", abort)
		}
		return delivery.body, nil
	case <-ctx.Done():
		c.drop(id)
		return nil, ctx.Err()
	case <-timer.C:
		c.drop(id)
		return nil, fmt.Errorf("%w: no response within %s", abort, c.timeout)
	}
}

// Pending reports the number of ceremonies currently tracked by the relay.
func (c *RelayClient) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// open registers a new pending ceremony.
func (c *RelayClient) open(id string) *relayCeremony {
	ceremony := &relayCeremony{
		id:       id,
		request:  make(chan json.RawMessage, 1),
		response: make(chan relayDelivery, 1),
		outcome:  make(chan ceremonyOutcome, 1),
	}

	c.mu.Lock()
	c.pending[id] = ceremony
	c.mu.Unlock()

	metrics.IncrementActiveCeremonies()
	return ceremony
}

// options waits for the ceremony goroutine to publish its request document.
// A ceremony that fails before reaching the client reports its error here
// and is reclaimed.
func (c *RelayClient) options(ctx context.Context, ceremony *relayCeremony) (json.RawMessage, error) {
	select {
	case body := <-ceremony.request:
		return body, nil
	case result := <-ceremony.outcome:
		c.drop(ceremony.id)
		if result.err != nil {
			return nil, result.err
		}
		return nil, fmt.Errorf("ceremony completed without a request")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// deliver hands the browser's response to the parked ceremony.
func (c *RelayClient) deliver(id string, body []byte) error {
	return c.send(id, relayDelivery{body: body})
}

// cancel aborts the parked ceremony.
func (c *RelayClient) cancel(id string) error {
	return c.send(id, relayDelivery{canceled: true})
}

func (c *RelayClient) send(id string, delivery relayDelivery) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ceremony, ok := c.pending[id]
	if !ok {
		return ErrCeremonyNotFound
	}
	if ceremony.delivered {
		return ErrCeremonyFinished
	}

	ceremony.delivered = true
	ceremony.response <- delivery
	return nil
}

// complete records the terminal result of a ceremony goroutine. A ceremony
// already reclaimed by timeout discards its result.
func (c *RelayClient) complete(id string, result *passkey.Passkey, err error) {
	c.mu.Lock()
	ceremony, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return
	}

	ceremony.outcome <- ceremonyOutcome{passkey: result, err: err}
}

// await waits for the ceremony's terminal result and reclaims it.
func (c *RelayClient) await(ctx context.Context, id string) (*passkey.Passkey, error) {
	c.mu.Lock()
	ceremony, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return nil, ErrCeremonyNotFound
	}

	select {
	case result := <-ceremony.outcome:
		c.drop(id)
		return result.passkey, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// drop removes a ceremony from the registry.
func (c *RelayClient) drop(id string) {
	c.mu.Lock()
	_, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()

	if ok {
		metrics.DecrementActiveCeremonies()
	}
}
