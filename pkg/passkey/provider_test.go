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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig returns a minimal valid relying party configuration.
func testConfig() *Config {
	return &Config{
		AppName: "Example Corp",
		Domain:  "example.com",
		Origins: []string{"https://example.com"},
	}
}

// stubClient is a configurable CredentialClient for tests. Unset function
// fields fail with a plain error.
type stubClient struct {
	available   bool
	conditional bool
	availErr    error
	createFn    func(ctx context.Context, creation *protocol.CredentialCreation) ([]byte, error)
	getFn       func(ctx context.Context, assertion *protocol.CredentialAssertion) ([]byte, error)
}

func (s *stubClient) Available(ctx context.Context) (bool, error) {
	return s.available, s.availErr
}

func (s *stubClient) ConditionalMediationAvailable(ctx context.Context) (bool, error) {
	return s.conditional, s.availErr
}

func (s *stubClient) Create(ctx context.Context, creation *protocol.CredentialCreation) ([]byte, error) {
	if s.createFn == nil {
		return nil, fmt.Errorf("create not configured")
	}
	return s.createFn(ctx, creation)
}

func (s *stubClient) Get(ctx context.Context, assertion *protocol.CredentialAssertion) ([]byte, error) {
	if s.getFn == nil {
		return nil, fmt.Errorf("get not configured")
	}
	return s.getFn(ctx, assertion)
}

func (s *stubClient) GetConditional(ctx context.Context, assertion *protocol.CredentialAssertion) ([]byte, error) {
	return s.Get(ctx, assertion)
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		params  ProviderParams
		wantErr bool
		errIs   error
	}{
		{
			name: "valid with client",
			params: ProviderParams{
				Config: testConfig(),
				Client: &stubClient{available: true},
			},
			wantErr: false,
		},
		{
			name: "valid with factory",
			params: ProviderParams{
				Config: testConfig(),
				ClientFactory: func(ctx context.Context) (CredentialClient, error) {
					return &stubClient{available: true}, nil
				},
			},
			wantErr: false,
		},
		{
			name:    "missing config",
			params:  ProviderParams{Client: &stubClient{}},
			wantErr: true,
		},
		{
			name:    "missing client and factory",
			params:  ProviderParams{Config: testConfig()},
			wantErr: true,
			errIs:   ErrClientRequired,
		},
		{
			name: "invalid config",
			params: ProviderParams{
				Config: &Config{AppName: "Example"},
				Client: &stubClient{},
			},
			wantErr: true,
			errIs:   ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.params)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errIs != nil {
					assert.True(t, errors.Is(err, tt.errIs))
				}
				return
			}
			require.NoError(t, err)
			require.NotNil(t, provider)
			defer provider.Close()

			// Defaults were applied during construction.
			assert.Equal(t, 60*time.Second, provider.Config().Timeout)
			assert.Equal(t, "preferred", provider.Config().UserVerification)
		})
	}
}

func TestProvider_Close_Idempotent(t *testing.T) {
	provider, err := NewProvider(ProviderParams{
		Config: testConfig(),
		Client: &stubClient{},
	})
	require.NoError(t, err)

	assert.NoError(t, provider.Close())
	assert.NoError(t, provider.Close())
}

func TestProvider_ClosedFailsFast(t *testing.T) {
	ctx := context.Background()

	provider, err := NewProvider(ProviderParams{
		Config: testConfig(),
		Client: &stubClient{available: true, conditional: true},
	})
	require.NoError(t, err)
	require.NoError(t, provider.Close())

	_, err = provider.CreatePasskey(ctx, []byte("user-1"), "user-1")
	assert.True(t, IsProviderClosed(err))

	_, err = provider.GetPasskey(ctx)
	assert.True(t, IsProviderClosed(err))

	_, err = provider.GetPasskeyConditional(ctx)
	assert.True(t, IsProviderClosed(err))

	ok, err := provider.VerifyPasskey(ctx, &Passkey{}, []byte("user-1"), []byte("key"))
	assert.False(t, ok)
	assert.True(t, IsProviderClosed(err))

	// Probes collapse to false rather than erroring.
	assert.False(t, provider.PasskeysSupported(ctx))
	assert.False(t, provider.ConditionalMediationAvailable(ctx))
}

func TestProvider_ClientFactoryRunsOnce(t *testing.T) {
	ctx := context.Background()

	var calls atomic.Int32
	provider, err := NewProvider(ProviderParams{
		Config: testConfig(),
		ClientFactory: func(ctx context.Context) (CredentialClient, error) {
			calls.Add(1)
			return &stubClient{available: true, conditional: true}, nil
		},
	})
	require.NoError(t, err)
	defer provider.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, provider.PasskeysSupported(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestProvider_ClientFactoryErrorLatches(t *testing.T) {
	ctx := context.Background()

	var calls atomic.Int32
	provider, err := NewProvider(ProviderParams{
		Config: testConfig(),
		ClientFactory: func(ctx context.Context) (CredentialClient, error) {
			calls.Add(1)
			return nil, fmt.Errorf("no platform authenticator")
		},
	})
	require.NoError(t, err)
	defer provider.Close()

	_, err = provider.GetPasskey(ctx)
	assert.True(t, IsUnsupported(err))

	// The failed initialization is latched, not retried.
	_, err = provider.CreatePasskey(ctx, []byte("user-1"), "user-1")
	assert.True(t, IsUnsupported(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestProvider_NilClientFromFactory(t *testing.T) {
	provider, err := NewProvider(ProviderParams{
		Config: testConfig(),
		ClientFactory: func(ctx context.Context) (CredentialClient, error) {
			return nil, nil
		},
	})
	require.NoError(t, err)
	defer provider.Close()

	_, err = provider.GetPasskey(context.Background())
	assert.True(t, IsUnsupported(err))
}

func TestProvider_PasskeysSupported(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		client      *stubClient
		supported   bool
		conditional bool
	}{
		{
			name:        "fully available",
			client:      &stubClient{available: true, conditional: true},
			supported:   true,
			conditional: true,
		},
		{
			name:        "blocking only",
			client:      &stubClient{available: true},
			supported:   true,
			conditional: false,
		},
		{
			name:        "probe error collapses to false",
			client:      &stubClient{availErr: fmt.Errorf("probe failed")},
			supported:   false,
			conditional: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(ProviderParams{
				Config: testConfig(),
				Client: tt.client,
			})
			require.NoError(t, err)
			defer provider.Close()

			assert.Equal(t, tt.supported, provider.PasskeysSupported(ctx))
			assert.Equal(t, tt.conditional, provider.ConditionalMediationAvailable(ctx))
		})
	}
}

func TestProvider_CloseAbortsInFlightCeremony(t *testing.T) {
	started := make(chan struct{})
	client := &stubClient{
		getFn: func(ctx context.Context, assertion *protocol.CredentialAssertion) ([]byte, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	provider, err := NewProvider(ProviderParams{
		Config: testConfig(),
		Client: client,
	})
	require.NoError(t, err)

	result := make(chan error, 1)
	go func() {
		_, err := provider.GetPasskey(context.Background())
		result <- err
	}()

	// Wait for the ceremony to suspend on the client, then close.
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("ceremony never reached the client")
	}
	require.NoError(t, provider.Close())

	select {
	case err := <-result:
		assert.True(t, IsProviderClosed(err), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("ceremony was not aborted by Close")
	}
}

func TestProvider_CallerContextCancelsCeremony(t *testing.T) {
	started := make(chan struct{})
	client := &stubClient{
		getFn: func(ctx context.Context, assertion *protocol.CredentialAssertion) ([]byte, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	provider, err := NewProvider(ProviderParams{
		Config: testConfig(),
		Client: client,
	})
	require.NoError(t, err)
	defer provider.Close()

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := provider.GetPasskey(ctx)
		result <- err
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("ceremony never reached the client")
	}
	cancel()

	select {
	case err := <-result:
		// The provider is still open, so the cancellation is the caller's.
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.False(t, IsProviderClosed(err))
	case <-time.After(5 * time.Second):
		t.Fatal("ceremony was not aborted by caller cancellation")
	}
}

func TestProvider_CeremonyConfigOverride(t *testing.T) {
	ctx := context.Background()

	provider, err := NewProvider(ProviderParams{
		Config: testConfig(),
		Client: &stubClient{},
	})
	require.NoError(t, err)
	defer provider.Close()

	// An invalid per-call override fails before the authenticator is
	// prompted.
	_, err = provider.CreatePasskey(ctx, []byte("user-1"), "user-1",
		WithConfig(&Config{AppName: "Example"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
