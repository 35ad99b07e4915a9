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

// ceremonyOptions carries the per-call overrides applied on top of the
// provider defaults.
type ceremonyOptions struct {
	config      *Config
	displayName string
	exclude     [][]byte
	allow       [][]byte
}

// Option configures a single ceremony call. Options that don't apply to an
// operation are ignored: WithDisplayName and WithExcludeCredentials apply to
// registration, WithAllowCredentials to retrieval, WithConfig to all.
type Option func(*ceremonyOptions)

// WithConfig overrides the provider's relying-party configuration for this
// ceremony only. The override is cloned, defaulted, and validated before use.
func WithConfig(cfg *Config) Option {
	return func(o *ceremonyOptions) {
		o.config = cfg
	}
}

// WithDisplayName sets the display name presented by the client during a
// registration ceremony. Defaults to the user name when unset.
func WithDisplayName(name string) Option {
	return func(o *ceremonyOptions) {
		o.displayName = name
	}
}

// WithExcludeCredentials supplies credential IDs the client must refuse to
// re-register. Empty identifiers are filtered out; an empty filtered list is
// omitted from the request.
func WithExcludeCredentials(ids ...[]byte) Option {
	return func(o *ceremonyOptions) {
		o.exclude = ids
	}
}

// WithAllowCredentials restricts a retrieval ceremony to the given credential
// IDs, as needed for non-discoverable credentials such as external security
// keys. Empty identifiers are filtered out; when the filtered list is empty
// the request omits it so the client can surface any discoverable credential.
func WithAllowCredentials(ids ...[]byte) Option {
	return func(o *ceremonyOptions) {
		o.allow = ids
	}
}

// applyOptions folds the option list into a ceremonyOptions value.
func applyOptions(opts []Option) *ceremonyOptions {
	options := &ceremonyOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
