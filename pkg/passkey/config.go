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
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Config describes the relying party and the ceremony-shaping preferences.
// A Config is immutable per ceremony: the provider snapshots it at
// construction, and a per-call override supplied with WithConfig is cloned
// and validated before use.
type Config struct {
	// AppName is the human-readable relying party name shown by the client
	// during ceremonies. Example: "Example Corp"
	AppName string `yaml:"app_name" json:"app_name" mapstructure:"app_name"`

	// Domain is the relying party identifier: the bare registrable domain
	// with no scheme or path. Example: "example.com"
	Domain string `yaml:"domain" json:"domain" mapstructure:"domain"`

	// Origins are the allowed origins, as exact scheme+host+port strings.
	// Domain must equal the effective domain of every entry; mismatches are
	// not validated here and surface only as verification failures.
	// Example: []string{"https://example.com", "https://www.example.com"}
	Origins []string `yaml:"origins" json:"origins" mapstructure:"origins"`

	// Timeout is the advisory ceremony timeout forwarded to the client in
	// each request. The provider itself never enforces it: bounding the wait
	// is the caller's concern via context cancellation.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`

	// UserVerification specifies the user verification requirement.
	// Options: "required", "preferred", "discouraged"
	// Default: "preferred"
	UserVerification string `yaml:"user_verification" json:"user_verification" mapstructure:"user_verification"`

	// AttestationPreference specifies the attestation conveyance preference.
	// Options: "none", "indirect", "direct", "enterprise"
	// Default: "none"
	AttestationPreference string `yaml:"attestation" json:"attestation" mapstructure:"attestation"`

	// ResidentKeyRequirement specifies whether to require discoverable
	// credentials (passkeys).
	// Options: "required", "preferred", "discouraged"
	// Default: "preferred"
	ResidentKeyRequirement string `yaml:"resident_key" json:"resident_key" mapstructure:"resident_key"`

	// AuthenticatorAttachment limits the type of authenticators allowed.
	// Options: "platform", "cross-platform", "" (any)
	// Default: "" (any)
	AuthenticatorAttachment string `yaml:"authenticator_attachment" json:"authenticator_attachment" mapstructure:"authenticator_attachment"`

	// Algorithms is the ordered list of acceptable public-key algorithms for
	// registration, most preferred first.
	// Options: "ES256", "ES384", "ES512", "EdDSA", "RS256", "RS384", "RS512"
	// Default: ["ES256", "EdDSA", "RS256"]
	Algorithms []string `yaml:"algorithms" json:"algorithms" mapstructure:"algorithms"`

	// Debug enables debug logging in the verification engine.
	Debug bool `yaml:"debug" json:"debug" mapstructure:"debug"`
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.AppName == "" {
		return fmt.Errorf("AppName is required")
	}
	if c.Domain == "" {
		return fmt.Errorf("Domain is required")
	}
	if len(c.Origins) == 0 {
		return fmt.Errorf("at least one origin is required")
	}

	// Validate user verification
	switch c.UserVerification {
	case "", "required", "preferred", "discouraged":
		// Valid
	default:
		return fmt.Errorf("invalid user verification: %s", c.UserVerification)
	}

	// Validate attestation preference
	switch c.AttestationPreference {
	case "", "none", "indirect", "direct", "enterprise":
		// Valid
	default:
		return fmt.Errorf("invalid attestation preference: %s", c.AttestationPreference)
	}

	// Validate resident key requirement
	switch c.ResidentKeyRequirement {
	case "", "required", "preferred", "discouraged":
		// Valid
	default:
		return fmt.Errorf("invalid resident key requirement: %s", c.ResidentKeyRequirement)
	}

	// Validate authenticator attachment
	switch c.AuthenticatorAttachment {
	case "", "platform", "cross-platform":
		// Valid
	default:
		return fmt.Errorf("invalid authenticator attachment: %s", c.AuthenticatorAttachment)
	}

	// Validate algorithms
	for _, alg := range c.Algorithms {
		if _, ok := coseAlgorithms[alg]; !ok {
			return fmt.Errorf("invalid algorithm: %s", alg)
		}
	}

	return nil
}

// SetDefaults sets default values for unset configuration fields.
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.UserVerification == "" {
		c.UserVerification = "preferred"
	}
	if c.AttestationPreference == "" {
		c.AttestationPreference = "none"
	}
	if c.ResidentKeyRequirement == "" {
		c.ResidentKeyRequirement = "preferred"
	}
	if len(c.Algorithms) == 0 {
		c.Algorithms = []string{"ES256", "EdDSA", "RS256"}
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Origins = append([]string(nil), c.Origins...)
	clone.Algorithms = append([]string(nil), c.Algorithms...)
	return &clone
}

// ToWebAuthnConfig converts the Config to the go-webauthn library's
// configuration. Ceremony timeout enforcement stays disabled: sessions built
// by the provider live exactly as long as the ceremony call, so expiry is
// governed by the caller's context rather than the engine.
func (c *Config) ToWebAuthnConfig() *webauthn.Config {
	cfg := &webauthn.Config{
		RPID:          c.Domain,
		RPDisplayName: c.AppName,
		RPOrigins:     c.Origins,
		Debug:         c.Debug,
	}

	if c.Timeout > 0 {
		cfg.Timeouts = webauthn.TimeoutsConfig{
			Login: webauthn.TimeoutConfig{
				Enforce:    false,
				Timeout:    c.Timeout,
				TimeoutUVD: c.Timeout,
			},
			Registration: webauthn.TimeoutConfig{
				Enforce:    false,
				Timeout:    c.Timeout,
				TimeoutUVD: c.Timeout,
			},
		}
	}

	// Set attestation preference
	switch c.AttestationPreference {
	case "none":
		cfg.AttestationPreference = protocol.PreferNoAttestation
	case "indirect":
		cfg.AttestationPreference = protocol.PreferIndirectAttestation
	case "direct":
		cfg.AttestationPreference = protocol.PreferDirectAttestation
	case "enterprise":
		cfg.AttestationPreference = protocol.PreferEnterpriseAttestation
	}

	// Set authenticator selection
	cfg.AuthenticatorSelection = c.authenticatorSelection()

	return cfg
}

// authenticatorSelection maps the string preferences to protocol constants.
func (c *Config) authenticatorSelection() protocol.AuthenticatorSelection {
	selection := protocol.AuthenticatorSelection{}

	switch c.UserVerification {
	case "required":
		selection.UserVerification = protocol.VerificationRequired
	case "preferred":
		selection.UserVerification = protocol.VerificationPreferred
	case "discouraged":
		selection.UserVerification = protocol.VerificationDiscouraged
	}

	switch c.ResidentKeyRequirement {
	case "required":
		selection.ResidentKey = protocol.ResidentKeyRequirementRequired
	case "preferred":
		selection.ResidentKey = protocol.ResidentKeyRequirementPreferred
	case "discouraged":
		selection.ResidentKey = protocol.ResidentKeyRequirementDiscouraged
	}

	switch c.AuthenticatorAttachment {
	case "platform":
		selection.AuthenticatorAttachment = protocol.Platform
	case "cross-platform":
		selection.AuthenticatorAttachment = protocol.CrossPlatform
	}

	return selection
}

// conveyancePreference returns the protocol form of the attestation
// preference for creation requests.
func (c *Config) conveyancePreference() protocol.ConveyancePreference {
	switch c.AttestationPreference {
	case "indirect":
		return protocol.PreferIndirectAttestation
	case "direct":
		return protocol.PreferDirectAttestation
	case "enterprise":
		return protocol.PreferEnterpriseAttestation
	default:
		return protocol.PreferNoAttestation
	}
}

// userVerificationRequirement returns the protocol form of the user
// verification preference for retrieval requests.
func (c *Config) userVerificationRequirement() protocol.UserVerificationRequirement {
	switch c.UserVerification {
	case "required":
		return protocol.VerificationRequired
	case "discouraged":
		return protocol.VerificationDiscouraged
	default:
		return protocol.VerificationPreferred
	}
}

// coseAlgorithms maps configuration algorithm names to COSE identifiers.
var coseAlgorithms = map[string]webauthncose.COSEAlgorithmIdentifier{
	"ES256": webauthncose.AlgES256,
	"ES384": webauthncose.AlgES384,
	"ES512": webauthncose.AlgES512,
	"EdDSA": webauthncose.AlgEdDSA,
	"RS256": webauthncose.AlgRS256,
	"RS384": webauthncose.AlgRS384,
	"RS512": webauthncose.AlgRS512,
}

// credentialParameters returns the ordered algorithm list as wire credential
// parameters, first-listed most preferred.
func (c *Config) credentialParameters() []protocol.CredentialParameter {
	params := make([]protocol.CredentialParameter, 0, len(c.Algorithms))
	for _, alg := range c.Algorithms {
		id, ok := coseAlgorithms[alg]
		if !ok {
			continue
		}
		params = append(params, protocol.CredentialParameter{
			Type:      protocol.PublicKeyCredentialType,
			Algorithm: id,
		})
	}
	return params
}

// timeoutMilliseconds returns the advisory timeout in the milliseconds form
// the wire request expects.
func (c *Config) timeoutMilliseconds() int {
	return int(c.Timeout / time.Millisecond)
}
