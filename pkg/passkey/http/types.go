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

// HeaderCeremonyID is the header name carrying the ceremony identifier.
// Begin endpoints return it; finish and cancel endpoints require it.
const HeaderCeremonyID = "X-Ceremony-Id"

// HeaderUserID is the header name for the resolved user identity.
const HeaderUserID = "X-User-Id"

// MediationConditional requests a conditional (autofill) assertion ceremony.
const MediationConditional = "conditional"

// BeginRegistrationRequest is the request body for starting registration.
type BeginRegistrationRequest struct {
	// UserName is the account name to register (required).
	UserName string `json:"user_name"`

	// DisplayName is the human-friendly name (optional, defaults to UserName).
	DisplayName string `json:"display_name,omitempty"`

	// UserID is the base64url-encoded user handle (optional). When absent
	// the handle is derived from UserName.
	UserID string `json:"user_id,omitempty"`
}

// BeginLoginRequest is the request body for starting authentication.
type BeginLoginRequest struct {
	// UserID is the base64url-encoded user handle (optional).
	UserID string `json:"user_id,omitempty"`

	// UserName is the account name (optional, alternative to UserID).
	UserName string `json:"user_name,omitempty"`

	// Mediation selects the ceremony style. Empty requests a blocking
	// ceremony; "conditional" requests an autofill ceremony.
	Mediation string `json:"mediation,omitempty"`
}

// AuthResponse is the response after a successful registration or login.
type AuthResponse struct {
	// Token is a session token, present when the handler has a token issuer.
	Token string `json:"token,omitempty"`

	// UserID is the base64url-encoded user handle.
	UserID string `json:"user_id"`

	// CredentialID is the base64url-encoded credential identifier.
	CredentialID string `json:"credential_id"`
}

// CancelResponse is the response after aborting a pending ceremony.
type CancelResponse struct {
	// Canceled indicates the ceremony was aborted.
	Canceled bool `json:"canceled"`
}

// CapabilitiesResponse reports relying party information and client
// capability probes.
type CapabilitiesResponse struct {
	// Available indicates whether passkey ceremonies can be performed.
	Available bool `json:"available"`

	// ConditionalMediation indicates whether autofill ceremonies are
	// supported.
	ConditionalMediation bool `json:"conditional_mediation"`

	// RPID is the relying party identifier.
	RPID string `json:"rp_id"`

	// AppName is the relying party display name.
	AppName string `json:"app_name"`
}

// ErrorResponse is the response format for errors.
type ErrorResponse struct {
	// Error is the error code.
	Error string `json:"error"`

	// Message is a human-readable error message.
	Message string `json:"message"`
}

// Error codes returned in ErrorResponse.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidCeremony    = "invalid_ceremony"
	ErrorCodeUnknownCeremony    = "unknown_ceremony"
	ErrorCodeCeremonyFinished   = "ceremony_finished"
	ErrorCodeCeremonyDeclined   = "ceremony_declined"
	ErrorCodeNoSelection        = "no_selection"
	ErrorCodeNoCredentials      = "no_credentials"
	ErrorCodeCredentialNotFound = "credential_not_found"
	ErrorCodeVerificationFailed = "verification_failed"
	ErrorCodeUnsupported        = "unsupported"
	ErrorCodeUnavailable        = "unavailable"
	ErrorCodeInternalError      = "internal_error"
)
