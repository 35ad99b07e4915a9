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
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Handler provides HTTP handlers for passkey ceremonies. These handlers can
// be mounted on any HTTP router.
//
// A begin endpoint opens a ceremony on the relay, runs the provider
// operation in a background goroutine, and returns the ceremony request
// document with an X-Ceremony-Id header. The matching finish endpoint
// delivers the browser's response and reports the ceremony result.
type Handler struct {
	provider *passkey.Provider
	relay    *RelayClient
	store    CredentialStore
	tokens   passkey.TokenIssuer
	logger   *slog.Logger
}

// HandlerParams holds the dependencies for NewHandler.
type HandlerParams struct {
	// Provider orchestrates the ceremonies. Required, and must be backed
	// by the same RelayClient passed here.
	Provider *passkey.Provider

	// Relay pairs provider ceremonies with HTTP requests. Required.
	Relay *RelayClient

	// Store persists registered credentials. Required.
	Store CredentialStore

	// Tokens issues session tokens after successful ceremonies. Optional.
	Tokens passkey.TokenIssuer

	// Logger for handler events. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewHandler creates a passkey HTTP handler.
func NewHandler(params HandlerParams) (*Handler, error) {
	if params.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if params.Relay == nil {
		return nil, fmt.Errorf("relay client is required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("credential store is required")
	}

	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		provider: params.Provider,
		relay:    params.Relay,
		store:    params.Store,
		tokens:   params.Tokens,
		logger:   logger,
	}, nil
}

// BeginRegistration handles POST /registration/begin
//
// Request body:
//
//	{
//	    "user_name": "alice",
//	    "display_name": "Alice Example", // optional
//	    "user_id": "base64url-handle"    // optional
//	}
//
// Response: WebAuthn credential creation options
// Header: X-Ceremony-Id (ceremony identifier for FinishRegistration)
func (h *Handler) BeginRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	var req BeginRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}

	if req.UserName == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "user name is required")
		return
	}

	userID := passkey.UserHandleFromString(req.UserName)
	if req.UserID != "" {
		decoded, ok := h.decodeUserID(w, req.UserID)
		if !ok {
			return
		}
		userID = decoded
	}

	opts := make([]passkey.Option, 0, 2)
	if req.DisplayName != "" {
		opts = append(opts, passkey.WithDisplayName(req.DisplayName))
	}

	// Exclude credentials the user already registered so the browser
	// refuses a duplicate enrollment of the same authenticator.
	existing, err := h.store.UserCredentials(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load user credentials", "error", err)
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
		return
	}
	if len(existing) > 0 {
		opts = append(opts, passkey.WithExcludeCredentials(credentialIDs(existing)...))
	}

	h.beginCeremony(w, r, metrics.CeremonyRegistration, func(ctx context.Context) (*passkey.Passkey, error) {
		return h.provider.CreatePasskey(ctx, userID, req.UserName, opts...)
	})
}

// FinishRegistration handles POST /registration/finish
//
// Header: X-Ceremony-Id (from BeginRegistration)
// Request body: Attestation response from the browser
// Response: AuthResponse with the stored credential identifiers
func (h *Handler) FinishRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	registered, ok := h.finishCeremony(w, r)
	if !ok {
		return
	}

	if err := h.store.StoreCredential(r.Context(), registered); err != nil {
		h.logger.Error("failed to store credential", "error", err)
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "failed to store credential")
		return
	}

	h.writeAuthResponse(w, r, registered)
}

// BeginLogin handles POST /login/begin
//
// Request body:
//
//	{
//	    "user_id": "base64url-handle", // optional
//	    "user_name": "alice",          // optional, alternative to user_id
//	    "mediation": "conditional"     // optional
//	}
//
// With neither user_id nor user_name the ceremony runs discoverable: the
// browser offers any matching credential. "conditional" requests an
// autofill ceremony.
//
// Response: WebAuthn credential request options
// Header: X-Ceremony-Id (ceremony identifier for FinishLogin)
// Header: X-User-Id (if a user was identified)
func (h *Handler) BeginLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	var req BeginLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Allow empty body for discoverable credentials
		req = BeginLoginRequest{}
	}

	if req.Mediation != "" && req.Mediation != MediationConditional {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid mediation")
		return
	}

	var userID []byte
	if req.UserID != "" {
		decoded, ok := h.decodeUserID(w, req.UserID)
		if !ok {
			return
		}
		userID = decoded
	} else if req.UserName != "" {
		userID = passkey.UserHandleFromString(req.UserName)
	}

	var opts []passkey.Option
	if len(userID) > 0 {
		credentials, err := h.store.UserCredentials(r.Context(), userID)
		if err != nil {
			h.logger.Error("failed to load user credentials", "error", err)
			h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
			return
		}
		if len(credentials) == 0 {
			h.writeError(w, http.StatusBadRequest, ErrorCodeNoCredentials, "user has no registered credentials")
			return
		}

		opts = append(opts, passkey.WithAllowCredentials(credentialIDs(credentials)...))
		w.Header().Set(HeaderUserID, base64.RawURLEncoding.EncodeToString(userID))
	}

	ceremony := metrics.CeremonyLogin
	begin := h.provider.GetPasskey
	if req.Mediation == MediationConditional {
		ceremony = metrics.CeremonyConditional
		begin = h.provider.GetPasskeyConditional
	}

	h.beginCeremony(w, r, ceremony, func(ctx context.Context) (*passkey.Passkey, error) {
		return begin(ctx, opts...)
	})
}

// FinishLogin handles POST /login/finish
//
// Header: X-Ceremony-Id (from BeginLogin)
// Request body: Assertion response from the browser
// Response: AuthResponse for the verified credential
func (h *Handler) FinishLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	assertion, ok := h.finishCeremony(w, r)
	if !ok {
		return
	}

	stored, err := h.store.LookupCredential(r.Context(), assertion.CredentialID)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			h.writeError(w, http.StatusNotFound, ErrorCodeCredentialNotFound, "credential is not registered")
			return
		}
		h.logger.Error("failed to look up credential", "error", err)
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
		return
	}

	// A discoverable assertion names its owner; otherwise the stored
	// registration does.
	userHandle := []byte(assertion.UserHandle)
	if len(userHandle) == 0 {
		userHandle = stored.UserHandle
	}

	started := time.Now()
	_, err = h.provider.VerifyPasskey(r.Context(), assertion, userHandle, stored.PublicKey)
	recordCeremony(metrics.CeremonyVerification, started, err)
	if err != nil {
		h.handleCeremonyError(w, err)
		return
	}

	assertion.UserHandle = userHandle
	h.writeAuthResponse(w, r, assertion)
}

// CancelCeremony handles POST /ceremony/cancel
//
// Header: X-Ceremony-Id (from a begin endpoint)
// Response: {"canceled": true}
//
// The parked ceremony fails with the abort sentinel its kind maps
// cancellation to: declined for registration and blocking login, no
// selection for conditional login.
func (h *Handler) CancelCeremony(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	ceremonyID := r.Header.Get(HeaderCeremonyID)
	if ceremonyID == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidCeremony, "ceremony ID header is required")
		return
	}

	if err := h.relay.cancel(ceremonyID); err != nil {
		h.handleRelayError(w, err)
		return
	}

	// Reap the aborted ceremony; its error is the expected outcome.
	if _, err := h.relay.await(r.Context(), ceremonyID); err != nil {
		h.logger.Debug("ceremony canceled", "ceremony_id", ceremonyID, "error", err)
	}

	h.writeJSON(w, http.StatusOK, CancelResponse{Canceled: true})
}

// Capabilities handles GET /capabilities
//
// Response: relying party information and capability probes.
func (h *Handler) Capabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	cfg := h.provider.Config()
	h.writeJSON(w, http.StatusOK, CapabilitiesResponse{
		Available:            h.provider.PasskeysSupported(r.Context()),
		ConditionalMediation: h.provider.ConditionalMediationAvailable(r.Context()),
		RPID:                 cfg.Domain,
		AppName:              cfg.AppName,
	})
}

// beginCeremony opens a relay ceremony, runs the provider operation in a
// background goroutine, and writes the ceremony request document. The
// goroutine outlives this request so the finish endpoint can collect its
// result.
func (h *Handler) beginCeremony(w http.ResponseWriter, r *http.Request, ceremonyName string, run func(ctx context.Context) (*passkey.Passkey, error)) {
	ceremonyID := uuid.NewString()
	ceremony := h.relay.open(ceremonyID)
	ctx := WithCeremony(context.WithoutCancel(r.Context()), ceremonyID)

	go func() {
		started := time.Now()
		result, err := run(ctx)
		h.relay.complete(ceremonyID, result, err)
		recordCeremony(ceremonyName, started, err)
	}()

	body, err := h.relay.options(r.Context(), ceremony)
	if err != nil {
		h.handleCeremonyError(w, err)
		return
	}

	h.logger.Debug("ceremony opened", "ceremony", ceremonyName, "ceremony_id", ceremonyID)
	w.Header().Set(HeaderCeremonyID, ceremonyID)
	h.writeRaw(w, http.StatusOK, body)
}

// finishCeremony delivers the request body to the parked ceremony and
// waits for its result. A false return means the error response was
// already written.
func (h *Handler) finishCeremony(w http.ResponseWriter, r *http.Request) (*passkey.Passkey, bool) {
	ceremonyID := r.Header.Get(HeaderCeremonyID)
	if ceremonyID == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidCeremony, "ceremony ID header is required")
		return nil, false
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "failed to read request body")
		return nil, false
	}

	if err := h.relay.deliver(ceremonyID, body); err != nil {
		h.handleRelayError(w, err)
		return nil, false
	}

	result, err := h.relay.await(r.Context(), ceremonyID)
	if err != nil {
		h.handleCeremonyError(w, err)
		return nil, false
	}
	return result, true
}

// writeAuthResponse writes the credential identifiers, issuing a session
// token when an issuer is configured.
func (h *Handler) writeAuthResponse(w http.ResponseWriter, r *http.Request, result *passkey.Passkey) {
	resp := AuthResponse{
		UserID:       base64.RawURLEncoding.EncodeToString(result.UserHandle),
		CredentialID: base64.RawURLEncoding.EncodeToString(result.CredentialID),
	}

	if h.tokens != nil {
		token, err := h.tokens.IssueToken(r.Context(), result.UserHandle)
		if err != nil {
			h.logger.Error("failed to issue token", "error", err)
			h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "failed to issue token")
			return
		}
		resp.Token = token
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// decodeUserID decodes a base64url user handle, writing the error response
// on failure.
func (h *Handler) decodeUserID(w http.ResponseWriter, encoded string) ([]byte, bool) {
	userID, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid user ID encoding")
		return nil, false
	}
	return userID, true
}

// handleCeremonyError maps ceremony errors to HTTP responses.
func (h *Handler) handleCeremonyError(w http.ResponseWriter, err error) {
	switch {
	case passkey.IsDeclined(err):
		h.writeError(w, http.StatusBadRequest, ErrorCodeCeremonyDeclined, "ceremony declined")
	case passkey.IsNoSelection(err):
		h.writeError(w, http.StatusBadRequest, ErrorCodeNoSelection, "no credential selected")
	case passkey.IsVerificationFailed(err):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeVerificationFailed, "verification failed")
	case passkey.IsUnsupported(err):
		h.writeError(w, http.StatusNotImplemented, ErrorCodeUnsupported, "passkeys are not supported")
	case passkey.IsProviderClosed(err):
		h.writeError(w, http.StatusServiceUnavailable, ErrorCodeUnavailable, "provider is shut down")
	case errors.Is(err, passkey.ErrInvalidResponse):
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid authenticator response")
	case errors.Is(err, ErrCeremonyNotFound):
		h.writeError(w, http.StatusNotFound, ErrorCodeUnknownCeremony, "ceremony not found")
	default:
		h.logger.Error("ceremony failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
	}
}

// handleRelayError maps relay delivery errors to HTTP responses.
func (h *Handler) handleRelayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCeremonyNotFound):
		h.writeError(w, http.StatusNotFound, ErrorCodeUnknownCeremony, "ceremony not found")
	case errors.Is(err, ErrCeremonyFinished):
		h.writeError(w, http.StatusConflict, ErrorCodeCeremonyFinished, "ceremony already completed")
	default:
		h.logger.Error("relay delivery failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status)
	}
}

// writeRaw writes a pre-encoded JSON document.
func (h *Handler) writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.logger.Error("failed to write response", "error", err, "status", status)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// credentialIDs collects the credential identifiers from stored
// registrations.
func credentialIDs(credentials []*passkey.Passkey) [][]byte {
	ids := make([][]byte, 0, len(credentials))
	for _, credential := range credentials {
		ids = append(ids, credential.CredentialID)
	}
	return ids
}

// recordCeremony reports a ceremony outcome to the metrics registry.
func recordCeremony(ceremony string, started time.Time, err error) {
	duration := time.Since(started).Seconds()
	if err != nil {
		metrics.RecordCeremony(ceremony, metrics.StatusError, duration)
		metrics.RecordCeremonyError(ceremony, errorReason(err))
		return
	}
	metrics.RecordCeremony(ceremony, metrics.StatusSuccess, duration)
}

// errorReason buckets a ceremony error for the errors_total metric.
func errorReason(err error) string {
	switch {
	case passkey.IsDeclined(err):
		return "declined"
	case passkey.IsNoSelection(err):
		return "no_selection"
	case passkey.IsVerificationFailed(err):
		return "verification_failed"
	case passkey.IsProviderClosed(err):
		return "provider_closed"
	case passkey.IsUnsupported(err):
		return "unsupported"
	case passkey.IsTransport(err):
		return "transport"
	case errors.Is(err, passkey.ErrInvalidResponse):
		return "invalid_response"
	default:
		return "other"
	}
}
