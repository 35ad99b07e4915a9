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

// Package http bridges passkey ceremonies to browsers over HTTP.
//
// The ceremony library models an authenticator as a blocking
// CredentialClient. RelayClient implements that contract for browsers: a
// ceremony parks inside the provider call until the HTTP handler delivers
// the browser's JSON response for the same ceremony identifier.
//
// # Usage
//
// Wire a provider to a relay and mount the handler on your router:
//
//	relay := passkeyhttp.NewRelayClient()
//	provider, _ := passkey.NewProvider(passkey.ProviderParams{
//	    Config: cfg,
//	    Client: relay,
//	})
//	handler, _ := passkeyhttp.NewHandler(passkeyhttp.HandlerParams{
//	    Provider: provider,
//	    Relay:    relay,
//	    Store:    passkeyhttp.NewMemoryCredentialStore(),
//	})
//
//	// For chi router:
//	r.Route("/api/v1/passkey", func(r chi.Router) {
//	    passkeyhttp.MountChi(r, handler)
//	})
//
//	// For stdlib http.ServeMux:
//	passkeyhttp.MountStdlib(mux, "/api/v1/passkey", handler)
//
// # Endpoints
//
// The handler provides the following endpoints:
//
//	POST /registration/begin   - Start a registration ceremony
//	POST /registration/finish  - Complete registration with the attestation response
//	POST /login/begin          - Start an assertion ceremony (blocking or conditional)
//	POST /login/finish         - Complete login with the assertion response
//	POST /ceremony/cancel      - Abort a pending ceremony
//	GET  /capabilities         - Relying party info and capability probes
//
// # Headers
//
// The handlers use the following custom headers:
//
//	X-Ceremony-Id: Ceremony identifier returned by begin endpoints.
//	               Must be included in finish and cancel requests.
//	X-User-Id:     Resolved user handle, echoed by login begin.
//
// # Response Format
//
// All responses are JSON. Begin endpoints return the WebAuthn options
// document to pass to navigator.credentials.create or .get. Error
// responses have the format:
//
//	{
//	    "error": "error_code",
//	    "message": "Human-readable message"
//	}
package http
