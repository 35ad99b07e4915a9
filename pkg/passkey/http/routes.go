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
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountChi mounts passkey routes on a chi router.
//
// Example:
//
//	handler, _ := passkeyhttp.NewHandler(params)
//	r.Route("/api/v1/passkey", func(r chi.Router) {
//	    passkeyhttp.MountChi(r, handler)
//	})
func MountChi(r chi.Router, h *Handler) {
	r.Post("/registration/begin", h.BeginRegistration)
	r.Post("/registration/finish", h.FinishRegistration)
	r.Post("/login/begin", h.BeginLogin)
	r.Post("/login/finish", h.FinishLogin)
	r.Post("/ceremony/cancel", h.CancelCeremony)
	r.Get("/capabilities", h.Capabilities)
}

// MuxRouter is an interface that matches *mux.Router from gorilla/mux.
// This avoids importing gorilla/mux as a direct dependency.
type MuxRouter interface {
	HandleFunc(path string, f func(http.ResponseWriter, *http.Request)) MuxRoute
}

// MuxRoute is an interface that matches *mux.Route from gorilla/mux.
type MuxRoute interface {
	Methods(methods ...string) MuxRoute
}

// MountMux mounts passkey routes on a gorilla/mux router.
//
// Example:
//
//	handler, _ := passkeyhttp.NewHandler(params)
//	passkeyhttp.MountMux(r.PathPrefix("/api/v1/passkey").Subrouter(), handler)
func MountMux(r MuxRouter, h *Handler) {
	r.HandleFunc("/registration/begin", h.BeginRegistration).Methods("POST")
	r.HandleFunc("/registration/finish", h.FinishRegistration).Methods("POST")
	r.HandleFunc("/login/begin", h.BeginLogin).Methods("POST")
	r.HandleFunc("/login/finish", h.FinishLogin).Methods("POST")
	r.HandleFunc("/ceremony/cancel", h.CancelCeremony).Methods("POST")
	r.HandleFunc("/capabilities", h.Capabilities).Methods("GET")
}

// MountStdlib mounts passkey routes on a stdlib http.ServeMux.
// The prefix should not include a trailing slash.
//
// Method checking is done in the handlers, so the mux does not need
// method patterns.
//
// Example:
//
//	handler, _ := passkeyhttp.NewHandler(params)
//	passkeyhttp.MountStdlib(mux, "/api/v1/passkey", handler)
func MountStdlib(mux *http.ServeMux, prefix string, h *Handler) {
	mux.HandleFunc(prefix+"/registration/begin", h.BeginRegistration)
	mux.HandleFunc(prefix+"/registration/finish", h.FinishRegistration)
	mux.HandleFunc(prefix+"/login/begin", h.BeginLogin)
	mux.HandleFunc(prefix+"/login/finish", h.FinishLogin)
	mux.HandleFunc(prefix+"/ceremony/cancel", h.CancelCeremony)
	mux.HandleFunc(prefix+"/capabilities", h.Capabilities)
}

// RouteEntry represents a single route with its method, path, and handler.
type RouteEntry struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Routes returns a slice of route entries for manual mounting.
// Useful for frameworks not directly supported.
//
// Example:
//
//	handler, _ := passkeyhttp.NewHandler(params)
//	for _, route := range handler.Routes() {
//	    router.Add(route.Method, "/passkey"+route.Path, route.Handler)
//	}
func (h *Handler) Routes() []RouteEntry {
	return []RouteEntry{
		{Method: "POST", Path: "/registration/begin", Handler: h.BeginRegistration},
		{Method: "POST", Path: "/registration/finish", Handler: h.FinishRegistration},
		{Method: "POST", Path: "/login/begin", Handler: h.BeginLogin},
		{Method: "POST", Path: "/login/finish", Handler: h.FinishLogin},
		{Method: "POST", Path: "/ceremony/cancel", Handler: h.CancelCeremony},
		{Method: "GET", Path: "/capabilities", Handler: h.Capabilities},
	}
}

// HandlerFunc returns a single http.HandlerFunc that routes based on path.
// This is useful when you want a single handler for a path prefix.
//
// Note: This requires the request path to have the prefix already stripped.
//
// Example:
//
//	handler, _ := passkeyhttp.NewHandler(params)
//	mux.Handle("/api/v1/passkey/", http.StripPrefix("/api/v1/passkey", handler.HandlerFunc()))
func (h *Handler) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/registration/begin":
			h.BeginRegistration(w, r)
		case "/registration/finish":
			h.FinishRegistration(w, r)
		case "/login/begin":
			h.BeginLogin(w, r)
		case "/login/finish":
			h.FinishLogin(w, r)
		case "/ceremony/cancel":
			h.CancelCeremony(w, r)
		case "/capabilities":
			h.Capabilities(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}
