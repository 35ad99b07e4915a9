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

package health

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ProbeResponse is the JSON body returned by the probe endpoints.
type ProbeResponse struct {
	// Status is the overall health status.
	Status Status `json:"status"`
	// Message provides additional context.
	Message string `json:"message,omitempty"`
	// Checks contains individual check results (readiness only).
	Checks []CheckResult `json:"checks,omitempty"`
}

// MountChi mounts the probe endpoints on a chi router.
//
// Example:
//
//	r.Route("/health", func(r chi.Router) {
//	    health.MountChi(r, checker)
//	})
func MountChi(r chi.Router, c *Checker) {
	r.Get("/live", c.LiveHandler)
	r.Get("/ready", c.ReadyHandler)
	r.Get("/startup", c.StartupHandler)
}

// LiveHandler handles GET /health/live requests. It returns 503 only
// when the service is in an unrecoverable state.
func (c *Checker) LiveHandler(w http.ResponseWriter, r *http.Request) {
	result := c.Live(r.Context())

	status := http.StatusOK
	if result.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	writeProbe(w, status, ProbeResponse{
		Status:  result.Status,
		Message: result.Message,
	})
}

// ReadyHandler handles GET /health/ready requests. It runs all
// registered readiness checks and returns 503 when the aggregate
// status is unhealthy. A degraded service still returns 200 and keeps
// receiving traffic.
func (c *Checker) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	results := c.Ready(r.Context())
	overall := AggregateStatus(results)

	resp := ProbeResponse{
		Status: overall,
		Checks: results,
	}
	switch overall {
	case StatusHealthy:
		resp.Message = "All checks passed"
	case StatusDegraded:
		resp.Message = "Service is degraded"
	case StatusUnhealthy:
		resp.Message = "One or more checks failed"
	}

	status := http.StatusOK
	if overall == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	writeProbe(w, status, resp)
}

// StartupHandler handles GET /health/startup requests. It returns 503
// until MarkStarted has been called.
func (c *Checker) StartupHandler(w http.ResponseWriter, r *http.Request) {
	result := c.Startup(r.Context())

	status := http.StatusOK
	if result.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	writeProbe(w, status, ProbeResponse{
		Status:  result.Status,
		Message: result.Message,
	})
}

func writeProbe(w http.ResponseWriter, status int, resp ProbeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
