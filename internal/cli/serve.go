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

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/pkg/correlation"
	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	passkeyhttp "github.com/jeremyhahn/go-passkey/pkg/passkey/http"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the passkey server",
	Long: `Start the HTTPS server that relays WebAuthn registration and login
ceremonies to browser clients.

Without --config the server uses built-in development defaults: it
listens on localhost:8443 with a self-signed certificate and accepts
origins for the localhost relying party.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := getConfig().LoadServerConfig()
		if err != nil {
			handleError(fmt.Errorf("failed to load configuration: %w", err))
		}
		printVerbose("configuration loaded, listening on %s", cfg.ListenAddr())

		if err := runServer(cfg); err != nil {
			handleError(err)
		}
	},
}

// buildLogger constructs the server logger from the logging configuration
func buildLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Logging.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// runServer wires the passkey stack and serves it until shutdown
func runServer(cfg *config.Config) error {
	logger := buildLogger(cfg)

	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	relay := passkeyhttp.NewRelayClient(passkeyhttp.WithRelayTimeout(cfg.RelayTimeout()))

	provider, err := passkey.NewProvider(passkey.ProviderParams{
		Config: &cfg.Passkey,
		Client: relay,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize passkey provider: %w", err)
	}
	defer func() { _ = provider.Close() }()

	store := passkeyhttp.NewMemoryCredentialStore()

	var tokens passkey.TokenIssuer
	if cfg.Token.Enabled {
		secret, err := cfg.Token.SecretBytes()
		if err != nil {
			return fmt.Errorf("failed to initialize token issuer: %w", err)
		}
		issuerConfig := &passkey.JWTIssuerConfig{
			Secret:    secret,
			Issuer:    cfg.Token.Issuer,
			ExpiresIn: cfg.Token.TTLDuration(),
		}
		if cfg.Token.Audience != "" {
			issuerConfig.Audience = []string{cfg.Token.Audience}
		}
		issuer, err := passkey.NewJWTIssuer(issuerConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize token issuer: %w", err)
		}
		tokens = issuer
	}

	handler, err := passkeyhttp.NewHandler(passkeyhttp.HandlerParams{
		Provider: provider,
		Relay:    relay,
		Store:    store,
		Tokens:   tokens,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize passkey handler: %w", err)
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	})
	defer limiter.Stop()

	checker := health.NewChecker()
	checker.RegisterCheck("relay", func(ctx context.Context) health.CheckResult {
		return health.CheckResult{
			Name:    "relay",
			Status:  health.StatusHealthy,
			Message: fmt.Sprintf("%d ceremonies in flight", relay.Pending()),
		}
	})
	checker.RegisterCheck("credential_store", func(ctx context.Context) health.CheckResult {
		return health.CheckResult{
			Name:    "credential_store",
			Status:  health.StatusHealthy,
			Message: fmt.Sprintf("%d credentials stored", store.Count()),
		}
	})

	router := chi.NewRouter()
	router.Use(correlation.Middleware())
	if cfg.Metrics.Enabled {
		router.Use(metrics.HTTPMiddleware)
	}
	if cfg.RateLimit.Enabled {
		router.Use(ratelimit.Middleware(limiter))
	}

	router.Route("/api/v1/passkey", func(r chi.Router) {
		passkeyhttp.MountChi(r, handler)
	})
	router.Route("/health", func(r chi.Router) {
		health.MountChi(r, checker)
	})
	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	if cfg.Metrics.Enabled {
		collector := metrics.StartResourceCollector(context.Background(), 15*time.Second)
		defer collector.Stop()
	}

	tlsConfig, err := cfg.TLS.LoadTLSConfig(cfg.Server.Host)
	if err != nil {
		return fmt.Errorf("failed to load TLS configuration: %w", err)
	}

	// Handlers return promptly; ceremony waits park inside the relay
	// client, not in the HTTP handlers.
	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router,
		TLSConfig:    tlsConfig,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("starting passkey server",
			"addr", cfg.ListenAddr(),
			"domain", cfg.Passkey.Domain,
			"origins", strings.Join(cfg.Passkey.Origins, ","),
			"tls", tlsConfig != nil)
		if cfg.TLS.Enabled && cfg.TLS.SelfSigned {
			logger.Warn("serving with a self-signed certificate, browsers will warn")
		}
		var serveErr error
		if tlsConfig != nil {
			serveErr = server.ListenAndServeTLS("", "")
		} else {
			serveErr = server.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	checker.MarkStarted()

	shutdownCtx := setupSignalHandler(logger)

	select {
	case <-shutdownCtx.Done():
		logger.Info("shutting down passkey server")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	// Fail readiness first so load balancers drain traffic
	checker.MarkNotStarted()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(timeoutCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	logger.Info("passkey server stopped")
	return nil
}

// setupSignalHandler sets up signal handling for graceful shutdown
func setupSignalHandler(logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	return ctx
}
