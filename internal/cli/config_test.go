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
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.ConfigFile != "" {
		t.Errorf("ConfigFile should be empty by default, got %v", cfg.ConfigFile)
	}
	if cfg.OutputFormat != "text" {
		t.Errorf("OutputFormat = %v, want text", cfg.OutputFormat)
	}
	if cfg.Verbose {
		t.Error("Verbose should be false by default")
	}
}

func TestLoadServerConfig_EmptyPath(t *testing.T) {
	cfg := NewConfig()

	serverCfg, err := cfg.LoadServerConfig()
	if err != nil {
		t.Fatalf("LoadServerConfig() returned error: %v", err)
	}

	if serverCfg.ListenAddr() != "localhost:8443" {
		t.Errorf("ListenAddr() = %v, want localhost:8443", serverCfg.ListenAddr())
	}
	if !serverCfg.TLS.SelfSigned {
		t.Error("development defaults should use a self-signed certificate")
	}
	if serverCfg.Passkey.Domain != "localhost" {
		t.Errorf("Passkey.Domain = %v, want localhost", serverCfg.Passkey.Domain)
	}
}

func TestLoadServerConfig_WithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
passkey:
  app_name: "Example Corp"
  domain: "example.com"
  origins:
    - "https://example.com"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg := NewConfig()
	cfg.ConfigFile = path

	serverCfg, err := cfg.LoadServerConfig()
	if err != nil {
		t.Fatalf("LoadServerConfig() returned error: %v", err)
	}

	if serverCfg.Passkey.Domain != "example.com" {
		t.Errorf("Passkey.Domain = %v, want example.com", serverCfg.Passkey.Domain)
	}
	if serverCfg.Passkey.AppName != "Example Corp" {
		t.Errorf("Passkey.AppName = %v, want Example Corp", serverCfg.Passkey.AppName)
	}
}

func TestLoadServerConfig_MissingFile(t *testing.T) {
	cfg := NewConfig()
	cfg.ConfigFile = filepath.Join(t.TempDir(), "missing.yaml")

	if _, err := cfg.LoadServerConfig(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestPrinter_Text(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter("text", &buf)

	if err := printer.PrintSuccess("registration complete"); err != nil {
		t.Fatalf("PrintSuccess() returned error: %v", err)
	}
	if buf.String() != "registration complete\n" {
		t.Errorf("PrintSuccess output = %q", buf.String())
	}

	buf.Reset()
	if err := printer.PrintError(errors.New("ceremony timed out")); err != nil {
		t.Fatalf("PrintError() returned error: %v", err)
	}
	if buf.String() != "Error: ceremony timed out\n" {
		t.Errorf("PrintError output = %q", buf.String())
	}
}

func TestPrinter_JSON(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter("json", &buf)

	if err := printer.PrintSuccess("registration complete"); err != nil {
		t.Fatalf("PrintSuccess() returned error: %v", err)
	}
	var success map[string]string
	if err := json.Unmarshal(buf.Bytes(), &success); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	if success["status"] != "success" {
		t.Errorf("status = %v, want success", success["status"])
	}
	if success["message"] != "registration complete" {
		t.Errorf("message = %v, want registration complete", success["message"])
	}

	buf.Reset()
	if err := printer.PrintError(errors.New("ceremony timed out")); err != nil {
		t.Fatalf("PrintError() returned error: %v", err)
	}
	var failure map[string]string
	if err := json.Unmarshal(buf.Bytes(), &failure); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	if failure["status"] != "error" {
		t.Errorf("status = %v, want error", failure["status"])
	}
	if failure["error"] != "ceremony timed out" {
		t.Errorf("error = %v, want ceremony timed out", failure["error"])
	}
}
