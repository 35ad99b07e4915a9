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
	"github.com/jeremyhahn/go-passkey/internal/config"
)

// Config holds CLI flag state shared across commands
type Config struct {
	// ConfigFile is the path to the server configuration file
	ConfigFile string

	// OutputFormat is the output format (text, json)
	OutputFormat string

	// Verbose enables verbose output
	Verbose bool
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		OutputFormat: "text",
	}
}

// LoadServerConfig loads the server configuration from the configured
// file, or built-in development defaults when no file is given
func (c *Config) LoadServerConfig() (*config.Config, error) {
	return config.LoadOrDefault(c.ConfigFile)
}
