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
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information (set at build time)
var (
	// Version is the semantic version
	Version = "dev" // Set via -ldflags "-X github.com/jeremyhahn/go-passkey/internal/cli.Version=x.y.z"

	// GitCommit is the git commit hash
	GitCommit = "unknown" // Set via -ldflags "-X github.com/jeremyhahn/go-passkey/internal/cli.GitCommit=abc123"

	// BuildDate is the build timestamp
	BuildDate = "unknown" // Set via -ldflags "-X github.com/jeremyhahn/go-passkey/internal/cli.BuildDate=2025-01-01"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print version, commit, and build information for passkeyd.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := getConfig()
		printer := NewPrinter(cfg.OutputFormat, cmd.OutOrStdout())

		if printer.format == OutputFormatJSON {
			_ = printer.printJSON(map[string]string{
				"version":    Version,
				"commit":     GitCommit,
				"build_date": BuildDate,
				"go_version": runtime.Version(),
				"os":         runtime.GOOS,
				"arch":       runtime.GOARCH,
			})
			return
		}

		fmt.Fprintf(cmd.OutOrStdout(), "passkeyd version %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "Git commit: %s\n", GitCommit)
		fmt.Fprintf(cmd.OutOrStdout(), "Build date: %s\n", BuildDate)
		fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
		fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}
