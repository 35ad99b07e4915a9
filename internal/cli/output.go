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
	"encoding/json"
	"fmt"
	"io"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	// OutputFormatText is human-readable text output
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON output
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new printer with the specified format
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	if p.format == OutputFormatJSON {
		return p.printJSON(map[string]string{
			"status":  "success",
			"message": message,
		})
	}
	_, err := fmt.Fprintln(p.writer, message)
	return err
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	if p.format == OutputFormatJSON {
		return p.printJSON(map[string]string{
			"status": "error",
			"error":  err.Error(),
		})
	}
	_, printErr := fmt.Fprintf(p.writer, "Error: %v\n", err)
	return printErr
}

// printJSON encodes data as indented JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
