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

package passkey

import (
	"errors"
	"fmt"
)

// Sentinel errors for ceremony outcomes. Every failure returned by a
// Provider operation wraps exactly one of these, so callers can branch on
// the cause with errors.Is while callers that don't care simply check for
// a nil aggregate or a false verification result.
var (
	// ErrUnsupported is returned when the client environment cannot host
	// the credential API.
	ErrUnsupported = errors.New("passkeys are not supported in this environment")

	// ErrDeclined is returned when the user cancelled or dismissed the
	// credential prompt.
	ErrDeclined = errors.New("ceremony declined by the user")

	// ErrNoSelection is returned by conditional retrieval when the user has
	// not picked a credential. This is a normal outcome, not a fault.
	ErrNoSelection = errors.New("no credential selected")

	// ErrTransport is returned when the credential client call itself fails.
	ErrTransport = errors.New("credential client transport fault")

	// ErrVerificationFailed is returned when the origin, relying party id,
	// challenge, signature, or user handle ownership check is rejected.
	ErrVerificationFailed = errors.New("assertion verification failed")

	// ErrIncompleteAssertion is returned when a Passkey aggregate is missing
	// one or more of the transient proof fields required for verification.
	ErrIncompleteAssertion = errors.New("passkey is missing assertion proof fields")

	// ErrProviderClosed is returned by any ceremony requested after Close.
	ErrProviderClosed = errors.New("provider is closed")

	// ErrInvalidConfig is returned when a ceremony configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrClientRequired is returned when a provider is constructed without a
	// credential client or client factory.
	ErrClientRequired = errors.New("credential client or client factory is required")

	// ErrInvalidResponse is returned when the client's response cannot be
	// parsed as a WebAuthn credential response.
	ErrInvalidResponse = errors.New("invalid credential response")
)

// CeremonyError wraps a ceremony failure with the operation that produced it.
type CeremonyError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *CeremonyError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *CeremonyError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *CeremonyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// newError creates a CeremonyError with the given operation and error.
func newError(op string, err error) error {
	return &CeremonyError{
		Op:  op,
		Err: err,
	}
}

// wrapError wraps an error with an operation name if it's not nil.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return newError(op, err)
}

// reasonError tags an underlying failure with a sentinel reason so both the
// reason and the original cause remain visible to errors.Is.
func reasonError(op string, reason, err error) error {
	if err == nil {
		return newError(op, reason)
	}
	return newError(op, fmt.Errorf("%w: %w", reason, err))
}

// IsDeclined returns true if the error indicates the user declined the ceremony.
func IsDeclined(err error) bool {
	return errors.Is(err, ErrDeclined)
}

// IsNoSelection returns true if the error indicates conditional retrieval
// ended without a credential being picked.
func IsNoSelection(err error) bool {
	return errors.Is(err, ErrNoSelection)
}

// IsUnsupported returns true if the error indicates passkeys are unavailable.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// IsVerificationFailed returns true if the error indicates the assertion was rejected.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrVerificationFailed)
}

// IsProviderClosed returns true if the error indicates the provider was closed.
func IsProviderClosed(err error) bool {
	return errors.Is(err, ErrProviderClosed)
}

// IsTransport returns true if the error indicates a credential client fault.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}
