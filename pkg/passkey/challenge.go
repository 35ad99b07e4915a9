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
	"crypto/rand"
	"fmt"
)

// ChallengeSize is the length in bytes of every ceremony challenge.
const ChallengeSize = 32

// NewChallenge returns a fresh cryptographically random challenge.
//
// A challenge is scoped to a single ceremony and never reused: registration
// and retrieval each generate their own, and retrieval embeds it in the
// returned Passkey aggregate so the later verification call can check the
// client signed exactly this ceremony.
func NewChallenge() ([]byte, error) {
	challenge := make([]byte, ChallengeSize)
	if _, err := rand.Read(challenge); err != nil {
		return nil, fmt.Errorf("failed to generate challenge: %w", err)
	}
	return challenge, nil
}
