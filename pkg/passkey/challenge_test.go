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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChallenge(t *testing.T) {
	challenge, err := NewChallenge()
	require.NoError(t, err)
	assert.Len(t, challenge, ChallengeSize)
}

func TestNewChallenge_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		challenge, err := NewChallenge()
		require.NoError(t, err)
		require.False(t, seen[string(challenge)], "challenge repeated")
		seen[string(challenge)] = true
	}
}
