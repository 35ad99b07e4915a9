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
	"github.com/google/uuid"
)

// UserHandleFromString canonicalizes a text identity into the byte form used
// as a WebAuthn user handle. The text is encoded as UTF-8 unchanged.
func UserHandleFromString(id string) []byte {
	return []byte(id)
}

// UserHandleFromUUID canonicalizes a UUID identity into the byte form used as
// a WebAuthn user handle. The UUID is rendered to its canonical 36-character
// text form first, so the handle is stable across marshaling representations.
func UserHandleFromUUID(id uuid.UUID) []byte {
	return []byte(id.String())
}
