// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package protocol defines the canonical messages that verifiers sign.
// The encodings here are fixed: a verifier's authority is captured per session
// at creation, so changing them would invalidate every pending attestation.
package protocol

import "github.com/Spielworks/plai/core"

// SignedMessagePrefix is the message-signing domain prefix applied to a
// 32-byte digest before it is signed.
const SignedMessagePrefix = "\x19Ethereum Signed Message:\n32"

// SigningHash returns keccak256(prefix || digest), the hash a verifier signs.
func SigningHash(digest core.Hash) core.Hash {
	return core.Keccak256([]byte(SignedMessagePrefix), digest[:])
}
