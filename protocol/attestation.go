// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package protocol

import (
	"errors"
	"fmt"

	"github.com/Spielworks/plai/core"
	"github.com/Spielworks/plai/crypto"
)

var ErrSignerMismatch = errors.New("signer does not match verifier")

// Attestation is the set of session fields a verifier signs, in fixed order.
type Attestation struct {
	Owner       core.Address `json:"owner"`
	StartedAt   uint64       `json:"startedAt"`
	EndedAt     uint64       `json:"endedAt"`
	PayloadRef  string       `json:"payloadRef"`
	PayloadHash core.Hash    `json:"payloadHash"`
}

// AttestationFor extracts the attested fields of a session.
func AttestationFor(s *core.Session) Attestation {
	return Attestation{
		Owner:       s.Owner,
		StartedAt:   s.StartedAt,
		EndedAt:     s.EndedAt,
		PayloadRef:  s.PayloadRef,
		PayloadHash: s.PayloadHash,
	}
}

// Encode returns the packed encoding
// owner(20) || uint256(startedAt) || uint256(endedAt) || payloadRef || payloadHash(32).
func (a Attestation) Encode() []byte {
	buf := make([]byte, 0, core.AddressLength+32+32+len(a.PayloadRef)+core.HashLength)
	buf = append(buf, a.Owner[:]...)
	buf = append(buf, core.Uint256ToBytes(a.StartedAt)...)
	buf = append(buf, core.Uint256ToBytes(a.EndedAt)...)
	buf = append(buf, a.PayloadRef...)
	buf = append(buf, a.PayloadHash[:]...)
	return buf
}

// Digest is keccak256 of the packed encoding.
func (a Attestation) Digest() core.Hash {
	return core.Keccak256(a.Encode())
}

// SigningHash is the prefixed hash a verifier signs.
func (a Attestation) SigningHash() core.Hash {
	return SigningHash(a.Digest())
}

// Sign produces the verifier signature over the attestation.
func (a Attestation) Sign(verifier *crypto.Identity) []byte {
	return verifier.Sign(a.SigningHash())
}

// Signer recovers the address that signed the attestation.
func (a Attestation) Signer(sig []byte) (core.Address, error) {
	return crypto.RecoverAddress(a.SigningHash(), sig)
}

// VerifySigner checks that sig was produced by expected.
func (a Attestation) VerifySigner(sig []byte, expected core.Address) error {
	signer, err := a.Signer(sig)
	if err != nil {
		return err
	}
	if signer != expected {
		return fmt.Errorf("%w: recovered %s, expected %s", ErrSignerMismatch, signer, expected)
	}
	return nil
}
