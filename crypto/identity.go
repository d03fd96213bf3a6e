// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package crypto provides secp256k1 identities and public-key recovery for
// attestation signatures, using github.com/decred/dcrd/dcrec/secp256k1.
package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/Spielworks/plai/core"
)

const (
	// SignatureLength is the size of an r || s || v recoverable signature.
	SignatureLength = 65

	// PrivateKeyLength is the size of a serialized secp256k1 private key.
	PrivateKeyLength = 32

	// recoveryOffset is the header offset used by compact signatures for
	// uncompressed public keys.
	recoveryOffset = 27
)

var (
	ErrInvalidSecretKey = errors.New("invalid secret key")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Identity is a secp256k1 keypair together with its derived address.
type Identity struct {
	Address core.Address `json:"address"`

	privateKey *secp256k1.PrivateKey
}

// GenerateIdentity creates a new random identity.
func GenerateIdentity() (*Identity, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return newIdentity(priv), nil
}

// IdentityFromHex loads an identity from a hex-encoded private key.
func IdentityFromHex(s string) (*Identity, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != PrivateKeyLength {
		return nil, ErrInvalidSecretKey
	}
	return IdentityFromBytes(b)
}

// IdentityFromBytes loads an identity from a raw 32-byte private key.
func IdentityFromBytes(b []byte) (*Identity, error) {
	if len(b) != PrivateKeyLength {
		return nil, ErrInvalidSecretKey
	}
	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(b); overflow || scalar.IsZero() {
		return nil, ErrInvalidSecretKey
	}
	return newIdentity(secp256k1.NewPrivateKey(&scalar)), nil
}

func newIdentity(priv *secp256k1.PrivateKey) *Identity {
	return &Identity{
		Address:    PubkeyToAddress(priv.PubKey()),
		privateKey: priv,
	}
}

// PrivateKeyHex returns the hex-encoded private key.
func (i *Identity) PrivateKeyHex() string {
	return hex.EncodeToString(i.privateKey.Serialize())
}

// Sign produces a 65-byte r || s || v signature over a 32-byte digest.
// v is 27 or 28.
func (i *Identity) Sign(digest core.Hash) []byte {
	compact := ecdsa.SignCompact(i.privateKey, digest[:], false)

	sig := make([]byte, SignatureLength)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return sig
}

// PubkeyToAddress derives an address from the last 20 bytes of the
// Keccak-256 of the uncompressed public key (without its 0x04 tag).
func PubkeyToAddress(pub *secp256k1.PublicKey) core.Address {
	uncompressed := pub.SerializeUncompressed()
	h := core.Keccak256(uncompressed[1:])
	return core.AddressFromBytes(h[12:])
}

// RecoverAddress recovers the address that produced sig over digest.
// sig is r || s || v with v in {0, 1, 27, 28}; high-s signatures are rejected.
func RecoverAddress(digest core.Hash, sig []byte) (core.Address, error) {
	if len(sig) != SignatureLength {
		return core.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}

	v := sig[64]
	if v >= recoveryOffset {
		v -= recoveryOffset
	}
	if v > 1 {
		return core.Address{}, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, sig[64])
	}

	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(sig[32:64]); overflow || s.IsOverHalfOrder() {
		return core.Address{}, fmt.Errorf("%w: malleable s value", ErrInvalidSignature)
	}

	compact := make([]byte, SignatureLength)
	compact[0] = recoveryOffset + v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return core.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return PubkeyToAddress(pub), nil
}
