// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

import (
	"errors"
	"testing"

	"github.com/Spielworks/plai/core"
)

func TestGenerateIdentity(t *testing.T) {
	identity, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity failed: %v", err)
	}
	if identity.Address.Empty() {
		t.Error("address should not be empty")
	}
	if len(identity.PrivateKeyHex()) != 64 {
		t.Errorf("private key hex length = %d, want 64", len(identity.PrivateKeyHex()))
	}
}

func TestIdentityFromHex(t *testing.T) {
	identity, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity failed: %v", err)
	}

	loaded, err := IdentityFromHex("0x" + identity.PrivateKeyHex())
	if err != nil {
		t.Fatalf("IdentityFromHex failed: %v", err)
	}
	if loaded.Address != identity.Address {
		t.Errorf("address = %s, want %s", loaded.Address, identity.Address)
	}

	for _, bad := range []string{"", "abcd", "zz", "0000000000000000000000000000000000000000000000000000000000000000"} {
		if _, err := IdentityFromHex(bad); !errors.Is(err, ErrInvalidSecretKey) {
			t.Errorf("IdentityFromHex(%q) error = %v, want ErrInvalidSecretKey", bad, err)
		}
	}
}

func TestKnownAddress(t *testing.T) {
	// Private key 1 maps to the well-known address of generator G.
	key := make([]byte, PrivateKeyLength)
	key[31] = 1
	identity, err := IdentityFromBytes(key)
	if err != nil {
		t.Fatalf("IdentityFromBytes failed: %v", err)
	}

	want := "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf"
	if got := identity.Address.String(); got != want {
		t.Errorf("address = %s, want %s", got, want)
	}
}

func TestSignAndRecover(t *testing.T) {
	identity, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity failed: %v", err)
	}

	digest := core.Keccak256([]byte("session payload"))
	sig := identity.Sign(digest)
	if len(sig) != SignatureLength {
		t.Fatalf("signature length = %d, want %d", len(sig), SignatureLength)
	}
	if sig[64] != 27 && sig[64] != 28 {
		t.Errorf("v = %d, want 27 or 28", sig[64])
	}

	recovered, err := RecoverAddress(digest, sig)
	if err != nil {
		t.Fatalf("RecoverAddress failed: %v", err)
	}
	if recovered != identity.Address {
		t.Errorf("recovered %s, want %s", recovered, identity.Address)
	}

	// v in {0, 1} is accepted too.
	alt := append([]byte(nil), sig...)
	alt[64] -= 27
	recovered, err = RecoverAddress(digest, alt)
	if err != nil {
		t.Fatalf("RecoverAddress with raw v failed: %v", err)
	}
	if recovered != identity.Address {
		t.Error("raw v should recover the same address")
	}
}

func TestRecoverWrongDigest(t *testing.T) {
	identity, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity failed: %v", err)
	}

	sig := identity.Sign(core.Keccak256([]byte("a")))
	recovered, err := RecoverAddress(core.Keccak256([]byte("b")), sig)
	if err == nil && recovered == identity.Address {
		t.Error("different digest must not recover the signer")
	}
}

func TestRecoverInvalidSignature(t *testing.T) {
	digest := core.Keccak256([]byte("x"))

	tests := []struct {
		name string
		sig  []byte
	}{
		{"short", make([]byte, 64)},
		{"long", make([]byte, 66)},
		{"bad recovery id", append(make([]byte, 64), 5)},
		{"zero r and s", append(make([]byte, 64), 27)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RecoverAddress(digest, tt.sig); !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("error = %v, want ErrInvalidSignature", err)
			}
		})
	}
}

func TestRecoverRejectsHighS(t *testing.T) {
	identity, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity failed: %v", err)
	}
	digest := core.Keccak256([]byte("malleable"))
	sig := identity.Sign(digest)

	// Replace s with all-ones, which is above the half order.
	for i := 32; i < 64; i++ {
		sig[i] = 0xff
	}
	if _, err := RecoverAddress(digest, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("error = %v, want ErrInvalidSignature", err)
	}
}
