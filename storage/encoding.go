// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Spielworks/plai/core"
)

// sessionFixedSize is the encoded size of a session without its payload ref:
// id(8) owner(20) contextRef(32) verifier(20) startedAt(8) endedAt(8)
// stage(1) price(8) paymentAsset(20) payloadHash(32) payloadRefLen(4)
const sessionFixedSize = 8 + core.AddressLength + core.HashLength + core.AddressLength + 8 + 8 + 1 + 8 + core.AddressLength + core.HashLength + 4

var (
	errNilSession   = errors.New("nil session")
	errDataTooShort = errors.New("data too short")
)

// Codec handles serialization and deserialization.
type Codec interface {
	// EncodeSession encodes a session to bytes.
	EncodeSession(s *core.Session) ([]byte, error)

	// DecodeSession decodes bytes to a session.
	DecodeSession(data []byte) (*core.Session, error)
}

// BinaryCodec is a fixed-layout big-endian encoder/decoder.
type BinaryCodec struct{}

// NewBinaryCodec creates a new binary codec.
func NewBinaryCodec() *BinaryCodec {
	return &BinaryCodec{}
}

// EncodeSession encodes a session to bytes.
func (c *BinaryCodec) EncodeSession(s *core.Session) ([]byte, error) {
	if s == nil {
		return nil, errNilSession
	}

	buf := make([]byte, sessionFixedSize+len(s.PayloadRef))
	offset := 0

	binary.BigEndian.PutUint64(buf[offset:], s.ID)
	offset += 8

	copy(buf[offset:], s.Owner[:])
	offset += core.AddressLength

	copy(buf[offset:], s.ContextRef[:])
	offset += core.HashLength

	copy(buf[offset:], s.Verifier[:])
	offset += core.AddressLength

	binary.BigEndian.PutUint64(buf[offset:], s.StartedAt)
	offset += 8

	binary.BigEndian.PutUint64(buf[offset:], s.EndedAt)
	offset += 8

	buf[offset] = byte(s.Stage)
	offset++

	binary.BigEndian.PutUint64(buf[offset:], s.Price)
	offset += 8

	copy(buf[offset:], s.PaymentAsset[:])
	offset += core.AddressLength

	copy(buf[offset:], s.PayloadHash[:])
	offset += core.HashLength

	binary.BigEndian.PutUint32(buf[offset:], uint32(len(s.PayloadRef)))
	offset += 4
	copy(buf[offset:], s.PayloadRef)

	return buf, nil
}

// DecodeSession decodes bytes to a session.
func (c *BinaryCodec) DecodeSession(data []byte) (*core.Session, error) {
	if len(data) < sessionFixedSize {
		return nil, errDataTooShort
	}

	s := &core.Session{}
	offset := 0

	s.ID = binary.BigEndian.Uint64(data[offset:])
	offset += 8

	copy(s.Owner[:], data[offset:])
	offset += core.AddressLength

	copy(s.ContextRef[:], data[offset:])
	offset += core.HashLength

	copy(s.Verifier[:], data[offset:])
	offset += core.AddressLength

	s.StartedAt = binary.BigEndian.Uint64(data[offset:])
	offset += 8

	s.EndedAt = binary.BigEndian.Uint64(data[offset:])
	offset += 8

	s.Stage = core.Stage(data[offset])
	offset++

	s.Price = binary.BigEndian.Uint64(data[offset:])
	offset += 8

	copy(s.PaymentAsset[:], data[offset:])
	offset += core.AddressLength

	copy(s.PayloadHash[:], data[offset:])
	offset += core.HashLength

	refLen := int(binary.BigEndian.Uint32(data[offset:]))
	offset += 4
	if len(data)-offset != refLen {
		return nil, fmt.Errorf("payload ref length %d does not match %d remaining bytes", refLen, len(data)-offset)
	}
	s.PayloadRef = string(data[offset:])

	if s.ID == 0 {
		return nil, errors.New("session id 0 is reserved")
	}
	if s.Stage > core.StageVerified {
		return nil, fmt.Errorf("unknown stage %d", s.Stage)
	}
	if s.Stage.Ended() != (s.EndedAt != 0) {
		return nil, fmt.Errorf("stage %s inconsistent with endedAt %d", s.Stage, s.EndedAt)
	}

	return s, nil
}
