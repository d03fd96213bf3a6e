// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage provides key/value storage for the plai ledger state.
// Backends: in-memory and SQLite. Writes for one operation are staged in an
// Overlay and reach a backend through a single Batch.
package storage

import (
	"errors"

	"github.com/Spielworks/plai/core"
)

var (
	// ErrNotFound is returned when a key is not found.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned when the store is closed.
	ErrClosed = errors.New("store closed")
)

// Store is the core key-value storage interface.
type Store interface {
	// Get retrieves a value by key.
	Get(key []byte) ([]byte, error)

	// Put stores a value by key.
	Put(key, value []byte) error

	// Delete removes a key.
	Delete(key []byte) error

	// Has checks if a key exists.
	Has(key []byte) (bool, error)

	// Close closes the store.
	Close() error
}

// BatchWriter supports atomic batch writes.
type BatchWriter interface {
	Store

	// NewBatch creates a new batch.
	NewBatch() Batch
}

// Batch represents a batch of writes applied all-or-nothing.
type Batch interface {
	// Put adds a put operation to the batch.
	Put(key, value []byte) error

	// Delete adds a delete operation to the batch.
	Delete(key []byte) error

	// Write executes all operations in the batch.
	Write() error

	// Reset clears the batch.
	Reset()

	// Size returns the number of operations in the batch.
	Size() int
}

// Iterator iterates over keys in a range.
type Iterator interface {
	// Next advances the iterator.
	Next() bool

	// Key returns the current key.
	Key() []byte

	// Value returns the current value.
	Value() []byte

	// Error returns any error encountered.
	Error() error

	// Release releases the iterator.
	Release()
}

// IterableStore supports iteration over keys.
type IterableStore interface {
	Store

	// NewIterator creates an iterator over keys in [start, end).
	NewIterator(start, end []byte) Iterator
}

// Backend is what the runtime needs from a persistent store.
type Backend interface {
	BatchWriter
	IterableStore
}

// Namespace prefixes keys for logical separation.
type Namespace struct {
	prefix []byte
	store  Store
}

// NewNamespace creates a namespaced view of a store.
func NewNamespace(store Store, prefix []byte) *Namespace {
	return &Namespace{
		prefix: prefix,
		store:  store,
	}
}

func (n *Namespace) prefixKey(key []byte) []byte {
	prefixed := make([]byte, len(n.prefix)+len(key))
	copy(prefixed, n.prefix)
	copy(prefixed[len(n.prefix):], key)
	return prefixed
}

// Get retrieves a value by key.
func (n *Namespace) Get(key []byte) ([]byte, error) {
	return n.store.Get(n.prefixKey(key))
}

// Put stores a value by key.
func (n *Namespace) Put(key, value []byte) error {
	return n.store.Put(n.prefixKey(key), value)
}

// Delete removes a key.
func (n *Namespace) Delete(key []byte) error {
	return n.store.Delete(n.prefixKey(key))
}

// Has checks if a key exists.
func (n *Namespace) Has(key []byte) (bool, error) {
	return n.store.Has(n.prefixKey(key))
}

// Close closes the underlying store.
func (n *Namespace) Close() error {
	return n.store.Close()
}

// Storage namespaces (prefixes).
var (
	PrefixLedger       = []byte("ledger:")
	PrefixRewards      = []byte("rewards:")
	PrefixAsset        = []byte("asset:")
	PrefixOrchestrator = []byte("orch:")
	PrefixRuntime      = []byte("runtime:")
)

// GetUint64 reads a big-endian counter; a missing key reads as zero.
func GetUint64(s Store, key []byte) (uint64, error) {
	data, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return core.BytesToUint64(data), nil
}

// PutUint64 writes a big-endian counter.
func PutUint64(s Store, key []byte, v uint64) error {
	return s.Put(key, core.Uint64ToBytes(v))
}

// SessionStore provides session-specific storage operations.
type SessionStore struct {
	store Store
	codec Codec
}

// NewSessionStore creates a session store over an already namespaced store.
func NewSessionStore(store Store) *SessionStore {
	return &SessionStore{
		store: store,
		codec: NewBinaryCodec(),
	}
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(id uint64) (*core.Session, error) {
	data, err := s.store.Get(core.Uint64ToBytes(id))
	if err != nil {
		return nil, err
	}
	return s.codec.DecodeSession(data)
}

// Put stores a session.
func (s *SessionStore) Put(session *core.Session) error {
	data, err := s.codec.EncodeSession(session)
	if err != nil {
		return err
	}
	return s.store.Put(core.Uint64ToBytes(session.ID), data)
}

// Has checks if a session exists.
func (s *SessionStore) Has(id uint64) (bool, error) {
	return s.store.Has(core.Uint64ToBytes(id))
}
