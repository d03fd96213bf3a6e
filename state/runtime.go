// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state executes ledger operations atomically. Operations are admitted
// one at a time; each runs against a write-buffering overlay and either commits
// every write in one storage batch or leaves no trace. Events emitted by an
// operation are published only after its commit.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/crypto/blake2b"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/Spielworks/plai/core"
	"github.com/Spielworks/plai/events"
	"github.com/Spielworks/plai/storage"
)

var (
	ErrReadOnly = errors.New("write in read-only view")

	seqKey = append(append([]byte{}, storage.PrefixRuntime...), "seq"...)
)

// Runtime serializes operations over a storage backend.
type Runtime struct {
	mu sync.Mutex

	backend   storage.Backend
	clock     Clock
	publisher events.Publisher
	logger    log.Logger
}

// New creates a runtime.
func New(backend storage.Backend, clock Clock, publisher events.Publisher, logger log.Logger) *Runtime {
	if clock == nil {
		clock = SystemClock{}
	}
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	return &Runtime{
		backend:   backend,
		clock:     clock,
		publisher: publisher,
		logger:    logger,
	}
}

// Execute runs fn as one atomic operation. If fn returns an error (or
// panics) nothing it wrote is kept. The returned ID identifies the committed
// operation and is empty on failure.
func (r *Runtime) Execute(ctx context.Context, op string, fn func(*Tx) error) (ids.ID, error) {
	if err := ctx.Err(); err != nil {
		return ids.Empty, err
	}

	r.mu.Lock()
	tx, pending, err := r.run(op, fn)
	r.mu.Unlock()
	if err != nil {
		r.logger.Debug("operation aborted", "op", op, "error", err)
		return ids.Empty, err
	}

	r.logger.Debug("operation committed", "op", op, "txID", tx.id, "events", len(pending))
	for _, env := range pending {
		if err := r.publisher.Publish(ctx, env.Topic, env); err != nil {
			r.logger.Warn("failed to publish event", "topic", env.Topic, "txID", tx.id, "error", err)
		}
	}
	return tx.id, nil
}

func (r *Runtime) run(op string, fn func(*Tx) error) (tx *Tx, pending []events.Envelope, err error) {
	overlay := storage.NewOverlay(r.backend)
	defer func() {
		if rec := recover(); rec != nil {
			overlay.Discard()
			tx, pending, err = nil, nil, fmt.Errorf("%w: operation %s panicked: %v", core.ErrInvalidState, op, rec)
		}
	}()

	seq, err := storage.GetUint64(overlay, seqKey)
	if err != nil {
		overlay.Discard()
		return nil, nil, fmt.Errorf("read sequence: %w", err)
	}
	seq++

	now := r.clock.Now()
	tx = &Tx{
		store: overlay,
		now:   now,
		id:    txID(op, seq, now),
	}

	if err := fn(tx); err != nil {
		overlay.Discard()
		return nil, nil, err
	}
	if err := storage.PutUint64(overlay, seqKey, seq); err != nil {
		overlay.Discard()
		return nil, nil, err
	}
	if err := overlay.Commit(r.backend); err != nil {
		return nil, nil, fmt.Errorf("commit %s: %w", op, err)
	}

	pending = make([]events.Envelope, len(tx.events))
	for i, e := range tx.events {
		pending[i] = events.Envelope{TxID: tx.id, Topic: e.Topic(), Payload: e}
	}
	return tx, pending, nil
}

// View runs fn against the current state without admitting writes.
func (r *Runtime) View(fn func(*Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	overlay := storage.NewOverlay(r.backend)
	defer overlay.Discard()

	return fn(&Tx{
		store:    overlay,
		now:      r.clock.Now(),
		readOnly: true,
	})
}

// Sequence returns the number of committed operations.
func (r *Runtime) Sequence() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return storage.GetUint64(r.backend, seqKey)
}

// Close closes the publisher. The backend is owned by the caller.
func (r *Runtime) Close() error {
	return r.publisher.Close()
}

// txID = blake2b-256(op || seq || now)
func txID(op string, seq, now uint64) ids.ID {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(op))
	h.Write(core.Uint64ToBytes(seq))
	h.Write(core.Uint64ToBytes(now))
	var id ids.ID
	copy(id[:], h.Sum(nil))
	return id
}
