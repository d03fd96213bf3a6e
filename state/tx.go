// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"github.com/luxfi/ids"

	"github.com/Spielworks/plai/events"
	"github.com/Spielworks/plai/storage"
)

// Tx is the context of one operation: its buffered state, its timestamp and
// the events it has emitted so far.
type Tx struct {
	store    *storage.Overlay
	now      uint64
	id       ids.ID
	events   []events.Event
	readOnly bool
}

// Store returns the operation's view of state.
func (tx *Tx) Store() storage.Store {
	if tx.readOnly {
		return readOnlyStore{tx.store}
	}
	return tx.store
}

// Namespace returns a prefixed view of the operation's state.
func (tx *Tx) Namespace(prefix []byte) storage.Store {
	return storage.NewNamespace(tx.Store(), prefix)
}

// Now returns the operation timestamp in unix seconds.
func (tx *Tx) Now() uint64 {
	return tx.now
}

// ID returns the operation identifier. Empty for views.
func (tx *Tx) ID() ids.ID {
	return tx.id
}

// Emit records an event, published only if the operation commits.
func (tx *Tx) Emit(e events.Event) {
	if tx.readOnly {
		return
	}
	tx.events = append(tx.events, e)
}

// Events returns the events emitted so far.
func (tx *Tx) Events() []events.Event {
	return tx.events
}

type readOnlyStore struct {
	storage.Store
}

func (readOnlyStore) Put([]byte, []byte) error { return ErrReadOnly }

func (readOnlyStore) Delete([]byte) error { return ErrReadOnly }
