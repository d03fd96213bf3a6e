// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"errors"
	"sort"
)

var errOverlayDone = errors.New("overlay already committed or discarded")

// Overlay is a write-buffering view over a base store. Reads fall through to
// the base unless the key was written or deleted in the overlay. Nothing
// reaches the base until Commit, which applies every buffered write in one
// batch; Discard drops them.
type Overlay struct {
	base    Store
	writes  map[string][]byte
	deletes map[string]struct{}
	done    bool
}

// NewOverlay creates an overlay over base.
func NewOverlay(base Store) *Overlay {
	return &Overlay{
		base:    base,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

// Get retrieves a value by key.
func (o *Overlay) Get(key []byte) ([]byte, error) {
	if o.done {
		return nil, errOverlayDone
	}
	k := string(key)
	if v, ok := o.writes[k]; ok {
		result := make([]byte, len(v))
		copy(result, v)
		return result, nil
	}
	if _, ok := o.deletes[k]; ok {
		return nil, ErrNotFound
	}
	return o.base.Get(key)
}

// Put buffers a write.
func (o *Overlay) Put(key, value []byte) error {
	if o.done {
		return errOverlayDone
	}
	k := string(key)
	v := make([]byte, len(value))
	copy(v, value)
	o.writes[k] = v
	delete(o.deletes, k)
	return nil
}

// Delete buffers a delete.
func (o *Overlay) Delete(key []byte) error {
	if o.done {
		return errOverlayDone
	}
	k := string(key)
	delete(o.writes, k)
	o.deletes[k] = struct{}{}
	return nil
}

// Has checks if a key exists in the overlay view.
func (o *Overlay) Has(key []byte) (bool, error) {
	if o.done {
		return false, errOverlayDone
	}
	k := string(key)
	if _, ok := o.writes[k]; ok {
		return true, nil
	}
	if _, ok := o.deletes[k]; ok {
		return false, nil
	}
	return o.base.Has(key)
}

// Close discards the overlay. The base store stays open.
func (o *Overlay) Close() error {
	o.Discard()
	return nil
}

// Size returns the number of buffered operations.
func (o *Overlay) Size() int {
	return len(o.writes) + len(o.deletes)
}

// Commit writes all buffered operations to w in one batch, in key order.
func (o *Overlay) Commit(w BatchWriter) error {
	if o.done {
		return errOverlayDone
	}
	o.done = true

	if len(o.writes) == 0 && len(o.deletes) == 0 {
		return nil
	}

	batch := w.NewBatch()
	for _, k := range sortedKeys(o.deletes) {
		if err := batch.Delete([]byte(k)); err != nil {
			return err
		}
	}
	keys := make([]string, 0, len(o.writes))
	for k := range o.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := batch.Put([]byte(k), o.writes[k]); err != nil {
			return err
		}
	}
	return batch.Write()
}

// Discard drops all buffered operations.
func (o *Overlay) Discard() {
	o.done = true
	o.writes = nil
	o.deletes = nil
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ Store = (*Overlay)(nil)
