// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package asset provides the fungible credit used to pay for sessions and to
// fund rewards: balances, allowances and transfer-on-behalf.
package asset

import (
	"fmt"
	"sync"

	"github.com/Spielworks/plai/core"
	"github.com/Spielworks/plai/state"
)

// Port is the transfer capability the ledger and the reward agent consume.
type Port interface {
	// Address identifies the asset.
	Address() core.Address

	// BalanceOf returns the balance held by who.
	BalanceOf(tx *state.Tx, who core.Address) (uint64, error)

	// Allowance returns how much spender may move on behalf of owner.
	Allowance(tx *state.Tx, owner, spender core.Address) (uint64, error)

	// Transfer moves amount from from to to.
	Transfer(tx *state.Tx, from, to core.Address, amount uint64) error

	// TransferFrom moves amount from from to to, consuming spender's allowance.
	TransferFrom(tx *state.Tx, spender, from, to core.Address, amount uint64) error

	// Approve sets spender's allowance over owner's balance to amount.
	Approve(tx *state.Tx, owner, spender core.Address, amount uint64) error
}

// Directory resolves payment asset addresses to ports.
type Directory struct {
	mu     sync.RWMutex
	assets map[core.Address]Port
}

// NewDirectory creates a directory containing ports.
func NewDirectory(ports ...Port) *Directory {
	d := &Directory{assets: make(map[core.Address]Port)}
	for _, p := range ports {
		d.Register(p)
	}
	return d
}

// Register adds or replaces a port.
func (d *Directory) Register(p Port) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assets[p.Address()] = p
}

// Lookup returns the port for addr.
func (d *Directory) Lookup(addr core.Address) (Port, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.assets[addr]
	return p, ok
}

// MustLookup returns the port for addr or a PaymentFailure error.
func (d *Directory) MustLookup(addr core.Address) (Port, error) {
	p, ok := d.Lookup(addr)
	if !ok {
		return nil, fmt.Errorf("%w: unknown payment asset %s", core.ErrPaymentFailure, addr)
	}
	return p, nil
}
