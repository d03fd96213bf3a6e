// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asset

import (
	"fmt"

	"github.com/Spielworks/plai/core"
	"github.com/Spielworks/plai/state"
	"github.com/Spielworks/plai/storage"
)

var (
	balancePrefix   = []byte("bal:")
	allowancePrefix = []byte("alw:")
	supplyKey       = []byte("supply")
)

// Credit is a state-backed fungible credit.
type Credit struct {
	address core.Address
	minter  core.Address
	symbol  string
	prefix  []byte
}

// NewCredit creates a credit identified by address; only minter may mint.
func NewCredit(address, minter core.Address, symbol string) *Credit {
	prefix := make([]byte, 0, len(storage.PrefixAsset)+core.AddressLength+1)
	prefix = append(prefix, storage.PrefixAsset...)
	prefix = append(prefix, address[:]...)
	prefix = append(prefix, ':')
	return &Credit{
		address: address,
		minter:  minter,
		symbol:  symbol,
		prefix:  prefix,
	}
}

func (c *Credit) Address() core.Address { return c.address }

func (c *Credit) Symbol() string { return c.symbol }

func (c *Credit) store(tx *state.Tx) storage.Store {
	return tx.Namespace(c.prefix)
}

func balanceKey(who core.Address) []byte {
	return append(append([]byte{}, balancePrefix...), who[:]...)
}

func allowanceKey(owner, spender core.Address) []byte {
	key := append(append([]byte{}, allowancePrefix...), owner[:]...)
	return append(key, spender[:]...)
}

func (c *Credit) BalanceOf(tx *state.Tx, who core.Address) (uint64, error) {
	return storage.GetUint64(c.store(tx), balanceKey(who))
}

func (c *Credit) Allowance(tx *state.Tx, owner, spender core.Address) (uint64, error) {
	return storage.GetUint64(c.store(tx), allowanceKey(owner, spender))
}

// TotalSupply returns the amount minted so far.
func (c *Credit) TotalSupply(tx *state.Tx) (uint64, error) {
	return storage.GetUint64(c.store(tx), supplyKey)
}

// Mint creates amount new credit for to.
func (c *Credit) Mint(tx *state.Tx, caller, to core.Address, amount uint64) error {
	if caller != c.minter {
		return fmt.Errorf("%w: %s is not the %s minter", core.ErrUnauthorized, caller, c.symbol)
	}
	if to.Empty() {
		return fmt.Errorf("%w: mint to zero address", core.ErrPaymentFailure)
	}
	s := c.store(tx)

	supply, err := storage.GetUint64(s, supplyKey)
	if err != nil {
		return err
	}
	if supply+amount < supply {
		return fmt.Errorf("%w: %s supply overflow", core.ErrInvalidState, c.symbol)
	}
	bal, err := storage.GetUint64(s, balanceKey(to))
	if err != nil {
		return err
	}
	if err := storage.PutUint64(s, supplyKey, supply+amount); err != nil {
		return err
	}
	return storage.PutUint64(s, balanceKey(to), bal+amount)
}

func (c *Credit) Transfer(tx *state.Tx, from, to core.Address, amount uint64) error {
	if to.Empty() {
		return fmt.Errorf("%w: transfer to zero address", core.ErrPaymentFailure)
	}
	if amount == 0 || from == to {
		return nil
	}
	s := c.store(tx)

	fromBal, err := storage.GetUint64(s, balanceKey(from))
	if err != nil {
		return err
	}
	if fromBal < amount {
		return fmt.Errorf("%w: %s balance %d below %d", core.ErrPaymentFailure, from, fromBal, amount)
	}
	toBal, err := storage.GetUint64(s, balanceKey(to))
	if err != nil {
		return err
	}
	if err := storage.PutUint64(s, balanceKey(from), fromBal-amount); err != nil {
		return err
	}
	// Cannot overflow: the sum of balances is bounded by the supply.
	return storage.PutUint64(s, balanceKey(to), toBal+amount)
}

func (c *Credit) TransferFrom(tx *state.Tx, spender, from, to core.Address, amount uint64) error {
	if spender != from {
		allowed, err := c.Allowance(tx, from, spender)
		if err != nil {
			return err
		}
		if allowed < amount {
			return fmt.Errorf("%w: allowance %d of %s for %s below %d", core.ErrPaymentFailure, allowed, from, spender, amount)
		}
		if err := storage.PutUint64(c.store(tx), allowanceKey(from, spender), allowed-amount); err != nil {
			return err
		}
	}
	return c.Transfer(tx, from, to, amount)
}

func (c *Credit) Approve(tx *state.Tx, owner, spender core.Address, amount uint64) error {
	if spender.Empty() {
		return fmt.Errorf("%w: approve zero address", core.ErrPaymentFailure)
	}
	return storage.PutUint64(c.store(tx), allowanceKey(owner, spender), amount)
}

var _ Port = (*Credit)(nil)
