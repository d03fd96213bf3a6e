// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rewards implements the reward distribution agent. The agent buys
// sessions from the ledger, accumulates a reward pool funded by third parties
// and pays every purchased session's owner an equal share of that pool.
//
// The share is floor(pool / totalPurchased) evaluated at claim time. Neither
// quantity is reduced by a claim, so the value of an unclaimed share moves
// whenever the pool is funded or another session is bought.
package rewards

import (
	"errors"
	"fmt"

	"github.com/Spielworks/plai/asset"
	"github.com/Spielworks/plai/core"
	"github.com/Spielworks/plai/events"
	"github.com/Spielworks/plai/ledger"
	"github.com/Spielworks/plai/state"
	"github.com/Spielworks/plai/storage"
)

var (
	totalKey    = []byte("total")
	poolKey     = []byte("pool")
	claimPrefix = []byte("claim:")
)

// Agent is the reward distribution agent.
type Agent struct {
	address     core.Address
	operator    core.Address
	rewardAsset asset.Port
	ledger      *ledger.Ledger
	assets      *asset.Directory
}

// New creates an agent holding custody as address. Only operator may make the
// agent buy sessions; rewards are paid in rewardAsset.
func New(address, operator core.Address, rewardAsset asset.Port, l *ledger.Ledger, assets *asset.Directory) *Agent {
	return &Agent{
		address:     address,
		operator:    operator,
		rewardAsset: rewardAsset,
		ledger:      l,
		assets:      assets,
	}
}

// Address returns the agent's custody identity. Funders approve it before
// FundPool.
func (a *Agent) Address() core.Address { return a.address }

// Operator returns the identity allowed to purchase on the agent's behalf.
func (a *Agent) Operator() core.Address { return a.operator }

// RewardAsset returns the asset the pool is held in.
func (a *Agent) RewardAsset() core.Address { return a.rewardAsset.Address() }

func (a *Agent) store(tx *state.Tx) storage.Store {
	return tx.Namespace(storage.PrefixRewards)
}

func claimKey(sessionID uint64) []byte {
	return append(append([]byte{}, claimPrefix...), core.Uint64ToBytes(sessionID)...)
}

func (a *Agent) authorize(caller core.Address) error {
	if caller != a.operator {
		return fmt.Errorf("%w: %s is not the agent operator", core.ErrUnauthorized, caller)
	}
	return nil
}

// PurchaseOne buys sessionID from the ledger with the agent's own funds.
func (a *Agent) PurchaseOne(tx *state.Tx, caller core.Address, sessionID uint64) error {
	if err := a.authorize(caller); err != nil {
		return err
	}
	session, err := a.ledger.Get(tx, sessionID)
	if err != nil {
		return err
	}
	if session.Price > 0 {
		if err := a.approve(tx, session.PaymentAsset, session.Price); err != nil {
			return err
		}
	}
	if err := a.ledger.Purchase(tx, sessionID, a.address); err != nil {
		return err
	}

	total, err := a.addPurchased(tx, 1)
	if err != nil {
		return err
	}
	tx.Emit(events.SessionsAcquired{SessionIDs: []uint64{sessionID}, TotalPurchased: total})
	return nil
}

// PurchaseBatch buys every session in sessionIDs, in order, as one unit. All
// sessions must be closed and priced. Any failure aborts the whole batch.
func (a *Agent) PurchaseBatch(tx *state.Tx, caller core.Address, sessionIDs []uint64) error {
	if err := a.authorize(caller); err != nil {
		return err
	}
	if len(sessionIDs) == 0 {
		return fmt.Errorf("%w: empty batch", core.ErrInvalidState)
	}

	// Phase one: price the whole batch per payment asset.
	var (
		order []core.Address
		sums  = make(map[core.Address]uint64)
	)
	for _, id := range sessionIDs {
		session, err := a.ledger.Get(tx, id)
		switch {
		case errors.Is(err, core.ErrNotFound):
			return fmt.Errorf("%w: session %d does not exist", core.ErrNotForSale, id)
		case err != nil:
			return err
		case !session.Purchasable():
			return fmt.Errorf("%w: session %d is %s", core.ErrNotForSale, id, session.Stage)
		case session.Price == 0:
			return fmt.Errorf("%w: session %d has no price", core.ErrNotForSale, id)
		}

		sum, seen := sums[session.PaymentAsset]
		if !seen {
			order = append(order, session.PaymentAsset)
		}
		if sum+session.Price < sum {
			return fmt.Errorf("%w: batch cost overflows", core.ErrInvalidState)
		}
		sums[session.PaymentAsset] = sum + session.Price
	}
	for _, assetAddr := range order {
		if err := a.approve(tx, assetAddr, sums[assetAddr]); err != nil {
			return err
		}
	}

	// Phase two: purchase in order.
	for _, id := range sessionIDs {
		if err := a.ledger.Purchase(tx, id, a.address); err != nil {
			return fmt.Errorf("batch purchase of session %d: %w", id, err)
		}
	}

	total, err := a.addPurchased(tx, uint64(len(sessionIDs)))
	if err != nil {
		return err
	}
	acquired := make([]uint64, len(sessionIDs))
	copy(acquired, sessionIDs)
	tx.Emit(events.SessionsAcquired{SessionIDs: acquired, TotalPurchased: total})
	return nil
}

// approve checks the agent can pay amount of assetAddr and lets the ledger
// pull it.
func (a *Agent) approve(tx *state.Tx, assetAddr core.Address, amount uint64) error {
	port, err := a.assets.MustLookup(assetAddr)
	if err != nil {
		return err
	}
	bal, err := port.BalanceOf(tx, a.address)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("%w: agent holds %d of %s, needs %d", core.ErrInsufficientFunds, bal, assetAddr, amount)
	}
	return port.Approve(tx, a.address, a.ledger.Address(), amount)
}

func (a *Agent) addPurchased(tx *state.Tx, n uint64) (uint64, error) {
	s := a.store(tx)
	total, err := storage.GetUint64(s, totalKey)
	if err != nil {
		return 0, err
	}
	if total+n < total {
		return 0, fmt.Errorf("%w: purchase count overflows", core.ErrInvalidState)
	}
	total += n
	return total, storage.PutUint64(s, totalKey, total)
}

// FundPool moves amount of the reward asset from caller into the agent's
// custody and adds it to the pool. The caller must have approved the agent.
func (a *Agent) FundPool(tx *state.Tx, caller core.Address, amount uint64) error {
	total, err := a.TotalPurchased(tx)
	if err != nil {
		return err
	}
	if total == 0 {
		return fmt.Errorf("%w: no purchased sessions to distribute to", core.ErrInvalidState)
	}
	if amount == 0 {
		return fmt.Errorf("%w: zero funding", core.ErrInvalidState)
	}

	s := a.store(tx)
	pool, err := storage.GetUint64(s, poolKey)
	if err != nil {
		return err
	}
	if pool+amount < pool {
		return fmt.Errorf("%w: pool overflows", core.ErrInvalidState)
	}
	if err := a.rewardAsset.TransferFrom(tx, a.address, caller, a.address, amount); err != nil {
		if !errors.Is(err, core.ErrPaymentFailure) {
			err = fmt.Errorf("%w: %v", core.ErrPaymentFailure, err)
		}
		return err
	}
	pool += amount
	if err := storage.PutUint64(s, poolKey, pool); err != nil {
		return err
	}

	tx.Emit(events.PoolFunded{Funder: caller, Amount: amount, PoolBalance: pool})
	return nil
}

// ClaimRewards pays the owner of sessionID its current share of the pool.
// Each session can be claimed once.
func (a *Agent) ClaimRewards(tx *state.Tx, caller core.Address, sessionID uint64) (uint64, error) {
	session, err := a.ledger.Get(tx, sessionID)
	if err != nil {
		return 0, err
	}
	if caller != session.Owner {
		return 0, fmt.Errorf("%w: %s does not own session %d", core.ErrUnauthorized, caller, sessionID)
	}
	claimed, err := a.IsClaimed(tx, sessionID)
	if err != nil {
		return 0, err
	}
	if claimed {
		return 0, fmt.Errorf("%w: session %d already claimed", core.ErrAlreadyDone, sessionID)
	}
	purchased, err := a.ledger.HasPurchased(tx, sessionID, a.address)
	if err != nil {
		return 0, err
	}
	if !purchased {
		return 0, fmt.Errorf("%w: session %d was not purchased by the agent", core.ErrUnauthorized, sessionID)
	}

	share, err := a.PeekShare(tx)
	if err != nil {
		return 0, err
	}
	if share == 0 {
		return 0, fmt.Errorf("%w: share of session %d is zero", core.ErrNothingToClaim, sessionID)
	}

	if err := a.store(tx).Put(claimKey(sessionID), []byte{byte(core.ClaimPaid)}); err != nil {
		return 0, err
	}
	if err := a.rewardAsset.Transfer(tx, a.address, session.Owner, share); err != nil {
		if !errors.Is(err, core.ErrPaymentFailure) {
			err = fmt.Errorf("%w: %v", core.ErrPaymentFailure, err)
		}
		return 0, err
	}

	tx.Emit(events.RewardsClaimed{SessionID: sessionID, Owner: session.Owner, Amount: share})
	return share, nil
}

// PeekShare returns what a claim would pay now.
func (a *Agent) PeekShare(tx *state.Tx) (uint64, error) {
	total, err := a.TotalPurchased(tx)
	if err != nil || total == 0 {
		return 0, err
	}
	pool, err := a.PoolBalance(tx)
	if err != nil {
		return 0, err
	}
	return pool / total, nil
}

// TotalPurchased returns the number of sessions the agent has bought.
func (a *Agent) TotalPurchased(tx *state.Tx) (uint64, error) {
	return storage.GetUint64(a.store(tx), totalKey)
}

// PoolBalance returns everything ever funded into the pool.
func (a *Agent) PoolBalance(tx *state.Tx) (uint64, error) {
	return storage.GetUint64(a.store(tx), poolKey)
}

// IsClaimed reports whether sessionID's reward has been paid.
func (a *Agent) IsClaimed(tx *state.Tx, sessionID uint64) (bool, error) {
	data, err := a.store(tx).Get(claimKey(sessionID))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(data) == 1 && core.ClaimState(data[0]) == core.ClaimPaid, nil
}
