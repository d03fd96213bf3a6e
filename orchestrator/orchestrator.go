// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package orchestrator admits players into games. It checks the player's
// identity and the game's publisher, collects the entry fee and creates the
// session on the ledger as the ledger's authorized caller.
package orchestrator

import (
	"errors"
	"fmt"

	"github.com/Spielworks/plai/asset"
	"github.com/Spielworks/plai/core"
	"github.com/Spielworks/plai/ledger"
	"github.com/Spielworks/plai/state"
)

// Orchestrator starts sessions.
type Orchestrator struct {
	address  core.Address
	gate     IdentityGate
	registry *Registry
	ledger   *ledger.Ledger
	assets   *asset.Directory
}

// New creates an orchestrator acting as address. Players approve address
// before paying entry fees.
func New(address core.Address, gate IdentityGate, registry *Registry, l *ledger.Ledger, assets *asset.Directory) *Orchestrator {
	return &Orchestrator{
		address:  address,
		gate:     gate,
		registry: registry,
		ledger:   l,
		assets:   assets,
	}
}

// Address returns the orchestrator identity.
func (o *Orchestrator) Address() core.Address { return o.address }

// Registry returns the game registry.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// StartSession opens a session of gameID for player.
func (o *Orchestrator) StartSession(tx *state.Tx, player core.Address, gameID core.Hash) (uint64, error) {
	ok, err := o.gate.HasIdentity(tx, player)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s has no identity", core.ErrUnauthorized, player)
	}

	game, err := o.registry.Game(tx, gameID)
	if err != nil {
		return 0, err
	}
	status, err := o.registry.PublisherStatus(tx, game.Publisher)
	if err != nil {
		return 0, err
	}
	if status != PublisherVerified {
		return 0, fmt.Errorf("%w: publisher %s is %s", core.ErrUnauthorized, game.Publisher, status)
	}

	if game.EntryFee > 0 {
		port, err := o.assets.MustLookup(game.PaymentAsset)
		if err != nil {
			return 0, err
		}
		if err := port.TransferFrom(tx, o.address, player, game.Publisher, game.EntryFee); err != nil {
			if !errors.Is(err, core.ErrPaymentFailure) {
				err = fmt.Errorf("%w: %v", core.ErrPaymentFailure, err)
			}
			return 0, err
		}
	}

	return o.ledger.Create(tx, o.address, player, game.ID, game.Verifier, game.Price, game.PaymentAsset)
}
