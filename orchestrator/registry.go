// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Spielworks/plai/core"
	"github.com/Spielworks/plai/state"
	"github.com/Spielworks/plai/storage"
)

var (
	identityPrefix  = []byte("id:")
	publisherPrefix = []byte("pub:")
	gamePrefix      = []byte("game:")
)

// PublisherStatus is the lifecycle state of a game publisher.
type PublisherStatus uint8

const (
	PublisherUnknown    PublisherStatus = iota
	PublisherRegistered                 // Registered but not yet verified
	PublisherVerified                   // May host sessions
	PublisherSuspended                  // Temporarily barred
)

func (s PublisherStatus) String() string {
	switch s {
	case PublisherRegistered:
		return "registered"
	case PublisherVerified:
		return "verified"
	case PublisherSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Game is a playable title and the terms its sessions are created with.
type Game struct {
	// ID is the context reference stored on every session of this game
	ID core.Hash `json:"id"`

	// Publisher receives entry fees
	Publisher core.Address `json:"publisher"`

	// Verifier attests the sessions of this game
	Verifier core.Address `json:"verifier"`

	// Price is what a buyer pays for a session of this game
	Price uint64 `json:"price"`

	// PaymentAsset is the asset Price and EntryFee are paid in
	PaymentAsset core.Address `json:"paymentAsset"`

	// EntryFee is collected from the player when a session starts
	EntryFee uint64 `json:"entryFee"`
}

// IdentityGate answers whether a participant holds an identity.
type IdentityGate interface {
	HasIdentity(tx *state.Tx, who core.Address) (bool, error)
}

// Registry keeps participant identities, publishers and games. Mutations are
// restricted to the governor.
type Registry struct {
	governor core.Address
}

// NewRegistry creates a registry governed by governor.
func NewRegistry(governor core.Address) *Registry {
	return &Registry{governor: governor}
}

func (r *Registry) store(tx *state.Tx) storage.Store {
	return tx.Namespace(storage.PrefixOrchestrator)
}

func (r *Registry) authorize(caller core.Address) error {
	if caller != r.governor {
		return fmt.Errorf("%w: %s is not the governor", core.ErrUnauthorized, caller)
	}
	return nil
}

func key(prefix []byte, id []byte) []byte {
	return append(append([]byte{}, prefix...), id...)
}

// IssueIdentity grants who an identity. Each participant holds at most one.
func (r *Registry) IssueIdentity(tx *state.Tx, caller, who core.Address) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	if who.Empty() {
		return fmt.Errorf("%w: identity for zero address", core.ErrInvalidState)
	}
	has, err := r.HasIdentity(tx, who)
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("%w: %s already holds an identity", core.ErrAlreadyDone, who)
	}
	return r.store(tx).Put(key(identityPrefix, who[:]), []byte{1})
}

// HasIdentity reports whether who holds an identity.
func (r *Registry) HasIdentity(tx *state.Tx, who core.Address) (bool, error) {
	return r.store(tx).Has(key(identityPrefix, who[:]))
}

// RegisterPublisher adds an unverified publisher.
func (r *Registry) RegisterPublisher(tx *state.Tx, caller, publisher core.Address) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	if publisher.Empty() {
		return fmt.Errorf("%w: publisher must be set", core.ErrInvalidState)
	}
	status, err := r.PublisherStatus(tx, publisher)
	if err != nil {
		return err
	}
	if status != PublisherUnknown {
		return fmt.Errorf("%w: publisher %s is %s", core.ErrAlreadyDone, publisher, status)
	}
	return r.setStatus(tx, publisher, PublisherRegistered)
}

// VerifyPublisher allows a registered or suspended publisher to host sessions.
func (r *Registry) VerifyPublisher(tx *state.Tx, caller, publisher core.Address) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	status, err := r.PublisherStatus(tx, publisher)
	if err != nil {
		return err
	}
	switch status {
	case PublisherRegistered, PublisherSuspended:
	case PublisherUnknown:
		return fmt.Errorf("%w: publisher %s", core.ErrNotFound, publisher)
	default:
		return fmt.Errorf("%w: publisher %s is %s", core.ErrAlreadyDone, publisher, status)
	}
	return r.setStatus(tx, publisher, PublisherVerified)
}

// SuspendPublisher bars a verified publisher from hosting new sessions.
func (r *Registry) SuspendPublisher(tx *state.Tx, caller, publisher core.Address) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	status, err := r.PublisherStatus(tx, publisher)
	if err != nil {
		return err
	}
	if status != PublisherVerified {
		return fmt.Errorf("%w: publisher %s is %s", core.ErrInvalidState, publisher, status)
	}
	return r.setStatus(tx, publisher, PublisherSuspended)
}

// PublisherStatus returns the publisher's status, PublisherUnknown if never
// registered.
func (r *Registry) PublisherStatus(tx *state.Tx, publisher core.Address) (PublisherStatus, error) {
	data, err := r.store(tx).Get(key(publisherPrefix, publisher[:]))
	if errors.Is(err, storage.ErrNotFound) {
		return PublisherUnknown, nil
	}
	if err != nil {
		return PublisherUnknown, err
	}
	if len(data) != 1 {
		return PublisherUnknown, fmt.Errorf("corrupt publisher record for %s", publisher)
	}
	return PublisherStatus(data[0]), nil
}

func (r *Registry) setStatus(tx *state.Tx, publisher core.Address, status PublisherStatus) error {
	return r.store(tx).Put(key(publisherPrefix, publisher[:]), []byte{byte(status)})
}

// RegisterGame adds a game for a known publisher. Game ids are unique.
func (r *Registry) RegisterGame(tx *state.Tx, caller core.Address, game Game) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	if game.ID.Empty() {
		return fmt.Errorf("%w: game id must be set", core.ErrInvalidState)
	}
	if game.Verifier.Empty() {
		return fmt.Errorf("%w: game %s has no verifier", core.ErrInvalidState, game.ID)
	}
	status, err := r.PublisherStatus(tx, game.Publisher)
	if err != nil {
		return err
	}
	if status == PublisherUnknown {
		return fmt.Errorf("%w: publisher %s", core.ErrNotFound, game.Publisher)
	}
	exists, err := r.store(tx).Has(key(gamePrefix, game.ID[:]))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: game %s already registered", core.ErrAlreadyDone, game.ID)
	}

	data, err := json.Marshal(game)
	if err != nil {
		return err
	}
	return r.store(tx).Put(key(gamePrefix, game.ID[:]), data)
}

// Game returns a registered game.
func (r *Registry) Game(tx *state.Tx, id core.Hash) (*Game, error) {
	data, err := r.store(tx).Get(key(gamePrefix, id[:]))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: game %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var game Game
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, fmt.Errorf("decode game %s: %w", id, err)
	}
	return &game, nil
}

var _ IdentityGate = (*Registry)(nil)
