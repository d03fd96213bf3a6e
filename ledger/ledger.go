// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger implements the session ledger: creation by the orchestrator,
// closing by the owner, attestation by the verifier and per-buyer purchase of
// access to the session payload.
//
// Every method runs inside a state.Tx; an error aborts the whole surrounding
// operation, so methods check all preconditions but do not undo partial
// writes themselves.
package ledger

import (
	"errors"
	"fmt"

	"github.com/Spielworks/plai/asset"
	"github.com/Spielworks/plai/core"
	"github.com/Spielworks/plai/events"
	"github.com/Spielworks/plai/protocol"
	"github.com/Spielworks/plai/state"
	"github.com/Spielworks/plai/storage"
)

var (
	orchestratorKey = []byte("meta:orchestrator")
	nextIDKey       = []byte("meta:next")

	sessionPrefix  = []byte("sess:")
	activePrefix   = []byte("active:")
	purchasePrefix = []byte("purch:")
)

// Ledger is the session ledger.
type Ledger struct {
	address  core.Address
	governor core.Address
	assets   *asset.Directory
}

// New creates a ledger. address is the identity the ledger spends allowances
// as; governor is the only identity allowed to change the orchestrator.
func New(address, governor core.Address, assets *asset.Directory) *Ledger {
	return &Ledger{
		address:  address,
		governor: governor,
		assets:   assets,
	}
}

// Address returns the identity buyers approve before purchasing.
func (l *Ledger) Address() core.Address { return l.address }

// Governor returns the governing identity.
func (l *Ledger) Governor() core.Address { return l.governor }

func (l *Ledger) store(tx *state.Tx) storage.Store {
	return tx.Namespace(storage.PrefixLedger)
}

func (l *Ledger) sessions(tx *state.Tx) *storage.SessionStore {
	return storage.NewSessionStore(storage.NewNamespace(l.store(tx), sessionPrefix))
}

func activeKey(owner core.Address) []byte {
	return append(append([]byte{}, activePrefix...), owner[:]...)
}

func purchaseKey(sessionID uint64, buyer core.Address) []byte {
	key := append(append([]byte{}, purchasePrefix...), core.Uint64ToBytes(sessionID)...)
	return append(key, buyer[:]...)
}

// Bootstrap sets the initial orchestrator. It can only be used once.
func (l *Ledger) Bootstrap(tx *state.Tx, orchestrator core.Address) error {
	if orchestrator.Empty() {
		return fmt.Errorf("%w: orchestrator must be set", core.ErrInvalidState)
	}
	has, err := l.store(tx).Has(orchestratorKey)
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("%w: orchestrator already configured", core.ErrAlreadyDone)
	}
	return l.store(tx).Put(orchestratorKey, orchestrator[:])
}

// Orchestrator returns the identity allowed to create sessions.
func (l *Ledger) Orchestrator(tx *state.Tx) (core.Address, error) {
	data, err := l.store(tx).Get(orchestratorKey)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Address{}, nil
	}
	if err != nil {
		return core.Address{}, err
	}
	return core.AddressFromBytes(data), nil
}

// SetOrchestrator replaces the orchestrator. Governor only.
func (l *Ledger) SetOrchestrator(tx *state.Tx, caller, next core.Address) error {
	if caller != l.governor {
		return fmt.Errorf("%w: %s is not the governor", core.ErrUnauthorized, caller)
	}
	if next.Empty() {
		return fmt.Errorf("%w: orchestrator must be set", core.ErrInvalidState)
	}
	prev, err := l.Orchestrator(tx)
	if err != nil {
		return err
	}
	if err := l.store(tx).Put(orchestratorKey, next[:]); err != nil {
		return err
	}
	tx.Emit(events.OrchestratorChanged{Previous: prev, Current: next})
	return nil
}

// Create opens a new session for owner. Only the orchestrator may call it,
// and owner must not already hold an open session.
func (l *Ledger) Create(tx *state.Tx, caller, owner core.Address, contextRef core.Hash, verifier core.Address, price uint64, paymentAsset core.Address) (uint64, error) {
	orchestrator, err := l.Orchestrator(tx)
	if err != nil {
		return 0, err
	}
	if orchestrator.Empty() || caller != orchestrator {
		return 0, fmt.Errorf("%w: %s is not the orchestrator", core.ErrUnauthorized, caller)
	}
	if owner.Empty() {
		return 0, fmt.Errorf("%w: owner must be set", core.ErrInvalidState)
	}
	if active, ok, err := l.ActiveSession(tx, owner); err != nil {
		return 0, err
	} else if ok {
		return 0, fmt.Errorf("%w: %s already holds open session %d", core.ErrConflictingState, owner, active)
	}

	s := l.store(tx)
	last, err := storage.GetUint64(s, nextIDKey)
	if err != nil {
		return 0, err
	}
	id := last + 1

	session := &core.Session{
		ID:           id,
		Owner:        owner,
		ContextRef:   contextRef,
		Verifier:     verifier,
		StartedAt:    tx.Now(),
		Stage:        core.StageOpen,
		Price:        price,
		PaymentAsset: paymentAsset,
	}
	if err := l.sessions(tx).Put(session); err != nil {
		return 0, err
	}
	if err := storage.PutUint64(s, nextIDKey, id); err != nil {
		return 0, err
	}
	if err := storage.PutUint64(s, activeKey(owner), id); err != nil {
		return 0, err
	}

	tx.Emit(events.SessionCreated{
		SessionID:    id,
		Owner:        owner,
		ContextRef:   contextRef,
		Verifier:     verifier,
		StartedAt:    session.StartedAt,
		Price:        price,
		PaymentAsset: paymentAsset,
	})
	return id, nil
}

// End closes the caller's open session and commits its payload.
func (l *Ledger) End(tx *state.Tx, caller core.Address, payloadRef string, payloadHash core.Hash) (uint64, error) {
	id, ok, err := l.ActiveSession(tx, caller)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s has no open session", core.ErrNotFound, caller)
	}
	session, err := l.Get(tx, id)
	if err != nil {
		return 0, err
	}

	now := tx.Now()
	if now < session.StartedAt || now-session.StartedAt < core.MinSessionDuration {
		return 0, fmt.Errorf("%w: session %d started at %d, earliest end %d", core.ErrTooSoon, id, session.StartedAt, session.StartedAt+core.MinSessionDuration)
	}

	session.EndedAt = now
	session.PayloadRef = payloadRef
	session.PayloadHash = payloadHash
	session.Stage = core.StageClosed
	if err := l.sessions(tx).Put(session); err != nil {
		return 0, err
	}
	if err := l.store(tx).Delete(activeKey(caller)); err != nil {
		return 0, err
	}

	tx.Emit(events.SessionEnded{
		SessionID:   id,
		Owner:       caller,
		EndedAt:     now,
		PayloadRef:  payloadRef,
		PayloadHash: payloadHash,
	})
	return id, nil
}

// Verify marks a closed session verified if signature was produced by the
// verifier captured at creation.
func (l *Ledger) Verify(tx *state.Tx, sessionID uint64, signature []byte) error {
	session, err := l.Get(tx, sessionID)
	if err != nil {
		return err
	}
	switch session.Stage {
	case core.StageClosed:
	case core.StageVerified:
		return fmt.Errorf("%w: session %d already verified", core.ErrInvalidState, sessionID)
	default:
		return fmt.Errorf("%w: session %d is %s", core.ErrInvalidState, sessionID, session.Stage)
	}

	if err := protocol.AttestationFor(session).VerifySigner(signature, session.Verifier); err != nil {
		return fmt.Errorf("%w: %v", core.ErrUnauthorized, err)
	}

	session.Stage = core.StageVerified
	if err := l.sessions(tx).Put(session); err != nil {
		return err
	}

	tx.Emit(events.SessionVerified{SessionID: sessionID, Verifier: session.Verifier})
	return nil
}

// Purchase records that buyer bought access to a closed session, pulling the
// price from buyer to the owner through the ledger's allowance.
func (l *Ledger) Purchase(tx *state.Tx, sessionID uint64, buyer core.Address) error {
	session, err := l.Get(tx, sessionID)
	if err != nil {
		return err
	}
	if !session.Purchasable() {
		return fmt.Errorf("%w: session %d is %s", core.ErrInvalidState, sessionID, session.Stage)
	}
	purchased, err := l.HasPurchased(tx, sessionID, buyer)
	if err != nil {
		return err
	}
	if purchased {
		return fmt.Errorf("%w: %s already purchased session %d", core.ErrAlreadyDone, buyer, sessionID)
	}

	if session.Price > 0 {
		port, err := l.assets.MustLookup(session.PaymentAsset)
		if err != nil {
			return err
		}
		if err := port.TransferFrom(tx, l.address, buyer, session.Owner, session.Price); err != nil {
			if !errors.Is(err, core.ErrPaymentFailure) {
				err = fmt.Errorf("%w: %v", core.ErrPaymentFailure, err)
			}
			return err
		}
	}

	if err := l.store(tx).Put(purchaseKey(sessionID, buyer), []byte{byte(core.PurchaseRecorded)}); err != nil {
		return err
	}

	tx.Emit(events.SessionPurchased{SessionID: sessionID, Buyer: buyer, Price: session.Price})
	return nil
}

// Get returns a session by id.
func (l *Ledger) Get(tx *state.Tx, sessionID uint64) (*core.Session, error) {
	if sessionID == 0 {
		return nil, fmt.Errorf("%w: session 0", core.ErrNotFound)
	}
	session, err := l.sessions(tx).Get(sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: session %d", core.ErrNotFound, sessionID)
	}
	return session, err
}

// PurchaseState returns the purchase state of (sessionID, buyer).
func (l *Ledger) PurchaseState(tx *state.Tx, sessionID uint64, buyer core.Address) (core.PurchaseState, error) {
	data, err := l.store(tx).Get(purchaseKey(sessionID, buyer))
	if errors.Is(err, storage.ErrNotFound) {
		return core.PurchaseNone, nil
	}
	if err != nil {
		return core.PurchaseNone, err
	}
	if len(data) != 1 {
		return core.PurchaseNone, fmt.Errorf("corrupt purchase record for session %d", sessionID)
	}
	return core.PurchaseState(data[0]), nil
}

// HasPurchased reports whether buyer has purchased sessionID.
func (l *Ledger) HasPurchased(tx *state.Tx, sessionID uint64, buyer core.Address) (bool, error) {
	st, err := l.PurchaseState(tx, sessionID, buyer)
	return st == core.PurchaseRecorded, err
}

// ActiveSession returns owner's open session, if any.
func (l *Ledger) ActiveSession(tx *state.Tx, owner core.Address) (uint64, bool, error) {
	data, err := l.store(tx).Get(activeKey(owner))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return core.BytesToUint64(data), true, nil
}

// IsActiveFor reports whether sessionID is owner's open session.
func (l *Ledger) IsActiveFor(tx *state.Tx, owner core.Address, sessionID uint64) (bool, error) {
	id, ok, err := l.ActiveSession(tx, owner)
	return ok && id == sessionID, err
}

// SessionCount returns the number of sessions ever created.
func (l *Ledger) SessionCount(tx *state.Tx) (uint64, error) {
	return storage.GetUint64(l.store(tx), nextIDKey)
}
