// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events defines the notifications emitted by ledger and reward
// operations and the publishers that deliver them for external indexing.
// Field order and types of every event are part of the wire format.
package events

import (
	"context"

	"github.com/luxfi/ids"

	"github.com/Spielworks/plai/core"
)

// Event topic constants
const (
	TopicSessionCreated      = "plai.session.created"
	TopicSessionEnded        = "plai.session.ended"
	TopicSessionVerified     = "plai.session.verified"
	TopicSessionPurchased    = "plai.session.purchased"
	TopicSessionsAcquired    = "plai.rewards.acquired"
	TopicPoolFunded          = "plai.rewards.funded"
	TopicRewardsClaimed      = "plai.rewards.claimed"
	TopicOrchestratorChanged = "plai.ledger.orchestrator_changed"
)

// Publisher delivers committed events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Event is implemented by every notification payload.
type Event interface {
	Topic() string
}

// Envelope wraps a payload with the operation that produced it.
type Envelope struct {
	TxID    ids.ID `json:"tx_id"`
	Topic   string `json:"topic"`
	Payload Event  `json:"payload"`
}

type SessionCreated struct {
	SessionID    uint64       `json:"session_id"`
	Owner        core.Address `json:"owner"`
	ContextRef   core.Hash    `json:"context_ref"`
	Verifier     core.Address `json:"verifier"`
	StartedAt    uint64       `json:"started_at"`
	Price        uint64       `json:"price"`
	PaymentAsset core.Address `json:"payment_asset"`
}

func (SessionCreated) Topic() string { return TopicSessionCreated }

type SessionEnded struct {
	SessionID   uint64       `json:"session_id"`
	Owner       core.Address `json:"owner"`
	EndedAt     uint64       `json:"ended_at"`
	PayloadRef  string       `json:"payload_ref"`
	PayloadHash core.Hash    `json:"payload_hash"`
}

func (SessionEnded) Topic() string { return TopicSessionEnded }

type SessionVerified struct {
	SessionID uint64       `json:"session_id"`
	Verifier  core.Address `json:"verifier"`
}

func (SessionVerified) Topic() string { return TopicSessionVerified }

type SessionPurchased struct {
	SessionID uint64       `json:"session_id"`
	Buyer     core.Address `json:"buyer"`
	Price     uint64       `json:"price"`
}

func (SessionPurchased) Topic() string { return TopicSessionPurchased }

// SessionsAcquired is emitted when the reward agent buys one or more sessions.
type SessionsAcquired struct {
	SessionIDs     []uint64 `json:"session_ids"`
	TotalPurchased uint64   `json:"total_purchased"`
}

func (SessionsAcquired) Topic() string { return TopicSessionsAcquired }

type PoolFunded struct {
	Funder      core.Address `json:"funder"`
	Amount      uint64       `json:"amount"`
	PoolBalance uint64       `json:"pool_balance"`
}

func (PoolFunded) Topic() string { return TopicPoolFunded }

type RewardsClaimed struct {
	SessionID uint64       `json:"session_id"`
	Owner     core.Address `json:"owner"`
	Amount    uint64       `json:"amount"`
}

func (RewardsClaimed) Topic() string { return TopicRewardsClaimed }

type OrchestratorChanged struct {
	Previous core.Address `json:"previous"`
	Current  core.Address `json:"current"`
}

func (OrchestratorChanged) Topic() string { return TopicOrchestratorChanged }
