// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package core

// MinSessionDuration is the minimum number of seconds between a session's
// start and its end.
const MinSessionDuration uint64 = 300

// Stage is the lifecycle stage of a session.
type Stage uint8

const (
	// StageOpen - created, not yet ended
	StageOpen Stage = iota
	// StageClosed - ended with a committed payload, not yet attested
	StageClosed
	// StageVerified - payload attested by the session's verifier (terminal)
	StageVerified
)

func (s Stage) String() string {
	switch s {
	case StageOpen:
		return "open"
	case StageClosed:
		return "closed"
	case StageVerified:
		return "verified"
	default:
		return "unknown"
	}
}

// Ended reports whether a session in this stage has been closed by its owner.
func (s Stage) Ended() bool {
	return s == StageClosed || s == StageVerified
}

// PurchaseState is the write-once state of a (session, buyer) pair.
type PurchaseState uint8

const (
	PurchaseNone     PurchaseState = iota // No purchase recorded
	PurchaseRecorded                      // Purchased; never cleared
)

// ClaimState is the write-once reward claim state of a session.
type ClaimState uint8

const (
	ClaimNone ClaimState = iota
	ClaimPaid
)

// Session is one recorded gameplay occurrence.
type Session struct {
	// ID is the ledger-assigned identifier, starting at 1
	ID uint64 `json:"id"`

	// Owner holds the session and is the only party allowed to end it or claim for it
	Owner Address `json:"owner"`

	// ContextRef references the originating game
	ContextRef Hash `json:"contextRef"`

	// Verifier is the identity whose signature attests the final payload
	Verifier Address `json:"verifier"`

	// StartedAt and EndedAt are unix seconds; EndedAt is zero while open
	StartedAt uint64 `json:"startedAt"`
	EndedAt   uint64 `json:"endedAt"`

	// PayloadRef and PayloadHash commit to the off-line payload (set once at end)
	PayloadRef  string `json:"payloadRef"`
	PayloadHash Hash   `json:"payloadHash"`

	// Stage is the lifecycle stage
	Stage Stage `json:"stage"`

	// Price and PaymentAsset are the purchase terms fixed at creation
	Price        uint64  `json:"price"`
	PaymentAsset Address `json:"paymentAsset"`
}

// Verified reports whether the session payload has been attested.
func (s *Session) Verified() bool {
	return s.Stage == StageVerified
}

// Purchasable reports whether buyers may acquire access to the session.
func (s *Session) Purchasable() bool {
	return s.Stage.Ended()
}
