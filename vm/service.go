// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"net/http"

	"github.com/Spielworks/plai/core"
)

// Service provides RPC methods for the plai VM. Mutating calls act as From;
// authenticating From is left to the transport in front of the VM.
type Service struct {
	vm *VM
}

// TxReply is the reply for calls that only report the committed operation
type TxReply struct {
	TxID string `json:"txId"`
}

// SessionReply is the reply for calls that yield a session id
type SessionReply struct {
	SessionID uint64 `json:"sessionId"`
	TxID      string `json:"txId"`
}

// StartSessionArgs are the arguments for StartSession
type StartSessionArgs struct {
	From   core.Address `json:"from"`
	GameID core.Hash    `json:"gameId"`
}

// StartSession admits From into a game through the orchestrator
func (s *Service) StartSession(r *http.Request, args *StartSessionArgs, reply *SessionReply) error {
	id, txID, err := s.vm.StartSession(r.Context(), args.From, args.GameID)
	if err != nil {
		return err
	}
	reply.SessionID = id
	reply.TxID = txID.String()
	return nil
}

// CreateSessionArgs are the arguments for CreateSession
type CreateSessionArgs struct {
	From         core.Address `json:"from"`
	Owner        core.Address `json:"owner"`
	ContextRef   core.Hash    `json:"contextRef"`
	Verifier     core.Address `json:"verifier"`
	Price        uint64       `json:"price"`
	PaymentAsset core.Address `json:"paymentAsset"`
}

// CreateSession creates a session on the ledger directly; From must be the
// orchestrator
func (s *Service) CreateSession(r *http.Request, args *CreateSessionArgs, reply *SessionReply) error {
	id, txID, err := s.vm.CreateSession(r.Context(), args.From, args.Owner, args.ContextRef, args.Verifier, args.Price, args.PaymentAsset)
	if err != nil {
		return err
	}
	reply.SessionID = id
	reply.TxID = txID.String()
	return nil
}

// EndSessionArgs are the arguments for EndSession
type EndSessionArgs struct {
	From        core.Address `json:"from"`
	PayloadRef  string       `json:"payloadRef"`
	PayloadHash core.Hash    `json:"payloadHash"`
}

// EndSession closes From's open session
func (s *Service) EndSession(r *http.Request, args *EndSessionArgs, reply *SessionReply) error {
	id, txID, err := s.vm.EndSession(r.Context(), args.From, args.PayloadRef, args.PayloadHash)
	if err != nil {
		return err
	}
	reply.SessionID = id
	reply.TxID = txID.String()
	return nil
}

// VerifySessionArgs are the arguments for VerifySession
type VerifySessionArgs struct {
	SessionID uint64        `json:"sessionId"`
	Signature core.HexBytes `json:"signature"` // 65-byte r||s||v
}

// VerifySession submits the verifier's attestation
func (s *Service) VerifySession(r *http.Request, args *VerifySessionArgs, reply *TxReply) error {
	txID, err := s.vm.VerifySession(r.Context(), args.SessionID, args.Signature)
	if err != nil {
		return err
	}
	reply.TxID = txID.String()
	return nil
}

// SessionArgs name a session on behalf of From
type SessionArgs struct {
	From      core.Address `json:"from"`
	SessionID uint64       `json:"sessionId"`
}

// PurchaseSession buys access to a session for From
func (s *Service) PurchaseSession(r *http.Request, args *SessionArgs, reply *TxReply) error {
	txID, err := s.vm.PurchaseSession(r.Context(), args.SessionID, args.From)
	if err != nil {
		return err
	}
	reply.TxID = txID.String()
	return nil
}

// AgentPurchase makes the reward agent buy one session; From must be the
// agent operator
func (s *Service) AgentPurchase(r *http.Request, args *SessionArgs, reply *TxReply) error {
	txID, err := s.vm.AgentPurchase(r.Context(), args.From, args.SessionID)
	if err != nil {
		return err
	}
	reply.TxID = txID.String()
	return nil
}

// AgentPurchaseBatchArgs are the arguments for AgentPurchaseBatch
type AgentPurchaseBatchArgs struct {
	From       core.Address `json:"from"`
	SessionIDs []uint64     `json:"sessionIds"`
}

// AgentPurchaseBatch makes the reward agent buy several sessions at once
func (s *Service) AgentPurchaseBatch(r *http.Request, args *AgentPurchaseBatchArgs, reply *TxReply) error {
	txID, err := s.vm.AgentPurchaseBatch(r.Context(), args.From, args.SessionIDs)
	if err != nil {
		return err
	}
	reply.TxID = txID.String()
	return nil
}

// AmountArgs carry an amount on behalf of From
type AmountArgs struct {
	From   core.Address `json:"from"`
	Amount uint64       `json:"amount"`
}

// FundPool adds From's credit to the reward pool
func (s *Service) FundPool(r *http.Request, args *AmountArgs, reply *TxReply) error {
	txID, err := s.vm.FundPool(r.Context(), args.From, args.Amount)
	if err != nil {
		return err
	}
	reply.TxID = txID.String()
	return nil
}

// ClaimRewardsReply is the reply for ClaimRewards
type ClaimRewardsReply struct {
	Amount uint64 `json:"amount"`
	TxID   string `json:"txId"`
}

// ClaimRewards pays the owner's share for a purchased session
func (s *Service) ClaimRewards(r *http.Request, args *SessionArgs, reply *ClaimRewardsReply) error {
	paid, txID, err := s.vm.ClaimRewards(r.Context(), args.From, args.SessionID)
	if err != nil {
		return err
	}
	reply.Amount = paid
	reply.TxID = txID.String()
	return nil
}

// PeekShareArgs are the arguments for PeekShare
type PeekShareArgs struct{}

// PeekShareReply is the reply for PeekShare
type PeekShareReply struct {
	Share uint64 `json:"share"`
}

// PeekShare returns what a claim would pay now
func (s *Service) PeekShare(r *http.Request, args *PeekShareArgs, reply *PeekShareReply) error {
	st, err := s.vm.PoolStatus()
	if err != nil {
		return err
	}
	reply.Share = st.Share
	return nil
}

// GetSessionArgs are the arguments for GetSession
type GetSessionArgs struct {
	SessionID uint64 `json:"sessionId"`
}

// GetSessionReply is the reply for GetSession
type GetSessionReply struct {
	Session *core.Session `json:"session"`
	Stage   string        `json:"stage"`
	Claimed bool          `json:"claimed"`
}

// GetSession returns session details
func (s *Service) GetSession(r *http.Request, args *GetSessionArgs, reply *GetSessionReply) error {
	session, err := s.vm.GetSession(args.SessionID)
	if err != nil {
		return err
	}
	claimed, err := s.vm.IsClaimed(args.SessionID)
	if err != nil {
		return err
	}
	reply.Session = session
	reply.Stage = session.Stage.String()
	reply.Claimed = claimed
	return nil
}

// HasPurchasedArgs are the arguments for HasPurchased
type HasPurchasedArgs struct {
	SessionID uint64       `json:"sessionId"`
	Buyer     core.Address `json:"buyer"`
}

// HasPurchasedReply is the reply for HasPurchased
type HasPurchasedReply struct {
	Purchased bool `json:"purchased"`
}

// HasPurchased reports whether Buyer bought a session
func (s *Service) HasPurchased(r *http.Request, args *HasPurchasedArgs, reply *HasPurchasedReply) error {
	ok, err := s.vm.HasPurchased(args.SessionID, args.Buyer)
	if err != nil {
		return err
	}
	reply.Purchased = ok
	return nil
}

// ActiveSessionArgs are the arguments for ActiveSession
type ActiveSessionArgs struct {
	Owner core.Address `json:"owner"`
}

// ActiveSessionReply is the reply for ActiveSession
type ActiveSessionReply struct {
	Active    bool   `json:"active"`
	SessionID uint64 `json:"sessionId,omitempty"`
}

// ActiveSession returns Owner's open session, if any
func (s *Service) ActiveSession(r *http.Request, args *ActiveSessionArgs, reply *ActiveSessionReply) error {
	id, ok, err := s.vm.ActiveSession(args.Owner)
	if err != nil {
		return err
	}
	reply.Active = ok
	reply.SessionID = id
	return nil
}

// PoolStatusArgs are the arguments for PoolStatus
type PoolStatusArgs struct{}

// PoolStatus returns the reward agent's counters
func (s *Service) PoolStatus(r *http.Request, args *PoolStatusArgs, reply *PoolStatus) error {
	st, err := s.vm.PoolStatus()
	if err != nil {
		return err
	}
	*reply = *st
	return nil
}

// BalanceArgs are the arguments for Balance
type BalanceArgs struct {
	Owner   core.Address `json:"owner"`
	Spender core.Address `json:"spender"` // optional
}

// BalanceReply is the reply for Balance
type BalanceReply struct {
	Balance   uint64 `json:"balance"`
	Allowance uint64 `json:"allowance"`
}

// Balance returns Owner's credit balance and its allowance for Spender
func (s *Service) Balance(r *http.Request, args *BalanceArgs, reply *BalanceReply) error {
	bal, allowance, err := s.vm.Balance(args.Owner, args.Spender)
	if err != nil {
		return err
	}
	reply.Balance = bal
	reply.Allowance = allowance
	return nil
}

// ApproveArgs are the arguments for Approve
type ApproveArgs struct {
	From    core.Address `json:"from"`
	Spender core.Address `json:"spender"`
	Amount  uint64       `json:"amount"`
}

// Approve sets Spender's allowance over From's credit
func (s *Service) Approve(r *http.Request, args *ApproveArgs, reply *TxReply) error {
	txID, err := s.vm.Approve(r.Context(), args.From, args.Spender, args.Amount)
	if err != nil {
		return err
	}
	reply.TxID = txID.String()
	return nil
}

// TransferArgs are the arguments for Transfer
type TransferArgs struct {
	From   core.Address `json:"from"`
	To     core.Address `json:"to"`
	Amount uint64       `json:"amount"`
}

// Transfer moves From's credit to To
func (s *Service) Transfer(r *http.Request, args *TransferArgs, reply *TxReply) error {
	txID, err := s.vm.Transfer(r.Context(), args.From, args.To, args.Amount)
	if err != nil {
		return err
	}
	reply.TxID = txID.String()
	return nil
}

// SetOrchestratorArgs are the arguments for SetOrchestrator
type SetOrchestratorArgs struct {
	From         core.Address `json:"from"`
	Orchestrator core.Address `json:"orchestrator"`
}

// SetOrchestrator replaces the ledger's orchestrator; From must be the
// governor
func (s *Service) SetOrchestrator(r *http.Request, args *SetOrchestratorArgs, reply *TxReply) error {
	txID, err := s.vm.SetOrchestrator(r.Context(), args.From, args.Orchestrator)
	if err != nil {
		return err
	}
	reply.TxID = txID.String()
	return nil
}

// HealthArgs are the arguments for Health
type HealthArgs struct{}

// Health returns the health status
func (s *Service) Health(r *http.Request, args *HealthArgs, reply *Health) error {
	h, err := s.vm.HealthCheck(r.Context())
	if h != nil {
		*reply = *h
	}
	return err
}
