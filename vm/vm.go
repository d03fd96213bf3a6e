// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/rpc/v2"
	grjson "github.com/gorilla/rpc/v2/json"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/Spielworks/plai/asset"
	"github.com/Spielworks/plai/config"
	"github.com/Spielworks/plai/core"
	"github.com/Spielworks/plai/events"
	"github.com/Spielworks/plai/ledger"
	"github.com/Spielworks/plai/orchestrator"
	"github.com/Spielworks/plai/rewards"
	"github.com/Spielworks/plai/state"
	"github.com/Spielworks/plai/storage"
)

var errNoGenesis = errors.New("genesis required")

// VM wires the ledger, the reward agent and the orchestrator over one
// runtime and serves them over JSON-RPC.
type VM struct {
	logger  log.Logger
	genesis *config.Genesis

	backend storage.Backend
	runtime *state.Runtime

	credit   *asset.Credit
	assets   *asset.Directory
	ledger   *ledger.Ledger
	agent    *rewards.Agent
	registry *orchestrator.Registry
	orch     *orchestrator.Orchestrator
}

// Initialize builds the components described by genesis over backend and
// applies genesis if the backend is fresh.
func (vm *VM) Initialize(ctx context.Context, logger log.Logger, genesis *config.Genesis, backend storage.Backend, clock state.Clock, publisher events.Publisher) error {
	if genesis == nil {
		return errNoGenesis
	}
	if err := genesis.Validate(); err != nil {
		return fmt.Errorf("invalid genesis: %w", err)
	}

	vm.logger = logger
	vm.genesis = genesis
	vm.backend = backend
	vm.runtime = state.New(backend, clock, publisher, logger)

	vm.credit = asset.NewCredit(genesis.Credit.Address, genesis.Credit.Minter, genesis.Credit.Symbol)
	vm.assets = asset.NewDirectory(vm.credit)
	vm.ledger = ledger.New(genesis.Ledger, genesis.Governor, vm.assets)
	vm.agent = rewards.New(genesis.Agent, genesis.AgentOperator, vm.credit, vm.ledger, vm.assets)
	vm.registry = orchestrator.NewRegistry(genesis.Governor)
	vm.orch = orchestrator.New(genesis.Orchestrator, vm.registry, vm.registry, vm.ledger, vm.assets)

	applied, err := vm.applyGenesis(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply genesis: %w", err)
	}

	vm.logger.Info("plai VM initialized",
		"genesisApplied", applied,
		"ledger", genesis.Ledger,
		"agent", genesis.Agent,
		"orchestrator", genesis.Orchestrator,
		"credit", genesis.Credit.Symbol,
	)
	return nil
}

// applyGenesis seeds a fresh backend. An already configured orchestrator
// means genesis ran before.
func (vm *VM) applyGenesis(ctx context.Context) (bool, error) {
	var configured bool
	if err := vm.runtime.View(func(tx *state.Tx) error {
		orch, err := vm.ledger.Orchestrator(tx)
		configured = !orch.Empty()
		return err
	}); err != nil {
		return false, err
	}
	if configured {
		return false, nil
	}

	g := vm.genesis
	_, err := vm.runtime.Execute(ctx, "genesis", func(tx *state.Tx) error {
		if err := vm.ledger.Bootstrap(tx, g.Orchestrator); err != nil {
			return err
		}
		for _, b := range g.Balances {
			if err := vm.credit.Mint(tx, g.Credit.Minter, b.Owner, b.Amount); err != nil {
				return err
			}
		}
		for _, id := range g.Identities {
			if err := vm.registry.IssueIdentity(tx, g.Governor, id); err != nil {
				return err
			}
		}
		for _, p := range g.Publishers {
			if err := vm.registry.RegisterPublisher(tx, g.Governor, p.Address); err != nil {
				return err
			}
			if !p.Verified {
				continue
			}
			if err := vm.registry.VerifyPublisher(tx, g.Governor, p.Address); err != nil {
				return err
			}
		}
		for _, game := range g.Games {
			if err := vm.registry.RegisterGame(tx, g.Governor, orchestrator.Game(game)); err != nil {
				return err
			}
		}
		return nil
	})
	return err == nil, err
}

// Shutdown closes the runtime's publisher and the backend.
func (vm *VM) Shutdown(ctx context.Context) error {
	vm.logger.Info("plai VM shutting down")
	return errors.Join(vm.runtime.Close(), vm.backend.Close())
}

// CreateHandlers returns the HTTP handlers for this VM
func (vm *VM) CreateHandlers(ctx context.Context) (map[string]http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(grjson.NewCodec(), "application/json")
	server.RegisterCodec(grjson.NewCodec(), "application/json;charset=UTF-8")

	if err := server.RegisterService(&Service{vm: vm}, Name); err != nil {
		return nil, fmt.Errorf("failed to register service: %w", err)
	}

	return map[string]http.Handler{
		"/rpc": server,
	}, nil
}

// NewMux serves the VM handlers and a /health endpoint.
func (vm *VM) NewMux(ctx context.Context) (*http.ServeMux, error) {
	handlers, err := vm.CreateHandlers(ctx)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	for path, handler := range handlers {
		mux.Handle(path, handler)
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health, err := vm.HealthCheck(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})
	return mux, nil
}

// Health is a snapshot of VM counters.
type Health struct {
	Healthy        bool   `json:"healthy"`
	Operations     uint64 `json:"operations"`
	Sessions       uint64 `json:"sessions"`
	TotalPurchased uint64 `json:"totalPurchased"`
	PoolBalance    uint64 `json:"poolBalance"`
}

// HealthCheck returns the health status of the VM
func (vm *VM) HealthCheck(ctx context.Context) (*Health, error) {
	ops, err := vm.runtime.Sequence()
	if err != nil {
		return &Health{}, err
	}
	h := &Health{Healthy: true, Operations: ops}
	err = vm.runtime.View(func(tx *state.Tx) error {
		var err error
		if h.Sessions, err = vm.ledger.SessionCount(tx); err != nil {
			return err
		}
		if h.TotalPurchased, err = vm.agent.TotalPurchased(tx); err != nil {
			return err
		}
		h.PoolBalance, err = vm.agent.PoolBalance(tx)
		return err
	})
	if err != nil {
		h.Healthy = false
	}
	return h, err
}

func (vm *VM) execute(ctx context.Context, op string, fn func(*state.Tx) error) (ids.ID, error) {
	txID, err := vm.runtime.Execute(ctx, op, fn)
	if err != nil && core.Kind(err) == nil {
		vm.logger.Error("operation failed", "op", op, "error", err)
	}
	return txID, err
}

// StartSession admits player into gameID through the orchestrator.
func (vm *VM) StartSession(ctx context.Context, player core.Address, gameID core.Hash) (uint64, ids.ID, error) {
	var sessionID uint64
	txID, err := vm.execute(ctx, "startSession", func(tx *state.Tx) error {
		var err error
		sessionID, err = vm.orch.StartSession(tx, player, gameID)
		return err
	})
	return sessionID, txID, err
}

// CreateSession calls the ledger directly as caller.
func (vm *VM) CreateSession(ctx context.Context, caller, owner core.Address, contextRef core.Hash, verifier core.Address, price uint64, paymentAsset core.Address) (uint64, ids.ID, error) {
	var sessionID uint64
	txID, err := vm.execute(ctx, "createSession", func(tx *state.Tx) error {
		var err error
		sessionID, err = vm.ledger.Create(tx, caller, owner, contextRef, verifier, price, paymentAsset)
		return err
	})
	return sessionID, txID, err
}

func (vm *VM) EndSession(ctx context.Context, caller core.Address, payloadRef string, payloadHash core.Hash) (uint64, ids.ID, error) {
	var sessionID uint64
	txID, err := vm.execute(ctx, "endSession", func(tx *state.Tx) error {
		var err error
		sessionID, err = vm.ledger.End(tx, caller, payloadRef, payloadHash)
		return err
	})
	return sessionID, txID, err
}

func (vm *VM) VerifySession(ctx context.Context, sessionID uint64, signature []byte) (ids.ID, error) {
	return vm.execute(ctx, "verifySession", func(tx *state.Tx) error {
		return vm.ledger.Verify(tx, sessionID, signature)
	})
}

func (vm *VM) PurchaseSession(ctx context.Context, sessionID uint64, buyer core.Address) (ids.ID, error) {
	return vm.execute(ctx, "purchaseSession", func(tx *state.Tx) error {
		return vm.ledger.Purchase(tx, sessionID, buyer)
	})
}

func (vm *VM) AgentPurchase(ctx context.Context, caller core.Address, sessionID uint64) (ids.ID, error) {
	return vm.execute(ctx, "agentPurchase", func(tx *state.Tx) error {
		return vm.agent.PurchaseOne(tx, caller, sessionID)
	})
}

func (vm *VM) AgentPurchaseBatch(ctx context.Context, caller core.Address, sessionIDs []uint64) (ids.ID, error) {
	return vm.execute(ctx, "agentPurchaseBatch", func(tx *state.Tx) error {
		return vm.agent.PurchaseBatch(tx, caller, sessionIDs)
	})
}

func (vm *VM) FundPool(ctx context.Context, caller core.Address, amount uint64) (ids.ID, error) {
	return vm.execute(ctx, "fundPool", func(tx *state.Tx) error {
		return vm.agent.FundPool(tx, caller, amount)
	})
}

func (vm *VM) ClaimRewards(ctx context.Context, caller core.Address, sessionID uint64) (uint64, ids.ID, error) {
	var paid uint64
	txID, err := vm.execute(ctx, "claimRewards", func(tx *state.Tx) error {
		var err error
		paid, err = vm.agent.ClaimRewards(tx, caller, sessionID)
		return err
	})
	return paid, txID, err
}

func (vm *VM) Approve(ctx context.Context, owner, spender core.Address, amount uint64) (ids.ID, error) {
	return vm.execute(ctx, "approve", func(tx *state.Tx) error {
		return vm.credit.Approve(tx, owner, spender, amount)
	})
}

func (vm *VM) Transfer(ctx context.Context, from, to core.Address, amount uint64) (ids.ID, error) {
	return vm.execute(ctx, "transfer", func(tx *state.Tx) error {
		return vm.credit.Transfer(tx, from, to, amount)
	})
}

func (vm *VM) SetOrchestrator(ctx context.Context, caller, next core.Address) (ids.ID, error) {
	return vm.execute(ctx, "setOrchestrator", func(tx *state.Tx) error {
		return vm.ledger.SetOrchestrator(tx, caller, next)
	})
}

// GetSession returns a session by id.
func (vm *VM) GetSession(sessionID uint64) (*core.Session, error) {
	var session *core.Session
	err := vm.runtime.View(func(tx *state.Tx) error {
		var err error
		session, err = vm.ledger.Get(tx, sessionID)
		return err
	})
	return session, err
}

func (vm *VM) HasPurchased(sessionID uint64, buyer core.Address) (bool, error) {
	var ok bool
	err := vm.runtime.View(func(tx *state.Tx) error {
		var err error
		ok, err = vm.ledger.HasPurchased(tx, sessionID, buyer)
		return err
	})
	return ok, err
}

func (vm *VM) ActiveSession(owner core.Address) (uint64, bool, error) {
	var (
		sessionID uint64
		ok        bool
	)
	err := vm.runtime.View(func(tx *state.Tx) error {
		var err error
		sessionID, ok, err = vm.ledger.ActiveSession(tx, owner)
		return err
	})
	return sessionID, ok, err
}

// PoolStatus is the reward agent's state.
type PoolStatus struct {
	Agent          core.Address `json:"agent"`
	TotalPurchased uint64       `json:"totalPurchased"`
	PoolBalance    uint64       `json:"poolBalance"`
	Share          uint64       `json:"share"`
	Custody        uint64       `json:"custody"`
}

func (vm *VM) PoolStatus() (*PoolStatus, error) {
	st := &PoolStatus{Agent: vm.agent.Address()}
	err := vm.runtime.View(func(tx *state.Tx) error {
		var err error
		if st.TotalPurchased, err = vm.agent.TotalPurchased(tx); err != nil {
			return err
		}
		if st.PoolBalance, err = vm.agent.PoolBalance(tx); err != nil {
			return err
		}
		if st.Share, err = vm.agent.PeekShare(tx); err != nil {
			return err
		}
		st.Custody, err = vm.credit.BalanceOf(tx, vm.agent.Address())
		return err
	})
	return st, err
}

func (vm *VM) IsClaimed(sessionID uint64) (bool, error) {
	var claimed bool
	err := vm.runtime.View(func(tx *state.Tx) error {
		var err error
		claimed, err = vm.agent.IsClaimed(tx, sessionID)
		return err
	})
	return claimed, err
}

// Balance returns who's credit balance and the allowance it granted spender.
func (vm *VM) Balance(who, spender core.Address) (uint64, uint64, error) {
	var bal, allowance uint64
	err := vm.runtime.View(func(tx *state.Tx) error {
		var err error
		if bal, err = vm.credit.BalanceOf(tx, who); err != nil {
			return err
		}
		if spender.Empty() {
			return nil
		}
		allowance, err = vm.credit.Allowance(tx, who, spender)
		return err
	})
	return bal, allowance, err
}
