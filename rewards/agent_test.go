// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rewards

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/luxfi/log"

	"github.com/Spielworks/plai/asset"
	"github.com/Spielworks/plai/core"
	"github.com/Spielworks/plai/events"
	"github.com/Spielworks/plai/ledger"
	"github.com/Spielworks/plai/state"
	"github.com/Spielworks/plai/storage"
)

var (
	governor     = core.Address{0x90}
	orchestrator = core.Address{0x0c}
	operator     = core.Address{0x0e}
	verifier     = core.Address{0x7e}
	ledgerAddr   = core.Address{0x1e}
	agentAddr    = core.Address{0xa9}
	creditAddr   = core.Address{0xcc}
	funder       = core.Address{0xf0}
	alice        = core.Address{0xa1}
	bob          = core.Address{0xb0}
	carol        = core.Address{0xca}
	game         = core.Keccak256([]byte("game-1"))
)

type testEnv struct {
	t      *testing.T
	rt     *state.Runtime
	clock  *state.ManualClock
	rec    *events.Recorder
	credit *asset.Credit
	ledger *ledger.Ledger
	agent  *Agent
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := storage.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	rec := &events.Recorder{}
	clock := state.NewManualClock(1_000)
	credit := asset.NewCredit(creditAddr, governor, "PLAI")
	assets := asset.NewDirectory(credit)
	l := ledger.New(ledgerAddr, governor, assets)

	env := &testEnv{
		t:      t,
		rt:     state.New(store, clock, rec, log.NewWriter(io.Discard)),
		clock:  clock,
		rec:    rec,
		credit: credit,
		ledger: l,
		agent:  New(agentAddr, operator, credit, l, assets),
	}
	env.mustExec(func(tx *state.Tx) error { return l.Bootstrap(tx, orchestrator) })
	return env
}

func (e *testEnv) exec(fn func(*state.Tx) error) error {
	e.t.Helper()
	_, err := e.rt.Execute(context.Background(), "test", fn)
	return err
}

func (e *testEnv) mustExec(fn func(*state.Tx) error) {
	e.t.Helper()
	if err := e.exec(fn); err != nil {
		e.t.Fatalf("operation failed: %v", err)
	}
}

func (e *testEnv) view(fn func(*state.Tx) error) {
	e.t.Helper()
	if err := e.rt.View(fn); err != nil {
		e.t.Fatalf("view failed: %v", err)
	}
}

// session creates and closes a session for owner.
func (e *testEnv) session(owner core.Address, price uint64) uint64 {
	e.t.Helper()
	var id uint64
	e.mustExec(func(tx *state.Tx) error {
		var err error
		id, err = e.ledger.Create(tx, orchestrator, owner, game, verifier, price, creditAddr)
		return err
	})
	e.clock.Advance(core.MinSessionDuration)
	e.mustExec(func(tx *state.Tx) error {
		_, err := e.ledger.End(tx, owner, "ref", core.Hash{0x01})
		return err
	})
	return id
}

func (e *testEnv) mint(to core.Address, amount uint64) {
	e.t.Helper()
	e.mustExec(func(tx *state.Tx) error { return e.credit.Mint(tx, governor, to, amount) })
}

func (e *testEnv) purchase(id uint64) {
	e.t.Helper()
	e.mustExec(func(tx *state.Tx) error { return e.agent.PurchaseOne(tx, operator, id) })
}

func (e *testEnv) fund(amount uint64) {
	e.t.Helper()
	e.mint(funder, amount)
	e.mustExec(func(tx *state.Tx) error {
		if err := e.credit.Approve(tx, funder, agentAddr, amount); err != nil {
			return err
		}
		return e.agent.FundPool(tx, funder, amount)
	})
}

func (e *testEnv) claim(caller core.Address, id uint64) (uint64, error) {
	e.t.Helper()
	var paid uint64
	err := e.exec(func(tx *state.Tx) error {
		var err error
		paid, err = e.agent.ClaimRewards(tx, caller, id)
		return err
	})
	return paid, err
}

func (e *testEnv) peek() uint64 {
	e.t.Helper()
	var share uint64
	e.view(func(tx *state.Tx) error {
		var err error
		share, err = e.agent.PeekShare(tx)
		return err
	})
	return share
}

func (e *testEnv) total() uint64 {
	e.t.Helper()
	var total uint64
	e.view(func(tx *state.Tx) error {
		var err error
		total, err = e.agent.TotalPurchased(tx)
		return err
	})
	return total
}

func (e *testEnv) balance(who core.Address) uint64 {
	e.t.Helper()
	var bal uint64
	e.view(func(tx *state.Tx) error {
		var err error
		bal, err = e.credit.BalanceOf(tx, who)
		return err
	})
	return bal
}

func (e *testEnv) agentOwns(id uint64) bool {
	e.t.Helper()
	var ok bool
	e.view(func(tx *state.Tx) error {
		var err error
		ok, err = e.ledger.HasPurchased(tx, id, agentAddr)
		return err
	})
	return ok
}

func TestPeekShareEmpty(t *testing.T) {
	env := newTestEnv(t)
	if share := env.peek(); share != 0 {
		t.Errorf("PeekShare() = %d, want 0", share)
	}
}

func TestLiveShareRecompute(t *testing.T) {
	env := newTestEnv(t)
	env.mint(agentAddr, 20)
	s1 := env.session(alice, 10)
	s2 := env.session(bob, 10)

	env.purchase(s1)
	env.fund(100)
	if share := env.peek(); share != 100 {
		t.Fatalf("PeekShare() = %d, want 100", share)
	}

	env.purchase(s2)
	if share := env.peek(); share != 50 {
		t.Fatalf("PeekShare() = %d, want 50", share)
	}

	paid, err := env.claim(alice, s1)
	if err != nil {
		t.Fatalf("ClaimRewards failed: %v", err)
	}
	if paid != 50 {
		t.Errorf("paid %d, want 50", paid)
	}
	// 10 from the sale plus the share.
	if bal := env.balance(alice); bal != 60 {
		t.Errorf("alice balance = %d, want 60", bal)
	}

	// Claims never reduce the pool or the denominator.
	env.view(func(tx *state.Tx) error {
		pool, _ := env.agent.PoolBalance(tx)
		total, _ := env.agent.TotalPurchased(tx)
		if pool != 100 || total != 2 {
			t.Errorf("pool=%d total=%d, want 100 2", pool, total)
		}
		return nil
	})
	if share := env.peek(); share != 50 {
		t.Errorf("PeekShare() after claim = %d, want 50", share)
	}
}

func TestPurchaseOne(t *testing.T) {
	env := newTestEnv(t)
	env.mint(agentAddr, 15)
	free := env.session(alice, 0)
	paid := env.session(bob, 15)

	env.purchase(free)
	env.purchase(paid)

	if env.total() != 2 {
		t.Errorf("TotalPurchased() = %d, want 2", env.total())
	}
	if env.balance(agentAddr) != 0 || env.balance(bob) != 15 {
		t.Errorf("agent=%d bob=%d, want 0 15", env.balance(agentAddr), env.balance(bob))
	}

	envs := env.rec.Envelopes()
	last, ok := envs[len(envs)-1].Payload.(events.SessionsAcquired)
	if !ok || len(last.SessionIDs) != 1 || last.SessionIDs[0] != paid || last.TotalPurchased != 2 {
		t.Errorf("unexpected acquisition event: %+v", envs[len(envs)-1].Payload)
	}
}

func TestPurchaseOneErrors(t *testing.T) {
	env := newTestEnv(t)
	priced := env.session(alice, 15)

	tests := []struct {
		name    string
		caller  core.Address
		id      uint64
		wantErr error
	}{
		{"not operator", alice, priced, core.ErrUnauthorized},
		{"unknown session", operator, 99, core.ErrNotFound},
		{"insufficient funds", operator, priced, core.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.exec(func(tx *state.Tx) error { return env.agent.PurchaseOne(tx, tt.caller, tt.id) })
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
	if env.total() != 0 {
		t.Error("failed purchases must not count")
	}

	env.mint(agentAddr, 15)
	env.purchase(priced)
	err := env.exec(func(tx *state.Tx) error { return env.agent.PurchaseOne(tx, operator, priced) })
	if !errors.Is(err, core.ErrAlreadyDone) {
		t.Errorf("expected ErrAlreadyDone, got %v", err)
	}
	if env.total() != 1 {
		t.Errorf("TotalPurchased() = %d, want 1", env.total())
	}
}

func TestPurchaseBatch(t *testing.T) {
	env := newTestEnv(t)
	env.mint(agentAddr, 60)
	s1 := env.session(alice, 10)
	s2 := env.session(bob, 20)
	s3 := env.session(carol, 30)

	env.mustExec(func(tx *state.Tx) error { return env.agent.PurchaseBatch(tx, operator, []uint64{s1, s2, s3}) })

	if env.total() != 3 {
		t.Errorf("TotalPurchased() = %d, want 3", env.total())
	}
	for _, id := range []uint64{s1, s2, s3} {
		if !env.agentOwns(id) {
			t.Errorf("session %d not purchased", id)
		}
	}
	if env.balance(agentAddr) != 0 || env.balance(carol) != 30 {
		t.Errorf("agent=%d carol=%d, want 0 30", env.balance(agentAddr), env.balance(carol))
	}

	// The aggregate approval is fully consumed.
	env.view(func(tx *state.Tx) error {
		allowed, _ := env.credit.Allowance(tx, agentAddr, ledgerAddr)
		if allowed != 0 {
			t.Errorf("residual allowance %d", allowed)
		}
		return nil
	})

	envs := env.rec.Envelopes()
	acquired, ok := envs[len(envs)-1].Payload.(events.SessionsAcquired)
	if !ok || len(acquired.SessionIDs) != 3 || acquired.TotalPurchased != 3 {
		t.Errorf("unexpected acquisition event: %+v", envs[len(envs)-1].Payload)
	}
}

func TestPurchaseBatchAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	env.mint(agentAddr, 100)
	s1 := env.session(alice, 10)
	s2 := env.session(bob, 10)

	env.purchase(s2)
	before := env.balance(agentAddr)
	published := len(env.rec.Envelopes())

	err := env.exec(func(tx *state.Tx) error { return env.agent.PurchaseBatch(tx, operator, []uint64{s1, s2}) })
	if !errors.Is(err, core.ErrAlreadyDone) {
		t.Fatalf("expected ErrAlreadyDone, got %v", err)
	}
	if env.agentOwns(s1) {
		t.Error("s1 purchase must be rolled back")
	}
	if env.total() != 1 {
		t.Errorf("TotalPurchased() = %d, want 1", env.total())
	}
	if env.balance(agentAddr) != before || env.balance(alice) != 0 {
		t.Error("payment for s1 must be rolled back")
	}
	if len(env.rec.Envelopes()) != published {
		t.Error("aborted batch must not publish events")
	}

	// Retrying with the corrected list succeeds.
	env.mustExec(func(tx *state.Tx) error { return env.agent.PurchaseBatch(tx, operator, []uint64{s1}) })
	if env.total() != 2 {
		t.Errorf("TotalPurchased() = %d, want 2", env.total())
	}
}

func TestPurchaseBatchErrors(t *testing.T) {
	env := newTestEnv(t)
	env.mint(agentAddr, 10)
	priced := env.session(alice, 10)
	expensive := env.session(bob, 50)
	free := env.session(carol, 0)

	var open uint64
	env.mustExec(func(tx *state.Tx) error {
		var err error
		open, err = env.ledger.Create(tx, orchestrator, alice, game, verifier, 10, creditAddr)
		return err
	})

	tests := []struct {
		name    string
		caller  core.Address
		ids     []uint64
		wantErr error
	}{
		{"not operator", bob, []uint64{priced}, core.ErrUnauthorized},
		{"empty", operator, nil, core.ErrInvalidState},
		{"unknown session", operator, []uint64{priced, 99}, core.ErrNotForSale},
		{"zero price", operator, []uint64{priced, free}, core.ErrNotForSale},
		{"open session", operator, []uint64{open}, core.ErrNotForSale},
		{"insufficient funds", operator, []uint64{priced, expensive}, core.ErrInsufficientFunds},
		{"duplicate id", operator, []uint64{priced, priced}, core.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.exec(func(tx *state.Tx) error { return env.agent.PurchaseBatch(tx, tt.caller, tt.ids) })
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
	if env.total() != 0 || env.agentOwns(priced) {
		t.Error("failed batches must leave no trace")
	}
}

func TestFundPool(t *testing.T) {
	env := newTestEnv(t)

	env.mint(funder, 100)
	env.mustExec(func(tx *state.Tx) error { return env.credit.Approve(tx, funder, agentAddr, 100) })
	err := env.exec(func(tx *state.Tx) error { return env.agent.FundPool(tx, funder, 100) })
	if !errors.Is(err, core.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState before any purchase, got %v", err)
	}

	env.purchase(env.session(alice, 0))

	err = env.exec(func(tx *state.Tx) error { return env.agent.FundPool(tx, funder, 0) })
	if !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for zero amount, got %v", err)
	}
	err = env.exec(func(tx *state.Tx) error { return env.agent.FundPool(tx, funder, 101) })
	if !errors.Is(err, core.ErrPaymentFailure) {
		t.Errorf("expected ErrPaymentFailure beyond allowance, got %v", err)
	}

	env.mustExec(func(tx *state.Tx) error { return env.agent.FundPool(tx, funder, 60) })
	env.mustExec(func(tx *state.Tx) error { return env.agent.FundPool(tx, funder, 40) })

	env.view(func(tx *state.Tx) error {
		pool, _ := env.agent.PoolBalance(tx)
		if pool != 100 {
			t.Errorf("PoolBalance() = %d, want 100", pool)
		}
		return nil
	})
	if env.balance(agentAddr) != 100 || env.balance(funder) != 0 {
		t.Errorf("agent=%d funder=%d, want 100 0", env.balance(agentAddr), env.balance(funder))
	}

	envs := env.rec.Envelopes()
	funded, ok := envs[len(envs)-1].Payload.(events.PoolFunded)
	if !ok || funded.Funder != funder || funded.Amount != 40 || funded.PoolBalance != 100 {
		t.Errorf("unexpected funding event: %+v", envs[len(envs)-1].Payload)
	}
}

func TestClaimRewards(t *testing.T) {
	env := newTestEnv(t)
	s1 := env.session(alice, 0)
	notBought := env.session(bob, 0)
	env.purchase(s1)
	env.fund(7)

	if _, err := env.claim(bob, s1); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for non-owner, got %v", err)
	}
	if _, err := env.claim(bob, notBought); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for unpurchased session, got %v", err)
	}
	if _, err := env.claim(alice, 42); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	paid, err := env.claim(alice, s1)
	if err != nil || paid != 7 {
		t.Fatalf("ClaimRewards = %d, %v; want 7", paid, err)
	}
	if _, err := env.claim(alice, s1); !errors.Is(err, core.ErrAlreadyDone) {
		t.Errorf("expected ErrAlreadyDone, got %v", err)
	}

	env.view(func(tx *state.Tx) error {
		claimed, _ := env.agent.IsClaimed(tx, s1)
		if !claimed {
			t.Error("claim must be recorded")
		}
		return nil
	})

	envs := env.rec.Envelopes()
	ev, ok := envs[len(envs)-1].Payload.(events.RewardsClaimed)
	if !ok || ev.SessionID != s1 || ev.Owner != alice || ev.Amount != 7 {
		t.Errorf("unexpected claim event: %+v", envs[len(envs)-1].Payload)
	}
}

func TestClaimNothing(t *testing.T) {
	env := newTestEnv(t)
	s1 := env.session(alice, 0)
	s2 := env.session(bob, 0)
	s3 := env.session(carol, 0)
	env.mustExec(func(tx *state.Tx) error {
		for _, id := range []uint64{s1, s2, s3} {
			if err := env.agent.PurchaseOne(tx, operator, id); err != nil {
				return err
			}
		}
		return nil
	})

	if _, err := env.claim(alice, s1); !errors.Is(err, core.ErrNothingToClaim) {
		t.Errorf("expected ErrNothingToClaim with empty pool, got %v", err)
	}

	// floor(2 / 3) == 0
	env.fund(2)
	if _, err := env.claim(alice, s1); !errors.Is(err, core.ErrNothingToClaim) {
		t.Errorf("expected ErrNothingToClaim, got %v", err)
	}
}

func TestClaimCustodyShortfall(t *testing.T) {
	env := newTestEnv(t)
	s1 := env.session(alice, 0)
	env.purchase(s1)
	env.fund(100)

	// The pool funds pay for the next purchase.
	env.purchase(env.session(bob, 100))
	if env.balance(agentAddr) != 0 {
		t.Fatalf("agent balance = %d, want 0", env.balance(agentAddr))
	}

	if _, err := env.claim(alice, s1); !errors.Is(err, core.ErrPaymentFailure) {
		t.Fatalf("expected ErrPaymentFailure, got %v", err)
	}
	env.view(func(tx *state.Tx) error {
		claimed, _ := env.agent.IsClaimed(tx, s1)
		if claimed {
			t.Error("failed claim must not be recorded")
		}
		return nil
	})
}
