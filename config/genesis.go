// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"

	"github.com/Spielworks/plai/core"
)

var (
	errMissingAddress = errors.New("missing address")
	errDuplicate      = errors.New("duplicate entry")
)

// Genesis is the initial state of a fresh database.
type Genesis struct {
	// Governor may change the orchestrator and manage the registry
	Governor core.Address `toml:"governor"`

	// Orchestrator is the only identity allowed to create sessions
	Orchestrator core.Address `toml:"orchestrator"`

	// Ledger is the identity buyers approve for purchases
	Ledger core.Address `toml:"ledger"`

	// Agent holds the reward pool
	Agent core.Address `toml:"agent"`

	// AgentOperator may purchase sessions on the agent's behalf
	AgentOperator core.Address `toml:"agent_operator"`

	// Identities are participants allowed to start sessions
	Identities []core.Address `toml:"identities"`

	Credit     CreditGenesis      `toml:"credit"`
	Balances   []BalanceGenesis   `toml:"balances"`
	Publishers []PublisherGenesis `toml:"publishers"`
	Games      []GameGenesis      `toml:"games"`
}

// CreditGenesis describes the credit used for payments and rewards.
type CreditGenesis struct {
	Address core.Address `toml:"address"`
	Symbol  string       `toml:"symbol"`
	// Minter defaults to the governor
	Minter core.Address `toml:"minter"`
}

// BalanceGenesis is an initial credit balance.
type BalanceGenesis struct {
	Owner  core.Address `toml:"owner"`
	Amount uint64       `toml:"amount"`
}

// PublisherGenesis is a registered game publisher.
type PublisherGenesis struct {
	Address  core.Address `toml:"address"`
	Verified bool         `toml:"verified"`
}

// GameGenesis is a registered game. PaymentAsset defaults to the credit.
type GameGenesis struct {
	ID           core.Hash    `toml:"id"`
	Publisher    core.Address `toml:"publisher"`
	Verifier     core.Address `toml:"verifier"`
	Price        uint64       `toml:"price"`
	PaymentAsset core.Address `toml:"payment_asset"`
	EntryFee     uint64       `toml:"entry_fee"`
}

// LoadGenesis reads and validates a genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	var g Genesis
	if _, err := toml.DecodeFile(path, &g); err != nil {
		return nil, fmt.Errorf("decode genesis %s: %w", path, err)
	}
	g.applyDefaults()
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("genesis %s: %w", path, err)
	}
	return &g, nil
}

// DecodeGenesis reads and validates a genesis document.
func DecodeGenesis(r io.Reader) (*Genesis, error) {
	var g Genesis
	if _, err := toml.NewDecoder(r).Decode(&g); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	g.applyDefaults()
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Write encodes g as TOML.
func (g *Genesis) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(g)
}

func (g *Genesis) applyDefaults() {
	if g.Credit.Symbol == "" {
		g.Credit.Symbol = "PLAI"
	}
	if g.Credit.Minter.Empty() {
		g.Credit.Minter = g.Governor
	}
	for i := range g.Games {
		if g.Games[i].PaymentAsset.Empty() {
			g.Games[i].PaymentAsset = g.Credit.Address
		}
	}
}

// Validate checks the document is complete and consistent.
func (g *Genesis) Validate() error {
	required := []struct {
		name string
		addr core.Address
	}{
		{"governor", g.Governor},
		{"orchestrator", g.Orchestrator},
		{"ledger", g.Ledger},
		{"agent", g.Agent},
		{"agent_operator", g.AgentOperator},
		{"credit.address", g.Credit.Address},
	}
	for _, r := range required {
		if r.addr.Empty() {
			return fmt.Errorf("%w: %s", errMissingAddress, r.name)
		}
	}

	seen := make(map[core.Address]bool)
	for _, id := range g.Identities {
		if id.Empty() {
			return fmt.Errorf("%w: identity", errMissingAddress)
		}
		if seen[id] {
			return fmt.Errorf("%w: identity %s", errDuplicate, id)
		}
		seen[id] = true
	}

	for _, b := range g.Balances {
		if b.Owner.Empty() {
			return fmt.Errorf("%w: balance owner", errMissingAddress)
		}
	}

	publishers := make(map[core.Address]bool)
	for _, p := range g.Publishers {
		if p.Address.Empty() {
			return fmt.Errorf("%w: publisher", errMissingAddress)
		}
		if publishers[p.Address] {
			return fmt.Errorf("%w: publisher %s", errDuplicate, p.Address)
		}
		publishers[p.Address] = true
	}

	games := make(map[core.Hash]bool)
	for _, game := range g.Games {
		if game.ID.Empty() {
			return fmt.Errorf("game id must be set")
		}
		if games[game.ID] {
			return fmt.Errorf("%w: game %s", errDuplicate, game.ID)
		}
		games[game.ID] = true
		if !publishers[game.Publisher] {
			return fmt.Errorf("game %s: unknown publisher %s", game.ID, game.Publisher)
		}
		if game.Verifier.Empty() {
			return fmt.Errorf("%w: game %s verifier", errMissingAddress, game.ID)
		}
	}
	return nil
}
