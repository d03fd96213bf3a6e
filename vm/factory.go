// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"context"
	"errors"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/Spielworks/plai/config"
	"github.com/Spielworks/plai/events"
	"github.com/Spielworks/plai/state"
	"github.com/Spielworks/plai/storage"
)

// VMID is the unique identifier for the plai VM
var VMID = ids.ID{'p', 'l', 'a', 'i', 'v', 'm'}

// Name is the RPC service name
const Name = "plai"

// Factory creates VM instances from process configuration.
type Factory struct {
	Config config.Config

	// Genesis overrides Config.GenesisPath when set
	Genesis *config.Genesis

	// Clock defaults to the system clock
	Clock state.Clock
}

// New returns a new, initialized VM
func (f *Factory) New(logger log.Logger) (*VM, error) {
	genesis := f.Genesis
	if genesis == nil {
		if f.Config.GenesisPath == "" {
			return nil, errNoGenesis
		}
		g, err := config.LoadGenesis(f.Config.GenesisPath)
		if err != nil {
			return nil, err
		}
		genesis = g
	}

	var backend storage.Backend
	if f.Config.DBPath != "" {
		db, err := storage.OpenSQLite(f.Config.DBPath)
		if err != nil {
			return nil, err
		}
		backend = db
	} else {
		backend = storage.NewMemoryStore()
	}

	publisher := events.Fanout{events.NewLogPublisher(logger)}
	if f.Config.NATSURL != "" {
		nats, err := events.NewNATSPublisher(f.Config.NATSURL)
		if err != nil {
			backend.Close()
			return nil, err
		}
		publisher = append(publisher, nats)
	}

	vm := &VM{}
	if err := vm.Initialize(context.Background(), logger, genesis, backend, f.Clock, publisher); err != nil {
		return nil, errors.Join(err, publisher.Close(), backend.Close())
	}
	return vm, nil
}
