// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package thorn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/thorn/api"
	"github.com/blinklabs-io/thorn/bridge"
	"github.com/blinklabs-io/thorn/database"
	"github.com/blinklabs-io/thorn/event"
	"github.com/blinklabs-io/thorn/governance"
	"github.com/blinklabs-io/thorn/ledger"
	"github.com/blinklabs-io/thorn/replica"
	"github.com/blinklabs-io/thorn/txengine"
)

type Node struct {
	eventBus      *event.EventBus
	db            *database.Database
	ledgerStore   *ledger.Store
	txEngine      *txengine.Engine
	governance    *governance.Governance
	bridge        *bridge.Bridge
	api           *api.Api
	syncer        *replica.Syncer
	apiCancel     context.CancelFunc
	shutdownFuncs []func(context.Context) error
	config        Config
	done          chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	n := &Node{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		done:     make(chan struct{}),
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return n, nil
}

func (n *Node) Run() error {
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(&database.Config{
		DataDir:      n.config.dataDir,
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
	})
	if db == nil {
		n.config.logger.Error(
			"failed to create database",
			"error",
			"empty database returned",
		)
		return errors.New("empty database returned")
	}
	n.db = db
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// Load ledger store
	store, err := ledger.NewStore(ledger.StoreConfig{
		Database:     n.db,
		EventBus:     n.eventBus,
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
		Role:         n.config.role,
	})
	if err != nil {
		return fmt.Errorf("failed to load ledger store: %w", err)
	}
	n.ledgerStore = store
	// Initialize transaction engine
	n.txEngine = txengine.NewEngine(txengine.EngineConfig{
		Ledger:       n.ledgerStore,
		Database:     n.db,
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
	})
	// Initialize governance engine
	n.governance = governance.NewGovernance(governance.GovernanceConfig{
		Database:         n.db,
		TxEngine:         n.txEngine,
		EventBus:         n.eventBus,
		Logger:           n.config.logger,
		PromRegistry:     n.config.promRegistry,
		Authorizer:       n.config.voteAuthorizer,
		Operators:        n.config.operators,
		MinOperatorVotes: n.config.minOperatorVotes,
		VoterBurn:        n.config.voterBurn,
		OperatorBurn:     n.config.operatorBurn,
		WeightPolicy:     n.config.weightPolicy,
	})
	// Initialize bridge engine
	n.bridge = bridge.NewBridge(bridge.BridgeConfig{
		Database:              n.db,
		TxEngine:              n.txEngine,
		EventBus:              n.eventBus,
		Logger:                n.config.logger,
		PromRegistry:          n.config.promRegistry,
		ConfirmationThreshold: n.config.confirmationThreshold,
		PledgeTTL:             n.config.pledgeTTL,
	})
	if n.config.role == ledger.RoleMaster {
		// Pledge expiry only runs where pledges can change state
		n.bridge.Start()
	}
	// Start replica sync
	if n.config.role == ledger.RoleReplica {
		syncer, err := replica.NewSyncer(replica.SyncerConfig{
			MasterURL:    n.config.masterURL,
			Ledger:       n.ledgerStore,
			Logger:       n.config.logger,
			PromRegistry: n.config.promRegistry,
			SyncInterval: n.config.syncInterval,
		})
		if err != nil {
			return fmt.Errorf("failed to load replica syncer: %w", err)
		}
		n.syncer = syncer
		n.syncer.Start(context.Background())
	}
	// Start API listener
	n.api = api.New(
		api.ApiConfig{
			ListenAddress: n.config.apiListenAddress,
			Ledger:        n.ledgerStore,
			TxEngine:      n.txEngine,
			Governance:    n.governance,
			Bridge:        n.bridge,
			WatcherToken:  n.config.watcherToken,
			OperatorToken: n.config.operatorToken,
		},
		n.config.logger,
	)
	apiCtx, apiCancel := context.WithCancel(context.Background())
	n.apiCancel = apiCancel
	if err := n.api.Start(apiCtx); err != nil {
		apiCancel()
		return err
	}

	// Wait for shutdown signal
	<-n.done
	return nil
}

// Database returns the underlying database instance
func (n *Node) Database() *database.Database {
	return n.db
}

// Ledger returns the ledger store
func (n *Node) Ledger() *ledger.Store {
	return n.ledgerStore
}

// TxEngine returns the transaction engine
func (n *Node) TxEngine() *txengine.Engine {
	return n.txEngine
}

// Governance returns the governance engine
func (n *Node) Governance() *governance.Governance {
	return n.governance
}

// Bridge returns the bridge engine
func (n *Node) Bridge() *bridge.Bridge {
	return n.bridge
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	n.config.logger.Debug("shutdown phase 1: stopping new work")

	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}
	if n.apiCancel != nil {
		n.apiCancel()
	}

	// Phase 2: Stop background workers
	n.config.logger.Debug("shutdown phase 2: stopping workers")

	if n.bridge != nil && n.config.role == ledger.RoleMaster {
		n.bridge.Stop()
	}
	if n.syncer != nil {
		n.syncer.Stop()
	}

	// Phase 3: Flush state and close database
	n.config.logger.Debug("shutdown phase 3: flushing state")

	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("database close: %w", closeErr),
			)
		}
	}

	// Phase 4: Cleanup resources
	n.config.logger.Debug("shutdown phase 4: cleanup resources")

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	n.config.logger.Debug("graceful shutdown complete")
	close(n.done)
	return err
}
