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

package replica_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blinklabs-io/thorn/api"
	"github.com/blinklabs-io/thorn/database"
	"github.com/blinklabs-io/thorn/ledger"
	"github.com/blinklabs-io/thorn/replica"
	"github.com/blinklabs-io/thorn/txengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAddrA = ledger.Address("thr1aaaaaaaa")
	testAddrB = ledger.Address("thr1bbbbbbbb")
)

func newStoreDB(
	t *testing.T,
	role ledger.Role,
) (*ledger.Store, *database.Database) {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := ledger.NewStore(ledger.StoreConfig{
		Database: db,
		Role:     role,
	})
	require.NoError(t, err)
	return store, db
}

func newStore(t *testing.T, role ledger.Role) *ledger.Store {
	t.Helper()
	store, _ := newStoreDB(t, role)
	return store
}

// newMasterServer stands up a master ledger behind the real snapshot
// endpoint
func newMasterServer(
	t *testing.T,
) (*ledger.Store, *txengine.Engine, *httptest.Server) {
	t.Helper()
	store, db := newStoreDB(t, ledger.RoleMaster)
	engine := txengine.NewEngine(txengine.EngineConfig{
		Ledger:   store,
		Database: db,
	})
	server := httptest.NewServer(api.New(api.ApiConfig{
		Ledger:   store,
		TxEngine: engine,
	}, nil).Handler())
	t.Cleanup(server.Close)
	return store, engine, server
}

func mint(
	t *testing.T,
	engine *txengine.Engine,
	to ledger.Address,
	amount ledger.Amount,
) {
	t.Helper()
	_, err := engine.Submit(context.Background(), txengine.Request{
		Kind:   ledger.TxKindMint,
		To:     to,
		Amount: amount,
	})
	require.NoError(t, err)
}

func TestSyncPullsSnapshot(t *testing.T) {
	masterStore, engine, server := newMasterServer(t)
	mint(t, engine, testAddrA, 10_000_000)
	mint(t, engine, testAddrB, 4_000_000)

	replicaStore := newStore(t, ledger.RoleReplica)
	syncer, err := replica.NewSyncer(replica.SyncerConfig{
		MasterURL: server.URL,
		Ledger:    replicaStore,
	})
	require.NoError(t, err)

	require.NoError(t, syncer.Sync(context.Background()))

	masterSeq, err := masterStore.CurrentSeq()
	require.NoError(t, err)
	replicaSeq, err := replicaStore.CurrentSeq()
	require.NoError(t, err)
	assert.Equal(t, masterSeq, replicaSeq)
	bal, err := replicaStore.BalanceOf(testAddrA)
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(10_000_000), bal)

	// Incremental: new master transactions arrive on the next sync
	mint(t, engine, testAddrB, 1_000_000)
	require.NoError(t, syncer.Sync(context.Background()))
	bal, err = replicaStore.BalanceOf(testAddrB)
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(5_000_000), bal)
}

func TestSyncIdempotent(t *testing.T) {
	_, engine, server := newMasterServer(t)
	mint(t, engine, testAddrA, 10_000_000)

	replicaStore := newStore(t, ledger.RoleReplica)
	syncer, err := replica.NewSyncer(replica.SyncerConfig{
		MasterURL: server.URL,
		Ledger:    replicaStore,
	})
	require.NoError(t, err)

	require.NoError(t, syncer.Sync(context.Background()))
	require.NoError(t, syncer.Sync(context.Background()))
	bal, err := replicaStore.BalanceOf(testAddrA)
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(10_000_000), bal)
}

func TestSyncerRequiresReplicaRole(t *testing.T) {
	masterStore := newStore(t, ledger.RoleMaster)
	_, err := replica.NewSyncer(replica.SyncerConfig{
		MasterURL: "http://localhost:3000",
		Ledger:    masterStore,
	})
	require.ErrorIs(t, err, ledger.ErrNotReplica)
}

func TestSyncerRequiresMasterURL(t *testing.T) {
	replicaStore := newStore(t, ledger.RoleReplica)
	_, err := replica.NewSyncer(replica.SyncerConfig{
		Ledger: replicaStore,
	})
	require.Error(t, err)
}

func TestSyncMasterUnreachable(t *testing.T) {
	replicaStore := newStore(t, ledger.RoleReplica)
	syncer, err := replica.NewSyncer(replica.SyncerConfig{
		MasterURL: "http://127.0.0.1:1",
		Ledger:    replicaStore,
	})
	require.NoError(t, err)
	require.Error(t, syncer.Sync(context.Background()))
	// Replica state untouched on failure
	seq, err := replicaStore.CurrentSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), seq)
}

func TestBackgroundSyncLoop(t *testing.T) {
	_, engine, server := newMasterServer(t)
	mint(t, engine, testAddrA, 10_000_000)

	replicaStore := newStore(t, ledger.RoleReplica)
	syncer, err := replica.NewSyncer(replica.SyncerConfig{
		MasterURL:    server.URL,
		Ledger:       replicaStore,
		SyncInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	syncer.Start(ctx)
	defer syncer.Stop()

	// The initial sync runs immediately, the loop picks up later writes
	require.Eventually(t, func() bool {
		seq, err := replicaStore.CurrentSeq()
		return err == nil && seq == 1
	}, 2*time.Second, 10*time.Millisecond)

	mint(t, engine, testAddrB, 2_000_000)
	require.Eventually(t, func() bool {
		bal, err := replicaStore.BalanceOf(testAddrB)
		return err == nil && bal == 2_000_000
	}, 2*time.Second, 10*time.Millisecond)
}
