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

package bridge_test

import (
	"context"
	"testing"
	"time"

	"github.com/blinklabs-io/thorn/bridge"
	"github.com/blinklabs-io/thorn/database"
	"github.com/blinklabs-io/thorn/database/models"
	"github.com/blinklabs-io/thorn/ledger"
	"github.com/blinklabs-io/thorn/txengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOwner       = ledger.Address("thr1pledgeowner")
	testDepositAddr = "0xdeadbeef"
	testDestAddr    = "0xcafef00d"
)

type testHarness struct {
	db     *database.Database
	store  *ledger.Store
	engine *txengine.Engine
	bridge *bridge.Bridge
}

func newTestHarness(
	t *testing.T,
	opts ...func(*bridge.BridgeConfig),
) *testHarness {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := ledger.NewStore(ledger.StoreConfig{
		Database: db,
	})
	require.NoError(t, err)
	engine := txengine.NewEngine(txengine.EngineConfig{
		Ledger:   store,
		Database: db,
	})
	cfg := bridge.BridgeConfig{
		Database: db,
		TxEngine: engine,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &testHarness{
		db:     db,
		store:  store,
		engine: engine,
		bridge: bridge.NewBridge(cfg),
	}
}

func (h *testHarness) mint(t *testing.T, addr ledger.Address, amount string) {
	t.Helper()
	parsed, err := ledger.ParseAmount(amount)
	require.NoError(t, err)
	_, err = h.engine.Submit(context.Background(), txengine.Request{
		Kind:   ledger.TxKindMint,
		To:     addr,
		Amount: parsed,
	})
	require.NoError(t, err)
}

func (h *testHarness) balance(t *testing.T, addr ledger.Address) string {
	t.Helper()
	bal, err := h.store.BalanceOf(addr)
	require.NoError(t, err)
	return bal.String()
}

func TestPledgeLifecycle(t *testing.T) {
	h := newTestHarness(t)

	pledge, err := h.bridge.CreatePledge(
		context.Background(),
		testOwner,
		testDepositAddr,
		5_000_000, // 5 THR
	)
	require.NoError(t, err)
	assert.Equal(t, models.PledgeStatusPending, pledge.Status)
	assert.NotEmpty(t, pledge.PledgeID)
	// Nothing minted yet
	assert.Equal(t, "0.000000", h.balance(t, testOwner))

	// Below the confirmation threshold: no mint, still pending
	pledge, err = h.bridge.ConfirmPledge(
		context.Background(),
		pledge.PledgeID,
		"exttx-1",
		2,
	)
	var pendingErr *bridge.ConfirmationPendingError
	require.ErrorAs(t, err, &pendingErr)
	assert.Equal(t, uint(2), pendingErr.Confirmations)
	assert.Equal(t, models.PledgeStatusPending, pledge.Status)
	assert.Equal(t, "0.000000", h.balance(t, testOwner))

	// At the threshold: wrapped funds minted exactly once
	pledge, err = h.bridge.ConfirmPledge(
		context.Background(),
		pledge.PledgeID,
		"exttx-1",
		3,
	)
	require.NoError(t, err)
	assert.Equal(t, models.PledgeStatusCompleted, pledge.Status)
	assert.NotEmpty(t, pledge.MintTxID)
	assert.Equal(t, "5.000000", h.balance(t, testOwner))

	tx, err := h.store.GetTransaction(pledge.MintTxID)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, ledger.TxKindBridgeMint, tx.Kind)

	// Further watcher reports on a completed pledge are rejected and do
	// not mint again
	_, err = h.bridge.ConfirmPledge(
		context.Background(),
		pledge.PledgeID,
		"exttx-1",
		4,
	)
	var transitionErr *ledger.InvalidStateTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, "5.000000", h.balance(t, testOwner))
}

func TestConfirmationsForwardOnly(t *testing.T) {
	h := newTestHarness(t)
	pledge, err := h.bridge.CreatePledge(
		context.Background(),
		testOwner,
		testDepositAddr,
		1_000_000,
	)
	require.NoError(t, err)

	_, err = h.bridge.ConfirmPledge(
		context.Background(), pledge.PledgeID, "exttx-1", 2,
	)
	var pendingErr *bridge.ConfirmationPendingError
	require.ErrorAs(t, err, &pendingErr)

	// A stale report with a lower count never rolls the count back
	pledge, err = h.bridge.ConfirmPledge(
		context.Background(), pledge.PledgeID, "exttx-1", 1,
	)
	require.ErrorAs(t, err, &pendingErr)
	assert.Equal(t, uint(2), pledge.Confirmations)
}

func TestPledgeExpiry(t *testing.T) {
	h := newTestHarness(t, func(cfg *bridge.BridgeConfig) {
		cfg.PledgeTTL = 10 * time.Millisecond
		cfg.ExpiryInterval = 5 * time.Millisecond
	})
	pledge, err := h.bridge.CreatePledge(
		context.Background(),
		testOwner,
		testDepositAddr,
		1_000_000,
	)
	require.NoError(t, err)

	h.bridge.Start()
	defer h.bridge.Stop()
	require.Eventually(t, func() bool {
		p, err := h.bridge.GetPledge(pledge.PledgeID)
		return err == nil && p.Status == models.PledgeStatusExpired
	}, 2*time.Second, 10*time.Millisecond)

	// Late watcher reports on an expired pledge never mint
	_, err = h.bridge.ConfirmPledge(
		context.Background(), pledge.PledgeID, "exttx-1", 3,
	)
	var expiredErr *bridge.PledgeExpiredError
	require.ErrorAs(t, err, &expiredErr)
	assert.Equal(t, "0.000000", h.balance(t, testOwner))
}

func TestConfirmExpiredBeforeWorker(t *testing.T) {
	// The worker may not have run yet, but a pledge past its deadline is
	// expired regardless
	h := newTestHarness(t, func(cfg *bridge.BridgeConfig) {
		cfg.PledgeTTL = time.Nanosecond
	})
	pledge, err := h.bridge.CreatePledge(
		context.Background(),
		testOwner,
		testDepositAddr,
		1_000_000,
	)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	_, err = h.bridge.ConfirmPledge(
		context.Background(), pledge.PledgeID, "exttx-1", 3,
	)
	var expiredErr *bridge.PledgeExpiredError
	require.ErrorAs(t, err, &expiredErr)
}

func TestWithdrawalBurnsFirst(t *testing.T) {
	h := newTestHarness(t)
	h.mint(t, testOwner, "10")

	withdrawal, err := h.bridge.RequestWithdrawal(
		context.Background(),
		testOwner,
		3_000_000, // 3 THR
		testDestAddr,
	)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusRequested, withdrawal.Status)
	assert.NotEmpty(t, withdrawal.BurnTxID)
	// Funds leave the local supply at request time
	assert.Equal(t, "7.000000", h.balance(t, testOwner))

	tx, err := h.store.GetTransaction(withdrawal.BurnTxID)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, ledger.TxKindBridgeWithdrawRequest, tx.Kind)
}

func TestWithdrawalInsufficientBalance(t *testing.T) {
	h := newTestHarness(t)
	h.mint(t, testOwner, "1")

	_, err := h.bridge.RequestWithdrawal(
		context.Background(),
		testOwner,
		2_000_000,
		testDestAddr,
	)
	var insufficientErr *ledger.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficientErr)
	// Nothing burned, no withdrawal recorded
	assert.Equal(t, "1.000000", h.balance(t, testOwner))
	requested, err := h.bridge.GetWithdrawalsByStatus(
		models.WithdrawalStatusRequested,
	)
	require.NoError(t, err)
	assert.Empty(t, requested)
}

func TestWithdrawalSettleFlow(t *testing.T) {
	h := newTestHarness(t)
	h.mint(t, testOwner, "10")
	withdrawal, err := h.bridge.RequestWithdrawal(
		context.Background(), testOwner, 3_000_000, testDestAddr,
	)
	require.NoError(t, err)

	// Settle before approval is invalid
	_, err = h.bridge.SettleWithdrawal(
		context.Background(), withdrawal.RequestID, "extrel-1",
	)
	var transitionErr *ledger.InvalidStateTransitionError
	require.ErrorAs(t, err, &transitionErr)

	withdrawal, err = h.bridge.ApproveWithdrawal(
		context.Background(), withdrawal.RequestID,
	)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusApproved, withdrawal.Status)

	withdrawal, err = h.bridge.SettleWithdrawal(
		context.Background(), withdrawal.RequestID, "extrel-1",
	)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusSettled, withdrawal.Status)
	assert.Equal(t, "extrel-1", withdrawal.ExternalReleaseRef)
	assert.NotEmpty(t, withdrawal.ReleaseTxID)
	// Settlement is record-only; the burn already happened
	assert.Equal(t, "7.000000", h.balance(t, testOwner))

	// Settled withdrawals cannot be rejected or settled again
	_, err = h.bridge.RejectWithdrawal(
		context.Background(), withdrawal.RequestID,
	)
	require.ErrorAs(t, err, &transitionErr)
	_, err = h.bridge.SettleWithdrawal(
		context.Background(), withdrawal.RequestID, "extrel-2",
	)
	require.ErrorAs(t, err, &transitionErr)
}

func TestWithdrawalRejectCompensates(t *testing.T) {
	h := newTestHarness(t)
	h.mint(t, testOwner, "10")
	withdrawal, err := h.bridge.RequestWithdrawal(
		context.Background(), testOwner, 5_000_000, testDestAddr,
	)
	require.NoError(t, err)
	require.Equal(t, "5.000000", h.balance(t, testOwner))

	withdrawal, err = h.bridge.RejectWithdrawal(
		context.Background(), withdrawal.RequestID,
	)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusRejected, withdrawal.Status)
	// Exact amount returned under a fresh transaction id
	assert.Equal(t, "10.000000", h.balance(t, testOwner))
	assert.NotEmpty(t, withdrawal.ReleaseTxID)
	assert.NotEqual(t, withdrawal.BurnTxID, withdrawal.ReleaseTxID)

	tx, err := h.store.GetTransaction(withdrawal.ReleaseTxID)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, ledger.TxKindBridgeRelease, tx.Kind)
	releaseMeta, ok := tx.Metadata.(ledger.BridgeReleaseMetadata)
	require.True(t, ok)
	assert.True(t, releaseMeta.Compensation)
}

func TestRejectApprovedWithdrawal(t *testing.T) {
	h := newTestHarness(t)
	h.mint(t, testOwner, "10")
	withdrawal, err := h.bridge.RequestWithdrawal(
		context.Background(), testOwner, 5_000_000, testDestAddr,
	)
	require.NoError(t, err)
	_, err = h.bridge.ApproveWithdrawal(
		context.Background(), withdrawal.RequestID,
	)
	require.NoError(t, err)

	// Rejection is allowed until external release
	withdrawal, err = h.bridge.RejectWithdrawal(
		context.Background(), withdrawal.RequestID,
	)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusRejected, withdrawal.Status)
	assert.Equal(t, "10.000000", h.balance(t, testOwner))
}

func TestGetPledgesByStatus(t *testing.T) {
	h := newTestHarness(t)
	first, err := h.bridge.CreatePledge(
		context.Background(), testOwner, testDepositAddr, 1_000_000,
	)
	require.NoError(t, err)
	_, err = h.bridge.CreatePledge(
		context.Background(), testOwner, testDepositAddr, 2_000_000,
	)
	require.NoError(t, err)
	_, err = h.bridge.ConfirmPledge(
		context.Background(), first.PledgeID, "exttx-1", 3,
	)
	require.NoError(t, err)

	pending, err := h.bridge.GetPledgesByStatus(models.PledgeStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	completed, err := h.bridge.GetPledgesByStatus(
		models.PledgeStatusCompleted,
	)
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}
