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

package ledger_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/blinklabs-io/thorn/database"
	"github.com/blinklabs-io/thorn/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAddrA = ledger.Address("thr1aaaaaaaa")
	testAddrB = ledger.Address("thr1bbbbbbbb")
)

func newTestStore(t *testing.T, role ledger.Role) *ledger.Store {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := ledger.NewStore(ledger.StoreConfig{
		Database: db,
		Role:     role,
	})
	require.NoError(t, err)
	return store
}

func mustParseAmount(t *testing.T, s string) ledger.Amount {
	t.Helper()
	amount, err := ledger.ParseAmount(s)
	require.NoError(t, err)
	return amount
}

func applyMint(
	t *testing.T,
	store *ledger.Store,
	txID string,
	to ledger.Address,
	amount string,
) *ledger.ApplyResult {
	t.Helper()
	res, err := store.Apply(ledger.Transaction{
		TxID:      txID,
		Kind:      ledger.TxKindMint,
		To:        to,
		Amount:    mustParseAmount(t, amount),
		Timestamp: time.Now(),
	}, nil)
	require.NoError(t, err)
	return res
}

func TestApplyTransfer(t *testing.T) {
	store := newTestStore(t, ledger.RoleMaster)
	applyMint(t, store, "mint-1", testAddrA, "10.0")

	res, err := store.Apply(ledger.Transaction{
		TxID:      "transfer-1",
		Kind:      ledger.TxKindTransfer,
		From:      testAddrA,
		To:        testAddrB,
		Amount:    mustParseAmount(t, "4.0"),
		Timestamp: time.Now(),
	}, nil)
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, mustParseAmount(t, "6.0"), res.Balances[testAddrA])
	assert.Equal(t, mustParseAmount(t, "4.0"), res.Balances[testAddrB])

	balA, err := store.BalanceOf(testAddrA)
	require.NoError(t, err)
	assert.Equal(t, "6.000000", balA.String())
	balB, err := store.BalanceOf(testAddrB)
	require.NoError(t, err)
	assert.Equal(t, "4.000000", balB.String())
}

func TestApplyInsufficientBalance(t *testing.T) {
	store := newTestStore(t, ledger.RoleMaster)
	applyMint(t, store, "mint-1", testAddrA, "3.0")

	_, err := store.Apply(ledger.Transaction{
		TxID:      "transfer-1",
		Kind:      ledger.TxKindTransfer,
		From:      testAddrA,
		To:        testAddrB,
		Amount:    mustParseAmount(t, "4.0"),
		Timestamp: time.Now(),
	}, nil)
	var insufficientErr *ledger.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficientErr)
	assert.Equal(t, testAddrA, insufficientErr.Account)

	// No balance change
	balA, err := store.BalanceOf(testAddrA)
	require.NoError(t, err)
	assert.Equal(t, "3.000000", balA.String())
	balB, err := store.BalanceOf(testAddrB)
	require.NoError(t, err)
	assert.Equal(t, "0.000000", balB.String())
}

func TestApplyUnknownAccount(t *testing.T) {
	store := newTestStore(t, ledger.RoleMaster)
	_, err := store.Apply(ledger.Transaction{
		TxID:      "transfer-1",
		Kind:      ledger.TxKindTransfer,
		From:      testAddrA,
		To:        testAddrB,
		Amount:    mustParseAmount(t, "1.0"),
		Timestamp: time.Now(),
	}, nil)
	var unknownErr *ledger.UnknownAccountError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, testAddrA, unknownErr.Account)
}

func TestApplyIdempotentReplay(t *testing.T) {
	store := newTestStore(t, ledger.RoleMaster)
	applyMint(t, store, "mint-1", testAddrA, "10.0")

	tx := ledger.Transaction{
		TxID:      "transfer-1",
		Kind:      ledger.TxKindTransfer,
		From:      testAddrA,
		To:        testAddrB,
		Amount:    mustParseAmount(t, "4.0"),
		Timestamp: time.Now(),
	}
	first, err := store.Apply(tx, nil)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	// Same tx_id again: no second balance change, same recorded result
	second, err := store.Apply(tx, nil)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Balances, second.Balances)
	assert.Equal(t, first.Transaction.TxID, second.Transaction.TxID)

	balA, err := store.BalanceOf(testAddrA)
	require.NoError(t, err)
	assert.Equal(t, "6.000000", balA.String())
}

func TestApplySelfTransfer(t *testing.T) {
	store := newTestStore(t, ledger.RoleMaster)
	applyMint(t, store, "mint-1", testAddrA, "5.0")

	res, err := store.Apply(ledger.Transaction{
		TxID:      "transfer-1",
		Kind:      ledger.TxKindTransfer,
		From:      testAddrA,
		To:        testAddrA,
		Amount:    mustParseAmount(t, "2.0"),
		Timestamp: time.Now(),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, mustParseAmount(t, "5.0"), res.Balances[testAddrA])
}

func TestApplyBurn(t *testing.T) {
	store := newTestStore(t, ledger.RoleMaster)
	applyMint(t, store, "mint-1", testAddrA, "5.0")

	res, err := store.Apply(ledger.Transaction{
		TxID:      "burn-1",
		Kind:      ledger.TxKindBurn,
		From:      testAddrA,
		Amount:    mustParseAmount(t, "1.5"),
		Timestamp: time.Now(),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, mustParseAmount(t, "3.5"), res.Balances[testAddrA])
}

func TestReplicaRejectsApply(t *testing.T) {
	store := newTestStore(t, ledger.RoleReplica)
	_, err := store.Apply(ledger.Transaction{
		TxID:      "mint-1",
		Kind:      ledger.TxKindMint,
		To:        testAddrA,
		Amount:    mustParseAmount(t, "1.0"),
		Timestamp: time.Now(),
	}, nil)
	require.ErrorIs(t, err, ledger.ErrReadOnlyReplica)
}

func TestHistoryOrdering(t *testing.T) {
	store := newTestStore(t, ledger.RoleMaster)
	base := time.Now()
	applyMint(t, store, "mint-1", testAddrA, "10.0")
	for i, txID := range []string{"t-1", "t-2", "t-3"} {
		_, err := store.Apply(ledger.Transaction{
			TxID:      txID,
			Kind:      ledger.TxKindTransfer,
			From:      testAddrA,
			To:        testAddrB,
			Amount:    mustParseAmount(t, "1.0"),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}, nil)
		require.NoError(t, err)
	}

	history, err := store.History(testAddrB, ledger.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "t-1", history[0].TxID)
	assert.Equal(t, "t-2", history[1].TxID)
	assert.Equal(t, "t-3", history[2].TxID)

	// Filter by kind excludes the mint
	historyA, err := store.History(testAddrA, ledger.HistoryFilter{
		Kind: ledger.TxKindMint,
	})
	require.NoError(t, err)
	require.Len(t, historyA, 1)
	assert.Equal(t, "mint-1", historyA[0].TxID)

	// Limit pages the result
	limited, err := store.History(testAddrB, ledger.HistoryFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestGetTransaction(t *testing.T) {
	store := newTestStore(t, ledger.RoleMaster)
	applyMint(t, store, "mint-1", testAddrA, "1.0")

	tx, err := store.GetTransaction("mint-1")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, ledger.TxKindMint, tx.Kind)
	assert.Equal(t, testAddrA, tx.To)

	missing, err := store.GetTransaction("bogus")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStateUpdateFailureRollsBack(t *testing.T) {
	store := newTestStore(t, ledger.RoleMaster)
	applyMint(t, store, "mint-1", testAddrA, "10.0")

	_, err := store.Apply(ledger.Transaction{
		TxID:      "transfer-1",
		Kind:      ledger.TxKindTransfer,
		From:      testAddrA,
		To:        testAddrB,
		Amount:    mustParseAmount(t, "4.0"),
		Timestamp: time.Now(),
	}, func(t *database.Txn) error {
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	// Balance change rolled back with the failed state update
	balA, err := store.BalanceOf(testAddrA)
	require.NoError(t, err)
	assert.Equal(t, "10.000000", balA.String())

	// Transaction was not recorded, so the tx_id can be retried
	tx, err := store.GetTransaction("transfer-1")
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestSnapshotRoundTrip(t *testing.T) {
	master := newTestStore(t, ledger.RoleMaster)
	applyMint(t, master, "mint-1", testAddrA, "10.0")
	_, err := master.Apply(ledger.Transaction{
		TxID:      "transfer-1",
		Kind:      ledger.TxKindTransfer,
		From:      testAddrA,
		To:        testAddrB,
		Amount:    mustParseAmount(t, "4.0"),
		Timestamp: time.Now(),
	}, nil)
	require.NoError(t, err)

	snap, err := master.Snapshot(0)
	require.NoError(t, err)
	assert.Len(t, snap.Transactions, 2)

	replica := newTestStore(t, ledger.RoleReplica)
	require.NoError(t, replica.LoadSnapshot(snap))

	balA, err := replica.BalanceOf(testAddrA)
	require.NoError(t, err)
	assert.Equal(t, "6.000000", balA.String())
	balB, err := replica.BalanceOf(testAddrB)
	require.NoError(t, err)
	assert.Equal(t, "4.000000", balB.String())

	seq, err := replica.CurrentSeq()
	require.NoError(t, err)
	assert.Equal(t, snap.Seq, seq)

	// Incremental pull past the replica's seq is empty
	incr, err := master.Snapshot(seq)
	require.NoError(t, err)
	assert.Empty(t, incr.Transactions)

	// Loading the same snapshot twice is harmless
	require.NoError(t, replica.LoadSnapshot(snap))
}

func TestSnapshotConsistentUnderConcurrentApplies(t *testing.T) {
	store := newTestStore(t, ledger.RoleMaster)

	const numTxs = 50
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range numTxs {
			applyMint(
				t,
				store,
				fmt.Sprintf("mint-%d", i),
				testAddrA,
				"1.0",
			)
		}
	}()

	// Every snapshot taken while mints land must agree with itself: the
	// reported seq matches the last transaction in the list, and the
	// balance reflects exactly that many one-THR mints
	deadline := time.Now().Add(30 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline))
		snap, err := store.Snapshot(0)
		require.NoError(t, err)
		require.Len(t, snap.Transactions, int(snap.Seq)) //nolint:gosec
		if snap.Seq > 0 {
			lastTx := snap.Transactions[len(snap.Transactions)-1]
			require.Equal(t, snap.Seq, lastTx.Seq)
			require.Equal(
				t,
				int64(snap.Seq)*1_000_000, //nolint:gosec
				snap.Accounts[string(testAddrA)],
			)
		}
		if snap.Seq == numTxs {
			break
		}
	}
	<-done
}

func TestLoadSnapshotMasterRejected(t *testing.T) {
	master := newTestStore(t, ledger.RoleMaster)
	require.ErrorIs(
		t,
		master.LoadSnapshot(&ledger.Snapshot{}),
		ledger.ErrNotReplica,
	)
}
