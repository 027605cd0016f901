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

package ledger

import (
	"encoding/json"
	"time"

	"github.com/blinklabs-io/thorn/database"
	"github.com/blinklabs-io/thorn/database/blob"
	"github.com/blinklabs-io/thorn/database/models"
)

// Snapshot is a consistent view of the ledger used to refresh replicas.
// Accounts is the full balance set as of Seq; Transactions holds the log
// entries after the requester's last seen sequence number.
type Snapshot struct {
	Seq          uint64                `json:"seq"`
	Accounts     map[string]int64      `json:"accounts"`
	Transactions []SnapshotTransaction `json:"transactions"`
}

// SnapshotTransaction is the wire representation of a log entry
type SnapshotTransaction struct {
	Seq           uint64          `json:"seq"`
	TxID          string          `json:"txId"`
	Kind          string          `json:"kind"`
	From          string          `json:"from,omitempty"`
	To            string          `json:"to,omitempty"`
	Amount        int64           `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	BalancesAfter json.RawMessage `json:"balancesAfter,omitempty"`
}

// Snapshot produces a consistent snapshot of all balances plus the log
// entries appended after sinceSeq. The store mutex is held across the
// reads so a concurrent Apply cannot land between them and leave the
// sequence number, balances, and transaction list disagreeing.
func (s *Store) Snapshot(sinceSeq uint64) (*Snapshot, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	seq, err := s.db.Metadata().GetMaxTransactionSeq(nil)
	if err != nil {
		return nil, err
	}
	accounts, err := s.db.Metadata().GetAccounts(nil)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Metadata().GetTransactionsSinceSeq(sinceSeq, 0, nil)
	if err != nil {
		return nil, err
	}
	ret := &Snapshot{
		Seq:          seq,
		Accounts:     make(map[string]int64, len(accounts)),
		Transactions: make([]SnapshotTransaction, 0, len(rows)),
	}
	for _, acct := range accounts {
		ret.Accounts[acct.Address] = acct.Balance
	}
	for _, row := range rows {
		ret.Transactions = append(
			ret.Transactions,
			SnapshotTransaction{
				Seq:           row.ID,
				TxID:          row.TxID,
				Kind:          row.Kind,
				From:          row.SourceAddress,
				To:            row.DestAddress,
				Amount:        row.Amount,
				Timestamp:     row.Timestamp,
				Metadata:      row.Metadata,
				BalancesAfter: row.BalancesAfter,
			},
		)
	}
	return ret, nil
}

// LoadSnapshot applies a snapshot pulled from the master to a replica
// store. This is the only mutation path permitted on a replica.
func (s *Store) LoadSnapshot(snap *Snapshot) error {
	if s.role != RoleReplica {
		return ErrNotReplica
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	txn := s.db.Transaction(true)
	return txn.Do(func(t *database.Txn) error {
		for addr, bal := range snap.Accounts {
			if err := s.db.Metadata().SetAccountBalance(
				addr,
				bal,
				t.Metadata(),
			); err != nil {
				return err
			}
		}
		for _, tx := range snap.Transactions {
			existing, err := s.db.Metadata().GetTransactionByTxID(
				tx.TxID,
				t.Metadata(),
			)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			row := &models.Transaction{
				ID:            tx.Seq,
				TxID:          tx.TxID,
				Kind:          tx.Kind,
				SourceAddress: tx.From,
				DestAddress:   tx.To,
				Amount:        tx.Amount,
				Timestamp:     tx.Timestamp,
				Metadata:      tx.Metadata,
				BalancesAfter: tx.BalancesAfter,
			}
			if err := s.db.Metadata().AddTransaction(
				row,
				t.Metadata(),
			); err != nil {
				return err
			}
			rec := logRecord{
				Seq:       tx.Seq,
				TxID:      tx.TxID,
				Kind:      tx.Kind,
				From:      tx.From,
				To:        tx.To,
				Amount:    tx.Amount,
				Timestamp: tx.Timestamp,
				Metadata:  tx.Metadata,
			}
			recJson, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := t.Blob().Set(
				blob.LogKey(tx.Seq),
				recJson,
			); err != nil {
				return err
			}
		}
		return nil
	})
}
