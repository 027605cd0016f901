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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/thorn/database"
	"github.com/blinklabs-io/thorn/database/blob"
	"github.com/blinklabs-io/thorn/database/models"
	"github.com/blinklabs-io/thorn/event"
	"github.com/prometheus/client_golang/prometheus"
)

// Role determines whether a store may mutate the ledger. Exactly one
// process (the master) applies transactions; replicas hold a read-only
// copy refreshed by snapshot pulls.
type Role string

const (
	RoleMaster  Role = "master"
	RoleReplica Role = "replica"
)

type StoreConfig struct {
	Database     *database.Database
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	Role         Role
}

// Store is the append-only transaction log and derived balance view.
// Apply is the only mutation entry point; all apply calls are serialized
// on a single mutex and never perform external I/O inside the critical
// section.
type Store struct {
	config   StoreConfig
	db       *database.Database
	eventBus *event.EventBus
	logger   *slog.Logger
	role     Role
	metrics  storeMetrics
	mutex    sync.Mutex
}

// ApplyResult carries the applied transaction and the post-apply balances
// of the touched accounts. Replayed is set when the tx_id had already been
// applied and the recorded result was returned instead of a second apply.
type ApplyResult struct {
	Transaction Transaction
	Balances    map[Address]Amount
	Replayed    bool
}

// HistoryFilter restricts a history query
type HistoryFilter struct {
	Kind  TxKind
	Since time.Time
	Limit int
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, errors.New("no database provided")
	}
	if cfg.Role == "" {
		cfg.Role = RoleMaster
	}
	s := &Store{
		config:   cfg,
		db:       cfg.Database,
		eventBus: cfg.EventBus,
		logger:   cfg.Logger,
		role:     cfg.Role,
	}
	if s.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s.initMetrics(cfg.PromRegistry)
	return s, nil
}

// Role returns the configured node role
func (s *Store) Role() Role {
	return s.role
}

// logRecord is the blob representation of an applied transaction
type logRecord struct {
	Seq       uint64          `json:"seq"`
	TxID      string          `json:"txId"`
	Kind      string          `json:"kind"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Amount    int64           `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

func (s *Store) validateStructure(tx Transaction) error {
	if tx.TxID == "" {
		return errors.New("transaction has no tx_id")
	}
	if !tx.Kind.Valid() {
		return fmt.Errorf("unknown transaction kind: %q", tx.Kind)
	}
	if tx.Amount < 0 {
		return fmt.Errorf("negative amount: %d", tx.Amount)
	}
	if tx.Timestamp.IsZero() {
		return errors.New("transaction has no timestamp")
	}
	if tx.From != "" {
		if err := ValidateAddress(tx.From); err != nil {
			return err
		}
	}
	if tx.To != "" {
		if err := ValidateAddress(tx.To); err != nil {
			return err
		}
	}
	return nil
}

// Apply validates balance invariants and atomically commits a transaction:
// the balance updates, the transaction record, the blob log append, and any
// caller-supplied dependent state update happen as one unit. Re-submission
// of an already applied tx_id returns the recorded result unchanged.
//
// stateUpdate, when non-nil, runs inside the same database transaction so
// engine-owned records (votes, pledges, withdrawals) commit or roll back
// together with the balance change. It must not perform external I/O.
func (s *Store) Apply(
	tx Transaction,
	stateUpdate func(*database.Txn) error,
) (*ApplyResult, error) {
	if s.role != RoleMaster {
		return nil, ErrReadOnlyReplica
	}
	if err := s.validateStructure(tx); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	// Idempotent replay check
	existing, err := s.db.Metadata().GetTransactionByTxID(tx.TxID, nil)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		prevTx, err := rowToTransaction(existing)
		if err != nil {
			return nil, err
		}
		balances, err := decodeBalances(existing.BalancesAfter)
		if err != nil {
			return nil, err
		}
		s.logger.Info(
			"duplicate transaction, returning original result",
			"component", "ledger",
			"tx_id", tx.TxID,
		)
		s.metrics.txsReplayed.Inc()
		return &ApplyResult{
			Transaction: prevTx,
			Balances:    balances,
			Replayed:    true,
		}, nil
	}
	// Compute post-balances
	balances := map[Address]Amount{}
	if tx.From != "" {
		acct, err := s.db.Metadata().GetAccount(string(tx.From), nil)
		if err != nil {
			return nil, err
		}
		if acct == nil {
			s.metrics.txsRejected.WithLabelValues("unknown_account").Inc()
			return nil, &UnknownAccountError{Account: tx.From}
		}
		balances[tx.From] = Amount(acct.Balance)
	}
	if tx.To != "" && tx.To != tx.From {
		acct, err := s.db.Metadata().GetAccount(string(tx.To), nil)
		if err != nil {
			return nil, err
		}
		// Accounts are created implicitly on first credit
		var bal Amount
		if acct != nil {
			bal = Amount(acct.Balance)
		}
		balances[tx.To] = bal
	}
	if tx.From != "" {
		newBalance := balances[tx.From] - tx.Amount
		if newBalance < 0 {
			s.metrics.txsRejected.WithLabelValues("insufficient_balance").Inc()
			return nil, &InsufficientBalanceError{
				Account:  tx.From,
				Balance:  balances[tx.From],
				Required: tx.Amount,
			}
		}
		balances[tx.From] = newBalance
	}
	if tx.To != "" {
		balances[tx.To] += tx.Amount
	}
	// Build the transaction record
	mdJson, err := EncodeMetadata(tx.Metadata)
	if err != nil {
		return nil, err
	}
	balancesJson, err := encodeBalances(balances)
	if err != nil {
		return nil, err
	}
	row := &models.Transaction{
		TxID:          tx.TxID,
		Kind:          string(tx.Kind),
		SourceAddress: string(tx.From),
		DestAddress:   string(tx.To),
		Amount:        int64(tx.Amount),
		Timestamp:     tx.Timestamp,
		Metadata:      mdJson,
		BalancesAfter: balancesJson,
	}
	// Commit atomically
	txn := s.db.Transaction(true)
	err = txn.Do(func(t *database.Txn) error {
		for addr, bal := range balances {
			if err := s.db.Metadata().SetAccountBalance(
				string(addr),
				int64(bal),
				t.Metadata(),
			); err != nil {
				return err
			}
		}
		if err := s.db.Metadata().AddTransaction(row, t.Metadata()); err != nil {
			return err
		}
		rec := logRecord{
			Seq:       row.ID,
			TxID:      tx.TxID,
			Kind:      string(tx.Kind),
			From:      string(tx.From),
			To:        string(tx.To),
			Amount:    int64(tx.Amount),
			Timestamp: tx.Timestamp,
			Metadata:  mdJson,
		}
		recJson, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := t.Blob().Set(blob.LogKey(row.ID), recJson); err != nil {
			return err
		}
		if stateUpdate != nil {
			if err := stateUpdate(t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	tx.Seq = row.ID
	s.metrics.txsApplied.WithLabelValues(string(tx.Kind)).Inc()
	s.logger.Debug(
		"applied transaction",
		"component", "ledger",
		"tx_id", tx.TxID,
		"kind", tx.Kind,
		"seq", tx.Seq,
	)
	if s.eventBus != nil {
		evtType := TransactionEventType(tx.Kind)
		s.eventBus.Publish(
			evtType,
			event.NewEvent(
				evtType,
				TransactionEvent{
					Transaction: tx,
					Balances:    balances,
				},
			),
		)
	}
	return &ApplyResult{
		Transaction: tx,
		Balances:    balances,
	}, nil
}

// BalanceOf returns the current balance of an account. Accounts that have
// never been credited report a zero balance.
func (s *Store) BalanceOf(addr Address) (Amount, error) {
	if err := ValidateAddress(addr); err != nil {
		return 0, err
	}
	acct, err := s.db.Metadata().GetAccount(string(addr), nil)
	if err != nil {
		return 0, err
	}
	if acct == nil {
		return 0, nil
	}
	return Amount(acct.Balance), nil
}

// History returns the transactions touching an account, ordered by
// timestamp ascending with tx_id as a deterministic tie-break. The filter
// bounds make the query restartable: callers page forward by passing the
// last seen timestamp as Since.
func (s *Store) History(
	addr Address,
	filter HistoryFilter,
) ([]Transaction, error) {
	if err := ValidateAddress(addr); err != nil {
		return nil, err
	}
	rows, err := s.db.Metadata().GetTransactionsByAddress(
		string(addr),
		string(filter.Kind),
		filter.Since,
		filter.Limit,
		nil,
	)
	if err != nil {
		return nil, err
	}
	ret := make([]Transaction, 0, len(rows))
	for i := range rows {
		tx, err := rowToTransaction(&rows[i])
		if err != nil {
			return nil, err
		}
		ret = append(ret, tx)
	}
	return ret, nil
}

// GetTransaction looks up an applied transaction by tx_id. Returns nil with
// no error when the tx_id has not been applied.
func (s *Store) GetTransaction(txID string) (*Transaction, error) {
	row, err := s.db.Metadata().GetTransactionByTxID(txID, nil)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	tx, err := rowToTransaction(row)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// CurrentSeq returns the sequence number of the last applied transaction
func (s *Store) CurrentSeq() (uint64, error) {
	return s.db.Metadata().GetMaxTransactionSeq(nil)
}

func rowToTransaction(row *models.Transaction) (Transaction, error) {
	md, err := DecodeMetadata(TxKind(row.Kind), row.Metadata)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{
		TxID:      row.TxID,
		Kind:      TxKind(row.Kind),
		From:      Address(row.SourceAddress),
		To:        Address(row.DestAddress),
		Amount:    Amount(row.Amount),
		Timestamp: row.Timestamp,
		Metadata:  md,
		Seq:       row.ID,
	}, nil
}

func encodeBalances(balances map[Address]Amount) ([]byte, error) {
	tmp := make(map[string]int64, len(balances))
	for addr, bal := range balances {
		tmp[string(addr)] = int64(bal)
	}
	return json.Marshal(tmp)
}

func decodeBalances(data []byte) (map[Address]Amount, error) {
	if len(data) == 0 {
		return map[Address]Amount{}, nil
	}
	var tmp map[string]int64
	if err := json.Unmarshal(data, &tmp); err != nil {
		return nil, err
	}
	ret := make(map[Address]Amount, len(tmp))
	for addr, bal := range tmp {
		ret[Address(addr)] = Amount(bal)
	}
	return ret, nil
}
