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

package txengine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/thorn/database"
	"github.com/blinklabs-io/thorn/database/models"
	"github.com/blinklabs-io/thorn/ledger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type EngineConfig struct {
	Ledger       *ledger.Store
	Database     *database.Database
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
}

// Engine constructs well-formed transactions and delegates to the ledger
// store. It is the single choke point through which every balance change
// flows; no component mutates an account balance by any other path.
type Engine struct {
	config  EngineConfig
	ledger  *ledger.Store
	db      *database.Database
	logger  *slog.Logger
	metrics struct {
		txsSubmitted *prometheus.CounterVec
		txsInvalid   prometheus.Counter
	}
}

// Request describes a transaction to submit. TxID is assigned when the
// client did not supply one. StateUpdate, when non-nil, commits dependent
// engine-owned state in the same database transaction as the balance
// change.
type Request struct {
	Kind        ledger.TxKind
	TxID        string
	From        ledger.Address
	To          ledger.Address
	Amount      ledger.Amount
	Metadata    ledger.TxMetadata
	StateUpdate func(*database.Txn) error
}

func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		config: cfg,
		ledger: cfg.Ledger,
		db:     cfg.Database,
		logger: cfg.Logger,
	}
	if e.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		e.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	promautoFactory := promauto.With(cfg.PromRegistry)
	e.metrics.txsSubmitted = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thorn_txengine_submissions_total",
			Help: "total transaction submissions by kind",
		},
		[]string{"kind"},
	)
	e.metrics.txsInvalid = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "thorn_txengine_invalid_total",
			Help: "total transaction submissions rejected by validation",
		},
	)
	return e
}

// Submit validates and applies a transaction. Validation failures never
// partially apply: either the full transaction commits, including any
// dependent state update, or nothing does.
func (e *Engine) Submit(
	ctx context.Context,
	req Request,
) (*ledger.ApplyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.TxID == "" {
		req.TxID = uuid.NewString()
	}
	tx := ledger.Transaction{
		TxID:      req.TxID,
		Kind:      req.Kind,
		From:      req.From,
		To:        req.To,
		Amount:    req.Amount,
		Timestamp: time.Now(),
		Metadata:  req.Metadata,
	}
	if err := validateKind(tx); err != nil {
		e.metrics.txsInvalid.Inc()
		e.logger.Debug(
			"rejected transaction submission",
			"component", "txengine",
			"tx_id", tx.TxID,
			"kind", tx.Kind,
			"error", err,
		)
		return nil, err
	}
	// Re-submission of a known tx_id is an idempotent replay: the ledger
	// returns the originally recorded result, so the cross-entity checks
	// must not run against the post-commit entity state
	existing, err := e.db.Metadata().GetTransactionByTxID(tx.TxID, nil)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		err := e.validateCrossEntity(tx)
		if err == nil && requiresStateUpdate(tx.Kind) && req.StateUpdate == nil {
			// Votes, pledges, and withdrawals commit their entity rows in
			// the same database transaction as the balance change; a bare
			// submission of these kinds would leave the ledger and the
			// entity state disagreeing
			err = &ValidationError{
				Reason: "kind requires a dependent state update",
			}
		}
		if err != nil {
			e.metrics.txsInvalid.Inc()
			e.logger.Debug(
				"rejected transaction submission",
				"component", "txengine",
				"tx_id", tx.TxID,
				"kind", tx.Kind,
				"error", err,
			)
			return nil, err
		}
	}
	res, err := e.ledger.Apply(tx, req.StateUpdate)
	if err != nil {
		return nil, err
	}
	e.metrics.txsSubmitted.WithLabelValues(string(tx.Kind)).Inc()
	return res, nil
}

// ValidationError indicates a transaction whose shape does not match its
// kind. The reason is a structured code suitable for surfacing to callers.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid transaction: " + e.Reason
}

// requiresStateUpdate reports whether a kind carries dependent entity
// rows that must commit alongside the ledger transaction
func requiresStateUpdate(kind ledger.TxKind) bool {
	switch kind {
	case ledger.TxKindGovernanceVote,
		ledger.TxKindGovernanceFinalize,
		ledger.TxKindBridgePledgeCreate,
		ledger.TxKindBridgeMint,
		ledger.TxKindBridgeWithdrawRequest,
		ledger.TxKindBridgeRelease:
		return true
	}
	return false
}

// validateCrossEntity enforces the entity-state preconditions for the
// engine-owned transaction kinds: a vote requires an unfinalized proposal
// the voter has not voted on, a bridge mint requires a CONFIRMED pledge
// with no prior mint, and so on. Runs after validateKind, so the metadata
// payloads are known to match their kinds.
func (e *Engine) validateCrossEntity(tx ledger.Transaction) error {
	switch tx.Kind {
	case ledger.TxKindGovernanceVote:
		md := tx.Metadata.(ledger.VoteMetadata)
		proposal, err := e.db.Metadata().GetProposal(md.ProposalID, nil)
		if err != nil {
			return err
		}
		if proposal.Status == models.ProposalStatusFinalized {
			return &ledger.InvalidStateTransitionError{
				Entity: "proposal",
				ID:     md.ProposalID,
				Status: proposal.Status,
				Action: "vote on",
			}
		}
		vote, err := e.db.Metadata().GetProposalVote(
			md.ProposalID,
			string(tx.From),
			nil,
		)
		if err != nil {
			return err
		}
		if vote != nil {
			return &ValidationError{
				Reason: "voter has already voted on proposal " +
					md.ProposalID,
			}
		}
	case ledger.TxKindGovernanceFinalize:
		md := tx.Metadata.(ledger.FinalizeMetadata)
		proposal, err := e.db.Metadata().GetProposal(md.ProposalID, nil)
		if err != nil {
			return err
		}
		if proposal.Status != models.ProposalStatusQuorumReached {
			return &ledger.InvalidStateTransitionError{
				Entity: "proposal",
				ID:     md.ProposalID,
				Status: proposal.Status,
				Action: "finalize",
			}
		}
	case ledger.TxKindBridgePledgeCreate:
		md := tx.Metadata.(ledger.PledgeCreateMetadata)
		pledge, err := e.db.Metadata().GetBridgePledge(md.PledgeID, nil)
		if err != nil && !errors.Is(err, models.ErrBridgePledgeNotFound) {
			return err
		}
		if pledge != nil {
			return &ValidationError{
				Reason: "pledge id already exists: " + md.PledgeID,
			}
		}
	case ledger.TxKindBridgeMint:
		md := tx.Metadata.(ledger.BridgeMintMetadata)
		pledge, err := e.db.Metadata().GetBridgePledge(md.PledgeID, nil)
		if err != nil {
			return err
		}
		if pledge.Status != models.PledgeStatusConfirmed {
			return &ledger.InvalidStateTransitionError{
				Entity: "pledge",
				ID:     md.PledgeID,
				Status: pledge.Status,
				Action: "mint for",
			}
		}
		if pledge.MintTxID != "" {
			return &ValidationError{
				Reason: "pledge already minted: " + md.PledgeID,
			}
		}
		if string(tx.To) != pledge.Owner {
			return &ValidationError{
				Reason: "bridge mint destination must be the pledge owner",
			}
		}
		if int64(tx.Amount) != pledge.Amount {
			return &ValidationError{
				Reason: "bridge mint amount must match the pledge",
			}
		}
	case ledger.TxKindBridgeWithdrawRequest:
		md := tx.Metadata.(ledger.WithdrawRequestMetadata)
		withdrawal, err := e.db.Metadata().GetBridgeWithdrawal(
			md.RequestID,
			nil,
		)
		if err != nil && !errors.Is(err, models.ErrBridgeWithdrawalNotFound) {
			return err
		}
		if withdrawal != nil {
			return &ValidationError{
				Reason: "withdrawal request id already exists: " +
					md.RequestID,
			}
		}
	case ledger.TxKindBridgeRelease:
		md := tx.Metadata.(ledger.BridgeReleaseMetadata)
		withdrawal, err := e.db.Metadata().GetBridgeWithdrawal(
			md.RequestID,
			nil,
		)
		if err != nil {
			return err
		}
		if withdrawal.ReleaseTxID != "" {
			return &ValidationError{
				Reason: "withdrawal already released: " + md.RequestID,
			}
		}
		if md.Compensation {
			if withdrawal.Status != models.WithdrawalStatusRequested &&
				withdrawal.Status != models.WithdrawalStatusApproved {
				return &ledger.InvalidStateTransitionError{
					Entity: "withdrawal",
					ID:     md.RequestID,
					Status: withdrawal.Status,
					Action: "reject",
				}
			}
			if string(tx.To) != withdrawal.Owner {
				return &ValidationError{
					Reason: "compensating release destination must be the withdrawal owner",
				}
			}
			if int64(tx.Amount) != withdrawal.Amount {
				return &ValidationError{
					Reason: "compensating release amount must match the withdrawal",
				}
			}
		} else {
			if withdrawal.Status != models.WithdrawalStatusApproved {
				return &ledger.InvalidStateTransitionError{
					Entity: "withdrawal",
					ID:     md.RequestID,
					Status: withdrawal.Status,
					Action: "settle",
				}
			}
		}
	}
	return nil
}

func validateKind(tx ledger.Transaction) error {
	if !tx.Kind.Valid() {
		return &ValidationError{Reason: "unknown kind"}
	}
	switch tx.Kind {
	case ledger.TxKindTransfer:
		if tx.From == "" || tx.To == "" {
			return &ValidationError{
				Reason: "transfer requires source and destination",
			}
		}
		if tx.Amount <= 0 {
			return &ValidationError{Reason: "transfer requires a positive amount"}
		}
		if tx.Metadata != nil {
			return &ValidationError{Reason: "transfer carries no metadata"}
		}
	case ledger.TxKindMint:
		if tx.From != "" || tx.To == "" {
			return &ValidationError{
				Reason: "mint requires a destination and no source",
			}
		}
		if tx.Amount <= 0 {
			return &ValidationError{Reason: "mint requires a positive amount"}
		}
		if tx.Metadata != nil {
			return &ValidationError{Reason: "mint carries no metadata"}
		}
	case ledger.TxKindBurn:
		if tx.From == "" || tx.To != "" {
			return &ValidationError{
				Reason: "burn requires a source and no destination",
			}
		}
		if tx.Amount <= 0 {
			return &ValidationError{Reason: "burn requires a positive amount"}
		}
		if tx.Metadata != nil {
			return &ValidationError{Reason: "burn carries no metadata"}
		}
	case ledger.TxKindGovernanceVote:
		md, err := metadataAs[ledger.VoteMetadata](tx)
		if err != nil {
			return err
		}
		if tx.From == "" || tx.To != "" {
			return &ValidationError{
				Reason: "vote requires a voter source and no destination",
			}
		}
		if tx.Amount <= 0 {
			return &ValidationError{Reason: "vote requires a positive burn amount"}
		}
		if md.ProposalID == "" {
			return &ValidationError{Reason: "vote requires a proposal id"}
		}
	case ledger.TxKindGovernanceFinalize:
		md, err := metadataAs[ledger.FinalizeMetadata](tx)
		if err != nil {
			return err
		}
		if tx.From != "" || tx.To != "" {
			return &ValidationError{
				Reason: "finalize is a record-only transaction",
			}
		}
		if tx.Amount != 0 {
			return &ValidationError{Reason: "finalize moves no funds"}
		}
		if md.ProposalID == "" {
			return &ValidationError{Reason: "finalize requires a proposal id"}
		}
	case ledger.TxKindBridgePledgeCreate:
		md, err := metadataAs[ledger.PledgeCreateMetadata](tx)
		if err != nil {
			return err
		}
		if tx.From != "" || tx.To != "" {
			return &ValidationError{
				Reason: "pledge creation moves no funds",
			}
		}
		if tx.Amount <= 0 {
			return &ValidationError{
				Reason: "pledge requires a positive amount",
			}
		}
		if md.PledgeID == "" {
			return &ValidationError{Reason: "pledge requires a pledge id"}
		}
	case ledger.TxKindBridgeMint:
		md, err := metadataAs[ledger.BridgeMintMetadata](tx)
		if err != nil {
			return err
		}
		if tx.From != "" || tx.To == "" {
			return &ValidationError{
				Reason: "bridge mint requires a destination and no source",
			}
		}
		if tx.Amount <= 0 {
			return &ValidationError{
				Reason: "bridge mint requires a positive amount",
			}
		}
		if md.PledgeID == "" || md.ExternalTxRef == "" {
			return &ValidationError{
				Reason: "bridge mint requires a pledge id and external tx ref",
			}
		}
	case ledger.TxKindBridgeWithdrawRequest:
		md, err := metadataAs[ledger.WithdrawRequestMetadata](tx)
		if err != nil {
			return err
		}
		if tx.From == "" || tx.To != "" {
			return &ValidationError{
				Reason: "withdraw request requires a source and no destination",
			}
		}
		if tx.Amount <= 0 {
			return &ValidationError{
				Reason: "withdraw request requires a positive amount",
			}
		}
		if md.RequestID == "" || md.ExternalDestination == "" {
			return &ValidationError{
				Reason: "withdraw request requires a request id and destination",
			}
		}
	case ledger.TxKindBridgeRelease:
		md, err := metadataAs[ledger.BridgeReleaseMetadata](tx)
		if err != nil {
			return err
		}
		if md.RequestID == "" {
			return &ValidationError{Reason: "release requires a request id"}
		}
		if md.Compensation {
			// Compensating mint returning burned funds after rejection
			if tx.From != "" || tx.To == "" {
				return &ValidationError{
					Reason: "compensating release requires a destination and no source",
				}
			}
			if tx.Amount <= 0 {
				return &ValidationError{
					Reason: "compensating release requires a positive amount",
				}
			}
		} else {
			// Settlement audit record
			if tx.From != "" || tx.To != "" {
				return &ValidationError{
					Reason: "settlement release is a record-only transaction",
				}
			}
			if tx.Amount != 0 {
				return &ValidationError{Reason: "settlement release moves no funds"}
			}
		}
	}
	return nil
}

func metadataAs[T ledger.TxMetadata](tx ledger.Transaction) (T, error) {
	md, ok := tx.Metadata.(T)
	if !ok {
		var zero T
		return zero, &ValidationError{
			Reason: "metadata does not match transaction kind",
		}
	}
	return md, nil
}
