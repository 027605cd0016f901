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

package governance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/thorn/database"
	"github.com/blinklabs-io/thorn/database/models"
	"github.com/blinklabs-io/thorn/event"
	"github.com/blinklabs-io/thorn/ledger"
	"github.com/blinklabs-io/thorn/txengine"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WeightPolicy selects how votes are weighed when computing the proposal
// result at finalization
type WeightPolicy string

const (
	WeightByBurn  WeightPolicy = "burn"
	WeightByCount WeightPolicy = "count"
)

const (
	DefaultMinOperatorVotes = 3
	// Default stake burns in micro-THR. Operators burn more than ordinary
	// voters as a stronger spam deterrent.
	DefaultVoterBurn    ledger.Amount = 50_000  // 0.05 THR
	DefaultOperatorBurn ledger.Amount = 500_000 // 0.5 THR
)

// VoteAuthorizer is the external authorization collaborator consulted
// before a vote is accepted, e.g. "must hold a pledge". A nil authorizer
// allows all voters. The check runs outside the ledger's critical section.
type VoteAuthorizer interface {
	AuthorizeVote(
		ctx context.Context,
		proposalID string,
		voter ledger.Address,
	) error
}

type GovernanceConfig struct {
	Database         *database.Database
	TxEngine         *txengine.Engine
	EventBus         *event.EventBus
	Logger           *slog.Logger
	PromRegistry     prometheus.Registerer
	Authorizer       VoteAuthorizer
	Operators        []ledger.Address
	MinOperatorVotes int
	VoterBurn        ledger.Amount
	OperatorBurn     ledger.Amount
	WeightPolicy     WeightPolicy
}

// Governance drives the proposal lifecycle. Every vote is a stake-burn
// transaction and every finalization is recorded as a transaction; the
// engine never touches balances except through the transaction engine.
type Governance struct {
	config    GovernanceConfig
	db        *database.Database
	engine    *txengine.Engine
	eventBus  *event.EventBus
	logger    *slog.Logger
	operators map[ledger.Address]bool
	metrics   struct {
		votes              *prometheus.CounterVec
		voteRejects        *prometheus.CounterVec
		proposalsFinalized *prometheus.CounterVec
	}
	mutex sync.Mutex
}

// VoteResult reports the outcome of a vote submission
type VoteResult struct {
	ProposalID string
	Status     string
	TxID       string
}

// FinalizeResult reports the outcome of proposal finalization
type FinalizeResult struct {
	ProposalID   string
	Result       string
	VotesFor     int
	VotesAgainst int
	TotalBurned  ledger.Amount
	TxID         string
}

func NewGovernance(cfg GovernanceConfig) *Governance {
	g := &Governance{
		config:    cfg,
		db:        cfg.Database,
		engine:    cfg.TxEngine,
		eventBus:  cfg.EventBus,
		logger:    cfg.Logger,
		operators: make(map[ledger.Address]bool, len(cfg.Operators)),
	}
	if g.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		g.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	for _, operator := range cfg.Operators {
		g.operators[operator] = true
	}
	if g.config.MinOperatorVotes <= 0 {
		g.config.MinOperatorVotes = DefaultMinOperatorVotes
	}
	if g.config.VoterBurn <= 0 {
		g.config.VoterBurn = DefaultVoterBurn
	}
	if g.config.OperatorBurn <= 0 {
		g.config.OperatorBurn = DefaultOperatorBurn
	}
	if g.config.WeightPolicy == "" {
		g.config.WeightPolicy = WeightByBurn
	}
	promautoFactory := promauto.With(cfg.PromRegistry)
	g.metrics.votes = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thorn_governance_votes_total",
			Help: "total recorded governance votes by choice",
		},
		[]string{"choice"},
	)
	g.metrics.voteRejects = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thorn_governance_vote_rejects_total",
			Help: "total rejected governance votes by reason",
		},
		[]string{"reason"},
	)
	g.metrics.proposalsFinalized = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thorn_governance_proposals_finalized_total",
			Help: "total finalized proposals by result",
		},
		[]string{"result"},
	)
	// Audit trail for applied vote transactions
	if g.eventBus != nil {
		g.eventBus.SubscribeFunc(
			ledger.TransactionEventType(ledger.TxKindGovernanceVote),
			g.handleVoteEvent,
		)
	}
	return g
}

// IsOperator returns true when the address is a designated operator
func (g *Governance) IsOperator(addr ledger.Address) bool {
	return g.operators[addr]
}

// CreateProposal opens a new proposal for voting
func (g *Governance) CreateProposal(
	ctx context.Context,
	title string,
	description string,
) (*models.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	proposal := &models.Proposal{
		ProposalID:  uuid.NewString(),
		Title:       title,
		Description: description,
		Status:      models.ProposalStatusOpen,
	}
	if err := g.db.Metadata().AddProposal(proposal, nil); err != nil {
		return nil, err
	}
	g.logger.Info(
		"created proposal",
		"component", "governance",
		"proposal_id", proposal.ProposalID,
	)
	return proposal, nil
}

// GetProposal returns a proposal by id
func (g *Governance) GetProposal(
	proposalID string,
) (*models.Proposal, error) {
	return g.db.Metadata().GetProposal(proposalID, nil)
}

// GetProposals returns proposals, optionally filtered by status
func (g *Governance) GetProposals(
	status string,
) ([]models.Proposal, error) {
	return g.db.Metadata().GetProposals(status, nil)
}

// GetVotes returns the recorded votes for a proposal
func (g *Governance) GetVotes(
	proposalID string,
) ([]models.ProposalVote, error) {
	return g.db.Metadata().GetProposalVotes(proposalID, nil)
}

// Vote submits a stake-burn vote on a proposal. Rejections are always
// distinguishable: AlreadyVotedError, ledger.InsufficientBalanceError, or
// AuthFailedError, each also recorded in the audit log since rejection
// reasons are the signal that the stake-burn spam deterrent is working.
func (g *Governance) Vote(
	ctx context.Context,
	proposalID string,
	voter ledger.Address,
	choice string,
) (*VoteResult, error) {
	if err := ledger.ValidateAddress(voter); err != nil {
		return nil, err
	}
	if choice != models.VoteChoiceFor && choice != models.VoteChoiceAgainst {
		return nil, fmt.Errorf("invalid vote choice: %q", choice)
	}
	g.mutex.Lock()
	defer g.mutex.Unlock()
	proposal, err := g.db.Metadata().GetProposal(proposalID, nil)
	if err != nil {
		return nil, err
	}
	if proposal.Status == models.ProposalStatusFinalized {
		return nil, &ledger.InvalidStateTransitionError{
			Entity: "proposal",
			ID:     proposalID,
			Status: proposal.Status,
			Action: "vote on",
		}
	}
	existing, err := g.db.Metadata().GetProposalVote(proposalID, string(voter), nil)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		g.rejectVote(proposalID, voter, "already_voted")
		return nil, &AlreadyVotedError{ProposalID: proposalID, Voter: voter}
	}
	// External authorization check, outside the ledger critical section
	if g.config.Authorizer != nil {
		if err := g.config.Authorizer.AuthorizeVote(ctx, proposalID, voter); err != nil {
			g.rejectVote(proposalID, voter, "auth_failed")
			return nil, &AuthFailedError{
				ProposalID: proposalID,
				Voter:      voter,
				Err:        err,
			}
		}
	}
	operator := g.operators[voter]
	burn := g.config.VoterBurn
	if operator {
		burn = g.config.OperatorBurn
	}
	// Pre-generate the transaction id so the vote row can reference it
	// inside the same database transaction
	txID := uuid.NewString()
	res, err := g.engine.Submit(ctx, txengine.Request{
		Kind:   ledger.TxKindGovernanceVote,
		TxID:   txID,
		From:   voter,
		Amount: burn,
		Metadata: ledger.VoteMetadata{
			ProposalID: proposalID,
			Choice:     choice,
			Operator:   operator,
		},
		StateUpdate: func(t *database.Txn) error {
			vote := &models.ProposalVote{
				ProposalID: proposalID,
				Voter:      string(voter),
				Choice:     choice,
				Operator:   operator,
				BurnAmount: int64(burn),
				TxID:       txID,
			}
			if err := g.db.Metadata().AddProposalVote(vote, t.Metadata()); err != nil {
				return err
			}
			if choice == models.VoteChoiceFor {
				proposal.VotesFor++
				proposal.WeightFor += int64(burn)
			} else {
				proposal.VotesAgainst++
				proposal.WeightAgainst += int64(burn)
			}
			proposal.TotalBurned += int64(burn)
			if operator {
				proposal.OperatorVoteCount++
			}
			g.advanceStatus(proposal)
			return g.db.Metadata().UpdateProposal(proposal, t.Metadata())
		},
	})
	if err != nil {
		var insufficient *ledger.InsufficientBalanceError
		if errors.As(err, &insufficient) {
			g.rejectVote(proposalID, voter, "insufficient_balance")
		}
		return nil, err
	}
	g.metrics.votes.WithLabelValues(choice).Inc()
	return &VoteResult{
		ProposalID: proposalID,
		Status:     proposal.Status,
		TxID:       res.Transaction.TxID,
	}, nil
}

// advanceStatus moves a proposal's status forward based on the operator
// vote count. Status never moves backward.
func (g *Governance) advanceStatus(proposal *models.Proposal) {
	switch {
	case proposal.OperatorVoteCount >= g.config.MinOperatorVotes:
		if proposal.Status != models.ProposalStatusFinalized {
			proposal.Status = models.ProposalStatusQuorumReached
		}
	case proposal.OperatorVoteCount >= 1:
		if proposal.Status == models.ProposalStatusOpen {
			proposal.Status = models.ProposalStatusQuorumPending
		}
	}
}

// Finalize computes the proposal result and locks the proposal. Only
// permitted once quorum is reached.
func (g *Governance) Finalize(
	ctx context.Context,
	proposalID string,
) (*FinalizeResult, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	proposal, err := g.db.Metadata().GetProposal(proposalID, nil)
	if err != nil {
		return nil, err
	}
	if proposal.Status != models.ProposalStatusQuorumReached {
		return nil, &ledger.InvalidStateTransitionError{
			Entity: "proposal",
			ID:     proposalID,
			Status: proposal.Status,
			Action: "finalize",
		}
	}
	result := models.ProposalResultRejected
	switch g.config.WeightPolicy {
	case WeightByCount:
		if proposal.VotesFor > proposal.VotesAgainst {
			result = models.ProposalResultAccepted
		}
	default:
		if proposal.WeightFor > proposal.WeightAgainst {
			result = models.ProposalResultAccepted
		}
	}
	txID := uuid.NewString()
	res, err := g.engine.Submit(ctx, txengine.Request{
		Kind: ledger.TxKindGovernanceFinalize,
		TxID: txID,
		Metadata: ledger.FinalizeMetadata{
			ProposalID:   proposalID,
			Result:       result,
			VotesFor:     proposal.VotesFor,
			VotesAgainst: proposal.VotesAgainst,
			TotalBurned:  ledger.Amount(proposal.TotalBurned),
		},
		StateUpdate: func(t *database.Txn) error {
			proposal.Status = models.ProposalStatusFinalized
			proposal.Result = result
			proposal.FinalizeTxID = txID
			return g.db.Metadata().UpdateProposal(proposal, t.Metadata())
		},
	})
	if err != nil {
		return nil, err
	}
	g.metrics.proposalsFinalized.WithLabelValues(result).Inc()
	g.logger.Info(
		"finalized proposal",
		"component", "governance",
		"proposal_id", proposalID,
		"result", result,
		"votes_for", proposal.VotesFor,
		"votes_against", proposal.VotesAgainst,
	)
	return &FinalizeResult{
		ProposalID:   proposalID,
		Result:       result,
		VotesFor:     proposal.VotesFor,
		VotesAgainst: proposal.VotesAgainst,
		TotalBurned:  ledger.Amount(proposal.TotalBurned),
		TxID:         res.Transaction.TxID,
	}, nil
}

func (g *Governance) rejectVote(
	proposalID string,
	voter ledger.Address,
	reason string,
) {
	g.metrics.voteRejects.WithLabelValues(reason).Inc()
	g.logger.Warn(
		"rejected vote",
		"component", "governance",
		"proposal_id", proposalID,
		"voter", voter,
		"reason", reason,
	)
}

func (g *Governance) handleVoteEvent(evt event.Event) {
	txEvent, ok := evt.Data.(ledger.TransactionEvent)
	if !ok {
		return
	}
	md, ok := txEvent.Transaction.Metadata.(ledger.VoteMetadata)
	if !ok {
		return
	}
	g.logger.Info(
		"recorded vote",
		"component", "governance",
		"proposal_id", md.ProposalID,
		"voter", txEvent.Transaction.From,
		"choice", md.Choice,
		"operator", md.Operator,
		"burned", txEvent.Transaction.Amount.String(),
	)
}
