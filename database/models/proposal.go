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

package models

import (
	"errors"
	"time"
)

var (
	ErrProposalNotFound = errors.New("proposal not found")
	ErrVoteNotFound     = errors.New("vote not found")
)

// Proposal status values. Status only ever moves forward.
const (
	ProposalStatusOpen          = "OPEN"
	ProposalStatusQuorumPending = "QUORUM_PENDING"
	ProposalStatusQuorumReached = "QUORUM_REACHED"
	ProposalStatusFinalized     = "FINALIZED"
)

// Proposal result values, set only at finalization.
const (
	ProposalResultAccepted = "ACCEPTED"
	ProposalResultRejected = "REJECTED"
)

// Vote choice values.
const (
	VoteChoiceFor     = "for"
	VoteChoiceAgainst = "against"
)

// Proposal is a governance proposal and its aggregate vote tallies.
// Title and description are opaque to the core.
type Proposal struct {
	ID                uint   `gorm:"primarykey"`
	ProposalID        string `gorm:"uniqueIndex;size:36;not null"`
	Title             string `gorm:"size:256"`
	Description       string
	Status            string `gorm:"index;size:16;not null"`
	Result            string `gorm:"size:16"`
	VotesFor          int    `gorm:"not null;default:0"`
	VotesAgainst      int    `gorm:"not null;default:0"`
	WeightFor         int64  `gorm:"not null;default:0"`
	WeightAgainst     int64  `gorm:"not null;default:0"`
	TotalBurned       int64  `gorm:"not null;default:0"`
	OperatorVoteCount int    `gorm:"not null;default:0"`
	FinalizeTxID      string `gorm:"size:64"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Proposal) TableName() string {
	return "proposal"
}

// ProposalVote records a single vote on a proposal. The unique index over
// (proposal_id, voter) enforces the at-most-one-vote-per-voter invariant
// at the storage layer.
type ProposalVote struct {
	ID         uint   `gorm:"primarykey"`
	ProposalID string `gorm:"index;uniqueIndex:idx_proposal_voter,priority:1;size:36;not null"`
	Voter      string `gorm:"uniqueIndex:idx_proposal_voter,priority:2;size:64;not null"`
	Choice     string `gorm:"size:8;not null"`
	Operator   bool   `gorm:"not null;default:false"`
	BurnAmount int64  `gorm:"not null"`
	TxID       string `gorm:"size:64;not null"`
	CreatedAt  time.Time
}

func (ProposalVote) TableName() string {
	return "proposal_vote"
}
