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

package metadata

import (
	"errors"

	"github.com/blinklabs-io/thorn/database/models"
	"gorm.io/gorm"
)

// AddProposal creates a new proposal record
func (d *MetadataStoreSqlite) AddProposal(
	proposal *models.Proposal,
	txn *gorm.DB,
) error {
	db := d.DB()
	if txn != nil {
		db = txn
	}
	return db.Create(proposal).Error
}

// GetProposal gets a proposal by its proposal_id
func (d *MetadataStoreSqlite) GetProposal(
	proposalID string,
	txn *gorm.DB,
) (*models.Proposal, error) {
	ret := &models.Proposal{}
	if txn == nil {
		txn = d.DB()
	}
	result := txn.Where("proposal_id = ?", proposalID).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrProposalNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetProposals returns proposals, optionally filtered by status, newest first
func (d *MetadataStoreSqlite) GetProposals(
	status string,
	txn *gorm.DB,
) ([]models.Proposal, error) {
	var ret []models.Proposal
	if txn == nil {
		txn = d.DB()
	}
	query := txn.Order("id DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	result := query.Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// UpdateProposal saves updated proposal fields
func (d *MetadataStoreSqlite) UpdateProposal(
	proposal *models.Proposal,
	txn *gorm.DB,
) error {
	db := d.DB()
	if txn != nil {
		db = txn
	}
	return db.Save(proposal).Error
}

// AddProposalVote records a vote. The unique index over
// (proposal_id, voter) makes a second vote by the same voter fail.
func (d *MetadataStoreSqlite) AddProposalVote(
	vote *models.ProposalVote,
	txn *gorm.DB,
) error {
	db := d.DB()
	if txn != nil {
		db = txn
	}
	return db.Create(vote).Error
}

// GetProposalVote gets a single vote by proposal and voter. Returns nil with
// no error when the voter has not voted on the proposal.
func (d *MetadataStoreSqlite) GetProposalVote(
	proposalID string,
	voter string,
	txn *gorm.DB,
) (*models.ProposalVote, error) {
	ret := &models.ProposalVote{}
	if txn == nil {
		txn = d.DB()
	}
	result := txn.Where(
		"proposal_id = ? AND voter = ?",
		proposalID,
		voter,
	).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetProposalVotes returns all votes for a proposal in vote order
func (d *MetadataStoreSqlite) GetProposalVotes(
	proposalID string,
	txn *gorm.DB,
) ([]models.ProposalVote, error) {
	var ret []models.ProposalVote
	if txn == nil {
		txn = d.DB()
	}
	result := txn.Where("proposal_id = ?", proposalID).
		Order("id").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
