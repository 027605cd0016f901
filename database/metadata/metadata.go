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
	"log/slog"
	"time"

	"github.com/blinklabs-io/thorn/database/models"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// MetadataStore is the interface for the relational side of the database:
// account balances, transaction records, and the governance/bridge keyed
// documents. All mutating methods accept an optional *gorm.DB transaction
// handle so callers can group writes into a single atomic commit.
type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, *gorm.DB) error
	Transaction() *gorm.DB

	// Accounts
	GetAccount(string, *gorm.DB) (*models.Account, error)
	GetAccounts(*gorm.DB) ([]models.Account, error)
	SetAccountBalance(string, int64, *gorm.DB) error

	// Transactions
	AddTransaction(*models.Transaction, *gorm.DB) error
	GetTransactionByTxID(string, *gorm.DB) (*models.Transaction, error)
	GetTransactionsByAddress(
		string, // address
		string, // kind filter, empty for all
		time.Time, // since, zero for all
		int, // limit, 0 for no limit
		*gorm.DB,
	) ([]models.Transaction, error)
	GetTransactionsSinceSeq(uint64, int, *gorm.DB) ([]models.Transaction, error)
	GetMaxTransactionSeq(*gorm.DB) (uint64, error)

	// Governance
	AddProposal(*models.Proposal, *gorm.DB) error
	GetProposal(string, *gorm.DB) (*models.Proposal, error)
	GetProposals(string, *gorm.DB) ([]models.Proposal, error)
	UpdateProposal(*models.Proposal, *gorm.DB) error
	AddProposalVote(*models.ProposalVote, *gorm.DB) error
	GetProposalVote(string, string, *gorm.DB) (*models.ProposalVote, error)
	GetProposalVotes(string, *gorm.DB) ([]models.ProposalVote, error)

	// Bridge
	AddBridgePledge(*models.BridgePledge, *gorm.DB) error
	GetBridgePledge(string, *gorm.DB) (*models.BridgePledge, error)
	GetBridgePledgesByStatus(string, *gorm.DB) ([]models.BridgePledge, error)
	UpdateBridgePledge(*models.BridgePledge, *gorm.DB) error
	AddBridgeWithdrawal(*models.BridgeWithdrawal, *gorm.DB) error
	GetBridgeWithdrawal(string, *gorm.DB) (*models.BridgeWithdrawal, error)
	GetBridgeWithdrawalsByStatus(
		string,
		*gorm.DB,
	) ([]models.BridgeWithdrawal, error)
	UpdateBridgeWithdrawal(*models.BridgeWithdrawal, *gorm.DB) error
}

// New creates a new sqlite-backed metadata store. An empty dataDir selects
// an in-memory database, useful for testing.
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (MetadataStore, error) {
	return NewMetadataStoreSqlite(dataDir, logger, promRegistry)
}
