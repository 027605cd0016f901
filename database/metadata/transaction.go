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
	"time"

	"github.com/blinklabs-io/thorn/database/models"
	"gorm.io/gorm"
)

// AddTransaction appends a transaction record
func (d *MetadataStoreSqlite) AddTransaction(
	tx *models.Transaction,
	txn *gorm.DB,
) error {
	db := d.DB()
	if txn != nil {
		db = txn
	}
	result := db.Create(tx)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

// GetTransactionByTxID gets a transaction by its tx_id. Returns nil with no
// error when no such transaction has been applied.
func (d *MetadataStoreSqlite) GetTransactionByTxID(
	txID string,
	txn *gorm.DB,
) (*models.Transaction, error) {
	ret := &models.Transaction{}
	if txn == nil {
		txn = d.DB()
	}
	result := txn.Where("tx_id = ?", txID).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetTransactionsByAddress returns transactions where the given address is
// either the source or the destination, ordered by timestamp ascending with
// tx_id as a deterministic tie-break.
func (d *MetadataStoreSqlite) GetTransactionsByAddress(
	address string,
	kind string,
	since time.Time,
	limit int,
	txn *gorm.DB,
) ([]models.Transaction, error) {
	var ret []models.Transaction
	if txn == nil {
		txn = d.DB()
	}
	query := txn.Where(
		"source_address = ? OR dest_address = ?",
		address,
		address,
	)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if !since.IsZero() {
		query = query.Where("timestamp >= ?", since)
	}
	query = query.Order("timestamp").Order("tx_id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	result := query.Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetTransactionsSinceSeq returns transactions with a sequence number
// greater than the given value, in sequence order. Used for replica
// snapshot pulls.
func (d *MetadataStoreSqlite) GetTransactionsSinceSeq(
	seq uint64,
	limit int,
	txn *gorm.DB,
) ([]models.Transaction, error) {
	var ret []models.Transaction
	if txn == nil {
		txn = d.DB()
	}
	query := txn.Where("id > ?", seq).Order("id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	result := query.Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetMaxTransactionSeq returns the sequence number of the most recently
// appended transaction, or zero when the log is empty.
func (d *MetadataStoreSqlite) GetMaxTransactionSeq(
	txn *gorm.DB,
) (uint64, error) {
	if txn == nil {
		txn = d.DB()
	}
	var maxSeq *uint64
	result := txn.Model(&models.Transaction{}).
		Select("MAX(id)").
		Scan(&maxSeq)
	if result.Error != nil {
		return 0, result.Error
	}
	if maxSeq == nil {
		return 0, nil
	}
	return *maxSeq, nil
}
