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
	"fmt"

	"github.com/blinklabs-io/thorn/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetAccount gets an account by address. Returns nil with no error when the
// account does not exist.
func (d *MetadataStoreSqlite) GetAccount(
	address string,
	txn *gorm.DB,
) (*models.Account, error) {
	ret := &models.Account{}
	if txn == nil {
		txn = d.DB()
	}
	result := txn.Where("address = ?", address).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetAccounts returns all accounts ordered by address
func (d *MetadataStoreSqlite) GetAccounts(
	txn *gorm.DB,
) ([]models.Account, error) {
	var ret []models.Account
	if txn == nil {
		txn = d.DB()
	}
	result := txn.Order("address").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// SetAccountBalance creates or updates the balance for an address
func (d *MetadataStoreSqlite) SetAccountBalance(
	address string,
	balance int64,
	txn *gorm.DB,
) error {
	db := d.DB()
	if txn != nil {
		db = txn
	}
	tmpAccount := models.Account{
		Address: address,
		Balance: balance,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
	}).Create(&tmpAccount)
	if result.Error != nil {
		return fmt.Errorf("failed to set account balance: %w", result.Error)
	}
	return nil
}
