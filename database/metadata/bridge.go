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

// AddBridgePledge creates a new pledge record
func (d *MetadataStoreSqlite) AddBridgePledge(
	pledge *models.BridgePledge,
	txn *gorm.DB,
) error {
	db := d.DB()
	if txn != nil {
		db = txn
	}
	return db.Create(pledge).Error
}

// GetBridgePledge gets a pledge by its pledge_id
func (d *MetadataStoreSqlite) GetBridgePledge(
	pledgeID string,
	txn *gorm.DB,
) (*models.BridgePledge, error) {
	ret := &models.BridgePledge{}
	if txn == nil {
		txn = d.DB()
	}
	result := txn.Where("pledge_id = ?", pledgeID).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrBridgePledgeNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetBridgePledgesByStatus returns pledges in the given status in creation order
func (d *MetadataStoreSqlite) GetBridgePledgesByStatus(
	status string,
	txn *gorm.DB,
) ([]models.BridgePledge, error) {
	var ret []models.BridgePledge
	if txn == nil {
		txn = d.DB()
	}
	result := txn.Where("status = ?", status).Order("id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// UpdateBridgePledge saves updated pledge fields
func (d *MetadataStoreSqlite) UpdateBridgePledge(
	pledge *models.BridgePledge,
	txn *gorm.DB,
) error {
	db := d.DB()
	if txn != nil {
		db = txn
	}
	return db.Save(pledge).Error
}

// AddBridgeWithdrawal creates a new withdrawal request record
func (d *MetadataStoreSqlite) AddBridgeWithdrawal(
	withdrawal *models.BridgeWithdrawal,
	txn *gorm.DB,
) error {
	db := d.DB()
	if txn != nil {
		db = txn
	}
	return db.Create(withdrawal).Error
}

// GetBridgeWithdrawal gets a withdrawal request by its request_id
func (d *MetadataStoreSqlite) GetBridgeWithdrawal(
	requestID string,
	txn *gorm.DB,
) (*models.BridgeWithdrawal, error) {
	ret := &models.BridgeWithdrawal{}
	if txn == nil {
		txn = d.DB()
	}
	result := txn.Where("request_id = ?", requestID).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrBridgeWithdrawalNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetBridgeWithdrawalsByStatus returns withdrawals in the given status in
// creation order
func (d *MetadataStoreSqlite) GetBridgeWithdrawalsByStatus(
	status string,
	txn *gorm.DB,
) ([]models.BridgeWithdrawal, error) {
	var ret []models.BridgeWithdrawal
	if txn == nil {
		txn = d.DB()
	}
	result := txn.Where("status = ?", status).Order("id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// UpdateBridgeWithdrawal saves updated withdrawal fields
func (d *MetadataStoreSqlite) UpdateBridgeWithdrawal(
	withdrawal *models.BridgeWithdrawal,
	txn *gorm.DB,
) error {
	db := d.DB()
	if txn != nil {
		db = txn
	}
	return db.Save(withdrawal).Error
}
