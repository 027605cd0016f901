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

var ErrBridgeWithdrawalNotFound = errors.New("bridge withdrawal not found")

// Bridge withdrawal status values.
const (
	WithdrawalStatusRequested = "REQUESTED"
	WithdrawalStatusApproved  = "APPROVED"
	WithdrawalStatusSettled   = "SETTLED"
	WithdrawalStatusRejected  = "REJECTED"
)

// BridgeWithdrawal tracks a request to release locally-custodied funds on
// an external chain. BurnTxID is applied atomically with creating the
// REQUESTED row, so local funds are always removed before any external
// release is attempted. ReleaseTxID records either the settlement audit
// transaction or the compensating mint on rejection.
type BridgeWithdrawal struct {
	ID                  uint   `gorm:"primarykey"`
	RequestID           string `gorm:"uniqueIndex;size:36;not null"`
	Owner               string `gorm:"index;size:64;not null"`
	Amount              int64  `gorm:"not null"`
	ExternalDestination string `gorm:"size:128;not null"`
	Status              string `gorm:"index;size:16;not null"`
	BurnTxID            string `gorm:"size:64;not null"`
	ReleaseTxID         string `gorm:"size:64"`
	ExternalReleaseRef  string `gorm:"size:128"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (BridgeWithdrawal) TableName() string {
	return "bridge_withdrawal"
}
