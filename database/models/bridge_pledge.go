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

var ErrBridgePledgeNotFound = errors.New("bridge pledge not found")

// Bridge pledge status values.
const (
	PledgeStatusPending   = "PENDING"
	PledgeStatusConfirmed = "CONFIRMED"
	PledgeStatusCompleted = "COMPLETED"
	PledgeStatusExpired   = "EXPIRED"
)

// BridgePledge tracks a user's claim against an external-chain deposit.
// MintTxID is set exactly once, when the deposit reaches the confirmation
// threshold and the wrapped-asset mint is applied.
type BridgePledge struct {
	ID                     uint   `gorm:"primarykey"`
	PledgeID               string `gorm:"uniqueIndex;size:36;not null"`
	Owner                  string `gorm:"index;size:64;not null"`
	ExternalDepositAddress string `gorm:"size:128;not null"`
	Amount                 int64  `gorm:"not null"`
	Confirmations          uint   `gorm:"not null;default:0"`
	Status                 string `gorm:"index;size:16;not null"`
	ExternalTxRef          string `gorm:"size:128"`
	MintTxID               string `gorm:"size:64"`
	CreatedAt              time.Time
	ExpiresAt              time.Time `gorm:"index;not null"`
	UpdatedAt              time.Time
}

func (BridgePledge) TableName() string {
	return "bridge_pledge"
}
