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

var ErrAccountNotFound = errors.New("account not found")

// Account holds the derived current balance for an address. Accounts are
// created implicitly on first credit and never deleted. Balance is stored
// in micro-THR (6 decimal places) and must never go negative.
type Account struct {
	ID        uint   `gorm:"primarykey"`
	Address   string `gorm:"uniqueIndex;size:64;not null"`
	Balance   int64  `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Account) TableName() string {
	return "account"
}
