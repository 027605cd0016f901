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

var ErrTransactionNotFound = errors.New("transaction not found")

// Transaction is the immutable record of a single applied ledger
// transaction. The primary key doubles as the append sequence number.
// The unique index on TxID is the idempotency guard: a replayed tx_id
// can never produce a second row.
type Transaction struct {
	ID            uint64 `gorm:"primarykey"`
	TxID          string `gorm:"uniqueIndex;size:64;not null"`
	Kind          string `gorm:"index;size:32;not null"`
	SourceAddress string `gorm:"index;size:64"`
	DestAddress   string `gorm:"index;size:64"`
	Amount        int64  `gorm:"not null"`
	Timestamp     time.Time `gorm:"index;not null"`
	Metadata      []byte // kind-specific payload, JSON
	BalancesAfter []byte // post-apply balances of touched accounts, JSON
}

func (Transaction) TableName() string {
	return "transaction"
}
