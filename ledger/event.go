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

package ledger

import (
	"github.com/blinklabs-io/thorn/event"
)

const transactionEventTypePrefix = "ledger.tx."

// TransactionEventType returns the event type published when a transaction
// of the given kind is applied. Interested engines subscribe per kind, so
// the store itself stays kind-agnostic.
func TransactionEventType(kind TxKind) event.EventType {
	return event.EventType(transactionEventTypePrefix + string(kind))
}

// TransactionEvent is the payload published after a transaction commits
type TransactionEvent struct {
	Transaction Transaction
	Balances    map[Address]Amount
}
