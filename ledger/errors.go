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
	"errors"
	"fmt"
)

// ErrReadOnlyReplica is returned when a mutation is attempted against a
// replica-role store. Replicas only accept snapshot loads from the master.
var ErrReadOnlyReplica = errors.New(
	"ledger store is a read-only replica",
)

// ErrNotReplica is returned when a snapshot load is attempted against the
// master store
var ErrNotReplica = errors.New(
	"snapshot load only permitted on a replica",
)

// InsufficientBalanceError is returned when applying a transaction would
// take the source account balance negative
type InsufficientBalanceError struct {
	Account  Address
	Balance  Amount
	Required Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf(
		"insufficient balance: account %s has %s, needs %s",
		e.Account,
		e.Balance,
		e.Required,
	)
}

// UnknownAccountError is returned when the source account of a debit has
// never been credited
type UnknownAccountError struct {
	Account Address
}

func (e *UnknownAccountError) Error() string {
	return fmt.Sprintf("unknown account: %s", e.Account)
}

// InvalidStateTransitionError is returned by the governance and bridge
// state machines when an operation is not permitted in the entity's
// current status, such as finalizing before quorum or minting an
// already-minted pledge
type InvalidStateTransitionError struct {
	Entity string
	ID     string
	Status string
	Action string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf(
		"invalid state transition: cannot %s %s %s in status %s",
		e.Action,
		e.Entity,
		e.ID,
		e.Status,
	)
}
