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

package governance

import (
	"fmt"

	"github.com/blinklabs-io/thorn/ledger"
)

// AlreadyVotedError is returned when a voter submits a second vote on the
// same proposal
type AlreadyVotedError struct {
	ProposalID string
	Voter      ledger.Address
}

func (e *AlreadyVotedError) Error() string {
	return fmt.Sprintf(
		"already voted: %s on proposal %s",
		e.Voter,
		e.ProposalID,
	)
}

// AuthFailedError is returned when the external authorization collaborator
// rejects a voter
type AuthFailedError struct {
	ProposalID string
	Voter      ledger.Address
	Err        error
}

func (e *AuthFailedError) Error() string {
	return fmt.Sprintf(
		"vote authorization failed: %s on proposal %s: %v",
		e.Voter,
		e.ProposalID,
		e.Err,
	)
}

func (e *AuthFailedError) Unwrap() error {
	return e.Err
}
