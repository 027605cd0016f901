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

package bridge

import "fmt"

// ConfirmationPendingError indicates a deposit confirmation was recorded
// but the pledge has not yet reached the confirmation threshold. It is not
// a failure; the caller waits for further confirmations.
type ConfirmationPendingError struct {
	PledgeID      string
	Confirmations uint
	Threshold     uint
}

func (e *ConfirmationPendingError) Error() string {
	return fmt.Sprintf(
		"pledge %s awaiting confirmations: %d of %d",
		e.PledgeID,
		e.Confirmations,
		e.Threshold,
	)
}

// PledgeExpiredError indicates an operation against a pledge whose
// deposit window has elapsed
type PledgeExpiredError struct {
	PledgeID string
}

func (e *PledgeExpiredError) Error() string {
	return fmt.Sprintf("pledge %s has expired", e.PledgeID)
}
