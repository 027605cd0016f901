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

	"github.com/shopspring/decimal"
)

// AmountDecimals is the number of decimal places in a THR amount
const AmountDecimals = 6

var (
	ErrAmountFormat    = errors.New("invalid amount")
	ErrAmountPrecision = errors.New(
		"amount has more than 6 decimal places",
	)
	ErrAmountRange = errors.New("amount out of range")
)

// Amount is a fixed-point THR amount stored as micro-THR. All ledger
// arithmetic happens on this integer representation; decimal strings only
// appear at the API boundary.
type Amount int64

// ParseAmount converts a decimal string such as "4.000000" into an Amount
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrAmountFormat, err)
	}
	scaled := d.Shift(AmountDecimals)
	if !scaled.IsInteger() {
		return 0, ErrAmountPrecision
	}
	if !scaled.BigInt().IsInt64() {
		return 0, ErrAmountRange
	}
	return Amount(scaled.IntPart()), nil
}

// String returns the decimal representation with all 6 decimal places
func (a Amount) String() string {
	return decimal.New(int64(a), -AmountDecimals).StringFixed(AmountDecimals)
}
