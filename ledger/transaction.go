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
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// TxKind identifies the type of a ledger transaction
type TxKind string

const (
	TxKindTransfer              TxKind = "transfer"
	TxKindMint                  TxKind = "mint"
	TxKindBurn                  TxKind = "burn"
	TxKindGovernanceVote        TxKind = "governance_vote"
	TxKindGovernanceFinalize    TxKind = "governance_finalize"
	TxKindBridgePledgeCreate    TxKind = "bridge_pledge_create"
	TxKindBridgeMint            TxKind = "bridge_mint"
	TxKindBridgeWithdrawRequest TxKind = "bridge_withdraw_request"
	TxKindBridgeRelease         TxKind = "bridge_release"
)

// Valid returns true for a known transaction kind
func (k TxKind) Valid() bool {
	switch k {
	case TxKindTransfer, TxKindMint, TxKindBurn,
		TxKindGovernanceVote, TxKindGovernanceFinalize,
		TxKindBridgePledgeCreate, TxKindBridgeMint,
		TxKindBridgeWithdrawRequest, TxKindBridgeRelease:
		return true
	default:
		return false
	}
}

// Address identifies an account. Addresses are opaque fixed-format strings
// with a "thr1" prefix.
type Address string

var addressRegexp = regexp.MustCompile(`^thr1[a-z0-9]{4,60}$`)

// ErrInvalidAddress is returned for addresses that do not match the
// expected format
var ErrInvalidAddress = errors.New("invalid address format")

// ValidateAddress checks that an address matches the expected format
func ValidateAddress(addr Address) error {
	if !addressRegexp.MatchString(string(addr)) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return nil
}

// TxMetadata is the kind-specific payload of a transaction. Each kind that
// carries extra data has its own concrete type, so validation can switch
// exhaustively instead of probing an untyped key/value bag.
type TxMetadata interface {
	MetadataKind() TxKind
}

// VoteMetadata accompanies a governance_vote transaction
type VoteMetadata struct {
	ProposalID string `json:"proposalId"`
	Choice     string `json:"choice"`
	Operator   bool   `json:"operator"`
}

func (VoteMetadata) MetadataKind() TxKind { return TxKindGovernanceVote }

// FinalizeMetadata accompanies a governance_finalize transaction
type FinalizeMetadata struct {
	ProposalID   string `json:"proposalId"`
	Result       string `json:"result"`
	VotesFor     int    `json:"votesFor"`
	VotesAgainst int    `json:"votesAgainst"`
	TotalBurned  Amount `json:"totalBurned"`
}

func (FinalizeMetadata) MetadataKind() TxKind { return TxKindGovernanceFinalize }

// PledgeCreateMetadata accompanies a bridge_pledge_create transaction
type PledgeCreateMetadata struct {
	PledgeID               string `json:"pledgeId"`
	ExternalDepositAddress string `json:"externalDepositAddress"`
}

func (PledgeCreateMetadata) MetadataKind() TxKind { return TxKindBridgePledgeCreate }

// BridgeMintMetadata accompanies a bridge_mint transaction
type BridgeMintMetadata struct {
	PledgeID      string `json:"pledgeId"`
	ExternalTxRef string `json:"externalTxRef"`
	Confirmations uint   `json:"confirmations"`
}

func (BridgeMintMetadata) MetadataKind() TxKind { return TxKindBridgeMint }

// WithdrawRequestMetadata accompanies a bridge_withdraw_request transaction
type WithdrawRequestMetadata struct {
	RequestID           string `json:"requestId"`
	ExternalDestination string `json:"externalDestination"`
}

func (WithdrawRequestMetadata) MetadataKind() TxKind {
	return TxKindBridgeWithdrawRequest
}

// BridgeReleaseMetadata accompanies a bridge_release transaction. A release
// either records an external settlement (Compensation false, no balance
// change) or returns burned funds after an operator rejection
// (Compensation true, fresh mint to the owner).
type BridgeReleaseMetadata struct {
	RequestID          string `json:"requestId"`
	ExternalReleaseRef string `json:"externalReleaseRef,omitempty"`
	Compensation       bool   `json:"compensation"`
}

func (BridgeReleaseMetadata) MetadataKind() TxKind { return TxKindBridgeRelease }

// Transaction is the atomic unit of change in the ledger. Once applied it
// is immutable; TxID is the idempotency key.
type Transaction struct {
	TxID      string
	Kind      TxKind
	From      Address // empty for mint and record-only kinds
	To        Address // empty for burn and record-only kinds
	Amount    Amount
	Timestamp time.Time
	Metadata  TxMetadata
	Seq       uint64 // assigned on apply
}

// EncodeMetadata serializes a kind-specific payload to JSON. A nil payload
// encodes as nil.
func EncodeMetadata(md TxMetadata) ([]byte, error) {
	if md == nil {
		return nil, nil
	}
	return json.Marshal(md)
}

// DecodeMetadata deserializes a kind-specific payload from JSON based on
// the transaction kind. Kinds without payloads return nil.
func DecodeMetadata(kind TxKind, data []byte) (TxMetadata, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var md TxMetadata
	switch kind {
	case TxKindGovernanceVote:
		md = &VoteMetadata{}
	case TxKindGovernanceFinalize:
		md = &FinalizeMetadata{}
	case TxKindBridgePledgeCreate:
		md = &PledgeCreateMetadata{}
	case TxKindBridgeMint:
		md = &BridgeMintMetadata{}
	case TxKindBridgeWithdrawRequest:
		md = &WithdrawRequestMetadata{}
	case TxKindBridgeRelease:
		md = &BridgeReleaseMetadata{}
	case TxKindTransfer, TxKindMint, TxKindBurn:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown transaction kind: %s", kind)
	}
	if err := json.Unmarshal(data, md); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	// Return the concrete value rather than the pointer
	switch v := md.(type) {
	case *VoteMetadata:
		return *v, nil
	case *FinalizeMetadata:
		return *v, nil
	case *PledgeCreateMetadata:
		return *v, nil
	case *BridgeMintMetadata:
		return *v, nil
	case *WithdrawRequestMetadata:
		return *v, nil
	case *BridgeReleaseMetadata:
		return *v, nil
	}
	return md, nil
}
