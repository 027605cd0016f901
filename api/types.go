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

package api

import "encoding/json"

// ErrorResponse is the error payload returned by every endpoint. Reason is
// a structured code suitable for programmatic handling; Message is for
// humans.
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Reason     string `json:"reason"`
	Message    string `json:"message"`
}

// RootResponse is the GET / payload
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Role    string `json:"role"`
}

// HealthResponse is the GET /health payload
type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

// SubmitTxRequest is the transaction submission payload. Amount is a
// decimal string ("4.000000"); TxID is optional and assigned when absent.
type SubmitTxRequest struct {
	Kind     string          `json:"kind"`
	TxID     string          `json:"tx_id,omitempty"`
	From     string          `json:"from,omitempty"`
	To       string          `json:"to,omitempty"`
	Amount   string          `json:"amount"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// SubmitTxResponse reports an applied (or replayed) transaction
type SubmitTxResponse struct {
	Applied  bool              `json:"applied"`
	Replayed bool              `json:"replayed"`
	TxID     string            `json:"tx_id"`
	Seq      uint64            `json:"seq"`
	Balances map[string]string `json:"balances"`
}

// BalanceResponse is the GET balance payload
type BalanceResponse struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// HistoryEntry is one transaction in a history response
type HistoryEntry struct {
	TxID      string          `json:"tx_id"`
	Kind      string          `json:"kind"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Amount    string          `json:"amount"`
	Timestamp string          `json:"timestamp"`
	Seq       uint64          `json:"seq"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// CreateProposalRequest opens a governance proposal
type CreateProposalRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ProposalResponse is the wire form of a proposal
type ProposalResponse struct {
	ProposalID        string `json:"proposal_id"`
	Title             string `json:"title"`
	Description       string `json:"description,omitempty"`
	Status            string `json:"status"`
	Result            string `json:"result,omitempty"`
	VotesFor          int    `json:"votes_for"`
	VotesAgainst      int    `json:"votes_against"`
	TotalBurned       string `json:"total_burned"`
	OperatorVoteCount int    `json:"operator_vote_count"`
	FinalizeTxID      string `json:"finalize_tx_id,omitempty"`
}

// VoteRequest casts a vote on a proposal
type VoteRequest struct {
	Voter  string `json:"voter"`
	Choice string `json:"choice"`
}

// VoteResponse reports a recorded vote
type VoteResponse struct {
	ProposalID string `json:"proposal_id"`
	Status     string `json:"status"`
	TxID       string `json:"tx_id"`
}

// VoteEntry is one vote in a proposal's vote listing
type VoteEntry struct {
	Voter    string `json:"voter"`
	Choice   string `json:"choice"`
	Operator bool   `json:"operator"`
	Burned   string `json:"burned"`
	TxID     string `json:"tx_id"`
}

// FinalizeResponse reports a finalized proposal
type FinalizeResponse struct {
	ProposalID   string `json:"proposal_id"`
	Result       string `json:"result"`
	VotesFor     int    `json:"votes_for"`
	VotesAgainst int    `json:"votes_against"`
	TotalBurned  string `json:"total_burned"`
	TxID         string `json:"tx_id"`
}

// CreatePledgeRequest registers a bridge pledge
type CreatePledgeRequest struct {
	Owner                  string `json:"owner"`
	ExternalDepositAddress string `json:"external_deposit_address"`
	Amount                 string `json:"amount"`
}

// ConfirmPledgeRequest reports an external deposit observation
type ConfirmPledgeRequest struct {
	ExternalTxRef string `json:"external_tx_ref"`
	Confirmations uint   `json:"confirmations"`
}

// PledgeResponse is the wire form of a bridge pledge
type PledgeResponse struct {
	PledgeID               string `json:"pledge_id"`
	Owner                  string `json:"owner"`
	ExternalDepositAddress string `json:"external_deposit_address"`
	Amount                 string `json:"amount"`
	Confirmations          uint   `json:"confirmations"`
	Status                 string `json:"status"`
	ExternalTxRef          string `json:"external_tx_ref,omitempty"`
	MintTxID               string `json:"mint_tx_id,omitempty"`
	ExpiresAt              string `json:"expires_at"`
}

// WithdrawRequest asks to release funds on the external chain
type WithdrawRequest struct {
	Owner               string `json:"owner"`
	Amount              string `json:"amount"`
	ExternalDestination string `json:"external_destination"`
}

// SettleWithdrawalRequest records the external release reference
type SettleWithdrawalRequest struct {
	ExternalReleaseRef string `json:"external_release_ref"`
}

// WithdrawalResponse is the wire form of a bridge withdrawal
type WithdrawalResponse struct {
	RequestID           string `json:"request_id"`
	Owner               string `json:"owner"`
	Amount              string `json:"amount"`
	ExternalDestination string `json:"external_destination"`
	Status              string `json:"status"`
	BurnTxID            string `json:"burn_tx_id"`
	ReleaseTxID         string `json:"release_tx_id,omitempty"`
	ExternalReleaseRef  string `json:"external_release_ref,omitempty"`
}
