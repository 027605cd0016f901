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

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/blinklabs-io/thorn/bridge"
	"github.com/blinklabs-io/thorn/database/models"
	"github.com/blinklabs-io/thorn/governance"
	"github.com/blinklabs-io/thorn/internal/version"
	"github.com/blinklabs-io/thorn/ledger"
	"github.com/blinklabs-io/thorn/txengine"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response.
func writeError(
	w http.ResponseWriter,
	status int,
	reason string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Reason:     reason,
		Message:    message,
	})
}

// writeMappedError translates domain errors to HTTP status codes and
// structured reason codes. Every distinguishable rejection keeps its
// reason on the wire so collaborators can surface it.
func writeMappedError(w http.ResponseWriter, err error) {
	var (
		validationErr   *txengine.ValidationError
		insufficientErr *ledger.InsufficientBalanceError
		unknownErr      *ledger.UnknownAccountError
		transitionErr   *ledger.InvalidStateTransitionError
		alreadyVotedErr *governance.AlreadyVotedError
		authFailedErr   *governance.AuthFailedError
		pendingErr      *bridge.ConfirmationPendingError
		expiredErr      *bridge.PledgeExpiredError
	)
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.As(err, &insufficientErr):
		writeError(
			w,
			http.StatusUnprocessableEntity,
			"insufficient_balance",
			err.Error(),
		)
	case errors.As(err, &unknownErr):
		writeError(w, http.StatusNotFound, "unknown_account", err.Error())
	case errors.As(err, &transitionErr):
		writeError(
			w,
			http.StatusConflict,
			"invalid_state_transition",
			err.Error(),
		)
	case errors.As(err, &alreadyVotedErr):
		writeError(w, http.StatusConflict, "already_voted", err.Error())
	case errors.As(err, &authFailedErr):
		writeError(w, http.StatusForbidden, "auth_failed", err.Error())
	case errors.As(err, &pendingErr):
		// Valid waiting state, not a failure
		writeError(
			w,
			http.StatusAccepted,
			"confirmation_pending",
			err.Error(),
		)
	case errors.As(err, &expiredErr):
		writeError(w, http.StatusGone, "pledge_expired", err.Error())
	case errors.Is(err, ledger.ErrReadOnlyReplica):
		writeError(w, http.StatusForbidden, "read_only_replica", err.Error())
	case errors.Is(err, models.ErrProposalNotFound),
		errors.Is(err, models.ErrBridgePledgeNotFound),
		errors.Is(err, models.ErrBridgeWithdrawalNotFound),
		errors.Is(err, models.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ledger.ErrAmountFormat),
		errors.Is(err, ledger.ErrAmountPrecision),
		errors.Is(err, ledger.ErrAmountRange):
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, ledger.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "invalid_address", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

// handleRoot handles GET / and returns API metadata.
func (a *Api) handleRoot(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, RootResponse{
		Name:    "thorn",
		Version: version.GetVersionString(),
		Role:    string(a.config.Ledger.Role()),
	})
}

// handleHealth handles GET /health and returns node health status.
func (a *Api) handleHealth(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, HealthResponse{
		IsHealthy: true,
	})
}

func (a *Api) handleSubmitTx(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req SubmitTxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	var amount ledger.Amount
	if req.Amount != "" {
		var err error
		amount, err = ledger.ParseAmount(req.Amount)
		if err != nil {
			writeMappedError(w, err)
			return
		}
	}
	kind := ledger.TxKind(req.Kind)
	// The engine-owned kinds carry dependent entity state (votes, pledges,
	// withdrawals) that only the governance and bridge endpoints commit,
	// so direct submission accepts the plain kinds only
	switch kind {
	case ledger.TxKindTransfer:
		// open
	case ledger.TxKindMint, ledger.TxKindBurn:
		// Supply changes are an operator action
		if !a.authorized(r, a.config.OperatorToken) {
			writeError(
				w,
				http.StatusUnauthorized,
				"unauthorized",
				"missing or invalid bearer token",
			)
			return
		}
	default:
		reason := "kind must be submitted through its dedicated endpoint"
		if !kind.Valid() {
			reason = "unknown transaction kind"
		}
		writeError(w, http.StatusBadRequest, "invalid_kind", reason)
		return
	}
	md, err := ledger.DecodeMetadata(kind, req.Metadata)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_metadata", err.Error())
		return
	}
	res, err := a.config.TxEngine.Submit(r.Context(), txengine.Request{
		Kind:     kind,
		TxID:     req.TxID,
		From:     ledger.Address(req.From),
		To:       ledger.Address(req.To),
		Amount:   amount,
		Metadata: md,
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SubmitTxResponse{
		Applied:  true,
		Replayed: res.Replayed,
		TxID:     res.Transaction.TxID,
		Seq:      res.Transaction.Seq,
		Balances: balancesToWire(res.Balances),
	})
}

func (a *Api) handleGetTx(
	w http.ResponseWriter,
	r *http.Request,
) {
	txID := r.PathValue("tx_id")
	tx, err := a.config.Ledger.GetTransaction(txID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if tx == nil {
		writeError(
			w,
			http.StatusNotFound,
			"not_found",
			"transaction not found",
		)
		return
	}
	entry, err := txToWire(*tx)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *Api) handleBalance(
	w http.ResponseWriter,
	r *http.Request,
) {
	account := r.PathValue("account")
	amount, err := a.config.Ledger.BalanceOf(ledger.Address(account))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{
		Account: account,
		Amount:  amount.String(),
	})
}

func (a *Api) handleHistory(
	w http.ResponseWriter,
	r *http.Request,
) {
	account := r.PathValue("account")
	filter := ledger.HistoryFilter{
		Kind: ledger.TxKind(r.URL.Query().Get("kind")),
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339Nano, since)
		if err != nil {
			writeError(
				w,
				http.StatusBadRequest,
				"bad_request",
				"invalid since timestamp",
			)
			return
		}
		filter.Since = t
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(
				w,
				http.StatusBadRequest,
				"bad_request",
				"invalid limit",
			)
			return
		}
		filter.Limit = n
	}
	txs, err := a.config.Ledger.History(ledger.Address(account), filter)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	entries := make([]HistoryEntry, 0, len(txs))
	for _, tx := range txs {
		entry, err := txToWire(tx)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		entries = append(entries, entry)
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *Api) handleSnapshot(
	w http.ResponseWriter,
	r *http.Request,
) {
	var sinceSeq uint64
	if since := r.URL.Query().Get("since_seq"); since != "" {
		n, err := strconv.ParseUint(since, 10, 64)
		if err != nil {
			writeError(
				w,
				http.StatusBadRequest,
				"bad_request",
				"invalid since_seq",
			)
			return
		}
		sinceSeq = n
	}
	snap, err := a.config.Ledger.Snapshot(sinceSeq)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *Api) handleCreateProposal(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req CreateProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.Title == "" {
		writeError(
			w,
			http.StatusBadRequest,
			"bad_request",
			"proposal requires a title",
		)
		return
	}
	proposal, err := a.config.Governance.CreateProposal(
		r.Context(),
		req.Title,
		req.Description,
	)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, proposalToWire(proposal))
}

func (a *Api) handleGetProposal(
	w http.ResponseWriter,
	r *http.Request,
) {
	proposal, err := a.config.Governance.GetProposal(
		r.PathValue("proposal_id"),
	)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proposalToWire(proposal))
}

func (a *Api) handleGetProposals(
	w http.ResponseWriter,
	r *http.Request,
) {
	proposals, err := a.config.Governance.GetProposals(
		r.URL.Query().Get("status"),
	)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	ret := make([]ProposalResponse, 0, len(proposals))
	for i := range proposals {
		ret = append(ret, proposalToWire(&proposals[i]))
	}
	writeJSON(w, http.StatusOK, ret)
}

func (a *Api) handleGetVotes(
	w http.ResponseWriter,
	r *http.Request,
) {
	votes, err := a.config.Governance.GetVotes(
		r.PathValue("proposal_id"),
	)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	ret := make([]VoteEntry, 0, len(votes))
	for _, vote := range votes {
		ret = append(ret, VoteEntry{
			Voter:    vote.Voter,
			Choice:   vote.Choice,
			Operator: vote.Operator,
			Burned:   ledger.Amount(vote.BurnAmount).String(),
			TxID:     vote.TxID,
		})
	}
	writeJSON(w, http.StatusOK, ret)
}

func (a *Api) handleVote(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	res, err := a.config.Governance.Vote(
		r.Context(),
		r.PathValue("proposal_id"),
		ledger.Address(req.Voter),
		req.Choice,
	)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VoteResponse{
		ProposalID: res.ProposalID,
		Status:     res.Status,
		TxID:       res.TxID,
	})
}

func (a *Api) handleFinalize(
	w http.ResponseWriter,
	r *http.Request,
) {
	res, err := a.config.Governance.Finalize(
		r.Context(),
		r.PathValue("proposal_id"),
	)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FinalizeResponse{
		ProposalID:   res.ProposalID,
		Result:       res.Result,
		VotesFor:     res.VotesFor,
		VotesAgainst: res.VotesAgainst,
		TotalBurned:  res.TotalBurned.String(),
		TxID:         res.TxID,
	})
}

func (a *Api) handleCreatePledge(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req CreatePledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	amount, err := ledger.ParseAmount(req.Amount)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	pledge, err := a.config.Bridge.CreatePledge(
		r.Context(),
		ledger.Address(req.Owner),
		req.ExternalDepositAddress,
		amount,
	)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pledgeToWire(pledge))
}

func (a *Api) handleGetPledge(
	w http.ResponseWriter,
	r *http.Request,
) {
	pledge, err := a.config.Bridge.GetPledge(r.PathValue("pledge_id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pledgeToWire(pledge))
}

func (a *Api) handleConfirmPledge(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req ConfirmPledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	pledge, err := a.config.Bridge.ConfirmPledge(
		r.Context(),
		r.PathValue("pledge_id"),
		req.ExternalTxRef,
		req.Confirmations,
	)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pledgeToWire(pledge))
}

func (a *Api) handleWithdrawRequest(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	amount, err := ledger.ParseAmount(req.Amount)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	withdrawal, err := a.config.Bridge.RequestWithdrawal(
		r.Context(),
		ledger.Address(req.Owner),
		amount,
		req.ExternalDestination,
	)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, withdrawalToWire(withdrawal))
}

func (a *Api) handleGetWithdrawal(
	w http.ResponseWriter,
	r *http.Request,
) {
	withdrawal, err := a.config.Bridge.GetWithdrawal(
		r.PathValue("request_id"),
	)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawalToWire(withdrawal))
}

func (a *Api) handleApproveWithdrawal(
	w http.ResponseWriter,
	r *http.Request,
) {
	withdrawal, err := a.config.Bridge.ApproveWithdrawal(
		r.Context(),
		r.PathValue("request_id"),
	)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawalToWire(withdrawal))
}

func (a *Api) handleSettleWithdrawal(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req SettleWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	withdrawal, err := a.config.Bridge.SettleWithdrawal(
		r.Context(),
		r.PathValue("request_id"),
		req.ExternalReleaseRef,
	)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawalToWire(withdrawal))
}

func (a *Api) handleRejectWithdrawal(
	w http.ResponseWriter,
	r *http.Request,
) {
	withdrawal, err := a.config.Bridge.RejectWithdrawal(
		r.Context(),
		r.PathValue("request_id"),
	)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawalToWire(withdrawal))
}

func balancesToWire(
	balances map[ledger.Address]ledger.Amount,
) map[string]string {
	ret := make(map[string]string, len(balances))
	for addr, amount := range balances {
		ret[string(addr)] = amount.String()
	}
	return ret
}

func txToWire(tx ledger.Transaction) (HistoryEntry, error) {
	md, err := ledger.EncodeMetadata(tx.Metadata)
	if err != nil {
		return HistoryEntry{}, err
	}
	return HistoryEntry{
		TxID:      tx.TxID,
		Kind:      string(tx.Kind),
		From:      string(tx.From),
		To:        string(tx.To),
		Amount:    tx.Amount.String(),
		Timestamp: tx.Timestamp.Format(time.RFC3339Nano),
		Seq:       tx.Seq,
		Metadata:  md,
	}, nil
}

func proposalToWire(proposal *models.Proposal) ProposalResponse {
	return ProposalResponse{
		ProposalID:        proposal.ProposalID,
		Title:             proposal.Title,
		Description:       proposal.Description,
		Status:            proposal.Status,
		Result:            proposal.Result,
		VotesFor:          proposal.VotesFor,
		VotesAgainst:      proposal.VotesAgainst,
		TotalBurned:       ledger.Amount(proposal.TotalBurned).String(),
		OperatorVoteCount: proposal.OperatorVoteCount,
		FinalizeTxID:      proposal.FinalizeTxID,
	}
}

func pledgeToWire(pledge *models.BridgePledge) PledgeResponse {
	return PledgeResponse{
		PledgeID:               pledge.PledgeID,
		Owner:                  pledge.Owner,
		ExternalDepositAddress: pledge.ExternalDepositAddress,
		Amount:                 ledger.Amount(pledge.Amount).String(),
		Confirmations:          pledge.Confirmations,
		Status:                 pledge.Status,
		ExternalTxRef:          pledge.ExternalTxRef,
		MintTxID:               pledge.MintTxID,
		ExpiresAt:              pledge.ExpiresAt.Format(time.RFC3339Nano),
	}
}

func withdrawalToWire(
	withdrawal *models.BridgeWithdrawal,
) WithdrawalResponse {
	return WithdrawalResponse{
		RequestID:           withdrawal.RequestID,
		Owner:               withdrawal.Owner,
		Amount:              ledger.Amount(withdrawal.Amount).String(),
		ExternalDestination: withdrawal.ExternalDestination,
		Status:              withdrawal.Status,
		BurnTxID:            withdrawal.BurnTxID,
		ReleaseTxID:         withdrawal.ReleaseTxID,
		ExternalReleaseRef:  withdrawal.ExternalReleaseRef,
	}
}
