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

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/thorn/database"
	"github.com/blinklabs-io/thorn/database/models"
	"github.com/blinklabs-io/thorn/event"
	"github.com/blinklabs-io/thorn/ledger"
	"github.com/blinklabs-io/thorn/txengine"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	DefaultConfirmationThreshold uint          = 3
	DefaultPledgeTTL             time.Duration = 24 * time.Hour
	DefaultExpiryInterval        time.Duration = 1 * time.Minute
)

type BridgeConfig struct {
	Database              *database.Database
	TxEngine              *txengine.Engine
	EventBus              *event.EventBus
	Logger                *slog.Logger
	PromRegistry          prometheus.Registerer
	ConfirmationThreshold uint
	PledgeTTL             time.Duration
	ExpiryInterval        time.Duration
}

// Bridge drives the pledge and withdrawal lifecycles that connect the
// local ledger to an external chain. Solvency rule: wrapped funds are
// minted only after the external deposit is sufficiently confirmed, and
// local funds are burned before any external release is attempted.
type Bridge struct {
	config   BridgeConfig
	db       *database.Database
	engine   *txengine.Engine
	eventBus *event.EventBus
	logger   *slog.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	metrics  struct {
		pledges       *prometheus.CounterVec
		withdrawals   *prometheus.CounterVec
		confirmations prometheus.Counter
	}
	mutex sync.Mutex
}

func NewBridge(cfg BridgeConfig) *Bridge {
	b := &Bridge{
		config:   cfg,
		db:       cfg.Database,
		engine:   cfg.TxEngine,
		eventBus: cfg.EventBus,
		logger:   cfg.Logger,
		stopCh:   make(chan struct{}),
	}
	if b.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		b.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if b.config.ConfirmationThreshold == 0 {
		b.config.ConfirmationThreshold = DefaultConfirmationThreshold
	}
	if b.config.PledgeTTL <= 0 {
		b.config.PledgeTTL = DefaultPledgeTTL
	}
	if b.config.ExpiryInterval <= 0 {
		b.config.ExpiryInterval = DefaultExpiryInterval
	}
	promautoFactory := promauto.With(cfg.PromRegistry)
	b.metrics.pledges = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thorn_bridge_pledges_total",
			Help: "total pledge state transitions by status",
		},
		[]string{"status"},
	)
	b.metrics.withdrawals = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thorn_bridge_withdrawals_total",
			Help: "total withdrawal state transitions by status",
		},
		[]string{"status"},
	)
	b.metrics.confirmations = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "thorn_bridge_confirmations_total",
			Help: "total external deposit confirmations recorded",
		},
	)
	// Audit trail for applied bridge transactions
	if b.eventBus != nil {
		b.eventBus.SubscribeFunc(
			ledger.TransactionEventType(ledger.TxKindBridgeMint),
			b.handleBridgeTxEvent,
		)
		b.eventBus.SubscribeFunc(
			ledger.TransactionEventType(ledger.TxKindBridgeRelease),
			b.handleBridgeTxEvent,
		)
	}
	return b
}

func (b *Bridge) handleBridgeTxEvent(evt event.Event) {
	txEvent, ok := evt.Data.(ledger.TransactionEvent)
	if !ok {
		return
	}
	switch md := txEvent.Transaction.Metadata.(type) {
	case ledger.BridgeMintMetadata:
		b.logger.Info(
			"minted wrapped funds for confirmed deposit",
			"component", "bridge",
			"pledge_id", md.PledgeID,
			"external_tx_ref", md.ExternalTxRef,
			"tx_id", txEvent.Transaction.TxID,
			"amount", txEvent.Transaction.Amount.String(),
		)
	case ledger.BridgeReleaseMetadata:
		b.logger.Info(
			"released withdrawal",
			"component", "bridge",
			"request_id", md.RequestID,
			"compensation", md.Compensation,
			"tx_id", txEvent.Transaction.TxID,
		)
	}
}

// Start launches the pledge expiry worker
func (b *Bridge) Start() {
	b.wg.Add(1)
	go b.expiryWorker()
}

// Stop shuts down the expiry worker and waits for it to exit
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	b.wg.Wait()
}

// CreatePledge registers a claim against an expected external-chain
// deposit. The pledge is recorded on the ledger as an audit transaction
// but no funds move until the deposit is confirmed.
func (b *Bridge) CreatePledge(
	ctx context.Context,
	owner ledger.Address,
	externalDepositAddress string,
	amount ledger.Amount,
) (*models.BridgePledge, error) {
	if err := ledger.ValidateAddress(owner); err != nil {
		return nil, err
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	now := time.Now()
	pledge := &models.BridgePledge{
		PledgeID:               uuid.NewString(),
		Owner:                  string(owner),
		ExternalDepositAddress: externalDepositAddress,
		Amount:                 int64(amount),
		Status:                 models.PledgeStatusPending,
		CreatedAt:              now,
		ExpiresAt:              now.Add(b.config.PledgeTTL),
	}
	_, err := b.engine.Submit(ctx, txengine.Request{
		Kind:   ledger.TxKindBridgePledgeCreate,
		Amount: amount,
		Metadata: ledger.PledgeCreateMetadata{
			PledgeID:               pledge.PledgeID,
			ExternalDepositAddress: externalDepositAddress,
		},
		StateUpdate: func(t *database.Txn) error {
			return b.db.Metadata().AddBridgePledge(pledge, t.Metadata())
		},
	})
	if err != nil {
		return nil, err
	}
	b.metrics.pledges.WithLabelValues(models.PledgeStatusPending).Inc()
	b.logger.Info(
		"created pledge",
		"component", "bridge",
		"pledge_id", pledge.PledgeID,
		"owner", owner,
		"amount", amount.String(),
	)
	return pledge, nil
}

// GetPledge returns a pledge by id
func (b *Bridge) GetPledge(pledgeID string) (*models.BridgePledge, error) {
	return b.db.Metadata().GetBridgePledge(pledgeID, nil)
}

// GetPledgesByStatus returns pledges in the given status
func (b *Bridge) GetPledgesByStatus(
	status string,
) ([]models.BridgePledge, error) {
	return b.db.Metadata().GetBridgePledgesByStatus(status, nil)
}

// ConfirmPledge records a watcher-reported deposit observation carrying
// the external transaction reference and its confirmation count. Below the
// threshold the pledge stays PENDING and a ConfirmationPendingError is
// returned so the watcher knows to keep reporting. At the threshold the
// pledge moves to CONFIRMED, the wrapped funds are minted to the owner
// exactly once, and the pledge completes. A CONFIRMED pledge whose mint
// did not apply (crash between the two steps) retries the mint on the
// next report.
func (b *Bridge) ConfirmPledge(
	ctx context.Context,
	pledgeID string,
	externalTxRef string,
	confirmations uint,
) (*models.BridgePledge, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	pledge, err := b.db.Metadata().GetBridgePledge(pledgeID, nil)
	if err != nil {
		return nil, err
	}
	switch pledge.Status {
	case models.PledgeStatusPending, models.PledgeStatusConfirmed:
		// proceed
	case models.PledgeStatusExpired:
		return nil, &PledgeExpiredError{PledgeID: pledgeID}
	default:
		return nil, &ledger.InvalidStateTransitionError{
			Entity: "pledge",
			ID:     pledgeID,
			Status: pledge.Status,
			Action: "confirm",
		}
	}
	if pledge.Status == models.PledgeStatusPending &&
		time.Now().After(pledge.ExpiresAt) {
		// Expiry worker hasn't caught it yet; treat as expired anyway
		return nil, &PledgeExpiredError{PledgeID: pledgeID}
	}
	// Confirmation counts only move forward
	if confirmations > pledge.Confirmations {
		pledge.Confirmations = confirmations
	}
	pledge.ExternalTxRef = externalTxRef
	b.metrics.confirmations.Inc()
	if pledge.Confirmations < b.config.ConfirmationThreshold {
		if err := b.db.Metadata().UpdateBridgePledge(pledge, nil); err != nil {
			return nil, err
		}
		b.logger.Debug(
			"recorded pledge confirmation",
			"component", "bridge",
			"pledge_id", pledgeID,
			"confirmations", pledge.Confirmations,
		)
		return pledge, &ConfirmationPendingError{
			PledgeID:      pledgeID,
			Confirmations: pledge.Confirmations,
			Threshold:     b.config.ConfirmationThreshold,
		}
	}
	if pledge.Status == models.PledgeStatusPending {
		pledge.Status = models.PledgeStatusConfirmed
		if err := b.db.Metadata().UpdateBridgePledge(pledge, nil); err != nil {
			return nil, err
		}
		b.metrics.pledges.WithLabelValues(models.PledgeStatusConfirmed).Inc()
	}
	// Mint wrapped funds and complete the pledge in a single database
	// transaction. MintTxID set exactly once.
	txID := uuid.NewString()
	_, err = b.engine.Submit(ctx, txengine.Request{
		Kind:   ledger.TxKindBridgeMint,
		TxID:   txID,
		To:     ledger.Address(pledge.Owner),
		Amount: ledger.Amount(pledge.Amount),
		Metadata: ledger.BridgeMintMetadata{
			PledgeID:      pledgeID,
			ExternalTxRef: externalTxRef,
			Confirmations: pledge.Confirmations,
		},
		StateUpdate: func(t *database.Txn) error {
			pledge.Status = models.PledgeStatusCompleted
			pledge.MintTxID = txID
			return b.db.Metadata().UpdateBridgePledge(pledge, t.Metadata())
		},
	})
	if err != nil {
		return nil, err
	}
	b.metrics.pledges.WithLabelValues(models.PledgeStatusCompleted).Inc()
	b.logger.Info(
		"completed pledge",
		"component", "bridge",
		"pledge_id", pledgeID,
		"mint_tx_id", txID,
		"confirmations", pledge.Confirmations,
	)
	return pledge, nil
}

// RequestWithdrawal burns the owner's funds and records a REQUESTED
// withdrawal in the same database transaction. The burn happening first
// means the custodied supply can never be released twice.
func (b *Bridge) RequestWithdrawal(
	ctx context.Context,
	owner ledger.Address,
	amount ledger.Amount,
	externalDestination string,
) (*models.BridgeWithdrawal, error) {
	if err := ledger.ValidateAddress(owner); err != nil {
		return nil, err
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	txID := uuid.NewString()
	withdrawal := &models.BridgeWithdrawal{
		RequestID:           uuid.NewString(),
		Owner:               string(owner),
		Amount:              int64(amount),
		ExternalDestination: externalDestination,
		Status:              models.WithdrawalStatusRequested,
		BurnTxID:            txID,
	}
	_, err := b.engine.Submit(ctx, txengine.Request{
		Kind:   ledger.TxKindBridgeWithdrawRequest,
		TxID:   txID,
		From:   owner,
		Amount: amount,
		Metadata: ledger.WithdrawRequestMetadata{
			RequestID:           withdrawal.RequestID,
			ExternalDestination: externalDestination,
		},
		StateUpdate: func(t *database.Txn) error {
			return b.db.Metadata().AddBridgeWithdrawal(withdrawal, t.Metadata())
		},
	})
	if err != nil {
		return nil, err
	}
	b.metrics.withdrawals.WithLabelValues(models.WithdrawalStatusRequested).
		Inc()
	b.logger.Info(
		"requested withdrawal",
		"component", "bridge",
		"request_id", withdrawal.RequestID,
		"owner", owner,
		"amount", amount.String(),
	)
	return withdrawal, nil
}

// GetWithdrawal returns a withdrawal request by id
func (b *Bridge) GetWithdrawal(
	requestID string,
) (*models.BridgeWithdrawal, error) {
	return b.db.Metadata().GetBridgeWithdrawal(requestID, nil)
}

// GetWithdrawalsByStatus returns withdrawal requests in the given status
func (b *Bridge) GetWithdrawalsByStatus(
	status string,
) ([]models.BridgeWithdrawal, error) {
	return b.db.Metadata().GetBridgeWithdrawalsByStatus(status, nil)
}

// ApproveWithdrawal moves a REQUESTED withdrawal to APPROVED, clearing it
// for external release
func (b *Bridge) ApproveWithdrawal(
	ctx context.Context,
	requestID string,
) (*models.BridgeWithdrawal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	withdrawal, err := b.db.Metadata().GetBridgeWithdrawal(requestID, nil)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status != models.WithdrawalStatusRequested {
		return nil, &ledger.InvalidStateTransitionError{
			Entity: "withdrawal",
			ID:     requestID,
			Status: withdrawal.Status,
			Action: "approve",
		}
	}
	withdrawal.Status = models.WithdrawalStatusApproved
	if err := b.db.Metadata().UpdateBridgeWithdrawal(withdrawal, nil); err != nil {
		return nil, err
	}
	b.metrics.withdrawals.WithLabelValues(models.WithdrawalStatusApproved).
		Inc()
	b.logger.Info(
		"approved withdrawal",
		"component", "bridge",
		"request_id", requestID,
	)
	return withdrawal, nil
}

// SettleWithdrawal records the external release of an APPROVED withdrawal.
// A record-only ledger transaction preserves the audit trail; the funds
// already left the local supply at request time.
func (b *Bridge) SettleWithdrawal(
	ctx context.Context,
	requestID string,
	externalReleaseRef string,
) (*models.BridgeWithdrawal, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	withdrawal, err := b.db.Metadata().GetBridgeWithdrawal(requestID, nil)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status != models.WithdrawalStatusApproved {
		return nil, &ledger.InvalidStateTransitionError{
			Entity: "withdrawal",
			ID:     requestID,
			Status: withdrawal.Status,
			Action: "settle",
		}
	}
	txID := uuid.NewString()
	_, err = b.engine.Submit(ctx, txengine.Request{
		Kind: ledger.TxKindBridgeRelease,
		TxID: txID,
		Metadata: ledger.BridgeReleaseMetadata{
			RequestID:          requestID,
			ExternalReleaseRef: externalReleaseRef,
		},
		StateUpdate: func(t *database.Txn) error {
			withdrawal.Status = models.WithdrawalStatusSettled
			withdrawal.ReleaseTxID = txID
			withdrawal.ExternalReleaseRef = externalReleaseRef
			return b.db.Metadata().
				UpdateBridgeWithdrawal(withdrawal, t.Metadata())
		},
	})
	if err != nil {
		return nil, err
	}
	b.metrics.withdrawals.WithLabelValues(models.WithdrawalStatusSettled).
		Inc()
	b.logger.Info(
		"settled withdrawal",
		"component", "bridge",
		"request_id", requestID,
		"external_release_ref", externalReleaseRef,
	)
	return withdrawal, nil
}

// RejectWithdrawal rejects a withdrawal before external release and
// returns the burned funds to the owner via a compensating mint under a
// fresh transaction id. Allowed from REQUESTED or APPROVED; once settled
// the funds are gone externally and rejection is impossible.
func (b *Bridge) RejectWithdrawal(
	ctx context.Context,
	requestID string,
) (*models.BridgeWithdrawal, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	withdrawal, err := b.db.Metadata().GetBridgeWithdrawal(requestID, nil)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status != models.WithdrawalStatusRequested &&
		withdrawal.Status != models.WithdrawalStatusApproved {
		return nil, &ledger.InvalidStateTransitionError{
			Entity: "withdrawal",
			ID:     requestID,
			Status: withdrawal.Status,
			Action: "reject",
		}
	}
	txID := uuid.NewString()
	_, err = b.engine.Submit(ctx, txengine.Request{
		Kind:   ledger.TxKindBridgeRelease,
		TxID:   txID,
		To:     ledger.Address(withdrawal.Owner),
		Amount: ledger.Amount(withdrawal.Amount),
		Metadata: ledger.BridgeReleaseMetadata{
			RequestID:    requestID,
			Compensation: true,
		},
		StateUpdate: func(t *database.Txn) error {
			withdrawal.Status = models.WithdrawalStatusRejected
			withdrawal.ReleaseTxID = txID
			return b.db.Metadata().
				UpdateBridgeWithdrawal(withdrawal, t.Metadata())
		},
	})
	if err != nil {
		return nil, err
	}
	b.metrics.withdrawals.WithLabelValues(models.WithdrawalStatusRejected).
		Inc()
	b.logger.Info(
		"rejected withdrawal",
		"component", "bridge",
		"request_id", requestID,
		"compensation_tx_id", txID,
	)
	return withdrawal, nil
}

func (b *Bridge) expiryWorker() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.config.ExpiryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			if err := b.expirePledges(); err != nil {
				b.logger.Error(
					"failed to expire pledges",
					"component", "bridge",
					"error", err,
				)
			}
		}
	}
}

// expirePledges moves PENDING pledges past their deadline to EXPIRED. No
// funds ever moved for these, so expiry is a pure state change.
func (b *Bridge) expirePledges() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	pledges, err := b.db.Metadata().
		GetBridgePledgesByStatus(models.PledgeStatusPending, nil)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, pledge := range pledges {
		if now.Before(pledge.ExpiresAt) {
			continue
		}
		pledge.Status = models.PledgeStatusExpired
		if err := b.db.Metadata().UpdateBridgePledge(&pledge, nil); err != nil {
			return err
		}
		b.metrics.pledges.WithLabelValues(models.PledgeStatusExpired).Inc()
		b.logger.Info(
			"expired pledge",
			"component", "bridge",
			"pledge_id", pledge.PledgeID,
		)
	}
	return nil
}
