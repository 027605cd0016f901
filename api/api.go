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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/blinklabs-io/thorn/bridge"
	"github.com/blinklabs-io/thorn/governance"
	"github.com/blinklabs-io/thorn/ledger"
	"github.com/blinklabs-io/thorn/txengine"
)

type ApiConfig struct {
	ListenAddress string
	Ledger        *ledger.Store
	TxEngine      *txengine.Engine
	Governance    *governance.Governance
	Bridge        *bridge.Bridge
	// WatcherToken guards the watcher-only endpoints (pledge confirm);
	// OperatorToken guards the operator-only endpoints (withdrawal
	// approve/settle/reject, proposal finalize). An empty token leaves
	// the endpoints open, for local development.
	WatcherToken  string
	OperatorToken string
}

// Api is the REST server exposing the ledger, governance, and bridge
// operations to feature collaborators.
type Api struct {
	config     ApiConfig
	logger     *slog.Logger
	httpServer *http.Server
	mu         sync.Mutex
}

func New(
	cfg ApiConfig,
	logger *slog.Logger,
) *Api {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "api")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":3000"
	}
	return &Api{
		config: cfg,
		logger: logger,
	}
}

// Handler builds the route table. Exposed so tests can drive the API
// without binding a listener.
func (a *Api) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", a.handleRoot)
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("POST /api/v1/tx", a.handleSubmitTx)
	mux.HandleFunc("GET /api/v1/tx/{tx_id}", a.handleGetTx)
	mux.HandleFunc(
		"GET /api/v1/balance/{account}",
		a.handleBalance,
	)
	mux.HandleFunc(
		"GET /api/v1/history/{account}",
		a.handleHistory,
	)
	mux.HandleFunc(
		"GET /api/v1/snapshot",
		a.handleSnapshot,
	)
	mux.HandleFunc(
		"POST /api/v1/governance/proposal",
		a.handleCreateProposal,
	)
	mux.HandleFunc(
		"GET /api/v1/governance/proposal/{proposal_id}",
		a.handleGetProposal,
	)
	mux.HandleFunc(
		"GET /api/v1/governance/proposals",
		a.handleGetProposals,
	)
	mux.HandleFunc(
		"GET /api/v1/governance/proposal/{proposal_id}/votes",
		a.handleGetVotes,
	)
	mux.HandleFunc(
		"POST /api/v1/governance/proposal/{proposal_id}/vote",
		a.handleVote,
	)
	mux.HandleFunc(
		"POST /api/v1/governance/proposal/{proposal_id}/finalize",
		a.requireToken(a.config.OperatorToken, a.handleFinalize),
	)
	mux.HandleFunc(
		"POST /api/v1/bridge/pledge",
		a.handleCreatePledge,
	)
	mux.HandleFunc(
		"GET /api/v1/bridge/pledge/{pledge_id}",
		a.handleGetPledge,
	)
	mux.HandleFunc(
		"POST /api/v1/bridge/pledge/{pledge_id}/confirm",
		a.requireToken(a.config.WatcherToken, a.handleConfirmPledge),
	)
	mux.HandleFunc(
		"POST /api/v1/bridge/withdraw",
		a.handleWithdrawRequest,
	)
	mux.HandleFunc(
		"GET /api/v1/bridge/withdraw/{request_id}",
		a.handleGetWithdrawal,
	)
	mux.HandleFunc(
		"POST /api/v1/bridge/withdraw/{request_id}/approve",
		a.requireToken(a.config.OperatorToken, a.handleApproveWithdrawal),
	)
	mux.HandleFunc(
		"POST /api/v1/bridge/withdraw/{request_id}/settle",
		a.requireToken(a.config.OperatorToken, a.handleSettleWithdrawal),
	)
	mux.HandleFunc(
		"POST /api/v1/bridge/withdraw/{request_id}/reject",
		a.requireToken(a.config.OperatorToken, a.handleRejectWithdrawal),
	)
	return mux
}

// Start starts the HTTP server in a background goroutine.
func (a *Api) Start(
	ctx context.Context,
) error {
	a.mu.Lock()
	if a.httpServer != nil {
		a.mu.Unlock()
		return errors.New("server already started")
	}

	server := &http.Server{
		Addr:              a.config.ListenAddress,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 60 * time.Second,
	}
	a.httpServer = server
	a.mu.Unlock()

	// Start the server with deterministic error detection
	if err := a.startServer(server); err != nil {
		a.mu.Lock()
		a.httpServer = nil
		a.mu.Unlock()
		return err
	}

	a.logger.Info(
		"API listener started on " + a.config.ListenAddress,
	)

	// Monitor context for cancellation
	go func() {
		<-ctx.Done()
		a.mu.Lock()
		srv := a.httpServer
		a.httpServer = nil
		a.mu.Unlock()

		if srv != nil {
			a.logger.Debug(
				"context cancelled, shutting down API server",
			)
			//nolint:contextcheck
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				30*time.Second,
			)
			defer cancel()
			//nolint:contextcheck
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error(
					"failed to shutdown API server on context cancellation",
					"error", err,
				)
			}
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (a *Api) Stop(
	ctx context.Context,
) error {
	a.mu.Lock()
	srv := a.httpServer
	a.httpServer = nil
	a.mu.Unlock()

	if srv != nil {
		a.logger.Debug("shutting down API server")
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf(
				"failed to shutdown API server: %w",
				err,
			)
		}
	}
	return nil
}

// startServer starts the HTTP server with deterministic error detection.
// It binds the listening socket first so port conflicts are detected
// immediately, then serves in a background goroutine.
func (a *Api) startServer(
	server *http.Server,
) error {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf(
			"failed to listen for API server: %w",
			err,
		)
	}
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(
				"API server error",
				"error", err,
			)
		}
	}()
	return nil
}

// authorized reports whether the request carries the expected bearer
// token. An empty configured token disables the check.
func (a *Api) authorized(r *http.Request, token string) bool {
	if token == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+token
}

// requireToken wraps a handler with a bearer-token check
func (a *Api) requireToken(
	token string,
	next http.HandlerFunc,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.authorized(r, token) {
			writeError(
				w,
				http.StatusUnauthorized,
				"unauthorized",
				"missing or invalid bearer token",
			)
			return
		}
		next(w, r)
	}
}
