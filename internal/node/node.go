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

package node

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blinklabs-io/thorn"
	"github.com/blinklabs-io/thorn/governance"
	"github.com/blinklabs-io/thorn/internal/config"
	"github.com/blinklabs-io/thorn/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")

	// Parse shutdown timeout
	shutdownTimeout := 30 * time.Second // Default timeout
	if cfg.ShutdownTimeout != "" {
		var err error
		shutdownTimeout, err = time.ParseDuration(cfg.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("invalid shutdown timeout: %w", err)
		}
	}
	syncInterval := time.Duration(0)
	if cfg.SyncInterval != "" {
		var err error
		syncInterval, err = time.ParseDuration(cfg.SyncInterval)
		if err != nil {
			return fmt.Errorf("invalid sync interval: %w", err)
		}
	}
	pledgeTTL := time.Duration(0)
	if cfg.PledgeTTL != "" {
		var err error
		pledgeTTL, err = time.ParseDuration(cfg.PledgeTTL)
		if err != nil {
			return fmt.Errorf("invalid pledge TTL: %w", err)
		}
	}
	voterBurn := ledger.Amount(0)
	if cfg.VoterBurn != "" {
		var err error
		voterBurn, err = ledger.ParseAmount(cfg.VoterBurn)
		if err != nil {
			return fmt.Errorf("invalid voter burn: %w", err)
		}
	}
	operatorBurn := ledger.Amount(0)
	if cfg.OperatorBurn != "" {
		var err error
		operatorBurn, err = ledger.ParseAmount(cfg.OperatorBurn)
		if err != nil {
			return fmt.Errorf("invalid operator burn: %w", err)
		}
	}
	operators := make([]ledger.Address, 0, len(cfg.Operators))
	for _, operator := range cfg.Operators {
		addr := ledger.Address(operator)
		if err := ledger.ValidateAddress(addr); err != nil {
			return fmt.Errorf("invalid operator address: %w", err)
		}
		operators = append(operators, addr)
	}
	role := ledger.RoleMaster
	if cfg.Role == config.RoleReplica {
		role = ledger.RoleReplica
	}

	n, err := thorn.New(
		thorn.NewConfig(
			thorn.WithLogger(logger),
			thorn.WithDatabasePath(cfg.DatabasePath),
			thorn.WithRole(role),
			thorn.WithApiListenAddress(
				fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.ApiPort),
			),
			thorn.WithMasterURL(cfg.MasterURL),
			thorn.WithSyncInterval(syncInterval),
			thorn.WithOperators(operators...),
			thorn.WithMinOperatorVotes(cfg.MinOperatorVotes),
			thorn.WithVoteBurns(voterBurn, operatorBurn),
			thorn.WithWeightPolicy(
				governance.WeightPolicy(cfg.WeightPolicy),
			),
			thorn.WithConfirmationThreshold(cfg.ConfirmationThreshold),
			thorn.WithPledgeTTL(pledgeTTL),
			thorn.WithWatcherToken(cfg.WatcherToken),
			thorn.WithOperatorToken(cfg.OperatorToken),
			thorn.WithTracing(cfg.Tracing),
			thorn.WithTracingStdout(cfg.TracingStdout),
			thorn.WithShutdownTimeout(shutdownTimeout),
			// Enable metrics with default prometheus registry
			thorn.WithPrometheusRegistry(prometheus.DefaultRegisterer),
		),
	)
	if err != nil {
		return err
	}
	// Metrics and debug listener
	http.Handle("/metrics", promhttp.Handler())
	logger.Info(
		"serving prometheus metrics on "+fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		"component",
		"node",
	)
	metricsServer := &http.Server{
		Addr: fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error(
				fmt.Sprintf("failed to start metrics listener: %s", err),
				"component", "node",
			)
			os.Exit(1)
		}
	}()
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run node in goroutine
	errChan := make(chan error, 1)
	go func() {
		err := n.Run()
		select {
		case errChan <- err:
		case <-signalCtx.Done():
		}
	}()

	// Wait for signal or error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")

		// Shutdown metrics server
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}

		// Shutdown node
		if err := n.Stop(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
			return err
		}
		logger.Info("shutdown complete")
		return nil

	case err := <-errChan:
		// Node exited on its own
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error(
				"metrics server shutdown error",
				"error", shutdownErr,
			)
		}
		if stopErr := n.Stop(); stopErr != nil {
			logger.Error("shutdown errors occurred", "error", stopErr)
		}
		return err
	}
}
