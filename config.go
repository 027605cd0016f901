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

package thorn

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/thorn/governance"
	"github.com/blinklabs-io/thorn/ledger"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	promRegistry          prometheus.Registerer
	logger                *slog.Logger
	dataDir               string
	role                  ledger.Role
	apiListenAddress      string
	masterURL             string
	syncInterval          time.Duration
	operators             []ledger.Address
	minOperatorVotes      int
	voterBurn             ledger.Amount
	operatorBurn          ledger.Amount
	weightPolicy          governance.WeightPolicy
	voteAuthorizer        governance.VoteAuthorizer
	confirmationThreshold uint
	pledgeTTL             time.Duration
	watcherToken          string
	operatorToken         string
	tracing               bool
	tracingStdout         bool
	shutdownTimeout       time.Duration
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new thorn config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		role:   ledger.RoleMaster,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c *Config) validate() error {
	if c.role != ledger.RoleMaster && c.role != ledger.RoleReplica {
		return errors.New("invalid node role")
	}
	if c.role == ledger.RoleReplica && c.masterURL == "" {
		return errors.New("replica role requires a master URL")
	}
	return nil
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithRole specifies the node role. Masters accept transaction
// submissions; replicas are read-only and refresh from a master. The
// default is master
func WithRole(role ledger.Role) ConfigOptionFunc {
	return func(c *Config) {
		c.role = role
	}
}

// WithApiListenAddress specifies the listen address for the REST API
// server. The default is ":3000"
func WithApiListenAddress(addr string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = addr
	}
}

// WithMasterURL specifies the base URL of the master node's API. Required
// for the replica role
func WithMasterURL(url string) ConfigOptionFunc {
	return func(c *Config) {
		c.masterURL = url
	}
}

// WithSyncInterval specifies how often a replica pulls a snapshot from the
// master. The default is 10 seconds
func WithSyncInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.syncInterval = interval
	}
}

// WithOperators specifies the designated operator addresses for
// governance quorum and bridge administration
func WithOperators(operators ...ledger.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.operators = append(c.operators, operators...)
	}
}

// WithMinOperatorVotes specifies the operator vote count required for
// proposal quorum. The default is 3
func WithMinOperatorVotes(votes int) ConfigOptionFunc {
	return func(c *Config) {
		c.minOperatorVotes = votes
	}
}

// WithVoteBurns specifies the stake burn amounts for ordinary voters and
// operators. Defaults are 0.05 THR and 0.5 THR
func WithVoteBurns(voterBurn, operatorBurn ledger.Amount) ConfigOptionFunc {
	return func(c *Config) {
		c.voterBurn = voterBurn
		c.operatorBurn = operatorBurn
	}
}

// WithWeightPolicy specifies how votes are weighed at finalization. The
// default weighs by burned amount
func WithWeightPolicy(policy governance.WeightPolicy) ConfigOptionFunc {
	return func(c *Config) {
		c.weightPolicy = policy
	}
}

// WithVoteAuthorizer specifies an external authorization check consulted
// before each vote. The default accepts all voters
func WithVoteAuthorizer(authorizer governance.VoteAuthorizer) ConfigOptionFunc {
	return func(c *Config) {
		c.voteAuthorizer = authorizer
	}
}

// WithConfirmationThreshold specifies the external confirmation count
// required before a bridge pledge mints. The default is 3
func WithConfirmationThreshold(threshold uint) ConfigOptionFunc {
	return func(c *Config) {
		c.confirmationThreshold = threshold
	}
}

// WithPledgeTTL specifies how long a pledge may stay PENDING before
// expiring. The default is 24 hours
func WithPledgeTTL(ttl time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.pledgeTTL = ttl
	}
}

// WithWatcherToken specifies the bearer token required on watcher-only
// API endpoints. An empty token leaves them open
func WithWatcherToken(token string) ConfigOptionFunc {
	return func(c *Config) {
		c.watcherToken = token
	}
}

// WithOperatorToken specifies the bearer token required on operator-only
// API endpoints. An empty token leaves them open
func WithOperatorToken(token string) ConfigOptionFunc {
	return func(c *Config) {
		c.operatorToken = token
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
