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

package replica

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/blinklabs-io/thorn/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	DefaultSyncInterval = 10 * time.Second
	defaultHTTPTimeout  = 30 * time.Second
)

type SyncerConfig struct {
	// MasterURL is the base URL of the master node's API listener
	MasterURL    string
	Ledger       *ledger.Store
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	SyncInterval time.Duration
	HTTPClient   *http.Client
}

// Syncer keeps a replica's ledger store refreshed by periodically pulling
// consistent snapshots from the master node. Only the log entries past the
// replica's last applied sequence number travel on each pull.
type Syncer struct {
	config   SyncerConfig
	ledger   *ledger.Store
	logger   *slog.Logger
	client   *http.Client
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	metrics  struct {
		syncs     prometheus.Counter
		syncFails prometheus.Counter
		seq       prometheus.Gauge
	}
}

func NewSyncer(cfg SyncerConfig) (*Syncer, error) {
	if cfg.MasterURL == "" {
		return nil, fmt.Errorf("no master URL provided")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("no ledger store provided")
	}
	if cfg.Ledger.Role() != ledger.RoleReplica {
		return nil, ledger.ErrNotReplica
	}
	s := &Syncer{
		config: cfg,
		ledger: cfg.Ledger,
		logger: cfg.Logger,
		client: cfg.HTTPClient,
		stopCh: make(chan struct{}),
	}
	if s.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if s.config.SyncInterval <= 0 {
		s.config.SyncInterval = DefaultSyncInterval
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	promautoFactory := promauto.With(cfg.PromRegistry)
	s.metrics.syncs = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "thorn_replica_syncs_total",
			Help: "total successful snapshot pulls from the master",
		},
	)
	s.metrics.syncFails = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "thorn_replica_sync_failures_total",
			Help: "total failed snapshot pulls from the master",
		},
	)
	s.metrics.seq = promautoFactory.NewGauge(
		prometheus.GaugeOpts{
			Name: "thorn_replica_seq",
			Help: "last ledger sequence number applied from the master",
		},
	)
	return s, nil
}

// Start launches the background sync loop. An initial sync runs
// immediately so a fresh replica serves data without waiting a full
// interval.
func (s *Syncer) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Sync(ctx); err != nil {
			s.logger.Error(
				"initial replica sync failed",
				"component", "replica",
				"error", err,
			)
		}
		ticker := time.NewTicker(s.config.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Sync(ctx); err != nil {
					s.logger.Error(
						"replica sync failed",
						"component", "replica",
						"error", err,
					)
				}
			}
		}
	}()
}

// Stop shuts down the sync loop and waits for it to exit
func (s *Syncer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

// Sync pulls one snapshot from the master and loads it into the local
// store
func (s *Syncer) Sync(ctx context.Context) error {
	sinceSeq, err := s.ledger.CurrentSeq()
	if err != nil {
		s.metrics.syncFails.Inc()
		return err
	}
	snap, err := s.fetchSnapshot(ctx, sinceSeq)
	if err != nil {
		s.metrics.syncFails.Inc()
		return err
	}
	if err := s.ledger.LoadSnapshot(snap); err != nil {
		s.metrics.syncFails.Inc()
		return err
	}
	s.metrics.syncs.Inc()
	s.metrics.seq.Set(float64(snap.Seq))
	if len(snap.Transactions) > 0 {
		s.logger.Info(
			"synced from master",
			"component", "replica",
			"seq", snap.Seq,
			"transactions", len(snap.Transactions),
		)
	}
	return nil
}

func (s *Syncer) fetchSnapshot(
	ctx context.Context,
	sinceSeq uint64,
) (*ledger.Snapshot, error) {
	url := s.config.MasterURL + "/api/v1/snapshot?since_seq=" +
		strconv.FormatUint(sinceSeq, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"unexpected snapshot response status: %d",
			resp.StatusCode,
		)
	}
	var snap ledger.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}
