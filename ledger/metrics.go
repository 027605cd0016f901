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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type storeMetrics struct {
	txsApplied  *prometheus.CounterVec
	txsReplayed prometheus.Counter
	txsRejected *prometheus.CounterVec
}

func (s *Store) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	s.metrics.txsApplied = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thorn_ledger_txs_applied_total",
			Help: "total transactions applied by kind",
		},
		[]string{"kind"},
	)
	s.metrics.txsReplayed = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "thorn_ledger_txs_replayed_total",
			Help: "total duplicate transaction submissions resolved by idempotent replay",
		},
	)
	s.metrics.txsRejected = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thorn_ledger_txs_rejected_total",
			Help: "total transactions rejected by reason",
		},
		[]string{"reason"},
	)
}
