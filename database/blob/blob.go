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

package blob

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

const (
	gcInterval      = 5 * time.Minute
	gcDiscardRatio  = 0.5
	logKeyPrefix    = "log/"
	snapshotKeyName = "snapshot"
)

// ErrKeyNotFound is returned by read operations when a key is missing
var ErrKeyNotFound = errors.New("blob key not found")

// BlobStore is a badger-backed store for the append-only transaction log.
// Each applied transaction is written as a JSON record keyed by its
// sequence number, giving an ordered, replayable audit log independent of
// the relational metadata.
type BlobStore struct {
	db       *badger.DB
	logger   *slog.Logger
	dataDir  string
	stopCh   chan struct{}
	stopOnce sync.Once
	gcWg     sync.WaitGroup
}

// New creates a badger blob store under dataDir. An empty dataDir selects
// an in-memory store, useful for testing.
func New(
	dataDir string,
	logger *slog.Logger,
) (*BlobStore, error) {
	var opts badger.Options
	if dataDir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		blobDir := filepath.Join(dataDir, "blob")
		opts = badger.DefaultOptions(blobDir)
	}
	// Badger's own logger is noisy at INFO, so discard it
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}
	b := &BlobStore{
		db:      db,
		logger:  logger,
		dataDir: dataDir,
		stopCh:  make(chan struct{}),
	}
	if dataDir != "" {
		b.gcWg.Add(1)
		go b.runGC()
	}
	return b, nil
}

// runGC periodically runs badger value log garbage collection
func (b *BlobStore) runGC() {
	defer b.gcWg.Done()
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			err := b.db.RunValueLogGC(gcDiscardRatio)
			if err != nil &&
				!errors.Is(err, badger.ErrNoRewrite) &&
				b.logger != nil {
				b.logger.Warn(
					"blob store garbage collection failed",
					"component", "database",
					"error", err,
				)
			}
		}
	}
}

// NewTransaction starts a new badger transaction
func (b *BlobStore) NewTransaction(readWrite bool) *badger.Txn {
	return b.db.NewTransaction(readWrite)
}

// LogKey returns the blob key for the transaction log record at the given
// sequence number. Keys are zero-padded so lexical order matches sequence
// order during iteration.
func LogKey(seq uint64) []byte {
	if seq > math.MaxUint64-1 {
		seq = math.MaxUint64 - 1
	}
	return fmt.Appendf(nil, "%s%020d", logKeyPrefix, seq)
}

// Get reads the value for a key within the given transaction
func (b *BlobStore) Get(key []byte, txn *badger.Txn) ([]byte, error) {
	if txn == nil {
		txn = b.db.NewTransaction(false)
		defer txn.Discard()
	}
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Close stops background tasks and closes the underlying badger database
func (b *BlobStore) Close() error {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	b.gcWg.Wait()
	return b.db.Close()
}
