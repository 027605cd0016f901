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

package database_test

import (
	"testing"
	"time"

	"github.com/blinklabs-io/thorn/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type TestTable struct {
	gorm.Model
}

var dbConfig = &database.Config{
	Logger:       nil,
	PromRegistry: nil,
	DataDir:      "",
}

// TestInMemorySqliteMultipleTransaction tests that our sqlite connection allows multiple
// concurrent transactions when using in-memory mode. This requires special URI flags, and
// this is mostly making sure that we don't lose them
func TestInMemorySqliteMultipleTransaction(t *testing.T) {
	var db *database.Database
	doQuery := func(sleep time.Duration) error {
		txn := db.Metadata().Transaction()
		if result := txn.First(&TestTable{}); result.Error != nil {
			return result.Error
		}
		time.Sleep(sleep)
		if result := txn.Commit(); result.Error != nil {
			return result.Error
		}
		return nil
	}
	db, err := database.New(dbConfig)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	defer db.Close()
	if err := db.Metadata().DB().AutoMigrate(&TestTable{}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if result := db.Metadata().DB().Create(&TestTable{}); result.Error != nil {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	// The linter calls us on the lack of error checking, but it's a goroutine...
	//nolint:errcheck
	go doQuery(100 * time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	if err := doQuery(0); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
}

func TestTxnCommitWritesBothStores(t *testing.T) {
	db, err := database.New(dbConfig)
	require.NoError(t, err)
	defer db.Close()

	err = db.Transaction(true).Do(func(txn *database.Txn) error {
		if err := db.Metadata().
			SetAccountBalance("thr1testacct", 42, txn.Metadata()); err != nil {
			return err
		}
		return txn.Blob().Set([]byte("testkey"), []byte("testvalue"))
	})
	require.NoError(t, err)

	acct, err := db.Metadata().GetAccount("thr1testacct", nil)
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, int64(42), acct.Balance)
	val, err := db.Blob().Get([]byte("testkey"), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("testvalue"), val)

	// Commit timestamps in both stores agree after the commit
	metadataTimestamp, err := db.Metadata().GetCommitTimestamp()
	require.NoError(t, err)
	blobTimestamp, err := db.Blob().GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, metadataTimestamp, blobTimestamp)
	assert.Positive(t, metadataTimestamp)
}

func TestTxnRollbackDiscardsBothStores(t *testing.T) {
	db, err := database.New(dbConfig)
	require.NoError(t, err)
	defer db.Close()

	expectedErr := assert.AnError
	err = db.Transaction(true).Do(func(txn *database.Txn) error {
		if err := db.Metadata().
			SetAccountBalance("thr1testacct", 42, txn.Metadata()); err != nil {
			return err
		}
		if err := txn.Blob().
			Set([]byte("testkey"), []byte("testvalue")); err != nil {
			return err
		}
		return expectedErr
	})
	require.ErrorIs(t, err, expectedErr)

	acct, err := db.Metadata().GetAccount("thr1testacct", nil)
	require.NoError(t, err)
	assert.Nil(t, acct)
	_, err = db.Blob().Get([]byte("testkey"), nil)
	assert.Error(t, err)
}

func TestReadOnlyTxnRelease(t *testing.T) {
	db, err := database.New(dbConfig)
	require.NoError(t, err)
	defer db.Close()

	txn := db.Transaction(false)
	defer txn.Release()
	_, err = db.Metadata().GetAccount("thr1testacct", txn.Metadata())
	require.NoError(t, err)
	require.NoError(t, txn.Commit())
}
