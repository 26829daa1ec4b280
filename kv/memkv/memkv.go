// Copyright 2026 The Fusion Authors
// This file is part of Fusion.
//
// Fusion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Fusion is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Fusion. If not, see <http://www.gnu.org/licenses/>.

// Package memkv is an in-memory implementation of kv.RwDB, used by tests
// throughout this module in place of a real transactional store. It keeps
// one committed github.com/google/btree.BTreeG[item] and hands every
// transaction a copy-on-write snapshot generation, the same shape as
// core/state's history-reader txNum bookkeeping: a transaction pins a
// generation number at Begin time and never observes writes committed
// after it.
package memkv

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/google/btree"

	"github.com/fusiondb/fusion-index/kv"
)

type item struct {
	key   []byte
	value []byte
}

func less(a, b item) bool { return bytes.Compare(a.key, b.key) < 0 }

// DB is an in-memory, snapshot-isolated key-value store.
type DB struct {
	mu        sync.Mutex
	tree      *btree.BTreeG[item]
	gen       uint64
	chunkHint int // approximate bytes-per-key used by GetSplitPoints
}

// New creates an empty store. Its chunk hint of 64 bytes per key is a rough
// average entry size used only to make GetSplitPoints' chunking
// deterministic in tests; real stores derive this from page statistics.
func New() *DB {
	return &DB{tree: btree.NewG(32, less), chunkHint: 64}
}

func (db *DB) View(ctx context.Context, f func(tx kv.Tx) error) error {
	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	return f(tx)
}

func (db *DB) BeginRo(ctx context.Context) (kv.Tx, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return &txn{db: db, snapshot: db.tree.Clone(), gen: db.gen}, nil
}

func (db *DB) Update(ctx context.Context, f func(tx kv.RwTx) error) error {
	tx, err := db.BeginRw(ctx)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit(ctx)
}

func (db *DB) BeginRw(ctx context.Context) (kv.RwTx, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return &txn{db: db, snapshot: db.tree.Clone(), gen: db.gen, writable: true}, nil
}

// GetSplitPoints partitions [begin, end) into chunks of approximately
// chunkSize bytes, based on the number of keys currently committed in the
// range and the store's chunk hint. Returns a slice of length <= 1 when the
// range doesn't warrant splitting, so callers fall back to a serial build
// (§4.2 "split points returning <= 1 entry must fall back to serial build").
func (db *DB) GetSplitPoints(ctx context.Context, begin, end []byte, chunkSize uint64) ([][]byte, error) {
	db.mu.Lock()
	snap := db.tree.Clone()
	db.mu.Unlock()

	var keys [][]byte
	snap.AscendRange(item{key: begin}, boundaryItem(end), func(it item) bool {
		keys = append(keys, it.key)
		return true
	})
	if len(keys) == 0 {
		return nil, nil
	}
	keysPerChunk := int(chunkSize) / db.chunkHint
	if keysPerChunk < 1 {
		keysPerChunk = 1
	}
	if len(keys) <= keysPerChunk {
		return [][]byte{begin}, nil
	}

	splits := [][]byte{begin}
	for i := keysPerChunk; i < len(keys); i += keysPerChunk {
		splits = append(splits, keys[i])
	}
	return splits, nil
}

// boundaryItem returns an upper-bound sentinel for AscendRange; a nil end
// means "to the end of the keyspace".
func boundaryItem(end []byte) item {
	if end == nil {
		return item{key: []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}}
	}
	return item{key: end}
}

func (db *DB) commit(writes map[string]*[]byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for k, v := range writes {
		key := []byte(k)
		if v == nil {
			db.tree.Delete(item{key: key})
			continue
		}
		db.tree.ReplaceOrInsert(item{key: key, value: *v})
	}
	db.gen++
	return nil
}

func (db *DB) clearRange(writes map[string]*[]byte, begin, end []byte) {
	db.mu.Lock()
	var toDelete [][]byte
	db.tree.AscendRange(item{key: begin}, boundaryItem(end), func(it item) bool {
		toDelete = append(toDelete, it.key)
		return true
	})
	db.mu.Unlock()
	for _, k := range toDelete {
		writes[string(k)] = nil
	}
}

// Keys returns every committed key in byte order. Intended for assertions
// in tests, not for production use (it copies the whole keyspace).
func (db *DB) Keys() [][]byte {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([][]byte, 0, db.tree.Len())
	db.tree.Ascend(func(it item) bool {
		out = append(out, it.key)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i], out[j]) < 0 })
	return out
}
