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

// Package kv declares the ordered, transactional key-value interface the
// rest of this module consumes. The concrete store (MDBX, FoundationDB, a
// remote KV proxy, ...) is an external collaborator: this package only
// names the shape every index, graph, and vector component is written
// against.
//
// Variable naming follows the convention:
//
//	tx  - a read or read-write transaction
//	k,v - key, value (raw bytes; ordering is lexicographic byte order)
//	pk  - primary key tuple of a record
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is a sentinel for APIs that must distinguish "absent" from
// "present but empty" without an extra bool. Get does not return it: a
// missing key is reported as (nil, false, nil) by the (value, ok) form
// below.
var ErrNotFound = errors.New("kv: key not found")

// ErrRetryable marks an error the caller may retry (commit conflict,
// transaction timeout, transient network failure to a remote store). See
// throttle.IsRetryable, which classifies errors against this sentinel via
// errors.Is, and backoff-wrapped callers in the index builder.
var ErrRetryable = errors.New("kv: retryable error")

// KeyValue is a single entry yielded by a range scan.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// Getter is the read-only subset of a transaction.
type Getter interface {
	// Get returns the value stored at key, or (nil, false, nil) if absent.
	Get(ctx context.Context, key []byte) (value []byte, ok bool, err error)
}

// RangeOptions configures a range scan. Snapshot reads skip conflict
// tracking in implementations that support it (§6); non-snapshot reads
// participate in the enclosing transaction's conflict set.
type RangeOptions struct {
	Snapshot bool
	Limit    int // 0 means unlimited
	Reverse  bool
}

// Iterator walks a half-open key range [begin, end) in byte order (or the
// reverse, if RangeOptions.Reverse was set).
type Iterator interface {
	// Next advances the iterator. It returns false when the range is
	// exhausted or an error occurred; callers must check Err() afterwards.
	Next() bool
	KeyValue() KeyValue
	Err() error
	Close()
}

// Ranger is the range-scan subset of a transaction.
type Ranger interface {
	// GetRange streams entries in [begin, end). A nil end means "to the
	// end of the keyspace"; a nil begin means "from the start".
	GetRange(ctx context.Context, begin, end []byte, opts RangeOptions) (Iterator, error)
}

// Putter is the write subset of a read-write transaction.
type Putter interface {
	Set(ctx context.Context, key, value []byte) error
}

// Clearer removes single keys and key ranges.
type Clearer interface {
	Clear(ctx context.Context, key []byte) error
	ClearRange(ctx context.Context, begin, end []byte) error
}

// Tx is a read-only transaction: a consistent snapshot of the keyspace for
// the lifetime of the transaction.
type Tx interface {
	Getter
	Ranger
}

// RwTx is a read-write transaction. Writes are buffered until Commit and
// become visible to other transactions atomically on a successful commit
// (§5 ordering guarantees).
type RwTx interface {
	Tx
	Putter
	Clearer

	// Commit durably applies every write performed against this
	// transaction. A successful commit of a progress record implies the
	// work it describes alongside it, in the same transaction, is durable
	// (§4.2, §5) — this is the builder's crash-safety invariant.
	Commit(ctx context.Context) error

	// Rollback discards the transaction's writes. Safe to call after a
	// successful Commit (no-op) or multiple times.
	Rollback()
}

// SplitPointFinder exposes the store's ability to partition a range into
// roughly chunkSize-byte pieces, used by the parallel online builder (§4.2).
type SplitPointFinder interface {
	// GetSplitPoints returns split keys partitioning [begin, end) into
	// chunks of approximately chunkSize bytes each. A range that doesn't
	// warrant splitting returns a slice of length <= 1.
	GetSplitPoints(ctx context.Context, begin, end []byte, chunkSize uint64) ([][]byte, error)
}

// RoDB is a read-only handle to the store: it can only originate read-only
// transactions.
type RoDB interface {
	// View runs f inside a fresh read-only transaction and always rolls
	// it back afterwards (there is nothing to commit).
	View(ctx context.Context, f func(tx Tx) error) error
	BeginRo(ctx context.Context) (Tx, error)
}

// RwDB is a handle to the store capable of read-write transactions. It is
// the interface every index/graph/vector component is constructed against.
type RwDB interface {
	RoDB
	SplitPointFinder

	// Update runs f inside a fresh read-write transaction and commits on
	// success, or rolls back and returns f's error.
	Update(ctx context.Context, f func(tx RwTx) error) error
	BeginRw(ctx context.Context) (RwTx, error)
}
