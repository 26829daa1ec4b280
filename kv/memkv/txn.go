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

package memkv

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/fusiondb/fusion-index/kv"
)

// txn is a single transaction: a pinned snapshot of the committed tree plus
// a local write-set. Reads first consult the write-set (read-your-writes),
// then fall back to the snapshot.
type txn struct {
	db       *DB
	snapshot *btree.BTreeG[item]
	gen      uint64
	writable bool

	mu     sync.Mutex
	writes map[string]*[]byte // nil value means "deleted"
	done   bool
}

func (t *txn) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	t.mu.Lock()
	if t.writes != nil {
		if v, ok := t.writes[string(key)]; ok {
			t.mu.Unlock()
			if v == nil {
				return nil, false, nil
			}
			return *v, true, nil
		}
	}
	t.mu.Unlock()

	it, ok := t.snapshot.Get(item{key: key})
	if !ok {
		return nil, false, nil
	}
	return it.value, true, nil
}

func (t *txn) GetRange(ctx context.Context, begin, end []byte, opts kv.RangeOptions) (kv.Iterator, error) {
	t.mu.Lock()
	overlay := make(map[string]*[]byte, len(t.writes))
	for k, v := range t.writes {
		overlay[k] = v
	}
	t.mu.Unlock()

	var merged []item
	seen := make(map[string]bool)
	t.snapshot.AscendRange(item{key: begin}, boundaryItem(end), func(it item) bool {
		if v, ok := overlay[string(it.key)]; ok {
			seen[string(it.key)] = true
			if v != nil {
				merged = append(merged, item{key: it.key, value: *v})
			}
			return true
		}
		merged = append(merged, it)
		return true
	})
	for k, v := range overlay {
		if seen[k] || v == nil {
			continue
		}
		key := []byte(k)
		if bytes.Compare(key, begin) < 0 {
			continue
		}
		if end != nil && bytes.Compare(key, end) >= 0 {
			continue
		}
		merged = append(merged, item{key: key, value: *v})
	}
	sortItems(merged)

	if opts.Reverse {
		reverseItems(merged)
	}
	if opts.Limit > 0 && len(merged) > opts.Limit {
		merged = merged[:opts.Limit]
	}
	return &iterator{items: merged, pos: -1}, nil
}

func (t *txn) Set(ctx context.Context, key, value []byte) error {
	if !t.writable {
		return errNotWritable
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writes == nil {
		t.writes = make(map[string]*[]byte)
	}
	cp := append([]byte(nil), value...)
	t.writes[string(key)] = &cp
	return nil
}

func (t *txn) Clear(ctx context.Context, key []byte) error {
	if !t.writable {
		return errNotWritable
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writes == nil {
		t.writes = make(map[string]*[]byte)
	}
	t.writes[string(key)] = nil
	return nil
}

func (t *txn) ClearRange(ctx context.Context, begin, end []byte) error {
	if !t.writable {
		return errNotWritable
	}
	t.mu.Lock()
	if t.writes == nil {
		t.writes = make(map[string]*[]byte)
	}
	t.db.clearRange(t.writes, begin, end)
	t.snapshot.AscendRange(item{key: begin}, boundaryItem(end), func(it item) bool {
		t.writes[string(it.key)] = nil
		return true
	})
	t.mu.Unlock()
	return nil
}

func (t *txn) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	if !t.writable || len(t.writes) == 0 {
		return nil
	}
	return t.db.commit(t.writes)
}

func (t *txn) Rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	t.writes = nil
}
