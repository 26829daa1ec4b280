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

// Package progress implements the online builder's resumable bookkeeping
// (§3 Build progress, §6 on-disk layouts): a RangeSet for serial builds and
// per-chunk status records for parallel builds. Both are written in the
// same transaction as the work they describe, which is what makes restart
// after a crash both at-least-once and at-most-once (§4.2).
package progress

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/fusiondb/fusion-index/kv"
)

// Range is one half-open byte range of backfill work, with its own
// resumable cursor.
type Range struct {
	Begin      []byte `json:"begin"`
	End        []byte `json:"end"`
	LastKey    []byte `json:"lastKey,omitempty"`
	Complete   bool   `json:"complete"`
}

// RangeSet is the serial builder's progress record.
type RangeSet struct {
	Ranges []Range `json:"ranges"`
}

// NewRangeSet seeds a progress record with a single, not-yet-started range
// covering [begin, end).
func NewRangeSet(begin, end []byte) *RangeSet {
	return &RangeSet{Ranges: []Range{{Begin: begin, End: end}}}
}

// NextIncomplete returns the index of the first incomplete range, or -1 if
// every range is complete.
func (rs *RangeSet) NextIncomplete() int {
	for i := range rs.Ranges {
		if !rs.Ranges[i].Complete {
			return i
		}
	}
	return -1
}

// Done reports whether every range has completed.
func (rs *RangeSet) Done() bool {
	return rs.NextIncomplete() == -1
}

// Cursor returns the range's resume point: LastKey if the range has been
// partially processed, otherwise Begin.
func (r Range) Cursor() []byte {
	if r.LastKey != nil {
		return r.LastKey
	}
	return r.Begin
}

// key returns the KV key a RangeSet for indexName is stored under, per §6:
// index/_progress/<indexName>.
func key(progressSubspace []byte, indexName string) []byte {
	return append(append([]byte(nil), progressSubspace...), []byte("/"+indexName)...)
}

// Load reads the RangeSet for indexName, or (nil, false, nil) if no
// progress has been recorded (a fresh build).
func Load(ctx context.Context, tx kv.Tx, progressSubspace []byte, indexName string) (*RangeSet, bool, error) {
	raw, ok, err := tx.Get(ctx, key(progressSubspace, indexName))
	if err != nil || !ok {
		return nil, false, err
	}
	var rs RangeSet
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, false, fmt.Errorf("progress: decode range set for %q: %w", indexName, err)
	}
	return &rs, true, nil
}

// Save writes rs for indexName in the same transaction as the work it
// describes -- callers must invoke this before (or as part of) the commit
// that wrote the corresponding index entries (§4.2, §5).
func Save(ctx context.Context, tx kv.RwTx, progressSubspace []byte, indexName string, rs *RangeSet) error {
	raw, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("progress: encode range set for %q: %w", indexName, err)
	}
	return tx.Set(ctx, key(progressSubspace, indexName), raw)
}

// Clear removes indexName's progress record, called once every range has
// completed (§4.2 "After all ranges complete, clear progress").
func Clear(ctx context.Context, tx kv.RwTx, progressSubspace []byte, indexName string) error {
	return tx.Clear(ctx, key(progressSubspace, indexName))
}
