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

package index

import (
	"bytes"
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/tuple"
)

// violationRecord is the on-disk shape of a uniqueness violation, stored
// under <descriptor subspace>/_violations/<valueKey>. valueKey itself is
// encoded into the KV key, not the JSON body.
type violationRecord struct {
	PrimaryKeys [][]byte  `json:"primaryKeys"`
	Timestamp   time.Time `json:"timestamp"`
}

// ViolationTracker records and resolves uniqueness conflicts for a single
// unique index. It is created per-descriptor and shares the descriptor's
// subspace.
type ViolationTracker struct {
	root tuple.Subspace // descriptor.Subspace().Child("_violations")
}

// NewViolationTracker returns a tracker rooted under descriptor's
// subspace.
func NewViolationTracker(d *Descriptor) *ViolationTracker {
	return &ViolationTracker{root: d.Subspace().Child("_violations")}
}

func (vt *ViolationTracker) key(valueKey []byte) []byte {
	return vt.root.Pack(valueKey)
}

// Record adds pk to the set of primary keys sharing valueKey, creating the
// violation record if it doesn't already exist. Invoked by a maintainer
// when back-fill or a concurrent write detects a duplicate on a unique
// index (§3 Uniqueness violation).
func (vt *ViolationTracker) Record(ctx context.Context, tx kv.RwTx, valueKey []byte, pk []byte) error {
	key := vt.key(valueKey)
	raw, ok, err := tx.Get(ctx, key)
	if err != nil {
		return err
	}
	var rec violationRecord
	if ok {
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("index: decode violation record: %w", err)
		}
		for _, existing := range rec.PrimaryKeys {
			if bytes.Equal(existing, pk) {
				return nil
			}
		}
	} else {
		rec.Timestamp = time.Now()
	}
	rec.PrimaryKeys = append(rec.PrimaryKeys, pk)
	out, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("index: encode violation record: %w", err)
	}
	return tx.Set(ctx, key, out)
}

// Resolve clears the violation record for valueKey, once an operator has
// fixed the underlying duplicates.
func (vt *ViolationTracker) Resolve(ctx context.Context, tx kv.RwTx, valueKey []byte) error {
	return tx.Clear(ctx, vt.key(valueKey))
}

// ViolationSummary is one captured violation, decoded for reporting.
type ViolationSummary struct {
	ValueKey    []byte
	PrimaryKeys [][]byte
}

// List scans every recorded violation for this index. Returns an empty
// slice (not an error) if none exist.
func (vt *ViolationTracker) List(ctx context.Context, tx kv.Tx) ([]ViolationSummary, error) {
	begin, end := vt.root.Range()
	it, err := tx.GetRange(ctx, begin, end, kv.RangeOptions{})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []ViolationSummary
	for it.Next() {
		kvPair := it.KeyValue()
		elems, err := vt.root.Unpack(kvPair.Key)
		if err != nil {
			return nil, err
		}
		if len(elems) != 1 {
			return nil, fmt.Errorf("index: malformed violation key %x", kvPair.Key)
		}
		valueKey, ok := elems[0].([]byte)
		if !ok {
			return nil, fmt.Errorf("index: malformed violation key element %x", kvPair.Key)
		}
		var rec violationRecord
		if err := json.Unmarshal(kvPair.Value, &rec); err != nil {
			return nil, fmt.Errorf("index: decode violation record: %w", err)
		}
		out = append(out, ViolationSummary{ValueKey: valueKey, PrimaryKeys: rec.PrimaryKeys})
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Clear removes every violation record for this index, used when
// clearFirst starts a fresh build (§4.2a).
func (vt *ViolationTracker) Clear(ctx context.Context, tx kv.RwTx) error {
	begin, end := vt.root.Range()
	return tx.ClearRange(ctx, begin, end)
}

// TotalConflicts sums the number of primary keys across every violation,
// for the UniquenessViolationsDetected{count, totalConflicts} report.
func TotalConflicts(summaries []ViolationSummary) int {
	total := 0
	for _, s := range summaries {
		total += len(s.PrimaryKeys)
	}
	return total
}
