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
	"context"
	"fmt"

	"github.com/fusiondb/fusion-index/fieldvalue"
	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/schema"
	"github.com/fusiondb/fusion-index/tuple"
)

// ScalarMaintainer is the "not the focus but consumed" scalar/composite
// maintainer (§4.3): one key per item, packing the indexed field values
// followed by the primary key, with an empty value. Composite indexes are
// just a Descriptor with more than one FieldPath.
type ScalarMaintainer struct {
	descriptor *Descriptor
	registry   *schema.Registry
	tracker    *ViolationTracker
}

// NewScalarMaintainer builds a ScalarMaintainer for descriptor, resolving
// field values through registry.
func NewScalarMaintainer(descriptor *Descriptor, registry *schema.Registry) *ScalarMaintainer {
	return &ScalarMaintainer{
		descriptor: descriptor,
		registry:   registry,
		tracker:    NewViolationTracker(descriptor),
	}
}

// fieldValueElement converts a resolved FieldValue into a tuple.Element
// for packing into an order-preserving index key. Null values pack as the
// tuple codec's own null tag.
func fieldValueElement(v fieldvalue.FieldValue) (tuple.Element, error) {
	switch v.Kind() {
	case fieldvalue.KindNull:
		return nil, nil
	case fieldvalue.KindInt64:
		i, _ := v.Int64()
		return i, nil
	case fieldvalue.KindFloat64:
		f, _ := v.Float64()
		return f, nil
	case fieldvalue.KindBool:
		b, _ := v.Bool()
		return b, nil
	case fieldvalue.KindString:
		s, _ := v.String()
		return s, nil
	case fieldvalue.KindBytes:
		b, _ := v.Bytes()
		return b, nil
	case fieldvalue.KindUUID:
		u, _ := v.UUID()
		return u, nil
	case fieldvalue.KindDate:
		t, _ := v.Date()
		return t.UnixNano(), nil
	default:
		return nil, fmt.Errorf("index: field value of kind %d is not packable into a key", v.Kind())
	}
}

// valueKey packs this descriptor's field paths, resolved against item,
// into a single tuple-encoded value -- used both as the index key prefix
// and as the ViolationTracker's dedup key for unique indexes.
func (m *ScalarMaintainer) valueKey(item schema.Record) ([]byte, error) {
	elements := make([]tuple.Element, 0, len(m.descriptor.FieldPaths))
	for _, path := range m.descriptor.FieldPaths {
		v, err := m.registry.Value(item, path)
		if err != nil {
			return nil, err
		}
		el, err := fieldValueElement(v)
		if err != nil {
			return nil, err
		}
		elements = append(elements, el)
	}
	return tuple.Pack(elements...), nil
}

func (m *ScalarMaintainer) key(valueKey, pk []byte) []byte {
	return m.descriptor.Subspace().Pack(valueKey, pk)
}

// pkFromKey recovers the primary key packed into one of this maintainer's
// index keys, used to fold the first claimant of a value into a
// uniqueness violation once a second claimant is detected.
func (m *ScalarMaintainer) pkFromKey(key []byte) ([]byte, error) {
	elems, err := m.descriptor.Subspace().Unpack(key)
	if err != nil {
		return nil, err
	}
	if len(elems) != 2 {
		return nil, fmt.Errorf("index: malformed index key %x", key)
	}
	pk, ok := elems[1].([]byte)
	if !ok {
		return nil, fmt.Errorf("index: malformed primary key element in %x", key)
	}
	return pk, nil
}

// IndexKeys returns the single key this item occupies.
func (m *ScalarMaintainer) IndexKeys(ctx context.Context, item schema.Record, pk []byte) ([][]byte, error) {
	vk, err := m.valueKey(item)
	if err != nil {
		return nil, err
	}
	return [][]byte{m.key(vk, pk)}, nil
}

// Scan writes item's index entry during back-fill, recording a uniqueness
// violation instead of failing outright if the index is unique and the
// value key is already claimed by a different primary key (§3, §4.2).
func (m *ScalarMaintainer) Scan(ctx context.Context, item schema.Record, pk []byte, tx kv.RwTx) error {
	return m.insert(ctx, item, pk, tx)
}

// Update applies an incremental change: delete old's entry (if present),
// insert new's entry (if present).
func (m *ScalarMaintainer) Update(ctx context.Context, old, new schema.Record, pk []byte, tx kv.RwTx) error {
	if old != nil {
		vk, err := m.valueKey(old)
		if err != nil {
			return err
		}
		if err := tx.Clear(ctx, m.key(vk, pk)); err != nil {
			return err
		}
	}
	if new != nil {
		return m.insert(ctx, new, pk, tx)
	}
	return nil
}

func (m *ScalarMaintainer) insert(ctx context.Context, item schema.Record, pk []byte, tx kv.RwTx) error {
	vk, err := m.valueKey(item)
	if err != nil {
		return err
	}

	if m.descriptor.IsUnique {
		begin := m.descriptor.Subspace().Pack(vk)
		end := tuple.Strinc(begin)
		it, err := tx.GetRange(ctx, begin, end, kv.RangeOptions{Limit: 1})
		if err != nil {
			return err
		}
		conflict := it.Next()
		var conflictKey []byte
		if conflict {
			conflictKey = append([]byte(nil), it.KeyValue().Key...)
		}
		if cerr := it.Err(); cerr != nil {
			it.Close()
			return cerr
		}
		it.Close()
		if conflict && string(conflictKey) != string(m.key(vk, pk)) {
			originalPK, unpackErr := m.pkFromKey(conflictKey)
			if unpackErr != nil {
				return unpackErr
			}
			if err := m.tracker.Record(ctx, tx, vk, originalPK); err != nil {
				return err
			}
			return m.tracker.Record(ctx, tx, vk, pk)
		}
	}

	return tx.Set(ctx, m.key(vk, pk), nil)
}
