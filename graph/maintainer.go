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

package graph

import (
	"context"
	"fmt"

	"github.com/fusiondb/fusion-index/fieldvalue"
	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/schema"
	"github.com/fusiondb/fusion-index/tuple"
)

// Maintainer adapts an EdgeStore to the index.Maintainer interface, so a
// graph index can be declared, built, and kept live the same way a scalar
// index is (§4.3, §4.4). It is defined here rather than in package index
// to avoid a dependency cycle: index.Maintainer is an interface, not a
// concrete type index needs to know about.
type Maintainer struct {
	store     *EdgeStore
	registry  *schema.Registry
	fromPath  schema.FieldPath
	labelPath schema.FieldPath
	toPath    schema.FieldPath
	valuePath schema.FieldPath // empty means edges carry no payload
}

// NewMaintainer returns a Maintainer that projects records through
// registry's accessors at fromPath/labelPath/toPath (and, if non-empty,
// valuePath) into Edges written to store.
func NewMaintainer(store *EdgeStore, registry *schema.Registry, fromPath, labelPath, toPath, valuePath schema.FieldPath) *Maintainer {
	return &Maintainer{
		store:     store,
		registry:  registry,
		fromPath:  fromPath,
		labelPath: labelPath,
		toPath:    toPath,
		valuePath: valuePath,
	}
}

// nodeElement converts a resolved FieldValue into the tuple.Element used
// to represent it as an opaque node/label identifier. This mirrors
// index.fieldValueElement but lives here to avoid importing package
// index's unexported helper.
func nodeElement(v fieldvalue.FieldValue) (tuple.Element, error) {
	switch v.Kind() {
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
		return nil, fmt.Errorf("graph: field value of kind %d cannot identify a node", v.Kind())
	}
}

func (m *Maintainer) nodeBytes(item schema.Record, path schema.FieldPath) ([]byte, error) {
	v, err := m.registry.Value(item, path)
	if err != nil {
		return nil, err
	}
	el, err := nodeElement(v)
	if err != nil {
		return nil, err
	}
	return tuple.Pack(el), nil
}

func (m *Maintainer) edgeFor(item schema.Record) (Edge, error) {
	from, err := m.nodeBytes(item, m.fromPath)
	if err != nil {
		return Edge{}, err
	}
	label, err := m.nodeBytes(item, m.labelPath)
	if err != nil {
		return Edge{}, err
	}
	to, err := m.nodeBytes(item, m.toPath)
	if err != nil {
		return Edge{}, err
	}
	e := Edge{From: from, Label: label, To: to}
	if m.valuePath != "" {
		v, err := m.registry.Value(item, m.valuePath)
		if err != nil {
			return Edge{}, err
		}
		if b, ok := v.Bytes(); ok {
			e.Value = b
		}
	}
	return e, nil
}

// IndexKeys returns every layout key item would occupy.
func (m *Maintainer) IndexKeys(ctx context.Context, item schema.Record, pk []byte) ([][]byte, error) {
	e, err := m.edgeFor(item)
	if err != nil {
		return nil, err
	}
	return m.store.IndexKeys(e), nil
}

// Scan writes item's edge during back-fill.
func (m *Maintainer) Scan(ctx context.Context, item schema.Record, pk []byte, tx kv.RwTx) error {
	e, err := m.edgeFor(item)
	if err != nil {
		return err
	}
	return m.store.Write(ctx, tx, e)
}

// Update removes old's edge (if present) and writes new's edge (if
// present).
func (m *Maintainer) Update(ctx context.Context, old, new schema.Record, pk []byte, tx kv.RwTx) error {
	if old != nil {
		e, err := m.edgeFor(old)
		if err != nil {
			return err
		}
		if err := m.store.Delete(ctx, tx, e); err != nil {
			return err
		}
	}
	if new != nil {
		e, err := m.edgeFor(new)
		if err != nil {
			return err
		}
		return m.store.Write(ctx, tx, e)
	}
	return nil
}
