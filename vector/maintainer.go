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

package vector

import (
	"container/heap"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/schema"
	"github.com/fusiondb/fusion-index/tuple"
)

// Candidate is one (primary key, distance) pair a top-k search accumulates
// (§4.7 "Flat maintainer").
type Candidate struct {
	PK       []byte
	Distance float64
}

// candidateHeap is a max-heap on Distance, so its root is always the worst
// candidate accepted so far -- the one a better match evicts.
type candidateHeap []Candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].Distance > h[j].Distance }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)         { *h = append(*h, x.(Candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TopK accumulates the k nearest candidates by distance using a bounded
// max-heap: insertion is O(log k), peak memory is O(k) regardless of how
// many candidates are offered (§4.7).
type TopK struct {
	k int
	h candidateHeap
}

// NewTopK returns an accumulator that keeps the k smallest-distance
// candidates offered to it.
func NewTopK(k int) *TopK {
	return &TopK{k: k}
}

// Offer considers c for inclusion: if the heap isn't full yet, c is always
// kept; otherwise c replaces the current worst candidate only if it is
// strictly closer (§4.7 "insert new candidate if heap not full or d <
// root").
func (t *TopK) Offer(c Candidate) {
	if t.k <= 0 {
		return
	}
	if len(t.h) < t.k {
		heap.Push(&t.h, c)
		return
	}
	if c.Distance < t.h[0].Distance {
		t.h[0] = c
		heap.Fix(&t.h, 0)
	}
}

// Results drains the accumulator into ascending-distance order (§4.7 "pop
// at end sorted ascending"). Calling Results more than once returns an
// empty slice on subsequent calls, since draining empties the heap.
func (t *TopK) Results() []Candidate {
	out := make([]Candidate, len(t.h))
	copy(out, t.h)
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	t.h = nil
	return out
}

// flatVectorSubspace is the on-disk root a FlatMaintainer stores raw
// vectors under, keyed by the record's primary key.
var flatVectorSubspace = tuple.NewSubspace([]byte(kv.VectorRootPrefix)).Child("flat")

func encodeVector(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.BigEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("vector: stored vector length %d is not a multiple of 8", len(data))
	}
	out := make([]float64, len(data)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.BigEndian.Uint64(data[i*8:]))
	}
	return out, nil
}

// FlatMaintainer stores each record's vector verbatim and answers nearest-
// neighbor queries by brute-force scan through a TopK accumulator (§4.7
// "Flat maintainer"). It implements index.Maintainer via the same
// Update/Scan/IndexKeys shape every index kind shares.
type FlatMaintainer struct {
	indexName string
	registry  *schema.Registry
	path      schema.FieldPath
	metric    Metric
}

// NewFlatMaintainer returns a FlatMaintainer for the vector field at path,
// comparing query vectors under metric.
func NewFlatMaintainer(indexName string, registry *schema.Registry, path schema.FieldPath, metric Metric) *FlatMaintainer {
	return &FlatMaintainer{indexName: indexName, registry: registry, path: path, metric: metric}
}

func (m *FlatMaintainer) key(pk []byte) []byte {
	return flatVectorSubspace.Pack(m.indexName, pk)
}

func (m *FlatMaintainer) vectorOf(item schema.Record) ([]float64, error) {
	accessor, err := m.registry.Accessor(item.TypeTag(), m.path)
	if err != nil {
		return nil, err
	}
	return FloatsFromFieldValue(accessor(item))
}

// Update applies an incremental change: old is nil for an insert, new is
// nil for a delete, both present means a replace.
func (m *FlatMaintainer) Update(ctx context.Context, old, new schema.Record, pk []byte, tx kv.RwTx) error {
	if old != nil {
		if err := tx.Clear(ctx, m.key(pk)); err != nil {
			return err
		}
	}
	if new != nil {
		v, err := m.vectorOf(new)
		if err != nil {
			return err
		}
		if err := tx.Set(ctx, m.key(pk), encodeVector(v)); err != nil {
			return err
		}
	}
	return nil
}

// Scan is invoked once per record during back-fill; it must produce the
// same index entries Update(nil, item, pk, tx) would.
func (m *FlatMaintainer) Scan(ctx context.Context, item schema.Record, pk []byte, tx kv.RwTx) error {
	return m.Update(ctx, nil, item, pk, tx)
}

// IndexKeys returns the keys this record would occupy.
func (m *FlatMaintainer) IndexKeys(ctx context.Context, item schema.Record, pk []byte) ([][]byte, error) {
	return [][]byte{m.key(pk)}, nil
}

func (m *FlatMaintainer) distance(query, v []float64) float64 {
	switch m.metric {
	case Cosine:
		return cosineDistance(query, v)
	case DotProduct:
		return -dotProduct(query, v)
	default:
		return euclideanDistance(query, v)
	}
}

// Search brute-force scans every stored vector and returns the k closest
// to query in ascending-distance order.
func (m *FlatMaintainer) Search(ctx context.Context, tx kv.Tx, query []float64, k int) ([]Candidate, error) {
	begin, end := flatVectorSubspace.Child(m.indexName).Range()
	it, err := tx.GetRange(ctx, begin, end, kv.RangeOptions{Snapshot: true})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	top := NewTopK(k)
	for it.Next() {
		entry := it.KeyValue()
		v, err := decodeVector(entry.Value)
		if err != nil {
			return nil, err
		}
		elems, err := flatVectorSubspace.Child(m.indexName).Unpack(entry.Key)
		if err != nil {
			return nil, err
		}
		if len(elems) != 1 {
			return nil, fmt.Errorf("vector: malformed flat-index key %x", entry.Key)
		}
		pk, ok := elems[0].([]byte)
		if !ok {
			return nil, fmt.Errorf("vector: malformed flat-index primary key %x", entry.Key)
		}
		top.Offer(Candidate{PK: append([]byte(nil), pk...), Distance: m.distance(query, v)})
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return top.Results(), nil
}
