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
	"context"

	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/schema"
	"github.com/fusiondb/fusion-index/tuple"
)

// quantizedVectorSubspace holds every PQ/SQ/BQ-backed index's raw vectors,
// kept around for retraining (§4.3 "Vector PQ: on add, stores the raw
// vector").
var quantizedVectorSubspace = tuple.NewSubspace([]byte(kv.VectorRootPrefix)).Child("vectors")

// quantizedCodeSubspace holds the compressed codes a trained codebook
// produces (§4.3 "if a trained codebook exists, also encodes and stores
// the compressed code").
var quantizedCodeSubspace = tuple.NewSubspace([]byte(kv.VectorRootPrefix)).Child("codes")

// QuantizedMaintainer implements index.Maintainer for a PQ, SQ, or BQ
// index: it always keeps the raw vector around (so the codebook can later
// be retrained from real data) and, once a codebook has been trained,
// additionally maintains the compressed code under a separate subspace
// (§4.3). Before a codebook exists, the index degrades to raw-vector-only
// storage; nothing is lost once training catches up on a later Update.
//
// PQMaintainer, SQMaintainer, and BQMaintainer are thin constructors over
// this type, one per quantizer kind.
type QuantizedMaintainer struct {
	indexName     string
	quantizerType string
	registry      *schema.Registry
	path          schema.FieldPath
	quantizer     Quantizer
	trainer       *Trainer
}

func newQuantizedMaintainer(indexName, quantizerType string, registry *schema.Registry, path schema.FieldPath, quantizer Quantizer, trainer *Trainer) *QuantizedMaintainer {
	return &QuantizedMaintainer{
		indexName:     indexName,
		quantizerType: quantizerType,
		registry:      registry,
		path:          path,
		quantizer:     quantizer,
		trainer:       trainer,
	}
}

// PQMaintainer returns a QuantizedMaintainer backed by a ProductQuantizer.
// The persisted codebook is namespaced as index/_meta/codebook/pq:<indexName>
// so distinct PQ indexes don't collide.
func PQMaintainer(indexName string, registry *schema.Registry, path schema.FieldPath, pq *ProductQuantizer, trainer *Trainer) *QuantizedMaintainer {
	return newQuantizedMaintainer(indexName, "pq:"+indexName, registry, path, pq, trainer)
}

// SQMaintainer returns a QuantizedMaintainer backed by a ScalarQuantizer.
func SQMaintainer(indexName string, registry *schema.Registry, path schema.FieldPath, sq *ScalarQuantizer, trainer *Trainer) *QuantizedMaintainer {
	return newQuantizedMaintainer(indexName, "sq:"+indexName, registry, path, sq, trainer)
}

// BQMaintainer returns a QuantizedMaintainer backed by a BinaryQuantizer.
func BQMaintainer(indexName string, registry *schema.Registry, path schema.FieldPath, bq *BinaryQuantizer, trainer *Trainer) *QuantizedMaintainer {
	return newQuantizedMaintainer(indexName, "bq:"+indexName, registry, path, bq, trainer)
}

func (m *QuantizedMaintainer) vectorKey(pk []byte) []byte {
	return quantizedVectorSubspace.Pack(m.indexName, pk)
}

func (m *QuantizedMaintainer) codeKey(pk []byte) []byte {
	return quantizedCodeSubspace.Pack(m.indexName, pk)
}

func (m *QuantizedMaintainer) vectorOf(item schema.Record) ([]float64, error) {
	accessor, err := m.registry.Accessor(item.TypeTag(), m.path)
	if err != nil {
		return nil, err
	}
	return FloatsFromFieldValue(accessor(item))
}

// Update applies an incremental change: old is nil for an insert, new is
// nil for a delete, both present means a replace. The raw vector is always
// kept current; the compressed code is kept current only once a codebook
// has been trained for this index.
func (m *QuantizedMaintainer) Update(ctx context.Context, old, new schema.Record, pk []byte, tx kv.RwTx) error {
	if old != nil {
		if err := tx.Clear(ctx, m.vectorKey(pk)); err != nil {
			return err
		}
		if err := tx.Clear(ctx, m.codeKey(pk)); err != nil {
			return err
		}
	}
	if new == nil {
		return nil
	}

	v, err := m.vectorOf(new)
	if err != nil {
		return err
	}
	if err := tx.Set(ctx, m.vectorKey(pk), encodeVector(v)); err != nil {
		return err
	}

	trained, err := m.trainer.Load(ctx, tx, m.quantizerType, m.quantizer)
	if err != nil {
		return err
	}
	if !trained {
		return nil
	}
	code, err := m.quantizer.Encode(v)
	if err != nil {
		return err
	}
	return tx.Set(ctx, m.codeKey(pk), code)
}

// Scan is invoked once per record during back-fill; it must produce the
// same index entries Update(nil, item, pk, tx) would.
func (m *QuantizedMaintainer) Scan(ctx context.Context, item schema.Record, pk []byte, tx kv.RwTx) error {
	return m.Update(ctx, nil, item, pk, tx)
}

// IndexKeys returns the keys this record would occupy: always the raw
// vector key, plus the code key once a codebook has been trained. It takes
// no transaction, so it reflects the quantizer's in-memory trained state
// rather than re-checking the store.
func (m *QuantizedMaintainer) IndexKeys(ctx context.Context, item schema.Record, pk []byte) ([][]byte, error) {
	keys := [][]byte{m.vectorKey(pk)}
	if m.quantizer.Trained() {
		keys = append(keys, m.codeKey(pk))
	}
	return keys, nil
}
