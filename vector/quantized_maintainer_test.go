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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/kv/memkv"
)

// TestQuantizedMaintainerStoresRawVectorBeforeCodebookTrained is the §4.3
// "Vector PQ: on add, stores the raw vector" half of the contract, for the
// case where no codebook has been trained yet.
func TestQuantizedMaintainerStoresRawVectorBeforeCodebookTrained(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	registry := newDocRegistry()
	rng := rand.New(rand.NewSource(41))
	pq := NewProductQuantizer(2, 8, rng)
	m := PQMaintainer("docs_pq", registry, "embedding", pq, NewTrainer())

	err := db.Update(ctx, func(tx kv.RwTx) error {
		return m.Update(ctx, nil, docRecord{vec: []float64{1, 2, 3, 4}}, []byte("a"), tx)
	})
	require.NoError(t, err)

	err = db.View(ctx, func(tx kv.Tx) error {
		_, ok, err := tx.Get(ctx, m.vectorKey([]byte("a")))
		require.NoError(t, err)
		require.True(t, ok, "raw vector must be stored even without a trained codebook")
		_, ok, err = tx.Get(ctx, m.codeKey([]byte("a")))
		require.NoError(t, err)
		require.False(t, ok, "no code should be stored before training")
		return nil
	})
	require.NoError(t, err)
}

// TestQuantizedMaintainerEncodesOnceCodebookIsTrained is the §4.3 "if a
// trained codebook exists, also encodes and stores the compressed code"
// half of the contract.
func TestQuantizedMaintainerEncodesOnceCodebookIsTrained(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	registry := newDocRegistry()
	rng := rand.New(rand.NewSource(42))
	pq := NewProductQuantizer(2, 8, rng)
	trainer := NewTrainer()
	m := PQMaintainer("docs_pq", registry, "embedding", pq, trainer)

	samples := randomVectors(200, 4, rng)
	err := db.Update(ctx, func(tx kv.RwTx) error {
		return trainer.Train(ctx, tx, m.quantizerType, pq, &sliceSampler{vectors: samples}, rng)
	})
	require.NoError(t, err)

	v := []float64{0.1, 0.2, 0.3, 0.4}
	err = db.Update(ctx, func(tx kv.RwTx) error {
		return m.Update(ctx, nil, docRecord{vec: v}, []byte("b"), tx)
	})
	require.NoError(t, err)

	wantCode, err := pq.Encode(v)
	require.NoError(t, err)

	err = db.View(ctx, func(tx kv.Tx) error {
		_, ok, err := tx.Get(ctx, m.vectorKey([]byte("b")))
		require.NoError(t, err)
		require.True(t, ok)
		code, ok, err := tx.Get(ctx, m.codeKey([]byte("b")))
		require.NoError(t, err)
		require.True(t, ok, "code must be stored once a codebook is trained")
		require.Equal(t, wantCode, code)
		return nil
	})
	require.NoError(t, err)

	keys, err := m.IndexKeys(ctx, docRecord{vec: v}, []byte("b"))
	require.NoError(t, err)
	require.Len(t, keys, 2, "IndexKeys must report both the vector and code keys once trained")
}

// TestQuantizedMaintainerUpdateReplaceClearsOldCode verifies a replace
// clears both the old raw vector and the old code before writing the new
// ones.
func TestQuantizedMaintainerUpdateReplaceClearsOldCode(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	registry := newDocRegistry()
	rng := rand.New(rand.NewSource(43))
	bq := NewBinaryQuantizer(ThresholdSign)
	trainer := NewTrainer()
	m := BQMaintainer("docs_bq", registry, "embedding", bq, trainer)

	err := db.Update(ctx, func(tx kv.RwTx) error {
		return trainer.Train(ctx, tx, m.quantizerType, bq, &sliceSampler{vectors: randomVectors(50, 4, rng)}, rng)
	})
	require.NoError(t, err)

	err = db.Update(ctx, func(tx kv.RwTx) error {
		return m.Update(ctx, nil, docRecord{vec: []float64{1, 1, 1, 1}}, []byte("c"), tx)
	})
	require.NoError(t, err)

	err = db.Update(ctx, func(tx kv.RwTx) error {
		return m.Update(ctx, docRecord{vec: []float64{1, 1, 1, 1}}, docRecord{vec: []float64{-1, -1, -1, -1}}, []byte("c"), tx)
	})
	require.NoError(t, err)

	wantCode, err := bq.Encode([]float64{-1, -1, -1, -1})
	require.NoError(t, err)

	err = db.View(ctx, func(tx kv.Tx) error {
		code, ok, err := tx.Get(ctx, m.codeKey([]byte("c")))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, wantCode, code)
		return nil
	})
	require.NoError(t, err)
}
