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

type sliceSampler struct {
	vectors [][]float64
	i       int
}

func (s *sliceSampler) Next(ctx context.Context) ([]float64, bool, error) {
	if s.i >= len(s.vectors) {
		return nil, false, nil
	}
	v := s.vectors[s.i]
	s.i++
	return v, true, nil
}

func TestReservoirSampleDrawsAtMostN(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	vectors := randomVectors(1000, 4, rng)
	sampler := &sliceSampler{vectors: vectors}

	sample, err := ReservoirSample(context.Background(), sampler, 50, rng)
	require.NoError(t, err)
	require.Len(t, sample, 50)
}

func TestReservoirSampleReturnsEverythingWhenStreamIsShorterThanN(t *testing.T) {
	rng := rand.New(rand.NewSource(22))
	vectors := randomVectors(10, 4, rng)
	sampler := &sliceSampler{vectors: vectors}

	sample, err := ReservoirSample(context.Background(), sampler, 50, rng)
	require.NoError(t, err)
	require.Len(t, sample, 10)
}

func TestTrainerTrainPersistsAndLoadRestoresEncodeBehavior(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	rng := rand.New(rand.NewSource(23))
	vectors := randomVectors(300, 8, rng)

	trainer := NewTrainer()
	pq := NewProductQuantizer(2, 16, rng)

	err := db.Update(ctx, func(tx kv.RwTx) error {
		return trainer.Train(ctx, tx, "pq", pq, &sliceSampler{vectors: vectors}, rng)
	})
	require.NoError(t, err)

	// A freshly constructed quantizer and trainer (no cache, no codebook
	// in memory) must recover identical Encode outputs via Load.
	reloadedTrainer := NewTrainer()
	reloaded := NewProductQuantizer(2, 16, rng)
	err = db.View(ctx, func(tx kv.Tx) error {
		found, err := reloadedTrainer.Load(ctx, tx, "pq", reloaded)
		require.NoError(t, err)
		require.True(t, found)
		return nil
	})
	require.NoError(t, err)

	for _, v := range vectors[:10] {
		want, err := pq.Encode(v)
		require.NoError(t, err)
		got, err := reloaded.Encode(v)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestTrainerLoadMissingCodebookReturnsFalse(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	trainer := NewTrainer()
	pq := NewProductQuantizer(2, 16, nil)

	err := db.View(ctx, func(tx kv.Tx) error {
		found, err := trainer.Load(ctx, tx, "pq", pq)
		require.NoError(t, err)
		require.False(t, found)
		return nil
	})
	require.NoError(t, err)
}

func TestTrainerLoadIsCachedAcrossCalls(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	rng := rand.New(rand.NewSource(24))
	vectors := randomVectors(100, 4, rng)

	trainer := NewTrainer()
	pq := NewProductQuantizer(2, 8, rng)
	err := db.Update(ctx, func(tx kv.RwTx) error {
		return trainer.Train(ctx, tx, "pq", pq, &sliceSampler{vectors: vectors}, rng)
	})
	require.NoError(t, err)

	// Train already filled this trainer's cache, so the first Load is served
	// from it; after Invalidate the second Load reads the codebook back
	// from the transaction.
	reloaded := NewProductQuantizer(2, 8, rng)
	err = db.View(ctx, func(tx kv.Tx) error {
		found, err := trainer.Load(ctx, tx, "pq", reloaded)
		require.NoError(t, err)
		require.True(t, found)
		return nil
	})
	require.NoError(t, err)

	trainer.Invalidate("pq")
	err = db.View(ctx, func(tx kv.Tx) error {
		found, err := trainer.Load(ctx, tx, "pq", reloaded)
		require.NoError(t, err)
		require.True(t, found)
		return nil
	})
	require.NoError(t, err)
}
