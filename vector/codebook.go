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
	"fmt"
	"math/rand"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/tuple"
)

// codebookCacheSize bounds the number of serialized codebooks held in memory
// at once, across every (index, quantizer type) pair this process serves.
const codebookCacheSize = 64

// codebookSubspace is the §6 on-disk layout root: index/_meta/codebook.
var codebookSubspace = tuple.NewSubspace([]byte(kv.IndexMetaPrefix)).Child("_meta", "codebook")

func codebookKey(quantizerType string) []byte {
	return codebookSubspace.Pack(quantizerType)
}

// Sampler extracts the training sample this index's vectors would be
// accessor-resolved from, used by Trainer.Train to reservoir-sample N
// vectors in a single transaction.
type Sampler interface {
	// Next yields the next vector in the range, or (nil, false, nil) when
	// exhausted.
	Next(ctx context.Context) ([]float64, bool, error)
}

// ReservoirSample draws up to n vectors uniformly at random from sampler's
// stream of unknown length, using Vitter's Algorithm R (§4.7, §GLOSSARY
// "Reservoir sampling"): a single pass, bounded O(n) memory.
func ReservoirSample(ctx context.Context, sampler Sampler, n int, rng *rand.Rand) ([][]float64, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	reservoir := make([][]float64, 0, n)
	seen := 0
	for {
		v, ok, err := sampler.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		seen++
		if len(reservoir) < n {
			reservoir = append(reservoir, v)
			continue
		}
		// Replace a uniformly chosen prior element with probability n/seen.
		j := rng.Intn(seen)
		if j < n {
			reservoir[j] = v
		}
	}
	return reservoir, nil
}

// Trainer reservoir-samples a training set, delegates to a Quantizer's
// Train, and persists/reloads the resulting codebook under
// index/_meta/codebook/<quantizerType>, deduplicating concurrent reloads
// of the same key via singleflight and caching serialized codebooks in a
// bounded LRU (§4.7 "Codebook trainer"). A cache hit is still passed
// through the quantizer's Deserialize.
type Trainer struct {
	group singleflight.Group
	cache *lru.Cache[string, []byte]
}

// NewTrainer returns a Trainer with its own reload-dedup group and
// serialized-codebook cache.
func NewTrainer() *Trainer {
	cache, err := lru.New[string, []byte](codebookCacheSize)
	if err != nil {
		// Only fails for a non-positive size, which codebookCacheSize
		// never is.
		panic(err)
	}
	return &Trainer{cache: cache}
}

// SampleSize is how many vectors ReservoirSample draws before training;
// large enough for k-means to see every cluster, small enough that a
// single transaction's memory stays bounded.
const SampleSize = 10000

// Train reservoir-samples up to SampleSize vectors from sampler, fits q,
// and persists the serialized codebook to tx under quantizerType,
// overwriting any previous codebook atomically with the rest of tx's
// writes.
func (t *Trainer) Train(ctx context.Context, tx kv.RwTx, quantizerType string, q Quantizer, sampler Sampler, rng *rand.Rand) error {
	sample, err := ReservoirSample(ctx, sampler, SampleSize, rng)
	if err != nil {
		return err
	}
	if len(sample) == 0 {
		return fmt.Errorf("vector: cannot train %s codebook from an empty sample", quantizerType)
	}
	if err := q.Train(sample); err != nil {
		return err
	}
	data, err := q.Serialize()
	if err != nil {
		return err
	}
	if err := tx.Set(ctx, codebookKey(quantizerType), data); err != nil {
		return err
	}
	t.cache.Add(quantizerType, data)
	return nil
}

// Load restores q's codebook state for quantizerType, reading through the
// LRU cache and deduplicating concurrent reloads of the same key via
// singleflight. Returns (false, nil) if no codebook has been persisted
// yet.
func (t *Trainer) Load(ctx context.Context, tx kv.Tx, quantizerType string, q Quantizer) (bool, error) {
	if data, ok := t.cache.Get(quantizerType); ok {
		return true, q.Deserialize(data)
	}

	result, err, _ := t.group.Do(quantizerType, func() (any, error) {
		data, ok, err := tx.Get(ctx, codebookKey(quantizerType))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		t.cache.Add(quantizerType, data)
		return data, nil
	})
	if err != nil {
		return false, err
	}
	if result == nil {
		return false, nil
	}
	return true, q.Deserialize(result.([]byte))
}

// Invalidate drops quantizerType's cached codebook, forcing the next Load
// to re-read from the store (e.g. after an out-of-band retrain).
func (t *Trainer) Invalidate(quantizerType string) {
	t.cache.Remove(quantizerType)
}
