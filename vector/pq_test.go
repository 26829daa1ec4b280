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
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomVectors(n, dim int, rng *rand.Rand) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		v := make([]float64, dim)
		for d := range v {
			v[d] = rng.Float64()*20 - 10
		}
		out[i] = v
	}
	return out
}

func TestProductQuantizerDecodeAssignsNearestCentroidPerSubspace(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	vectors := randomVectors(500, 16, rng)

	pq := NewProductQuantizer(4, 16, rng)
	require.NoError(t, pq.Train(vectors))
	require.True(t, pq.Trained())

	for _, v := range vectors[:20] {
		code, err := pq.Encode(v)
		require.NoError(t, err)
		decoded, err := pq.Decode(code)
		require.NoError(t, err)

		subDim := pq.subDim
		for sub := 0; sub < pq.m; sub++ {
			part := v[sub*subDim : (sub+1)*subDim]
			reconstructed := decoded[sub*subDim : (sub+1)*subDim]
			gotDist := squaredDistance(part, reconstructed)

			best := math.Inf(1)
			for _, centroid := range pq.centroids[sub] {
				if d := squaredDistance(part, centroid); d < best {
					best = d
				}
			}
			require.InDelta(t, best, gotDist, 1e-9)
		}
	}
}

func TestProductQuantizerSerializeRoundTripsEncodeOutputs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vectors := randomVectors(300, 8, rng)

	pq := NewProductQuantizer(2, 8, rng)
	require.NoError(t, pq.Train(vectors))

	data, err := pq.Serialize()
	require.NoError(t, err)
	require.Equal(t, pqMagic, string(data[:4]))

	reloaded := NewProductQuantizer(2, 8, rng)
	require.NoError(t, reloaded.Deserialize(data))

	for _, v := range vectors[:10] {
		want, err := pq.Encode(v)
		require.NoError(t, err)
		got, err := reloaded.Encode(v)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestProductQuantizerEncodeBeforeTrainFails(t *testing.T) {
	pq := NewProductQuantizer(4, 16, nil)
	_, err := pq.Encode([]float64{1, 2, 3, 4})
	require.ErrorIs(t, err, ErrNotTrained)
}

func TestProductQuantizerRejectsNonDivisibleDimension(t *testing.T) {
	pq := NewProductQuantizer(3, 4, nil)
	err := pq.Train([][]float64{{1, 2, 3, 4}})
	require.Error(t, err)
}

// TestPQANNRescoringRecallAtTen is spec scenario #6: 100 000 random 128-d
// vectors, PQ with M=16,K=256; top-10 by PQ-rescored distance must overlap
// the true top-10 by exact Euclidean distance in at least 8 of 10.
func TestPQANNRescoringRecallAtTen(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large ANN recall test in -short mode")
	}
	rng := rand.New(rand.NewSource(1234))
	const n, dim = 100000, 128
	vectors := randomVectors(n, dim, rng)
	query := randomVectors(1, dim, rng)[0]

	pq := NewProductQuantizer(16, 256, rng)
	require.NoError(t, pq.Train(vectors))

	codes := make([][]byte, n)
	for i, v := range vectors {
		code, err := pq.Encode(v)
		require.NoError(t, err)
		codes[i] = code
	}

	prepared, err := pq.PrepareQuery(query)
	require.NoError(t, err)

	top := NewTopK(10)
	for i, code := range codes {
		d, err := prepared.Distance(code)
		require.NoError(t, err)
		top.Offer(Candidate{PK: []byte{byte(i), byte(i >> 8), byte(i >> 16)}, Distance: d})
	}
	approx := top.Results()
	approxIdx := make(map[int]bool, len(approx))
	for _, c := range approx {
		idx := int(c.PK[0]) | int(c.PK[1])<<8 | int(c.PK[2])<<16
		approxIdx[idx] = true
	}

	type exact struct {
		idx int
		d   float64
	}
	exacts := make([]exact, n)
	for i, v := range vectors {
		exacts[i] = exact{idx: i, d: euclideanDistance(query, v)}
	}
	sort.Slice(exacts, func(i, j int) bool { return exacts[i].d < exacts[j].d })

	overlap := 0
	for _, e := range exacts[:10] {
		if approxIdx[e.idx] {
			overlap++
		}
	}
	require.GreaterOrEqual(t, overlap, 8, "recall@10 must be >= 0.8")
}
