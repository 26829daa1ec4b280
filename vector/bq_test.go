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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestHammingOfIdenticalCodesIsZero is the §8 invariant
// "hammingDistance(encode(v), encode(v)) = 0".
func TestHammingOfIdenticalCodesIsZero(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	vectors := randomVectors(100, 130, rng) // exercises a non-multiple-of-64 dim

	bq := NewBinaryQuantizer(ThresholdSign)
	require.NoError(t, bq.Train(vectors))

	for _, v := range vectors {
		code, err := bq.Encode(v)
		require.NoError(t, err)
		d, err := Hamming(code, code)
		require.NoError(t, err)
		require.Equal(t, 0, d)
	}
}

func TestHammingIsSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	vectors := randomVectors(50, 64, rng)

	bq := NewBinaryQuantizer(ThresholdMedian)
	require.NoError(t, bq.Train(vectors))

	a, err := bq.Encode(vectors[0])
	require.NoError(t, err)
	b, err := bq.Encode(vectors[1])
	require.NoError(t, err)

	dAB, err := Hamming(a, b)
	require.NoError(t, err)
	dBA, err := Hamming(b, a)
	require.NoError(t, err)
	require.Equal(t, dAB, dBA)
}

// TestHammingOnFullyDisagreeingVectorsEqualsDimension is the §8 boundary
// behavior "Hamming on vectors that disagree on every bit equals D".
func TestHammingOnFullyDisagreeingVectorsEqualsDimension(t *testing.T) {
	bq := NewBinaryQuantizer(ThresholdSign)
	require.NoError(t, bq.Train([][]float64{{1, 1, 1, 1}}))

	a, err := bq.Encode([]float64{1, 1, 1, 1})
	require.NoError(t, err)
	b, err := bq.Encode([]float64{-1, -1, -1, -1})
	require.NoError(t, err)

	d, err := Hamming(a, b)
	require.NoError(t, err)
	require.Equal(t, 4, d)
}

func TestBinaryQuantizerPacksCeilDimOver64Words(t *testing.T) {
	bq := NewBinaryQuantizer(ThresholdSign)
	require.NoError(t, bq.Train([][]float64{make([]float64, 65)}))
	code, err := bq.Encode(make([]float64, 65))
	require.NoError(t, err)
	require.Len(t, code, 16) // ceil(65/64) = 2 words = 16 bytes
}

func TestBinaryQuantizerSerializeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	vectors := randomVectors(100, 40, rng)

	bq := NewBinaryQuantizer(ThresholdMedian)
	require.NoError(t, bq.Train(vectors))

	data, err := bq.Serialize()
	require.NoError(t, err)
	require.Equal(t, bqMagic, string(data[:4]))

	reloaded := NewBinaryQuantizer(ThresholdMedian)
	require.NoError(t, reloaded.Deserialize(data))

	for _, v := range vectors[:10] {
		want, err := bq.Encode(v)
		require.NoError(t, err)
		got, err := reloaded.Encode(v)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestBinaryQuantizerApproximateCosineDistanceIsHammingScaled(t *testing.T) {
	bq := NewBinaryQuantizer(ThresholdSign)
	require.NoError(t, bq.Train([][]float64{{1, 1, 1, 1}}))

	a, err := bq.Encode([]float64{1, 1, 1, 1})
	require.NoError(t, err)
	b, err := bq.Encode([]float64{-1, -1, -1, -1})
	require.NoError(t, err)

	d, err := bq.ApproximateCosineDistance(a, b)
	require.NoError(t, err)
	require.InDelta(t, 2.0, d, 1e-9) // 2*4/4
}
