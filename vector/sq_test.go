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
	"testing"

	"github.com/stretchr/testify/require"
)

// TestScalarQuantizerDecodeStaysWithinOneScale is the §8 invariant
// "|v - decode(encode(v))|_inf <= scale" per dimension.
func TestScalarQuantizerDecodeStaysWithinOneScale(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	vectors := randomVectors(200, 12, rng)

	sq := NewScalarQuantizer(8, Euclidean)
	require.NoError(t, sq.Train(vectors))

	for _, v := range vectors {
		code, err := sq.Encode(v)
		require.NoError(t, err)
		decoded, err := sq.Decode(code)
		require.NoError(t, err)
		for d := range v {
			require.LessOrEqual(t, math.Abs(v[d]-decoded[d]), sq.scale[d]+1e-9)
		}
	}
}

func TestScalarQuantizer4BitPacksTwoValuesPerByte(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	vectors := randomVectors(50, 6, rng)

	sq := NewScalarQuantizer(4, Euclidean)
	require.NoError(t, sq.Train(vectors))

	code, err := sq.Encode(vectors[0])
	require.NoError(t, err)
	require.Len(t, code, 3) // 6 dims at 4 bits each = 3 bytes
}

func TestScalarQuantizerDotProductDistanceIsNegated(t *testing.T) {
	sq := NewScalarQuantizer(8, DotProduct)
	vectors := [][]float64{{1, 0}, {0, 1}, {1, 1}}
	require.NoError(t, sq.Train(vectors))

	code, err := sq.Encode([]float64{1, 1})
	require.NoError(t, err)

	closeD, err := sq.Distance([]float64{1, 1}, code)
	require.NoError(t, err)
	farD, err := sq.Distance([]float64{-1, -1}, code)
	require.NoError(t, err)
	require.Less(t, closeD, farD)
}

func TestScalarQuantizerCosineDegenerateReturnsMaxDistance(t *testing.T) {
	sq := NewScalarQuantizer(8, Cosine)
	vectors := [][]float64{{1, 2}, {3, 4}}
	require.NoError(t, sq.Train(vectors))

	code, err := sq.Encode([]float64{0, 0})
	require.NoError(t, err)
	d, err := sq.Distance([]float64{0, 0}, code)
	require.NoError(t, err)
	require.Equal(t, maxCosineDistance, d)
}

func TestScalarQuantizerSerializeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	vectors := randomVectors(100, 5, rng)

	sq := NewScalarQuantizer(8, Euclidean)
	require.NoError(t, sq.Train(vectors))

	data, err := sq.Serialize()
	require.NoError(t, err)
	require.Equal(t, sqMagic, string(data[:4]))

	reloaded := NewScalarQuantizer(8, Euclidean)
	require.NoError(t, reloaded.Deserialize(data))

	for _, v := range vectors[:10] {
		want, err := sq.Encode(v)
		require.NoError(t, err)
		got, err := reloaded.Encode(v)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestScalarQuantizerZeroRangeDimensionDoesNotPanic(t *testing.T) {
	sq := NewScalarQuantizer(8, Euclidean)
	vectors := [][]float64{{5, 1}, {5, 2}, {5, 3}}
	require.NoError(t, sq.Train(vectors))

	code, err := sq.Encode([]float64{5, 2})
	require.NoError(t, err)
	_, err = sq.Decode(code)
	require.NoError(t, err)
}
