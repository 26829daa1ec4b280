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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/fusiondb/fusion-index/internal/mathutil"
)

const sqMagic = "SQ01"

// ScalarQuantizer learns a per-dimension [min, max] range and packs each
// dimension into `bits`-wide codes, two per byte when bits == 4 (§4.7 SQ).
type ScalarQuantizer struct {
	bits    int
	dim     int
	trained bool
	min     []float64
	max     []float64
	scale   []float64
	metric  Metric
}

// NewScalarQuantizer returns an untrained SQ quantizing each dimension to
// bits bits (4 or 8) and comparing codes under metric.
func NewScalarQuantizer(bits int, metric Metric) *ScalarQuantizer {
	return &ScalarQuantizer{bits: bits, metric: metric}
}

func (q *ScalarQuantizer) Trained() bool { return q.trained }
func (q *ScalarQuantizer) Dim() int      { return q.dim }

func (q *ScalarQuantizer) maxQuantValue() float64 {
	return float64((uint64(1) << uint(q.bits)) - 1)
}

// Train learns min/max/scale per dimension from a training sample (§4.7
// "scale = (max-min)/maxQuantValue").
func (q *ScalarQuantizer) Train(vectors [][]float64) error {
	if len(vectors) == 0 {
		return fmt.Errorf("vector: SQ.Train requires at least one vector")
	}
	dim := len(vectors[0])
	min := append([]float64(nil), vectors[0]...)
	max := append([]float64(nil), vectors[0]...)
	for _, v := range vectors[1:] {
		if len(v) != dim {
			return validateDim(len(v), dim)
		}
		for d, f := range v {
			if f < min[d] {
				min[d] = f
			}
			if f > max[d] {
				max[d] = f
			}
		}
	}
	maxQuant := float64((uint64(1) << uint(q.bits)) - 1)
	scale := make([]float64, dim)
	for d := range scale {
		r := max[d] - min[d]
		if r < floatTolerance {
			// Degenerate zero-range dimension: every value quantizes to 0.
			scale[d] = 1
		} else {
			scale[d] = r / maxQuant
		}
	}

	q.dim = dim
	q.min = min
	q.max = max
	q.scale = scale
	q.trained = true
	return nil
}

// Encode rounds (v[d]-min[d])/scale[d] to the nearest integer, clamping to
// [0, maxQuantValue], and packs the per-dimension codes `bits` bits wide.
func (q *ScalarQuantizer) Encode(v []float64) ([]byte, error) {
	if !q.trained {
		return nil, ErrNotTrained
	}
	if err := validateDim(len(v), q.dim); err != nil {
		return nil, err
	}
	maxQuant := q.maxQuantValue()
	codes := make([]int, q.dim)
	for d, f := range v {
		c := math.Round((f - q.min[d]) / q.scale[d])
		codes[d] = int(mathutil.Clamp(c, 0, maxQuant))
	}
	return packCodes(codes, q.bits), nil
}

// Decode reconstructs an approximate vector: min[d] + code[d]*scale[d].
func (q *ScalarQuantizer) Decode(code []byte) ([]float64, error) {
	if !q.trained {
		return nil, ErrNotTrained
	}
	codes, err := unpackCodes(code, q.bits, q.dim)
	if err != nil {
		return nil, err
	}
	out := make([]float64, q.dim)
	for d, c := range codes {
		out[d] = q.min[d] + float64(c)*q.scale[d]
	}
	return out, nil
}

// Distance decodes code and compares it against v under q's configured
// metric. Dot-product distance is returned negated, per §4.7, so that
// ascending distance still means descending similarity.
func (q *ScalarQuantizer) Distance(v []float64, code []byte) (float64, error) {
	decoded, err := q.Decode(code)
	if err != nil {
		return 0, err
	}
	switch q.metric {
	case Cosine:
		return cosineDistance(v, decoded), nil
	case DotProduct:
		return -dotProduct(v, decoded), nil
	default:
		return euclideanDistance(v, decoded), nil
	}
}

// packCodes packs len(codes) integers, each < 2^bits, into bytes. For
// bits==4 two codes share a byte, the first occupying the lower nibble
// (§4.7 "lower nibble first").
func packCodes(codes []int, bits int) []byte {
	if bits == 8 {
		out := make([]byte, len(codes))
		for i, c := range codes {
			out[i] = byte(c)
		}
		return out
	}
	out := make([]byte, (len(codes)+1)/2)
	for i, c := range codes {
		b := byte(c) & 0x0F
		if i%2 == 0 {
			out[i/2] = b
		} else {
			out[i/2] |= b << 4
		}
	}
	return out
}

func unpackCodes(data []byte, bits, dim int) ([]int, error) {
	if bits == 8 {
		if len(data) != dim {
			return nil, fmt.Errorf("vector: SQ code length %d, want %d", len(data), dim)
		}
		out := make([]int, dim)
		for i, b := range data {
			out[i] = int(b)
		}
		return out, nil
	}
	want := (dim + 1) / 2
	if len(data) != want {
		return nil, fmt.Errorf("vector: SQ code length %d, want %d", len(data), want)
	}
	out := make([]int, dim)
	for i := 0; i < dim; i++ {
		b := data[i/2]
		if i%2 == 0 {
			out[i] = int(b & 0x0F)
		} else {
			out[i] = int(b >> 4)
		}
	}
	return out, nil
}

// Serialize renders the trained codebook as SQ01-magic bytes: magic, dim,
// bits, then per-dimension min/max float64 pairs (scale is recomputed on
// load rather than stored twice).
func (q *ScalarQuantizer) Serialize() ([]byte, error) {
	if !q.trained {
		return nil, ErrNotTrained
	}
	buf := make([]byte, 0, 4+8+q.dim*16)
	buf = append(buf, sqMagic...)
	buf = appendUint32(buf, uint32(q.dim))
	buf = appendUint32(buf, uint32(q.bits))
	for d := 0; d < q.dim; d++ {
		buf = appendUint64(buf, math.Float64bits(q.min[d]))
		buf = appendUint64(buf, math.Float64bits(q.max[d]))
	}
	return buf, nil
}

// Deserialize restores codebook state from bytes previously produced by
// Serialize, validating the SQ01 magic and bit width against q's own
// configuration.
func (q *ScalarQuantizer) Deserialize(data []byte) error {
	if len(data) < 12 {
		return fmt.Errorf("vector: SQ codebook truncated")
	}
	if string(data[:4]) != sqMagic {
		return fmt.Errorf("vector: SQ codebook has bad magic %q, want %q", data[:4], sqMagic)
	}
	dim := int(binary.BigEndian.Uint32(data[4:8]))
	bits := int(binary.BigEndian.Uint32(data[8:12]))
	if bits != q.bits {
		return fmt.Errorf("vector: SQ codebook has bits=%d, want %d", bits, q.bits)
	}
	want := 12 + dim*16
	if len(data) != want {
		return fmt.Errorf("vector: SQ codebook length %d, want %d", len(data), want)
	}

	off := 12
	min := make([]float64, dim)
	max := make([]float64, dim)
	scale := make([]float64, dim)
	maxQuant := float64((uint64(1) << uint(bits)) - 1)
	for d := 0; d < dim; d++ {
		min[d] = math.Float64frombits(binary.BigEndian.Uint64(data[off : off+8]))
		off += 8
		max[d] = math.Float64frombits(binary.BigEndian.Uint64(data[off : off+8]))
		off += 8
		r := max[d] - min[d]
		if r < floatTolerance {
			scale[d] = 1
		} else {
			scale[d] = r / maxQuant
		}
	}

	q.dim = dim
	q.min = min
	q.max = max
	q.scale = scale
	q.trained = true
	return nil
}
