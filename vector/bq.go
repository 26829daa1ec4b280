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
	"math/bits"
	"sort"

	"github.com/fusiondb/fusion-index/internal/mathutil"
)

const bqMagic = "BQ01"

// BinaryThreshold selects how BinaryQuantizer.Train picks each dimension's
// bit threshold.
type BinaryThreshold int

const (
	// ThresholdSign quantizes around zero: bit = v >= 0.
	ThresholdSign BinaryThreshold = iota
	// ThresholdMedian learns each dimension's median from the training
	// sample.
	ThresholdMedian
)

// bqRescoringFactor is BQ's recommended over-fetch multiple: retrieve
// k*bqRescoringFactor candidates by Hamming distance, then re-rank by an
// exact distance over the original vectors (§4.7 "recommended search").
const bqRescoringFactor = 10

// BinaryQuantizer sign- or median-quantizes each dimension to a single bit
// and packs D bits into ceil(D/64) 64-bit words, comparing codes by
// Hamming distance with a hardware popcount (§4.7 BQ).
type BinaryQuantizer struct {
	mode      BinaryThreshold
	dim       int
	words     int
	trained   bool
	threshold []float64
}

// NewBinaryQuantizer returns an untrained BQ using mode to pick per-
// dimension thresholds.
func NewBinaryQuantizer(mode BinaryThreshold) *BinaryQuantizer {
	return &BinaryQuantizer{mode: mode}
}

func (q *BinaryQuantizer) Trained() bool { return q.trained }
func (q *BinaryQuantizer) Dim() int      { return q.dim }

// RescoringFactor returns the recommended candidate over-fetch multiple
// for a BQ-backed ANN search (§4.7).
func (q *BinaryQuantizer) RescoringFactor() int { return bqRescoringFactor }

// Train learns a per-dimension threshold: zero for ThresholdSign, the
// sample median for ThresholdMedian (§4.7 "sign quantization by default,
// or learned median").
func (q *BinaryQuantizer) Train(vectors [][]float64) error {
	if len(vectors) == 0 {
		return fmt.Errorf("vector: BQ.Train requires at least one vector")
	}
	dim := len(vectors[0])
	threshold := make([]float64, dim)

	switch q.mode {
	case ThresholdSign:
		// threshold stays all-zero.
	case ThresholdMedian:
		column := make([]float64, len(vectors))
		for d := 0; d < dim; d++ {
			for i, v := range vectors {
				if len(v) != dim {
					return validateDim(len(v), dim)
				}
				column[i] = v[d]
			}
			sort.Float64s(column)
			threshold[d] = column[len(column)/2]
		}
	default:
		return fmt.Errorf("vector: unknown BQ threshold mode %d", q.mode)
	}

	q.dim = dim
	q.words = mathutil.CeilDiv(dim, 64)
	q.threshold = threshold
	q.trained = true
	return nil
}

// Encode sets bit d iff v[d] >= threshold[d], packing D bits into
// ceil(D/64) 64-bit words.
func (q *BinaryQuantizer) Encode(v []float64) ([]byte, error) {
	if !q.trained {
		return nil, ErrNotTrained
	}
	if err := validateDim(len(v), q.dim); err != nil {
		return nil, err
	}
	words := make([]uint64, q.words)
	for d, f := range v {
		if f >= q.threshold[d] {
			words[d/64] |= 1 << uint(d%64)
		}
	}
	return wordsToBytes(words), nil
}

// Decode reconstructs an approximate vector by mapping each bit back to
// its dimension's threshold (set) or threshold-1 (unset) -- a coarse
// reconstruction useful only for sanity checks, since BQ's intended use is
// Hamming-distance search followed by exact rescoring over the original
// vectors, not decode-based reconstruction.
func (q *BinaryQuantizer) Decode(code []byte) ([]float64, error) {
	if !q.trained {
		return nil, ErrNotTrained
	}
	words, err := bytesToWords(code, q.words)
	if err != nil {
		return nil, err
	}
	out := make([]float64, q.dim)
	for d := range out {
		if words[d/64]&(1<<uint(d%64)) != 0 {
			out[d] = q.threshold[d]
		} else {
			out[d] = q.threshold[d] - 1
		}
	}
	return out, nil
}

// Hamming returns the Hamming distance between two codes: XOR followed by
// a hardware popcount per word (§4.7 "mandatory hardware popcount").
func Hamming(a, b []byte) (int, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector: Hamming code length mismatch: %d vs %d", len(a), len(b))
	}
	wa, err := bytesToWords(a, len(a)/8)
	if err != nil {
		return 0, err
	}
	wb, err := bytesToWords(b, len(b)/8)
	if err != nil {
		return 0, err
	}
	var dist int
	for i := range wa {
		dist += bits.OnesCount64(wa[i] ^ wb[i])
	}
	return dist, nil
}

// ApproximateCosineDistance estimates cosine distance from Hamming
// distance over D-bit codes: 2*hamming/D (§4.7 "approximate cosine
// distance").
func (q *BinaryQuantizer) ApproximateCosineDistance(a, b []byte) (float64, error) {
	h, err := Hamming(a, b)
	if err != nil {
		return 0, err
	}
	return 2 * float64(h) / float64(q.dim), nil
}

func wordsToBytes(words []uint64) []byte {
	out := make([]byte, len(words)*8)
	for i, w := range words {
		binary.BigEndian.PutUint64(out[i*8:], w)
	}
	return out
}

func bytesToWords(data []byte, words int) ([]uint64, error) {
	if len(data) != words*8 {
		return nil, fmt.Errorf("vector: BQ code length %d, want %d", len(data), words*8)
	}
	out := make([]uint64, words)
	for i := range out {
		out[i] = binary.BigEndian.Uint64(data[i*8:])
	}
	return out, nil
}

// Serialize renders the trained codebook as BQ01-magic bytes: magic, dim,
// mode, then dim float64 per-dimension thresholds.
func (q *BinaryQuantizer) Serialize() ([]byte, error) {
	if !q.trained {
		return nil, ErrNotTrained
	}
	buf := make([]byte, 0, 4+8+q.dim*8)
	buf = append(buf, bqMagic...)
	buf = appendUint32(buf, uint32(q.dim))
	buf = appendUint32(buf, uint32(q.mode))
	for _, t := range q.threshold {
		buf = appendUint64(buf, math.Float64bits(t))
	}
	return buf, nil
}

// Deserialize restores codebook state from bytes previously produced by
// Serialize, validating the BQ01 magic and the length. The stored
// threshold mode replaces q's own.
func (q *BinaryQuantizer) Deserialize(data []byte) error {
	if len(data) < 12 {
		return fmt.Errorf("vector: BQ codebook truncated")
	}
	if string(data[:4]) != bqMagic {
		return fmt.Errorf("vector: BQ codebook has bad magic %q, want %q", data[:4], bqMagic)
	}
	dim := int(binary.BigEndian.Uint32(data[4:8]))
	mode := BinaryThreshold(binary.BigEndian.Uint32(data[8:12]))
	want := 12 + dim*8
	if len(data) != want {
		return fmt.Errorf("vector: BQ codebook length %d, want %d", len(data), want)
	}

	off := 12
	threshold := make([]float64, dim)
	for d := 0; d < dim; d++ {
		threshold[d] = math.Float64frombits(binary.BigEndian.Uint64(data[off : off+8]))
		off += 8
	}

	q.dim = dim
	q.words = mathutil.CeilDiv(dim, 64)
	q.mode = mode
	q.threshold = threshold
	q.trained = true
	return nil
}
