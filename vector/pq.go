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
	"math/rand"
)

const pqMagic = "PQ02"

// pqMaxIterations bounds Lloyd's algorithm; k-means over a few hundred
// thousand 128-d vectors converges well before this in practice, and a
// hard cap keeps Train's cost bounded regardless of input.
const pqMaxIterations = 25

// ProductQuantizer splits a D-vector into M sub-vectors of width D/M and
// trains one K-centroid codebook per subspace (§4.7 PQ). A code is M bytes
// of centroid indices, so K must fit in a byte (K <= 256).
type ProductQuantizer struct {
	m, k    int
	dim     int
	subDim  int
	trained bool
	// centroids[sub][centroid] is a subDim-length vector.
	centroids [][][]float64
	rng       *rand.Rand
}

// NewProductQuantizer returns an untrained PQ splitting vectors into m
// subspaces of k centroids each. rng seeds k-means++ init and the
// empty-cluster reseeding step; a nil rng defaults to one with the fixed
// seed 1.
func NewProductQuantizer(m, k int, rng *rand.Rand) *ProductQuantizer {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &ProductQuantizer{m: m, k: k, rng: rng}
}

func (q *ProductQuantizer) Trained() bool { return q.trained }
func (q *ProductQuantizer) Dim() int      { return q.dim }

// Train fits one k-means codebook per subspace from vectors (§4.7
// "k-means++ init; empty clusters replaced by a random sample vector").
// Preconditions: D % M == 0.
func (q *ProductQuantizer) Train(vectors [][]float64) error {
	if len(vectors) == 0 {
		return fmt.Errorf("vector: PQ.Train requires at least one vector")
	}
	dim := len(vectors[0])
	if dim%q.m != 0 {
		return fmt.Errorf("vector: PQ dimension %d is not divisible by M=%d", dim, q.m)
	}
	if q.k > 256 {
		return fmt.Errorf("vector: PQ K=%d exceeds the 256-centroid byte-code limit", q.k)
	}
	subDim := dim / q.m

	centroids := make([][][]float64, q.m)
	for sub := 0; sub < q.m; sub++ {
		sample := make([][]float64, len(vectors))
		for i, v := range vectors {
			if len(v) != dim {
				return validateDim(len(v), dim)
			}
			sample[i] = v[sub*subDim : (sub+1)*subDim]
		}
		centroids[sub] = kMeans(sample, q.k, pqMaxIterations, q.rng)
	}

	q.dim = dim
	q.subDim = subDim
	q.centroids = centroids
	q.trained = true
	return nil
}

// kMeans runs Lloyd's algorithm seeded by k-means++ over samples,
// replacing any cluster that ends up empty after an assignment pass with a
// freshly drawn random sample vector (§4.7).
func kMeans(samples [][]float64, k, maxIter int, rng *rand.Rand) [][]float64 {
	centroids := kMeansPlusPlusInit(samples, k, rng)
	assign := make([]int, len(samples))

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, s := range samples {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				d := squaredDistance(s, centroid)
				if d < bestDist {
					best, bestDist = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, len(samples[0]))
		}
		for i, s := range samples {
			c := assign[i]
			counts[c]++
			for d, v := range s {
				sums[c][d] += v
			}
		}

		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				centroids[c] = append([]float64(nil), samples[rng.Intn(len(samples))]...)
				continue
			}
			mean := make([]float64, len(sums[c]))
			for d := range mean {
				mean[d] = sums[c][d] / float64(counts[c])
			}
			centroids[c] = mean
		}

		if !changed && iter > 0 {
			break
		}
	}
	return centroids
}

// kMeansPlusPlusInit seeds k centroids from samples, each draw weighted by
// its squared distance to the nearest centroid already chosen.
func kMeansPlusPlusInit(samples [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := samples[rng.Intn(len(samples))]
	centroids = append(centroids, append([]float64(nil), first...))

	dist := make([]float64, len(samples))
	for len(centroids) < k {
		var total float64
		for i, s := range samples {
			best := math.Inf(1)
			for _, c := range centroids {
				if d := squaredDistance(s, c); d < best {
					best = d
				}
			}
			dist[i] = best
			total += best
		}
		if total < floatTolerance {
			// Degenerate: every remaining sample coincides with an
			// existing centroid. Fill the rest with random draws.
			centroids = append(centroids, append([]float64(nil), samples[rng.Intn(len(samples))]...))
			continue
		}
		target := rng.Float64() * total
		var cum float64
		chosen := len(samples) - 1
		for i, d := range dist {
			cum += d
			if cum >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), samples[chosen]...))
	}
	return centroids
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Encode assigns each subspace of v to its nearest centroid, yielding an
// M-byte code.
func (q *ProductQuantizer) Encode(v []float64) ([]byte, error) {
	if !q.trained {
		return nil, ErrNotTrained
	}
	if err := validateDim(len(v), q.dim); err != nil {
		return nil, err
	}
	code := make([]byte, q.m)
	for sub := 0; sub < q.m; sub++ {
		part := v[sub*q.subDim : (sub+1)*q.subDim]
		best, bestDist := 0, math.Inf(1)
		for c, centroid := range q.centroids[sub] {
			if d := squaredDistance(part, centroid); d < bestDist {
				best, bestDist = c, d
			}
		}
		code[sub] = byte(best)
	}
	return code, nil
}

// Decode reconstructs an approximate vector by concatenating each
// subspace's assigned centroid.
func (q *ProductQuantizer) Decode(code []byte) ([]float64, error) {
	if !q.trained {
		return nil, ErrNotTrained
	}
	if len(code) != q.m {
		return nil, fmt.Errorf("vector: PQ code length %d, want %d", len(code), q.m)
	}
	out := make([]float64, q.dim)
	for sub := 0; sub < q.m; sub++ {
		centroid := q.centroids[sub][code[sub]]
		copy(out[sub*q.subDim:(sub+1)*q.subDim], centroid)
	}
	return out, nil
}

// PQQuery is ADC's precomputed query-side state (§4.7, §GLOSSARY ADC): an
// M*K table of squared distances from q's subspaces to every centroid, so
// Distance(code) becomes M table lookups instead of an O(D) comparison.
type PQQuery struct {
	q      *ProductQuantizer
	tables [][]float64 // tables[sub][centroid]
}

// PrepareQuery builds the asymmetric-distance-computation tables for q.
func (q *ProductQuantizer) PrepareQuery(v []float64) (*PQQuery, error) {
	if !q.trained {
		return nil, ErrNotTrained
	}
	if err := validateDim(len(v), q.dim); err != nil {
		return nil, err
	}
	tables := make([][]float64, q.m)
	for sub := 0; sub < q.m; sub++ {
		part := v[sub*q.subDim : (sub+1)*q.subDim]
		table := make([]float64, len(q.centroids[sub]))
		for c, centroid := range q.centroids[sub] {
			table[c] = squaredDistance(part, centroid)
		}
		tables[sub] = table
	}
	return &PQQuery{q: q, tables: tables}, nil
}

// Distance sums the prepared query's M table lookups for code and returns
// the square root, the asymmetric approximation to Euclidean distance
// between the original query vector and code's reconstruction.
func (pq *PQQuery) Distance(code []byte) (float64, error) {
	if len(code) != pq.q.m {
		return 0, fmt.Errorf("vector: PQ code length %d, want %d", len(code), pq.q.m)
	}
	var sum float64
	for sub, c := range code {
		sum += pq.tables[sub][c]
	}
	return math.Sqrt(sum), nil
}

// Serialize renders the trained codebook as PQ02-magic bytes: magic, dim,
// m, k, then m*k*subDim float64 centroid components in row-major order.
func (q *ProductQuantizer) Serialize() ([]byte, error) {
	if !q.trained {
		return nil, ErrNotTrained
	}
	buf := make([]byte, 0, 4+4*3+q.m*q.k*q.subDim*8)
	buf = append(buf, pqMagic...)
	buf = appendUint32(buf, uint32(q.dim))
	buf = appendUint32(buf, uint32(q.m))
	buf = appendUint32(buf, uint32(q.k))
	for sub := 0; sub < q.m; sub++ {
		for c := 0; c < q.k; c++ {
			for _, f := range q.centroids[sub][c] {
				buf = appendUint64(buf, math.Float64bits(f))
			}
		}
	}
	return buf, nil
}

// Deserialize restores codebook state from bytes previously produced by
// Serialize, validating the PQ02 magic and the header against q's own
// M/K configuration.
func (q *ProductQuantizer) Deserialize(data []byte) error {
	if len(data) < 4+12 {
		return fmt.Errorf("vector: PQ codebook truncated")
	}
	if string(data[:4]) != pqMagic {
		return fmt.Errorf("vector: PQ codebook has bad magic %q, want %q", data[:4], pqMagic)
	}
	dim := int(binary.BigEndian.Uint32(data[4:8]))
	m := int(binary.BigEndian.Uint32(data[8:12]))
	k := int(binary.BigEndian.Uint32(data[12:16]))
	if m != q.m || k != q.k {
		return fmt.Errorf("vector: PQ codebook has M=%d,K=%d, want M=%d,K=%d", m, k, q.m, q.k)
	}
	if dim%m != 0 {
		return fmt.Errorf("vector: PQ codebook dimension %d is not divisible by M=%d", dim, m)
	}
	subDim := dim / m
	want := 16 + m*k*subDim*8
	if len(data) != want {
		return fmt.Errorf("vector: PQ codebook length %d, want %d", len(data), want)
	}

	off := 16
	centroids := make([][][]float64, m)
	for sub := 0; sub < m; sub++ {
		centroids[sub] = make([][]float64, k)
		for c := 0; c < k; c++ {
			vec := make([]float64, subDim)
			for d := 0; d < subDim; d++ {
				vec[d] = math.Float64frombits(binary.BigEndian.Uint64(data[off : off+8]))
				off += 8
			}
			centroids[sub][c] = vec
		}
	}

	q.dim = dim
	q.subDim = subDim
	q.centroids = centroids
	q.trained = true
	return nil
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}
