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

// Package vector implements the product, scalar, and binary quantizers
// (§4.7), their codebook trainer, and a flat brute-force maintainer backed
// by a bounded max-heap. Every quantizer trains from and searches over
// plain []float64 vectors; conversion to/from a schema.Record's indexed
// field happens at the maintainer boundary, not inside the quantizers
// themselves.
package vector

import (
	"fmt"
	"math"

	"github.com/fusiondb/fusion-index/fieldvalue"
)

// Metric selects the distance function a quantizer's Distance/prepareQuery
// step computes over (§4.7 SQ "Euclidean, cosine, dot-product").
type Metric int

const (
	Euclidean Metric = iota
	Cosine
	DotProduct
)

// floatTolerance guards the degenerate zero-range and zero-norm cases SQ's
// cosine metric and PQ/SQ's training both need to avoid dividing by zero
// (§4.7 "tolerance 1e-10 guards zero-range degeneracies").
const floatTolerance = 1e-10

// maxCosineDistance is SQ's returned distance for a degenerate (zero-norm)
// cosine comparison -- equal to the largest real cosine distance (2.0, for
// opposite vectors), so it never ranks ahead of any real match in a top-k.
const maxCosineDistance = 2.0

// Quantizer is the common shape PQ, SQ, and BQ each implement (§4.7).
// Train/Encode/Decode/Serialize/Deserialize round-trip a codebook; a
// maintainer calls Encode once per vector once a codebook is trained, and
// Distance (via a query's prepared state) during search.
type Quantizer interface {
	// Trained reports whether Train has succeeded at least once.
	Trained() bool

	// Dim returns the vector dimensionality this quantizer was trained
	// for. Valid only once Trained() is true.
	Dim() int

	// Train fits the quantizer's codebook from a sample of vectors, all
	// of the same dimensionality.
	Train(vectors [][]float64) error

	// Encode compresses v into a quantized code. Train must have
	// succeeded first.
	Encode(v []float64) ([]byte, error)

	// Decode reconstructs an approximate vector from a code.
	Decode(code []byte) ([]float64, error)

	// Serialize renders the trained codebook as bytes, magic-prefixed
	// per §4.7/§6 ("Codebook: index/_meta/codebook/<quantizerType>").
	Serialize() ([]byte, error)

	// Deserialize restores codebook state from bytes previously produced
	// by Serialize, validating the magic and the encoded length (PQ also
	// checks M/K, and SQ the bit width, against its own configuration).
	Deserialize(data []byte) error
}

func euclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func dotProduct(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(a []float64) float64 {
	return math.Sqrt(dotProduct(a, a))
}

// cosineDistance returns 1 - cosine similarity, saturating at
// maxCosineDistance when either vector has near-zero norm (§4.7 "guarded
// by floatTolerance").
func cosineDistance(a, b []float64) float64 {
	na, nb := norm(a), norm(b)
	if na < floatTolerance || nb < floatTolerance {
		return maxCosineDistance
	}
	return 1 - dotProduct(a, b)/(na*nb)
}

// FloatsFromFieldValue converts a fieldvalue.FieldValue holding an array of
// numeric elements into a plain []float64, the shape every quantizer
// trains and encodes against.
func FloatsFromFieldValue(v fieldvalue.FieldValue) ([]float64, error) {
	elems, ok := v.Array()
	if !ok {
		return nil, fmt.Errorf("vector: field value of kind %d is not an array", v.Kind())
	}
	out := make([]float64, len(elems))
	for i, e := range elems {
		switch e.Kind() {
		case fieldvalue.KindFloat64:
			f, _ := e.Float64()
			out[i] = f
		case fieldvalue.KindInt64:
			n, _ := e.Int64()
			out[i] = float64(n)
		default:
			return nil, fmt.Errorf("vector: array element %d has non-numeric kind %d", i, e.Kind())
		}
	}
	return out, nil
}

// FieldValueFromFloats is FloatsFromFieldValue's inverse, for callers that
// need to round-trip a decoded/reconstructed vector back into a Record's
// indexed shape (e.g. exact-distance rescoring over a BQ candidate set).
func FieldValueFromFloats(vs []float64) fieldvalue.FieldValue {
	elems := make([]fieldvalue.FieldValue, len(vs))
	for i, f := range vs {
		elems[i] = fieldvalue.Float64(f)
	}
	return fieldvalue.Array(elems...)
}

func validateDim(have, want int) error {
	if have != want {
		return fmt.Errorf("vector: dimension mismatch: got %d, want %d", have, want)
	}
	return nil
}

// ErrNotTrained is returned by Encode/Distance/prepareQuery calls made
// before Train (or a successful Deserialize) has populated the codebook.
var ErrNotTrained = fmt.Errorf("vector: quantizer is not trained")
