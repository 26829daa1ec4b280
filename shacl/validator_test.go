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

package shacl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fusiondb/fusion-index/fieldvalue"
	"github.com/fusiondb/fusion-index/graph"
	"github.com/fusiondb/fusion-index/kv"
	"github.com/fusiondb/fusion-index/kv/memkv"
	"github.com/fusiondb/fusion-index/tuple"
)

func newTestStore(t *testing.T) (kv.RwDB, *graph.EdgeStore) {
	t.Helper()
	db := memkv.New()
	store := graph.NewEdgeStore(tuple.NewSubspace([]byte("g")), graph.TripleStore)
	return db, store
}

func writeEdges(t *testing.T, db kv.RwDB, store *graph.EdgeStore, edges []graph.Edge) {
	t.Helper()
	ctx := context.Background()
	err := db.Update(ctx, func(tx kv.RwTx) error {
		for _, e := range edges {
			if err := store.Write(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

// TestClosedConstraintRejectsUndeclaredPredicate is spec scenario #5: a
// closed node shape declaring property shapes on {name, age} with
// sh:ignoredProperties=[rdf:type] over a focus node carrying
// {rdf:type, name, age, secret} reports exactly one violation, for secret.
func TestClosedConstraintRejectsUndeclaredPredicate(t *testing.T) {
	db, store := newTestStore(t)

	alice := IRI([]byte("ex:alice"))
	edges := []graph.Edge{
		{From: EncodeNode(alice), Label: RDFType, To: EncodeNode(IRI([]byte("ex:Person")))},
		{From: EncodeNode(alice), Label: []byte("ex:name"), To: EncodeNode(Literal(fieldvalue.String("Alice")))},
		{From: EncodeNode(alice), Label: []byte("ex:age"), To: EncodeNode(Literal(fieldvalue.Int64(30)))},
		{From: EncodeNode(alice), Label: []byte("ex:secret"), To: EncodeNode(Literal(fieldvalue.String("shh")))},
	}
	writeEdges(t, db, store, edges)

	shape := NodeShape{
		IRI: []byte("ex:PersonShape"),
		Targets: []Target{
			{Kind: TargetNode, Value: []byte("ex:alice")},
		},
		PropertyShapes: []PropertyShape{
			{Path: graph.IRIPath{Label: []byte("ex:name")}, Constraints: []Constraint{MinCountConstraint{Min: 1}}},
			{Path: graph.IRIPath{Label: []byte("ex:age")}, Constraints: []Constraint{MinCountConstraint{Min: 1}}},
		},
		Closed:            true,
		IgnoredProperties: [][]byte{RDFType},
	}

	val := NewValidator(store, ShapesGraph{Shapes: []NodeShape{shape}})

	ctx := context.Background()
	var report ValidationReport
	err := db.View(ctx, func(tx kv.Tx) error {
		var err error
		report, err = val.Validate(ctx, tx)
		return err
	})
	require.NoError(t, err)

	require.False(t, report.Conforms)
	require.Len(t, report.Violations, 1)
	require.Equal(t, "closed", report.Violations[0].SourceConstraintComponent)
}

func TestMinCountConstraintDetectsMissingValue(t *testing.T) {
	db, store := newTestStore(t)

	bob := IRI([]byte("ex:bob"))
	writeEdges(t, db, store, []graph.Edge{
		{From: EncodeNode(bob), Label: RDFType, To: EncodeNode(IRI([]byte("ex:Person")))},
	})

	shape := NodeShape{
		IRI:     []byte("ex:PersonShape"),
		Targets: []Target{{Kind: TargetNode, Value: []byte("ex:bob")}},
		PropertyShapes: []PropertyShape{
			{Path: graph.IRIPath{Label: []byte("ex:name")}, Constraints: []Constraint{MinCountConstraint{Min: 1}}},
		},
	}
	val := NewValidator(store, ShapesGraph{Shapes: []NodeShape{shape}})

	ctx := context.Background()
	var report ValidationReport
	err := db.View(ctx, func(tx kv.Tx) error {
		var err error
		report, err = val.Validate(ctx, tx)
		return err
	})
	require.NoError(t, err)
	require.False(t, report.Conforms)
	require.Len(t, report.Violations, 1)
	require.Equal(t, "minCount", report.Violations[0].SourceConstraintComponent)
}

func TestTargetClassResolvesAllInstances(t *testing.T) {
	db, store := newTestStore(t)

	personClass := IRI([]byte("ex:Person"))
	writeEdges(t, db, store, []graph.Edge{
		{From: EncodeNode(IRI([]byte("ex:alice"))), Label: RDFType, To: EncodeNode(personClass)},
		{From: EncodeNode(IRI([]byte("ex:bob"))), Label: RDFType, To: EncodeNode(personClass)},
		{From: EncodeNode(IRI([]byte("ex:alice"))), Label: []byte("ex:name"), To: EncodeNode(Literal(fieldvalue.String("Alice")))},
	})

	shape := NodeShape{
		IRI:     []byte("ex:PersonShape"),
		Targets: []Target{{Kind: TargetClass, Value: []byte("ex:Person")}},
		PropertyShapes: []PropertyShape{
			{Path: graph.IRIPath{Label: []byte("ex:name")}, Constraints: []Constraint{MinCountConstraint{Min: 1}}},
		},
	}
	val := NewValidator(store, ShapesGraph{Shapes: []NodeShape{shape}})

	ctx := context.Background()
	var report ValidationReport
	err := db.View(ctx, func(tx kv.Tx) error {
		var err error
		report, err = val.Validate(ctx, tx)
		return err
	})
	require.NoError(t, err)

	// Only bob lacks ex:name.
	require.False(t, report.Conforms)
	require.Len(t, report.Violations, 1)
}

func TestPatternConstraintRejectsNonMatchingLiteral(t *testing.T) {
	db, store := newTestStore(t)

	alice := IRI([]byte("ex:alice"))
	writeEdges(t, db, store, []graph.Edge{
		{From: EncodeNode(alice), Label: []byte("ex:code"), To: EncodeNode(Literal(fieldvalue.String("abc123")))},
	})

	shape := NodeShape{
		IRI:     []byte("ex:CodeShape"),
		Targets: []Target{{Kind: TargetNode, Value: []byte("ex:alice")}},
		PropertyShapes: []PropertyShape{
			{Path: graph.IRIPath{Label: []byte("ex:code")}, Constraints: []Constraint{
				PatternConstraint{Pattern: `^[0-9]+$`},
			}},
		},
	}
	val := NewValidator(store, ShapesGraph{Shapes: []NodeShape{shape}})

	ctx := context.Background()
	var report ValidationReport
	err := db.View(ctx, func(tx kv.Tx) error {
		var err error
		report, err = val.Validate(ctx, tx)
		return err
	})
	require.NoError(t, err)
	require.False(t, report.Conforms)
	require.Len(t, report.Violations, 1)
	require.Equal(t, "pattern", report.Violations[0].SourceConstraintComponent)
}

func TestAndConstraintRequiresEveryBranch(t *testing.T) {
	db, store := newTestStore(t)

	alice := IRI([]byte("ex:alice"))
	writeEdges(t, db, store, []graph.Edge{
		{From: EncodeNode(alice), Label: []byte("ex:age"), To: EncodeNode(Literal(fieldvalue.Int64(15)))},
	})

	ageShape := NodeShape{
		Constraints: []Constraint{
			DatatypeConstraint{Datatype: fieldvalue.KindInt64},
			RangeConstraint{Kind: cmpMinInclusive, Bound: fieldvalue.Int64(18)},
		},
	}
	shape := NodeShape{
		IRI:     []byte("ex:AdultShape"),
		Targets: []Target{{Kind: TargetNode, Value: []byte("ex:alice")}},
		PropertyShapes: []PropertyShape{
			{Path: graph.IRIPath{Label: []byte("ex:age")}, Constraints: []Constraint{
				AndConstraint{Shapes: []NodeShape{ageShape}},
			}},
		},
	}
	val := NewValidator(store, ShapesGraph{Shapes: []NodeShape{shape}})

	ctx := context.Background()
	var report ValidationReport
	err := db.View(ctx, func(tx kv.Tx) error {
		var err error
		report, err = val.Validate(ctx, tx)
		return err
	})
	require.NoError(t, err)
	require.False(t, report.Conforms)
}
