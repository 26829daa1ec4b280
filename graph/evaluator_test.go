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

package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fusiondb/fusion-index/kv"
)

func bindingStrings(rows []Binding, varName string) []string {
	var out []string
	for _, row := range rows {
		v, ok := row[varName]
		if !ok {
			continue
		}
		b, _ := v.Bytes()
		out = append(out, string(b))
	}
	return out
}

// Spec scenario #4: property-path depth-3. Edges A->B->C->D along
// predicate p; the pattern (?x, p*, D) must bind ?x to every node on the
// chain including the origin A, proving the closure preserves the
// starting binding across three hops.
func TestPropertyPathZeroOrMoreDepthThreePreservesOrigin(t *testing.T) {
	ctx := context.Background()
	db, store := chainStore(t)
	ev := NewEvaluator(store)

	pattern := PropertyPathPattern{
		Subject: Var("x"),
		Path:    ZeroOrMorePath{Path: IRIPath{Label: node("p")}},
		Object:  Val(node("D")),
	}

	var rows []Binding
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		var err error
		rows, err = ev.Evaluate(ctx, tx, pattern)
		return err
	}))

	xs := bindingStrings(rows, "x")
	require.Contains(t, xs, "A")
	require.ElementsMatch(t, []string{"A", "B", "C", "D"}, xs)
}

func TestPropertyPathOneOrMoreExcludesOrigin(t *testing.T) {
	ctx := context.Background()
	db, store := chainStore(t)
	ev := NewEvaluator(store)

	pattern := PropertyPathPattern{
		Subject: Var("x"),
		Path:    OneOrMorePath{Path: IRIPath{Label: node("p")}},
		Object:  Val(node("D")),
	}

	var rows []Binding
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		var err error
		rows, err = ev.Evaluate(ctx, tx, pattern)
		return err
	}))

	xs := bindingStrings(rows, "x")
	require.ElementsMatch(t, []string{"A", "B", "C"}, xs)
}

func TestPropertyPathSequence(t *testing.T) {
	ctx := context.Background()
	db, store := chainStore(t)
	ev := NewEvaluator(store)

	pattern := PropertyPathPattern{
		Subject: Val(node("A")),
		Path: SequencePath{
			Left:  IRIPath{Label: node("p")},
			Right: IRIPath{Label: node("p")},
		},
		Object: Var("x"),
	}

	var rows []Binding
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		var err error
		rows, err = ev.Evaluate(ctx, tx, pattern)
		return err
	}))

	xs := bindingStrings(rows, "x")
	require.Equal(t, []string{"C"}, xs)
}

// Subject unbound, object bound: subject --inverse(p)--> object holds iff
// object-p->subject, so B's inverse(p) neighbor is C (B-p->C).
func TestPropertyPathInverseFromBoundObject(t *testing.T) {
	ctx := context.Background()
	db, store := chainStore(t)
	ev := NewEvaluator(store)

	pattern := PropertyPathPattern{
		Subject: Var("x"),
		Path:    InversePath{Path: IRIPath{Label: node("p")}},
		Object:  Val(node("B")),
	}

	var rows []Binding
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		var err error
		rows, err = ev.Evaluate(ctx, tx, pattern)
		return err
	}))

	xs := bindingStrings(rows, "x")
	require.Equal(t, []string{"C"}, xs)
}

// Subject bound, object unbound: B --inverse(p)--> x holds iff x-p->B, so
// the only match is x=A (A-p->B).
func TestPropertyPathInverseFromBoundSubject(t *testing.T) {
	ctx := context.Background()
	db, store := chainStore(t)
	ev := NewEvaluator(store)

	pattern := PropertyPathPattern{
		Subject: Val(node("B")),
		Path:    InversePath{Path: IRIPath{Label: node("p")}},
		Object:  Var("x"),
	}

	var rows []Binding
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		var err error
		rows, err = ev.Evaluate(ctx, tx, pattern)
		return err
	}))

	xs := bindingStrings(rows, "x")
	require.Equal(t, []string{"A"}, xs)
}

func TestBasicPatternJoinsTwoTriples(t *testing.T) {
	ctx := context.Background()
	db, store := chainStore(t)
	ev := NewEvaluator(store)

	pattern := BasicPattern{Triples: []Triple{
		{Subject: Val(node("A")), Predicate: Val(node("p")), Object: Var("mid")},
		{Subject: Var("mid"), Predicate: Val(node("p")), Object: Var("x")},
	}}

	var rows []Binding
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		var err error
		rows, err = ev.Evaluate(ctx, tx, pattern)
		return err
	}))

	require.Len(t, rows, 1)
	mid := bindingStrings(rows, "mid")
	xs := bindingStrings(rows, "x")
	require.Equal(t, []string{"B"}, mid)
	require.Equal(t, []string{"C"}, xs)
}

func TestMinusExcludesSharedBindings(t *testing.T) {
	ctx := context.Background()
	db, store := chainStore(t)
	ev := NewEvaluator(store)

	pattern := MinusPattern{
		Left: BasicPattern{Triples: []Triple{
			{Subject: Var("x"), Predicate: Val(node("p")), Object: Var("y")},
		}},
		Right: BasicPattern{Triples: []Triple{
			{Subject: Val(node("A")), Predicate: Val(node("p")), Object: Var("y")},
		}},
	}

	var rows []Binding
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		var err error
		rows, err = ev.Evaluate(ctx, tx, pattern)
		return err
	}))

	xs := bindingStrings(rows, "x")
	require.ElementsMatch(t, []string{"B", "C"}, xs)
}

func TestOptionalPreservesUnmatchedLeftRows(t *testing.T) {
	ctx := context.Background()
	db, store := chainStore(t)
	ev := NewEvaluator(store)

	pattern := OptionalPattern{
		Left: BasicPattern{Triples: []Triple{
			{Subject: Var("x"), Predicate: Val(node("p")), Object: Val(node("D"))},
		}},
		Right: BasicPattern{Triples: []Triple{
			{Subject: Var("x"), Predicate: Val(node("q")), Object: Var("never")},
		}},
	}

	var rows []Binding
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		var err error
		rows, err = ev.Evaluate(ctx, tx, pattern)
		return err
	}))

	require.Len(t, rows, 1)
	require.Equal(t, []string{"C"}, bindingStrings(rows, "x"))
	_, hasNever := rows[0]["never"]
	require.False(t, hasNever)
}
