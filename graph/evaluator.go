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
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/fusiondb/fusion-index/fieldvalue"
	"github.com/fusiondb/fusion-index/kv"
)

// Evaluator evaluates SPARQL-style patterns over an EdgeStore (§4.5).
type Evaluator struct {
	store *EdgeStore
}

// NewEvaluator returns an Evaluator over store.
func NewEvaluator(store *EdgeStore) *Evaluator {
	return &Evaluator{store: store}
}

// Evaluate runs p against tx, starting from the single empty binding
// (§4.5 Evaluation).
func (ev *Evaluator) Evaluate(ctx context.Context, tx kv.Tx, p Pattern) ([]Binding, error) {
	return ev.eval(ctx, tx, p, []Binding{{}})
}

// eval threads a set of incoming bindings (seeds) through p, matching the
// SPARQL convention that every operator is itself a function from a
// multiset of bindings to a multiset of bindings.
func (ev *Evaluator) eval(ctx context.Context, tx kv.Tx, p Pattern, seeds []Binding) ([]Binding, error) {
	switch v := p.(type) {
	case BasicPattern:
		return ev.evalBasic(ctx, tx, v, seeds)
	case PropertyPathPattern:
		return ev.evalPropertyPathPattern(ctx, tx, v, seeds)
	case FilterPattern:
		return ev.evalFilter(ctx, tx, v, seeds)
	case UnionPattern:
		return ev.evalUnion(ctx, tx, v, seeds)
	case MinusPattern:
		return ev.evalMinus(ctx, tx, v, seeds)
	case OptionalPattern:
		return ev.evalOptional(ctx, tx, v, seeds)
	default:
		return nil, &ErrUnreachable{Reason: "unknown pattern type"}
	}
}

// evalBasic joins seeds against triples in selectivity order: at each
// step it picks the remaining triple with the most terms already bound
// against the accumulated bindings (ties broken by input order), which
// approximates "evaluate in selectivity order... hash-join when one side
// is bounded" (§4.5) without requiring a separate cardinality estimator.
func (ev *Evaluator) evalBasic(ctx context.Context, tx kv.Tx, p BasicPattern, seeds []Binding) ([]Binding, error) {
	remaining := append([]Triple(nil), p.Triples...)
	rows := seeds

	for len(remaining) > 0 {
		bestIdx := selectMostBoundTriple(remaining, rows)
		triple := remaining[bestIdx]
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)

		var next []Binding
		for _, row := range rows {
			matches, err := ev.matchTriple(ctx, tx, triple, row)
			if err != nil {
				return nil, err
			}
			next = append(next, matches...)
		}
		rows = next
		if len(rows) == 0 {
			break
		}
	}
	return rows, nil
}

// selectMostBoundTriple picks the index of the triple with the most terms
// that are constants or already bound in the first row of rows -- a cheap
// proxy for selectivity that needs no statistics beyond the current
// binding set.
func selectMostBoundTriple(triples []Triple, rows []Binding) int {
	sample := Binding{}
	if len(rows) > 0 {
		sample = rows[0]
	}
	best, bestScore := 0, -1
	for i, t := range triples {
		score := 0
		for _, term := range []Term{t.Subject, t.Predicate, t.Object} {
			if !term.isVar {
				score++
				continue
			}
			if _, ok := sample[term.name]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func (ev *Evaluator) matchTriple(ctx context.Context, tx kv.Tx, t Triple, row Binding) ([]Binding, error) {
	from, _ := resolveTerm(t.Subject, row)
	label, _ := resolveTerm(t.Predicate, row)
	to, _ := resolveTerm(t.Object, row)

	edges, err := ev.store.Scan(ctx, tx, Query{From: from, Label: label, To: to})
	if err != nil {
		return nil, err
	}

	var out []Binding
	for _, e := range edges {
		extended, ok := extendRow(row, t.Subject, e.From)
		if !ok {
			continue
		}
		extended, ok = extendRow(extended, t.Predicate, e.Label)
		if !ok {
			continue
		}
		extended, ok = extendRow(extended, t.Object, e.To)
		if !ok {
			continue
		}
		out = append(out, extended)
	}
	return out, nil
}

// extendRow binds term to value in row, or checks consistency if term is
// already bound (the same variable appearing twice in one triple).
func extendRow(row Binding, term Term, value []byte) (Binding, bool) {
	if !term.isVar {
		return row, true
	}
	fv := fieldvalue.Bytes(value)
	if existing, ok := row[term.name]; ok {
		return row, existing.Equal(fv)
	}
	out := row.clone()
	out[term.name] = fv
	return out, true
}

// pathBinding is one BFS frontier entry for property-path evaluation: the
// reached node plus the origin binding that produced it (§4.5 "every
// frontier entry carries the initial binding that produced it").
type pathBinding struct {
	origin Binding
	node   []byte
}

func (ev *Evaluator) evalPropertyPathPattern(ctx context.Context, tx kv.Tx, p PropertyPathPattern, seeds []Binding) ([]Binding, error) {
	path := NormalizePath(p.Path)
	var out []Binding
	for _, row := range seeds {
		from, fromBound := resolveTerm(p.Subject, row)
		to, toBound := resolveTerm(p.Object, row)

		var starts []pathBinding
		if fromBound {
			starts = []pathBinding{{origin: row, node: from}}
		} else if toBound {
			// No bound subject: walk the inverse path from the object
			// instead, then flip the reported direction back.
			inv := NormalizePath(InversePath{Path: path})
			reached, err := ev.evalPath(ctx, tx, inv, []pathBinding{{origin: row, node: to}})
			if err != nil {
				return nil, err
			}
			for _, r := range reached {
				extended, ok := extendRow(r.origin, p.Subject, r.node)
				if !ok {
					continue
				}
				out = append(out, extended)
			}
			continue
		} else {
			return nil, &ErrUnreachable{Reason: "property path pattern requires at least one bound endpoint"}
		}

		reached, err := ev.evalPath(ctx, tx, path, starts)
		if err != nil {
			return nil, err
		}
		for _, r := range reached {
			extended, ok := extendRow(r.origin, p.Object, r.node)
			if !ok {
				continue
			}
			out = append(out, extended)
		}
	}
	return out, nil
}

// evalPath applies path once, end to end, to every entry in starts,
// preserving each entry's origin binding throughout (§4.5).
func (ev *Evaluator) evalPath(ctx context.Context, tx kv.Tx, path PropertyPath, starts []pathBinding) ([]pathBinding, error) {
	switch v := path.(type) {
	case EmptyPath:
		return starts, nil
	case IRIPath:
		return ev.stepForward(ctx, tx, v.Label, starts)
	case InversePath:
		if iri, ok := v.Path.(IRIPath); ok {
			return ev.stepBackward(ctx, tx, iri.Label, starts)
		}
		if _, ok := v.Path.(EmptyPath); ok {
			return starts, nil
		}
		return nil, &ErrUnreachable{Reason: "inverse path did not normalize to a directional leaf"}
	case SequencePath:
		mid, err := ev.evalPath(ctx, tx, v.Left, starts)
		if err != nil {
			return nil, err
		}
		return ev.evalPath(ctx, tx, v.Right, mid)
	case AlternativePath:
		left, err := ev.evalPath(ctx, tx, v.Left, starts)
		if err != nil {
			return nil, err
		}
		right, err := ev.evalPath(ctx, tx, v.Right, starts)
		if err != nil {
			return nil, err
		}
		return dedupPathBindings(append(left, right...)), nil
	case ZeroOrOnePath:
		// Explicitly not recursive (§4.5): zero-hop (itself) union one hop.
		one, err := ev.evalPath(ctx, tx, v.Path, starts)
		if err != nil {
			return nil, err
		}
		return dedupPathBindings(append(append([]pathBinding{}, starts...), one...)), nil
	case ZeroOrMorePath:
		return ev.evalClosure(ctx, tx, v.Path, starts, true)
	case OneOrMorePath:
		return ev.evalClosure(ctx, tx, v.Path, starts, false)
	default:
		return nil, &ErrUnreachable{Reason: "unknown property path combinator"}
	}
}

// evalClosure computes the reflexive-transitive (includeZero=true) or
// transitive (includeZero=false) closure of step over starts, BFS-style,
// carrying origin through every hop.
func (ev *Evaluator) evalClosure(ctx context.Context, tx kv.Tx, step PropertyPath, starts []pathBinding, includeZero bool) ([]pathBinding, error) {
	seen := mapset.NewSet[string]()
	var result []pathBinding
	if includeZero {
		for _, s := range starts {
			if seen.Add(pathBindingKey(s)) {
				result = append(result, s)
			}
		}
	}

	frontier := starts
	for len(frontier) > 0 {
		next, err := ev.evalPath(ctx, tx, step, frontier)
		if err != nil {
			return nil, err
		}
		var fresh []pathBinding
		for _, n := range next {
			if seen.Add(pathBindingKey(n)) {
				fresh = append(fresh, n)
				result = append(result, n)
			}
		}
		frontier = fresh
	}
	return result, nil
}

func pathBindingKey(p pathBinding) string {
	return bindingKey(p.origin) + "\x00" + string(p.node)
}

// bindingKey renders b as a deterministic dedup key. Every value a graph
// binding ever holds originates from extendRow's fieldvalue.Bytes(node),
// so Bytes() always succeeds here; this is not a general FieldValue
// serializer.
func bindingKey(b Binding) string {
	names := make([]string, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, k := range names {
		bs, _ := b[k].Bytes()
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.Write(bs)
		sb.WriteByte(';')
	}
	return sb.String()
}

func dedupPathBindings(in []pathBinding) []pathBinding {
	seen := mapset.NewSet[string]()
	var out []pathBinding
	for _, p := range in {
		if seen.Add(pathBindingKey(p)) {
			out = append(out, p)
		}
	}
	return out
}

func (ev *Evaluator) stepForward(ctx context.Context, tx kv.Tx, label []byte, starts []pathBinding) ([]pathBinding, error) {
	var out []pathBinding
	for _, s := range starts {
		edges, err := ev.store.Scan(ctx, tx, Query{From: s.node, Label: label})
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			out = append(out, pathBinding{origin: s.origin, node: e.To})
		}
	}
	return out, nil
}

func (ev *Evaluator) stepBackward(ctx context.Context, tx kv.Tx, label []byte, starts []pathBinding) ([]pathBinding, error) {
	var out []pathBinding
	for _, s := range starts {
		edges, err := ev.store.Scan(ctx, tx, Query{Label: label, To: s.node})
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			out = append(out, pathBinding{origin: s.origin, node: e.From})
		}
	}
	return out, nil
}

func (ev *Evaluator) evalFilter(ctx context.Context, tx kv.Tx, p FilterPattern, seeds []Binding) ([]Binding, error) {
	rows, err := ev.eval(ctx, tx, p.Child, seeds)
	if err != nil {
		return nil, err
	}
	var out []Binding
	for _, row := range rows {
		result, ok := p.Expr.Eval(row)
		if !ok || !result {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// evalUnion is multiset union (§4.5).
func (ev *Evaluator) evalUnion(ctx context.Context, tx kv.Tx, p UnionPattern, seeds []Binding) ([]Binding, error) {
	left, err := ev.eval(ctx, tx, p.Left, seeds)
	if err != nil {
		return nil, err
	}
	right, err := ev.eval(ctx, tx, p.Right, seeds)
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

// evalMinus removes left-side rows that share at least one variable
// binding with any right-side row, per SPARQL MINUS semantics (§4.5), not
// a plain set difference.
func (ev *Evaluator) evalMinus(ctx context.Context, tx kv.Tx, p MinusPattern, seeds []Binding) ([]Binding, error) {
	left, err := ev.eval(ctx, tx, p.Left, seeds)
	if err != nil {
		return nil, err
	}
	right, err := ev.eval(ctx, tx, p.Right, seeds)
	if err != nil {
		return nil, err
	}
	var out []Binding
	for _, l := range left {
		excluded := false
		for _, r := range right {
			if l.sharesVariable(r) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, l)
		}
	}
	return out, nil
}

// evalOptional preserves every left row, extending it with right
// bindings where they're compatible, and never drops a left row that
// finds no match (§4.5).
func (ev *Evaluator) evalOptional(ctx context.Context, tx kv.Tx, p OptionalPattern, seeds []Binding) ([]Binding, error) {
	left, err := ev.eval(ctx, tx, p.Left, seeds)
	if err != nil {
		return nil, err
	}
	right, err := ev.eval(ctx, tx, p.Right, seeds)
	if err != nil {
		return nil, err
	}
	var out []Binding
	for _, l := range left {
		extendedAny := false
		for _, r := range right {
			if l.compatible(r) {
				out = append(out, l.merge(r))
				extendedAny = true
			}
		}
		if !extendedAny {
			out = append(out, l)
		}
	}
	return out, nil
}
