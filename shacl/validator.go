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
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dlclark/regexp2"

	"github.com/fusiondb/fusion-index/graph"
	"github.com/fusiondb/fusion-index/kv"
)

const patternCacheSize = 256

// Validator checks focus nodes resolved from a graph.EdgeStore against a
// ShapesGraph (§4.6).
type Validator struct {
	store    *graph.EdgeStore
	eval     *graph.Evaluator
	shapes   ShapesGraph
	patterns *lru.Cache[string, *regexp2.Regexp]
}

// NewValidator returns a Validator checking shapes against store.
func NewValidator(store *graph.EdgeStore, shapes ShapesGraph) *Validator {
	cache, err := lru.New[string, *regexp2.Regexp](patternCacheSize)
	if err != nil {
		// Only fails for a non-positive size, which patternCacheSize never is.
		panic(err)
	}
	return &Validator{
		store:    store,
		eval:     graph.NewEvaluator(store),
		shapes:   shapes,
		patterns: cache,
	}
}

func storeQuery(from, label, to []byte) graph.Query {
	return graph.Query{From: from, Label: label, To: to}
}

func (v *Validator) compiledPattern(pattern, flags string) (*regexp2.Regexp, error) {
	key := flags + "\x00" + pattern
	if re, ok := v.patterns.Get(key); ok {
		return re, nil
	}
	re, err := regexp2.Compile(pattern, patternFlags(flags))
	if err != nil {
		return nil, fmt.Errorf("shacl: invalid pattern %q: %w", pattern, err)
	}
	v.patterns.Add(key, re)
	return re, nil
}

// ShapePath resolves the value nodes reached from a focus node by
// following a graph.PropertyPath -- the target type for equals/disjoint/
// lessThan's "other path" argument, and for a PropertyShape's own Path.
type ShapePath struct{ Path graph.PropertyPath }

func (p ShapePath) Resolve(ctx context.Context, val *Validator, tx kv.Tx, focus Node) ([]Node, error) {
	return val.valueNodes(ctx, tx, focus, p.Path)
}

// valueNodes walks path forward from focus and decodes every reached
// value into a Node (§4.6 "collect value nodes by evaluating its path").
func (val *Validator) valueNodes(ctx context.Context, tx kv.Tx, focus Node, path graph.PropertyPath) ([]Node, error) {
	pattern := graph.PropertyPathPattern{
		Subject: graph.Val(EncodeNode(focus)),
		Path:    path,
		Object:  graph.Var("v"),
	}
	rows, err := val.eval.Evaluate(ctx, tx, pattern)
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(rows))
	for _, row := range rows {
		fv, ok := row["v"]
		if !ok {
			continue
		}
		raw, _ := fv.Bytes()
		n, err := DecodeNode(raw)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// resolveTargets expands shape's declared targets into focus nodes
// (§4.6 Targets -> focus nodes).
func (val *Validator) resolveTargets(ctx context.Context, tx kv.Tx, shape NodeShape) ([]Node, error) {
	var focusNodes []Node
	seen := map[string]bool{}
	add := func(n Node) {
		key := string(EncodeNode(n))
		if !seen[key] {
			seen[key] = true
			focusNodes = append(focusNodes, n)
		}
	}

	// Implicit class target: the shape's own IRI, used as a class.
	targets := append([]Target{{Kind: TargetClass, Value: shape.IRI}}, shape.Targets...)

	for _, t := range targets {
		switch t.Kind {
		case TargetNode:
			add(IRI(t.Value))
		case TargetClass:
			edges, err := val.store.Scan(ctx, tx, storeQuery(nil, RDFType, EncodeNode(IRI(t.Value))))
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				n, err := DecodeNode(e.From)
				if err != nil {
					return nil, err
				}
				add(n)
			}
		case TargetSubjectsOf:
			edges, err := val.store.Scan(ctx, tx, storeQuery(nil, t.Value, nil))
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				n, err := DecodeNode(e.From)
				if err != nil {
					return nil, err
				}
				add(n)
			}
		case TargetObjectsOf:
			edges, err := val.store.Scan(ctx, tx, storeQuery(nil, t.Value, nil))
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				n, err := DecodeNode(e.To)
				if err != nil {
					return nil, err
				}
				add(n)
			}
		}
	}
	return focusNodes, nil
}

// ValidationReport is the SHACL validation result (§4.6 Result/Report).
type ValidationReport struct {
	Conforms   bool
	Violations []Violation
}

// Validate checks every shape's resolved focus nodes and returns the
// aggregate report.
func (val *Validator) Validate(ctx context.Context, tx kv.Tx) (ValidationReport, error) {
	var all []Violation
	for _, shape := range val.shapes.Shapes {
		focusNodes, err := val.resolveTargets(ctx, tx, shape)
		if err != nil {
			return ValidationReport{}, err
		}
		for _, focus := range focusNodes {
			_, violations, err := val.conformsToShape(ctx, tx, focus, shape)
			if err != nil {
				return ValidationReport{}, err
			}
			for i := range violations {
				violations[i].SourceShape = shape.IRI
			}
			all = append(all, violations...)
		}
	}
	conforms := true
	for _, v := range all {
		if v.Severity == SeverityViolation {
			conforms = false
			break
		}
	}
	return ValidationReport{Conforms: conforms, Violations: all}, nil
}

// conformsToShape evaluates shape's node-level and property-level
// constraints against value, re-entering the node-level loop for IRI/
// blank-node values and evaluating directly against [value] for
// literals (§4.6 Recursive composition).
func (val *Validator) conformsToShape(ctx context.Context, tx kv.Tx, value Node, shape NodeShape) (bool, []Violation, error) {
	var violations []Violation

	selfSet := []Node{value}
	for _, c := range shape.Constraints {
		vs, err := c.Check(ctx, val, tx, value, selfSet)
		if err != nil {
			return false, nil, err
		}
		violations = append(violations, vs...)
	}

	ignored := append([][]byte(nil), shape.IgnoredProperties...)
	var allowed [][]byte
	allowed = append(allowed, ignored...)

	for _, ps := range shape.PropertyShapes {
		if iri, ok := ps.Path.(graph.IRIPath); ok {
			allowed = append(allowed, iri.Label)
		}

		var values []Node
		if value.IsLiteral() {
			// Property shapes on a literal focus produce empty value-node
			// lists, so cardinality constraints (minCount/maxCount) still
			// apply correctly (§4.6).
			values = nil
		} else {
			vs, err := val.valueNodes(ctx, tx, value, ps.Path)
			if err != nil {
				return false, nil, err
			}
			values = vs
		}

		severity := ps.Severity
		if severity == "" {
			severity = SeverityViolation
		}
		for _, c := range ps.Constraints {
			vs, err := c.Check(ctx, val, tx, value, values)
			if err != nil {
				return false, nil, err
			}
			for i := range vs {
				vs[i].ResultPath = true
				vs[i].Message = ps.Message
				if vs[i].Severity == "" {
					vs[i].Severity = severity
				}
			}
			violations = append(violations, vs...)
		}
	}

	if shape.Closed {
		closed := ClosedConstraint{Allowed: allowed}
		vs, err := closed.Check(ctx, val, tx, value, selfSet)
		if err != nil {
			return false, nil, err
		}
		violations = append(violations, vs...)
	}

	conforms := true
	for _, v := range violations {
		if v.Severity == "" || v.Severity == SeverityViolation {
			conforms = false
			break
		}
	}
	return conforms, violations, nil
}
