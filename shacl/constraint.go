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
	"bytes"
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dlclark/regexp2"

	"github.com/fusiondb/fusion-index/fieldvalue"
	"github.com/fusiondb/fusion-index/kv"
)

// RDFType is the predicate used to resolve class membership and the
// class constraint (§4.6 "targetClass(c) resolves via ?x rdf:type c").
var RDFType = []byte("rdf:type")

// Violation is one failed constraint check (§4.6 Result).
type Violation struct {
	FocusNode                 Node
	ResultPath                bool // true if this violation is on a property shape, not the node itself
	Value                     *Node
	SourceConstraintComponent string
	SourceShape               []byte
	Message                   []string
	Severity                  Severity
}

// Constraint checks value nodes (the focus node itself for a node-level
// constraint, or the collected path values for a property shape) and
// reports any violations (§4.6 Constraint components).
type Constraint interface {
	Component() string
	Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error)
}

func violation(component string, focus Node, value *Node, severity Severity) Violation {
	return Violation{
		FocusNode:                 focus,
		Value:                     value,
		SourceConstraintComponent: component,
		Severity:                  severity,
	}
}

// ClassConstraint requires every IRI value node to have an rdf:type edge
// to Class.
type ClassConstraint struct{ Class []byte }

func (c ClassConstraint) Component() string { return "class" }

func (c ClassConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	var out []Violation
	for _, v := range values {
		if !v.IsIRI() {
			out = append(out, violation(c.Component(), focus, &v, SeverityViolation))
			continue
		}
		edges, err := val.store.Scan(ctx, tx, storeQuery(EncodeNode(v), RDFType, EncodeNode(IRI(c.Class))))
		if err != nil {
			return nil, err
		}
		if len(edges) == 0 {
			vv := v
			out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
		}
	}
	return out, nil
}

// DatatypeConstraint requires every value to be a literal of Datatype.
type DatatypeConstraint struct{ Datatype fieldvalue.Kind }

func (c DatatypeConstraint) Component() string { return "datatype" }

func (c DatatypeConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	var out []Violation
	for _, v := range values {
		if !v.IsLiteral() || v.LiteralValue().Kind() != c.Datatype {
			vv := v
			out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
		}
	}
	return out, nil
}

// NodeKindConstraint requires every value to match Kind.
type NodeKindConstraint struct{ Kind Kind }

func (c NodeKindConstraint) Component() string { return "nodeKind" }

func (c NodeKindConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	var out []Violation
	for _, v := range values {
		if v.Kind() != c.Kind {
			vv := v
			out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
		}
	}
	return out, nil
}

// MinCountConstraint requires at least Min value nodes (§4.6 "maxCount=0
// violates as soon as one value appears" is MaxCountConstraint's job;
// MinCountConstraint is evaluated once against the whole collected set).
type MinCountConstraint struct{ Min int }

func (c MinCountConstraint) Component() string { return "minCount" }

func (c MinCountConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	if len(values) < c.Min {
		return []Violation{violation(c.Component(), focus, nil, SeverityViolation)}, nil
	}
	return nil, nil
}

// MaxCountConstraint requires at most Max value nodes.
type MaxCountConstraint struct{ Max int }

func (c MaxCountConstraint) Component() string { return "maxCount" }

func (c MaxCountConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	if len(values) > c.Max {
		return []Violation{violation(c.Component(), focus, nil, SeverityViolation)}, nil
	}
	return nil, nil
}

type comparisonKind int

const (
	cmpMinInclusive comparisonKind = iota
	cmpMaxInclusive
	cmpMinExclusive
	cmpMaxExclusive
)

// RangeConstraint implements minInclusive/maxInclusive/minExclusive/
// maxExclusive: a single numeric/temporal-facet bound checked via
// fieldvalue.Compare, which is itself facet-agnostic (any FieldValue kind
// Compare supports).
type RangeConstraint struct {
	Kind  comparisonKind
	Bound fieldvalue.FieldValue
}

func (c RangeConstraint) Component() string {
	switch c.Kind {
	case cmpMinInclusive:
		return "minInclusive"
	case cmpMaxInclusive:
		return "maxInclusive"
	case cmpMinExclusive:
		return "minExclusive"
	default:
		return "maxExclusive"
	}
}

func (c RangeConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	var out []Violation
	for _, v := range values {
		if !v.IsLiteral() {
			vv := v
			out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
			continue
		}
		cmp := v.LiteralValue().Compare(c.Bound)
		ok := false
		switch c.Kind {
		case cmpMinInclusive:
			ok = cmp == fieldvalue.Greater || cmp == fieldvalue.Equal
		case cmpMaxInclusive:
			ok = cmp == fieldvalue.Less || cmp == fieldvalue.Equal
		case cmpMinExclusive:
			ok = cmp == fieldvalue.Greater
		case cmpMaxExclusive:
			ok = cmp == fieldvalue.Less
		}
		if !ok {
			vv := v
			out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
		}
	}
	return out, nil
}

func literalStringLen(v Node) (int, bool) {
	if !v.IsLiteral() {
		return 0, false
	}
	s, ok := v.LiteralValue().String()
	if !ok {
		b, ok := v.LiteralValue().Bytes()
		return len(b), ok
	}
	return len(s), true
}

// MinLengthConstraint/MaxLengthConstraint bound a literal's lexical length.
type MinLengthConstraint struct{ Min int }

func (c MinLengthConstraint) Component() string { return "minLength" }

func (c MinLengthConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	var out []Violation
	for _, v := range values {
		n, ok := literalStringLen(v)
		if !ok || n < c.Min {
			vv := v
			out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
		}
	}
	return out, nil
}

type MaxLengthConstraint struct{ Max int }

func (c MaxLengthConstraint) Component() string { return "maxLength" }

func (c MaxLengthConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	var out []Violation
	for _, v := range values {
		n, ok := literalStringLen(v)
		if !ok || n > c.Max {
			vv := v
			out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
		}
	}
	return out, nil
}

// PatternConstraint checks a literal's lexical form against a regex with
// i|m|s|x flags -- stdlib RE2 cannot express free-spacing (x) mode, so
// this uses dlclark/regexp2 (§2.1 domain stack).
type PatternConstraint struct {
	Pattern string
	Flags   string
}

func (c PatternConstraint) Component() string { return "pattern" }

func (c PatternConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	re, err := val.compiledPattern(c.Pattern, c.Flags)
	if err != nil {
		return nil, err
	}
	var out []Violation
	for _, v := range values {
		s, ok := v.LiteralValue().String()
		if !v.IsLiteral() || !ok {
			vv := v
			out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
			continue
		}
		matched, err := re.MatchString(s)
		if err != nil {
			return nil, err
		}
		if !matched {
			vv := v
			out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
		}
	}
	return out, nil
}

func patternFlags(flags string) regexp2.RegexOptions {
	opts := regexp2.None
	for _, f := range flags {
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		case 'x':
			opts |= regexp2.IgnorePatternWhitespace
		}
	}
	return opts
}

// LanguageInConstraint requires every literal's language tag to be in
// Langs.
type LanguageInConstraint struct{ Langs []string }

func (c LanguageInConstraint) Component() string { return "languageIn" }

func (c LanguageInConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	allowed := mapset.NewSet(c.Langs...)
	var out []Violation
	for _, v := range values {
		if !v.IsLiteral() || !allowed.Contains(v.Lang()) {
			vv := v
			out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
		}
	}
	return out, nil
}

// UniqueLangConstraint requires no two literals share a non-empty
// language tag.
type UniqueLangConstraint struct{}

func (c UniqueLangConstraint) Component() string { return "uniqueLang" }

func (c UniqueLangConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	seen := mapset.NewSet[string]()
	for _, v := range values {
		if !v.IsLiteral() || v.Lang() == "" {
			continue
		}
		if !seen.Add(v.Lang()) {
			return []Violation{violation(c.Component(), focus, nil, SeverityViolation)}, nil
		}
	}
	return nil, nil
}

func nodesEqual(a, b Node) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	if a.IsLiteral() {
		return a.LiteralValue().Equal(b.LiteralValue()) && a.Lang() == b.Lang()
	}
	return bytes.Equal(a.ID(), b.ID())
}

// EqualsConstraint requires values to equal, as a set, the value nodes
// reached from focus by OtherPath.
type EqualsConstraint struct{ OtherPath PathConstraintTarget }

// PathConstraintTarget resolves a comparison path's value nodes -- the
// indirection lets equals/disjoint/lessThan reuse the same path-walking
// logic the Validator already uses for property shapes.
type PathConstraintTarget interface {
	Resolve(ctx context.Context, val *Validator, tx kv.Tx, focus Node) ([]Node, error)
}

func (c EqualsConstraint) Component() string { return "equals" }

func (c EqualsConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	other, err := c.OtherPath.Resolve(ctx, val, tx, focus)
	if err != nil {
		return nil, err
	}
	if !sameMultiset(values, other) {
		return []Violation{violation(c.Component(), focus, nil, SeverityViolation)}, nil
	}
	return nil, nil
}

// DisjointConstraint requires values to share nothing with OtherPath's
// value nodes.
type DisjointConstraint struct{ OtherPath PathConstraintTarget }

func (c DisjointConstraint) Component() string { return "disjoint" }

func (c DisjointConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	other, err := c.OtherPath.Resolve(ctx, val, tx, focus)
	if err != nil {
		return nil, err
	}
	var out []Violation
	for _, v := range values {
		for _, o := range other {
			if nodesEqual(v, o) {
				vv := v
				out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
				break
			}
		}
	}
	return out, nil
}

// LessThanConstraint/LessThanOrEqualsConstraint compare each value
// against each of OtherPath's value nodes.
type LessThanConstraint struct {
	OtherPath  PathConstraintTarget
	OrEquals   bool
}

func (c LessThanConstraint) Component() string {
	if c.OrEquals {
		return "lessThanOrEquals"
	}
	return "lessThan"
}

func (c LessThanConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	other, err := c.OtherPath.Resolve(ctx, val, tx, focus)
	if err != nil {
		return nil, err
	}
	var out []Violation
	for _, v := range values {
		if !v.IsLiteral() {
			vv := v
			out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
			continue
		}
		for _, o := range other {
			if !o.IsLiteral() {
				continue
			}
			cmp := v.LiteralValue().Compare(o.LiteralValue())
			ok := cmp == fieldvalue.Less || (c.OrEquals && cmp == fieldvalue.Equal)
			if !ok {
				vv := v
				out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
			}
		}
	}
	return out, nil
}

func sameMultiset(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, x := range a {
		found := false
		for i, y := range b {
			if !used[i] && nodesEqual(x, y) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// HasValueConstraint requires Value to appear among the value nodes.
type HasValueConstraint struct{ Value Node }

func (c HasValueConstraint) Component() string { return "hasValue" }

func (c HasValueConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	for _, v := range values {
		if nodesEqual(v, c.Value) {
			return nil, nil
		}
	}
	return []Violation{violation(c.Component(), focus, nil, SeverityViolation)}, nil
}

// InConstraint requires every value node to appear in Allowed.
type InConstraint struct{ Allowed []Node }

func (c InConstraint) Component() string { return "in" }

func (c InConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	var out []Violation
	for _, v := range values {
		match := false
		for _, a := range c.Allowed {
			if nodesEqual(v, a) {
				match = true
				break
			}
		}
		if !match {
			vv := v
			out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
		}
	}
	return out, nil
}

// NotConstraint requires every value node to NOT conform to Shape.
type NotConstraint struct{ Shape NodeShape }

func (c NotConstraint) Component() string { return "not" }

func (c NotConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	var out []Violation
	for _, v := range values {
		conforms, _, err := val.conformsToShape(ctx, tx, v, c.Shape)
		if err != nil {
			return nil, err
		}
		if conforms {
			vv := v
			out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
		}
	}
	return out, nil
}

// AndConstraint requires every value node to conform to every Shapes entry.
type AndConstraint struct{ Shapes []NodeShape }

func (c AndConstraint) Component() string { return "and" }

func (c AndConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	var out []Violation
	for _, v := range values {
		for _, shape := range c.Shapes {
			conforms, _, err := val.conformsToShape(ctx, tx, v, shape)
			if err != nil {
				return nil, err
			}
			if !conforms {
				vv := v
				out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
				break
			}
		}
	}
	return out, nil
}

// OrConstraint requires every value node to conform to at least one of
// Shapes.
type OrConstraint struct{ Shapes []NodeShape }

func (c OrConstraint) Component() string { return "or" }

func (c OrConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	var out []Violation
	for _, v := range values {
		any := false
		for _, shape := range c.Shapes {
			conforms, _, err := val.conformsToShape(ctx, tx, v, shape)
			if err != nil {
				return nil, err
			}
			if conforms {
				any = true
				break
			}
		}
		if !any {
			vv := v
			out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
		}
	}
	return out, nil
}

// XoneConstraint requires every value node to conform to exactly one of
// Shapes.
type XoneConstraint struct{ Shapes []NodeShape }

func (c XoneConstraint) Component() string { return "xone" }

func (c XoneConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	var out []Violation
	for _, v := range values {
		count := 0
		for _, shape := range c.Shapes {
			conforms, _, err := val.conformsToShape(ctx, tx, v, shape)
			if err != nil {
				return nil, err
			}
			if conforms {
				count++
			}
		}
		if count != 1 {
			vv := v
			out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
		}
	}
	return out, nil
}

// NodeConstraint requires every value node to conform to Shape.
type NodeConstraint struct{ Shape NodeShape }

func (c NodeConstraint) Component() string { return "node" }

func (c NodeConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	var out []Violation
	for _, v := range values {
		conforms, _, err := val.conformsToShape(ctx, tx, v, c.Shape)
		if err != nil {
			return nil, err
		}
		if !conforms {
			vv := v
			out = append(out, violation(c.Component(), focus, &vv, SeverityViolation))
		}
	}
	return out, nil
}

// QualifiedValueShapeConstraint requires between Min and Max value nodes
// (inclusive; Max<0 means unbounded) to conform to Shape.
type QualifiedValueShapeConstraint struct {
	Shape NodeShape
	Min   int
	Max   int
}

func (c QualifiedValueShapeConstraint) Component() string { return "qualifiedValueShape" }

func (c QualifiedValueShapeConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	count := 0
	for _, v := range values {
		conforms, _, err := val.conformsToShape(ctx, tx, v, c.Shape)
		if err != nil {
			return nil, err
		}
		if conforms {
			count++
		}
	}
	if count < c.Min || (c.Max >= 0 && count > c.Max) {
		return []Violation{violation(c.Component(), focus, nil, SeverityViolation)}, nil
	}
	return nil, nil
}

// ClosedConstraint rejects any edge out of focus whose predicate is not
// one of Allowed (the shape's own declared property predicates, already
// augmented with IgnoredProperties by the Validator per W3C §4.8.1).
type ClosedConstraint struct {
	Allowed [][]byte
}

func (c ClosedConstraint) Component() string { return "closed" }

func (c ClosedConstraint) Check(ctx context.Context, val *Validator, tx kv.Tx, focus Node, values []Node) ([]Violation, error) {
	if !focus.IsIRI() && !focus.IsBlankNode() {
		return nil, nil
	}
	edges, err := val.store.Scan(ctx, tx, storeQuery(EncodeNode(focus), nil, nil))
	if err != nil {
		return nil, err
	}
	var out []Violation
	for _, e := range edges {
		allowed := false
		for _, p := range c.Allowed {
			if bytes.Equal(e.Label, p) {
				allowed = true
				break
			}
		}
		if !allowed {
			out = append(out, violation(c.Component(), focus, nil, SeverityViolation))
		}
	}
	return out, nil
}
