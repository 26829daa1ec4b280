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

// Term is either a bound value or an unbound variable in a triple or
// property path pattern.
type Term struct {
	name  string
	value []byte
	isVar bool
}

// Var returns an unbound variable term.
func Var(name string) Term { return Term{name: name, isVar: true} }

// Val returns a bound value term.
func Val(value []byte) Term { return Term{value: value} }

func (t Term) IsVar() bool { return t.isVar }
func (t Term) Name() string { return t.name }
func (t Term) Value() []byte { return t.value }

// Triple is one basic-pattern triple (§4.5 "basic[triples]").
type Triple struct {
	Subject, Predicate, Object Term
}

// PropertyPath is the property-path mini-algebra (§4.5): iri, inverse,
// sequence, alternative, zeroOrMore, oneOrMore, zeroOrOne, empty.
type PropertyPath interface {
	isPropertyPath()
}

type IRIPath struct{ Label []byte }
type InversePath struct{ Path PropertyPath }
type SequencePath struct{ Left, Right PropertyPath }
type AlternativePath struct{ Left, Right PropertyPath }
type ZeroOrMorePath struct{ Path PropertyPath }
type OneOrMorePath struct{ Path PropertyPath }
type ZeroOrOnePath struct{ Path PropertyPath }
type EmptyPath struct{}

func (IRIPath) isPropertyPath()         {}
func (InversePath) isPropertyPath()     {}
func (SequencePath) isPropertyPath()    {}
func (AlternativePath) isPropertyPath() {}
func (ZeroOrMorePath) isPropertyPath()  {}
func (OneOrMorePath) isPropertyPath()   {}
func (ZeroOrOnePath) isPropertyPath()   {}
func (EmptyPath) isPropertyPath()       {}

// NormalizePath pushes every InversePath down to the leaves, so the
// evaluator only ever has to special-case inverse(iri(_)) and
// inverse(empty) as directional base cases (§4.5 normalization: "inverse
// (sequence(a,b)) -> sequence(inverse(b), inverse(a))"; this implements
// the same push-down rule for every other combinator, which standard
// SPARQL property-path algebra requires for the remaining combinators to
// bottom out the same way). Nested alternatives are right-associated so
// the evaluator always recurses on a canonical shape.
func NormalizePath(p PropertyPath) PropertyPath {
	switch v := p.(type) {
	case InversePath:
		return pushInverse(v.Path)
	case SequencePath:
		return SequencePath{Left: NormalizePath(v.Left), Right: NormalizePath(v.Right)}
	case AlternativePath:
		return rightAssociate(NormalizePath(v.Left), NormalizePath(v.Right))
	case ZeroOrMorePath:
		return ZeroOrMorePath{Path: NormalizePath(v.Path)}
	case OneOrMorePath:
		return OneOrMorePath{Path: NormalizePath(v.Path)}
	case ZeroOrOnePath:
		// Not recursive (§4.5): normalize the inner path but never unroll it.
		return ZeroOrOnePath{Path: NormalizePath(v.Path)}
	default:
		return p
	}
}

// pushInverse distributes InversePath over p's top combinator, then
// recursively normalizes the result so inverse never wraps anything but
// an IRIPath or EmptyPath.
func pushInverse(p PropertyPath) PropertyPath {
	switch v := p.(type) {
	case IRIPath, EmptyPath:
		return InversePath{Path: v}
	case InversePath:
		return NormalizePath(v.Path) // inverse(inverse(p)) -> p
	case SequencePath:
		return NormalizePath(SequencePath{Left: InversePath{Path: v.Right}, Right: InversePath{Path: v.Left}})
	case AlternativePath:
		return rightAssociate(NormalizePath(pushInverse(v.Left)), NormalizePath(pushInverse(v.Right)))
	case ZeroOrMorePath:
		return ZeroOrMorePath{Path: pushInverse(v.Path)}
	case OneOrMorePath:
		return OneOrMorePath{Path: pushInverse(v.Path)}
	case ZeroOrOnePath:
		return ZeroOrOnePath{Path: pushInverse(v.Path)}
	default:
		return InversePath{Path: p}
	}
}

// rightAssociate rewrites alternative(alternative(a,b),c) into
// alternative(a, alternative(b,c)) so nested alternatives always lean
// right, giving the evaluator one shape to recurse on (§4.5).
func rightAssociate(left, right PropertyPath) PropertyPath {
	if la, ok := left.(AlternativePath); ok {
		return rightAssociate(la.Left, rightAssociate(la.Right, right))
	}
	return AlternativePath{Left: left, Right: right}
}

// Pattern is the SPARQL-style pattern algebra (§4.5).
type Pattern interface {
	isPattern()
}

type BasicPattern struct{ Triples []Triple }
type PropertyPathPattern struct {
	Subject Term
	Path    PropertyPath
	Object  Term
}
type FilterPattern struct {
	Expr  FilterExpr
	Child Pattern
}
type UnionPattern struct{ Left, Right Pattern }
type MinusPattern struct{ Left, Right Pattern }
type OptionalPattern struct{ Left, Right Pattern }

func (BasicPattern) isPattern()        {}
func (PropertyPathPattern) isPattern() {}
func (FilterPattern) isPattern()       {}
func (UnionPattern) isPattern()        {}
func (MinusPattern) isPattern()        {}
func (OptionalPattern) isPattern()     {}

// FilterExpr evaluates a boolean condition against one binding row.
// Eval's second return is false for any unbound/incomparable input, per
// §4.5 "FILTER with any null/unbound input evaluates to error and
// excludes the row" -- it is not a Go error, since SPARQL filter failure
// is silent row exclusion, not a propagated failure (§7).
type FilterExpr interface {
	Eval(b Binding) (result bool, ok bool)
}
