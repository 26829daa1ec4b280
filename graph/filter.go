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

import "github.com/fusiondb/fusion-index/fieldvalue"

// BoundFilter is FILTER(BOUND(?v)).
type BoundFilter struct{ Var string }

func (f BoundFilter) Eval(b Binding) (bool, bool) {
	_, ok := b[f.Var]
	return ok, true
}

// EqualsFilter is FILTER(?a = ?b) or FILTER(?a = <value>). Per §4.5
// cross-type compare, an incomparable pair evaluates to "error" (row
// excluded), never a lexicographic fallback.
type EqualsFilter struct{ Left, Right Term }

func (f EqualsFilter) Eval(b Binding) (bool, bool) {
	lv, lok := lookupFieldValue(f.Left, b)
	rv, rok := lookupFieldValue(f.Right, b)
	if !lok || !rok {
		return false, false
	}
	cmp := lv.Compare(rv)
	if cmp == fieldvalue.Incomparable {
		return false, false
	}
	return cmp == fieldvalue.Equal, true
}

// NotFilter negates a child filter; an unbound child stays unbound
// (§4.5 -- negating an error is still an error, not a new truth value).
type NotFilter struct{ Child FilterExpr }

func (f NotFilter) Eval(b Binding) (bool, bool) {
	v, ok := f.Child.Eval(b)
	if !ok {
		return false, false
	}
	return !v, true
}

// AndFilter is logical AND of two filters; both sides must be bound.
type AndFilter struct{ Left, Right FilterExpr }

func (f AndFilter) Eval(b Binding) (bool, bool) {
	lv, lok := f.Left.Eval(b)
	rv, rok := f.Right.Eval(b)
	if !lok || !rok {
		return false, false
	}
	return lv && rv, true
}

// OrFilter is logical OR of two filters.
type OrFilter struct{ Left, Right FilterExpr }

func (f OrFilter) Eval(b Binding) (bool, bool) {
	lv, lok := f.Left.Eval(b)
	rv, rok := f.Right.Eval(b)
	if !lok || !rok {
		return false, false
	}
	return lv || rv, true
}

func lookupFieldValue(t Term, b Binding) (fv fieldvalue.FieldValue, ok bool) {
	if !t.isVar {
		return fieldvalue.Bytes(t.value), true
	}
	v, ok := b[t.name]
	return v, ok
}
