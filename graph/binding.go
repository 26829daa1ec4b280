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
	"github.com/fusiondb/fusion-index/fieldvalue"
)

// Binding is one row of a pattern evaluation: a variable-name to value
// map (§4.5 "Returns a bag of variable -> value bindings").
type Binding map[string]fieldvalue.FieldValue

// clone returns a shallow copy, safe to extend without mutating b.
func (b Binding) clone() Binding {
	out := make(Binding, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	return out
}

// sharesVariable reports whether b and other agree on every variable
// they have in common, and share at least one variable -- the join
// condition MINUS uses to decide whether a left row is excluded (§4.5).
func (b Binding) sharesVariable(other Binding) bool {
	shared := false
	for k, v := range b {
		if ov, ok := other[k]; ok {
			shared = true
			if !v.Equal(ov) {
				return false
			}
		}
	}
	return shared
}

// compatible reports whether b and other agree on every variable they
// have in common (the join predicate for basic-pattern and OPTIONAL
// joins).
func (b Binding) compatible(other Binding) bool {
	for k, v := range b {
		if ov, ok := other[k]; ok && !v.Equal(ov) {
			return false
		}
	}
	return true
}

// merge returns a new binding extending b with other's bindings. Callers
// must check compatible first.
func (b Binding) merge(other Binding) Binding {
	out := b.clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

func resolveTerm(t Term, b Binding) (value []byte, bound bool) {
	if !t.isVar {
		return t.value, true
	}
	v, ok := b[t.name]
	if !ok {
		return nil, false
	}
	bs, _ := v.Bytes()
	return bs, true
}
