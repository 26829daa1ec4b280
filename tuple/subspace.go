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

package tuple

import "bytes"

// Subspace is a byte prefix plus tuple-encoding helpers, namespacing a
// logical region of the keyspace (§3). If B was produced as A.Child(x),
// every key packed through B starts with A's prefix followed by the
// encoding of x; Child is associative.
type Subspace struct {
	prefix []byte
}

// NewSubspace creates a root subspace from a raw byte prefix, typically a
// short, globally-unique directory identifier allocated by the host
// application (directory/path allocation is an external collaborator,
// §1).
func NewSubspace(prefix []byte) Subspace {
	return Subspace{prefix: append([]byte(nil), prefix...)}
}

// Child returns a subspace nested under s, whose prefix is s's prefix
// followed by the packed encoding of elements.
func (s Subspace) Child(elements ...Element) Subspace {
	return Subspace{prefix: append(append([]byte(nil), s.prefix...), Pack(elements...)...)}
}

// Bytes returns the subspace's raw prefix.
func (s Subspace) Bytes() []byte {
	return append([]byte(nil), s.prefix...)
}

// Pack encodes elements and prepends the subspace prefix, producing a
// fully qualified key.
func (s Subspace) Pack(elements ...Element) []byte {
	return append(s.Bytes(), Pack(elements...)...)
}

// Unpack strips the subspace prefix from key and decodes the remainder.
// It returns an error if key does not start with the subspace's prefix.
func (s Subspace) Unpack(key []byte) ([]Element, error) {
	if !bytes.HasPrefix(key, s.prefix) {
		return nil, ErrMalformed
	}
	return Unpack(key[len(s.prefix):])
}

// Contains reports whether key falls within the subspace's range, i.e.
// key has the subspace's prefix.
func (s Subspace) Contains(key []byte) bool {
	return bytes.HasPrefix(key, s.prefix)
}

// Range returns the half-open [begin, end) byte range covering every key
// in the subspace, suitable for GetRange/ClearRange/GetSplitPoints.
func (s Subspace) Range() (begin, end []byte) {
	begin = s.Bytes()
	end = Strinc(begin)
	return begin, end
}

// Strinc returns the smallest byte string greater than every string with
// prefix b, by incrementing the last byte that isn't already 0xFF and
// truncating the trailing run of 0xFF bytes. It is nil (unbounded) if b is
// all 0xFF bytes or empty.
func Strinc(b []byte) []byte {
	out := append([]byte(nil), b...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}
