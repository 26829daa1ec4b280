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

package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fusiondb/fusion-index/fieldvalue"
)

type fakeUser struct{ email string }

func (fakeUser) TypeTag() string { return "user" }

func TestRegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	reg.Register("user", "email", func(r Record) fieldvalue.FieldValue {
		return fieldvalue.String(r.(fakeUser).email)
	})

	v, err := reg.Value(fakeUser{email: "a@example.com"}, "email")
	require.NoError(t, err)
	s, ok := v.String()
	require.True(t, ok)
	require.Equal(t, "a@example.com", s)
}

func TestUnknownTypeAndField(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Value(fakeUser{}, "email")
	require.Error(t, err)

	reg.Register("user", "email", func(Record) fieldvalue.FieldValue { return fieldvalue.Null() })
	_, err = reg.Value(fakeUser{}, "age")
	require.Error(t, err)
}
