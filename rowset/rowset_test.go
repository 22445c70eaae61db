// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package rowset

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRowSet struct {
	name     string
	min, max Key
	unbound  bool
}

func (r *fakeRowSet) GetBounds() (Key, Key, error) {
	if r.unbound {
		return nil, nil, ErrBoundsUnsupported
	}
	return r.min, r.max, nil
}

func (r *fakeRowSet) String() string { return r.name }

func names(rs []RowSet) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.String()
	}
	sort.Strings(out)
	return out
}

func scenarioRowSets() []RowSet {
	return []RowSet{
		&fakeRowSet{name: "R1", min: Key("a"), max: Key("c")},
		&fakeRowSet{name: "R2", min: Key("b"), max: Key("d")},
		&fakeRowSet{name: "R3", min: Key("e"), max: Key("g")},
		&fakeRowSet{name: "U", unbound: true},
	}
}

// Scenario 5.
func TestFindRowSetsWithKeyInRange(t *testing.T) {
	tree := New()
	require.NoError(t, tree.Reset(scenarioRowSets()))

	require.Equal(t, []string{"R1", "R2", "U"}, names(tree.FindRowSetsWithKeyInRange(Key("b"), nil)))
	require.Equal(t, []string{"R3", "U"}, names(tree.FindRowSetsWithKeyInRange(Key("f"), nil)))
	require.Equal(t, []string{"U"}, names(tree.FindRowSetsWithKeyInRange(Key("z"), nil)))
}

// Scenario 6.
func TestFindRowSetsIntersectingInterval(t *testing.T) {
	tree := New()
	require.NoError(t, tree.Reset(scenarioRowSets()))

	got := names(tree.FindRowSetsIntersectingInterval(Key("c"), Key("e"), nil))
	require.Equal(t, []string{"R1", "R2", "R3", "U"}, got)
}

func TestResetTwiceFails(t *testing.T) {
	tree := New()
	require.NoError(t, tree.Reset(scenarioRowSets()))
	require.ErrorIs(t, tree.Reset(scenarioRowSets()), errAlreadyInitted)
}

type erroringRowSet struct{ err error }

func (r *erroringRowSet) GetBounds() (Key, Key, error) { return nil, nil, r.err }
func (r *erroringRowSet) String() string               { return "erroring" }

func TestResetPropagatesNonUnsupportedErrors(t *testing.T) {
	boom := &erroringRowSet{err: errors.New("disk read failed")}
	tree := New()
	require.Error(t, tree.Reset([]RowSet{boom}))
}
