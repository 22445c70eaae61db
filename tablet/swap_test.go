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

package tablet

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cubefs/tabletnode/rowset"
)

type fakeRowSet struct {
	name     string
	min, max rowset.Key
}

func (r *fakeRowSet) GetBounds() (rowset.Key, rowset.Key, error) { return r.min, r.max, nil }
func (r *fakeRowSet) String() string                             { return r.name }

type counterSnapshots struct {
	next int64
}

func (c *counterSnapshots) CaptureSnapshot() MVCCSnapshot {
	return atomic.AddInt64(&c.next, 1)
}

func TestSwapInstallsComputedSet(t *testing.T) {
	r1 := &fakeRowSet{name: "R1", min: rowset.Key("a"), max: rowset.Key("b")}
	r2 := &fakeRowSet{name: "R2", min: rowset.Key("c"), max: rowset.Key("d")}
	r3 := &fakeRowSet{name: "R3", min: rowset.Key("e"), max: rowset.Key("f")}

	surface := New("t1", &counterSnapshots{})

	_, err := surface.Swap(nil, []rowset.RowSet{r1, r2})
	require.NoError(t, err)

	tree, _ := surface.Read()
	require.Len(t, tree.AllRowSets(), 2)

	_, err = surface.Swap([]rowset.RowSet{r1}, []rowset.RowSet{r3})
	require.NoError(t, err)

	tree, snap := surface.Read()
	require.Len(t, tree.AllRowSets(), 2)
	require.Contains(t, tree.AllRowSets(), rowset.RowSet(r2))
	require.Contains(t, tree.AllRowSets(), rowset.RowSet(r3))
	require.NotNil(t, snap)
}

// TestConcurrentReadersAndSwapperNeverSeePartialTree exercises the
// §4.E guarantee that readers never observe a half-built tree: many
// readers race against several swappers, and every reader always gets
// a non-nil tree and snapshot and can query that tree.
func TestConcurrentReadersAndSwapperNeverSeePartialTree(t *testing.T) {
	surface := New("t1", &counterSnapshots{})
	r1 := &fakeRowSet{name: "R1", min: rowset.Key("a"), max: rowset.Key("b")}
	_, err := surface.Swap(nil, []rowset.RowSet{r1})
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			for j := 0; j < 50; j++ {
				tree, snap := surface.Read()
				if tree == nil || snap == nil {
					return errors.New("observed a nil tree or snapshot")
				}
				_ = tree.FindRowSetsWithKeyInRange(rowset.Key("a"), nil)
			}
			return nil
		})
	}
	for i := 0; i < 8; i++ {
		extra := &fakeRowSet{name: "extra", min: rowset.Key("c"), max: rowset.Key("d")}
		g.Go(func() error {
			_, err := surface.Swap(nil, []rowset.RowSet{extra})
			return err
		})
	}
	require.NoError(t, g.Wait())
}
