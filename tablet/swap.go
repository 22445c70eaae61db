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

// Package tablet is the tablet swap surface (§4.E): the single point
// where a tablet's current RowSetTree is atomically replaced under a
// component lock shared with readers, the same sync.RWMutex-guarded
// swap-the-pointer shape master/catalog/shard.go uses for its own
// hot-swappable ShardInfo.
package tablet

import (
	"sync"
	"time"

	"github.com/cubefs/tabletnode/metrics"
	"github.com/cubefs/tabletnode/rowset"
)

// MVCCSnapshot is the opaque transaction-visibility snapshot captured
// alongside a RowSetTree swap, so a reader's tree and snapshot always
// agree on which rowsets contain which row versions. This package
// does not interpret it; the MVCC engine that produces and consumes
// snapshots is out of scope (§1).
type MVCCSnapshot interface{}

// SnapshotSource supplies the current MVCC snapshot at the instant
// the swap surface's lock is held, per step 5 of §4.E.
type SnapshotSource interface {
	CaptureSnapshot() MVCCSnapshot
}

// Surface holds a tablet's current RowSetTree behind a component
// read-write lock (§5): swap takes it exclusively, readers take it
// shared.
type Surface struct {
	tabletID string

	mu       sync.RWMutex
	tree     *rowset.RowSetTree
	snapshot SnapshotSource
}

// New returns a swap surface whose initial tree is empty and whose
// captured snapshots come from snapshots.
func New(tabletID string, snapshots SnapshotSource) *Surface {
	return &Surface{tabletID: tabletID, tree: rowset.New(), snapshot: snapshots}
}

// Read captures the current tree and a consistent MVCC snapshot under
// the shared lock, then releases the lock before returning; the
// returned tree stays alive through the caller's reference even after
// a concurrent swap replaces the surface's own pointer.
func (s *Surface) Read() (*rowset.RowSetTree, MVCCSnapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree, s.snapshot.CaptureSnapshot()
}

// Swap implements §4.E: given the rowsets to remove and add, it
// computes (current ∪ new) − old, builds a fresh RowSetTree via
// Reset, installs it as the current tree, and captures the MVCC
// snapshot — all under one exclusive lock acquisition — so the
// returned snapshot and the newly installed tree are mutually
// consistent.
func (s *Surface) Swap(old, add []rowset.RowSet) (MVCCSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()

	next := computeNextRowSets(s.tree.AllRowSets(), old, add)

	newTree := rowset.New()
	if err := newTree.Reset(next); err != nil {
		return nil, err
	}

	s.tree = newTree
	snap := s.snapshot.CaptureSnapshot()

	metrics.ObserveSwap(s.tabletID, time.Since(start))
	metrics.SetRowSetCount(s.tabletID, len(next))
	return snap, nil
}

func computeNextRowSets(current, old, add []rowset.RowSet) []rowset.RowSet {
	removed := make(map[rowset.RowSet]struct{}, len(old))
	for _, rs := range old {
		removed[rs] = struct{}{}
	}

	next := make([]rowset.RowSet, 0, len(current)+len(add))
	for _, rs := range current {
		if _, drop := removed[rs]; !drop {
			next = append(next, rs)
		}
	}
	for _, rs := range add {
		if _, drop := removed[rs]; !drop {
			next = append(next, rs)
		}
	}
	return next
}
