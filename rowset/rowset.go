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

// Package rowset is the in-memory RowSet directory (RSD, §4.D): a
// point-in-time catalogue of a tablet's rowsets, indexed by an
// intervaltree.Tree for range/point lookups, with unbounded rowsets
// (the single mutable MemRowSet, in practice) always reported
// regardless of query.
package rowset

import (
	"bytes"
	"errors"

	cubefserrors "github.com/cubefs/cubefs/blobstore/util/errors"

	"github.com/cubefs/tabletnode/intervaltree"
)

// ErrBoundsUnsupported is returned by RowSet.GetBounds for rowsets
// whose bounds are not statically known (e.g. a mutable in-memory
// rowset still accepting inserts).
var ErrBoundsUnsupported = errors.New("rowset: bounds unsupported")

// errAlreadyInitted guards the "exactly one successful Reset" lifecycle
// invariant of §3.
var errAlreadyInitted = errors.New("rowset: Reset called on an already-initialized RowSetTree")

// Key is an opaque byte sequence compared lexicographically.
type Key = []byte

// CompareKeys is the total order over Key used throughout this
// package.
func CompareKeys(a, b Key) int { return bytes.Compare(a, b) }

// RowSet is the opaque rowset collaborator of §3: either an immutable
// on-disk set reporting static bounds, or a mutable in-memory one
// signaling ErrBoundsUnsupported.
type RowSet interface {
	GetBounds() (min, max Key, err error)
	String() string
}

// boundedEntry is the owned, snapshot-time copy of a bounded rowset's
// range; it implements intervaltree.Interval[Key] so the tree never
// needs to know about RowSet itself.
type boundedEntry struct {
	min, max Key
	rowset   RowSet
}

func (e boundedEntry) Left() Key  { return e.min }
func (e boundedEntry) Right() Key { return e.max }

// RowSetTree is the snapshot described in §3: build once via Reset,
// then query concurrently forever. It is immutable after a
// successful Reset; any change requires building a replacement and
// swapping it in through the tablet swap surface (package tablet).
type RowSetTree struct {
	initted bool

	entries   []boundedEntry
	unbounded []RowSet
	tree      *intervaltree.Tree[Key, boundedEntry]

	// allRowSets pins every rowset's lifetime for as long as this tree
	// is alive, including the unbounded ones already held in
	// unbounded and the bounded ones referenced from entries.
	allRowSets []RowSet
}

// New returns an empty, unitialized RowSetTree. Call Reset exactly
// once before querying it.
func New() *RowSetTree { return &RowSetTree{} }

// Reset is the single-shot initialization of §4.D: every rowset's
// GetBounds is consulted once, unbounded ones are set aside, and the
// rest are indexed in a fresh interval tree over owned copies of
// their bounds.
func (t *RowSetTree) Reset(rowsets []RowSet) error {
	if t.initted {
		return errAlreadyInitted
	}

	entries := make([]boundedEntry, 0, len(rowsets))
	var unbounded []RowSet
	for _, rs := range rowsets {
		min, max, err := rs.GetBounds()
		switch {
		case errors.Is(err, ErrBoundsUnsupported):
			unbounded = append(unbounded, rs)
		case err != nil:
			return cubefserrors.Info(err, "get bounds for rowset "+rs.String())
		default:
			entries = append(entries, boundedEntry{
				min:    append(Key(nil), min...),
				max:    append(Key(nil), max...),
				rowset: rs,
			})
		}
	}

	t.entries = entries
	t.unbounded = unbounded
	t.allRowSets = append([]RowSet(nil), rowsets...)
	t.tree = intervaltree.Build[Key, boundedEntry](entries, CompareKeys)
	t.initted = true
	return nil
}

// FindRowSetsWithKeyInRange appends to out every unbounded rowset,
// then every bounded rowset whose range contains key.
func (t *RowSetTree) FindRowSetsWithKeyInRange(key Key, out []RowSet) []RowSet {
	out = append(out, t.unbounded...)
	if t.tree == nil {
		return out
	}
	matches := t.tree.FindContainingPoint(key, nil)
	for _, m := range matches {
		out = append(out, m.rowset)
	}
	return out
}

// FindRowSetsIntersectingInterval appends to out every unbounded
// rowset, then every bounded rowset whose range intersects
// [lower, upper].
func (t *RowSetTree) FindRowSetsIntersectingInterval(lower, upper Key, out []RowSet) []RowSet {
	out = append(out, t.unbounded...)
	if t.tree == nil {
		return out
	}
	matches := t.tree.FindIntersectingInterval(boundedEntry{min: lower, max: upper}, nil)
	for _, m := range matches {
		out = append(out, m.rowset)
	}
	return out
}

// AllRowSets returns every rowset this tree was built from, bounded
// and unbounded alike, in the order passed to Reset.
func (t *RowSetTree) AllRowSets() []RowSet {
	return t.allRowSets
}
