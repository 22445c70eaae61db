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

// Package intervaltree is a generic static interval index (§4.C):
// build once from a set of closed intervals, then answer stabbing
// and range-intersection queries in O(log n + k). It is deliberately
// ignorant of byte-slice keys — package rowset instantiates it for
// that case.
package intervaltree

import "sort"

// Interval is any closed interval [Left(), Right()] over a point type
// P with a total order supplied separately as a comparator.
type Interval[P any] interface {
	Left() P
	Right() P
}

// Tree is a static interval tree built once over a slice of I and
// never mutated afterward; there is no insert or delete.
type Tree[P any, I Interval[P]] struct {
	root *node[P, I]
	cmp  func(a, b P) int
}

type node[P any, I Interval[P]] struct {
	center P
	left   *node[P, I]
	right  *node[P, I]

	// byLeft and byRight both hold every interval containing center,
	// sorted ascending by Left() and descending by Right()
	// respectively, per the construction algorithm in §4.C.
	byLeft  []I
	byRight []I
}

// Build constructs a Tree over intervals using cmp as the total
// order on P. The median of all 2*len(intervals) endpoints becomes
// the root's center; intervals are partitioned into "contains
// center", "strictly left", and "strictly right", and the latter two
// groups recurse.
func Build[P any, I Interval[P]](intervals []I, cmp func(a, b P) int) *Tree[P, I] {
	return &Tree[P, I]{root: build(intervals, cmp), cmp: cmp}
}

func build[P any, I Interval[P]](intervals []I, cmp func(a, b P) int) *node[P, I] {
	if len(intervals) == 0 {
		return nil
	}

	points := make([]P, 0, len(intervals)*2)
	for _, iv := range intervals {
		points = append(points, iv.Left(), iv.Right())
	}
	sort.Slice(points, func(i, j int) bool { return cmp(points[i], points[j]) < 0 })
	center := points[len(points)/2]

	n := &node[P, I]{center: center}
	var leftOf, rightOf []I
	for _, iv := range intervals {
		switch {
		case cmp(iv.Right(), center) < 0:
			leftOf = append(leftOf, iv)
		case cmp(iv.Left(), center) > 0:
			rightOf = append(rightOf, iv)
		default:
			n.byLeft = append(n.byLeft, iv)
			n.byRight = append(n.byRight, iv)
		}
	}
	sort.Slice(n.byLeft, func(i, j int) bool { return cmp(n.byLeft[i].Left(), n.byLeft[j].Left()) < 0 })
	sort.Slice(n.byRight, func(i, j int) bool { return cmp(n.byRight[i].Right(), n.byRight[j].Right()) > 0 })

	n.left = build(leftOf, cmp)
	n.right = build(rightOf, cmp)
	return n
}

// FindContainingPoint appends to out every interval whose closed
// range contains p.
func (t *Tree[P, I]) FindContainingPoint(p P, out []I) []I {
	return findContainingPoint(t.root, p, t.cmp, out)
}

func findContainingPoint[P any, I Interval[P]](n *node[P, I], p P, cmp func(a, b P) int, out []I) []I {
	if n == nil {
		return out
	}
	switch c := cmp(p, n.center); {
	case c == 0:
		return append(out, n.byLeft...)
	case c < 0:
		for _, iv := range n.byLeft {
			if cmp(iv.Left(), p) > 0 {
				break
			}
			out = append(out, iv)
		}
		return findContainingPoint(n.left, p, cmp, out)
	default:
		for _, iv := range n.byRight {
			if cmp(iv.Right(), p) < 0 {
				break
			}
			out = append(out, iv)
		}
		return findContainingPoint(n.right, p, cmp, out)
	}
}

// FindIntersectingInterval appends to out every stored interval that
// intersects the closed query interval [q.Left(), q.Right()].
func (t *Tree[P, I]) FindIntersectingInterval(q I, out []I) []I {
	return findIntersecting(t.root, q.Left(), q.Right(), t.cmp, out)
}

func findIntersecting[P any, I Interval[P]](n *node[P, I], lo, hi P, cmp func(a, b P) int, out []I) []I {
	if n == nil {
		return out
	}
	switch {
	case cmp(n.center, lo) < 0:
		// Every interval left of center ends before center < lo, so
		// only the node's own list (by descending right endpoint) and
		// the right subtree can still intersect.
		for _, iv := range n.byRight {
			if cmp(iv.Right(), lo) < 0 {
				break
			}
			out = append(out, iv)
		}
		return findIntersecting(n.right, lo, hi, cmp, out)
	case cmp(n.center, hi) > 0:
		for _, iv := range n.byLeft {
			if cmp(iv.Left(), hi) > 0 {
				break
			}
			out = append(out, iv)
		}
		return findIntersecting(n.left, lo, hi, cmp, out)
	default:
		out = append(out, n.byLeft...)
		out = findIntersecting(n.left, lo, hi, cmp, out)
		out = findIntersecting(n.right, lo, hi, cmp, out)
		return out
	}
}
