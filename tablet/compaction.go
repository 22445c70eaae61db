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
	"context"

	"github.com/cubefs/tabletnode/rowset"
	"github.com/cubefs/tabletnode/util/limiter"
)

// CompactionLimiter bounds how many tablets may run a Swap
// concurrently on a single node, and at what aggregate rate — the
// write side of util/limiter.Limiter repurposed from throttling raw
// byte streams to throttling compaction swaps sharing the same disk
// bandwidth. The compaction policy that decides which rowsets to
// merge is out of scope; this only gates the swap step every policy
// eventually calls.
type CompactionLimiter struct {
	lim limiter.Limiter
}

// NewCompactionLimiter builds a limiter with maxConcurrent concurrent
// swaps in flight and an aggregate throughput of mbpsEstimate
// megabytes per second, charging each swap one megabyte of write
// bandwidth per rowset it removes or adds (at least one megabyte).
func NewCompactionLimiter(maxConcurrent uint32, mbpsEstimate int) *CompactionLimiter {
	return &CompactionLimiter{lim: limiter.NewLimiter(limiter.LimitConfig{
		WriteConcurrency: int(maxConcurrent),
		WriteMBPS:        mbpsEstimate,
	})}
}

// Swap acquires a concurrency slot, waits for its rate-limited share
// of bandwidth proportional to len(add)+len(old), then performs the
// surface swap and releases the slot.
func (c *CompactionLimiter) Swap(ctx context.Context, surface *Surface, old, add []rowset.RowSet) (MVCCSnapshot, error) {
	if err := c.lim.AcquireWrite(); err != nil {
		return nil, err
	}
	defer c.lim.ReleaseWrite()

	units := len(old) + len(add)
	if units == 0 {
		units = 1
	}
	w := c.lim.Writer(ctx, discard{})
	burst := c.lim.GetConfig().WriteMBPS
	for units > 0 {
		n := units
		if burst > 0 && n > burst {
			n = burst
		}
		if err := w.WaitN(n << 20); err != nil {
			return nil, err
		}
		units -= n
	}

	return surface.Swap(old, add)
}

// Status reports the limiter's current concurrency and wait figures,
// exposed for the same kind of /status or /metrics endpoint the
// teacher's limiter_test.go exercises directly against Limiter.
func (c *CompactionLimiter) Status() limiter.Status {
	return c.lim.Status()
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
