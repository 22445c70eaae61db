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

package consensus

import "sync/atomic"

// writerGuard asserts, rather than enforces, the single-writer-per-
// tablet contract of §5: it is cheap enough to leave compiled in
// always, and it panics on detected concurrent entry instead of
// blocking, since blocking would hide the bug the guard exists to
// catch. It guards mutators only; PackedCache reads never touch it.
type writerGuard struct {
	busy atomic.Bool
}

func (g *writerGuard) enter() {
	if !g.busy.CompareAndSwap(false, true) {
		panic("consensus: concurrent mutation detected on a single-writer ConsensusMetadata")
	}
}

func (g *writerGuard) exit() {
	g.busy.Store(false)
}
