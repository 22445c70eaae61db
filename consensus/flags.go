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

import "math/rand"

// Flags carries the recognized configuration options of §6 as a
// plain struct threaded through ConsensusMetadata's constructors,
// per Design Note 9, instead of process-wide flag state. DefaultFlags
// keeps CLI parity for callers that do want one global default.
type Flags struct {
	// ForceFsync forces fsync on every flush (cmeta_force_fsync).
	ForceFsync bool
	// FsyncOverrideOnXFS forces fsync when the metadata volume is XFS
	// (cmeta_fsync_override_on_xfs): some filesystems, XFS among
	// them, don't commit as often as others without it.
	FsyncOverrideOnXFS bool
	// LogForceFsyncAll mirrors the WAL family's global fsync flag
	// (log_force_fsync_all); consensus metadata inherits durability
	// from the same policy as the write-ahead log.
	LogForceFsyncAll bool
	// FaultCrashBeforeFlushProbability is a testing-only hook
	// (fault_crash_before_cmeta_flush): the probability in [0,1] of
	// a simulated crash before the flush write begins.
	FaultCrashBeforeFlushProbability float64
}

// DefaultFlags is the package-level default used by callers that
// don't thread their own Flags through (e.g. one-off tools).
var DefaultFlags = Flags{}

// shouldSyncFile reports whether a given flush should fsync the file,
// combining the global WAL policy with the two cmeta-specific
// overrides.
func (f Flags) shouldSyncFile(env Env, path string) bool {
	if f.LogForceFsyncAll || f.ForceFsync {
		return true
	}
	if f.FsyncOverrideOnXFS && env.IsOnXFS(path) {
		return true
	}
	return false
}

// maybeCrash honors the probabilistic crash-injection hook. It is a
// no-op unless FaultCrashBeforeFlushProbability is set. It is a
// testing hook; cmd/tabletnode passes through whatever
// fault_crash_before_cmeta_flush its config sets (0 when unset).
func (f Flags) maybeCrash() {
	if f.FaultCrashBeforeFlushProbability <= 0 {
		return
	}
	if rand.Float64() < f.FaultCrashBeforeFlushProbability {
		panic("consensus: fault_crash_before_cmeta_flush injected crash")
	}
}
