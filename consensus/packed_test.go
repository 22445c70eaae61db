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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	roles := []Role{RoleFollower, RoleLeader, RoleNonParticipant, RoleLearner, RoleUnknown}
	terms := []uint64{0, 1, 42, termSentinel - 1}

	for _, role := range roles {
		for _, term := range terms {
			w := Pack(role, term)
			require.Equal(t, role, UnpackRole(w))
			require.Equal(t, term, UnpackTerm(w))
		}
	}
}

func TestPackOverflowTermStoresSentinel(t *testing.T) {
	w := Pack(RoleFollower, termSentinel)
	require.Equal(t, RoleFollower, UnpackRole(w))
	require.Panics(t, func() { UnpackTerm(w) })

	w2 := Pack(RoleLeader, termSentinel+100)
	require.Equal(t, RoleLeader, UnpackRole(w2))
	require.Panics(t, func() { UnpackTerm(w2) })
}

func TestPackedCacheStoreLoad(t *testing.T) {
	var c PackedCache
	c.Store(RoleLeader, 7)
	role, term := c.Load()
	require.Equal(t, RoleLeader, role)
	require.EqualValues(t, 7, term)
}
