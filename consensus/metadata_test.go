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

	"github.com/cubefs/tabletnode/localenv"
)

func threePeerConfig() RaftConfig {
	return RaftConfig{
		Peers: []RaftPeer{
			{PermanentUUID: "p1", MemberType: MemberVoter},
			{PermanentUUID: "p2", MemberType: MemberVoter},
			{PermanentUUID: "p3", MemberType: MemberVoter},
		},
		OpidIndex: 0,
	}
}

// Scenario 1: fresh create + load.
func TestCreateThenLoad(t *testing.T) {
	root := t.TempDir()
	env := localenv.New()

	cm, err := Create(env, DefaultFlags, root, "t1", "p1", threePeerConfig(), 1, FlushOnCreate)
	require.NoError(t, err)
	require.EqualValues(t, 1, cm.CurrentTerm())
	require.Equal(t, RoleFollower, cm.ActiveRole())

	loaded, err := Load(env, DefaultFlags, root, "t1", "p1")
	require.NoError(t, err)
	require.EqualValues(t, 1, loaded.CurrentTerm())
	require.Equal(t, threePeerConfig(), loaded.CommittedConfig())
	require.Equal(t, RoleFollower, loaded.ActiveRole())
	require.False(t, loaded.HasPendingConfig())
}

// Scenario 2: vote + flush + reload.
func TestVoteFlushReload(t *testing.T) {
	root := t.TempDir()
	env := localenv.New()

	cm, err := Create(env, DefaultFlags, root, "t1", "p1", threePeerConfig(), 1, FlushOnCreate)
	require.NoError(t, err)

	require.NoError(t, cm.SetCurrentTerm(5))
	require.NoError(t, cm.SetVotedFor("p2"))
	require.NoError(t, cm.Flush(Overwrite))

	loaded, err := Load(env, DefaultFlags, root, "t1", "p1")
	require.NoError(t, err)
	require.EqualValues(t, 5, loaded.CurrentTerm())
	require.True(t, loaded.HasVotedFor())
	require.Equal(t, "p2", loaded.VotedFor())
}

// Scenario 3: pending then commit.
func TestPendingThenCommit(t *testing.T) {
	root := t.TempDir()
	env := localenv.New()

	cm, err := Create(env, DefaultFlags, root, "t1", "p1", threePeerConfig(), 1, FlushOnCreate)
	require.NoError(t, err)

	fourVoters := threePeerConfig()
	fourVoters.Peers = append(fourVoters.Peers, RaftPeer{PermanentUUID: "p4", MemberType: MemberVoter})

	cm.SetPendingConfig(fourVoters)
	require.True(t, cm.HasPendingConfig())
	require.Equal(t, 4, cm.CountVotersInConfig(ConfigActive))
	require.Equal(t, 3, cm.CountVotersInConfig(ConfigCommitted))

	cm.SetCommittedConfig(fourVoters)
	cm.ClearPendingConfig()

	require.False(t, cm.HasPendingConfig())
	require.Equal(t, cm.ActiveConfig(), cm.CommittedConfig())
	require.Equal(t, 4, cm.CountVotersInConfig(ConfigActive))
	require.Equal(t, RoleFollower, cm.ActiveRole())
}

// Scenario 4: merge with higher term.
func TestMergeCommittedConsensusStatePB(t *testing.T) {
	root := t.TempDir()
	env := localenv.New()

	cm, err := Create(env, DefaultFlags, root, "t1", "p1", threePeerConfig(), 3, FlushOnCreate)
	require.NoError(t, err)
	require.NoError(t, cm.SetVotedFor("p1"))

	other := ConsensusState{
		CurrentTerm:     7,
		CommittedConfig: threePeerConfig(),
	}
	cm.MergeCommittedConsensusStatePB(other)

	require.EqualValues(t, 7, cm.CurrentTerm())
	require.False(t, cm.HasVotedFor())
	require.Equal(t, "", cm.LeaderUUID())
	require.Equal(t, other.CommittedConfig, cm.CommittedConfig())
	require.False(t, cm.HasPendingConfig())
}

func TestMergeCommittedConsensusStatePBKeepsLowerTerm(t *testing.T) {
	root := t.TempDir()
	env := localenv.New()

	cm, err := Create(env, DefaultFlags, root, "t1", "p1", threePeerConfig(), 7, FlushOnCreate)
	require.NoError(t, err)
	require.NoError(t, cm.SetVotedFor("p1"))

	cm.MergeCommittedConsensusStatePB(ConsensusState{CurrentTerm: 3, CommittedConfig: threePeerConfig()})

	require.EqualValues(t, 7, cm.CurrentTerm())
	require.True(t, cm.HasVotedFor())
}

func TestFlushOverwriteIsIdempotent(t *testing.T) {
	root := t.TempDir()
	env := localenv.New()

	cm, err := Create(env, DefaultFlags, root, "t1", "p1", threePeerConfig(), 1, FlushOnCreate)
	require.NoError(t, err)

	require.NoError(t, cm.Flush(Overwrite))
	size := cm.OnDiskSize()
	require.NoError(t, cm.Flush(Overwrite))
	require.Equal(t, size, cm.OnDiskSize())
}

func TestCreateNoFlushFailsIfAlreadyPresent(t *testing.T) {
	root := t.TempDir()
	env := localenv.New()

	_, err := Create(env, DefaultFlags, root, "t1", "p1", threePeerConfig(), 1, FlushOnCreate)
	require.NoError(t, err)

	_, err = Create(env, DefaultFlags, root, "t1", "p1", threePeerConfig(), 1, NoFlushOnCreate)
	require.ErrorIs(t, err, ErrAlreadyPresent)
}

func TestPendingConfigPanicsWhenAbsent(t *testing.T) {
	root := t.TempDir()
	env := localenv.New()

	cm, err := Create(env, DefaultFlags, root, "t1", "p1", threePeerConfig(), 1, NoFlushOnCreate)
	require.NoError(t, err)
	require.Panics(t, func() { cm.PendingConfig() })
}

func TestSetCurrentTermAcceptsMinimum(t *testing.T) {
	root := t.TempDir()
	env := localenv.New()

	cm, err := Create(env, DefaultFlags, root, "t1", "p1", threePeerConfig(), MinimumTerm, NoFlushOnCreate)
	require.NoError(t, err)
	require.NoError(t, cm.SetCurrentTerm(MinimumTerm))
	require.Equal(t, MinimumTerm, cm.CurrentTerm())
}

func TestGetRoleAndTermMatchesSlowAccessors(t *testing.T) {
	root := t.TempDir()
	env := localenv.New()

	cm, err := Create(env, DefaultFlags, root, "t1", "p1", threePeerConfig(), 1, NoFlushOnCreate)
	require.NoError(t, err)

	require.NoError(t, cm.SetCurrentTerm(9))
	cm.SetLeaderUUID("p1")

	role, term := cm.GetRoleAndTerm()
	require.Equal(t, cm.ActiveRole(), role)
	require.EqualValues(t, cm.CurrentTerm(), term)
}

func TestDeleteOnDiskData(t *testing.T) {
	root := t.TempDir()
	env := localenv.New()

	_, err := Create(env, DefaultFlags, root, "t1", "p1", threePeerConfig(), 1, FlushOnCreate)
	require.NoError(t, err)
	require.True(t, env.FileExists(metadataPath(root, "t1")))

	require.NoError(t, DeleteOnDiskData(env, root, "t1"))
	require.False(t, env.FileExists(metadataPath(root, "t1")))
}

func TestConcurrentMutationPanicsViaGuard(t *testing.T) {
	root := t.TempDir()
	env := localenv.New()

	cm, err := Create(env, DefaultFlags, root, "t1", "p1", threePeerConfig(), 1, NoFlushOnCreate)
	require.NoError(t, err)

	cm.guard.enter()
	require.Panics(t, func() { cm.guard.enter() })
	cm.guard.exit()
}
