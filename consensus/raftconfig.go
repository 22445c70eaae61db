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
	cubefserrors "github.com/cubefs/cubefs/blobstore/util/errors"
)

// MemberType is a peer's membership kind within a RaftConfig.
type MemberType int32

const (
	MemberUnknown  MemberType = 0
	MemberVoter    MemberType = 1
	MemberNonVoter MemberType = 2
	MemberLearner  MemberType = 3
)

func (t MemberType) String() string {
	switch t {
	case MemberVoter:
		return "VOTER"
	case MemberNonVoter:
		return "NON_VOTER"
	case MemberLearner:
		return "LEARNER"
	default:
		return "UNKNOWN"
	}
}

// RaftPeer is one member of a RaftConfig.
type RaftPeer struct {
	PermanentUUID string
	MemberType    MemberType
}

// RaftConfig is a Raft configuration: the set of peers participating
// in a consensus group plus the log position (OpidIndex) at which the
// configuration was committed.
type RaftConfig struct {
	Peers     []RaftPeer
	OpidIndex int64
}

func (c *RaftConfig) findPeer(uuid string) *RaftPeer {
	if c == nil {
		return nil
	}
	for i := range c.Peers {
		if c.Peers[i].PermanentUUID == uuid {
			return &c.Peers[i]
		}
	}
	return nil
}

// IsRaftConfigVoter reports whether uuid is a VOTER member of cfg.
func IsRaftConfigVoter(uuid string, cfg *RaftConfig) bool {
	p := cfg.findPeer(uuid)
	return p != nil && p.MemberType == MemberVoter
}

// IsRaftConfigMember reports whether uuid is any kind of member of cfg.
func IsRaftConfigMember(uuid string, cfg *RaftConfig) bool {
	return cfg.findPeer(uuid) != nil
}

// CountVoters returns the number of VOTER peers in cfg.
func CountVoters(cfg *RaftConfig) int {
	n := 0
	for i := range cfg.Peers {
		if cfg.Peers[i].MemberType == MemberVoter {
			n++
		}
	}
	return n
}

// VerifyRaftConfig checks the invariants a committed config must hold
// before it can be flushed: every peer has a non-empty, unique UUID,
// a recognized member type, and there is at least one voter.
func VerifyRaftConfig(cfg *RaftConfig) error {
	if cfg == nil {
		return cubefserrors.Info(ErrInvalidArgument, "nil raft config")
	}

	seen := make(map[string]struct{}, len(cfg.Peers))
	voters := 0
	for i := range cfg.Peers {
		p := cfg.Peers[i]
		if p.PermanentUUID == "" {
			return cubefserrors.Info(ErrInvalidArgument, "raft config has peer with empty uuid")
		}
		if _, dup := seen[p.PermanentUUID]; dup {
			return cubefserrors.Info(ErrInvalidArgument, "raft config has duplicate peer uuid "+p.PermanentUUID)
		}
		seen[p.PermanentUUID] = struct{}{}

		switch p.MemberType {
		case MemberVoter, MemberNonVoter, MemberLearner:
		default:
			return cubefserrors.Info(ErrInvalidArgument, "raft config has peer with unrecognized member type")
		}
		if p.MemberType == MemberVoter {
			voters++
		}
	}
	if voters == 0 {
		return cubefserrors.Info(ErrInvalidArgument, "raft config has no voters")
	}
	return nil
}

// GetConsensusRole derives the active role peerUUID plays given the
// believed leader and the active config, per §4.B.2:
//
//   - LEADER if peerUUID == leaderUUID and peerUUID is a VOTER.
//   - FOLLOWER if peerUUID is a VOTER and leaderUUID is either empty
//     (open question resolved in DESIGN.md: unknown leader defaults a
//     voter to FOLLOWER rather than UNKNOWN_ROLE) or itself a VOTER.
//   - LEARNER if peerUUID is a member but not a VOTER.
//   - NON_PARTICIPANT if peerUUID is not in cfg at all.
//   - UNKNOWN_ROLE if leaderUUID is set but is not a voter of cfg —
//     an inconsistent input the cache must still represent safely.
func GetConsensusRole(peerUUID, leaderUUID string, cfg *RaftConfig) Role {
	peer := cfg.findPeer(peerUUID)
	if peer == nil {
		return RoleNonParticipant
	}
	if peer.MemberType != MemberVoter {
		return RoleLearner
	}
	if peerUUID == leaderUUID && leaderUUID != "" {
		return RoleLeader
	}
	if leaderUUID == "" {
		return RoleFollower
	}
	if IsRaftConfigVoter(leaderUUID, cfg) {
		return RoleFollower
	}
	return RoleUnknown
}
