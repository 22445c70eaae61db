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
	"fmt"

	cubefserrors "github.com/cubefs/cubefs/blobstore/util/errors"
)

// RaftPeerPB, RaftConfigPB and ConsensusMetadataPB are the durable
// wire messages behind the on-disk consensus-metadata file (§3a).
// Optional scalar fields use pointers, matching the proto2-style
// generated code the rest of this corpus calls directly (e.g.
// raftpb.HardState.Marshal() in raft/storage.go) — presence, not
// zero-value, decides whether a field was set.

type RaftPeerPB struct {
	PermanentUUID *string
	MemberType    *MemberType
}

func (m *RaftPeerPB) Reset()         { *m = RaftPeerPB{} }
func (m *RaftPeerPB) String() string  { return fmt.Sprintf("RaftPeerPB{uuid:%s,type:%v}", m.GetPermanentUUID(), m.GetMemberType()) }
func (m *RaftPeerPB) ProtoMessage()   {}

func (m *RaftPeerPB) GetPermanentUUID() string {
	if m != nil && m.PermanentUUID != nil {
		return *m.PermanentUUID
	}
	return ""
}

func (m *RaftPeerPB) GetMemberType() MemberType {
	if m != nil && m.MemberType != nil {
		return *m.MemberType
	}
	return MemberUnknown
}

func (m *RaftPeerPB) Size() int {
	n := 0
	if m.PermanentUUID != nil {
		n += sov(tagFor(1, wireBytes)) + sov(uint64(len(*m.PermanentUUID))) + len(*m.PermanentUUID)
	}
	if m.MemberType != nil {
		n += sov(tagFor(2, wireVarint)) + sov(uint64(*m.MemberType))
	}
	return n
}

func (m *RaftPeerPB) Marshal() ([]byte, error) {
	buf := make([]byte, 0, m.Size())
	if m.PermanentUUID != nil {
		buf = appendString(buf, 1, *m.PermanentUUID)
	}
	if m.MemberType != nil {
		buf = appendVarintField(buf, 2, uint64(*m.MemberType))
	}
	return buf, nil
}

func (m *RaftPeerPB) Unmarshal(data []byte) error {
	fields, err := decodeFields(data)
	if err != nil {
		return cubefserrors.Info(err, "unmarshal RaftPeerPB")
	}
	for _, f := range fields {
		switch f.num {
		case 1:
			s := string(f.raw)
			m.PermanentUUID = &s
		case 2:
			mt := MemberType(f.u64)
			m.MemberType = &mt
		}
	}
	return nil
}

type RaftConfigPB struct {
	Peers     []*RaftPeerPB
	OpidIndex *int64
}

func (m *RaftConfigPB) Reset()        { *m = RaftConfigPB{} }
func (m *RaftConfigPB) String() string { return fmt.Sprintf("RaftConfigPB{peers:%d,opid:%d}", len(m.Peers), m.GetOpidIndex()) }
func (m *RaftConfigPB) ProtoMessage()  {}

func (m *RaftConfigPB) GetOpidIndex() int64 {
	if m != nil && m.OpidIndex != nil {
		return *m.OpidIndex
	}
	return -1
}

func (m *RaftConfigPB) Size() int {
	n := 0
	for _, p := range m.Peers {
		data, _ := p.Marshal()
		n += sov(tagFor(1, wireBytes)) + sov(uint64(len(data))) + len(data)
	}
	if m.OpidIndex != nil {
		n += sov(tagFor(2, wireVarint)) + sov(zigzag64(*m.OpidIndex))
	}
	return n
}

func (m *RaftConfigPB) Marshal() ([]byte, error) {
	buf := make([]byte, 0, m.Size())
	for _, p := range m.Peers {
		data, err := p.Marshal()
		if err != nil {
			return nil, err
		}
		buf = appendMessage(buf, 1, data)
	}
	if m.OpidIndex != nil {
		buf = appendVarintField(buf, 2, zigzag64(*m.OpidIndex))
	}
	return buf, nil
}

func (m *RaftConfigPB) Unmarshal(data []byte) error {
	fields, err := decodeFields(data)
	if err != nil {
		return cubefserrors.Info(err, "unmarshal RaftConfigPB")
	}
	for _, f := range fields {
		switch f.num {
		case 1:
			peer := &RaftPeerPB{}
			if err := peer.Unmarshal(f.raw); err != nil {
				return err
			}
			m.Peers = append(m.Peers, peer)
		case 2:
			idx := unzigzag64(f.u64)
			m.OpidIndex = &idx
		}
	}
	return nil
}

// ToRaftConfig converts the wire message into the in-memory RaftConfig
// used by the rest of the consensus package.
func (m *RaftConfigPB) ToRaftConfig() RaftConfig {
	cfg := RaftConfig{OpidIndex: m.GetOpidIndex(), Peers: make([]RaftPeer, len(m.Peers))}
	for i, p := range m.Peers {
		cfg.Peers[i] = RaftPeer{PermanentUUID: p.GetPermanentUUID(), MemberType: p.GetMemberType()}
	}
	return cfg
}

// FromRaftConfig builds the wire message for a RaftConfig.
func FromRaftConfig(cfg RaftConfig) *RaftConfigPB {
	out := &RaftConfigPB{}
	opid := cfg.OpidIndex
	out.OpidIndex = &opid
	out.Peers = make([]*RaftPeerPB, len(cfg.Peers))
	for i, p := range cfg.Peers {
		uuid := p.PermanentUUID
		mt := p.MemberType
		out.Peers[i] = &RaftPeerPB{PermanentUUID: &uuid, MemberType: &mt}
	}
	return out
}

// ConsensusMetadataPB is the durable record written to
// <root>/consensus-meta/<tablet_id>. pending_config and leader_uuid are
// volatile (§3) and intentionally absent from this message.
type ConsensusMetadataPB struct {
	CurrentTerm     *uint64
	VotedFor        *string
	CommittedConfig *RaftConfigPB
}

func (m *ConsensusMetadataPB) Reset()        { *m = ConsensusMetadataPB{} }
func (m *ConsensusMetadataPB) String() string { return fmt.Sprintf("ConsensusMetadataPB{term:%d}", m.GetCurrentTerm()) }
func (m *ConsensusMetadataPB) ProtoMessage()  {}

func (m *ConsensusMetadataPB) GetCurrentTerm() uint64 {
	if m != nil && m.CurrentTerm != nil {
		return *m.CurrentTerm
	}
	return 0
}

func (m *ConsensusMetadataPB) GetVotedFor() string {
	if m != nil && m.VotedFor != nil {
		return *m.VotedFor
	}
	return ""
}

func (m *ConsensusMetadataPB) Size() int {
	n := 0
	if m.CurrentTerm != nil {
		n += sov(tagFor(1, wireVarint)) + sov(*m.CurrentTerm)
	}
	if m.VotedFor != nil {
		n += sov(tagFor(2, wireBytes)) + sov(uint64(len(*m.VotedFor))) + len(*m.VotedFor)
	}
	if m.CommittedConfig != nil {
		data, _ := m.CommittedConfig.Marshal()
		n += sov(tagFor(3, wireBytes)) + sov(uint64(len(data))) + len(data)
	}
	return n
}

func (m *ConsensusMetadataPB) Marshal() ([]byte, error) {
	buf := make([]byte, 0, m.Size())
	if m.CurrentTerm != nil {
		buf = appendVarintField(buf, 1, *m.CurrentTerm)
	}
	if m.VotedFor != nil {
		buf = appendString(buf, 2, *m.VotedFor)
	}
	if m.CommittedConfig != nil {
		data, err := m.CommittedConfig.Marshal()
		if err != nil {
			return nil, err
		}
		buf = appendMessage(buf, 3, data)
	}
	return buf, nil
}

func (m *ConsensusMetadataPB) Unmarshal(data []byte) error {
	fields, err := decodeFields(data)
	if err != nil {
		return cubefserrors.Info(err, "unmarshal ConsensusMetadataPB")
	}
	for _, f := range fields {
		switch f.num {
		case 1:
			v := f.u64
			m.CurrentTerm = &v
		case 2:
			s := string(f.raw)
			m.VotedFor = &s
		case 3:
			cfg := &RaftConfigPB{}
			if err := cfg.Unmarshal(f.raw); err != nil {
				return err
			}
			m.CommittedConfig = cfg
		}
	}
	return nil
}
