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

// Package consensus is the per-tablet durable consensus metadata
// store (CMS): current term, vote, committed/pending Raft
// configuration, and the derived (active role, leader) projection
// read on every vote and append decision.
package consensus

import (
	"path/filepath"
	"time"

	cubefserrors "github.com/cubefs/cubefs/blobstore/util/errors"

	"github.com/cubefs/tabletnode/metrics"
)

// MinimumTerm is the smallest legal value of current_term.
const MinimumTerm uint64 = 0

const consensusMetaDirName = "consensus-meta"

func metadataDir(rootDir string) string {
	return filepath.Join(rootDir, consensusMetaDirName)
}

func metadataPath(rootDir, tabletID string) string {
	return filepath.Join(metadataDir(rootDir), tabletID)
}

// CreateMode selects whether Create durably flushes the metadata it
// builds or only checks that none exists yet.
type CreateMode int

const (
	FlushOnCreate CreateMode = iota
	NoFlushOnCreate
)

// ConfigKind selects which of a ConsensusMetadata's three
// configuration views an accessor should read.
type ConfigKind int

const (
	ConfigActive ConfigKind = iota
	ConfigCommitted
	ConfigPending
)

// ConsensusState is a point-in-time snapshot of the state
// ToConsensusStatePB reports and MergeCommittedConsensusStatePB
// consumes: term, believed leader (if any), committed config, and
// pending config (if one exists).
type ConsensusState struct {
	CurrentTerm      uint64
	LeaderUUID       string
	CommittedConfig  RaftConfig
	HasPendingConfig bool
	PendingConfig    RaftConfig
}

// ConsensusMetadata is the durable per-tablet consensus record
// described in §3-4.B. It is logically single-writer per tablet (§5):
// all mutators assert that discipline via an assert-only guard; the
// packed (role, term) cache is the sole lock-free exception.
type ConsensusMetadata struct {
	env      Env
	flags    Flags
	rootDir  string
	tabletID string
	peerUUID string

	guard writerGuard

	currentTerm      uint64
	hasVotedFor      bool
	votedFor         string
	committedConfig  RaftConfig
	hasPendingConfig bool
	pendingConfig    RaftConfig
	leaderUUID       string
	activeRole       Role
	cache            PackedCache

	flushCountForTests uint64
	onDiskSize         uint64
}

// Create allocates fresh consensus metadata for (tabletID, peerUUID).
// With FlushOnCreate it performs a non-overwriting flush; with
// NoFlushOnCreate it only checks that no prior metadata file exists,
// failing with ErrAlreadyPresent if one does.
func Create(env Env, flags Flags, rootDir, tabletID, peerUUID string, config RaftConfig, currentTerm uint64, mode CreateMode) (*ConsensusMetadata, error) {
	cm := &ConsensusMetadata{
		env:             env,
		flags:           flags,
		rootDir:         rootDir,
		tabletID:        tabletID,
		peerUUID:        peerUUID,
		currentTerm:     currentTerm,
		committedConfig: config,
	}
	cm.recompute()

	switch mode {
	case FlushOnCreate:
		if err := cm.Flush(NoOverwrite); err != nil {
			return nil, err
		}
	case NoFlushOnCreate:
		if env.FileExists(metadataPath(rootDir, tabletID)) {
			return nil, ErrAlreadyPresent
		}
	}
	return cm, nil
}

// Load reads persisted consensus metadata for (tabletID, peerUUID)
// and recomputes every derived field.
func Load(env Env, flags Flags, rootDir, tabletID, peerUUID string) (*ConsensusMetadata, error) {
	path := metadataPath(rootDir, tabletID)

	pb := &ConsensusMetadataPB{}
	if err := readPBContainerFromPath(path, pb); err != nil {
		return nil, err
	}

	cm := &ConsensusMetadata{
		env:         env,
		flags:       flags,
		rootDir:     rootDir,
		tabletID:    tabletID,
		peerUUID:    peerUUID,
		currentTerm: pb.GetCurrentTerm(),
	}
	if pb.VotedFor != nil {
		cm.hasVotedFor = true
		cm.votedFor = pb.GetVotedFor()
	}
	if pb.CommittedConfig != nil {
		cm.committedConfig = pb.CommittedConfig.ToRaftConfig()
	}
	cm.recompute()

	size, err := env.GetFileSize(path)
	if err != nil {
		return nil, cubefserrors.Info(err, "stat consensus metadata file for tablet "+tabletID)
	}
	cm.onDiskSize = size

	return cm, nil
}

// DeleteOnDiskData removes the persisted consensus metadata file for
// tabletID, if any.
func DeleteOnDiskData(env Env, rootDir, tabletID string) error {
	if err := env.DeleteFile(metadataPath(rootDir, tabletID)); err != nil {
		return cubefserrors.Info(err, "delete consensus metadata for tablet "+tabletID)
	}
	return nil
}

// recompute re-derives active_role from (peer_uuid, leader_uuid,
// ActiveConfig()) and repacks the (role, term) cache. Every mutation
// that can change either half of the cache calls this before
// returning; callers must already hold the writer guard.
func (cm *ConsensusMetadata) recompute() {
	active := cm.activeConfig()
	cm.activeRole = GetConsensusRole(cm.peerUUID, cm.leaderUUID, &active)
	cm.cache.Store(cm.activeRole, cm.currentTerm)
}

func (cm *ConsensusMetadata) activeConfig() RaftConfig {
	if cm.hasPendingConfig {
		return cm.pendingConfig
	}
	return cm.committedConfig
}

// --- accessors ---

func (cm *ConsensusMetadata) CurrentTerm() uint64  { return cm.currentTerm }
func (cm *ConsensusMetadata) HasVotedFor() bool    { return cm.hasVotedFor }
func (cm *ConsensusMetadata) VotedFor() string     { return cm.votedFor }
func (cm *ConsensusMetadata) LeaderUUID() string   { return cm.leaderUUID }
func (cm *ConsensusMetadata) ActiveRole() Role     { return cm.activeRole }
func (cm *ConsensusMetadata) HasPendingConfig() bool { return cm.hasPendingConfig }

func (cm *ConsensusMetadata) CommittedConfig() RaftConfig { return cm.committedConfig }

// PendingConfig returns the pending config. Calling it when
// HasPendingConfig is false is a caller contract violation, and
// panics, per §4.B and §7.
func (cm *ConsensusMetadata) PendingConfig() RaftConfig {
	if !cm.hasPendingConfig {
		panic(ErrNoPendingConfig)
	}
	return cm.pendingConfig
}

// ActiveConfig returns the pending config if one exists, else the
// committed config.
func (cm *ConsensusMetadata) ActiveConfig() RaftConfig {
	return cm.activeConfig()
}

// GetConfig returns the requested configuration view.
func (cm *ConsensusMetadata) GetConfig(kind ConfigKind) RaftConfig {
	switch kind {
	case ConfigCommitted:
		return cm.committedConfig
	case ConfigPending:
		return cm.PendingConfig()
	default:
		return cm.ActiveConfig()
	}
}

func (cm *ConsensusMetadata) GetConfigOpidIndex(kind ConfigKind) int64 {
	cfg := cm.GetConfig(kind)
	return cfg.OpidIndex
}

func (cm *ConsensusMetadata) CountVotersInConfig(kind ConfigKind) int {
	cfg := cm.GetConfig(kind)
	return CountVoters(&cfg)
}

func (cm *ConsensusMetadata) IsVoterInConfig(uuid string, kind ConfigKind) bool {
	cfg := cm.GetConfig(kind)
	return IsRaftConfigVoter(uuid, &cfg)
}

func (cm *ConsensusMetadata) IsMemberInConfig(uuid string, kind ConfigKind) bool {
	cfg := cm.GetConfig(kind)
	return IsRaftConfigMember(uuid, &cfg)
}

// FlushCountForTests and OnDiskSize are the observability fields of
// §3: a monotonic flush counter and the last-known on-disk file size.
func (cm *ConsensusMetadata) FlushCountForTests() uint64 { return cm.flushCountForTests }
func (cm *ConsensusMetadata) OnDiskSize() uint64         { return cm.onDiskSize }

// --- mutators ---

// SetCurrentTerm requires t >= MinimumTerm; it repacks the cache with
// the unchanged role. MinimumTerm is 0 and t is a uint64, so this
// bound currently can't be violated — it's kept because MinimumTerm
// is a named constant, not a literal 0, and the check stays correct
// if that ever changes.
func (cm *ConsensusMetadata) SetCurrentTerm(t uint64) error {
	cm.guard.enter()
	defer cm.guard.exit()

	if t < MinimumTerm {
		return cubefserrors.Info(ErrInvalidArgument, "current term below minimum")
	}
	cm.currentTerm = t
	cm.cache.Store(cm.activeRole, cm.currentTerm)
	return nil
}

// SetVotedFor requires a non-empty uuid.
func (cm *ConsensusMetadata) SetVotedFor(uuid string) error {
	cm.guard.enter()
	defer cm.guard.exit()

	if uuid == "" {
		return cubefserrors.Info(ErrInvalidArgument, "voted_for must be non-empty")
	}
	cm.hasVotedFor = true
	cm.votedFor = uuid
	return nil
}

func (cm *ConsensusMetadata) ClearVotedFor() {
	cm.guard.enter()
	defer cm.guard.exit()

	cm.hasVotedFor = false
	cm.votedFor = ""
}

// SetCommittedConfig replaces the committed config. Active role is
// re-derived only when there is no pending config, since a pending
// config otherwise supersedes it for "active" queries.
func (cm *ConsensusMetadata) SetCommittedConfig(cfg RaftConfig) {
	cm.guard.enter()
	defer cm.guard.exit()

	cm.committedConfig = cfg
	if !cm.hasPendingConfig {
		cm.recompute()
	}
}

func (cm *ConsensusMetadata) SetPendingConfig(cfg RaftConfig) {
	cm.guard.enter()
	defer cm.guard.exit()

	cm.pendingConfig = cfg
	cm.hasPendingConfig = true
	cm.recompute()
}

func (cm *ConsensusMetadata) ClearPendingConfig() {
	cm.guard.enter()
	defer cm.guard.exit()

	cm.hasPendingConfig = false
	cm.pendingConfig = RaftConfig{}
	cm.recompute()
}

// SetLeaderUUID sets the believed leader; an empty string means
// "unknown leader".
func (cm *ConsensusMetadata) SetLeaderUUID(uuid string) {
	cm.guard.enter()
	defer cm.guard.exit()

	cm.leaderUUID = uuid
	cm.recompute()
}

// ToConsensusStatePB snapshots the fields an authoritative remote
// state exchange cares about.
func (cm *ConsensusMetadata) ToConsensusStatePB() ConsensusState {
	return ConsensusState{
		CurrentTerm:      cm.currentTerm,
		LeaderUUID:       cm.leaderUUID,
		CommittedConfig:  cm.committedConfig,
		HasPendingConfig: cm.hasPendingConfig,
		PendingConfig:    cm.pendingConfig,
	}
}

// MergeCommittedConsensusStatePB adopts a remote authoritative
// snapshot: a higher term clears the vote; the leader belief and any
// pending membership change are always cleared, since a remote
// committed snapshot invalidates both regardless of term.
func (cm *ConsensusMetadata) MergeCommittedConsensusStatePB(other ConsensusState) {
	cm.guard.enter()
	defer cm.guard.exit()

	if other.CurrentTerm > cm.currentTerm {
		cm.currentTerm = other.CurrentTerm
		cm.hasVotedFor = false
		cm.votedFor = ""
	}
	cm.leaderUUID = ""
	cm.committedConfig = other.CommittedConfig
	cm.hasPendingConfig = false
	cm.pendingConfig = RaftConfig{}
	cm.recompute()
}

// GetRoleAndTerm is the lock-free fast path of §4.A/§9: one atomic
// load of the packed cache, then unpack. Callers that need a stable
// paired (role, term) use this entry point exclusively rather than
// calling ActiveRole() and CurrentTerm() separately.
func (cm *ConsensusMetadata) GetRoleAndTerm() (Role, uint64) {
	return cm.cache.Load()
}

// Flush durably persists the committed config, term, and vote per
// §4.B.1:
//
//  1. bump flush_count_for_tests;
//  2. verify the committed config, refusing to write an invalid one;
//  3. ensure the consensus-metadata directory exists, syncing its
//     parent if this call created it;
//  4. write the container file, fsyncing it when the flags say so;
//  5. refresh on_disk_size.
//
// The probabilistic crash-injection hook (Flags.maybeCrash) fires
// just before step 4's write begins.
func (cm *ConsensusMetadata) Flush(policy OverwritePolicy) error {
	cm.guard.enter()
	defer cm.guard.exit()

	cm.flushCountForTests++

	if err := VerifyRaftConfig(&cm.committedConfig); err != nil {
		return cubefserrors.Info(err, "invalid config in ConsensusMetadata, cannot flush to disk for tablet "+cm.tabletID)
	}

	dir := metadataDir(cm.rootDir)
	created, err := cm.env.CreateDirIfMissing(dir)
	if err != nil {
		return cubefserrors.Info(err, "create consensus metadata directory for tablet "+cm.tabletID)
	}
	if created {
		if err := cm.env.SyncDir(filepath.Dir(dir)); err != nil {
			return cubefserrors.Info(err, "sync consensus metadata parent directory for tablet "+cm.tabletID)
		}
	}

	path := metadataPath(cm.rootDir, cm.tabletID)
	cm.flags.maybeCrash()

	pb := &ConsensusMetadataPB{CommittedConfig: FromRaftConfig(cm.committedConfig)}
	term := cm.currentTerm
	pb.CurrentTerm = &term
	if cm.hasVotedFor {
		voted := cm.votedFor
		pb.VotedFor = &voted
	}

	sync := cm.flags.shouldSyncFile(cm.env, path)
	start := time.Now()
	if err := writePBContainerToPath(cm.env, path, pb, policy, sync); err != nil {
		return cubefserrors.Info(err, "flush consensus metadata for tablet "+cm.tabletID+" to "+path)
	}
	metrics.ObserveFlush(cm.tabletID, time.Since(start))

	size, err := cm.env.GetFileSize(path)
	if err != nil {
		return cubefserrors.Info(err, "stat consensus metadata file for tablet "+cm.tabletID)
	}
	cm.onDiskSize = size
	metrics.SetOnDiskSize(cm.tabletID, size)
	metrics.IncFlushCount(cm.tabletID)

	return nil
}
