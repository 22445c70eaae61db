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
	"encoding/binary"
	"hash/crc32"
	"os"

	"github.com/gogo/protobuf/proto"

	cubefserrors "github.com/cubefs/cubefs/blobstore/util/errors"
)

// pbMessage is the subset of proto.Message that RaftPeerPB, RaftConfigPB
// and ConsensusMetadataPB all implement: Reset/String/ProtoMessage for
// proto.Message itself, plus the Marshaler/Unmarshaler Marshal and
// Unmarshal methods gogo/protobuf's proto.Marshal and proto.Unmarshal
// look for on generated types before falling back to reflection.
type pbMessage interface {
	proto.Message
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// OverwritePolicy controls whether WritePBContainerToPath may replace
// an existing file.
type OverwritePolicy int

const (
	NoOverwrite OverwritePolicy = iota
	Overwrite
)

var containerMagic = [8]byte{'t', 'a', 'b', 'c', 'm', 'e', 't', 'a'}

const containerVersion = 1

// writePBContainerToPath implements §6's pb.WritePBContainerToPath: a
// small fixed header (magic + version) followed by one length-prefixed
// record holding the marshaled message and a trailing CRC-32 (IEEE)
// checksum of that record — the same checksum algorithm the teacher
// already reaches for in shardserver/catalog/shard.go's getKeyLock.
// The file is written to a temporary name and renamed into place so a
// reader never observes a partially written container.
func writePBContainerToPath(env Env, path string, msg pbMessage, overwrite OverwritePolicy, sync bool) error {
	if overwrite == NoOverwrite && env.FileExists(path) {
		return ErrAlreadyPresent
	}

	payload, err := proto.Marshal(msg)
	if err != nil {
		return cubefserrors.Info(err, "marshal consensus metadata")
	}

	buf := make([]byte, 0, len(containerMagic)+4+4+len(payload)+4)
	buf = append(buf, containerMagic[:]...)
	buf = appendUint32(buf, containerVersion)
	buf = appendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	buf = appendUint32(buf, crc32.ChecksumIEEE(payload))

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return cubefserrors.Info(err, "create consensus metadata temp file "+tmpPath)
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return cubefserrors.Info(err, "write consensus metadata temp file "+tmpPath)
	}
	if sync {
		if err := f.Sync(); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return cubefserrors.Info(err, "fsync consensus metadata temp file "+tmpPath)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return cubefserrors.Info(err, "close consensus metadata temp file "+tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return cubefserrors.Info(err, "rename consensus metadata into place at "+path)
	}
	return nil
}

// readPBContainerFromPath implements §6's pb.ReadPBContainerFromPath.
func readPBContainerFromPath(path string, msg pbMessage) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return cubefserrors.Info(err, "read consensus metadata file "+path)
	}
	if len(data) < len(containerMagic)+8 {
		return cubefserrors.Info(ErrInvalidArgument, "consensus metadata file "+path+" is truncated")
	}
	for i := range containerMagic {
		if data[i] != containerMagic[i] {
			return cubefserrors.Info(ErrInvalidArgument, "consensus metadata file "+path+" has bad magic")
		}
	}
	off := len(containerMagic)
	version := binary.BigEndian.Uint32(data[off:])
	off += 4
	if version != containerVersion {
		return cubefserrors.Info(ErrInvalidArgument, "consensus metadata file "+path+" has unsupported version")
	}
	length := binary.BigEndian.Uint32(data[off:])
	off += 4
	if uint64(off)+uint64(length)+4 != uint64(len(data)) {
		return cubefserrors.Info(ErrInvalidArgument, "consensus metadata file "+path+" has inconsistent length")
	}
	payload := data[off : off+int(length)]
	off += int(length)
	wantCRC := binary.BigEndian.Uint32(data[off:])
	if gotCRC := crc32.ChecksumIEEE(payload); gotCRC != wantCRC {
		return cubefserrors.Info(ErrInvalidArgument, "consensus metadata file "+path+" failed crc check")
	}
	return proto.Unmarshal(payload, msg)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}
