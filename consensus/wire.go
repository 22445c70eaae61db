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
	"io"

	cubefserrors "github.com/cubefs/cubefs/blobstore/util/errors"
)

// Minimal protobuf wire-format helpers shared by the hand-written
// Marshal/Unmarshal/Size methods of ConsensusMetadataPB, RaftConfigPB
// and RaftPeerPB in pb.go. These mirror the shape of the helper
// functions (sovX/encodeVarintX) that protoc-gen-gogo emits alongside
// generated messages — there is no .proto file to run protoc against
// here, so the codec is written by hand in the same style.

const (
	wireVarint = 0
	wireBytes  = 2
)

func tagFor(field int, wire int) uint64 {
	return uint64(field)<<3 | uint64(wire)
}

// sov (size-of-varint) returns the number of bytes needed to encode v.
func sov(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func appendString(buf []byte, field int, s string) []byte {
	buf = appendVarint(buf, tagFor(field, wireBytes))
	buf = appendVarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendVarintField(buf []byte, field int, v uint64) []byte {
	buf = appendVarint(buf, tagFor(field, wireVarint))
	return appendVarint(buf, v)
}

func appendMessage(buf []byte, field int, data []byte) []byte {
	buf = appendVarint(buf, tagFor(field, wireBytes))
	buf = appendVarint(buf, uint64(len(data)))
	return append(buf, data...)
}

func zigzag64(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

func unzigzag64(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// decodeVarint reads one varint from the front of data, returning the
// value and the number of bytes consumed.
func decodeVarint(data []byte) (uint64, int, error) {
	var x uint64
	var s uint
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b < 0x80 {
			if i > 9 || (i == 9 && b > 1) {
				return 0, 0, cubefserrors.Info(ErrInvalidArgument, "varint overflows 64 bits")
			}
			return x | uint64(b)<<s, i + 1, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, 0, io.ErrUnexpectedEOF
}

// wireField is one decoded (field number, wire type, value-or-bytes)
// triple, used by each message's Unmarshal loop.
type wireField struct {
	num  int
	wire int
	u64  uint64
	raw  []byte
}

func decodeFields(data []byte) ([]wireField, error) {
	var out []wireField
	for len(data) > 0 {
		tag, n, err := decodeVarint(data)
		if err != nil {
			return nil, err
		}
		data = data[n:]
		f := wireField{num: int(tag >> 3), wire: int(tag & 7)}
		switch f.wire {
		case wireVarint:
			v, n, err := decodeVarint(data)
			if err != nil {
				return nil, err
			}
			f.u64 = v
			data = data[n:]
		case wireBytes:
			l, n, err := decodeVarint(data)
			if err != nil {
				return nil, err
			}
			data = data[n:]
			if uint64(len(data)) < l {
				return nil, io.ErrUnexpectedEOF
			}
			f.raw = data[:l]
			data = data[l:]
		default:
			return nil, cubefserrors.Info(ErrInvalidArgument, "unsupported wire type in consensus metadata container")
		}
		out = append(out, f)
	}
	return out, nil
}
