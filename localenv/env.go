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

// Package localenv is the concrete, on-disk implementation of
// consensus.Env, the same role shardserver/store's posixRawFS plays
// for raw data files in the teacher corpus: a thin, directly-testable
// wrapper over os/syscall rather than anything the consensus package
// needs to know about.
package localenv

import (
	"os"
	"syscall"

	cubefserrors "github.com/cubefs/cubefs/blobstore/util/errors"
)

// xfsSuperMagic is Linux's f_type value for XFS, from
// /usr/include/linux/magic.h.
const xfsSuperMagic = 0x58465342

// Local is a consensus.Env backed by the local filesystem.
type Local struct{}

// New returns a Local environment.
func New() *Local { return &Local{} }

func (l *Local) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (l *Local) CreateDirIfMissing(path string) (created bool, err error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, cubefserrors.Info(err, "stat directory "+path)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return false, cubefserrors.Info(err, "mkdir "+path)
	}
	return true, nil
}

func (l *Local) SyncDir(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return cubefserrors.Info(err, "open directory "+path+" for sync")
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return cubefserrors.Info(err, "fsync directory "+path)
	}
	return nil
}

func (l *Local) GetFileSize(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, cubefserrors.Info(err, "stat file "+path)
	}
	return uint64(info.Size()), nil
}

func (l *Local) DeleteFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return cubefserrors.Info(err, "remove file "+path)
	}
	return nil
}

// IsOnXFS reports whether path's filesystem is XFS. It walks up to
// the nearest existing ancestor before calling statfs, since path
// itself may not exist yet (e.g. a file about to be created).
func (l *Local) IsOnXFS(path string) bool {
	for p := path; ; {
		var stat syscall.Statfs_t
		if err := syscall.Statfs(p, &stat); err == nil {
			return stat.Type == xfsSuperMagic
		}
		parent := parentDir(p)
		if parent == p {
			return false
		}
		p = parent
	}
}

func parentDir(path string) string {
	i := len(path) - 1
	for i > 0 && path[i] != '/' {
		i--
	}
	if i == 0 {
		return "/"
	}
	return path[:i]
}
