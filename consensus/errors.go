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

import "errors"

// Sentinel error kinds, compared with errors.Is by callers. Filesystem
// and config-verification failures are wrapped with
// github.com/cubefs/cubefs/blobstore/util/errors before reaching the
// caller so the tablet and, for Flush, the destination path stay in
// the error text.
var (
	// ErrAlreadyPresent is returned by Create when NoOverwrite is
	// requested and on-disk metadata already exists for the tablet.
	ErrAlreadyPresent = errors.New("consensus metadata already present for tablet")

	// ErrInvalidArgument is returned when a mutator is called with a
	// value that violates its precondition (e.g. empty voted-for).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoPendingConfig is a programmer error: PendingConfig was
	// requested while has_pending_config is false.
	ErrNoPendingConfig = errors.New("no pending config set")
)
