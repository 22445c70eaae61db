/*
 *
 * Copyright 2023 CubeFS authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

/*

# tabletnode: the consensus metadata store and rowset directory of a tablet

A tablet is a horizontally-partitioned unit of a distributed table,
with its own Raft consensus group and its own set of rowsets. This
module implements the two subsystems every such tablet needs on top
of its Raft engine and its row storage:

* package consensus — the Consensus Metadata Store (CMS): a durable
  per-tablet record of current term, vote, and committed/pending Raft
  configuration, plus a lock-free projection of (active role,
  current term) for hot-path reads.

* package rowset (with package intervaltree underneath) and package
  tablet — the RowSet Directory (RSD): an in-memory catalogue of a
  tablet's immutable on-disk rowsets and its single mutable
  in-memory rowset, with an atomic swap surface for flush and
  compaction.

## Out of scope

The Raft vote/append protocol itself, the write-ahead log, the
compaction policy, the MVCC transaction engine, row encoding, and
CLI/RPC/metrics plumbing beyond what's needed to exercise these two
subsystems are treated as external collaborators with their own
packages elsewhere.

*/

package tabletnode
