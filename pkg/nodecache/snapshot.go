// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nodecache

import (
	"bytes"
	"fmt"

	"github.com/go-zookeeper/zk"
)

// Snapshot is an immutable point-in-time view of the cached node. A nil
// *Snapshot means the node was absent (or never fetched); a non-nil Snapshot
// always carries both the stat and the payload. Snapshots are replaced
// wholesale on every install and never mutated in place.
type Snapshot struct {
	// Path is the full path of the cached node.
	Path string

	// Stat is the ZooKeeper stat observed when the payload was read.
	Stat *zk.Stat

	// Data is the raw payload, already decompressed if a codec is configured.
	Data []byte
}

func newSnapshot(path string, stat *zk.Stat, data []byte) *Snapshot {
	return &Snapshot{Path: path, Stat: stat, Data: data}
}

// Equal reports whether two snapshots describe the same observed state:
// both absent, or same path, identical stat and identical payload bytes.
// The stat is part of equality, so a write that leaves the payload unchanged
// but bumps the version still counts as a change.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Path != other.Path {
		return false
	}
	if (s.Stat == nil) != (other.Stat == nil) {
		return false
	}
	if s.Stat != nil && *s.Stat != *other.Stat {
		return false
	}

	return bytes.Equal(s.Data, other.Data)
}

// String renders the snapshot for logs.
func (s *Snapshot) String() string {
	if s == nil {
		return "Snapshot{absent}"
	}

	return fmt.Sprintf("Snapshot{path: %s, version: %d, mzxid: %d, bytes: %d}",
		s.Path, s.Stat.Version, s.Stat.Mzxid, len(s.Data))
}
