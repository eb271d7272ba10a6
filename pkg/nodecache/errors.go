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

import "errors"

var (
	// ErrIllegalLifecycle is returned when an operation is attempted in the
	// wrong cache state, e.g. starting a cache twice or after closing it.
	ErrIllegalLifecycle = errors.New("illegal cache lifecycle transition")

	// ErrNotStarted is returned by Rebuild when the cache has not been started.
	ErrNotStarted = errors.New("cache not started")

	// ErrRemoteUnavailable wraps transient ZooKeeper failures surfaced by the
	// blocking paths (Start with initial build, Rebuild). Failures inside the
	// asynchronous refresh cycle are logged and absorbed instead.
	ErrRemoteUnavailable = errors.New("zookeeper unavailable")
)
