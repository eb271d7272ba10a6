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
	"sync"

	"github.com/go-zookeeper/zk"
)

// fakeConn is an in-memory stand-in for *zk.Conn with one-shot watch
// channels, the way ZooKeeper delivers them: one event, then the channel is
// closed.
type fakeConn struct {
	mu      sync.Mutex
	nodes   map[string]*fakeNode
	watches map[string][]chan zk.Event
	zxid    int64

	// Injected failures, returned by every call until cleared.
	existsErr error
	getErr    error
}

type fakeNode struct {
	data []byte
	stat zk.Stat
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		nodes:   make(map[string]*fakeNode),
		watches: make(map[string][]chan zk.Event),
	}
}

func (f *fakeConn) setExistsErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsErr = err
}

func (f *fakeConn) setGetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

// createNode adds a node and fires its watches.
func (f *fakeConn) createNode(path string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.zxid++
	f.nodes[path] = &fakeNode{
		data: data,
		stat: zk.Stat{Czxid: f.zxid, Mzxid: f.zxid, DataLength: int32(len(data))},
	}
	f.fireWatchesLocked(path, zk.EventNodeCreated)
}

// setNode overwrites a node's payload, bumping version and mzxid, and fires
// its watches.
func (f *fakeConn) setNode(path string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	node := f.nodes[path]
	f.zxid++
	node.data = data
	node.stat.Mzxid = f.zxid
	node.stat.Version++
	node.stat.DataLength = int32(len(data))
	f.fireWatchesLocked(path, zk.EventNodeDataChanged)
}

// deleteNode removes a node and fires its watches.
func (f *fakeConn) deleteNode(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.nodes, path)
	f.zxid++
	f.fireWatchesLocked(path, zk.EventNodeDeleted)
}

// fireWatches fires the armed watches without changing the node, simulating
// a remote round trip that ends at the same value.
func (f *fakeConn) fireWatches(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fireWatchesLocked(path, zk.EventNodeDataChanged)
}

func (f *fakeConn) fireWatchesLocked(path string, eventType zk.EventType) {
	for _, ch := range f.watches[path] {
		ch <- zk.Event{Type: eventType, Path: path}
		close(ch)
	}
	f.watches[path] = nil
}

func (f *fakeConn) armWatchLocked(path string) <-chan zk.Event {
	ch := make(chan zk.Event, 1)
	f.watches[path] = append(f.watches[path], ch)

	return ch
}

func (f *fakeConn) statCopyLocked(path string) *zk.Stat {
	stat := f.nodes[path].stat

	return &stat
}

func (f *fakeConn) Exists(path string) (bool, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.existsErr != nil {
		return false, nil, f.existsErr
	}
	if _, ok := f.nodes[path]; !ok {
		return false, nil, nil
	}

	return true, f.statCopyLocked(path), nil
}

func (f *fakeConn) ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.existsErr != nil {
		return false, nil, nil, f.existsErr
	}

	watch := f.armWatchLocked(path)
	if _, ok := f.nodes[path]; !ok {
		return false, nil, watch, nil
	}

	return true, f.statCopyLocked(path), watch, nil
}

func (f *fakeConn) Get(path string) ([]byte, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, nil, f.getErr
	}
	node, ok := f.nodes[path]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}

	return append([]byte(nil), node.data...), f.statCopyLocked(path), nil
}

func (f *fakeConn) GetW(path string) ([]byte, *zk.Stat, <-chan zk.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, nil, nil, f.getErr
	}
	node, ok := f.nodes[path]
	if !ok {
		return nil, nil, nil, zk.ErrNoNode
	}

	return append([]byte(nil), node.data...), f.statCopyLocked(path), f.armWatchLocked(path), nil
}

func (f *fakeConn) Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.nodes[path]; ok {
		return "", zk.ErrNodeExists
	}

	f.zxid++
	f.nodes[path] = &fakeNode{
		data: append([]byte(nil), data...),
		stat: zk.Stat{Czxid: f.zxid, Mzxid: f.zxid, DataLength: int32(len(data))},
	}
	f.fireWatchesLocked(path, zk.EventNodeCreated)

	return path, nil
}
