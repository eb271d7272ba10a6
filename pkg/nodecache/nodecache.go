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

// Package nodecache keeps the data of a single ZooKeeper node locally cached.
// The cache watches the node, responds to create/update/delete events, pulls
// down the data and notifies registered observers when the cached view
// actually changed.
//
// It is not possible to stay transactionally in sync: users must be prepared
// for false positives and false negatives, and should use the stat version
// when writing back to avoid overwriting another process' change.
package nodecache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/go-zookeeper/zk"
	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/zk-nodecache/pkg/logger"
	"github.com/united-manufacturing-hub/zk-nodecache/pkg/metrics"
	"github.com/united-manufacturing-hub/zk-nodecache/pkg/zkclient"
)

// NodeCache mirrors one ZooKeeper node. Create it with New, call Start to
// make it live and Close when done. All methods are safe for concurrent use.
type NodeCache struct {
	conn          zkclient.Conn
	path          string
	log           *zap.SugaredLogger
	codec         PayloadCodec
	sessionEvents <-chan zk.Event

	lifecycle *fsm.FSM
	data      atomic.Pointer[Snapshot]
	connected atomic.Bool
	observers observerSet

	// refreshC coalesces refresh requests: watch fires, reconnects and manual
	// rebuilds all funnel into it, and the run loop consumes one at a time.
	refreshC chan struct{}
	stopC    chan struct{}
}

// Option configures a NodeCache.
type Option func(*NodeCache)

// WithLogger overrides the default component logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *NodeCache) {
		c.log = log
	}
}

// WithSessionEvents hands the cache the session event channel returned by
// zkclient.Dial. Without it the cache assumes the session is always usable
// and never performs reconnection resyncs.
func WithSessionEvents(events <-chan zk.Event) Option {
	return func(c *NodeCache) {
		c.sessionEvents = events
	}
}

// WithCodec decodes node payloads before they are installed, e.g. GzipCodec
// for writers that store compressed data.
func WithCodec(codec PayloadCodec) Option {
	return func(c *NodeCache) {
		c.codec = codec
	}
}

// New creates a cache for the given node path. The path is validated here;
// the node itself does not have to exist.
func New(conn zkclient.Conn, path string, opts ...Option) (*NodeCache, error) {
	if err := zkclient.ValidatePath(path); err != nil {
		return nil, err
	}

	c := &NodeCache{
		conn:      conn,
		path:      path,
		log:       logger.For(logger.ComponentNodeCache),
		lifecycle: newLifecycle(),
		refreshC:  make(chan struct{}, 1),
		stopC:     make(chan struct{}),
	}
	// A fresh session is assumed usable until a session event says otherwise.
	c.connected.Store(true)

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Start makes the cache live: it ensures the node's ancestors exist, begins
// listening for session events and launches the watch-driven refresh cycle.
// With buildInitial, the first view of the node is fetched synchronously
// before Start returns. Starting twice fails with ErrIllegalLifecycle.
//
// A failed Start leaves the cache defunct: no background goroutines are
// running, it cannot be restarted, and Close remains a safe no-op. Build a
// fresh instance to retry.
func (c *NodeCache) Start(ctx context.Context, buildInitial bool) error {
	if err := transition(ctx, c.lifecycle, eventStart); err != nil {
		return err
	}

	if err := zkclient.EnsurePath(c.conn, zkclient.ParentPath(c.path)); err != nil {
		return fmt.Errorf("%w: %s", ErrRemoteUnavailable, err)
	}

	if buildInitial {
		if err := c.rebuildSync(); err != nil {
			return err
		}
	}

	metrics.SetConnectionUp(c.path, c.connected.Load())

	if c.sessionEvents != nil {
		go c.watchSession()
	}
	go c.run()

	c.reset()
	c.log.Infof("Node cache started for %s", c.path)

	return nil
}

// Close stops the cache and clears all observers. Only the first call on a
// started cache has any effect; further calls (and calls on a never-started
// cache) are no-ops. In-flight remote operations are not cancelled; their
// results are discarded when they land.
func (c *NodeCache) Close() error {
	if err := transition(context.Background(), c.lifecycle, eventClose); err != nil {
		return nil
	}

	c.observers.clear()
	close(c.stopC)
	c.log.Infof("Node cache closed for %s", c.path)

	return nil
}

// Rebuild completely refreshes the cached view by querying ZooKeeper
// directly. NOTE: this is a BLOCKING call and it does not emit change
// notifications for the rebuild itself; only the watch re-arm that follows
// may, if the remote state moved in between.
func (c *NodeCache) Rebuild() error {
	if c.lifecycle.Current() != StateStarted {
		return ErrNotStarted
	}

	if err := c.rebuildSync(); err != nil {
		return err
	}

	c.reset()

	return nil
}

// GetCurrentData returns the most recent view of the node, or nil if the node
// was absent at the last observation (or has never been observed). There is
// no guarantee of freshness.
func (c *NodeCache) GetCurrentData() *Snapshot {
	return c.data.Load()
}

// AddObserver registers an observer and returns a handle for removal.
// Observers are invoked sequentially, in registration order, on the goroutine
// that installed the change.
func (c *NodeCache) AddObserver(fn Observer) uuid.UUID {
	return c.observers.add(fn)
}

// RemoveObserver removes a previously registered observer.
func (c *NodeCache) RemoveObserver(id uuid.UUID) {
	c.observers.remove(id)
}

// reset requests one refresh cycle iteration. It is a silent no-op unless the
// cache is started and the session is currently usable; this is what
// suppresses refreshes while disconnected. Requests are coalesced, so calling
// it from multiple watch fires at once schedules a single iteration.
func (c *NodeCache) reset() {
	if c.lifecycle.Current() != StateStarted || !c.connected.Load() {
		return
	}

	metrics.IncReset(c.path)

	select {
	case c.refreshC <- struct{}{}:
	default:
	}
}

// run is the single consumer of refresh requests.
func (c *NodeCache) run() {
	for {
		select {
		case <-c.stopC:
			return
		case <-c.refreshC:
			c.refresh()
		}
	}
}

// refresh performs one exists -> fetch -> install iteration, re-arming a
// watch at every step. Errors are absorbed: no install happens and the watch
// armed by an earlier step remains the mechanism that eventually re-triggers
// the cycle. The cache can lag until then, or until an explicit Rebuild.
func (c *NodeCache) refresh() {
	exists, _, existsWatch, err := c.conn.ExistsW(c.path)
	if err != nil {
		metrics.IncRefreshError(c.path)
		c.log.Warnf("Watched existence check for %s failed: %v", c.path, err)

		return
	}
	c.forwardWatch(existsWatch)

	if !exists {
		c.install(nil)

		return
	}

	data, stat, getWatch, err := c.conn.GetW(c.path)
	if err != nil {
		// Includes the node vanishing between the two calls: the exists
		// watch has already seen the delete and will re-trigger the cycle.
		metrics.IncRefreshError(c.path)
		c.log.Warnf("Watched fetch for %s failed: %v", c.path, err)

		return
	}
	c.forwardWatch(getWatch)

	payload := data
	if c.codec != nil {
		payload, err = c.codec.Decode(data)
		if err != nil {
			metrics.IncRefreshError(c.path)
			c.log.Warnf("Decoding payload of %s failed: %v", c.path, err)

			return
		}
	}

	c.install(newSnapshot(c.path, stat, payload))
}

// forwardWatch turns a one-shot watch channel into a refresh request.
func (c *NodeCache) forwardWatch(watch <-chan zk.Event) {
	go func() {
		select {
		case <-c.stopC:
		case _, ok := <-watch:
			if ok {
				c.reset()
			}
		}
	}()
}

// install atomically swaps in the new snapshot and, if and only if it differs
// from the previous one, notifies all observers exactly once. Installs that
// land after Close are discarded.
func (c *NodeCache) install(next *Snapshot) {
	if c.lifecycle.Current() == StateClosed {
		return
	}

	prev := c.data.Swap(next)
	metrics.IncInstall(c.path)

	if prev.Equal(next) {
		return
	}

	metrics.IncNotification(c.path)
	c.log.Debugf("Cached view of %s changed: %s -> %s", c.path, prev, next)
	c.observers.notifyAll(c.path, c.log)
}

// rebuildSync reads the node directly (no watch) and installs the result
// silently, without change notifications. Transient failures propagate to the
// caller; an absent node is a first-class result, not an error.
func (c *NodeCache) rebuildSync() error {
	metrics.IncRebuild(c.path)

	data, stat, err := c.conn.Get(c.path)
	switch {
	case errors.Is(err, zk.ErrNoNode):
		c.data.Store(nil)
	case err != nil:
		return fmt.Errorf("%w: reading %s: %s", ErrRemoteUnavailable, c.path, err)
	default:
		payload := data
		if c.codec != nil {
			payload, err = c.codec.Decode(data)
			if err != nil {
				return fmt.Errorf("rebuilding %s: %w", c.path, err)
			}
		}
		c.data.Store(newSnapshot(c.path, stat, payload))
	}

	return nil
}

// watchSession consumes session state transitions. A session that becomes
// usable again may have lost its watches, so the edge into StateHasSession
// forces a full resync instead of an incremental one.
func (c *NodeCache) watchSession() {
	for {
		select {
		case <-c.stopC:
			return
		case ev, ok := <-c.sessionEvents:
			if !ok {
				return
			}
			if ev.Type != zk.EventSession {
				continue
			}
			c.handleSessionState(ev.State)
		}
	}
}

func (c *NodeCache) handleSessionState(state zk.State) {
	if state == zk.StateHasSession {
		// Edge-triggered: repeated connected notifications must not cause
		// duplicate resyncs.
		if c.connected.CompareAndSwap(false, true) {
			metrics.SetConnectionUp(c.path, true)
			c.log.Infof("Session usable again, resyncing %s", c.path)

			if err := c.rebuildSync(); err != nil {
				c.log.Errorf("Resync of %s after reconnection failed: %v", c.path, err)
			}
			c.reset()
		}

		return
	}

	if c.connected.CompareAndSwap(true, false) {
		metrics.SetConnectionUp(c.path, false)
		c.log.Warnf("Session state %s, suppressing refreshes of %s until reconnection", state, c.path)
	}
}
