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

// Package zkclient wraps the go-zookeeper client behind the narrow interface
// the node cache needs, so the cache can be driven by a fake in tests.
package zkclient

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/zk-nodecache/pkg/logger"
)

// Conn is the subset of *zk.Conn operations used by the node cache.
// *zk.Conn satisfies it directly.
type Conn interface {
	Exists(path string) (bool, *zk.Stat, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Get(path string) ([]byte, *zk.Stat, error)
	GetW(path string) ([]byte, *zk.Stat, <-chan zk.Event, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
}

// zapPrintfBridge adapts a sugared zap logger to the zk.Logger interface.
type zapPrintfBridge struct {
	log *zap.SugaredLogger
}

func (b zapPrintfBridge) Printf(format string, args ...interface{}) {
	b.log.Debugf(format, args...)
}

// Dial connects to the given ZooKeeper ensemble. The returned event channel
// carries session state transitions and must be consumed; pass it to the node
// cache via nodecache.WithSessionEvents.
func Dial(servers []string, sessionTimeout time.Duration) (*zk.Conn, <-chan zk.Event, error) {
	conn, events, err := zk.Connect(servers, sessionTimeout,
		zk.WithLogger(zapPrintfBridge{log: logger.For(logger.ComponentZKClient)}))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to zookeeper %v: %w", servers, err)
	}

	return conn, events, nil
}

// EnsurePath creates the given path and all of its ancestors as persistent
// nodes with empty data. It is idempotent; nodes that already exist are left
// untouched.
func EnsurePath(conn Conn, path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	if path == "/" {
		return nil
	}

	segments := strings.Split(path[1:], "/")
	current := ""
	for _, segment := range segments {
		current += "/" + segment
		_, err := conn.Create(current, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && err != zk.ErrNodeExists {
			return fmt.Errorf("ensuring path %s: %w", current, err)
		}
	}

	return nil
}

// ParentPath returns the parent of a ZooKeeper path, or "/" for top-level nodes.
func ParentPath(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "/"
	}

	return path[:idx]
}

// ValidatePath checks a path against ZooKeeper's path grammar: absolute,
// no trailing slash, no empty or relative path segments, no null characters.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path must start with /: %q", path)
	}
	if path == "/" {
		return nil
	}
	if strings.HasSuffix(path, "/") {
		return fmt.Errorf("path must not end with /: %q", path)
	}
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("path must not contain null characters: %q", path)
	}

	for _, segment := range strings.Split(path[1:], "/") {
		switch segment {
		case "":
			return fmt.Errorf("path contains an empty segment: %q", path)
		case ".", "..":
			return fmt.Errorf("relative path segments are not allowed: %q", path)
		}
	}

	return nil
}
