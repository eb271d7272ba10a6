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

// The zk-nodecache watcher mirrors a single ZooKeeper node and logs every
// observed change. It doubles as a reference for embedding the nodecache
// package.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/united-manufacturing-hub/zk-nodecache/pkg/config"
	"github.com/united-manufacturing-hub/zk-nodecache/pkg/logger"
	"github.com/united-manufacturing-hub/zk-nodecache/pkg/metrics"
	"github.com/united-manufacturing-hub/zk-nodecache/pkg/nodecache"
	"github.com/united-manufacturing-hub/zk-nodecache/pkg/zkclient"
)

func main() {
	logger.Initialize()
	log := logger.For(logger.ComponentCore)

	configPath := flag.String("config", "", "path to the YAML config file (optional, env vars override)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("Failed to load config: %v", err)
		os.Exit(1)
	}

	log.Infof("Starting zk-nodecache watcher for %s via %v", cfg.Node.Path, cfg.Zookeeper.Servers)

	server := metrics.SetupMetricsEndpoint(fmt.Sprintf(":%d", cfg.Metrics.Port))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Failed to shutdown metrics server: %v", err)
		}
	}()

	conn, sessionEvents, err := zkclient.Dial(cfg.Zookeeper.Servers, cfg.Zookeeper.SessionTimeout)
	if err != nil {
		log.Errorf("Failed to connect to ZooKeeper: %v", err)
		os.Exit(1)
	}
	defer conn.Close()

	opts := []nodecache.Option{
		nodecache.WithSessionEvents(sessionEvents),
	}
	if cfg.Node.Compressed {
		opts = append(opts, nodecache.WithCodec(nodecache.GzipCodec{}))
	}

	// The first Start performs real remote calls (ancestor creation, initial
	// build); retry while the session is still being established. A failed
	// Start consumes the instance's lifecycle, so each attempt builds a
	// fresh cache.
	var cache *nodecache.NodeCache
	start := func() error {
		c, err := nodecache.New(conn, cfg.Node.Path, opts...)
		if err != nil {
			return backoff.Permanent(err)
		}

		c.AddObserver(func() error {
			log.Infof("Node changed: %s", c.GetCurrentData())

			return nil
		})

		if err := c.Start(context.Background(), true); err != nil {
			_ = c.Close()

			return err
		}
		cache = c

		return nil
	}
	if err := backoff.Retry(start, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)); err != nil {
		log.Errorf("Failed to start node cache: %v", err)
		os.Exit(1)
	}

	log.Infof("Initial view: %s", cache.GetCurrentData())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	if err := cache.Close(); err != nil {
		log.Errorf("Failed to close node cache: %v", err)
	}
}
