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

// Package metrics exposes prometheus instrumentation for the node cache.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/united-manufacturing-hub/zk-nodecache/pkg/logger"
)

var (
	// Namespace and subsystem for all metrics.
	namespace = "umh"
	subsystem = "nodecache"

	resetCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "resets_total",
			Help:      "Total number of refresh cycle iterations requested",
		},
		[]string{"path"},
	)

	refreshErrorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "refresh_errors_total",
			Help:      "Total number of absorbed errors inside the refresh cycle",
		},
		[]string{"path"},
	)

	installCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "installs_total",
			Help:      "Total number of snapshot installs (including no-op installs)",
		},
		[]string{"path"},
	)

	notificationCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_total",
			Help:      "Total number of change notification rounds delivered to observers",
		},
		[]string{"path"},
	)

	observerFailureCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "observer_failures_total",
			Help:      "Total number of observer invocations that returned an error or panicked",
		},
		[]string{"path"},
	)

	rebuildCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rebuilds_total",
			Help:      "Total number of synchronous rebuilds",
		},
		[]string{"path"},
	)

	connectionUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connection_up",
			Help:      "Whether the cache currently considers the ZooKeeper session usable (1 or 0)",
		},
		[]string{"path"},
	)
)

// IncReset increments the reset counter for a cached path.
func IncReset(path string) {
	resetCounter.WithLabelValues(path).Inc()
}

// IncRefreshError increments the absorbed refresh error counter for a cached path.
func IncRefreshError(path string) {
	refreshErrorCounter.WithLabelValues(path).Inc()
}

// IncInstall increments the install counter for a cached path.
func IncInstall(path string) {
	installCounter.WithLabelValues(path).Inc()
}

// IncNotification increments the notification round counter for a cached path.
func IncNotification(path string) {
	notificationCounter.WithLabelValues(path).Inc()
}

// IncObserverFailure increments the observer failure counter for a cached path.
func IncObserverFailure(path string) {
	observerFailureCounter.WithLabelValues(path).Inc()
}

// IncRebuild increments the rebuild counter for a cached path.
func IncRebuild(path string) {
	rebuildCounter.WithLabelValues(path).Inc()
}

// SetConnectionUp records the current connection flag for a cached path.
func SetConnectionUp(path string, up bool) {
	if up {
		connectionUp.WithLabelValues(path).Set(1)
	} else {
		connectionUp.WithLabelValues(path).Set(0)
	}
}

// SetupMetricsEndpoint starts an HTTP server that exposes /metrics on the given address.
func SetupMetricsEndpoint(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.For(logger.ComponentMetrics).Errorf("Metrics server failed: %v", err)
		}
	}()

	return server
}
