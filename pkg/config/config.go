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

// Package config loads the watcher binary's configuration from a YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/united-manufacturing-hub/zk-nodecache/pkg/zkclient"
)

// Environment variables overriding the file values.
const (
	EnvServers        = "ZK_NODECACHE_SERVERS"
	EnvPath           = "ZK_NODECACHE_PATH"
	EnvSessionTimeout = "ZK_NODECACHE_SESSION_TIMEOUT"
	EnvCompressed     = "ZK_NODECACHE_COMPRESSED"
	EnvMetricsPort    = "ZK_NODECACHE_METRICS_PORT"
)

// Config is the full configuration of the watcher binary.
type Config struct {
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Node      NodeConfig      `yaml:"node"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ZookeeperConfig describes the ensemble to connect to.
type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"sessionTimeout"`
}

// NodeConfig describes the node to mirror.
type NodeConfig struct {
	Path       string `yaml:"path"`
	Compressed bool   `yaml:"compressed"`
}

// MetricsConfig describes the prometheus endpoint.
type MetricsConfig struct {
	Port int `yaml:"port"`
}

// DefaultConfig returns the defaults applied before file and env values.
func DefaultConfig() Config {
	return Config{
		Zookeeper: ZookeeperConfig{
			SessionTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Port: 8081,
		},
	}
}

// Load reads the config file (if the path is non-empty), applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if servers := os.Getenv(EnvServers); servers != "" {
		cfg.Zookeeper.Servers = strings.Split(servers, ",")
	}
	if path := os.Getenv(EnvPath); path != "" {
		cfg.Node.Path = path
	}
	if timeout := os.Getenv(EnvSessionTimeout); timeout != "" {
		parsed, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvSessionTimeout, err)
		}
		cfg.Zookeeper.SessionTimeout = parsed
	}
	if compressed := os.Getenv(EnvCompressed); compressed != "" {
		parsed, err := strconv.ParseBool(compressed)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvCompressed, err)
		}
		cfg.Node.Compressed = parsed
	}
	if port := os.Getenv(EnvMetricsPort); port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMetricsPort, err)
		}
		cfg.Metrics.Port = parsed
	}

	return nil
}

// Validate checks that all required fields are present and well-formed.
func (c Config) Validate() error {
	if len(c.Zookeeper.Servers) == 0 {
		return fmt.Errorf("zookeeper.servers is required")
	}
	if c.Zookeeper.SessionTimeout <= 0 {
		return fmt.Errorf("zookeeper.sessionTimeout must be positive")
	}
	if c.Node.Path == "" {
		return fmt.Errorf("node.path is required")
	}
	if err := zkclient.ValidatePath(c.Node.Path); err != nil {
		return fmt.Errorf("node.path: %w", err)
	}
	if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be a valid port, got %d", c.Metrics.Port)
	}

	return nil
}
