// Copyright 2026 Blink Labs Software
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

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "thorn.config"

const DefaultShutdownTimeout = "30s"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// Role represents the operational role of the thorn node
type Role string

const (
	RoleMaster  Role = "master"  // Accepts transaction submissions (default)
	RoleReplica Role = "replica" // Read-only, refreshed from a master
)

// Valid returns true if the Role is a known valid role
func (r Role) Valid() bool {
	switch r {
	case RoleMaster, RoleReplica, "":
		return true
	default:
		return false
	}
}

type Config struct {
	DatabasePath          string   `yaml:"databasePath"                                          split_words:"true"`
	BindAddr              string   `yaml:"bindAddr"                                              split_words:"true"`
	ApiPort               uint     `yaml:"apiPort"              envconfig:"port"`
	MetricsPort           uint     `yaml:"metricsPort"                                           split_words:"true"`
	Role                  Role     `yaml:"role"                 envconfig:"THORN_ROLE"`
	MasterURL             string   `yaml:"masterUrl"            envconfig:"THORN_MASTER_URL"`
	SyncInterval          string   `yaml:"syncInterval"                                          split_words:"true"`
	Operators             []string `yaml:"operators"`
	MinOperatorVotes      int      `yaml:"minOperatorVotes"                                      split_words:"true"`
	VoterBurn             string   `yaml:"voterBurn"                                             split_words:"true"`
	OperatorBurn          string   `yaml:"operatorBurn"                                          split_words:"true"`
	WeightPolicy          string   `yaml:"weightPolicy"                                          split_words:"true"`
	ConfirmationThreshold uint     `yaml:"confirmationThreshold"                                 split_words:"true"`
	PledgeTTL             string   `yaml:"pledgeTtl"            envconfig:"THORN_PLEDGE_TTL"`
	WatcherToken          string   `yaml:"watcherToken"         envconfig:"THORN_WATCHER_TOKEN"`
	OperatorToken         string   `yaml:"operatorToken"        envconfig:"THORN_OPERATOR_TOKEN"`
	ShutdownTimeout       string   `yaml:"shutdownTimeout"                                       split_words:"true"`
	Tracing               bool     `yaml:"tracing"`
	TracingStdout         bool     `yaml:"tracingStdout"                                         split_words:"true"`
}

var globalConfig = &Config{
	DatabasePath:    ".thorn",
	BindAddr:        "0.0.0.0",
	ApiPort:         3000,
	MetricsPort:     12798,
	Role:            RoleMaster,
	SyncInterval:    "10s",
	ShutdownTimeout: DefaultShutdownTimeout,
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.thorn/thorn.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".thorn", "thorn.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/thorn/thorn.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/thorn/thorn.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	err := envconfig.Process("thorn", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}

	// Validate and default Role
	if !globalConfig.Role.Valid() {
		return nil, fmt.Errorf(
			"invalid role: %q (must be 'master' or 'replica')",
			globalConfig.Role,
		)
	}
	if globalConfig.Role == "" {
		globalConfig.Role = RoleMaster
	}
	if globalConfig.Role == RoleReplica && globalConfig.MasterURL == "" {
		return nil, fmt.Errorf("replica role requires masterUrl")
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}
