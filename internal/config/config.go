// Package config loads application configuration from an optional
// runbox.yaml file with RUNBOX_-prefixed environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port            int   `mapstructure:"port"`
	MaxPayloadBytes int64 `mapstructure:"max_payload_bytes"`
}

type ExecutorConfig struct {
	// Backend selects the execution backend: "local" (host processes) or
	// "docker" (pre-warmed container pool).
	Backend          string `mapstructure:"backend"`
	WorkspaceRoot    string `mapstructure:"workspace_root"`
	CompileTimeoutMS int    `mapstructure:"compile_timeout_ms"`
	RunTimeoutMS     int    `mapstructure:"run_timeout_ms"`
	MaxOutputBytes   int64  `mapstructure:"max_output_bytes"`
	MaxConcurrent    int    `mapstructure:"max_concurrent"`
}

func (e ExecutorConfig) CompileTimeout() time.Duration {
	return time.Duration(e.CompileTimeoutMS) * time.Millisecond
}

func (e ExecutorConfig) RunTimeout() time.Duration {
	return time.Duration(e.RunTimeoutMS) * time.Millisecond
}

type DockerConfig struct {
	Image         string  `mapstructure:"image"`
	WorkDir       string  `mapstructure:"work_dir"`
	PoolSize      int     `mapstructure:"pool_size"`
	MemoryLimitMB int64   `mapstructure:"memory_limit_mb"`
	CPULimit      float64 `mapstructure:"cpu_limit"`
}

type StorageConfig struct {
	// DBPath is the sqlite file for the run history. Empty disables history.
	DBPath string `mapstructure:"db_path"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Docker   DockerConfig   `mapstructure:"docker"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// Load reads runbox.yaml (when present) and the environment. A missing
// config file is fine; defaults plus env cover everything.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("runbox")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/runbox")

	v.SetEnvPrefix("RUNBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_payload_bytes", 1<<20)
	v.SetDefault("executor.backend", "local")
	v.SetDefault("executor.workspace_root", "data/workspaces")
	v.SetDefault("executor.compile_timeout_ms", 15000)
	v.SetDefault("executor.run_timeout_ms", 5000)
	v.SetDefault("executor.max_output_bytes", 1<<20)
	v.SetDefault("executor.max_concurrent", 8)
	v.SetDefault("docker.image", "runbox-sandbox:latest")
	v.SetDefault("docker.work_dir", "/work")
	v.SetDefault("docker.pool_size", 3)
	v.SetDefault("docker.memory_limit_mb", 256)
	v.SetDefault("docker.cpu_limit", 1.0)
	v.SetDefault("storage.db_path", "data/runbox.db")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Executor.Backend != "local" && cfg.Executor.Backend != "docker" {
		return nil, fmt.Errorf("unknown executor backend %q", cfg.Executor.Backend)
	}

	return &cfg, nil
}
