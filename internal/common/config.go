// Package common holds ArgusDB's configuration and process-startup
// plumbing, grounded directly on the teacher's internal/common/config.go:
// default -> file -> env -> CLI precedence, go-toml/v2 unmarshaling, and
// go-playground/validator/v10 struct validation of the merged result.
package common

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config is ArgusDB's full runtime configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Engine   EngineConfig   `toml:"engine"`
	Logging  LoggingConfig  `toml:"logging"`
	Maintain MaintainConfig `toml:"maintenance"`
}

type ServerConfig struct {
	Host string `toml:"host" validate:"required"`
	Port int    `toml:"port" validate:"min=1,max=65535"`
}

// EngineConfig holds the LSM tunables: flush and compaction thresholds,
// where runs live on disk, the sparse index density, and the
// delete-of-unknown-id strictness knob.
type EngineConfig struct {
	DataDir           string `toml:"data_dir" validate:"required"`
	MemtableThreshold int    `toml:"memtable_threshold" validate:"min=1"`
	JSTableThreshold  int    `toml:"jstable_threshold" validate:"min=2"`
	JSTableDir        string `toml:"jstable_dir" validate:"required"`
	IndexThreshold    int    `toml:"index_threshold" validate:"min=1"`
	StrictDeletes     bool   `toml:"strict_deletes"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=debug info warn error"`
	Format string   `toml:"format" validate:"oneof=json text"`
	Output []string `toml:"output"`
}

// MaintainConfig schedules the background compaction/prune sweep via
// robfig/cron/v3, matching the teacher's ProcessingConfig shape.
type MaintainConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // cron expression
}

// NewDefaultConfig returns ArgusDB's configuration defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 7861},
		Engine: EngineConfig{
			DataDir:           "argus_data",
			MemtableThreshold: 10,
			JSTableThreshold:  5,
			JSTableDir:        "runs",
			IndexThreshold:    1024,
			StrictDeletes:     false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout"},
		},
		Maintain: MaintainConfig{
			Enabled:  true,
			Schedule: "0 */15 * * * *",
		},
	}
}

// LoadFromFiles loads configuration with priority default -> file1 ->
// file2 -> ... -> env -> CLI, mirroring the teacher's
// internal/common/config.go LoadFromFiles. Later files override earlier
// ones; CLI-flag overrides are applied by the caller (cmd/argusd) after
// this returns, since its flags are parsed independently of the config
// struct.
func LoadFromFiles(paths ...string) (*Config, error) {
	cfg := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(cfg)

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("ARGUS_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("ARGUS_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if dir := os.Getenv("ARGUS_DATA_DIR"); dir != "" {
		cfg.Engine.DataDir = dir
	}
	if v := os.Getenv("ARGUS_MEMTABLE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MemtableThreshold = n
		}
	}
	if v := os.Getenv("ARGUS_JSTABLE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.JSTableThreshold = n
		}
	}
	if v := os.Getenv("ARGUS_STRICT_DELETES"); v != "" {
		cfg.Engine.StrictDeletes = v == "1" || v == "true"
	}
	if level := os.Getenv("ARGUS_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
