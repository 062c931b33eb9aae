// Package config loads the server's TOML configuration: the wire
// terminator, timing budgets, step/obstacle budgets, the key table, and
// the listen addresses for the robot protocol and the admin HTTP surface.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/sxccxs/robot-server/internal/authkey"
)

// KeyEntry is one [[keys]] table row in the TOML file.
type KeyEntry struct {
	Server uint16 `toml:"server"`
	Client uint16 `toml:"client"`
}

// Config is the fully resolved server configuration.
type Config struct {
	ListenAddr               string     `toml:"listen_addr"`
	AdminListenAddr          string     `toml:"admin_listen_addr"`
	Terminator               string     `toml:"terminator"`
	Encoding                 string     `toml:"encoding"`
	TimeoutSeconds           int        `toml:"timeout_seconds"`
	TimeoutRechargingSeconds int        `toml:"timeout_recharging_seconds"`
	MaxSteps                 int        `toml:"max_steps"`
	MaxObstacleHits          int        `toml:"max_obstacle_hits"`
	Keys                     []KeyEntry `toml:"keys"`
}

// Default returns a Config with every field set to the server's built-in
// defaults, runnable without a config file on disk.
func Default() Config {
	return Config{
		ListenAddr:               ":9999",
		AdminListenAddr:          "",
		Terminator:               "\a\b",
		Encoding:                 "ascii",
		TimeoutSeconds:           1,
		TimeoutRechargingSeconds: 5,
		MaxSteps:                 3000,
		MaxObstacleHits:          20,
		Keys:                     DefaultKeyEntries(),
	}
}

// DefaultKeyEntries mirrors authkey.DefaultTable in the TOML row shape.
func DefaultKeyEntries() []KeyEntry {
	table := authkey.DefaultTable()
	entries := make([]KeyEntry, len(table))
	for i, pair := range table {
		entries[i] = KeyEntry{Server: pair.Server, Client: pair.Client}
	}
	return entries
}

// Load reads path, overlays it onto Default, and validates the result.
// An empty path returns Default unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, Validate(cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	// Keys is replaced wholesale rather than merged field-by-field, so a
	// config file that omits [[keys]] keeps the built-in five pairs.
	var file Config
	file.Keys = cfg.Keys
	if err := toml.Unmarshal(data, &file); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	merged := mergeDefaults(file, cfg)
	if err := Validate(merged); err != nil {
		return Config{}, err
	}
	return merged, nil
}

func mergeDefaults(cfg, def Config) Config {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.Terminator == "" {
		cfg.Terminator = def.Terminator
	}
	if cfg.Encoding == "" {
		cfg.Encoding = def.Encoding
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = def.TimeoutSeconds
	}
	if cfg.TimeoutRechargingSeconds == 0 {
		cfg.TimeoutRechargingSeconds = def.TimeoutRechargingSeconds
	}
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = def.MaxSteps
	}
	if cfg.MaxObstacleHits == 0 {
		cfg.MaxObstacleHits = def.MaxObstacleHits
	}
	if len(cfg.Keys) == 0 {
		cfg.Keys = def.Keys
	}
	return cfg
}

// Validate rejects a Config that cannot run: missing listen address,
// empty terminator, non-positive budgets, or an empty key table.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("config: listen_addr is required")
	}
	if cfg.Terminator == "" {
		return fmt.Errorf("config: terminator must not be empty")
	}
	if cfg.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: timeout_seconds must be positive")
	}
	if cfg.TimeoutRechargingSeconds <= 0 {
		return fmt.Errorf("config: timeout_recharging_seconds must be positive")
	}
	if cfg.MaxSteps <= 0 {
		return fmt.Errorf("config: max_steps must be positive")
	}
	if cfg.MaxObstacleHits <= 0 {
		return fmt.Errorf("config: max_obstacle_hits must be positive")
	}
	if len(cfg.Keys) == 0 {
		return fmt.Errorf("config: at least one [[keys]] entry is required")
	}
	return nil
}

// KeyTable converts the configured key entries into an authkey.Table.
func (c Config) KeyTable() authkey.Table {
	table := make(authkey.Table, len(c.Keys))
	for i, e := range c.Keys {
		table[i] = authkey.KeyPair{Server: e.Server, Client: e.Client}
	}
	return table
}
