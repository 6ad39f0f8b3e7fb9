// Package config loads the engine's configuration surface (spec.md §6)
// from YAML, the same library tinySQL's own test harness uses to decode
// fixtures (internal/testhelper/examples_test.go).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/minidb/engine/internal/buffer"
)

// Config is the full set of knobs the core storage/execution engine
// recognizes. Every field has a documented default so a zero-value
// Config (or one decoded from a partial YAML document) is usable as-is
// via Normalize.
type Config struct {
	DataDir             string `yaml:"data_dir"`
	PageSize            int    `yaml:"page_size"`
	BufferPoolCapacity  int    `yaml:"buffer_pool_capacity"`
	BufferPoolPolicy    string `yaml:"buffer_pool_policy"`
	BPTreeOrder         int    `yaml:"bptree_order"`
}

// Defaults mirror spec.md §6 exactly.
const (
	DefaultPageSize           = 4096
	DefaultBufferPoolCapacity = 256
	DefaultBufferPoolPolicy   = "LRU"
	DefaultBPTreeOrder        = 64
)

// Load reads and parses a YAML config file at path, then applies
// defaults for anything left unset.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Normalize fills in every zero-valued field with its spec default.
func (c *Config) Normalize() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.BufferPoolCapacity == 0 {
		c.BufferPoolCapacity = DefaultBufferPoolCapacity
	}
	if c.BufferPoolPolicy == "" {
		c.BufferPoolPolicy = DefaultBufferPoolPolicy
	}
	if c.BPTreeOrder == 0 {
		c.BPTreeOrder = DefaultBPTreeOrder
	}
}

// Validate rejects configuration values the core engine cannot operate
// under (§6: bptree_order must be >= 4, buffer_pool_policy must be one
// of LRU/FIFO).
func (c Config) Validate() error {
	if c.BPTreeOrder < 4 {
		return fmt.Errorf("config: bptree_order must be >= 4, got %d", c.BPTreeOrder)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("config: page_size must be positive, got %d", c.PageSize)
	}
	if c.BufferPoolCapacity <= 0 {
		return fmt.Errorf("config: buffer_pool_capacity must be positive, got %d", c.BufferPoolCapacity)
	}
	switch c.Policy() {
	case buffer.LRU, buffer.FIFO:
	default:
		return fmt.Errorf("config: buffer_pool_policy must be LRU or FIFO, got %q", c.BufferPoolPolicy)
	}
	return nil
}

// Policy returns the configured buffer pool replacement policy as the
// buffer package's typed Policy value.
func (c Config) Policy() buffer.Policy {
	return buffer.Policy(c.BufferPoolPolicy)
}
