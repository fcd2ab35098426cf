// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/ge/bufpool"
	"github.com/gogpu/ge/pipeline"
)

// Default configuration values.
const (
	DefaultResourceBudgetMB = 256
	DefaultCpuBufferSlots   = 6
	DefaultBufferBlockSize  = bufpool.DefaultBlockSize
	DefaultIndexBlockSize   = 1 << 14
)

// ErrInvalidConfig is returned for configurations with out-of-range values.
var ErrInvalidConfig = errors.New("ge: invalid config")

// Config holds the tunables of a DirectContext. The zero value is not
// valid; start from DefaultConfig.
//
// A TOML file may set any subset of the fields:
//
//	resource_budget_mb = 128
//	cpu_buffer_slots = 8
//	buffer_block_size = 131072
//	index_block_size = 16384
//	pipeline_cache_size = 32
type Config struct {
	// ResourceBudgetMB is the budget for cached GPU textures in MiB.
	ResourceBudgetMB int `toml:"resource_budget_mb"`

	// CpuBufferSlots is the number of staging buffers the CPU buffer
	// cache keeps for reuse.
	CpuBufferSlots int `toml:"cpu_buffer_slots"`

	// BufferBlockSize is the minimum block size of the vertex and instance
	// pools, and the size of cached staging buffers.
	BufferBlockSize int64 `toml:"buffer_block_size"`

	// IndexBlockSize is the minimum block size of the index pool. Index
	// staging memory is only recycled if it equals BufferBlockSize.
	IndexBlockSize int64 `toml:"index_block_size"`

	// PipelineCacheSize is the soft limit on cached pipeline states.
	PipelineCacheSize int `toml:"pipeline_cache_size"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		ResourceBudgetMB:  DefaultResourceBudgetMB,
		CpuBufferSlots:    DefaultCpuBufferSlots,
		BufferBlockSize:   DefaultBufferBlockSize,
		IndexBlockSize:    DefaultIndexBlockSize,
		PipelineCacheSize: pipeline.DefaultCacheSize,
	}
}

// Validate reports the first out-of-range field.
func (c *Config) Validate() error {
	switch {
	case c.ResourceBudgetMB <= 0:
		return fmt.Errorf("%w: resource_budget_mb = %d", ErrInvalidConfig, c.ResourceBudgetMB)
	case c.CpuBufferSlots < 0:
		return fmt.Errorf("%w: cpu_buffer_slots = %d", ErrInvalidConfig, c.CpuBufferSlots)
	case c.BufferBlockSize <= 0 || c.BufferBlockSize%4 != 0:
		return fmt.Errorf("%w: buffer_block_size = %d, want a positive multiple of 4", ErrInvalidConfig, c.BufferBlockSize)
	case c.IndexBlockSize <= 0 || c.IndexBlockSize%4 != 0:
		return fmt.Errorf("%w: index_block_size = %d, want a positive multiple of 4", ErrInvalidConfig, c.IndexBlockSize)
	case c.PipelineCacheSize <= 0:
		return fmt.Errorf("%w: pipeline_cache_size = %d", ErrInvalidConfig, c.PipelineCacheSize)
	}
	return nil
}

// ResourceBudget returns the texture budget in bytes.
func (c *Config) ResourceBudget() int64 {
	return int64(c.ResourceBudgetMB) << 20
}

// ParseConfig decodes TOML over DefaultConfig. Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("ge: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a TOML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("ge: load config: %w", err)
	}
	return ParseConfig(data)
}

// Encode writes c as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
