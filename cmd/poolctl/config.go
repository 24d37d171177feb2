package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ScriptConfig is the YAML-driven description of a pool to spin up and a
// scripted sequence of operations to run against it.
type ScriptConfig struct {
	Pool struct {
		Token0               string `yaml:"token0"`
		Token1               string `yaml:"token1"`
		Fee                  uint32 `yaml:"fee"`
		TickSpacing          int32  `yaml:"tick_spacing"`
		StartingSqrtPriceX96 string `yaml:"starting_sqrt_price_x96"`
		StartingTime         uint32 `yaml:"starting_time"`
	} `yaml:"pool"`

	Operations []Operation `yaml:"operations"`
}

// Operation is a single scripted call against the pool.
type Operation struct {
	Type string `yaml:"type"`

	Owner     string `yaml:"owner,omitempty"`
	Recipient string `yaml:"recipient,omitempty"`

	TickLower int32 `yaml:"tick_lower,omitempty"`
	TickUpper int32 `yaml:"tick_upper,omitempty"`

	Amount  string `yaml:"amount,omitempty"`
	Amount0 string `yaml:"amount0,omitempty"`
	Amount1 string `yaml:"amount1,omitempty"`

	ZeroForOne        bool   `yaml:"zero_for_one,omitempty"`
	SqrtPriceLimitX96 string `yaml:"sqrt_price_limit_x96,omitempty"`
	BlockTime         uint32 `yaml:"block_time,omitempty"`

	Next uint16 `yaml:"next,omitempty"`
}

// LoadScriptConfig reads and parses a YAML script file.
func LoadScriptConfig(path string) (*ScriptConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg ScriptConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
