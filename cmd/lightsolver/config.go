package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/naoina/toml"

	"github.com/matanfield/lightsolver/core"
	"github.com/matanfield/lightsolver/miner"
)

type Config struct {
	Ordering       string `toml:",omitempty"`
	Capacity       uint64 `toml:",omitempty"`
	DeadlineMillis uint64 `toml:",omitempty"`
	RetryLimit     int    `toml:",omitempty"`
	DropDeferred   bool   `toml:",omitempty"`
	Prefetch       int    `toml:",omitempty"`
}

// DefaultConfig is the default config for the solver.
var DefaultConfig = Config{
	Ordering:   core.OrderingProfitPerGas.String(),
	RetryLimit: 1,
}

func loadConfig(path string) (Config, error) {
	cfg := DefaultConfig
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := toml.NewDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) algorithmConfig() (miner.AlgorithmConfig, error) {
	ordering, err := core.ParseOrdering(c.Ordering)
	if err != nil {
		return miner.AlgorithmConfig{}, err
	}
	return miner.AlgorithmConfig{
		Ordering:     ordering,
		Capacity:     c.Capacity,
		Deadline:     time.Duration(c.DeadlineMillis) * time.Millisecond,
		RetryLimit:   c.RetryLimit,
		DropDeferred: c.DropDeferred,
		Prefetch:     c.Prefetch,
	}, nil
}
