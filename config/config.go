package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// GenesisAllocation seeds a settlement-token balance at first start.
type GenesisAllocation struct {
	Address string `toml:"Address"`
	Amount  string `toml:"Amount"`
}

type Config struct {
	RPCAddress         string              `toml:"RPCAddress"`
	DataDir            string              `toml:"DataDir"`
	NetworkName        string              `toml:"NetworkName"`
	MinPrice           uint64              `toml:"MinPrice"`
	CommitExpiryBlocks uint64              `toml:"CommitExpiryBlocks"`
	ExpiryBlocks       uint64              `toml:"ExpiryBlocks"`
	BlockIntervalSecs  uint64              `toml:"BlockIntervalSecs"`
	GenesisHeight      uint64              `toml:"GenesisHeight"`
	Genesis            []GenesisAllocation `toml:"Genesis"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./ordswap-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "ordswap-local"
	}
	if cfg.MinPrice == 0 {
		cfg.MinPrice = 10_000
	}
	if cfg.CommitExpiryBlocks == 0 {
		cfg.CommitExpiryBlocks = 100
	}
	if cfg.ExpiryBlocks == 0 {
		cfg.ExpiryBlocks = 200
	}
	if cfg.BlockIntervalSecs == 0 {
		cfg.BlockIntervalSecs = 10
	}
}

func validate(cfg *Config) error {
	if cfg.ExpiryBlocks < cfg.CommitExpiryBlocks {
		return fmt.Errorf("config: ExpiryBlocks (%d) must not be shorter than CommitExpiryBlocks (%d)", cfg.ExpiryBlocks, cfg.CommitExpiryBlocks)
	}
	for i, alloc := range cfg.Genesis {
		if strings.TrimSpace(alloc.Address) == "" {
			return fmt.Errorf("config: genesis allocation %d missing address", i)
		}
		if strings.TrimSpace(alloc.Amount) == "" {
			return fmt.Errorf("config: genesis allocation %d missing amount", i)
		}
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
