package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, "127.0.0.1:8645", cfg.RPCAddress)
	require.Equal(t, uint64(10_000), cfg.MinPrice)
	require.Equal(t, uint64(100), cfg.CommitExpiryBlocks)
	require.Equal(t, uint64(200), cfg.ExpiryBlocks)
	require.Equal(t, uint64(10), cfg.BlockIntervalSecs)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("RPCAddress = \"0.0.0.0:9000\"\nMinPrice = 25000\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.RPCAddress)
	require.Equal(t, uint64(25_000), cfg.MinPrice)
	require.Equal(t, "./ordswap-data", cfg.DataDir)
	require.Equal(t, uint64(200), cfg.ExpiryBlocks)
}

func TestLoadRejectsInvertedExpiryWindows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("CommitExpiryBlocks = 300\nExpiryBlocks = 200\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ExpiryBlocks")
}

func TestLoadRejectsIncompleteGenesisAllocation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "[[Genesis]]\nAddress = \"osw1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq\"\nAmount = \"\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "genesis allocation")
}

func TestLoadGenesisAllocations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "[[Genesis]]\nAddress = \"osw1abc\"\nAmount = \"1000000\"\n\n[[Genesis]]\nAddress = \"osw1def\"\nAmount = \"500000\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Genesis, 2)
	require.Equal(t, "osw1abc", cfg.Genesis[0].Address)
	require.Equal(t, "1000000", cfg.Genesis[0].Amount)
}
