package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadScriptConfigParsesPoolAndOperations(t *testing.T) {
	cfg, err := LoadScriptConfig("testdata/script.yaml")
	require.NoError(t, err)

	require.Equal(t, "USDC", cfg.Pool.Token0)
	require.Equal(t, "WETH", cfg.Pool.Token1)
	require.EqualValues(t, 3000, cfg.Pool.Fee)
	require.EqualValues(t, 60, cfg.Pool.TickSpacing)
	require.Equal(t, "79228162514264337593543950336", cfg.Pool.StartingSqrtPriceX96)

	require.Len(t, cfg.Operations, 4)
	require.Equal(t, "mint", cfg.Operations[0].Type)
	require.Equal(t, "alice", cfg.Operations[0].Recipient)
	require.EqualValues(t, -60, cfg.Operations[0].TickLower)
	require.Equal(t, "swap", cfg.Operations[1].Type)
	require.True(t, cfg.Operations[1].ZeroForOne)
	require.Equal(t, "collect", cfg.Operations[2].Type)
	require.Equal(t, "burn", cfg.Operations[3].Type)
}

func TestLoadScriptConfigMissingFile(t *testing.T) {
	_, err := LoadScriptConfig("testdata/does-not-exist.yaml")
	require.Error(t, err)
}
