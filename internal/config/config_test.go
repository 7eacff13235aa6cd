package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
log_level = "debug"

[rpc]
endpoints = ["wss://one.example", "wss://two.example"]
reconnect_delay = "2s"

[wallet]
executor = "0x1111111111111111111111111111111111111111"

[strategy]
notional_usd = 250
min_profit_usd = 0.5
ratio_bound = 2

[execution]
receipt_timeout = "45s"

[health]
ban_blocks = 300
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arbbot.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, []string{"wss://one.example", "wss://two.example"}, cfg.RPC.Endpoints)
	assert.Equal(t, 2*time.Second, cfg.RPC.ReconnectDelay.Duration)
	assert.Equal(t, 250.0, cfg.Strategy.NotionalUSD)
	assert.Equal(t, 45*time.Second, cfg.Execution.ReceiptTimeout.Duration)
	assert.Equal(t, int64(300), cfg.Health.BanBlocks)
	assert.Equal(t, "debug", cfg.LogLevel)

	// untouched sections keep their defaults
	assert.Equal(t, 2, cfg.Health.RevertThreshold)
	assert.Equal(t, int64(150), cfg.Health.StaleBlocks)
	assert.Equal(t, "sqlite", cfg.Audit.Backend)
	assert.Equal(t, "camelot", cfg.Venues.B.Name)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ARBBOT_RPC_ENDPOINTS", " wss://env.example , ,wss://env2.example")
	t.Setenv("ARBBOT_WALLET_PRIVATE_KEY", "0xabc")
	t.Setenv("ARBBOT_EXECUTION_ENABLED", "false")
	t.Setenv("ARBBOT_REDIS_DB", "3")
	t.Setenv("ARBBOT_AUDIT_BACKEND", "postgres")
	t.Setenv("ARBBOT_STRATEGY_NOTIONAL_USD", "not-a-number")

	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, []string{"wss://env.example", "wss://env2.example"}, cfg.RPC.Endpoints)
	assert.Equal(t, "0xabc", cfg.Wallet.PrivateKey)
	assert.False(t, cfg.Execution.Enabled)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "postgres", cfg.Audit.Backend)
	assert.Equal(t, 250.0, cfg.Strategy.NotionalUSD, "bad value ignored")
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().Strategy.NotionalUSD, cfg.Strategy.NotionalUSD)
}

func TestLoadRejectsBadTOML(t *testing.T) {
	_, err := Load(writeConfig(t, "[rpc\nendpoints = 1"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Defaults()
		c.RPC.Endpoints = []string{"wss://x"}
		c.Wallet.PrivateKey = "0x01"
		c.Wallet.Executor = "0x1111111111111111111111111111111111111111"
		return c
	}

	c := valid()
	require.NoError(t, c.Validate())

	// dry-run needs no wallet
	c = valid()
	c.Execution.Enabled = false
	c.Wallet = WalletConfig{}
	assert.NoError(t, c.Validate())

	c = valid()
	c.RPC.Endpoints = nil
	c.Strategy.RatioBound = 0.5
	c.Venues.A.PriceMethod = "reserves"
	c.Audit.Backend = "mongo"
	c.LogLevel = "trace"
	err := c.Validate()
	require.Error(t, err)
	for _, want := range []string{"rpc:", "ratio_bound", "venues.a", "audit:", "log_level"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateHealth(t *testing.T) {
	c := Defaults()
	c.RPC.Endpoints = []string{"wss://x"}
	c.Execution.Enabled = false

	c.Health.RevertThreshold = 0
	assert.ErrorContains(t, c.Validate(), "health: revert threshold")

	c.Health.RevertThreshold = 2
	c.Health.BanBlocks = 0
	assert.ErrorContains(t, c.Validate(), "health: ban blocks")

	c.Health.BanBlocks = -5
	assert.ErrorContains(t, c.Validate(), "health: ban_blocks and stale_blocks")
}

func TestLoadDryRunValidates(t *testing.T) {
	t.Setenv("ARBBOT_RPC_ENDPOINTS", "wss://x")

	// a zero bound would divide by zero when building the engine config
	_, err := LoadDryRun(writeConfig(t, "[strategy]\nratio_bound = 0\n"))
	assert.ErrorContains(t, err, "ratio_bound")

	_, err = LoadDryRun(writeConfig(t, "[strategy]\nliquidity_floor_usd = -1\n"))
	assert.ErrorContains(t, err, "liquidity_floor_usd")

	// no wallet needed
	cfg, err := LoadDryRun(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	assert.False(t, cfg.Execution.Enabled)
}

func TestEngineConfigIsExact(t *testing.T) {
	c := Defaults()
	ec := c.EngineConfig()

	assert.Zero(t, ec.MinProfitUSD.Cmp(big.NewRat(1, 10)))
	assert.Zero(t, ec.RatioMin.Cmp(big.NewRat(1, 3)))
	assert.Zero(t, ec.RatioMax.Cmp(big.NewRat(3, 1)))
	assert.Equal(t, []common.Address{common.HexToAddress(c.Strategy.AllowedInputs[0])}, ec.AllowedInputs)

	xc := c.ExecutionConfig()
	assert.Zero(t, xc.GasPrice.Cmp(big.NewInt(200_000_000)))
	assert.False(t, xc.Venues.B.PassFee)
}
