// Package config defines the bot configuration: built-in defaults, a TOML
// file on top, and ARBBOT_* environment overrides for secrets.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pulkyeet/venue-arb/internal/arbitrage"
	"github.com/pulkyeet/venue-arb/internal/eth"
	"github.com/pulkyeet/venue-arb/internal/execution"
	"github.com/pulkyeet/venue-arb/internal/health"
	"github.com/shopspring/decimal"
)

type Config struct {
	RPC       RPCConfig       `toml:"rpc"`
	Wallet    WalletConfig    `toml:"wallet"`
	Chain     ChainConfig     `toml:"chain"`
	Venues    VenuesConfig    `toml:"venues"`
	Strategy  StrategyConfig  `toml:"strategy"`
	Execution ExecutionConfig `toml:"execution"`
	Health    HealthConfig    `toml:"health"`
	Gas       GasConfig       `toml:"gas"`
	Registry  RegistryConfig  `toml:"registry"`
	Audit     AuditConfig     `toml:"audit"`
	Redis     RedisConfig     `toml:"redis"`
	Metrics   MetricsConfig   `toml:"metrics"`
	LogLevel  string          `toml:"log_level"`
}

type RPCConfig struct {
	// websocket endpoints, tried in order
	Endpoints      []string `toml:"endpoints"`
	ReconnectDelay duration `toml:"reconnect_delay"`
}

type WalletConfig struct {
	PrivateKey string `toml:"private_key"`
	Executor   string `toml:"executor"`
}

type ChainConfig struct {
	ChainID   int64  `toml:"chain_id"`
	Multicall string `toml:"multicall"`
}

type VenueConfig struct {
	Name        string `toml:"name"`
	Router      string `toml:"router"`
	PriceMethod string `toml:"price_method"`
	PassFee     bool   `toml:"pass_fee"`
}

type VenuesConfig struct {
	A VenueConfig `toml:"a"`
	B VenueConfig `toml:"b"`
}

type StrategyConfig struct {
	NotionalUSD       float64  `toml:"notional_usd"`
	MinProfitUSD      float64  `toml:"min_profit_usd"`
	LiquidityFloorUSD float64  `toml:"liquidity_floor_usd"`
	RatioBound        float64  `toml:"ratio_bound"` // priceA/priceB within [1/bound, bound]
	GasUnits          int64    `toml:"gas_units"`
	AllowedInputs     []string `toml:"allowed_inputs"`
}

type ExecutionConfig struct {
	// false runs the bot in dry-run mode: rank and audit, never submit
	Enabled        bool     `toml:"enabled"`
	GasLimit       int64    `toml:"gas_limit"`
	GasPriceGwei   float64  `toml:"gas_price_gwei"`
	ReceiptTimeout duration `toml:"receipt_timeout"`
	PollInterval   duration `toml:"poll_interval"`
}

type HealthConfig struct {
	RevertThreshold int   `toml:"revert_threshold"`
	BanBlocks       int64 `toml:"ban_blocks"`
	StaleBlocks     int64 `toml:"stale_blocks"`
}

type GasConfig struct {
	RefreshInterval duration `toml:"refresh_interval"`
}

type RegistryConfig struct {
	Path string `toml:"path"`
}

type AuditConfig struct {
	Backend string `toml:"backend"` // sqlite or postgres
	DSN     string `toml:"dsn"`
}

type RedisConfig struct {
	Enabled  bool     `toml:"enabled"`
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	LockKey  string   `toml:"lock_key"`
	LockTTL  duration `toml:"lock_ttl"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// duration wraps time.Duration so TOML strings like "60s" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Defaults() Config {
	return Config{
		RPC: RPCConfig{ReconnectDelay: duration{5 * time.Second}},
		Chain: ChainConfig{
			ChainID:   eth.ArbitrumChainID,
			Multicall: eth.MulticallAddress.Hex(),
		},
		Venues: VenuesConfig{
			A: VenueConfig{Name: "uniswap_v3", Router: eth.UniswapV3Router.Hex(), PriceMethod: eth.PriceMethodSlot0, PassFee: true},
			B: VenueConfig{Name: "camelot", Router: eth.CamelotRouter.Hex(), PriceMethod: eth.PriceMethodGlobalState, PassFee: false},
		},
		Strategy: StrategyConfig{
			NotionalUSD:       100,
			MinProfitUSD:      0.1,
			LiquidityFloorUSD: 1500,
			RatioBound:        3,
			GasUnits:          450_000,
			AllowedInputs:     []string{eth.WETHAddress.Hex()},
		},
		Execution: ExecutionConfig{
			Enabled:        true,
			GasLimit:       550_000,
			GasPriceGwei:   0.2,
			ReceiptTimeout: duration{60 * time.Second},
			PollInterval:   duration{time.Second},
		},
		Health:   HealthConfig{RevertThreshold: 2, BanBlocks: 150, StaleBlocks: 150},
		Gas:      GasConfig{RefreshInterval: duration{600 * time.Second}},
		Registry: RegistryConfig{Path: "data/pools.csv"},
		Audit:    AuditConfig{Backend: "sqlite", DSN: "data/audit.db"},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			LockKey: "venue-arb",
			LockTTL: duration{30 * time.Second},
		},
		Metrics:  MetricsConfig{Enabled: true, Addr: ":9102"},
		LogLevel: "info",
	}
}

var (
	validLogLevels    = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validPriceMethods = map[string]bool{eth.PriceMethodSlot0: true, eth.PriceMethodGlobalState: true}
)

// Validate reports every problem found, not just the first.
func (c *Config) Validate() error {
	var errs []string

	if len(c.RPC.Endpoints) == 0 {
		errs = append(errs, "rpc: at least one endpoint is required")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	if !common.IsHexAddress(c.Chain.Multicall) {
		errs = append(errs, "chain: multicall must be an address")
	}

	if c.Execution.Enabled {
		if strings.TrimSpace(c.Wallet.PrivateKey) == "" {
			errs = append(errs, "wallet: private_key is required when execution is enabled")
		}
		if !common.IsHexAddress(c.Wallet.Executor) {
			errs = append(errs, "wallet: executor must be an address when execution is enabled")
		}
		if c.Execution.GasLimit <= 0 {
			errs = append(errs, "execution: gas_limit must be > 0")
		}
		if c.Execution.GasPriceGwei <= 0 {
			errs = append(errs, "execution: gas_price_gwei must be > 0")
		}
		if c.Execution.ReceiptTimeout.Duration <= 0 {
			errs = append(errs, "execution: receipt_timeout must be > 0")
		}
	}

	for name, v := range map[string]VenueConfig{"a": c.Venues.A, "b": c.Venues.B} {
		if !common.IsHexAddress(v.Router) {
			errs = append(errs, fmt.Sprintf("venues.%s: router must be an address", name))
		}
		if !validPriceMethods[v.PriceMethod] {
			errs = append(errs, fmt.Sprintf("venues.%s: unknown price_method %q", name, v.PriceMethod))
		}
	}

	if c.Strategy.NotionalUSD <= 0 {
		errs = append(errs, "strategy: notional_usd must be > 0")
	}
	if c.Strategy.MinProfitUSD < 0 {
		errs = append(errs, "strategy: min_profit_usd must be >= 0")
	}
	if c.Strategy.LiquidityFloorUSD < 0 {
		errs = append(errs, "strategy: liquidity_floor_usd must be >= 0")
	}
	if c.Strategy.RatioBound < 1 {
		errs = append(errs, "strategy: ratio_bound must be >= 1")
	}
	if c.Strategy.GasUnits < 0 {
		errs = append(errs, "strategy: gas_units must be >= 0")
	}
	for _, a := range c.Strategy.AllowedInputs {
		if !common.IsHexAddress(a) {
			errs = append(errs, fmt.Sprintf("strategy: allowed input %q is not an address", a))
		}
	}

	if c.Health.BanBlocks < 0 || c.Health.StaleBlocks < 0 {
		errs = append(errs, "health: ban_blocks and stale_blocks must be >= 0")
	} else if err := c.HealthConfig().Validate(); err != nil {
		errs = append(errs, "health: "+err.Error())
	}
	if c.Gas.RefreshInterval.Duration <= 0 {
		errs = append(errs, "gas: refresh_interval must be > 0")
	}

	if strings.TrimSpace(c.Registry.Path) == "" {
		errs = append(errs, "registry: path must not be empty")
	}
	switch c.Audit.Backend {
	case "sqlite", "postgres":
		if strings.TrimSpace(c.Audit.DSN) == "" {
			errs = append(errs, "audit: dsn must not be empty")
		}
	default:
		errs = append(errs, fmt.Sprintf("audit: unknown backend %q (valid: sqlite, postgres)", c.Audit.Backend))
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.LockTTL.Duration < time.Second {
			errs = append(errs, "redis: lock_ttl must be at least 1s")
		}
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, "metrics: addr must not be empty")
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// EngineConfig converts strategy floats into exact rationals. Decimal
// parsing keeps 0.1 as 1/10 rather than its binary approximation.
func (c *Config) EngineConfig() arbitrage.EngineConfig {
	allowed := make([]common.Address, 0, len(c.Strategy.AllowedInputs))
	for _, a := range c.Strategy.AllowedInputs {
		allowed = append(allowed, common.HexToAddress(a))
	}
	bound := floatRat(c.Strategy.RatioBound)
	return arbitrage.EngineConfig{
		NotionalUSD:       floatRat(c.Strategy.NotionalUSD),
		MinProfitUSD:      floatRat(c.Strategy.MinProfitUSD),
		LiquidityFloorUSD: floatRat(c.Strategy.LiquidityFloorUSD),
		RatioMin:          new(big.Rat).Inv(bound),
		RatioMax:          bound,
		GasUnits:          uint64(c.Strategy.GasUnits),
		AllowedInputs:     allowed,
	}
}

func (c *Config) VenueSet() arbitrage.Venues {
	conv := func(v VenueConfig) arbitrage.Venue {
		return arbitrage.Venue{
			Name:        v.Name,
			Router:      common.HexToAddress(v.Router),
			PriceMethod: v.PriceMethod,
			PassFee:     v.PassFee,
		}
	}
	return arbitrage.Venues{A: conv(c.Venues.A), B: conv(c.Venues.B)}
}

func (c *Config) HealthConfig() health.Config {
	return health.Config{
		RevertThreshold: c.Health.RevertThreshold,
		BanBlocks:       uint64(c.Health.BanBlocks),
		StaleBlocks:     uint64(c.Health.StaleBlocks),
	}
}

func (c *Config) ExecutionConfig() execution.Config {
	return execution.Config{
		GasLimit:       uint64(c.Execution.GasLimit),
		GasPrice:       gweiToWei(c.Execution.GasPriceGwei),
		ReceiptTimeout: c.Execution.ReceiptTimeout.Duration,
		NotionalUSD:    floatRat(c.Strategy.NotionalUSD),
		Venues:         c.VenueSet(),
	}
}

func floatRat(f float64) *big.Rat {
	return decimal.NewFromFloat(f).Rat()
}

func gweiToWei(gwei float64) *big.Int {
	return decimal.NewFromFloat(gwei).Shift(9).BigInt()
}
