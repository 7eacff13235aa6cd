package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path (if any) over Defaults, then applies
// ARBBOT_* environment overrides. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// LoadDryRun loads and validates a config for tools that never submit
// transactions, so no wallet is required.
func LoadDryRun(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.Execution.Enabled = false
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStringSlice(&cfg.RPC.Endpoints, "ARBBOT_RPC_ENDPOINTS")
	setDuration(&cfg.RPC.ReconnectDelay, "ARBBOT_RPC_RECONNECT_DELAY")

	setStr(&cfg.Wallet.PrivateKey, "ARBBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.Executor, "ARBBOT_WALLET_EXECUTOR")

	setFloat64(&cfg.Strategy.NotionalUSD, "ARBBOT_STRATEGY_NOTIONAL_USD")
	setFloat64(&cfg.Strategy.MinProfitUSD, "ARBBOT_STRATEGY_MIN_PROFIT_USD")

	setBool(&cfg.Execution.Enabled, "ARBBOT_EXECUTION_ENABLED")
	setFloat64(&cfg.Execution.GasPriceGwei, "ARBBOT_EXECUTION_GAS_PRICE_GWEI")

	setStr(&cfg.Registry.Path, "ARBBOT_REGISTRY_PATH")

	setStr(&cfg.Audit.Backend, "ARBBOT_AUDIT_BACKEND")
	setStr(&cfg.Audit.DSN, "ARBBOT_AUDIT_DSN")

	setBool(&cfg.Redis.Enabled, "ARBBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBBOT_REDIS_DB")

	setBool(&cfg.Metrics.Enabled, "ARBBOT_METRICS_ENABLED")
	setStr(&cfg.Metrics.Addr, "ARBBOT_METRICS_ADDR")

	setStr(&cfg.LogLevel, "ARBBOT_LOG_LEVEL")
}

// Each setter leaves dst alone when the variable is unset, empty or
// unparseable.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
