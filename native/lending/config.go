package lending

import (
	"fmt"
	"sort"
	"strings"

	"lendingpool/crypto"
	"lendingpool/native/token"
)

// Config captures the runtime configuration for the native lending module.
type Config struct {
	Interest InterestConfig `toml:"interest"`
	Defaults ParamsConfig   `toml:"defaults"`
	// Reserves overrides the defaults per asset. Keys are token symbols or
	// bech32 token addresses.
	Reserves map[string]ParamsConfig `toml:"reserves"`
}

// InterestConfig mirrors InterestModel using decimal fractions.
type InterestConfig struct {
	BaseRate float64 `toml:"BaseRate"`
	Slope1   float64 `toml:"Slope1"`
	Slope2   float64 `toml:"Slope2"`
	Kink     float64 `toml:"Kink"`
}

// ParamsConfig mirrors ReserveParams in basis points.
type ParamsConfig struct {
	LTVBps                  uint64 `toml:"LTVBps"`
	LiquidationThresholdBps uint64 `toml:"LiquidationThresholdBps"`
	LiquidationBonusBps     uint64 `toml:"LiquidationBonusBps"`
	OriginationFeeBps       uint64 `toml:"OriginationFeeBps"`
	ReserveFactorBps        uint64 `toml:"ReserveFactorBps"`
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() Config {
	return Config{
		Interest: InterestConfig{BaseRate: 0.02, Slope1: 0.15, Slope2: 0.6, Kink: 0.8},
		Defaults: paramsConfigFrom(DefaultReserveParams),
		Reserves: map[string]ParamsConfig{},
	}
}

func paramsConfigFrom(p ReserveParams) ParamsConfig {
	return ParamsConfig{
		LTVBps:                  p.LTV,
		LiquidationThresholdBps: p.LiquidationThreshold,
		LiquidationBonusBps:     p.LiquidationBonus,
		OriginationFeeBps:       p.OriginationFeeBps,
		ReserveFactorBps:        p.ReserveFactorBps,
	}
}

// Params converts the basis point settings into ReserveParams.
func (c ParamsConfig) Params() ReserveParams {
	return ReserveParams{
		LTV:                  c.LTVBps,
		LiquidationThreshold: c.LiquidationThresholdBps,
		LiquidationBonus:     c.LiquidationBonusBps,
		OriginationFeeBps:    c.OriginationFeeBps,
		ReserveFactorBps:     c.ReserveFactorBps,
	}
}

// Model builds the interest model described by the configuration.
func (c Config) Model() *InterestModel {
	return NewInterestModel(c.Interest.BaseRate, c.Interest.Slope1, c.Interest.Slope2, c.Interest.Kink)
}

// Validate checks the interest model and every parameter set.
func (c Config) Validate() error {
	if err := c.Model().Validate(); err != nil {
		return err
	}
	if err := c.Defaults.Params().Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	for key, override := range c.Reserves {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("reserve override with empty key")
		}
		if err := override.Params().Validate(); err != nil {
			return fmt.Errorf("reserve %s: %w", key, err)
		}
	}
	return nil
}

// ResolveAsset maps a configuration key to a token address.
func ResolveAsset(key string) crypto.Address {
	trimmed := strings.TrimSpace(key)
	if addr, err := crypto.DecodeAddress(trimmed); err == nil {
		return addr
	}
	return token.AddressForSymbol(trimmed)
}

// NewEngineFromConfig constructs an engine with the configured model, default
// parameters and per-asset overrides.
func NewEngineFromConfig(poolAddr crypto.Address, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	engine := NewEngine(poolAddr, cfg.Model(), cfg.Defaults.Params())
	keys := make([]string, 0, len(cfg.Reserves))
	for key := range cfg.Reserves {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		engine.SetReserveParams(ResolveAsset(key), cfg.Reserves[key].Params())
	}
	return engine, nil
}
