package config

import (
	"fmt"
	"math/big"
	"strings"

	"lendingpool/crypto"
)

// ValidateConfig checks the configuration before the node uses it.
func ValidateConfig(c *Config) error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLevelDB, BackendBolt:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage: path required for %s backend", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	if err := c.Lending.Validate(); err != nil {
		return fmt.Errorf("lending: %w", err)
	}
	if c.FlashLoan.FeeBps >= 10_000 {
		return fmt.Errorf("flashloan: fee_bps must be below 10000")
	}
	for _, addr := range append(append([]string{}, c.Roles.Admins...), c.Roles.Oracles...) {
		if _, err := crypto.DecodeAddress(addr); err != nil {
			return fmt.Errorf("roles: invalid address %q: %w", addr, err)
		}
	}
	seen := make(map[string]struct{}, len(c.Tokens))
	for _, tok := range c.Tokens {
		if tok.Symbol == "" {
			return fmt.Errorf("tokens: symbol required")
		}
		if _, dup := seen[tok.Symbol]; dup {
			return fmt.Errorf("tokens: duplicate symbol %s", tok.Symbol)
		}
		seen[tok.Symbol] = struct{}{}
		if _, err := crypto.DecodeAddress(tok.Owner); err != nil {
			return fmt.Errorf("tokens.%s: invalid owner: %w", tok.Symbol, err)
		}
		if _, err := ParseAmount(tok.Supply); err != nil {
			return fmt.Errorf("tokens.%s: supply: %w", tok.Symbol, err)
		}
		if tok.Price != "" {
			price, err := ParseAmount(tok.Price)
			if err != nil || price.Sign() == 0 {
				return fmt.Errorf("tokens.%s: price must be a positive integer", tok.Symbol)
			}
		}
		if tok.FlashLiquidity != "" {
			if _, err := ParseAmount(tok.FlashLiquidity); err != nil {
				return fmt.Errorf("tokens.%s: flash liquidity: %w", tok.Symbol, err)
			}
		}
	}
	return nil
}

// ParseAmount parses a non-negative base-10 integer. An empty string is zero.
func ParseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", value)
	}
	return amount, nil
}
