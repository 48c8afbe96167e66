package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lendingpool/crypto"
)

func testAddress(b byte) string {
	var raw [crypto.AddressLength]byte
	raw[0] = b
	raw[len(raw)-1] = b
	return crypto.NewAddress(crypto.AccountPrefix, raw[:]).String()
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}
	if cfg.Storage.Backend != BackendLevelDB {
		t.Fatalf("unexpected backend %q", cfg.Storage.Backend)
	}
	if cfg.FlashLoan.FeeBps != 500 {
		t.Fatalf("unexpected flash fee %d", cfg.FlashLoan.FeeBps)
	}
	if !strings.HasPrefix(cfg.Storage.Path, filepath.Join(dir, "nested")) {
		t.Fatalf("storage path %q not resolved against config dir", cfg.Storage.Path)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Lending.Defaults != cfg.Lending.Defaults {
		t.Fatalf("defaults changed across reload: %+v vs %+v", reloaded.Lending.Defaults, cfg.Lending.Defaults)
	}
}

func TestLoadParsesGenesisAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	admin := testAddress(0xA0)
	oracle := testAddress(0xA1)
	contents := `DataDir = "./data"

[storage]
Backend = "Bolt"

[lending.interest]
BaseRate = 0.01
Slope1 = 0.1
Slope2 = 0.5
Kink = 0.75

[lending.reserves.USDC]
LTVBps = 8000
LiquidationThresholdBps = 8500
LiquidationBonusBps = 400
OriginationFeeBps = 10
ReserveFactorBps = 1000

[flashloan]
FeeBps = 9

[roles]
Admins = ["` + admin + `"]
Oracles = ["` + oracle + `"]

[pauses]
FlashLoan = true

[[tokens]]
Symbol = "usdc"
Name = "USD Coin"
Owner = "` + admin + `"
Supply = "1000000000000"
Reserve = true
Price = "1000000000000000000"
FlashLiquidity = "5000"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Backend != BackendBolt {
		t.Fatalf("backend not normalized: %q", cfg.Storage.Backend)
	}
	if want := filepath.Join(dir, "data", "bolt"); cfg.Storage.Path != want {
		t.Fatalf("storage path: got %q want %q", cfg.Storage.Path, want)
	}
	if cfg.Lending.Interest.Kink != 0.75 {
		t.Fatalf("unexpected kink %v", cfg.Lending.Interest.Kink)
	}
	if got := cfg.Lending.Reserves["USDC"].LTVBps; got != 8000 {
		t.Fatalf("unexpected override ltv %d", got)
	}
	if cfg.FlashLoan.FeeBps != 9 || !cfg.Pauses.FlashLoan || cfg.Pauses.Lending {
		t.Fatalf("unexpected flash/pause settings: %+v %+v", cfg.FlashLoan, cfg.Pauses)
	}
	if len(cfg.Tokens) != 1 || cfg.Tokens[0].Symbol != "USDC" || !cfg.Tokens[0].Reserve {
		t.Fatalf("unexpected tokens: %+v", cfg.Tokens)
	}
	if len(cfg.Roles.Admins) != 1 || cfg.Roles.Admins[0] != admin {
		t.Fatalf("unexpected admins: %v", cfg.Roles.Admins)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("Bogus = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "Bogus") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	owner := testAddress(0x01)
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, "unknown backend"},
		{"missing path", func(c *Config) { c.Storage.Path = "" }, "path required"},
		{"flash fee", func(c *Config) { c.FlashLoan.FeeBps = 10_000 }, "fee_bps"},
		{"bad role", func(c *Config) { c.Roles.Admins = []string{"nope"} }, "roles"},
		{"lending kink", func(c *Config) { c.Lending.Interest.Kink = 1.5 }, "lending"},
		{"duplicate symbol", func(c *Config) {
			tok := GenesisToken{Symbol: "T1", Owner: owner, Supply: "10"}
			c.Tokens = []GenesisToken{tok, tok}
		}, "duplicate symbol"},
		{"negative supply", func(c *Config) {
			c.Tokens = []GenesisToken{{Symbol: "T1", Owner: owner, Supply: "-1"}}
		}, "supply"},
		{"zero price", func(c *Config) {
			c.Tokens = []GenesisToken{{Symbol: "T1", Owner: owner, Supply: "1", Price: "0"}}
		}, "price"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.normalize("")
			if err := ValidateConfig(cfg); err != nil {
				t.Fatalf("default config invalid: %v", err)
			}
			tc.mutate(cfg)
			err := ValidateConfig(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	if v, err := ParseAmount(""); err != nil || v.Sign() != 0 {
		t.Fatalf("empty amount: %v %v", v, err)
	}
	if v, err := ParseAmount(" 1000000000000000000000000000000 "); err != nil || v.String() != "1000000000000000000000000000000" {
		t.Fatalf("large amount: %v %v", v, err)
	}
	if _, err := ParseAmount("1.5"); err == nil {
		t.Fatalf("expected decimal point to be rejected")
	}
}
