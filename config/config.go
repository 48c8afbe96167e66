package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"lendingpool/native/flashloan"
	"lendingpool/native/lending"
)

// Config is the protocol configuration loaded by the node.
type Config struct {
	DataDir   string         `toml:"DataDir"`
	Storage   Storage        `toml:"storage"`
	Lending   lending.Config `toml:"lending"`
	FlashLoan FlashLoan      `toml:"flashloan"`
	Roles     Roles          `toml:"roles"`
	Pauses    Pauses         `toml:"pauses"`
	Tokens    []GenesisToken `toml:"tokens"`
}

// Load loads the configuration from the given path. A default file is written
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0].String())
	}
	cfg.normalize(filepath.Dir(path))
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration used for a fresh node.
func Default() *Config {
	return &Config{
		DataDir:   "./lendingpool-data",
		Storage:   Storage{Backend: BackendLevelDB},
		Lending:   lending.DefaultConfig(),
		FlashLoan: FlashLoan{FeeBps: flashloan.DefaultFeeBps},
		Roles:     Roles{Admins: []string{}, Oracles: []string{}},
		Tokens:    []GenesisToken{},
	}
}

func (c *Config) normalize(baseDir string) {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendLevelDB
	}
	if c.Storage.Backend != BackendMemory && strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = filepath.Join(c.DataDir, c.Storage.Backend)
	}
	if c.Storage.Path != "" && !filepath.IsAbs(c.Storage.Path) && baseDir != "" {
		c.Storage.Path = filepath.Join(baseDir, c.Storage.Path)
	}
	if c.Lending.Reserves == nil {
		c.Lending.Reserves = map[string]lending.ParamsConfig{}
	}
	if c.Roles.Admins == nil {
		c.Roles.Admins = []string{}
	}
	if c.Roles.Oracles == nil {
		c.Roles.Oracles = []string{}
	}
	for i := range c.Tokens {
		c.Tokens[i].Symbol = strings.ToUpper(strings.TrimSpace(c.Tokens[i].Symbol))
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize(filepath.Dir(path))
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
