package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"clearfund/crypto"

	"github.com/BurntSushi/toml"
)

// GenesisAccount seeds an address with an initial balance on first start.
type GenesisAccount struct {
	Address string `toml:"Address"`
	Balance string `toml:"Balance"`
}

// Config carries the node wiring: listen addresses, the data directory, the
// escrow vault address and the block cadence the height counter advances at.
type Config struct {
	RPCAddress      string           `toml:"RPCAddress"`
	MetricsAddress  string           `toml:"MetricsAddress"`
	DataDir         string           `toml:"DataDir"`
	NetworkName     string           `toml:"NetworkName"`
	VaultAddress    string           `toml:"VaultAddress"`
	BlockIntervalMS int64            `toml:"BlockIntervalMS"`
	GenesisAccounts []GenesisAccount `toml:"GenesisAccounts"`
}

const defaultVaultAddress = "0x00000000000000000000000000000000c1ea4f0d"

func defaultConfig() *Config {
	return &Config{
		RPCAddress:      "127.0.0.1:8545",
		MetricsAddress:  "127.0.0.1:9464",
		DataDir:         "./clearfund-data",
		NetworkName:     "clearfund-local",
		VaultAddress:    defaultVaultAddress,
		BlockIntervalMS: 5_000,
	}
}

// Load reads the configuration from the given path, creating a commented
// default file when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	base := defaultConfig()
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = base.RPCAddress
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = base.MetricsAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = base.DataDir
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = base.NetworkName
	}
	if strings.TrimSpace(cfg.VaultAddress) == "" {
		cfg.VaultAddress = base.VaultAddress
	}
	if cfg.BlockIntervalMS <= 0 {
		cfg.BlockIntervalMS = base.BlockIntervalMS
	}
}

// Validate checks the address fields decode before the node starts.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if _, err := crypto.ParseAddress(cfg.VaultAddress); err != nil {
		return fmt.Errorf("config: VaultAddress: %w", err)
	}
	for i, acct := range cfg.GenesisAccounts {
		if _, err := crypto.ParseAddress(acct.Address); err != nil {
			return fmt.Errorf("config: GenesisAccounts[%d].Address: %w", i, err)
		}
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
