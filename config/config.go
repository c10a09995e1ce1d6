package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cometbft/cometbft/config"
	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/spf13/viper"
)

const (
	DefaultIndexerDB           = "data/indexer.db"
	DefaultServiceListenAddr   = "127.0.0.1:8088"
	DefaultIndexerPollInterval = time.Second
)

type AppConfig struct {
	Home string `mapstructure:"-"`

	IndexerEnabled      bool          `mapstructure:"indexer_enabled"`
	IndexerDB           string        `mapstructure:"indexer_db"`
	ServiceListenAddr   string        `mapstructure:"service_laddr"`
	IndexerPollInterval time.Duration `mapstructure:"indexer_poll_interval"`
}

func DefaultAppConfig(home string) *AppConfig {
	return &AppConfig{
		Home:                home,
		IndexerEnabled:      true,
		IndexerDB:           DefaultIndexerDB,
		ServiceListenAddr:   DefaultServiceListenAddr,
		IndexerPollInterval: DefaultIndexerPollInterval,
	}
}

// DataDir is where the iavl state lives.
func (c *AppConfig) DataDir() string {
	return filepath.Join(c.Home, "data")
}

func (c *AppConfig) IndexerDBFile() string {
	if filepath.IsAbs(c.IndexerDB) {
		return c.IndexerDB
	}
	return filepath.Join(c.Home, c.IndexerDB)
}

func (c *AppConfig) ValidateBasic() error {
	if c.IndexerEnabled {
		if c.IndexerDB == "" {
			return errors.New("app.indexer_db can't be empty when the indexer is enabled")
		}
		if c.ServiceListenAddr == "" {
			return errors.New("app.service_laddr can't be empty when the indexer is enabled")
		}
		if c.IndexerPollInterval <= 0 {
			return errors.New("app.indexer_poll_interval must be positive")
		}
	}
	return nil
}

type Config struct {
	*config.Config `mapstructure:",squash"`

	App *AppConfig `mapstructure:"app"`
}

func DefaultHome() string {
	return os.ExpandEnv("$HOME/.propvote")
}

func DefaultConfig(home string) *Config {
	if len(home) == 0 {
		home = DefaultHome()
	}
	cfg := &Config{
		Config: DefaultCometConfig(),
		App:    DefaultAppConfig(home),
	}
	cfg.SetRoot(home)
	return cfg
}

func DefaultCometConfig() *config.Config {
	cometConfig := config.DefaultConfig()
	cometConfig.Consensus.TimeoutPropose = time.Second * 3
	cometConfig.Consensus.TimeoutPrevote = time.Second * 1
	cometConfig.Consensus.TimeoutPrecommit = time.Second * 1
	cometConfig.Consensus.TimeoutCommit = time.Millisecond * 1200
	cometConfig.Instrumentation.Prometheus = true
	return cometConfig
}

func (c *Config) ConfigFile() string {
	return filepath.Join(c.RootDir, "config", "config.toml")
}

func (c *Config) ValidateBasic() error {
	if err := c.Config.ValidateBasic(); err != nil {
		return err
	}
	return c.App.ValidateBasic()
}

// LoadConfig reads <home>/config/config.toml over the defaults.
func LoadConfig(home string) (*Config, error) {
	cfg := DefaultConfig(home)
	v := viper.New()
	v.SetConfigFile(cfg.ConfigFile())
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.SetRoot(cfg.App.Home)
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration data: %w", err)
	}
	return cfg, nil
}

func InitializeNodeValidatorFiles(cfg *Config) (nodeID string, pk crypto.PubKey, err error) {
	pvKeyFile := cfg.PrivValidatorKeyFile()
	if err := os.MkdirAll(filepath.Dir(pvKeyFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvKeyFile), err)
	}

	pvStateFile := cfg.PrivValidatorStateFile()
	if err := os.MkdirAll(filepath.Dir(pvStateFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvStateFile), err)
	}

	nodeKey, err := p2p.LoadOrGenNodeKey(cfg.NodeKeyFile())
	if err != nil {
		return "", nil, err
	}
	nodeID = string(nodeKey.ID())

	filePV := privval.LoadOrGenFilePV(pvKeyFile, pvStateFile)
	pk, err = filePV.GetPubKey()
	if err != nil {
		return "", nil, err
	}

	return nodeID, pk, nil
}
