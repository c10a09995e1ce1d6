package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteAndLoadConfig(t *testing.T) {
	home := t.TempDir()
	cfg := DefaultConfig(home)
	cfg.App.IndexerEnabled = false
	cfg.App.ServiceListenAddr = "0.0.0.0:9099"
	cfg.App.IndexerPollInterval = 3 * time.Second
	cfg.Consensus.TimeoutCommit = 2 * time.Second
	require.NoError(t, WriteConfigFile(cfg.ConfigFile(), cfg))

	raw, err := os.ReadFile(cfg.ConfigFile())
	require.NoError(t, err)
	require.Contains(t, string(raw), "[consensus]")
	require.Contains(t, string(raw), "[app]")

	loaded, err := LoadConfig(home)
	require.NoError(t, err)
	require.Equal(t, home, loaded.RootDir)
	require.Equal(t, home, loaded.App.Home)
	require.False(t, loaded.App.IndexerEnabled)
	require.Equal(t, "0.0.0.0:9099", loaded.App.ServiceListenAddr)
	require.Equal(t, 3*time.Second, loaded.App.IndexerPollInterval)
	require.Equal(t, DefaultIndexerDB, loaded.App.IndexerDB)
	require.Equal(t, 2*time.Second, loaded.Consensus.TimeoutCommit)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
}

func TestAppConfigValidate(t *testing.T) {
	cfg := DefaultAppConfig("/tmp/x")
	require.NoError(t, cfg.ValidateBasic())
	require.Equal(t, "/tmp/x/data/indexer.db", cfg.IndexerDBFile())
	require.Equal(t, "/tmp/x/data", cfg.DataDir())

	cfg.IndexerDB = "/var/lib/idx.db"
	require.Equal(t, "/var/lib/idx.db", cfg.IndexerDBFile())

	cfg.IndexerPollInterval = 0
	require.Error(t, cfg.ValidateBasic())

	cfg.IndexerEnabled = false
	require.NoError(t, cfg.ValidateBasic())
}

func TestInitializeNodeValidatorFiles(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	nodeID, pk, err := InitializeNodeValidatorFiles(cfg)
	require.NoError(t, err)
	require.NotEmpty(t, nodeID)
	require.FileExists(t, cfg.PrivValidatorKeyFile())
	require.FileExists(t, cfg.NodeKeyFile())

	// a second call loads the same key
	_, pk2, err := InitializeNodeValidatorFiles(cfg)
	require.NoError(t, err)
	require.True(t, pk.Equals(pk2))
}
