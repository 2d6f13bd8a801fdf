package main

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newthinker/stocktrack/internal/config"
)

// defaultConfig loads the built-in defaults in an empty working directory,
// as on a fresh deploy.
func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("FEISHU_WEBHOOK", "http://127.0.0.1:1/hook")

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuild_ScanSkipsLedger(t *testing.T) {
	cfg := defaultConfig(t)

	c, err := build(context.Background(), cfg, zap.NewNop(), false)
	require.NoError(t, err)
	defer c.close()

	assert.NotNil(t, c.scanner)
	assert.Nil(t, c.ledger)

	_, err = os.Stat(cfg.Storage.Ledger.Path)
	assert.True(t, os.IsNotExist(err), "scan must not create the ledger database")
}

func TestBuild_ServeCreatesLedgerDirectory(t *testing.T) {
	cfg := defaultConfig(t)

	c, err := build(context.Background(), cfg, zap.NewNop(), true)
	require.NoError(t, err)
	defer c.close()

	require.NotNil(t, c.ledger)
	_, err = os.Stat(cfg.Storage.Ledger.Path)
	assert.NoError(t, err)
}

func TestBuild_SQLiteDedupInFreshDirectory(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Dedup.Type = "sqlite"

	c, err := build(context.Background(), cfg, zap.NewNop(), false)
	require.NoError(t, err)
	defer c.close()

	_, err = os.Stat(cfg.Dedup.SQLite.Path)
	assert.NoError(t, err)
}
