package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
host = "127.0.0.1"
port = 7777

[database]
name = "harp"
user = "harp"
pass = "secret"
host = "127.0.0.1"
port = 5432
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DefaultProcessInterval, cfg.ProcessInterval)
	require.Equal(t, DefaultMaxPacketSize, cfg.MaxPacketSize)
	require.Equal(t, DefaultDBMaxConns, cfg.Database.MaxConnections)
}

func TestLoadFloorsMaxPacketSize(t *testing.T) {
	path := writeConfig(t, `
host = "127.0.0.1"
port = 7777
max_packet_size = 10

[database]
name = "harp"
user = "harp"
pass = "secret"
host = "127.0.0.1"
port = 5432
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, MinMaxPacketSize, cfg.MaxPacketSize)
}

func TestValidateRejectsBadHost(t *testing.T) {
	cfg := &Config{
		Host:            "not-an-ip",
		Port:            7777,
		ProcessInterval: 1,
		MaxPacketSize:   1024,
		Database: DatabaseConfig{
			Name: "harp", User: "harp", Host: "127.0.0.1", Port: 5432, MaxConnections: 3,
		},
	}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsPortOutOfRange(t *testing.T) {
	cfg := &Config{
		Host:            "127.0.0.1",
		Port:            0,
		ProcessInterval: 1,
		MaxPacketSize:   1024,
		Database: DatabaseConfig{
			Name: "harp", User: "harp", Host: "127.0.0.1", Port: 5432, MaxConnections: 3,
		},
	}
	require.Error(t, cfg.Validate())
}
