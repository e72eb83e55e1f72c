package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout.Duration)
	assert.Equal(t, int64(4<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, 1, cfg.Client.Retries)
	assert.True(t, cfg.Exec.Enabled)
	assert.Equal(t, "cstage", filepath.Base(filepath.Dir(cfg.Server.WorkDir)))
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = ":8080"
llc = "/opt/llvm/bin/llc"
llc_args = ["-O2"]
timeout = "5s"

[client]
url = "http://codegen:8080"
retries = 0

[exec]
enabled = false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/opt/llvm/bin/llc", cfg.Server.LLC)
	assert.Equal(t, []string{"-O2"}, cfg.Server.LLCArgs)
	assert.Equal(t, 5*time.Second, cfg.Server.Timeout.Duration)
	assert.Equal(t, "http://codegen:8080", cfg.Client.URL)
	assert.Equal(t, 0, cfg.Client.Retries)
	assert.False(t, cfg.Exec.Enabled)

	// unset keys keep their defaults
	assert.Equal(t, time.Hour, cfg.Server.StaleAfter.Duration)
	assert.Equal(t, "*", cfg.Server.AllowOrigin)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "[server]\naddr = \":8080\"\n")
	t.Setenv(EnvConfig, path)
	t.Setenv(EnvAddr, ":9090")
	t.Setenv(EnvLLC, "llc-18")
	t.Setenv(EnvLLI, "lli-18")
	t.Setenv(EnvServerURL, "http://other:9090")
	t.Setenv(EnvWorkDir, "/tmp/cstage-work")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "llc-18", cfg.Server.LLC)
	assert.Equal(t, "lli-18", cfg.Exec.LLI)
	assert.Equal(t, "http://other:9090", cfg.Client.URL)
	assert.Equal(t, "/tmp/cstage-work", cfg.Server.WorkDir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)

	// the implicit ./cstage.toml may be absent
	t.Chdir(t.TempDir())
	t.Setenv(EnvConfig, "")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default().Server.Addr, cfg.Server.Addr)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"bad duration", "[server]\ntimeout = \"soon\"\n", "duration"},
		{"retries", "[client]\nretries = 2\n", "client.retries must be 0 or 1"},
		{"empty llc", "[server]\nllc = \"\"\n", "server.llc is empty"},
		{"empty lli", "[exec]\nlli = \"\"\n", "exec.lli is empty"},
		{"syntax", "[server\n", "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Server.LLCArgs = []string{"-mtriple=x86_64-unknown-linux-gnu"}
	cfg.Exec.Timeout = Duration{2 * time.Second}

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "2s")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}
