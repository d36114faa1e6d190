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
	path := filepath.Join(t.TempDir(), "wsxfer.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 16*1024, cfg.ChunkSize)
	assert.Equal(t, TransportWS, cfg.Transport)
}

func TestLoadOverridesOnlyDefinedKeys(t *testing.T) {
	path := writeConfig(t, `
role = "recv"
url = " ws://10.0.0.2:8080/ws "
timeout = "45s"
ice_servers = ["stun:stun.example.org:3478"]
debug = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, RoleRecv, cfg.Role)
	assert.Equal(t, "ws://10.0.0.2:8080/ws", cfg.URL)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"stun:stun.example.org:3478"}, cfg.ICEServers)
	assert.True(t, cfg.Debug)

	def := Default()
	assert.Equal(t, def.PollInterval, cfg.PollInterval)
	assert.Equal(t, def.ChunkSize, cfg.ChunkSize)
	assert.Equal(t, def.Listen, cfg.Listen)
	assert.Equal(t, def.OutDir, cfg.OutDir)
}

func TestLoadRejectsInvalid(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"unknown role", `role = "relay"`},
		{"unknown transport", `transport = "quic"`},
		{"bad duration", `timeout = "soon"`},
		{"zero timeout", `timeout = "0s"`},
		{"negative poll", `poll_interval = "-1s"`},
		{"zero chunk", `chunk_size = 0`},
		{"unknown key", `colour = "blue"`},
		{"not toml", `role = `},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTransferOptions(t *testing.T) {
	cfg := Default()
	cfg.Timeout = time.Minute
	cfg.PollInterval = time.Second
	opts := cfg.TransferOptions()
	assert.Equal(t, time.Minute, opts.Timeout)
	assert.Equal(t, time.Second, opts.PollInterval)
	assert.Nil(t, opts.Progress)
}
