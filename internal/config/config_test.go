package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
ring:
  name: prod
nodes:
  - id: 1
    name: node-a
    address: 10.0.0.1:7000
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Ring.Name)
	assert.Equal(t, "ketama", cfg.Ring.Strategy)
	assert.Equal(t, "balanced", cfg.Ring.Quorum)
	assert.Equal(t, "strict", cfg.Wheel.RepeatMode)
	assert.Equal(t, time.Millisecond, cfg.Wheel.TickInterval)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.Len(t, cfg.Nodes, 1)
	assert.Equal(t, uint64(1), cfg.Nodes[0].ID)
}

func TestLoadConfigFull(t *testing.T) {
	path := writeConfig(t, `
ring:
  name: prod
  strategy: maglev
  hash_seed: 7
  quorum: strong
nodes:
  - id: 1
    name: node-a
    address: 10.0.0.1:7000
    rack: 3
    az: 1
  - id: 2
    name: node-b
    address: 10.0.0.2:7000
    rack: 4
    az: 2
keyspaces:
  - name: sessions
    quorum: eventual
wheel:
  repeat_mode: drift
  health_interval: 10s
workload:
  enabled: true
  key_count: 500
metrics:
  enabled: true
  port: 9191
logging:
  level: debug
  format: console
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "maglev", cfg.Ring.Strategy)
	assert.Equal(t, uint32(7), cfg.Ring.HashSeed)
	assert.Equal(t, "drift", cfg.Wheel.RepeatMode)
	assert.Equal(t, 10*time.Second, cfg.Wheel.HealthInterval)
	assert.True(t, cfg.Workload.Enabled)
	assert.Equal(t, 500, cfg.Workload.KeyCount)
	assert.Equal(t, 9191, cfg.Metrics.Port)
	require.Len(t, cfg.KeySpaces, 1)
	assert.Equal(t, "eventual", cfg.KeySpaces[0].Quorum)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "bad strategy",
			content: `
ring:
  strategy: crc32
`,
		},
		{
			name: "bad quorum",
			content: `
ring:
  quorum: mostly
`,
		},
		{
			name: "bad repeat mode",
			content: `
wheel:
  repeat_mode: sometimes
`,
		},
		{
			name: "duplicate node ids",
			content: `
nodes:
  - id: 1
  - id: 1
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	assert.Error(t, err)
}
