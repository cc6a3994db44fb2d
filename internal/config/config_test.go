package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
search_paths:
  - /opt/plugins
sample_rate: 44100
block_size: 256
log_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/plugins"}, cfg.SearchPaths)
	assert.Equal(t, 44100.0, cfg.SampleRate)
	assert.Equal(t, int32(256), cfg.BlockSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Unset fields keep defaults.
	assert.Equal(t, Default().EventCapacity, cfg.EventCapacity)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"zero sample rate", "sample_rate: 0\n"},
		{"negative block size", "block_size: -1\n"},
		{"oversized block", "block_size: 65536\n"},
		{"bad log level", "log_level: loud\n"},
		{"not yaml", ":\t???"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
