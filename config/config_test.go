package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/telelog/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultContextName, cfg.Context.Name)
	assert.Equal(t, DefaultClosedWarnInterval, cfg.Context.ClosedWarnInterval)
	assert.Equal(t, DefaultViewerAddr, cfg.Viewer.Addr)
	assert.False(t, cfg.NATS.Enabled)
	assert.False(t, cfg.Viewer.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: nil,
		},
		{
			name:    "missing context name",
			mutate:  func(c *Config) { c.Context.Name = "" },
			wantErr: errors.ErrMissingConfig,
		},
		{
			name:    "negative warn interval",
			mutate:  func(c *Config) { c.Context.ClosedWarnInterval = -time.Second },
			wantErr: errors.ErrInvalidConfig,
		},
		{
			name:    "nats enabled without url",
			mutate:  func(c *Config) { c.NATS.Enabled = true },
			wantErr: errors.ErrMissingConfig,
		},
		{
			name: "nats subject prefix with spaces",
			mutate: func(c *Config) {
				c.NATS.Enabled = true
				c.NATS.URL = "nats://localhost:4222"
				c.NATS.SubjectPrefix = "tele log"
			},
			wantErr: errors.ErrInvalidConfig,
		},
		{
			name: "valid nats config",
			mutate: func(c *Config) {
				c.NATS.Enabled = true
				c.NATS.URL = "nats://localhost:4222"
				c.NATS.SubjectPrefix = "telelog.msgs"
			},
			wantErr: nil,
		},
		{
			name: "viewer enabled without addr",
			mutate: func(c *Config) {
				c.Viewer.Enabled = true
				c.Viewer.Addr = ""
			},
			wantErr: errors.ErrMissingConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telelog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"context": {"name": "bench-rig"},
		"staging": {"dir": "/tmp/telelog-segments"},
		"nats": {"enabled": true, "url": "nats://localhost:4222", "subject_prefix": "rig"}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bench-rig", cfg.Context.Name)
	assert.Equal(t, "/tmp/telelog-segments", cfg.Staging.Dir)
	assert.Equal(t, "rig", cfg.NATS.SubjectPrefix)
	// defaults fill the gaps
	assert.Equal(t, DefaultClosedWarnInterval, cfg.Context.ClosedWarnInterval)
	assert.Equal(t, DefaultNATSMaxReconnects, cfg.NATS.MaxReconnects)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{not json`), 0o644))
	_, err = Load(bad)
	require.Error(t, err)

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"nats": {"enabled": true}}`), 0o644))
	_, err = Load(invalid)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingConfig))
}

func TestSafeConfig(t *testing.T) {
	sc := NewSafeConfig(nil)
	assert.Equal(t, DefaultContextName, sc.Get().Context.Name)

	next := Default()
	next.Context.Name = "replacement"
	require.NoError(t, sc.Update(next))
	assert.Equal(t, "replacement", sc.Get().Context.Name)

	// Invalid updates are rejected and leave the current config in place.
	broken := Default()
	broken.Context.Name = ""
	require.Error(t, sc.Update(broken))
	assert.Equal(t, "replacement", sc.Get().Context.Name)

	require.Error(t, sc.Update(nil))

	// Mutating a returned copy does not affect the stored config.
	got := sc.Get()
	got.Context.Name = "mutated"
	assert.Equal(t, "replacement", sc.Get().Context.Name)
}
