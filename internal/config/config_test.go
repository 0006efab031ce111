package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/petclinic/models"
	"goflare.io/petclinic/pkg/serialization"
)

func TestNewConfigRequiresDirectorySettings(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"nothing", nil},
		{"ttl only", []Option{WithDirectoryTTL(300)}},
		{"capacity only", []Option{WithMaxEntries(10)}},
		{"negative ttl", []Option{WithDirectoryTTL(-1), WithMaxEntries(10)}},
		{"zero capacity", []Option{WithDirectoryTTL(300), WithMaxEntries(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.opts...)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrConfiguration)
		})
	}
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(WithDirectoryTTL(0), WithMaxEntries(1))
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), cfg.DirectoryConfig.TTL())
	assert.Equal(t, 1, cfg.DirectoryConfig.MaxEntries)
	assert.False(t, cfg.DirectoryConfig.Coalesce)
	assert.True(t, cfg.ResilienceConfig.Enabled)
	assert.Equal(t, serialization.JSONType, cfg.Serialization.Type)
	assert.NotNil(t, cfg.Logger)
	assert.Nil(t, cfg.InvalidationConfig.Client)
}

func TestNewConfigOptions(t *testing.T) {
	cfg, err := NewConfig(
		WithDirectoryTTL(300),
		WithMaxEntries(1000),
		WithCoalescing(true),
		WithResilience(false),
		WithSerialization(serialization.GobType),
	)
	require.NoError(t, err)

	assert.Equal(t, 300*time.Second, cfg.DirectoryConfig.TTL())
	assert.Equal(t, 1000, cfg.DirectoryConfig.MaxEntries)
	assert.True(t, cfg.DirectoryConfig.Coalesce)
	assert.False(t, cfg.ResilienceConfig.Enabled)
	assert.Equal(t, serialization.GobType, cfg.Serialization.Type)
}

func TestNewConfigRejectsBadOptions(t *testing.T) {
	_, err := NewConfig(WithDirectoryTTL(1), WithMaxEntries(1), WithSerialization("xml"))
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = NewConfig(WithDirectoryTTL(1), WithMaxEntries(1), WithInvalidation(nil, ""))
	assert.ErrorIs(t, err, models.ErrConfiguration)

	// 18446744074s would wrap around to roughly 290ms as a time.Duration.
	_, err = NewConfig(WithDirectoryTTL(18446744074), WithMaxEntries(1))
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = NewConfig(WithDirectoryTTL(int(MaxTTLSeconds)+1), WithMaxEntries(1))
	assert.ErrorIs(t, err, models.ErrConfiguration)

	cfg, err := NewConfig(WithDirectoryTTL(int(MaxTTLSeconds)), WithMaxEntries(1))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(MaxTTLSeconds)*time.Second, cfg.DirectoryConfig.TTL())
}

func TestValidateRejectsOverflowingTTL(t *testing.T) {
	cfg := &Config{DirectoryConfig: DirectoryConfig{TTLSeconds: int(MaxTTLSeconds) + 1, MaxEntries: 1}}
	assert.ErrorIs(t, cfg.Validate(), models.ErrConfiguration)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PETCLINIC_VETS_CACHE_TTL_SECONDS", "300")
	t.Setenv("PETCLINIC_VETS_CACHE_MAX_ENTRIES", "1000")
	t.Setenv("PETCLINIC_STORE_DRIVER", "postgres")
	t.Setenv("PETCLINIC_STORE_DSN", "postgres://localhost/petclinic")
	t.Setenv("PETCLINIC_REDIS_ADDR", "localhost:6379")

	s, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, s.Vets.Cache.TTLSeconds)
	require.NotNil(t, s.Vets.Cache.MaxEntries)
	assert.Equal(t, 300, *s.Vets.Cache.TTLSeconds)
	assert.Equal(t, 1000, *s.Vets.Cache.MaxEntries)
	assert.Equal(t, "postgres", s.Store.Driver)
	assert.Equal(t, "postgres://localhost/petclinic", s.Store.DSN)
	assert.Equal(t, "localhost:6379", s.Redis.Addr)
	assert.True(t, s.Resilience.Enabled)

	cfg, err := NewConfig(s.Options()...)
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, cfg.DirectoryConfig.TTL())
}

func TestLoadZeroTTLIsPresent(t *testing.T) {
	t.Setenv("PETCLINIC_VETS_CACHE_TTL_SECONDS", "0")
	t.Setenv("PETCLINIC_VETS_CACHE_MAX_ENTRIES", "5")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0, *s.Vets.Cache.TTLSeconds)
	assert.Equal(t, "sqlite", s.Store.Driver)
}

func TestLoadMissingCacheKeys(t *testing.T) {
	t.Setenv("PETCLINIC_VETS_CACHE_MAX_ENTRIES", "1000")

	_, err := Load("")
	assert.ErrorIs(t, err, models.ErrConfiguration)
	assert.Contains(t, err.Error(), "ttl_seconds")
}

func TestLoadInvalidNumber(t *testing.T) {
	t.Setenv("PETCLINIC_VETS_CACHE_TTL_SECONDS", "soon")
	t.Setenv("PETCLINIC_VETS_CACHE_MAX_ENTRIES", "1000")

	_, err := Load("")
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "petclinic.yaml")
	body := "vets:\n  cache:\n    ttl_seconds: 60\n    max_entries: 10\n    coalesce: true\nredis:\n  channel: custom\n  serialization: gob\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 60, *s.Vets.Cache.TTLSeconds)
	assert.Equal(t, 10, *s.Vets.Cache.MaxEntries)
	assert.True(t, s.Vets.Cache.Coalesce)
	assert.Equal(t, "custom", s.Redis.Channel)

	cfg, err := NewConfig(s.Options()...)
	require.NoError(t, err)
	assert.Equal(t, serialization.GobType, cfg.Serialization.Type)
}
