package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWhenFileMissing(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	s, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", s.Engine.System)
	assert.Equal(t, "./data.db", s.Engine.DSN)
	assert.Equal(t, "./filesets", s.Fileset.Root)
	assert.Equal(t, 500*time.Millisecond, s.Sync.InitialDelay)
	assert.Equal(t, 8, s.Sync.MaxAttempts)
}

func TestLoadReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  system: mysql
  dsn: "user:pass@tcp(localhost:3306)/app"
fileset:
  root: /var/lib/app/files
`), 0o644))

	l := NewLoader(path)
	s, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "mysql", s.Engine.System)
	assert.Equal(t, "user:pass@tcp(localhost:3306)/app", s.Engine.DSN)
	assert.Equal(t, "/var/lib/app/files", s.Fileset.Root)
}

func TestLoadHonorsEnvOverride(t *testing.T) {
	t.Setenv("DSQLITE_ENGINE_DSN", "./overridden.db")

	l := NewLoader("")
	s, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "./overridden.db", s.Engine.DSN)
}

func TestSetOverridesBeforeLoad(t *testing.T) {
	l := NewLoader("")
	l.Set(KeyFilesetRoot, "/tmp/custom")

	s, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom", s.Fileset.Root)
}
