// Package config loads the ambient settings a data-access instance needs
// at construction time: the storage engine DSN, the fileset repository
// root, and the sync retry policy, via spf13/viper, with a SetDefault-
// per-concern registration step and a typed settings struct assembled
// from Get* accessors.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Engine config keys.
const (
	KeyEngineSystem = "engine.system" // "sqlite" or "mysql"
	KeyEngineDSN    = "engine.dsn"
)

// Fileset config keys.
const (
	KeyFilesetRoot = "fileset.root"
)

// Sync retry config keys.
const (
	KeySyncInitialDelay = "sync.retry.initial-delay"
	KeySyncMaxDelay     = "sync.retry.max-delay"
	KeySyncMultiplier   = "sync.retry.multiplier"
	KeySyncMaxAttempts  = "sync.retry.max-attempts"
	KeySyncAutoInterval = "sync.auto-interval"
)

// EngineSettings describes which StorageEngine to open and how.
type EngineSettings struct {
	System string // "sqlite" or "mysql"
	DSN    string
}

// FilesetSettings describes where the local blob repository lives.
type FilesetSettings struct {
	Root string
}

// SyncSettings describes the retry policy and auto-sync cadence the sync
// manager façade is built with.
type SyncSettings struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
	AutoInterval time.Duration
}

// Settings is the full, resolved configuration for one data-access
// instance.
type Settings struct {
	Engine  EngineSettings
	Fileset FilesetSettings
	Sync    SyncSettings
}

// Loader wraps a viper instance scoped to one config file plus environment
// variable overrides, following a per-concern SetDefault convention.
type Loader struct {
	v *viper.Viper
}

// NewLoader prepares a Loader reading configPath (a YAML file) with
// environment variable overrides under the DSQLITE_ prefix (e.g.
// DSQLITE_ENGINE_DSN overrides engine.dsn), applying defaults first so a
// missing or empty config file still yields a usable Settings.
func NewLoader(configPath string) *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	v.SetEnvPrefix("dsqlite")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	registerDefaults(v)
	return &Loader{v: v}
}

func registerDefaults(v *viper.Viper) {
	v.SetDefault(KeyEngineSystem, "sqlite")
	v.SetDefault(KeyEngineDSN, "./data.db")

	v.SetDefault(KeyFilesetRoot, "./filesets")

	v.SetDefault(KeySyncInitialDelay, "500ms")
	v.SetDefault(KeySyncMaxDelay, "30s")
	v.SetDefault(KeySyncMultiplier, 2.0)
	v.SetDefault(KeySyncMaxAttempts, 8)
	v.SetDefault(KeySyncAutoInterval, "60s")
}

// Load reads the config file (if one was set and exists) and returns the
// resolved Settings. A missing file is not an error: defaults and
// environment overrides still apply.
func (l *Loader) Load() (Settings, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) && l.v.ConfigFileUsed() != "" {
			return Settings{}, fmt.Errorf("config: read %q: %w", l.v.ConfigFileUsed(), err)
		}
	}

	return Settings{
		Engine: EngineSettings{
			System: l.v.GetString(KeyEngineSystem),
			DSN:    l.v.GetString(KeyEngineDSN),
		},
		Fileset: FilesetSettings{
			Root: l.v.GetString(KeyFilesetRoot),
		},
		Sync: SyncSettings{
			InitialDelay: l.v.GetDuration(KeySyncInitialDelay),
			MaxDelay:     l.v.GetDuration(KeySyncMaxDelay),
			Multiplier:   l.v.GetFloat64(KeySyncMultiplier),
			MaxAttempts:  l.v.GetInt(KeySyncMaxAttempts),
			AutoInterval: l.v.GetDuration(KeySyncAutoInterval),
		},
	}, nil
}

// Set overrides a single key, used by `reactorctl config set`-style
// commands before Load is called again.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}
