package config

import (
	"time"
)

// Config is the top-level configuration container for the taskvault sync
// engine. It aggregates all sub-configurations and is populated by merging
// values from environment variables, command-line flags, an optional JSON
// file, and built-in defaults.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type Config struct {
	// Remote holds settings for the remote object store every replica
	// rendezvouses through.
	Remote Remote `envPrefix:"REMOTE_"`

	// Storage holds settings for the client-local persistence layer.
	Storage Storage `envPrefix:"STORAGE_"`

	// Sync holds the tunables of the synchronization engine itself:
	// timers, windows, and retry limits.
	Sync Sync `envPrefix:"SYNC_"`

	// Log holds logging output settings.
	Log Log `envPrefix:"LOG_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged below the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Remote holds connection settings for the remote object store.
type Remote struct {
	// BaseURL is the root endpoint of the object store
	// (e.g. "https://store.example.com").
	// Env: REMOTE_BASE_URL
	BaseURL string `env:"BASE_URL"`

	// ObjectPath is the path of the single shared dataset object under
	// BaseURL. All replicas read and write this one object.
	// Env: REMOTE_OBJECT_PATH
	ObjectPath string `env:"OBJECT_PATH"`

	// AccessToken is the bearer token presented on every store request.
	// Acquisition and refresh of the token are outside the engine.
	// Env: REMOTE_ACCESS_TOKEN
	AccessToken string `env:"ACCESS_TOKEN"`

	// RequestTimeout is the transport-level timeout for a single store
	// request (e.g. "15s"). The engine adds no timeout of its own.
	// Env: REMOTE_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Storage holds settings for the client-local persistence layer.
type Storage struct {
	// DBPath is the path of the local sqlite database file holding all
	// engine blobs (snapshot cache, tombstones, sync state).
	// Env: STORAGE_DB_PATH
	DBPath string `env:"DB_PATH"`

	// Passphrase keys the symmetric cipher protecting the locally cached
	// snapshot. Must be kept confidential.
	// Env: STORAGE_PASSPHRASE
	Passphrase string `env:"PASSPHRASE"`
}

// Sync holds the engine tunables. Every duration named in the component
// contracts is configurable here.
type Sync struct {
	// Debounce is how long after the last local mutation the engine waits
	// before starting a cycle (e.g. "2s").
	// Env: SYNC_DEBOUNCE
	Debounce time.Duration `env:"DEBOUNCE"`

	// PeriodicInterval is the interval of the background sync ticker
	// (e.g. "5m").
	// Env: SYNC_PERIODIC_INTERVAL
	PeriodicInterval time.Duration `env:"PERIODIC_INTERVAL"`

	// ConflictWindow is the span within which diverging completion flags
	// count as a true conflict rather than a stale read (e.g. "1h").
	// Env: SYNC_CONFLICT_WINDOW
	ConflictWindow time.Duration `env:"CONFLICT_WINDOW"`

	// TombstoneRetention is how long a deletion intent suppresses its id
	// from merge results (e.g. "168h").
	// Env: SYNC_TOMBSTONE_RETENTION
	TombstoneRetention time.Duration `env:"TOMBSTONE_RETENTION"`

	// RetryBudget is the number of full fetch-merge-write attempts one
	// cycle may make when the remote version token goes stale underneath it.
	// Env: SYNC_RETRY_BUDGET
	RetryBudget int `env:"RETRY_BUDGET"`

	// RetryBackoff is the pause between those attempts (e.g. "500ms").
	// Env: SYNC_RETRY_BACKOFF
	RetryBackoff time.Duration `env:"RETRY_BACKOFF"`

	// ProbeInterval is how often the reachability of the remote store is
	// re-checked (e.g. "30s").
	// Env: SYNC_PROBE_INTERVAL
	ProbeInterval time.Duration `env:"PROBE_INTERVAL"`
}

// Log holds logging output settings.
type Log struct {
	// FilePath is the log file destination. Empty means a file next to
	// the executable.
	// Env: LOG_FILE_PATH
	FilePath string `env:"FILE_PATH"`
}

// defaults returns the lowest-priority configuration layer: every tunable
// the engine contracts name, at its documented default.
func defaults() *Config {
	return &Config{
		Remote: Remote{
			ObjectPath:     "taskvault/dataset.json",
			RequestTimeout: 15 * time.Second,
		},
		Storage: Storage{
			DBPath: "taskvault.db",
		},
		Sync: Sync{
			Debounce:           2 * time.Second,
			PeriodicInterval:   5 * time.Minute,
			ConflictWindow:     time.Hour,
			TombstoneRetention: 7 * 24 * time.Hour,
			RetryBudget:        3,
			RetryBackoff:       500 * time.Millisecond,
			ProbeInterval:      30 * time.Second,
		},
	}
}

// GetConfig loads, merges, and validates the engine configuration from all
// available sources in the following priority order (first source wins for
// non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//  4. Built-in defaults
//
// Returns a fully populated *Config or an error if any source fails to load
// or the final config fails validation.
func GetConfig() (*Config, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		withDefaults().
		build()
}
