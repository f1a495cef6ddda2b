package config

import (
	"flag"
	"os"
	"time"
)

// ParseFlags parses all configuration flags from os.Args.
//
// Flags:
//
//	-remote-url base URL of the remote object store
//	-object-path path of the shared dataset object
//	-access-token bearer token for the store
//	-request-timeout transport timeout (e.g. "15s")
//	-db local sqlite database path
//	-debounce local-change debounce interval (e.g. "2s")
//	-periodic periodic sync interval (e.g. "5m")
//	-conflict-window completion-flag conflict window (e.g. "1h")
//	-tombstone-retention deletion intent retention (e.g. "168h")
//	-retry-budget attempts per cycle under version contention
//	-retry-backoff pause between contention retries (e.g. "500ms")
//	-probe-interval reachability probe interval (e.g. "30s")
//	-log-file log file path
//	-c/-config json file path with configs
func ParseFlags() *Config {
	return parseFlags(flag.NewFlagSet(os.Args[0], flag.ExitOnError), os.Args[1:])
}

func parseFlags(fs *flag.FlagSet, args []string) *Config {
	var (
		remoteURL          string
		objectPath         string
		accessToken        string
		requestTimeout     time.Duration
		dbPath             string
		debounce           time.Duration
		periodic           time.Duration
		conflictWindow     time.Duration
		tombstoneRetention time.Duration
		retryBudget        int
		retryBackoff       time.Duration
		probeInterval      time.Duration
		logFile            string
		jsonConfigPath     string
	)

	fs.StringVar(&remoteURL, "remote-url", "", "Remote object store base URL")
	fs.StringVar(&objectPath, "object-path", "", "Path of the shared dataset object")
	fs.StringVar(&accessToken, "access-token", "", "Bearer token for the remote store")
	fs.DurationVar(&requestTimeout, "request-timeout", 0, "Transport request timeout (e.g. 15s)")
	fs.StringVar(&dbPath, "db", "", "Local sqlite database path")
	fs.DurationVar(&debounce, "debounce", 0, "Local-change debounce interval (e.g. 2s)")
	fs.DurationVar(&periodic, "periodic", 0, "Periodic sync interval (e.g. 5m)")
	fs.DurationVar(&conflictWindow, "conflict-window", 0, "Completion-flag conflict window (e.g. 1h)")
	fs.DurationVar(&tombstoneRetention, "tombstone-retention", 0, "Deletion intent retention (e.g. 168h)")
	fs.IntVar(&retryBudget, "retry-budget", 0, "Attempts per cycle under version contention")
	fs.DurationVar(&retryBackoff, "retry-backoff", 0, "Pause between contention retries (e.g. 500ms)")
	fs.DurationVar(&probeInterval, "probe-interval", 0, "Reachability probe interval (e.g. 30s)")
	fs.StringVar(&logFile, "log-file", "", "Log file path")
	fs.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	fs.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")

	_ = fs.Parse(args)

	return &Config{
		Remote: Remote{
			BaseURL:        remoteURL,
			ObjectPath:     objectPath,
			AccessToken:    accessToken,
			RequestTimeout: requestTimeout,
		},
		Storage: Storage{
			DBPath: dbPath,
		},
		Sync: Sync{
			Debounce:           debounce,
			PeriodicInterval:   periodic,
			ConflictWindow:     conflictWindow,
			TombstoneRetention: tombstoneRetention,
			RetryBudget:        retryBudget,
			RetryBackoff:       retryBackoff,
			ProbeInterval:      probeInterval,
		},
		Log: Log{
			FilePath: logFile,
		},
		JSONFilePath: jsonConfigPath,
	}
}
