package config

// validate checks that the final merged [Config] satisfies the engine's
// startup invariants.
//
// Returns nil if the configuration is valid, or a descriptive error
// otherwise.
func (cfg *Config) validate() error {
	if cfg.Remote.BaseURL == "" || cfg.Remote.ObjectPath == "" {
		return ErrInvalidRemoteConfigs
	}

	if cfg.Storage.DBPath == "" {
		return ErrInvalidStorageConfigs
	}

	if cfg.Sync.Debounce <= 0 ||
		cfg.Sync.PeriodicInterval <= 0 ||
		cfg.Sync.ConflictWindow <= 0 ||
		cfg.Sync.TombstoneRetention <= 0 ||
		cfg.Sync.ProbeInterval <= 0 {
		return ErrInvalidSyncConfigs
	}

	if cfg.Sync.RetryBudget < 1 || cfg.Sync.RetryBackoff < 0 {
		return ErrInvalidSyncConfigs
	}

	return nil
}
