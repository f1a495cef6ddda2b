package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type jsonConfig struct {
	Remote struct {
		BaseURL        string   `json:"base_url"`
		ObjectPath     string   `json:"object_path"`
		AccessToken    string   `json:"access_token"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"remote,omitempty"`

	Storage struct {
		DBPath     string `json:"db_path"`
		Passphrase string `json:"passphrase"`
	} `json:"storage,omitempty"`

	Sync struct {
		Debounce           Duration `json:"debounce"`
		PeriodicInterval   Duration `json:"periodic_interval"`
		ConflictWindow     Duration `json:"conflict_window"`
		TombstoneRetention Duration `json:"tombstone_retention"`
		RetryBudget        int      `json:"retry_budget"`
		RetryBackoff       Duration `json:"retry_backoff"`
		ProbeInterval      Duration `json:"probe_interval"`
	} `json:"sync,omitempty"`

	Log struct {
		FilePath string `json:"file_path"`
	} `json:"log,omitempty"`
}

func parseJSON(jsonFilePath string) (*Config, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg jsonConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &Config{
		Remote: Remote{
			BaseURL:        jsonCfg.Remote.BaseURL,
			ObjectPath:     jsonCfg.Remote.ObjectPath,
			AccessToken:    jsonCfg.Remote.AccessToken,
			RequestTimeout: time.Duration(jsonCfg.Remote.RequestTimeout),
		},
		Storage: Storage{
			DBPath:     jsonCfg.Storage.DBPath,
			Passphrase: jsonCfg.Storage.Passphrase,
		},
		Sync: Sync{
			Debounce:           time.Duration(jsonCfg.Sync.Debounce),
			PeriodicInterval:   time.Duration(jsonCfg.Sync.PeriodicInterval),
			ConflictWindow:     time.Duration(jsonCfg.Sync.ConflictWindow),
			TombstoneRetention: time.Duration(jsonCfg.Sync.TombstoneRetention),
			RetryBudget:        jsonCfg.Sync.RetryBudget,
			RetryBackoff:       time.Duration(jsonCfg.Sync.RetryBackoff),
			ProbeInterval:      time.Duration(jsonCfg.Sync.ProbeInterval),
		},
		Log: Log{
			FilePath: jsonCfg.Log.FilePath,
		},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling
// from strings like "1h", "30s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
