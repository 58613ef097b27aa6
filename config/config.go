package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// TransportConfig holds the playback parameters handed to the engine at
// start. Out-of-range values are clamped by the engine, not here.
type TransportConfig struct {
	TempoBPM      float64 `json:"tempoBpm"`
	Swing         float64 `json:"swing"`
	PatternLength int     `json:"patternLength"`
	ClockSource   string  `json:"clockSource"` // "internal" or "external"
}

// MIDIConfig names the ports the transport talks to. Empty names mean
// the feature is disabled.
type MIDIConfig struct {
	ClockInPort    string `json:"clockInPort,omitempty"`
	TriggerOutPort string `json:"triggerOutPort,omitempty"`
	TriggerNote    uint8  `json:"triggerNote,omitempty"`
	TriggerChannel uint8  `json:"triggerChannel,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Transport TransportConfig `json:"transport"`
	MIDI      MIDIConfig      `json:"midi,omitempty"`
	Click     bool            `json:"click,omitempty"`
	DebugLog  bool            `json:"debugLog,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Transport: TransportConfig{
			TempoBPM:      120,
			Swing:         0,
			PatternLength: 16,
			ClockSource:   "internal",
		},
		MIDI: MIDIConfig{
			TriggerNote:    60, // C4
			TriggerChannel: 1,
		},
	}
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-pulse", "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
