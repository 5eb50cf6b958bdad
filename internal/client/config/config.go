// Package config handles configuration for the LayerForge CLI client,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the client.
//
// Fields:
//   - ServerBaseURL: base URL of the LayerForge backend.
//   - DatabaseFile: path of the local sqlite state store.
//   - BroadcastDir: directory where concurrent instances exchange
//     duplicate-detection datagrams.
//   - RevalidateInterval: how often the held session token is re-checked
//     against the server.
//   - LoginWaitTimeout: how long a pending sign-in may take before the
//     attempt is abandoned with an error.
type Config struct {
	ServerBaseURL      string
	DatabaseFile       string
	BroadcastDir       string
	RevalidateInterval time.Duration
	LoginWaitTimeout   time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8080"
	c.DatabaseFile = "layerforge.db"
	c.BroadcastDir = ""
	c.RevalidateInterval = 3 * time.Second
	c.LoginWaitTimeout = 45 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
