package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/layerforge/layerforge/internal/flagx"
	"github.com/layerforge/layerforge/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations
// accept strings like "3s" or integer nanoseconds.
type JsonConfig struct {
	ServerBaseURL      string         `json:"server_base_url"`
	DatabaseFile       string         `json:"database_file"`
	BroadcastDir       string         `json:"broadcast_dir"`
	RevalidateInterval timex.Duration `json:"revalidate_interval"`
	LoginWaitTimeout   timex.Duration `json:"login_wait_timeout"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// the -c/-config flags. Missing file path means no JSON is loaded.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerBaseURL != "" {
		cfg.ServerBaseURL = jc.ServerBaseURL
	}
	if jc.DatabaseFile != "" {
		cfg.DatabaseFile = jc.DatabaseFile
	}
	if jc.BroadcastDir != "" {
		cfg.BroadcastDir = jc.BroadcastDir
	}
	if jc.RevalidateInterval.Duration != 0 {
		cfg.RevalidateInterval = time.Duration(jc.RevalidateInterval.Duration)
	}
	if jc.LoginWaitTimeout.Duration != 0 {
		cfg.LoginWaitTimeout = time.Duration(jc.LoginWaitTimeout.Duration)
	}
}
