// Package config holds scenario configuration and environment overrides as
// explicit structs built once at startup and passed down every
// constructor, rather than a package-level mutable singleton (aistore's
// own cmn.GCO being exactly the pattern this deliberately avoids).
package config

import (
	"os"

	"github.com/nginfra/movici-simulation-core-sub002/timeline"
)

// Storage selects where the update-data broker mirrors payloads.
type Storage string

const (
	StorageAPI  Storage = "api"
	StorageDisk Storage = "disk"
)

// Env is the set of recognized MOVICI_* environment variables.
type Env struct {
	LogLevel   string
	LogFormat  string
	DataDir    string
	StorageDir string
	TempDir    string
	Storage    Storage
}

func EnvFromOS() Env {
	e := Env{
		LogLevel:   os.Getenv("MOVICI_LOG_LEVEL"),
		LogFormat:  os.Getenv("MOVICI_LOG_FORMAT"),
		DataDir:    os.Getenv("MOVICI_DATA_DIR"),
		StorageDir: os.Getenv("MOVICI_STORAGE_DIR"),
		TempDir:    os.Getenv("MOVICI_TEMP_DIR"),
		Storage:    Storage(os.Getenv("MOVICI_STORAGE")),
	}
	if e.Storage == "" {
		e.Storage = StorageAPI
	}
	return e
}

// ModelSpec is one entry of the scenario's "models" array.
type ModelSpec struct {
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Extra  map[string]any `json:"-"`
}

// DatasetSpec is one entry of the scenario's "datasets" array, forwarded to
// the init-data server.
type DatasetSpec struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// SimulationInfo is the scenario's "simulation_info" object.
type SimulationInfo struct {
	Mode         string  `json:"mode"`
	StartTime    int64   `json:"start_time"`
	TimeScale    float64 `json:"time_scale"`
	ReferenceTime float64 `json:"reference_time"`
	Duration     int64   `json:"duration"`
}

func (s SimulationInfo) ToTimelineInfo() timeline.Info {
	return timeline.Info{
		Reference: s.ReferenceTime,
		TimeScale: s.TimeScale,
		Start:     s.StartTime,
		End:       s.StartTime + s.Duration,
	}
}

// Scenario is the full scenario JSON document the supervisor loads to
// drive a run.
type Scenario struct {
	SimulationInfo SimulationInfo `json:"simulation_info"`
	Models         []ModelSpec    `json:"models"`
	Services       []string       `json:"services,omitempty"`
	Datasets       []DatasetSpec  `json:"datasets,omitempty"`
}
