package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete relay configuration.
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Sync   SyncSettings   `hcl:"sync,block"`
	Rooms  []RoomConfig   `hcl:"room,block"`
}

// ServerSettings contains process-level configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// SyncSettings bounds the adaptive polling interval used by in-process
// pollers and advertised to clients.
type SyncSettings struct {
	PollMinMs int `hcl:"poll_min_ms,optional"`
	PollMaxMs int `hcl:"poll_max_ms,optional"`
}

// RoomConfig defines one hosted game room.
type RoomConfig struct {
	Name       string `hcl:"name,label"`
	Bet        int    `hcl:"bet"`
	Difficulty string `hcl:"difficulty,optional"`
	FirstLead  string `hcl:"first_lead,optional"`
	TiePolicy  string `hcl:"tie_policy,optional"`
	ThinkMs    int    `hcl:"think_ms,optional"`
	Seed       int64  `hcl:"seed,optional"`
}

// DefaultConfig returns the configuration used when no file is present: one
// room against a medium bot.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Sync: SyncSettings{
			PollMinMs: 250,
			PollMaxMs: 5000,
		},
		Rooms: []RoomConfig{
			{
				Name:       "main",
				Bet:        100,
				Difficulty: "medium",
				FirstLead:  "A",
				TiePolicy:  "lower_sum",
				ThinkMs:    800,
			},
		},
	}
}

// LoadConfig loads configuration from an HCL file, falling back to defaults
// when the file does not exist.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	config := DefaultConfig()
	config.Rooms = nil
	diags = gohcl.DecodeBody(file.Body, nil, config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode configuration: %s", diags.Error())
	}
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Address == "" {
		config.Server.Address = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if config.Sync.PollMinMs == 0 {
		config.Sync.PollMinMs = 250
	}
	if config.Sync.PollMaxMs == 0 {
		config.Sync.PollMaxMs = 5000
	}
	for i := range config.Rooms {
		room := &config.Rooms[i]
		if room.Difficulty == "" {
			room.Difficulty = "medium"
		}
		if room.FirstLead == "" {
			room.FirstLead = "A"
		}
		if room.TiePolicy == "" {
			room.TiePolicy = "lower_sum"
		}
		if room.ThinkMs == 0 {
			room.ThinkMs = 800
		}
	}
}
