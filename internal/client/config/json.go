package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/mealkeeper/internal/flagx"
	"github.com/dmitrijs2005/mealkeeper/internal/timex"
)

type JsonConfig struct {
	ServerURL      string         `json:"server_url"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	MaxWaiters     int            `json:"max_waiters"`
	DeviceTag      string         `json:"device_tag"`
}

func parseJson(config *Config, args []string) {
	path := flagx.JsonConfigPath(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.ServerURL != "" {
		config.ServerURL = c.ServerURL
	}
	if c.RequestTimeout.Duration > 0 {
		config.RequestTimeout = c.RequestTimeout.Duration
	}
	if c.MaxWaiters > 0 {
		config.MaxWaiters = c.MaxWaiters
	}
	if c.DeviceTag != "" {
		config.DeviceTag = c.DeviceTag
	}
}
