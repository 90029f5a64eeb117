package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the CLI client.
type Config struct {
	ServerURL      string
	RequestTimeout time.Duration
	MaxWaiters     int
	DeviceTag      string
}

func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:3001"
	c.RequestTimeout = 10 * time.Second
	c.MaxWaiters = 64
	c.DeviceTag = "cli"
}

// LoadConfig applies defaults, then the JSON file, then flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, os.Args[1:])
	parseFlags(cfg, os.Args[1:])
	return cfg
}
