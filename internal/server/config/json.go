package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/mealkeeper/internal/flagx"
	"github.com/dmitrijs2005/mealkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration. Durations
// accept "15m"-style strings or integer nanoseconds. Absent keys leave the
// corresponding Config field untouched.
type JsonConfig struct {
	EndpointAddr                 string         `json:"endpoint_addr"`
	StorageDriver                string         `json:"storage_driver"`
	DatabaseDSN                  string         `json:"database_dsn"`
	RedisURL                     string         `json:"redis_url"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	PurgeInterval                timex.Duration `json:"purge_interval"`
	CookieSecure                 *bool          `json:"cookie_secure"`
	AllowOrigins                 string         `json:"allow_origins"`
	LoginRateLimit               int            `json:"login_rate_limit"`
}

// parseJson overlays config with the JSON file named by -c/-config in args.
// Nothing happens when no file is given. An unreadable file or invalid JSON
// panics: the server must not start on a half-read configuration.
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

	setString(&config.EndpointAddr, c.EndpointAddr)
	setString(&config.StorageDriver, c.StorageDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.RedisURL, c.RedisURL)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.AllowOrigins, c.AllowOrigins)

	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration > 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.PurgeInterval.Duration > 0 {
		config.PurgeInterval = c.PurgeInterval.Duration
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	if c.LoginRateLimit > 0 {
		config.LoginRateLimit = c.LoginRateLimit
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
