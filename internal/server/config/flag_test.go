package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{
				"-a", "127.0.0.1:9090", "-m", "memory", "-d", "db", "-k", "redis://r:6379/0",
				"-s", "secret", "-t", "15", "-r", "10080", "-i", "5", "-o", "http://a,http://b",
				"-l", "3", "-secure",
			},
			expected: &Config{
				EndpointAddr:                 "127.0.0.1:9090",
				StorageDriver:                "memory",
				DatabaseDSN:                  "db",
				RedisURL:                     "redis://r:6379/0",
				SecretKey:                    "secret",
				AccessTokenValidityDuration:  15 * time.Minute,
				RefreshTokenValidityDuration: 7 * 24 * time.Hour,
				PurgeInterval:                5 * time.Minute,
				CookieSecure:                 true,
				AllowOrigins:                 "http://a,http://b",
				LoginRateLimit:               3,
			},
		},
		{
			name: "foreign flags are ignored",
			args: []string{"-c", "cfg.json", "-a", ":1"},
			expected: func() *Config {
				c := &Config{}
				c.LoadDefaults()
				c.EndpointAddr = ":1"
				return c
			}(),
		},
		{
			name:        "non-numeric duration panics",
			args:        []string{"-t", "soon"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			config.LoadDefaults()

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config, tt.args) })
				return
			}
			require.NotPanics(t, func() { parseFlags(config, tt.args) })
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}

func TestParseFlags_KeepsSubMinuteDurationsWithoutFlags(t *testing.T) {
	config := &Config{}
	config.LoadDefaults()
	config.AccessTokenValidityDuration = 90 * time.Second
	config.PurgeInterval = 30 * time.Second

	parseFlags(config, []string{"-a", ":1"})

	assert.Equal(t, 90*time.Second, config.AccessTokenValidityDuration)
	assert.Equal(t, 30*time.Second, config.PurgeInterval)
	assert.Equal(t, 7*24*time.Hour, config.RefreshTokenValidityDuration)

	parseFlags(config, []string{"-i", "0"})
	assert.Zero(t, config.PurgeInterval)
	assert.Equal(t, 90*time.Second, config.AccessTokenValidityDuration)
}
