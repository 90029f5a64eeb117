// Package config loads runtime configuration for the mealkeeper CLI client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the server API
//	-t int      per-request timeout (seconds)
//	-w int      maximum number of requests waiting on one token refresh
//	-n string   device tag sent with login and refresh
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:3001",
//	  "request_timeout": "10s",
//	  "max_waiters": 64,
//	  "device_tag": "laptop"
//	}
package config
