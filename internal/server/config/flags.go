package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/mealkeeper/internal/flagx"
)

var serverFlags = []string{"-a", "-m", "-d", "-k", "-s", "-t", "-r", "-i", "-o", "-l", "-secure"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g., ":3001")
//	-m string   storage driver: postgres | memory
//	-d string   PostgreSQL DSN
//	-k string   Redis URL for the refresh token store (empty = use SQL store)
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-i int      expired token purge interval, minutes (0 disables)
//	-o string   comma-separated CORS origins
//	-l int      login/register requests per minute per IP
//	-secure     mark the refresh cookie Secure
//
// args are filtered through flagx.FilterArgs first so -c/-config and flags
// owned by other layers do not collide.
func parseFlags(config *Config, args []string) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.StorageDriver, "m", config.StorageDriver, "storage driver (postgres|memory)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisURL, "k", config.RedisURL, "redis URL for refresh tokens")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidity := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")
	purgeInterval := fs.Int("i", int(config.PurgeInterval.Minutes()), "expired token purge interval (in minutes)")

	fs.StringVar(&config.AllowOrigins, "o", config.AllowOrigins, "CORS allowed origins")
	fs.IntVar(&config.LoginRateLimit, "l", config.LoginRateLimit, "login requests per minute per IP")
	fs.BoolVar(&config.CookieSecure, "secure", config.CookieSecure, "secure refresh cookie")

	if err := fs.Parse(flagx.FilterArgs(args, serverFlags)); err != nil {
		panic(err)
	}

	// minute flags only override durations they were given for, so a
	// sub-minute value from the JSON file survives
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidity) * time.Minute
		case "i":
			config.PurgeInterval = time.Duration(*purgeInterval) * time.Minute
		}
	})
}
