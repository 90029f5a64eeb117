package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/mealkeeper/internal/flagx"
)

var clientFlags = []string{"-a", "-t", "-w", "-n"}

func parseFlags(config *Config, args []string) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ServerURL, "a", config.ServerURL, "server base URL")
	timeout := fs.Int("t", int(config.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.IntVar(&config.MaxWaiters, "w", config.MaxWaiters, "max requests waiting on a token refresh")
	fs.StringVar(&config.DeviceTag, "n", config.DeviceTag, "device tag")

	if err := fs.Parse(flagx.FilterArgs(args, clientFlags)); err != nil {
		panic(err)
	}

	config.RequestTimeout = time.Duration(*timeout) * time.Second
}
