package config

import (
	"flag"
	"os"
	"time"

	"github.com/layerforge/layerforge/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the backend server
//	-f string   local state database file
//	-b string   broadcast directory for duplicate detection
//	-i int      revalidate interval in seconds
//
// The function filters os.Args to only the flags it recognizes, avoiding
// collisions with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-f", "-b", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerBaseURL, "a", cfg.ServerBaseURL, "base URL of the backend server")
	fs.StringVar(&cfg.DatabaseFile, "f", cfg.DatabaseFile, "local state database file")
	fs.StringVar(&cfg.BroadcastDir, "b", cfg.BroadcastDir, "broadcast directory")
	revalidateInterval := fs.Int("i", int(cfg.RevalidateInterval.Seconds()), "revalidate interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RevalidateInterval = time.Duration(*revalidateInterval) * time.Second
}
