package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/irtery/afina/cmd/afina/config"
)

type flags struct {
	ConfigPath string
	config.Config
}

const usageHeader = `
Config values merge rules:
1) config file value overrides default
2) command line value overrides any
Options:
`

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprint(os.Stderr, usageHeader)
		flag.PrintDefaults()
	}
}

func parseFlags() flags {
	var f flags
	def := config.Default()

	flag.StringVar(&f.ConfigPath, "config", "", "path to json config")
	flag.StringVar(&f.Host, "host", "", fmt.Sprintf("host address to bind (default %q)", def.Host))
	flag.IntVar(&f.Port, "port", 0, fmt.Sprintf("port num (default %v)", def.Port))
	flag.StringVar(&f.LogDestination, "log-destination", "", fmt.Sprintf("log destination: stderr, stdout, or file path (default %q)", def.LogDestination))
	flag.StringVar(&f.LogLevel, "log-level", "", fmt.Sprintf("log level: debug, info, warn, error, fatal (default %q)", def.LogLevel))
	flag.StringVar(&f.CacheSize, "cache-size", "", fmt.Sprintf("cache size budget: 2g, 64m (default %q)", def.CacheSize))
	flag.IntVar(&f.LowWatermark, "low-watermark", 0, fmt.Sprintf("worker pool low watermark (default %v)", def.LowWatermark))
	flag.IntVar(&f.HighWatermark, "high-watermark", 0, fmt.Sprintf("worker pool high watermark (default %v)", def.HighWatermark))
	flag.IntVar(&f.MaxQueue, "max-queue", 0, fmt.Sprintf("worker pool max queued tasks (default %v)", def.MaxQueue))
	flag.StringVar(&f.IdleTimeout, "idle-timeout", "", fmt.Sprintf("worker pool idle timeout (default %q)", def.IdleTimeout))
	flag.IntVar(&f.MaxWorkers, "max-workers", 0, fmt.Sprintf("max concurrently served connections (default %v)", def.MaxWorkers))
	flag.StringVar(&f.ReadTimeout, "read-timeout", "", fmt.Sprintf("per-connection idle read timeout (default %q)", def.ReadTimeout))
	flag.Parse()
	return f
}
