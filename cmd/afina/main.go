package main

import (
	"encoding/json"
	"net"
	"os"
	"time"

	"github.com/irtery/afina/cmd/afina/config"
	"github.com/irtery/afina/concurrency"
	"github.com/irtery/afina/internal/tag"
	"github.com/irtery/afina/log"
	"github.com/irtery/afina/metrics"
	"github.com/irtery/afina/network"
	"github.com/irtery/afina/recycle"
	"github.com/irtery/afina/storage"
)

// statsInterval is how often the background maintenance task (run
// through the generic worker pool rather than inline in main) logs a
// cache occupancy snapshot.
const statsInterval = 30 * time.Second

func main() {
	conf := loadConfig()
	logger := log.NewLogger(conf.LogLevel, conf.LogDestination)

	if tag.Debug {
		logger.Warn("running a debug build: extra invariant checks enabled, expect lower throughput")
	}

	pool := recycle.NewPool()
	cache := storage.NewLocked(storage.New(conf.CacheMaxBytes))
	stats := metrics.New()

	listener, err := net.Listen("tcp", conf.Addr)
	if err != nil {
		logger.Fatal("listen error: ", err)
	}

	maintenance := concurrency.New(1, 2, 1, conf.IdleTimeout)
	defer maintenance.Stop(true)
	scheduleStatsLogging(maintenance, cache, stats, logger.WithFields(log.Fields{"component": "maintenance"}))

	acceptor := network.NewAcceptorFull(listener, conf.MaxWorkers, pool, cache, logger.WithFields(log.Fields{"component": "acceptor"}), conf.ReadTimeout, stats)
	logger.Infof("listening on %s", conf.Addr)
	logger.Fatal("serve error: ", acceptor.Run())
}

// scheduleStatsLogging submits one stats-logging task to executor
// every statsInterval, for as long as the process runs. Each tick is
// its own task rather than a long-lived loop holding a worker, so the
// pool's watermark accounting stays meaningful.
func scheduleStatsLogging(executor *concurrency.Executor, cache *storage.Locked, stats *metrics.Server, logger log.Logger) {
	ticker := time.NewTicker(statsInterval)
	go func() {
		for range ticker.C {
			executor.Submit(func() {
				stats.UsedBytes.Update(float64(cache.UsedBytes()))
				stats.CacheEvicts.Clear()
				stats.CacheEvicts.Inc(cache.Evictions())
				logger.Debugf("cache occupancy: %v bytes used, %v evictions", cache.UsedBytes(), cache.Evictions())
			})
		}
	}()
}

// loadConfig parses command flags, reads the config file if any, and
// returns the merged, fully parsed configuration.
func loadConfig() config.Parsed {
	l := log.NewLogger(log.DebugLevel, os.Stderr)

	flg := parseFlags()
	fileConf := config.Default()
	if flg.ConfigPath != "" {
		data, err := os.ReadFile(flg.ConfigPath)
		if err != nil {
			l.Fatal("config file read error: ", err)
		}
		if err := json.Unmarshal(data, fileConf); err != nil {
			l.Fatal("config parse error: ", err)
		}
	}
	config.Merge(fileConf, &flg.Config)

	parsed, err := config.Parse(*fileConf)
	if err != nil {
		l.Fatal("config error: ", err)
	}
	return parsed
}
