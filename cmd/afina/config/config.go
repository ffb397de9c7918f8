// Package config parses the JSON config file and command line flags
// cmd/afina accepts, and merges them into the strongly typed values
// the server needs. Merge rule: a config file value overrides a
// default, a command line value overrides either.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/facebookgo/stackerr"

	"github.com/irtery/afina/internal/util"
	"github.com/irtery/afina/log"
)

// MaxCacheSize bounds the cache-size flag, mirroring the sanity cap
// the teacher places on its own max-item-size flag.
const MaxCacheSize = 1 << 40

// Config is the JSON-serializable, CLI-overridable shape. String
// fields that encode a size or duration ("64m", "5s") are parsed into
// Parsed by Parse.
type Config struct {
	Port           int    `json:"port,omitempty"`
	Host           string `json:"host,omitempty"`
	LogDestination string `json:"log-destination,omitempty"` // stdout, stderr, or a file path.
	LogLevel       string `json:"log-level,omitempty"`
	// Size values: 10g, 128m, 1024k, 1000000b.
	CacheSize     string `json:"cache-size,omitempty"`
	LowWatermark  int    `json:"low-watermark,omitempty"`
	HighWatermark int    `json:"high-watermark,omitempty"`
	MaxQueue      int    `json:"max-queue,omitempty"`
	IdleTimeout   string `json:"idle-timeout,omitempty"`
	MaxWorkers    int    `json:"max-workers,omitempty"`
	ReadTimeout   string `json:"read-timeout,omitempty"`
}

func Default() *Config {
	return &Config{
		Port:           11211,
		Host:           "",
		LogDestination: "stderr",
		LogLevel:       "info",
		CacheSize:      "64m",
		LowWatermark:   4,
		HighWatermark:  64,
		MaxQueue:       256,
		IdleTimeout:    "60s",
		MaxWorkers:     1024,
		ReadTimeout:    "5s",
	}
}

// Parsed is the config the server actually runs with.
type Parsed struct {
	Addr           string
	LogDestination io.Writer
	LogLevel       log.Level
	CacheMaxBytes  int64
	LowWatermark   int
	HighWatermark  int
	MaxQueue       int
	IdleTimeout    time.Duration
	MaxWorkers     int
	ReadTimeout    time.Duration
}

func Parse(conf Config) (p Parsed, err error) {
	p.LogDestination, err = logDestination(conf.LogDestination)
	if err != nil {
		return p, stackerr.Newf("log destination open error: %v", err)
	}
	p.CacheMaxBytes, err = parseSize(conf.CacheSize)
	if err != nil {
		return p, stackerr.Newf("cache size parse error: %v", err)
	}
	if p.CacheMaxBytes > MaxCacheSize {
		return p, stackerr.Newf("too large cache size")
	}
	p.LogLevel, err = log.LevelFromString(conf.LogLevel)
	if err != nil {
		return p, stackerr.Newf("log level parse error: %v", err)
	}
	p.IdleTimeout, err = time.ParseDuration(conf.IdleTimeout)
	if err != nil {
		return p, stackerr.Newf("idle timeout parse error: %v", err)
	}
	p.ReadTimeout, err = time.ParseDuration(conf.ReadTimeout)
	if err != nil {
		return p, stackerr.Newf("read timeout parse error: %v", err)
	}
	if conf.HighWatermark < conf.LowWatermark {
		return p, stackerr.Newf("high-watermark must be >= low-watermark")
	}
	p.LowWatermark = conf.LowWatermark
	p.HighWatermark = conf.HighWatermark
	p.MaxQueue = conf.MaxQueue
	p.MaxWorkers = conf.MaxWorkers
	p.Addr = net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port))
	return p, nil
}

// Merge overwrites every field of def for which override holds a
// non-zero value, in place on def.
func Merge(def, override *Config) {
	defVal := reflect.ValueOf(def).Elem()
	overrideVal := reflect.ValueOf(override).Elem()
	for i, end := 0, defVal.NumField(); i < end; i++ {
		field := overrideVal.Field(i)
		if !util.IsZeroVal(field) {
			defVal.Field(i).Set(field)
		}
	}
}

func Marshal(conf *Config) []byte {
	data, err := json.Marshal(conf)
	if err != nil {
		panic(err)
	}
	return data
}

func parseSize(s string) (size int64, err error) {
	if len(s) < 2 {
		return 0, errors.New("invalid size format")
	}
	sep := len(s) - 1
	sizeStr, exponentStr := s[:sep], s[sep:]
	var exponent uint32
	switch strings.ToLower(exponentStr) {
	case "b":
		exponent = 0
	case "k":
		exponent = 10
	case "m":
		exponent = 20
	case "g":
		exponent = 30
	default:
		return 0, errors.New("invalid exponent: only 'b', 'k', 'm', 'g' allowed")
	}
	size, err = strconv.ParseInt(sizeStr, 10, 31)
	if err != nil {
		return 0, fmt.Errorf("size parse error: %s", err)
	}
	size <<= exponent
	return size, nil
}

func logDestination(dest string) (w io.Writer, err error) {
	switch strings.ToLower(dest) {
	case "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		w, err = os.OpenFile(dest, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	}
	return
}
