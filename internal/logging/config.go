package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	EnvLogLevel     = "MOTORCTL_LOG_LEVEL"
	EnvLogTimestamp = "MOTORCTL_LOG_TIMESTAMP"
	EnvLogNoColor   = "MOTORCTL_LOG_NOCOLOR"
	EnvLogFile      = "MOTORCTL_LOG_FILE"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config selects level, console rendering and an optional rotated file sink.
type Config struct {
	Level      zerolog.Level
	Timestamp  bool
	NoColor    bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var testOnce sync.Once

func DefaultConfig(profile Profile) Config {
	cfg := Config{
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 7,
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()),
	}
	switch profile {
	case ProfileTest:
		cfg.Level = zerolog.DebugLevel
		cfg.Timestamp = false
	default:
		cfg.Level = zerolog.InfoLevel
		cfg.Timestamp = true
	}
	return cfg
}

// ConfigureTests installs the test profile as the global logger once per
// test binary.
func ConfigureTests() {
	testOnce.Do(func() {
		cfg := DefaultConfig(ProfileTest)
		ApplyEnvOverrides(&cfg)
		logger, _ := Configure(cfg)
		log.Logger = logger
	})
}

// Configure builds a logger for cfg. The returned func closes the file sink.
func Configure(cfg Config) (zerolog.Logger, func() error) {
	console := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		NoColor:    cfg.NoColor,
		TimeFormat: time.RFC3339,
	}
	if !cfg.Timestamp {
		console.PartsExclude = []string{zerolog.TimestampFieldName}
	}

	var out io.Writer = console
	closer := func() error { return nil }
	if path := strings.TrimSpace(cfg.File); path != "" {
		sink := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    max(cfg.MaxSizeMB, 1),
			MaxBackups: max(cfg.MaxBackups, 1),
			MaxAge:     max(cfg.MaxAgeDays, 1),
		}
		out = zerolog.MultiLevelWriter(console, sink)
		closer = sink.Close
	}

	ctx := zerolog.New(out).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger(), closer
}

func ApplyEnvOverrides(cfg *Config) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.File = v
	}
}

func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
