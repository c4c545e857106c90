package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/motorctl/internal/logging"
	"github.com/danmuck/motorctl/internal/motor"
	"github.com/danmuck/motorctl/internal/protocol/session"
)

var ErrInvalid = errors.New("config: invalid")

// Transport kinds.
const (
	TransportSocketCAN = "socketcan"
	TransportSim       = "sim"
)

type TransportConfig struct {
	Kind      string
	Interface string
	// Source is our own bus id.
	Source uint8
}

// Config is everything a motorctl process needs.
type Config struct {
	Session      motor.Config
	Transport    TransportConfig
	Log          logging.Config
	StatusListen string
	// SimGain is the raw integral gain register the simulated actuator holds.
	SimGain float32
}

type fileConfig struct {
	ID              int     `toml:"id"`
	Source          int     `toml:"source"`
	ControlMode     int     `toml:"control_mode"`
	Velocity        float64 `toml:"velocity"`
	CommandPeriod   string  `toml:"command_period"`
	TelemetryPeriod string  `toml:"telemetry_period"`
	NoReplyBackoff  string  `toml:"no_reply_backoff"`
	ReplyTimeout    string  `toml:"reply_timeout"`
	StopAckTimeout  string  `toml:"stop_ack_timeout"`
	Gain            float64 `toml:"gain"`

	Transport struct {
		Kind      string `toml:"kind"`
		Interface string `toml:"interface"`
	} `toml:"transport"`

	Log struct {
		Level      string `toml:"level"`
		File       string `toml:"file"`
		MaxSizeMB  int    `toml:"max_size_mb"`
		MaxBackups int    `toml:"max_backups"`
	} `toml:"log"`

	Status struct {
		Listen string `toml:"listen"`
	} `toml:"status"`
}

func Default() Config {
	return Config{
		Session:   motor.DefaultConfig(),
		Transport: TransportConfig{Kind: TransportSocketCAN, Interface: "can0"},
		Log:       logging.DefaultConfig(logging.ProfileRuntime),
		SimGain:   -0.25,
	}
}

// Load overlays the keys present in path onto Default. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q in %s", ErrInvalid, undecoded[0].String(), path)
	}

	if meta.IsDefined("id") {
		id, err := busID("id", raw.ID)
		if err != nil {
			return Config{}, err
		}
		cfg.Session.Channel.Address = id
	}
	if meta.IsDefined("source") {
		src, err := busID("source", raw.Source)
		if err != nil {
			return Config{}, err
		}
		cfg.Transport.Source = src
	}
	if meta.IsDefined("control_mode") {
		if raw.ControlMode < -128 || raw.ControlMode > 127 {
			return Config{}, fmt.Errorf("%w: control_mode %d out of int8 range", ErrInvalid, raw.ControlMode)
		}
		cfg.Session.ControlMode = int8(raw.ControlMode)
	}
	if meta.IsDefined("velocity") {
		cfg.Session.Velocity = float32(raw.Velocity)
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"command_period", raw.CommandPeriod, &cfg.Session.CommandPeriod},
		{"telemetry_period", raw.TelemetryPeriod, &cfg.Session.TelemetryPeriod},
		{"reply_timeout", raw.ReplyTimeout, &cfg.Session.Channel.ReplyTimeout},
		{"stop_ack_timeout", raw.StopAckTimeout, &cfg.Session.StopAckTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	if meta.IsDefined("no_reply_backoff") {
		v, err := time.ParseDuration(strings.TrimSpace(raw.NoReplyBackoff))
		if err != nil {
			return Config{}, fmt.Errorf("parse no_reply_backoff: %w", err)
		}
		cfg.Session.NoReplyBackoff = session.ConstantBackoff(v)
	}
	if meta.IsDefined("gain") {
		cfg.SimGain = float32(raw.Gain)
	}

	if meta.IsDefined("transport", "kind") {
		cfg.Transport.Kind = strings.ToLower(strings.TrimSpace(raw.Transport.Kind))
	}
	if meta.IsDefined("transport", "interface") {
		cfg.Transport.Interface = strings.TrimSpace(raw.Transport.Interface)
	}

	if meta.IsDefined("log", "level") {
		level, ok := logging.ParseLevel(raw.Log.Level)
		if !ok {
			return Config{}, fmt.Errorf("%w: log level %q", ErrInvalid, raw.Log.Level)
		}
		cfg.Log.Level = level
	}
	if meta.IsDefined("log", "file") {
		cfg.Log.File = strings.TrimSpace(raw.Log.File)
	}
	if meta.IsDefined("log", "max_size_mb") {
		cfg.Log.MaxSizeMB = raw.Log.MaxSizeMB
	}
	if meta.IsDefined("log", "max_backups") {
		cfg.Log.MaxBackups = raw.Log.MaxBackups
	}
	if meta.IsDefined("status", "listen") {
		cfg.StatusListen = strings.TrimSpace(raw.Status.Listen)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := c.Session.Validate(); err != nil {
		return err
	}
	switch c.Transport.Kind {
	case TransportSim:
	case TransportSocketCAN:
		if c.Transport.Interface == "" {
			return fmt.Errorf("%w: socketcan transport requires an interface", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown transport kind %q", ErrInvalid, c.Transport.Kind)
	}
	if c.Transport.Source > session.MaxAddress {
		return fmt.Errorf("%w: source %d exceeds %d", ErrInvalid, c.Transport.Source, session.MaxAddress)
	}
	return nil
}

func busID(key string, v int) (uint8, error) {
	if v < 0 || v > session.MaxAddress {
		return 0, fmt.Errorf("%w: %s %d outside 0..%d", ErrInvalid, key, v, session.MaxAddress)
	}
	return uint8(v), nil
}
