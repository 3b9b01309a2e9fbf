package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	GPS     GPSConfig     `yaml:"gps"`
	UDP     UDPConfig     `yaml:"udp"`
	Web     WebConfig     `yaml:"web"`
	Log     LogConfig     `yaml:"log"`
	Console ConsoleConfig `yaml:"console"`
	Record  RecordConfig  `yaml:"record"`
	Replay  ReplayConfig  `yaml:"replay"`
}

type GPSConfig struct {
	Enable bool `yaml:"enable"`

	// Source is "nmea" (serial tty), "gpsd", "tcp" or "sim".
	Source string `yaml:"source"`
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
	Addr   string `yaml:"addr"`

	BufferSize int  `yaml:"buffer_size"`
	Strict     bool `yaml:"strict"`

	Sim SimConfig `yaml:"sim"`
}

// SimConfig shapes the synthetic receiver used when gps.source is "sim".
type SimConfig struct {
	CenterLatDeg float64       `yaml:"center_lat_deg"`
	CenterLonDeg float64       `yaml:"center_lon_deg"`
	AltMeters    float64       `yaml:"alt_meters"`
	GroundKt     float64       `yaml:"ground_kt"`
	RadiusNm     float64       `yaml:"radius_nm"`
	Period       time.Duration `yaml:"period"`
	Interval     time.Duration `yaml:"interval"`
}

type UDPConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type ConsoleConfig struct {
	Enable bool `yaml:"enable"`
	// TimeFormat is a strftime pattern.
	TimeFormat string `yaml:"time_format"`
	// Grid adds a grid reference: "", "utm" or "mgrs".
	Grid string `yaml:"grid"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type ReplayConfig struct {
	Enable bool    `yaml:"enable"`
	Path   string  `yaml:"path"`
	Speed  float64 `yaml:"speed"`
	Loop   bool    `yaml:"loop"`
}

const (
	DefaultListen     = ":8080"
	DefaultTimeFormat = "%Y-%m-%dT%H:%M:%SZ"
	maxBufferSize     = 64 * 1024
)

var validBauds = map[int]bool{4800: true, 9600: true, 19200: true, 38400: true, 57600: true, 115200: true, 230400: true}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg := Config{GPS: GPSConfig{Enable: true}}
	if err := cfg.Normalize(); err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML, applies defaults and validates. Unknown fields are
// rejected so that typos do not silently fall back to defaults.
func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		var te *yaml.TypeError
		if errors.As(err, &te) {
			msgs := make([]string, 0, len(te.Errors))
			for _, e := range te.Errors {
				// Drop yaml's "line N: " prefix.
				if _, rest, ok := strings.Cut(e, ": "); ok && strings.HasPrefix(e, "line ") {
					e = rest
				}
				msgs = append(msgs, e)
			}
			return Config{}, fmt.Errorf("config contains unknown fields: %s", strings.Join(msgs, "; "))
		}
		return Config{}, err
	}
	if err := cfg.Normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize fills defaults and validates. Call it again after overriding
// fields, e.g. from command-line flags.
func (cfg *Config) Normalize() error {
	g := &cfg.GPS
	g.Source = strings.ToLower(strings.TrimSpace(g.Source))
	if g.Source == "" {
		g.Source = "nmea"
	}
	g.Device = strings.TrimSpace(g.Device)
	g.Addr = strings.TrimSpace(g.Addr)
	switch g.Source {
	case "nmea":
		if g.Baud == 0 {
			g.Baud = 9600
		}
		if !validBauds[g.Baud] {
			return fmt.Errorf("gps.baud %d is not supported", g.Baud)
		}
	case "gpsd":
	case "tcp":
		if g.Addr == "" {
			return fmt.Errorf("gps.addr is required when gps.source is 'tcp'")
		}
	case "sim":
		if g.Sim.CenterLatDeg < -89 || g.Sim.CenterLatDeg > 89 {
			return fmt.Errorf("gps.sim.center_lat_deg must be within ±89")
		}
		if g.Sim.CenterLonDeg < -180 || g.Sim.CenterLonDeg > 180 {
			return fmt.Errorf("gps.sim.center_lon_deg must be within ±180")
		}
		if g.Sim.Interval == 0 {
			g.Sim.Interval = time.Second
		}
		if g.Sim.Interval < 0 || g.Sim.Period < 0 {
			return fmt.Errorf("gps.sim.interval and gps.sim.period must not be negative")
		}
	default:
		return fmt.Errorf("gps.source must be one of nmea, gpsd, tcp, sim (got %q)", g.Source)
	}
	if g.BufferSize < 0 || g.BufferSize > maxBufferSize {
		return fmt.Errorf("gps.buffer_size must be between 0 and %d", maxBufferSize)
	}

	if cfg.UDP.Enable && strings.TrimSpace(cfg.UDP.Dest) == "" {
		return fmt.Errorf("udp.dest is required when udp.enable is true")
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = DefaultListen
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	switch cfg.Log.Level {
	case "":
		cfg.Log.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error (got %q)", cfg.Log.Level)
	}

	if cfg.Console.TimeFormat == "" {
		cfg.Console.TimeFormat = DefaultTimeFormat
	}
	cfg.Console.Grid = strings.ToLower(strings.TrimSpace(cfg.Console.Grid))
	switch cfg.Console.Grid {
	case "", "utm", "mgrs":
	default:
		return fmt.Errorf("console.grid must be one of utm, mgrs (got %q)", cfg.Console.Grid)
	}

	if cfg.Record.Enable && cfg.Record.Path == "" {
		return fmt.Errorf("record.path is required when record.enable is true")
	}

	if cfg.Replay.Enable {
		if cfg.Replay.Path == "" {
			return fmt.Errorf("replay.path is required when replay.enable is true")
		}
		if cfg.Replay.Speed == 0 {
			cfg.Replay.Speed = 1
		}
		if cfg.Replay.Speed < 0 {
			return fmt.Errorf("replay.speed must be > 0")
		}
	}

	if cfg.Record.Enable && cfg.Replay.Enable {
		return fmt.Errorf("record and replay cannot both be enabled")
	}
	return nil
}
