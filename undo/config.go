package undo

import (
	"math"

	"github.com/BurntSushi/toml"

	"github.com/xuenqlve/binlog-undo/binlog"
	"github.com/xuenqlve/binlog-undo/errors"
	"github.com/xuenqlve/binlog-undo/log"
	"github.com/xuenqlve/binlog-undo/transform"
)

// Config carries everything the command front end feeds the processor.
type Config struct {
	Input        string `mapstructure:"input" yaml:"input" toml:"input"`
	Output       string `mapstructure:"output" yaml:"output" toml:"output"`
	StartPos     int64  `mapstructure:"start-pos" yaml:"start-pos" toml:"start-pos"`
	ServerID     uint32 `mapstructure:"server-id" yaml:"server-id" toml:"server-id"`
	MaxEventSize string `mapstructure:"max-event-size" yaml:"max-event-size" toml:"max-event-size"`
	Quiet        bool   `mapstructure:"quiet" yaml:"quiet" toml:"quiet"`
	LogLevel     string `mapstructure:"log-level" yaml:"log-level" toml:"log-level"`
	LogPath      string `mapstructure:"log-path" yaml:"log-path" toml:"log-path"`
}

// DefaultConfig caps events at 64 mebibytes and leaves origin server ids
// untouched.
func DefaultConfig() Config {
	return Config{
		ServerID:     math.MaxUint32,
		MaxEventSize: "64MB",
		LogLevel:     log.InfoLevel,
	}
}

// LoadFile overlays a TOML config file onto c.
func (c *Config) LoadFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (c *Config) Check() (bool, error) {
	if c.Input == "" || c.Output == "" {
		return false, errors.New("input and output files must be configured")
	}
	if c.StartPos < binlog.FileHeaderSize {
		return false, errors.Errorf("start-pos %d is inside the file header", c.StartPos)
	}
	if _, err := transform.ParseBytes(c.MaxEventSize); err != nil {
		return false, errors.Trace(err)
	}
	return true, nil
}

// MaxEventSizeMB converts the configured max event size to whole
// mebibytes, rounding tiny values up to one.
func (c *Config) MaxEventSizeMB() (int, error) {
	b, err := transform.ParseBytes(c.MaxEventSize)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if b < transform.MB {
		b = transform.MB
	}
	return int(b / transform.MB), nil
}
