package config

import (
	"os"

	"github.com/danmuck/boatlink/internal/logging"
	"github.com/danmuck/boatlink/internal/protocol/session"
	"github.com/danmuck/boatlink/internal/serial"
)

// Session maps the protocol and serial sections onto link settings.
func (c Config) Session() session.Config {
	s := session.DefaultConfig()
	s.Version = c.Protocol.Version
	s.BaudRate = c.Serial.Baud
	s.ReadTimeout = c.Serial.ReadTimeout
	s.MaxAttempts = c.Protocol.MaxAttempts
	s.ReplyDelay = c.Protocol.ReplyDelay
	s.FailureThreshold = c.Protocol.FailureThreshold
	s.MonitorInterval = c.Protocol.MonitorInterval
	s.MaxFrameBytes = c.Protocol.MaxFrameBytes
	s.Backoff.InitialDelay = c.Gateway.DiscoverInterval
	s.Backoff.MaxDelay = c.Gateway.DiscoverMaxInterval
	return s
}

func (c Config) SerialPorts() serial.Config {
	return serial.Config{
		Baud:        c.Serial.Baud,
		ReadTimeout: c.Serial.ReadTimeout,
		Patterns:    c.Serial.Patterns,
		Exclude:     c.Serial.Exclude,
	}
}

// Logging returns the runtime logging profile with file settings applied.
// Environment overrides still win.
func (c Config) Logging() logging.Config {
	out := logging.DefaultConfig(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(c.Log.Level); ok {
		out.Level = lvl
	}
	out.JSON = c.Log.JSON
	out.Out = os.Stderr
	logging.ApplyEnvOverrides(&out)
	return out
}
