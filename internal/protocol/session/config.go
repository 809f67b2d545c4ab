package session

import (
	"time"

	"github.com/danmuck/boatlink/internal/protocol"
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines link timing and retry defaults.
type Config struct {
	Version          string
	BaudRate         int
	ReadTimeout      time.Duration
	ReadChunk        int
	MaxFrameBytes    uint64
	MaxAttempts      int
	ReplyDelay       time.Duration
	FailureThreshold int
	MonitorInterval  time.Duration
	Backoff          BackoffConfig
}

// DefaultConfig returns the serial link defaults: 9600 baud, 100ms reads,
// 10 attempts spaced 200ms apart.
func DefaultConfig() Config {
	return Config{
		Version:          protocol.Version,
		BaudRate:         9600,
		ReadTimeout:      100 * time.Millisecond,
		ReadChunk:        1024,
		MaxFrameBytes:    1 << 20,
		MaxAttempts:      10,
		ReplyDelay:       200 * time.Millisecond,
		FailureThreshold: 10,
		MonitorInterval:  200 * time.Millisecond,
		Backoff: BackoffConfig{
			InitialDelay: time.Second,
			Multiplier:   2.0,
			MaxDelay:     30 * time.Second,
			Jitter:       true,
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.ReadChunk <= 0 {
		c.ReadChunk = d.ReadChunk
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.MaxFrameBytes == 0 {
		c.MaxFrameBytes = d.MaxFrameBytes
	}
	return c
}
