// Package serial adapts host serial ports to the link registry.
package serial

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tarm/serial"
)

// Config selects which device nodes are probed and how they are opened.
type Config struct {
	Baud        int
	ReadTimeout time.Duration
	Patterns    []string
	Exclude     []string
}

func DefaultConfig() Config {
	return Config{
		Baud:        9600,
		ReadTimeout: 100 * time.Millisecond,
		Patterns:    DefaultPatterns(runtime.GOOS),
	}
}

// DefaultPatterns returns device globs for goos. Windows has no device
// directory, so COM1..COM32 are listed literally and probed by opening.
func DefaultPatterns(goos string) []string {
	switch goos {
	case "windows":
		out := make([]string, 0, 32)
		for i := 1; i <= 32; i++ {
			out = append(out, fmt.Sprintf("COM%d", i))
		}
		return out
	case "darwin":
		return []string{"/dev/cu.usbserial*", "/dev/cu.usbmodem*", "/dev/cu.SLAB*"}
	default:
		return []string{"/dev/ttyUSB*", "/dev/ttyACM*"}
	}
}

// Ports lists and opens serial ports via github.com/tarm/serial.
type Ports struct {
	cfg  Config
	glob func(pattern string) ([]string, error)
	open func(c *serial.Config) (io.ReadWriteCloser, error)
}

func NewPorts(cfg Config) *Ports {
	if cfg.Baud <= 0 {
		cfg.Baud = DefaultConfig().Baud
	}
	if len(cfg.Patterns) == 0 {
		cfg.Patterns = DefaultPatterns(runtime.GOOS)
	}
	return &Ports{cfg: cfg, glob: filepath.Glob, open: openTarm}
}

// List expands every pattern. Patterns without glob metacharacters are
// returned as-is.
func (p *Ports) List() ([]string, error) {
	seen := make(map[string]struct{})
	for _, pattern := range p.cfg.Patterns {
		if !strings.ContainsAny(pattern, "*?[") {
			seen[pattern] = struct{}{}
			continue
		}
		matches, err := p.glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("serial: bad pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			seen[m] = struct{}{}
		}
	}
	for _, ex := range p.cfg.Exclude {
		delete(seen, ex)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (p *Ports) Open(name string) (io.ReadWriteCloser, error) {
	rwc, err := p.open(&serial.Config{
		Name:        name,
		Baud:        p.cfg.Baud,
		Parity:      serial.ParityNone,
		ReadTimeout: p.cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", name, err)
	}
	log.Debug().Str("port", name).Int("baud", p.cfg.Baud).Msg("serial port opened")
	return rwc, nil
}

func openTarm(c *serial.Config) (io.ReadWriteCloser, error) {
	sp, err := serial.OpenPort(c)
	if err != nil {
		return nil, err
	}
	if err := sp.Flush(); err != nil {
		_ = sp.Close()
		return nil, err
	}
	return port{sp}, nil
}

// port reports read timeouts as (0, nil). tarm/serial surfaces an expired
// VTIME read as io.EOF with no data.
type port struct {
	io.ReadWriteCloser
}

func (p port) Read(b []byte) (int, error) {
	n, err := p.ReadWriteCloser.Read(b)
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}
