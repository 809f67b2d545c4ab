package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/boatlink/internal/logging"
	"github.com/danmuck/boatlink/internal/protocol"
	"github.com/danmuck/boatlink/internal/serial"
)

// EnvGatewayToken overrides gateway.token so the secret can stay out of the
// file.
const EnvGatewayToken = "BOATLINK_GATEWAY_TOKEN"

type Config struct {
	Serial   SerialConfig
	Protocol ProtocolConfig
	Gateway  GatewayConfig
	Store    StoreConfig
	Tiles    TilesConfig
	Log      LogConfig
}

type SerialConfig struct {
	Baud        int
	ReadTimeout time.Duration
	Patterns    []string
	Exclude     []string
}

type ProtocolConfig struct {
	Version          string
	MaxAttempts      int
	ReplyDelay       time.Duration
	FailureThreshold int
	MonitorInterval  time.Duration
	MaxFrameBytes    uint64
}

type GatewayConfig struct {
	Name                string
	Addr                string
	CorsOrigins         []string
	Token               string
	DiscoverInterval    time.Duration
	DiscoverMaxInterval time.Duration
}

type StoreConfig struct {
	Path string
}

// TilesConfig points at an MBTiles base map; an empty path disables the tile
// route.
type TilesConfig struct {
	Path string
}

type LogConfig struct {
	Level string
	JSON  bool
}

func Default() Config {
	return Config{
		Serial: SerialConfig{
			Baud:        9600,
			ReadTimeout: 100 * time.Millisecond,
			Patterns:    serial.DefaultPatterns(runtime.GOOS),
		},
		Protocol: ProtocolConfig{
			Version:          protocol.Version,
			MaxAttempts:      10,
			ReplyDelay:       200 * time.Millisecond,
			FailureThreshold: 10,
			MonitorInterval:  200 * time.Millisecond,
			MaxFrameBytes:    1 << 20,
		},
		Gateway: GatewayConfig{
			Name:                "boatlink",
			Addr:                "127.0.0.1:9400",
			CorsOrigins:         []string{"http://localhost:1420"},
			DiscoverInterval:    time.Second,
			DiscoverMaxInterval: 30 * time.Second,
		},
		Store: StoreConfig{Path: "boatlink.db"},
		Log:   LogConfig{Level: "info"},
	}
}

type fileConfig struct {
	Serial struct {
		Baud        int      `toml:"baud"`
		ReadTimeout string   `toml:"read_timeout"`
		Patterns    []string `toml:"patterns"`
		Exclude     []string `toml:"exclude"`
	} `toml:"serial"`
	Protocol struct {
		Version          string `toml:"version"`
		MaxAttempts      int    `toml:"max_attempts"`
		ReplyDelay       string `toml:"reply_delay"`
		FailureThreshold int    `toml:"failure_threshold"`
		MonitorInterval  string `toml:"monitor_interval"`
		MaxFrameBytes    int64  `toml:"max_frame_bytes"`
	} `toml:"protocol"`
	Gateway struct {
		Name                string   `toml:"name"`
		Addr                string   `toml:"addr"`
		CorsOrigins         []string `toml:"cors_origins"`
		Token               string   `toml:"token"`
		DiscoverInterval    string   `toml:"discover_interval"`
		DiscoverMaxInterval string   `toml:"discover_max_interval"`
	} `toml:"gateway"`
	Store struct {
		Path string `toml:"path"`
	} `toml:"store"`
	Tiles struct {
		Path string `toml:"path"`
	} `toml:"tiles"`
	Log struct {
		Level string `toml:"level"`
		JSON  bool   `toml:"json"`
	} `toml:"log"`
}

// Load reads a TOML file over Default. Keys absent from the file keep their
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	durations := []struct {
		key []string
		raw string
		dst *time.Duration
	}{
		{[]string{"serial", "read_timeout"}, raw.Serial.ReadTimeout, &cfg.Serial.ReadTimeout},
		{[]string{"protocol", "reply_delay"}, raw.Protocol.ReplyDelay, &cfg.Protocol.ReplyDelay},
		{[]string{"protocol", "monitor_interval"}, raw.Protocol.MonitorInterval, &cfg.Protocol.MonitorInterval},
		{[]string{"gateway", "discover_interval"}, raw.Gateway.DiscoverInterval, &cfg.Gateway.DiscoverInterval},
		{[]string{"gateway", "discover_max_interval"}, raw.Gateway.DiscoverMaxInterval, &cfg.Gateway.DiscoverMaxInterval},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", strings.Join(d.key, "."), err)
		}
		*d.dst = v
	}

	if meta.IsDefined("serial", "baud") {
		cfg.Serial.Baud = raw.Serial.Baud
	}
	if meta.IsDefined("serial", "patterns") {
		cfg.Serial.Patterns = normalizeList(raw.Serial.Patterns)
	}
	if meta.IsDefined("serial", "exclude") {
		cfg.Serial.Exclude = normalizeList(raw.Serial.Exclude)
	}

	if meta.IsDefined("protocol", "version") {
		cfg.Protocol.Version = strings.TrimSpace(raw.Protocol.Version)
	}
	if meta.IsDefined("protocol", "max_attempts") {
		cfg.Protocol.MaxAttempts = raw.Protocol.MaxAttempts
	}
	if meta.IsDefined("protocol", "failure_threshold") {
		cfg.Protocol.FailureThreshold = raw.Protocol.FailureThreshold
	}
	if meta.IsDefined("protocol", "max_frame_bytes") {
		if raw.Protocol.MaxFrameBytes <= 0 {
			return Config{}, fmt.Errorf("protocol.max_frame_bytes must be positive")
		}
		cfg.Protocol.MaxFrameBytes = uint64(raw.Protocol.MaxFrameBytes)
	}

	if meta.IsDefined("gateway", "name") {
		cfg.Gateway.Name = strings.TrimSpace(raw.Gateway.Name)
	}
	if meta.IsDefined("gateway", "addr") {
		cfg.Gateway.Addr = strings.TrimSpace(raw.Gateway.Addr)
	}
	if meta.IsDefined("gateway", "cors_origins") {
		cfg.Gateway.CorsOrigins = normalizeList(raw.Gateway.CorsOrigins)
	}
	if meta.IsDefined("gateway", "token") {
		cfg.Gateway.Token = strings.TrimSpace(raw.Gateway.Token)
	}
	if token := strings.TrimSpace(os.Getenv(EnvGatewayToken)); token != "" {
		cfg.Gateway.Token = token
	}

	if meta.IsDefined("store", "path") {
		cfg.Store.Path = strings.TrimSpace(raw.Store.Path)
	}
	if meta.IsDefined("tiles", "path") {
		cfg.Tiles.Path = strings.TrimSpace(raw.Tiles.Path)
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "json") {
		cfg.Log.JSON = raw.Log.JSON
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive")
	}
	if c.Serial.ReadTimeout <= 0 {
		return fmt.Errorf("serial.read_timeout must be positive")
	}
	if len(c.Serial.Patterns) == 0 {
		return fmt.Errorf("serial.patterns must not be empty")
	}
	if strings.TrimSpace(c.Protocol.Version) == "" {
		return fmt.Errorf("protocol.version is required")
	}
	if c.Protocol.MaxAttempts <= 0 {
		return fmt.Errorf("protocol.max_attempts must be positive")
	}
	if c.Protocol.ReplyDelay < 0 {
		return fmt.Errorf("protocol.reply_delay must not be negative")
	}
	if c.Protocol.FailureThreshold < 0 {
		return fmt.Errorf("protocol.failure_threshold must not be negative")
	}
	if c.Protocol.MonitorInterval <= 0 {
		return fmt.Errorf("protocol.monitor_interval must be positive")
	}
	if strings.TrimSpace(c.Gateway.Addr) == "" {
		return fmt.Errorf("gateway.addr is required")
	}
	if c.Gateway.DiscoverInterval <= 0 {
		return fmt.Errorf("gateway.discover_interval must be positive")
	}
	if c.Gateway.DiscoverMaxInterval < c.Gateway.DiscoverInterval {
		return fmt.Errorf("gateway.discover_max_interval must be >= discover_interval")
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("log.level %q is not a known level", c.Log.Level)
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
