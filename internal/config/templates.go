package config

import (
	"fmt"
	"os"
)

// Template returns a commented starter config.
func Template() string {
	return boatlinkTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(boatlinkTemplate), 0o600)
}

const boatlinkTemplate = `# boatlink configuration

[serial]
baud = 9600
read_timeout = "100ms"
# Globs are expanded on every discovery pass.
patterns = ["/dev/ttyUSB*", "/dev/ttyACM*"]
exclude = []

[protocol]
version = "0.1.0"
max_attempts = 10
reply_delay = "200ms"
failure_threshold = 10
monitor_interval = "200ms"
max_frame_bytes = 1048576

[gateway]
name = "boatlink"
addr = "127.0.0.1:9400"
cors_origins = ["http://localhost:1420"]
# Bearer token required on POST routes; empty leaves them open.
# BOATLINK_GATEWAY_TOKEN overrides it.
token = ""
discover_interval = "1s"
discover_max_interval = "30s"

[store]
path = "boatlink.db"

[tiles]
# MBTiles file served at /api/v1/tiles/{z}/{x}/{y}; empty disables it.
path = ""

[log]
level = "info"
json = false
`
