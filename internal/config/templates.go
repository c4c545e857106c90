package config

import (
	"fmt"
	"os"
)

// Template returns a commented starter config.
func Template() string {
	return configTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(configTemplate), 0o600)
}

const configTemplate = `# actuator bus id and our own id on the bus
id = 1
source = 0

# 16 = sinusoidal velocity control
control_mode = 16
velocity = 0.0

command_period = "20ms"
telemetry_period = "500ms"
no_reply_backoff = "500ms"
reply_timeout = "100ms"
stop_ack_timeout = "1s"

# raw integral gain held by the simulated actuator
gain = -0.25

[transport]
kind = "socketcan"   # socketcan | sim
interface = "can0"

[log]
level = "info"
file = ""
max_size_mb = 10
max_backups = 3

[status]
listen = ""          # e.g. "127.0.0.1:9180"
`
