package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "serialmuxd", "iwrap":
		return iwrapTemplate, nil
	case "edge":
		return edgeTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const iwrapTemplate = `id = "serialmux.local"
device = "/dev/ttyS1"
baud = 115200
protocol = "iwrap"
poll_interval = "10ms"
heartbeat_interval = "5s"
open_channels = [0, 1, 2, 3, 4, 5, 6, 7]
max_read_errors = 8
status_addr = "127.0.0.1:7020"
cors_origins = ["http://localhost:3000"]
# admin_token = "change-me"

# nats_url = "nats://127.0.0.1:4222"
# subject_prefix = "serialmux"
# redis_addr = "127.0.0.1:6379"

[backoff]
initial = "250ms"
max = "5s"
multiplier = 2.0
jitter = true
`

const edgeTemplate = `id = "serialmux.edge"
device = "/dev/ttyUSB0"
baud = 921600
protocol = "edge"
poll_interval = "2ms"
heartbeat_interval = "5s"
dump_interval = "1m"
open_channels = [0, 1, 2, 3]
max_read_errors = 8
status_addr = "127.0.0.1:7021"
admin_token = "change-me"
nats_url = "nats://127.0.0.1:4222"
subject_prefix = "serialmux"
redis_addr = "127.0.0.1:6379"
redis_db = 0

[backoff]
initial = "100ms"
max = "2s"
multiplier = 2.0
jitter = true
`
