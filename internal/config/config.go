package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/serialmux/internal/device"
	"github.com/danmuck/serialmux/internal/protocol"
	_ "github.com/danmuck/serialmux/internal/protocol/formats"
	"github.com/pelletier/go-toml/v2"
)

var (
	ErrMissingID       = errors.New("config: missing id")
	ErrMissingDevice   = errors.New("config: missing device")
	ErrUnsupportedBaud = errors.New("config: unsupported baud")
	ErrInvalidChannel  = errors.New("config: channel out of range")
	ErrInvalidDuration = errors.New("config: invalid duration")
	ErrInvalidLimit    = errors.New("config: invalid limit")
)

// DaemonConfig mirrors the serialmuxd config file. Durations are Go duration
// strings; empty means "use the default".
type DaemonConfig struct {
	ID                string        `toml:"id"`
	Device            string        `toml:"device"`
	Baud              int           `toml:"baud"`
	Protocol          string        `toml:"protocol"`
	PollInterval      string        `toml:"poll_interval"`
	HeartbeatInterval string        `toml:"heartbeat_interval"`
	DumpInterval      string        `toml:"dump_interval"`
	OpenChannels      []int         `toml:"open_channels"`
	MaxReadErrors     int           `toml:"max_read_errors"`
	MaxOpenAttempts   int           `toml:"max_open_attempts"`
	StatusAddr        string        `toml:"status_addr"`
	AdminToken        string        `toml:"admin_token"`
	CorsOrigins       []string      `toml:"cors_origins"`
	NATSURL           string        `toml:"nats_url"`
	SubjectPrefix     string        `toml:"subject_prefix"`
	RedisAddr         string        `toml:"redis_addr"`
	RedisDB           int           `toml:"redis_db"`
	Backoff           BackoffConfig `toml:"backoff"`
}

type BackoffConfig struct {
	Initial    string  `toml:"initial"`
	Max        string  `toml:"max"`
	Multiplier float64 `toml:"multiplier"`
	Jitter     *bool   `toml:"jitter"`
}

// LoadDaemonConfig decodes path strictly (unknown keys are errors) and
// validates the result.
func LoadDaemonConfig(path string) (DaemonConfig, error) {
	var cfg DaemonConfig
	if err := loadToml(path, &cfg); err != nil {
		return DaemonConfig{}, err
	}
	if err := ValidateDaemonConfig(cfg); err != nil {
		return DaemonConfig{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			keys := make([]string, 0, len(strict.Errors))
			for _, e := range strict.Errors {
				keys = append(keys, strings.Join(e.Key(), "."))
			}
			return fmt.Errorf("config parse failed (%s): unknown keys %s", path, strings.Join(keys, ", "))
		}
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateDaemonConfig(cfg DaemonConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(cfg.Device) == "" {
		return ErrMissingDevice
	}
	if cfg.Baud != 0 && !device.SupportedBaud(cfg.Baud) {
		return fmt.Errorf("%w: %d", ErrUnsupportedBaud, cfg.Baud)
	}
	if cfg.Protocol != "" {
		if _, err := protocol.Lookup(cfg.Protocol); err != nil {
			return err
		}
	}
	for _, ch := range cfg.OpenChannels {
		if !protocol.ValidChannel(ch) {
			return fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
		}
	}
	for key, value := range map[string]string{
		"poll_interval":      cfg.PollInterval,
		"heartbeat_interval": cfg.HeartbeatInterval,
		"backoff.initial":    cfg.Backoff.Initial,
		"backoff.max":        cfg.Backoff.Max,
	} {
		if err := positiveDuration(key, value); err != nil {
			return err
		}
	}
	if cfg.DumpInterval != "" {
		if d, err := time.ParseDuration(cfg.DumpInterval); err != nil || d < 0 {
			return fmt.Errorf("%w: dump_interval=%q", ErrInvalidDuration, cfg.DumpInterval)
		}
	}
	if cfg.MaxReadErrors < 0 || cfg.MaxOpenAttempts < 0 || cfg.RedisDB < 0 {
		return fmt.Errorf("%w: negative value", ErrInvalidLimit)
	}
	if cfg.Backoff.Multiplier != 0 && cfg.Backoff.Multiplier < 1 {
		return fmt.Errorf("%w: backoff.multiplier=%v", ErrInvalidLimit, cfg.Backoff.Multiplier)
	}
	return nil
}

func positiveDuration(key, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fmt.Errorf("%w: %s=%q", ErrInvalidDuration, key, value)
	}
	return nil
}
