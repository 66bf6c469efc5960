package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/serialmux/internal/bridge"
)

type daemonConfig struct {
	Service       bridge.ServiceConfig
	StatusAddr    string
	AdminToken    string
	CorsOrigins   []string
	NATSURL       string
	SubjectPrefix string
	RedisAddr     string
	RedisDB       int
}

type fileConfig struct {
	ID                string      `toml:"id"`
	Device            string      `toml:"device"`
	Baud              int         `toml:"baud"`
	Protocol          string      `toml:"protocol"`
	PollInterval      string      `toml:"poll_interval"`
	HeartbeatInterval string      `toml:"heartbeat_interval"`
	DumpInterval      string      `toml:"dump_interval"`
	OpenChannels      []int       `toml:"open_channels"`
	MaxReadErrors     int         `toml:"max_read_errors"`
	MaxOpenAttempts   int         `toml:"max_open_attempts"`
	StatusAddr        string      `toml:"status_addr"`
	AdminToken        string      `toml:"admin_token"`
	CorsOrigins       []string    `toml:"cors_origins"`
	NATSURL           string      `toml:"nats_url"`
	SubjectPrefix     string      `toml:"subject_prefix"`
	RedisAddr         string      `toml:"redis_addr"`
	RedisDB           int         `toml:"redis_db"`
	Backoff           fileBackoff `toml:"backoff"`
}

type fileBackoff struct {
	Initial    string  `toml:"initial"`
	Max        string  `toml:"max"`
	Multiplier float64 `toml:"multiplier"`
	Jitter     bool    `toml:"jitter"`
}

func defaultDaemonConfig() daemonConfig {
	return daemonConfig{
		Service:       bridge.DefaultServiceConfig(),
		StatusAddr:    "127.0.0.1:7020",
		SubjectPrefix: "serialmux",
	}
}

func loadDaemonConfig(path string) (daemonConfig, error) {
	cfg := defaultDaemonConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return daemonConfig{}, fmt.Errorf("load serialmuxd config: %w", err)
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.Service.ID = id
		}
	}
	if meta.IsDefined("device") {
		cfg.Service.Device.Path = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("baud") {
		cfg.Service.Device.Baud = raw.Baud
	}
	if meta.IsDefined("protocol") {
		cfg.Service.Protocol = strings.TrimSpace(raw.Protocol)
	}
	if meta.IsDefined("poll_interval") {
		if cfg.Service.PollInterval, err = parseDuration("poll_interval", raw.PollInterval); err != nil {
			return daemonConfig{}, err
		}
	}
	if meta.IsDefined("heartbeat_interval") {
		if cfg.Service.HeartbeatInterval, err = parseDuration("heartbeat_interval", raw.HeartbeatInterval); err != nil {
			return daemonConfig{}, err
		}
	}
	if meta.IsDefined("dump_interval") {
		if cfg.Service.DumpInterval, err = parseDuration("dump_interval", raw.DumpInterval); err != nil {
			return daemonConfig{}, err
		}
	}
	if meta.IsDefined("open_channels") {
		cfg.Service.OpenChannels = append([]int{}, raw.OpenChannels...)
	}
	if meta.IsDefined("max_read_errors") {
		cfg.Service.MaxReadErrors = raw.MaxReadErrors
	}
	if meta.IsDefined("max_open_attempts") {
		cfg.Service.MaxOpenAttempts = raw.MaxOpenAttempts
	}

	if meta.IsDefined("backoff", "initial") {
		if cfg.Service.Backoff.InitialDelay, err = parseDuration("backoff.initial", raw.Backoff.Initial); err != nil {
			return daemonConfig{}, err
		}
	}
	if meta.IsDefined("backoff", "max") {
		if cfg.Service.Backoff.MaxDelay, err = parseDuration("backoff.max", raw.Backoff.Max); err != nil {
			return daemonConfig{}, err
		}
	}
	if meta.IsDefined("backoff", "multiplier") {
		cfg.Service.Backoff.Multiplier = raw.Backoff.Multiplier
	}
	if meta.IsDefined("backoff", "jitter") {
		cfg.Service.Backoff.Jitter = raw.Backoff.Jitter
	}

	if meta.IsDefined("status_addr") {
		cfg.StatusAddr = strings.TrimSpace(raw.StatusAddr)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("nats_url") {
		cfg.NATSURL = strings.TrimSpace(raw.NATSURL)
	}
	if meta.IsDefined("subject_prefix") {
		cfg.SubjectPrefix = strings.TrimSpace(raw.SubjectPrefix)
	}
	if meta.IsDefined("redis_addr") {
		cfg.RedisAddr = strings.TrimSpace(raw.RedisAddr)
	}
	if meta.IsDefined("redis_db") {
		cfg.RedisDB = raw.RedisDB
	}

	if err := cfg.Service.Validate(); err != nil {
		return daemonConfig{}, fmt.Errorf("serialmuxd config: %w", err)
	}
	return cfg, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
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
