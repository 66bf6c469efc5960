package bridge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/serialmux/internal/device"
	"github.com/danmuck/serialmux/internal/protocol"
	_ "github.com/danmuck/serialmux/internal/protocol/formats"
)

var (
	ErrInvalidPollInterval      = errors.New("bridge: invalid poll interval")
	ErrInvalidHeartbeatInterval = errors.New("bridge: invalid heartbeat interval")
	ErrInvalidChannel           = errors.New("bridge: invalid channel")
	ErrMissingDevice            = errors.New("bridge: missing device path")
	ErrMissingID                = errors.New("bridge: missing id")
	ErrDeviceFailed             = errors.New("bridge: device failed")
	ErrOpenAttemptsExhausted    = errors.New("bridge: device open attempts exhausted")
)

// ServiceConfig configures one device receive loop.
type ServiceConfig struct {
	ID                string
	Device            device.Config
	Protocol          string
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	DumpInterval      time.Duration
	OpenChannels      []int
	MaxReadErrors     int
	MaxOpenAttempts   int
	Backoff           BackoffConfig
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ID:                "serialmux.local",
		Device:            device.Config{Path: "/dev/ttyS1", Baud: 115200},
		Protocol:          "iwrap",
		PollInterval:      10 * time.Millisecond,
		HeartbeatInterval: 5 * time.Second,
		OpenChannels:      AllChannels.List(),
		MaxReadErrors:     8,
		Backoff:           DefaultBackoffConfig(),
	}
}

func (c ServiceConfig) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(c.Device.Path) == "" {
		return ErrMissingDevice
	}
	if _, err := protocol.Lookup(c.Protocol); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPollInterval, c.PollInterval)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidHeartbeatInterval, c.HeartbeatInterval)
	}
	if _, err := NewChannelSet(c.OpenChannels); err != nil {
		return err
	}
	return nil
}
