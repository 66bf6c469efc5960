package bridge

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/serialmux/internal/protocol"
	"github.com/danmuck/serialmux/internal/testutil/testlog"
)

func TestDefaultServiceConfigIsValid(t *testing.T) {
	testlog.Start(t)
	if err := DefaultServiceConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestServiceConfigValidateRejects(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name   string
		mutate func(*ServiceConfig)
		want   error
	}{
		{"id", func(c *ServiceConfig) { c.ID = " " }, ErrMissingID},
		{"device", func(c *ServiceConfig) { c.Device.Path = "" }, ErrMissingDevice},
		{"protocol", func(c *ServiceConfig) { c.Protocol = "xmodem" }, protocol.ErrUnknownFramer},
		{"poll", func(c *ServiceConfig) { c.PollInterval = 0 }, ErrInvalidPollInterval},
		{"heartbeat", func(c *ServiceConfig) { c.HeartbeatInterval = -time.Second }, ErrInvalidHeartbeatInterval},
		{"channel", func(c *ServiceConfig) { c.OpenChannels = []int{1, 8} }, ErrInvalidChannel},
	}
	for _, tc := range cases {
		cfg := DefaultServiceConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestChannelSet(t *testing.T) {
	testlog.Start(t)
	s, err := NewChannelSet([]int{0, 3, 3, 7})
	if err != nil {
		t.Fatalf("new channel set: %v", err)
	}
	if got := s.List(); len(got) != 3 || got[0] != 0 || got[1] != 3 || got[2] != 7 {
		t.Fatalf("list got=%v", got)
	}
	s = s.Without(3).With(5)
	if s.Has(3) || !s.Has(5) {
		t.Fatalf("with/without got=%08b", s)
	}
	if s.Has(-1) || s.Has(8) {
		t.Fatalf("out of range channel reported as member")
	}
	if len(AllChannels.List()) != protocol.NumChannels {
		t.Fatalf("all channels got=%v", AllChannels.List())
	}
	if _, err := NewChannelSet([]int{-1}); !errors.Is(err, ErrInvalidChannel) {
		t.Fatalf("expected ErrInvalidChannel, got %v", err)
	}
}
