package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/danmuck/serialmux/internal/demux"
	"github.com/danmuck/serialmux/internal/device"
	"github.com/danmuck/serialmux/internal/observability"
	"github.com/danmuck/serialmux/internal/protocol"
	"github.com/danmuck/serialmux/internal/rxbuf"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Snapshot is a point-in-time view of a Service.
type Snapshot struct {
	ID        string                  `json:"id"`
	SessionID string                  `json:"session_id"`
	Device    string                  `json:"device"`
	Framer    string                  `json:"framer"`
	Connected bool                    `json:"connected"`
	Open      [demux.NumChannels]bool `json:"open"`
	Buffered  [demux.NumChannels]int  `json:"buffered"`
	Pending   int                     `json:"pending"`
	Stats     demux.Stats             `json:"stats"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// Opener opens the configured device.
type Opener func(cfg device.Config) (device.Port, error)

type ServiceOption func(*Service)

func WithOpener(open Opener) ServiceOption {
	return func(s *Service) { s.open = open }
}

func WithRegistry(r Registry) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.registry = r
		}
	}
}

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

// Service runs the receive loop of one device: it polls the device through a
// Demux and hands channel data and service messages to a Sink.
type Service struct {
	cfg      ServiceConfig
	sink     Sink
	registry Registry
	open     Opener
	log      zerolog.Logger
	rng      *rand.Rand

	// owned by the Run goroutine
	demux    *demux.Demux
	last     demux.Stats
	readErrs int
	buf      [rxbuf.Capacity]byte

	mu       sync.Mutex
	channels ChannelSet
	drain    ChannelSet
	snap     Snapshot
}

func NewService(cfg ServiceConfig, sink Sink, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, errors.New("bridge: nil sink")
	}
	framer, err := protocol.Lookup(cfg.Protocol)
	if err != nil {
		return nil, err
	}
	channels, err := NewChannelSet(cfg.OpenChannels)
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg:      cfg,
		sink:     sink,
		registry: nopRegistry{},
		open:     device.Open,
		log:      log.With().Str("component", "bridge").Str("id", cfg.ID).Logger(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		channels: channels,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.demux = demux.New(framer, demux.WithLogger(s.log.With().Str("framer", framer.Name()).Logger()))
	s.snap = Snapshot{ID: cfg.ID, Device: cfg.Device.Path, Framer: framer.Name()}
	s.fillOpen(&s.snap)
	return s, nil
}

// Run opens the device and polls it until ctx is done. A device that keeps
// failing is closed, its receive state discarded, and reopened with backoff.
// Run returns nil on cancellation and an error only when opening gives up.
func (s *Service) Run(ctx context.Context) error {
	for {
		port, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		err = s.pump(ctx, port)
		s.teardown(ctx, port)
		if ctx.Err() != nil {
			return nil
		}
		s.log.Warn().Err(err).Msg("bridge.Run reopening device")
	}
}

func (s *Service) connect(ctx context.Context) (device.Port, error) {
	for attempt := 1; ; attempt++ {
		port, err := s.open(s.cfg.Device)
		if err == nil {
			s.startSession(ctx, port)
			return port, nil
		}
		if s.cfg.MaxOpenAttempts > 0 && attempt >= s.cfg.MaxOpenAttempts {
			return nil, fmt.Errorf("%w after %d attempts: %v", ErrOpenAttemptsExhausted, attempt, err)
		}
		delay := NextBackoffDelay(s.cfg.Backoff, attempt, s.rng)
		s.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("bridge.connect open failed")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Service) startSession(ctx context.Context, port device.Port) {
	s.readErrs = 0
	s.last = demux.Stats{}
	s.mu.Lock()
	s.snap.SessionID = uuid.NewString()
	s.snap.Device = port.Path()
	s.snap.Connected = true
	s.snap.UpdatedAt = time.Now()
	snap := s.snap
	s.mu.Unlock()

	s.log.Info().Str("session", snap.SessionID).Str("device", snap.Device).Msg("bridge.connect device open")
	if err := s.registry.Register(ctx, snap); err != nil {
		s.log.Warn().Err(err).Msg("bridge.connect register failed")
	}
}

func (s *Service) teardown(ctx context.Context, port device.Port) {
	if err := port.Close(); err != nil && !errors.Is(err, device.ErrClosed) {
		s.log.Warn().Err(err).Msg("bridge.teardown close failed")
	}
	s.demux.DebugDump("teardown")
	s.demux.Reset()
	s.last = demux.Stats{}

	s.mu.Lock()
	snap := s.snap
	s.snap.Connected = false
	s.snap.Buffered = [demux.NumChannels]int{}
	s.snap.Pending = 0
	s.snap.Stats = demux.Stats{}
	s.snap.UpdatedAt = time.Now()
	s.mu.Unlock()

	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.registry.Unregister(uctx, snap); err != nil {
		s.log.Warn().Err(err).Msg("bridge.teardown unregister failed")
	}
	s.log.Info().Str("session", snap.SessionID).Msg("bridge.teardown session closed")
}

func (s *Service) pump(ctx context.Context, port device.Port) error {
	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	var dump <-chan time.Time
	if s.cfg.DumpInterval > 0 {
		t := time.NewTicker(s.cfg.DumpInterval)
		defer t.Stop()
		dump = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
			if err := s.tick(ctx, port); err != nil {
				return err
			}
		case <-heartbeat.C:
			if err := s.registry.Heartbeat(ctx, s.Snapshot()); err != nil {
				s.log.Warn().Err(err).Msg("bridge.pump heartbeat failed")
			}
		case <-dump:
			s.demux.DebugDump("periodic")
		}
	}
}

// tick runs one Process call and dispatches every notified channel.
func (s *Service) tick(ctx context.Context, port device.Port) error {
	mask := s.demux.Process(port)
	st := s.demux.Stats()
	delta := st.Sub(s.last)
	s.last = st
	observability.RecordDemux(port.Path(), delta)

	s.mu.Lock()
	open, drain := s.channels, s.drain
	s.drain = 0
	s.mu.Unlock()

	for _, ch := range drain.List() {
		s.demux.Drain(ch)
	}
	for _, ch := range mask.Channels() {
		if !open.Has(ch) {
			s.demux.Drain(ch)
			continue
		}
		if ch == protocol.ServiceChannel {
			s.dispatchService(ctx, port.Path())
			continue
		}
		n := s.demux.ReadChannel(ch, s.buf[:])
		if n > 0 {
			s.publish(ctx, port.Path(), Delivery{Channel: ch, Data: s.buf[:n]})
		}
	}
	s.updateSnapshot(st)

	// Bytes returned with a failing read are dispatched before the device
	// is dropped.
	if delta.ReadErrors > 0 {
		s.readErrs++
	} else if delta.Reads > 0 {
		s.readErrs = 0
	}
	if s.cfg.MaxReadErrors > 0 && s.readErrs >= s.cfg.MaxReadErrors {
		return fmt.Errorf("%w: %s: %d consecutive read errors", ErrDeviceFailed, port.Path(), s.readErrs)
	}
	return nil
}

func (s *Service) dispatchService(ctx context.Context, path string) {
	for {
		n, err := s.demux.ReadServiceMessage(s.buf[:])
		// s.buf holds a whole channel buffer, so this only guards a framer
		// reporting a message past the buffered bytes.
		if errors.Is(err, demux.ErrInsufficientDestination) {
			s.log.Warn().Int("buffered", s.demux.Buffered(protocol.ServiceChannel)).
				Msg("bridge.dispatchService oversized message dropped")
			s.demux.Drain(protocol.ServiceChannel)
			return
		}
		if n == 0 {
			return
		}
		s.publish(ctx, path, Delivery{Channel: protocol.ServiceChannel, Service: true, Data: s.buf[:n]})
	}
}

func (s *Service) publish(ctx context.Context, path string, d Delivery) {
	s.mu.Lock()
	d.SessionID = s.snap.SessionID
	d.Framer = s.snap.Framer
	s.mu.Unlock()
	d.At = time.Now()
	err := s.sink.Publish(ctx, d)
	observability.RecordPublish(path, d.Channel, err == nil)
	if err != nil {
		s.log.Warn().Err(err).Int("channel", d.Channel).Msg("bridge.publish failed")
	}
}

func (s *Service) updateSnapshot(st demux.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.snap.Buffered {
		s.snap.Buffered[ch] = s.demux.Buffered(ch)
	}
	s.snap.Pending = s.demux.Pending()
	s.snap.Stats = st
	s.snap.UpdatedAt = time.Now()
}

// SetChannelOpen opens or closes delivery for ch. Data already buffered for a
// closed channel is discarded on the next poll.
func (s *Service) SetChannelOpen(ch int, open bool) error {
	if !protocol.ValidChannel(ch) {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if open {
		s.channels = s.channels.With(ch)
		s.drain = s.drain.Without(ch)
	} else {
		s.channels = s.channels.Without(ch)
		s.drain = s.drain.With(ch)
	}
	s.fillOpen(&s.snap)
	return nil
}

func (s *Service) fillOpen(snap *Snapshot) {
	for ch := range snap.Open {
		snap.Open[ch] = s.channels.Has(ch)
	}
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}
