package demux

import (
	"errors"
	"fmt"

	"github.com/danmuck/serialmux/internal/device"
	"github.com/danmuck/serialmux/internal/protocol"
	"github.com/danmuck/serialmux/internal/rxbuf"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NumChannels is the number of channel buffers; channel 0 is the service
// channel.
const NumChannels = protocol.NumChannels

// ErrInsufficientDestination is returned by ReadServiceMessage when the next
// complete message does not fit the destination. The message stays queued.
var ErrInsufficientDestination = errors.New("demux: destination too small for service message")

// Device is the non-blocking byte source read by Process. A read with no data
// available returns device.ErrWouldBlock.
type Device interface {
	Read(p []byte) (int, error)
}

// Demux is the receive state of one session: a device buffer holding bytes
// not yet parsed and one buffer per channel holding routed payload.
type Demux struct {
	framer protocol.Framer
	log    zerolog.Logger

	device   rxbuf.Buffer
	channels [NumChannels]rxbuf.Buffer
	stats    Stats
}

type Option func(*Demux)

func WithLogger(l zerolog.Logger) Option {
	return func(d *Demux) { d.log = l }
}

func New(f protocol.Framer, opts ...Option) *Demux {
	d := &Demux{
		framer: f,
		log:    log.With().Str("component", "demux").Str("framer", f.Name()).Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Demux) Framer() protocol.Framer { return d.framer }

// Process issues one non-blocking read from dev, then routes every complete
// packet in the device buffer to its channel. Partial packets stay buffered
// for the next call. A nil dev only drains what is already buffered.
func (d *Demux) Process(dev Device) NotifyMask {
	var mask NotifyMask
	if dev != nil {
		d.fill(dev)
	}

	for !d.device.Empty() {
		buf := d.device.Bytes()
		start, end := d.framer.FindNextPacket(buf)
		if start > 0 {
			d.device.EraseFront(start)
			d.stats.GarbageBytes += uint64(start)
		}
		if start == end {
			if d.device.Free() == 0 {
				// A full buffer with no packet at its head can never complete.
				d.device.EraseFront(1)
				d.stats.GarbageBytes++
				continue
			}
			break
		}
		d.route(buf[start:end], &mask)
		d.device.EraseFront(end - start)
	}
	d.device.Compact()

	return mask
}

func (d *Demux) fill(dev Device) {
	d.device.Compact()
	tail := d.device.Tail()
	if len(tail) == 0 {
		return
	}
	n, err := dev.Read(tail)
	d.stats.Reads++
	if n > 0 {
		d.device.Commit(n)
		d.stats.BytesRead += uint64(n)
	}
	if err != nil && !device.IsTransient(err) {
		d.stats.ReadErrors++
		d.log.Warn().Err(err).Int("read", n).Msg("demux.Process device read failed")
	}
}

func (d *Demux) route(pkt []byte, mask *NotifyMask) {
	ch := d.framer.ChannelOf(pkt)
	if !protocol.ValidChannel(ch) {
		d.stats.RejectedPackets++
		d.stats.RejectedBytes += uint64(len(pkt))
		d.log.Warn().Int("channel", ch).Int("bytes", len(pkt)).Msg("demux.Process packet for unknown channel dropped")
		return
	}
	ps, pe := d.framer.PayloadOf(pkt)
	payload := pkt[ps:pe]

	d.stats.Packets++
	d.stats.FramingBytes += uint64(len(pkt) - len(payload))
	d.stats.PayloadBytes += uint64(len(payload))
	mask.set(ch)
	d.deliver(ch, payload)
}

// deliver appends payload to a channel buffer. When it does not fit, the
// channel's previous content is dropped in favor of the new payload.
func (d *Demux) deliver(ch int, payload []byte) {
	buf := &d.channels[ch]
	cs := &d.stats.Channels[ch]
	cs.Packets++
	cs.PayloadBytes += uint64(len(payload))

	if buf.Free() < len(payload) {
		cs.Overflows++
		cs.DroppedBytes += uint64(buf.Len())
		buf.Clear()
		if excess := len(payload) - buf.Cap(); excess > 0 {
			cs.DroppedBytes += uint64(excess)
			payload = payload[excess:]
		}
		d.log.Debug().Int("channel", ch).Uint64("overflows", cs.Overflows).Msg("demux.Process channel overflow")
	} else if buf.TailRoom() < len(payload) {
		buf.Compact()
	}
	buf.AppendUnchecked(payload)
}

// ReadChannel moves up to len(dst) of the oldest bytes of channel ch into dst.
// It never blocks and never fails; an unknown channel reads 0 bytes.
func (d *Demux) ReadChannel(ch int, dst []byte) int {
	if !protocol.ValidChannel(ch) {
		return 0
	}
	buf := &d.channels[ch]
	n := copy(dst, buf.Bytes())
	buf.EraseFront(n)
	return n
}

// ReadServiceMessage moves one complete service message into dst and returns
// its length. It returns 0 when no complete message is buffered, and
// ErrInsufficientDestination, leaving the message queued, when dst is too
// short.
func (d *Demux) ReadServiceMessage(dst []byte) (int, error) {
	buf := &d.channels[protocol.ServiceChannel]
	if buf.Empty() {
		return 0, nil
	}
	b := buf.Bytes()
	start, end := d.framer.FindNextMessage(b)
	n := end - start
	if n <= 0 {
		return 0, nil
	}
	if n > len(dst) {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrInsufficientDestination, n, len(dst))
	}
	copy(dst, b[start:end])
	buf.EraseFront(end)
	return n, nil
}

// Drain drops everything buffered for channel ch.
func (d *Demux) Drain(ch int) {
	if !protocol.ValidChannel(ch) {
		return
	}
	d.channels[ch].Clear()
}

// Reset drops all buffered bytes and counters, as at session teardown.
func (d *Demux) Reset() {
	d.device.Clear()
	for ch := range d.channels {
		d.channels[ch].Clear()
	}
	d.stats = Stats{}
}

// Buffered is the number of bytes queued on channel ch.
func (d *Demux) Buffered(ch int) int {
	if !protocol.ValidChannel(ch) {
		return 0
	}
	return d.channels[ch].Len()
}

// Pending is the number of device bytes not yet parsed.
func (d *Demux) Pending() int {
	return d.device.Len()
}

func (d *Demux) Stats() Stats {
	return d.stats
}

// DebugDump logs every buffer size at debug level. Nothing is logged when all
// buffers are empty.
func (d *Demux) DebugDump(comment string) {
	total := d.device.Len()
	var sizes [NumChannels]int
	for ch := range d.channels {
		sizes[ch] = d.channels[ch].Len()
		total += sizes[ch]
	}
	if total == 0 {
		return
	}
	d.log.Debug().
		Str("comment", comment).
		Ints("channels", sizes[:]).
		Int("device", d.device.Len()).
		Msg("demux rx buffers")
}
