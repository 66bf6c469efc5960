// Package frame implements the edge wire format: a compact fixed header,
// payload and XOR checksum. Service channel payloads carry TLV fields.
//
// Frame layout:
//
//	[2 bytes] magic 0xEDCE
//	[1 byte]  version
//	[1 byte]  channel
//	[2 bytes] payload length, big-endian
//	[N bytes] payload
//	[1 byte]  XOR of version through the last payload byte
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/serialmux/internal/protocol"
	"github.com/danmuck/serialmux/internal/protocol/tlv"
)

const (
	Magic   uint16 = 0xEDCE
	Version uint8  = 1

	FixedHeaderLen = 6
	TrailerLen     = 1
	Overhead       = FixedHeaderLen + TrailerLen

	// MaxPayloadLen keeps every frame within protocol.MaxPacketLen.
	MaxPayloadLen = protocol.MaxPacketLen - Overhead
)

var (
	ErrShortHeader      = errors.New("frame: short fixed header")
	ErrInvalidMagic     = errors.New("frame: invalid magic")
	ErrUnsupportedVer   = errors.New("frame: unsupported version")
	ErrChecksumMismatch = errors.New("frame: checksum mismatch")
)

// Header is the fixed wire header.
type Header struct {
	Magic      uint16
	Version    uint8
	Channel    uint8
	PayloadLen uint16
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, FixedHeaderLen)
	putHeader(buf, h)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) < FixedHeaderLen {
		return Header{}, ErrShortHeader
	}
	return Header{
		Magic:      binary.BigEndian.Uint16(b[0:2]),
		Version:    b[2],
		Channel:    b[3],
		PayloadLen: binary.BigEndian.Uint16(b[4:6]),
	}, nil
}

func putHeader(buf []byte, h Header) {
	binary.BigEndian.PutUint16(buf[0:2], h.Magic)
	buf[2] = h.Version
	buf[3] = h.Channel
	binary.BigEndian.PutUint16(buf[4:6], h.PayloadLen)
}

// Checksum is the trailer value for a frame whose header and payload are b.
func Checksum(b []byte) byte {
	var sum byte
	for _, c := range b[2:] {
		sum ^= c
	}
	return sum
}

// Encode builds one frame carrying payload on channel ch.
func Encode(ch int, payload []byte) ([]byte, error) {
	if !protocol.ValidChannel(ch) {
		return nil, fmt.Errorf("%w: %d", protocol.ErrInvalidChannel, ch)
	}
	if len(payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: %d > %d", protocol.ErrPayloadTooLarge, len(payload), MaxPayloadLen)
	}
	out := make([]byte, FixedHeaderLen, Overhead+len(payload))
	putHeader(out, Header{Magic: Magic, Version: Version, Channel: uint8(ch), PayloadLen: uint16(len(payload))})
	out = append(out, payload...)
	return append(out, Checksum(out)), nil
}

func WriteFrame(w io.Writer, ch int, payload []byte) error {
	pkt, err := Encode(ch, payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(pkt); err != nil {
		return fmt.Errorf("frame: write: %w", err)
	}
	return nil
}

// Validate checks one complete frame.
func Validate(pkt []byte) error {
	h, err := DecodeHeader(pkt)
	if err != nil {
		return err
	}
	if h.Magic != Magic {
		return ErrInvalidMagic
	}
	if h.Version != Version {
		return ErrUnsupportedVer
	}
	if !protocol.ValidChannel(int(h.Channel)) {
		return fmt.Errorf("%w: %d", protocol.ErrInvalidChannel, h.Channel)
	}
	if int(h.PayloadLen) > MaxPayloadLen {
		return protocol.ErrPayloadTooLarge
	}
	if len(pkt) != Overhead+int(h.PayloadLen) {
		return fmt.Errorf("frame: length %d does not match header payload length %d", len(pkt), h.PayloadLen)
	}
	if Checksum(pkt[:len(pkt)-TrailerLen]) != pkt[len(pkt)-1] {
		return ErrChecksumMismatch
	}
	return nil
}

// Framer is the protocol.Framer for edge frames.
type Framer struct{}

var _ protocol.Framer = Framer{}

func init() {
	protocol.MustRegister(Framer{})
}

func (Framer) Name() string { return "edge" }

func (Framer) FindNextPacket(b []byte) (int, int) {
	magic0, magic1 := byte(Magic>>8), byte(Magic&0xFF)
	for i := 0; i < len(b); i++ {
		if b[i] != magic0 {
			continue
		}
		rest := b[i:]
		if len(rest) < 2 {
			return i, i
		}
		if rest[1] != magic1 {
			continue
		}
		if len(rest) < FixedHeaderLen {
			return i, i
		}
		h, _ := DecodeHeader(rest)
		if h.Version != Version || !protocol.ValidChannel(int(h.Channel)) || int(h.PayloadLen) > MaxPayloadLen {
			continue
		}
		total := Overhead + int(h.PayloadLen)
		if len(rest) < total {
			return i, i
		}
		if Checksum(rest[:total-TrailerLen]) != rest[total-1] {
			continue
		}
		return i, i + total
	}
	return len(b), len(b)
}

func (Framer) ChannelOf(pkt []byte) int {
	return int(pkt[3])
}

func (Framer) PayloadOf(pkt []byte) (int, int) {
	return FixedHeaderLen, len(pkt) - TrailerLen
}

// FindNextMessage returns one complete TLV field.
func (Framer) FindNextMessage(b []byte) (int, int) {
	return tlv.NextField(b)
}
