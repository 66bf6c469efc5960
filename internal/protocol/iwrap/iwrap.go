// Package iwrap implements the iWRAP MUX wire format.
//
// Frame layout:
//
//	[1 byte]  SOF 0xBF
//	[1 byte]  link (0xFF control, 0..6 data links)
//	[2 bytes] flags (6 bits, must be zero) and data length (10 bits), big-endian
//	[N bytes] data
//	[1 byte]  link ^ 0xFF
//
// The control link carries iWRAP command responses and events as CRLF
// terminated ASCII lines; it is exposed as the service channel.
package iwrap

import (
	"bytes"
	"fmt"

	"github.com/danmuck/serialmux/internal/protocol"
)

const (
	SOF         byte = 0xBF
	ControlLink byte = 0xFF

	HeaderLen  = 4
	TrailerLen = 1
	Overhead   = HeaderLen + TrailerLen

	// MaxDataLen keeps every frame within protocol.MaxPacketLen.
	MaxDataLen = protocol.MaxPacketLen - Overhead

	maxDataLink = protocol.NumChannels - 2
)

var lineEnd = []byte("\r\n")

// Framer is the protocol.Framer for iWRAP MUX frames.
type Framer struct{}

var _ protocol.Framer = Framer{}

func init() {
	protocol.MustRegister(Framer{})
}

func (Framer) Name() string { return "iwrap" }

func (Framer) FindNextPacket(b []byte) (int, int) {
	for i := 0; i < len(b); i++ {
		if b[i] != SOF {
			continue
		}
		rest := b[i:]
		if len(rest) < HeaderLen {
			return i, i
		}
		link := rest[1]
		if !validLink(link) || rest[2]&0xFC != 0 {
			continue
		}
		n := dataLen(rest)
		if n > MaxDataLen {
			continue
		}
		total := Overhead + n
		if len(rest) < total {
			return i, i
		}
		if rest[total-1] != link^0xFF {
			continue
		}
		return i, i + total
	}
	return len(b), len(b)
}

func (Framer) ChannelOf(pkt []byte) int {
	return LinkChannel(pkt[1])
}

func (Framer) PayloadOf(pkt []byte) (int, int) {
	return HeaderLen, len(pkt) - TrailerLen
}

// FindNextMessage returns one CRLF terminated line, terminator included.
func (Framer) FindNextMessage(b []byte) (int, int) {
	i := bytes.Index(b, lineEnd)
	if i < 0 {
		return 0, 0
	}
	return 0, i + len(lineEnd)
}

// LinkChannel maps a MUX link to a channel index: the control link is the
// service channel, data link n is channel n+1. Unknown links map to -1.
func LinkChannel(link byte) int {
	switch {
	case link == ControlLink:
		return protocol.ServiceChannel
	case int(link) <= maxDataLink:
		return int(link) + 1
	default:
		return -1
	}
}

// ChannelLink is the inverse of LinkChannel.
func ChannelLink(ch int) (byte, error) {
	if !protocol.ValidChannel(ch) {
		return 0, fmt.Errorf("%w: %d", protocol.ErrInvalidChannel, ch)
	}
	if ch == protocol.ServiceChannel {
		return ControlLink, nil
	}
	return byte(ch - 1), nil
}

// Encode builds one MUX frame carrying data on channel ch.
func Encode(ch int, data []byte) ([]byte, error) {
	link, err := ChannelLink(ch)
	if err != nil {
		return nil, err
	}
	if len(data) > MaxDataLen {
		return nil, fmt.Errorf("%w: %d > %d", protocol.ErrPayloadTooLarge, len(data), MaxDataLen)
	}
	out := make([]byte, 0, Overhead+len(data))
	out = append(out, SOF, link, byte(len(data)>>8)&0x03, byte(len(data)))
	out = append(out, data...)
	out = append(out, link^0xFF)
	return out, nil
}

func validLink(link byte) bool {
	return LinkChannel(link) >= 0
}

func dataLen(hdr []byte) int {
	return int(hdr[2]&0x03)<<8 | int(hdr[3])
}
