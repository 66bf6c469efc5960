package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/serialmux/internal/protocol"
	"github.com/danmuck/serialmux/internal/protocol/tlv"
	"github.com/danmuck/serialmux/internal/testutil/testlog"
)

func TestWriteFrameRoundTrip(t *testing.T) {
	testlog.Start(t)
	payload := tlv.EncodeField(tlv.Field{ID: 1, Type: tlv.TypeString, Value: []byte("hello")})
	var buf bytes.Buffer
	if err := WriteFrame(&buf, 0, payload); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	pkt := buf.Bytes()
	if err := Validate(pkt); err != nil {
		t.Fatalf("validate: %v", err)
	}
	h, err := DecodeHeader(pkt)
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if h.Magic != Magic || h.Version != Version || h.Channel != 0 || int(h.PayloadLen) != len(payload) {
		t.Fatalf("header mismatch: %+v", h)
	}
	var f Framer
	s, e := f.PayloadOf(pkt)
	if !bytes.Equal(pkt[s:e], payload) {
		t.Fatalf("payload mismatch")
	}
	ms, me := f.FindNextMessage(pkt[s:e])
	if ms != 0 || me != len(payload) {
		t.Fatalf("service message range got=[%d,%d)", ms, me)
	}
}

func TestFindNextPacketResyncsPastGarbage(t *testing.T) {
	testlog.Start(t)
	var f Framer
	pkt, err := Encode(5, []byte("payload"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	corrupt := append([]byte{}, pkt...)
	corrupt[len(corrupt)-1] ^= 0xFF
	garbage := append([]byte{0xED, 0x00, 0xED}, corrupt...)
	in := append(garbage, pkt...)
	start, end := f.FindNextPacket(in)
	if start != len(garbage) || end != len(in) {
		t.Fatalf("range got=[%d,%d) want=[%d,%d)", start, end, len(garbage), len(in))
	}
	if ch := f.ChannelOf(in[start:end]); ch != 5 {
		t.Fatalf("channel got=%d", ch)
	}
}

func TestFindNextPacketMatchesMagicByteOrder(t *testing.T) {
	testlog.Start(t)
	var f Framer
	pkt, err := Encode(2, []byte("x"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if pkt[0] != 0xED || pkt[1] != 0xCE {
		t.Fatalf("magic bytes got=% x", pkt[:2])
	}
	swapped := append([]byte{0xCE, 0xED}, pkt[2:]...)
	if start, end := f.FindNextPacket(swapped); start != end {
		t.Fatalf("byte-swapped magic accepted: [%d,%d)", start, end)
	}
	in := append([]byte{0xCE}, pkt...)
	if start, end := f.FindNextPacket(in); start != 1 || end != len(in) {
		t.Fatalf("range got=[%d,%d) want=[1,%d)", start, end, len(in))
	}
}

func TestFindNextPacketPartialHeaderAndBody(t *testing.T) {
	testlog.Start(t)
	var f Framer
	pkt, _ := Encode(1, []byte("abcdef"))
	for cut := 1; cut < len(pkt); cut++ {
		start, end := f.FindNextPacket(pkt[:cut])
		if start != 0 || end != 0 {
			t.Fatalf("cut=%d got=[%d,%d) want partial at 0", cut, start, end)
		}
	}
}

func TestFindNextPacketRejectsBadHeaderFields(t *testing.T) {
	testlog.Start(t)
	var f Framer
	cases := map[string]Header{
		"version":  {Magic: Magic, Version: 9, Channel: 1, PayloadLen: 0},
		"channel":  {Magic: Magic, Version: Version, Channel: 8, PayloadLen: 0},
		"oversize": {Magic: Magic, Version: Version, Channel: 1, PayloadLen: MaxPayloadLen + 1},
	}
	for name, h := range cases {
		in := append(EncodeHeader(h), 0x00)
		if start, end := f.FindNextPacket(in); start != end || start != len(in) {
			t.Fatalf("%s: got=[%d,%d) want all garbage", name, start, end)
		}
	}
}

func TestValidateErrors(t *testing.T) {
	testlog.Start(t)
	if err := Validate([]byte{0xED}); !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
	pkt, _ := Encode(2, []byte{1, 2, 3})
	bad := append([]byte{}, pkt...)
	bad[0] = 0x00
	if err := Validate(bad); !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
	bad = append([]byte{}, pkt...)
	bad[len(bad)-2] ^= 0x10
	if err := Validate(bad); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
	if _, err := Encode(9, nil); !errors.Is(err, protocol.ErrInvalidChannel) {
		t.Fatalf("expected ErrInvalidChannel, got %v", err)
	}
	if _, err := Encode(1, make([]byte, MaxPayloadLen+1)); !errors.Is(err, protocol.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestRegistered(t *testing.T) {
	testlog.Start(t)
	f, err := protocol.Lookup("edge")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if _, ok := f.(Framer); !ok {
		t.Fatalf("unexpected framer type %T", f)
	}
}
