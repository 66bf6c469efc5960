package tlv

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/serialmux/internal/testutil/testlog"
)

func TestDecodeFieldsSplitsConcatenatedFields(t *testing.T) {
	testlog.Start(t)
	wire := append(
		EncodeField(Field{ID: 1, Type: TypeString, Value: []byte("link-up")}),
		EncodeField(Field{ID: 9999, Type: TypeBytes, Value: []byte{0xAA, 0xBB}})...,
	)
	out, err := DecodeFields(wire)
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(out))
	}
	if out[1].ID != 9999 || out[1].Type != TypeBytes || !bytes.Equal(out[1].Value, []byte{0xAA, 0xBB}) {
		t.Fatalf("second field got=%+v", out[1])
	}
	wire[HeaderLen] = 'X'
	if string(out[0].Value) != "link-up" {
		t.Fatalf("decoded value aliases the wire buffer: %q", out[0].Value)
	}
}

func TestNextFieldWaitsForCompleteField(t *testing.T) {
	testlog.Start(t)
	wire := EncodeField(Field{ID: 2, Type: TypeString, Value: []byte("status")})
	for cut := 0; cut < len(wire); cut++ {
		if s, e := NextField(wire[:cut]); s != e {
			t.Fatalf("cut=%d reported incomplete field as [%d,%d)", cut, s, e)
		}
	}
	tail := EncodeField(Field{ID: 3, Type: TypeU8, Value: []byte{1}})
	s, e := NextField(append(append([]byte{}, wire...), tail...))
	if s != 0 || e != len(wire) {
		t.Fatalf("range got=[%d,%d) want=[0,%d)", s, e, len(wire))
	}
}

func TestNextFieldHugeLengthIsNotAnError(t *testing.T) {
	testlog.Start(t)
	b := []byte{0, 1, TypeBytes, 0xFF, 0xFF, 0xFF, 0xFF, 'x'}
	if s, e := NextField(b); s != e {
		t.Fatalf("impossible length reported as complete: [%d,%d)", s, e)
	}
}

func TestDecodeFieldRequiresExactlyOne(t *testing.T) {
	testlog.Start(t)
	one := EncodeField(Field{ID: 7, Type: TypeU8, Value: []byte{3}})
	f, err := DecodeField(one)
	if err != nil {
		t.Fatalf("decode field: %v", err)
	}
	if f.ID != 7 || f.Type != TypeU8 {
		t.Fatalf("field got=%+v", f)
	}
	if _, err := DecodeField(append(one, one...)); err == nil {
		t.Fatalf("expected error for two fields")
	}
	if _, err := DecodeField(nil); err == nil {
		t.Fatalf("expected error for no fields")
	}
}

func TestFormat(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		f    Field
		want string
	}{
		{Field{Type: TypeU8, Value: []byte{200}}, "200"},
		{Field{Type: TypeU16, Value: []byte{0x01, 0x00}}, "256"},
		{Field{Type: TypeU32, Value: []byte{0, 0, 0, 42}}, "42"},
		{Field{Type: TypeU64, Value: []byte{0, 0, 0, 1, 0, 0, 0, 0}}, "4294967296"},
		{Field{Type: TypeU32, Value: []byte{1, 2}}, "0102"},
		{Field{Type: TypeBool, Value: []byte{1}}, "true"},
		{Field{Type: TypeString, Value: []byte("ok")}, `"ok"`},
		{Field{Type: TypeBytes, Value: []byte{0xDE, 0xAD}}, "dead"},
	}
	for _, tc := range cases {
		if got := Format(tc.f); got != tc.want {
			t.Fatalf("Format(%+v) got=%q want=%q", tc.f, got, tc.want)
		}
	}
}

func TestDecodeFieldsMalformedHeaderIsDeterministic(t *testing.T) {
	testlog.Start(t)
	_, err := DecodeFields([]byte{1, 2, 3})
	if !errors.Is(err, ErrShortFieldHeader) {
		t.Fatalf("expected ErrShortFieldHeader, got %v", err)
	}
}

func TestDecodeFieldsMalformedLengthIsDeterministic(t *testing.T) {
	testlog.Start(t)
	// id=1, type=string, len=5, value only 2 bytes
	payload := []byte{0, 1, TypeString, 0, 0, 0, 5, 'a', 'b'}
	_, err := DecodeFields(payload)
	if !errors.Is(err, ErrShortFieldValue) {
		t.Fatalf("expected ErrShortFieldValue, got %v", err)
	}
}
