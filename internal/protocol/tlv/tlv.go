package tlv

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

const HeaderLen = 7

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
)

// Type IDs.
const (
	TypeU8     uint8 = 1
	TypeU16    uint8 = 2
	TypeU32    uint8 = 3
	TypeU64    uint8 = 4
	TypeBool   uint8 = 5
	TypeString uint8 = 6
	TypeBytes  uint8 = 7
)

// Field is one decoded TLV field.
type Field struct {
	ID    uint16
	Type  uint8
	Value []byte
}

func EncodeField(f Field) []byte {
	buf := make([]byte, HeaderLen+len(f.Value))
	binary.BigEndian.PutUint16(buf[0:2], f.ID)
	buf[2] = f.Type
	binary.BigEndian.PutUint32(buf[3:7], uint32(len(f.Value)))
	copy(buf[7:], f.Value)
	return buf
}

// NextField reports the byte range of the first complete field in b. It
// never fails: start == end means the field is still incomplete.
func NextField(b []byte) (start, end int) {
	if len(b) < HeaderLen {
		return 0, 0
	}
	l := uint64(binary.BigEndian.Uint32(b[3:7]))
	if uint64(len(b)-HeaderLen) < l {
		return 0, 0
	}
	return 0, HeaderLen + int(l)
}

// DecodeField decodes exactly one field; trailing bytes are an error.
func DecodeField(b []byte) (Field, error) {
	fields, err := DecodeFields(b)
	if err != nil {
		return Field{}, err
	}
	if len(fields) != 1 {
		return Field{}, fmt.Errorf("tlv: expected one field, got %d", len(fields))
	}
	return fields[0], nil
}

// DecodeFields splits payload into fields. Values are copied.
func DecodeFields(payload []byte) ([]Field, error) {
	var fields []Field
	for len(payload) > 0 {
		if len(payload) < HeaderLen {
			return nil, ErrShortFieldHeader
		}
		_, end := NextField(payload)
		if end == 0 {
			return nil, ErrShortFieldValue
		}
		fields = append(fields, Field{
			ID:    binary.BigEndian.Uint16(payload[0:2]),
			Type:  payload[2],
			Value: append([]byte(nil), payload[HeaderLen:end]...),
		})
		payload = payload[end:]
	}
	return fields, nil
}

var uintWidth = map[uint8]int{TypeU8: 1, TypeU16: 2, TypeU32: 4, TypeU64: 8}

// Format renders a field value for logs: integers and bools in decimal
// form, strings quoted, anything else (or a value of the wrong width) as hex.
func Format(f Field) string {
	switch f.Type {
	case TypeU8, TypeU16, TypeU32, TypeU64:
		if len(f.Value) != uintWidth[f.Type] {
			break
		}
		var v uint64
		for _, c := range f.Value {
			v = v<<8 | uint64(c)
		}
		return strconv.FormatUint(v, 10)
	case TypeBool:
		if len(f.Value) == 1 {
			return strconv.FormatBool(f.Value[0] != 0)
		}
	case TypeString:
		return strconv.Quote(string(f.Value))
	}
	return hex.EncodeToString(f.Value)
}
