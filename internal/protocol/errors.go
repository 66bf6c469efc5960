package protocol

import "errors"

var (
	ErrUnknownFramer   = errors.New("protocol: unknown framer")
	ErrDuplicateFramer = errors.New("protocol: framer already registered")
	ErrInvalidChannel  = errors.New("protocol: channel out of range")
	ErrPayloadTooLarge = errors.New("protocol: payload too large")
)
