// Package device owns the non-blocking byte sources feeding the receive path.
package device

import (
	"errors"
	"io"
)

var (
	// ErrWouldBlock is returned by Read when no data is available right now.
	// It is an expected outcome, not a failure.
	ErrWouldBlock      = errors.New("device: would block")
	ErrClosed          = errors.New("device: closed")
	ErrUnsupportedBaud = errors.New("device: unsupported baud rate")
	ErrUnsupported     = errors.New("device: serial ports unsupported on this platform")
)

// Port is an open non-blocking device. The receive path only reads.
type Port interface {
	io.ReadCloser
	Path() string
}

// Config describes how a serial port is opened.
type Config struct {
	Path string
	Baud int
}

// IsTransient reports whether err only means "no data right now".
func IsTransient(err error) bool {
	return errors.Is(err, ErrWouldBlock)
}
