//go:build linux

package device

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

var baudRates = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
	460800: unix.B460800,
	921600: unix.B921600,
}

// SupportedBaud reports whether Open accepts baud.
func SupportedBaud(baud int) bool {
	_, ok := baudRates[baud]
	return ok
}

type serialPort struct {
	path string

	mu sync.Mutex
	fd int
}

// Open opens a serial port in raw, non-blocking mode.
func Open(cfg Config) (Port, error) {
	speed, ok := baudRates[cfg.Baud]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBaud, cfg.Baud)
	}
	fd, err := unix.Open(cfg.Path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("device: open %s: %w", cfg.Path, err)
	}
	if err := makeRaw(fd, speed); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("device: configure %s: %w", cfg.Path, err)
	}
	return &serialPort{path: cfg.Path, fd: fd}, nil
}

func makeRaw(fd int, speed uint32) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | speed
	t.Ispeed = speed
	t.Ospeed = speed
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0
	return unix.IoctlSetTermios(fd, unix.TCSETS, t)
}

func (p *serialPort) Path() string { return p.path }

// Read never blocks. No data is reported as ErrWouldBlock.
func (p *serialPort) Read(b []byte) (int, error) {
	fd, err := p.descriptor()
	if err != nil {
		return 0, err
	}
	if len(b) == 0 {
		return 0, nil
	}
	n, err := unix.Read(fd, b)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return 0, ErrWouldBlock
		}
		return 0, fmt.Errorf("device: read %s: %w", p.path, err)
	}
	if n == 0 {
		return 0, ErrWouldBlock
	}
	return n, nil
}

func (p *serialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd < 0 {
		return ErrClosed
	}
	err := unix.Close(p.fd)
	p.fd = -1
	return err
}

func (p *serialPort) descriptor() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd < 0 {
		return -1, ErrClosed
	}
	return p.fd, nil
}
