package device

import (
	"errors"
	"fmt"
	"testing"

	"github.com/danmuck/serialmux/internal/testutil/testlog"
)

func TestIsTransient(t *testing.T) {
	testlog.Start(t)
	if !IsTransient(ErrWouldBlock) {
		t.Fatalf("ErrWouldBlock should be transient")
	}
	if !IsTransient(fmt.Errorf("wrapped: %w", ErrWouldBlock)) {
		t.Fatalf("wrapped ErrWouldBlock should be transient")
	}
	if IsTransient(ErrClosed) || IsTransient(nil) {
		t.Fatalf("hard errors are not transient")
	}
}

func TestOpenRejectsUnsupportedBaud(t *testing.T) {
	testlog.Start(t)
	_, err := Open(Config{Path: "/dev/null", Baud: 12345})
	if !errors.Is(err, ErrUnsupportedBaud) && !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected unsupported baud error, got %v", err)
	}
}
