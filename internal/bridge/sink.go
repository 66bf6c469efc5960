package bridge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/serialmux/internal/protocol/frame"
	"github.com/danmuck/serialmux/internal/protocol/tlv"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Delivery is one unit handed to a Sink: the bytes read from a data channel
// in one dispatch, or exactly one service message.
type Delivery struct {
	SessionID string
	Framer    string
	Channel   int
	Service   bool
	Data      []byte
	At        time.Time
}

// Sink receives deliveries from the receive loop. Data is only valid for the
// duration of Publish.
type Sink interface {
	Publish(ctx context.Context, d Delivery) error
}

// LogSink logs deliveries. It is the sink used when no broker is configured.
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Publish(_ context.Context, d Delivery) error {
	ev := s.Logger.Info().
		Str("session", d.SessionID).
		Int("channel", d.Channel).
		Int("bytes", len(d.Data))
	switch {
	case d.Service && d.Framer == edgeFramer:
		if f, err := tlv.DecodeField(d.Data); err == nil {
			ev = ev.Uint16("field", f.ID).Uint8("type", f.Type).Str("value", tlv.Format(f))
		} else {
			ev = ev.Hex("data", d.Data)
		}
	case d.Service:
		ev = ev.Str("message", strings.TrimRight(string(d.Data), "\r\n"))
	default:
		ev = ev.Hex("data", d.Data)
	}
	ev.Msg("bridge.LogSink delivery")
	return nil
}

var edgeFramer = frame.Framer{}.Name()

const (
	HeaderChannel = "Serialmux-Channel"
	HeaderSession = "Serialmux-Session"
)

type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSSink publishes channel data to <prefix>.<id>.ch.<n> and service
// messages to <prefix>.<id>.service.
type NATSSink struct {
	conn   msgPublisher
	prefix string
	id     string
}

func NewNATSSink(conn *nats.Conn, prefix, id string) *NATSSink {
	return newNATSSink(conn, prefix, id)
}

func newNATSSink(conn msgPublisher, prefix, id string) *NATSSink {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "serialmux"
	}
	return &NATSSink{conn: conn, prefix: prefix, id: subjectToken(id)}
}

func (s *NATSSink) Subject(d Delivery) string {
	if d.Service {
		return fmt.Sprintf("%s.%s.service", s.prefix, s.id)
	}
	return fmt.Sprintf("%s.%s.ch.%d", s.prefix, s.id, d.Channel)
}

func (s *NATSSink) Publish(ctx context.Context, d Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := nats.NewMsg(s.Subject(d))
	msg.Data = append([]byte(nil), d.Data...)
	msg.Header.Set(HeaderChannel, strconv.Itoa(d.Channel))
	msg.Header.Set(HeaderSession, d.SessionID)
	if err := s.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("bridge: nats publish %s: %w", msg.Subject, err)
	}
	return nil
}

// subjectToken makes id safe as one NATS subject token.
func subjectToken(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, id)
}
