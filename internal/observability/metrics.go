package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/serialmux/internal/demux"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serialmux",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total status HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "serialmux",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	deviceBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serialmux",
			Subsystem: "rx",
			Name:      "device_bytes_total",
			Help:      "Device bytes by outcome (read, garbage, framing, payload, rejected).",
		},
		[]string{"device", "outcome"},
	)
	readErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serialmux",
			Subsystem: "rx",
			Name:      "read_errors_total",
			Help:      "Hard device read failures.",
		},
		[]string{"device"},
	)
	rejectedPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serialmux",
			Subsystem: "rx",
			Name:      "rejected_packets_total",
			Help:      "Packets addressed to a channel outside the channel range.",
		},
		[]string{"device"},
	)
	channelPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serialmux",
			Subsystem: "channel",
			Name:      "packets_total",
			Help:      "Packets routed to a channel.",
		},
		[]string{"device", "channel"},
	)
	channelPayload = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serialmux",
			Subsystem: "channel",
			Name:      "payload_bytes_total",
			Help:      "Payload bytes routed to a channel.",
		},
		[]string{"device", "channel"},
	)
	channelOverflows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serialmux",
			Subsystem: "channel",
			Name:      "overflows_total",
			Help:      "Times a channel buffer was cleared to make room for new payload.",
		},
		[]string{"device", "channel"},
	)
	channelDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serialmux",
			Subsystem: "channel",
			Name:      "dropped_bytes_total",
			Help:      "Buffered bytes lost to channel overflow.",
		},
		[]string{"device", "channel"},
	)
	published = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serialmux",
			Subsystem: "sink",
			Name:      "published_total",
			Help:      "Channel reads handed to the sink.",
		},
		[]string{"device", "channel", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			deviceBytes, readErrors, rejectedPackets,
			channelPackets, channelPayload, channelOverflows, channelDropped,
			published,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordDemux adds one Process delta to the receive counters.
func RecordDemux(device string, delta demux.Stats) {
	RegisterMetrics()
	addBytes(device, "read", delta.BytesRead)
	addBytes(device, "garbage", delta.GarbageBytes)
	addBytes(device, "framing", delta.FramingBytes)
	addBytes(device, "payload", delta.PayloadBytes)
	addBytes(device, "rejected", delta.RejectedBytes)
	if delta.ReadErrors > 0 {
		readErrors.WithLabelValues(device).Add(float64(delta.ReadErrors))
	}
	if delta.RejectedPackets > 0 {
		rejectedPackets.WithLabelValues(device).Add(float64(delta.RejectedPackets))
	}
	for ch, cs := range delta.Channels {
		if cs == (demux.ChannelStats{}) {
			continue
		}
		label := strconv.Itoa(ch)
		channelPackets.WithLabelValues(device, label).Add(float64(cs.Packets))
		channelPayload.WithLabelValues(device, label).Add(float64(cs.PayloadBytes))
		channelOverflows.WithLabelValues(device, label).Add(float64(cs.Overflows))
		channelDropped.WithLabelValues(device, label).Add(float64(cs.DroppedBytes))
	}
}

func RecordPublish(device string, channel int, success bool) {
	RegisterMetrics()
	published.WithLabelValues(device, strconv.Itoa(channel), strconv.FormatBool(success)).Inc()
}

func addBytes(device, outcome string, n uint64) {
	if n == 0 {
		return
	}
	deviceBytes.WithLabelValues(device, outcome).Add(float64(n))
}
