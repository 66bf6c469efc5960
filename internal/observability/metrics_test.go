package observability

import (
	"testing"
	"time"

	"github.com/danmuck/serialmux/internal/demux"
	"github.com/danmuck/serialmux/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("serialmux-a", "GET", "/health", 200, 12*time.Millisecond)
	RecordPublish("/dev/ttyTEST0", 1, true)
	RecordDemux("/dev/ttyTEST0", demux.Stats{})
}

func TestRecordDemuxAddsChannelDeltas(t *testing.T) {
	testlog.Start(t)
	dev := "/dev/ttyTEST1"
	var delta demux.Stats
	delta.BytesRead = 40
	delta.GarbageBytes = 3
	delta.ReadErrors = 1
	delta.Channels[2] = demux.ChannelStats{Packets: 2, PayloadBytes: 20, Overflows: 1, DroppedBytes: 7}

	RecordDemux(dev, delta)
	RecordDemux(dev, delta)

	if got := testutil.ToFloat64(deviceBytes.WithLabelValues(dev, "read")); got != 80 {
		t.Fatalf("read bytes got=%v", got)
	}
	if got := testutil.ToFloat64(readErrors.WithLabelValues(dev)); got != 2 {
		t.Fatalf("read errors got=%v", got)
	}
	if got := testutil.ToFloat64(channelOverflows.WithLabelValues(dev, "2")); got != 2 {
		t.Fatalf("overflows got=%v", got)
	}
	if got := testutil.ToFloat64(channelDropped.WithLabelValues(dev, "2")); got != 14 {
		t.Fatalf("dropped got=%v", got)
	}
}
