package demux

// Stats counts what Process did to the bytes it was given. For the device
// buffer, BytesRead equals GarbageBytes + FramingBytes + PayloadBytes +
// RejectedBytes + Len(device buffer).
type Stats struct {
	Reads      uint64 `json:"reads"`
	BytesRead  uint64 `json:"bytes_read"`
	ReadErrors uint64 `json:"read_errors"`

	Packets      uint64 `json:"packets"`
	GarbageBytes uint64 `json:"garbage_bytes"`
	FramingBytes uint64 `json:"framing_bytes"`
	PayloadBytes uint64 `json:"payload_bytes"`

	RejectedPackets uint64 `json:"rejected_packets"`
	RejectedBytes   uint64 `json:"rejected_bytes"`

	Channels [NumChannels]ChannelStats `json:"channels"`
}

// ChannelStats counts deliveries and overflow losses of one channel.
type ChannelStats struct {
	Packets      uint64 `json:"packets"`
	PayloadBytes uint64 `json:"payload_bytes"`
	Overflows    uint64 `json:"overflows"`
	DroppedBytes uint64 `json:"dropped_bytes"`
}

// Sub returns the counter deltas s - prev.
func (s Stats) Sub(prev Stats) Stats {
	out := Stats{
		Reads:           s.Reads - prev.Reads,
		BytesRead:       s.BytesRead - prev.BytesRead,
		ReadErrors:      s.ReadErrors - prev.ReadErrors,
		Packets:         s.Packets - prev.Packets,
		GarbageBytes:    s.GarbageBytes - prev.GarbageBytes,
		FramingBytes:    s.FramingBytes - prev.FramingBytes,
		PayloadBytes:    s.PayloadBytes - prev.PayloadBytes,
		RejectedPackets: s.RejectedPackets - prev.RejectedPackets,
		RejectedBytes:   s.RejectedBytes - prev.RejectedBytes,
	}
	for ch := range s.Channels {
		c, p := s.Channels[ch], prev.Channels[ch]
		out.Channels[ch] = ChannelStats{
			Packets:      c.Packets - p.Packets,
			PayloadBytes: c.PayloadBytes - p.PayloadBytes,
			Overflows:    c.Overflows - p.Overflows,
			DroppedBytes: c.DroppedBytes - p.DroppedBytes,
		}
	}
	return out
}
