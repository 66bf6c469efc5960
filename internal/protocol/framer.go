package protocol

// MaxPacketLen bounds every packet a Framer may report. A packet must fit in
// the device buffer, so a declared length beyond it is garbage.
const MaxPacketLen = 256

// NumChannels is the number of logical channels a Framer may address.
const NumChannels = 8

// ServiceChannel carries control messages with an inner message framing.
const ServiceChannel = 0

// Framer locates transport packets and inner service messages in raw bytes.
// Implementations are stateless and must not retain the slices they are given.
type Framer interface {
	// Name is the wire-format identifier used in configuration.
	Name() string

	// FindNextPacket scans b for one complete, valid packet. Bytes before start
	// are unrecoverable and may be discarded. start == end means no complete
	// packet is available yet; start then marks where parsing must resume
	// (len(b) when all of b was garbage).
	FindNextPacket(b []byte) (start, end int)

	// ChannelOf returns the destination channel of a packet previously
	// reported by FindNextPacket.
	ChannelOf(pkt []byte) int

	// PayloadOf returns the payload sub-range of pkt.
	PayloadOf(pkt []byte) (start, end int)

	// FindNextMessage locates one complete service message in service channel
	// bytes. It never rejects input: start == end means no complete message.
	FindNextMessage(b []byte) (start, end int)
}

// ValidChannel reports whether ch addresses one of the NumChannels channels.
func ValidChannel(ch int) bool {
	return ch >= 0 && ch < NumChannels
}
