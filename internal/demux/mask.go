package demux

import "github.com/danmuck/serialmux/internal/protocol"

// NotifyMask has bit n set when channel n received payload during one
// Process call.
type NotifyMask uint8

func (m NotifyMask) Has(ch int) bool {
	return protocol.ValidChannel(ch) && m&(1<<uint(ch)) != 0
}

func (m NotifyMask) Empty() bool { return m == 0 }

func (m NotifyMask) Channels() []int {
	out := make([]int, 0, NumChannels)
	for ch := 0; ch < NumChannels; ch++ {
		if m.Has(ch) {
			out = append(out, ch)
		}
	}
	return out
}

func (m *NotifyMask) set(ch int) {
	*m |= 1 << uint(ch)
}
