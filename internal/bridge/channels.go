package bridge

import (
	"fmt"

	"github.com/danmuck/serialmux/internal/protocol"
)

// ChannelSet is a bitmask of channel indices.
type ChannelSet uint8

// AllChannels has every channel set.
const AllChannels ChannelSet = 1<<protocol.NumChannels - 1

func NewChannelSet(channels []int) (ChannelSet, error) {
	var s ChannelSet
	for _, ch := range channels {
		if !protocol.ValidChannel(ch) {
			return 0, fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
		}
		s = s.With(ch)
	}
	return s, nil
}

func (s ChannelSet) Has(ch int) bool {
	return protocol.ValidChannel(ch) && s&(1<<uint(ch)) != 0
}

func (s ChannelSet) With(ch int) ChannelSet    { return s | 1<<uint(ch) }
func (s ChannelSet) Without(ch int) ChannelSet { return s &^ (1 << uint(ch)) }

func (s ChannelSet) List() []int {
	out := make([]int, 0, protocol.NumChannels)
	for ch := 0; ch < protocol.NumChannels; ch++ {
		if s.Has(ch) {
			out = append(out, ch)
		}
	}
	return out
}
