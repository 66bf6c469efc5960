// Package formats links the built-in wire formats into the protocol registry.
package formats

import (
	_ "github.com/danmuck/serialmux/internal/protocol/frame"
	_ "github.com/danmuck/serialmux/internal/protocol/iwrap"
)
