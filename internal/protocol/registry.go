package protocol

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	mu       sync.RWMutex
	registry = map[string]Framer{}
)

// Register makes f selectable by name. Wire-format packages register
// themselves from init.
func Register(f Framer) error {
	name := normalizeName(f.Name())
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFramer, name)
	}
	registry[name] = f
	return nil
}

// MustRegister is Register for package init paths.
func MustRegister(f Framer) {
	if err := Register(f); err != nil {
		panic(err)
	}
}

func Lookup(name string) (Framer, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := registry[normalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFramer, name)
	}
	return f, nil
}

// Names lists registered wire formats in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
