// Package fakedev provides a scripted non-blocking device for tests.
package fakedev

import (
	"sync"

	"github.com/danmuck/serialmux/internal/device"
)

// Step is one scripted Read outcome: data is delivered, then err is returned
// alongside it. An empty step with nil err behaves like ErrWouldBlock.
type Step struct {
	Data []byte
	Err  error
}

// Device replays queued steps. Each Read consumes at most one step; data that
// does not fit the caller's slice stays queued for the next Read.
type Device struct {
	mu     sync.Mutex
	path   string
	steps  []Step
	reads  int
	closed bool
}

var _ device.Port = (*Device)(nil)

func New(path string) *Device {
	return &Device{path: path}
}

// Feed queues data for the next Read calls.
func (d *Device) Feed(chunks ...[]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range chunks {
		d.steps = append(d.steps, Step{Data: append([]byte(nil), c...)})
	}
}

// Push queues raw steps, e.g. data delivered together with an error.
func (d *Device) Push(steps ...Step) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, st := range steps {
		d.steps = append(d.steps, Step{Data: append([]byte(nil), st.Data...), Err: st.Err})
	}
}

// FailNext queues a Read that returns err with no data.
func (d *Device) FailNext(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.steps = append(d.steps, Step{Err: err})
}

func (d *Device) Path() string { return d.path }

func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if d.closed {
		return 0, device.ErrClosed
	}
	if len(d.steps) == 0 {
		return 0, device.ErrWouldBlock
	}
	step := &d.steps[0]
	n := copy(p, step.Data)
	step.Data = step.Data[n:]
	err := step.Err
	if len(step.Data) == 0 {
		d.steps = d.steps[1:]
	} else {
		err = nil
	}
	if n == 0 && err == nil {
		return 0, device.ErrWouldBlock
	}
	return n, err
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.ErrClosed
	}
	d.closed = true
	return nil
}

// Reads is the number of Read calls so far.
func (d *Device) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// Pending is the number of queued steps.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.steps)
}

func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
