// Package bridge runs the receive loop of one serial device.
//
// Ownership boundary:
// - device open/reopen with backoff
// - one demux.Demux per device session, driven from a single goroutine
// - channel open/close filter applied after demultiplexing
// - delivery of channel data and service messages to a Sink
// - session registration and stats snapshots
//
// Lifecycle:
// - open -> poll (Process, dispatch, snapshot) -> close -> reset -> reopen
package bridge
