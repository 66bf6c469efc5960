// Package demux owns the receive state of one multiplexed serial session.
//
// Ownership boundary:
// - device buffer and the eight channel buffers
// - packet extraction and routing (Process)
// - channel consumption (ReadChannel, ReadServiceMessage, Drain)
//
// A Demux is not safe for concurrent use. Process and the readers are meant to
// run from one polling loop; callers on other goroutines must serialize.
//
// Delivery policy:
// - bytes before a recognized packet are discarded
// - a channel whose buffer cannot take a new payload loses its old content
// - service messages are delivered whole or not at all
package demux
