// Package protocol owns the packet framing contract of the receive path.
//
// Ownership boundary:
// - Framer contract (packet boundaries, channel, payload, service messages)
// - framer registry keyed by wire-format name
//
// Wire formats live in sub-packages:
// - iwrap: iWRAP MUX frames, CRLF service lines
// - frame: edge frames, TLV service fields (see tlv)
package protocol
