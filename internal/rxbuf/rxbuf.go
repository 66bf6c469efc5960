// Package rxbuf provides the fixed-capacity byte FIFO used on the receive path.
//
// Storage is an inline array: a Buffer never allocates. Erasing from the front
// only advances the read offset; Compact moves the remaining content back to
// the start of storage so the free space becomes one contiguous tail region.
package rxbuf

import (
	"errors"
	"fmt"
)

// Capacity is the storage size of every Buffer.
const Capacity = 256

var ErrNoSpace = errors.New("rxbuf: not enough free space")

// Buffer is a fixed-capacity FIFO of bytes. The zero value is an empty buffer.
type Buffer struct {
	data [Capacity]byte
	head int
	tail int
}

func (b *Buffer) Len() int    { return b.tail - b.head }
func (b *Buffer) Empty() bool { return b.tail == b.head }
func (b *Buffer) Cap() int    { return Capacity }
func (b *Buffer) Free() int   { return Capacity - b.Len() }

// TailRoom is the number of bytes that can be appended without compaction.
func (b *Buffer) TailRoom() int { return Capacity - b.tail }

// Bytes returns the logical content, oldest byte first. The slice aliases the
// buffer storage and stays valid across EraseFront, but not across Compact,
// Clear or any append.
func (b *Buffer) Bytes() []byte {
	return b.data[b.head:b.tail:b.tail]
}

// AppendUnchecked appends p at the tail. The caller must have established
// TailRoom() >= len(p) in the same operation, by a capacity check followed by
// Compact, or by Clear.
func (b *Buffer) AppendUnchecked(p []byte) {
	if len(p) > b.TailRoom() {
		panic(fmt.Sprintf("rxbuf: unchecked append of %d bytes with %d bytes of tail room", len(p), b.TailRoom()))
	}
	b.tail += copy(b.data[b.tail:], p)
}

// Append appends all of p or nothing.
func (b *Buffer) Append(p []byte) error {
	if len(p) > b.Free() {
		return ErrNoSpace
	}
	if len(p) > b.TailRoom() {
		b.Compact()
	}
	b.AppendUnchecked(p)
	return nil
}

// EraseFront removes the n oldest bytes. n is clamped to Len.
func (b *Buffer) EraseFront(n int) {
	if n <= 0 {
		return
	}
	if n >= b.Len() {
		b.head, b.tail = 0, 0
		return
	}
	b.head += n
}

func (b *Buffer) Clear() {
	b.head, b.tail = 0, 0
}

// Compact moves the content to the start of storage. Logical content is
// unchanged.
func (b *Buffer) Compact() {
	if b.head == 0 {
		return
	}
	n := copy(b.data[:], b.data[b.head:b.tail])
	b.head, b.tail = 0, n
}

// Tail returns the writable region after the content. Bytes written into it
// become content only after Commit.
func (b *Buffer) Tail() []byte {
	return b.data[b.tail:]
}

// Commit marks n bytes written into Tail as content.
func (b *Buffer) Commit(n int) {
	if n < 0 || n > b.TailRoom() {
		panic(fmt.Sprintf("rxbuf: commit of %d bytes with %d bytes of tail room", n, b.TailRoom()))
	}
	b.tail += n
}
