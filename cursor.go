package pbl

import "unsafe"

// cursor provides bounds-checked views into the immutable library buffer.
//
// Every decoder reaches the file through slice, never through raw indexing,
// so an offset read from a corrupt block surfaces as a *BoundsError instead
// of a runtime panic. The buffer is never written after construction and a
// cursor may be shared by any number of goroutines.
type cursor struct {
	buf []byte
}

func newCursor(buf []byte) cursor { return cursor{buf: buf} }

// size returns the length of the underlying buffer.
func (c cursor) size() int { return len(c.buf) }

// slice returns buf[off:off+n]. The returned slice aliases the buffer and is
// capacity-limited so an append by the caller cannot clobber adjacent blocks.
func (c cursor) slice(off int64, n int) ([]byte, error) {
	if off < 0 || n < 0 || off > int64(len(c.buf)) || int64(n) > int64(len(c.buf))-off {
		return nil, &BoundsError{Offset: off, Length: n, Size: len(c.buf)}
	}
	return c.buf[off : off+int64(n) : off+int64(n)], nil
}

// block is slice for a record that starts at a block pointer read from disk.
func (c cursor) block(off uint32, n int) ([]byte, error) { return c.slice(int64(off), n) }

// zero-copy []byte → string (safe as long as the buffer is never mutated).
func btostr(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}
