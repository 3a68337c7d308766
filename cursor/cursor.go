/*
Package cursor provides a bounded, sequential reader over an in-memory
byte buffer — the low-level primitive every decoder in this module reads
through.

A Cursor never shares its buffer: Take produces a nested view with
exclusive access to the next limit bytes, and advances the parent's
position in lockstep as the sub-cursor is read. The sub-cursor holds a
pointer to its parent and an end offset; it never copies the buffer.
*/
package cursor

import "io"

// Reader is the minimal read surface every decoder in this module needs:
// a single byte at a time, or an exact-length run of bytes. Both Cursor
// and Taken satisfy it, so decoders can be written against Reader and
// used transparently at any nesting depth.
type Reader interface {
	ReadByte() (byte, error)
	ReadExact(out []byte) error
}

// Cursor is a single-owner, non-shareable view over a byte buffer.
type Cursor struct {
	buf []byte
	pos int
}

// New creates a Cursor over buf. The Cursor does not copy buf; callers
// must not mutate buf while the Cursor (or any of its Take sub-cursors)
// is in use.
func New(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Len returns the number of unread bytes remaining.
func (c *Cursor) Len() int {
	return len(c.buf) - c.pos
}

// Read copies up to len(out) bytes into out, advances the position by
// that many bytes, and returns the count. It returns (0, nil) at EOF,
// matching io.Reader's documented EOF-without-error-at-the-end behavior
// only in the degenerate zero-byte-read case; callers that need a hard
// end-of-input signal should use ReadExact.
func (c *Cursor) Read(out []byte) (int, error) {
	n := copy(out, c.buf[c.pos:])
	c.pos += n
	return n, nil
}

// ReadByte reads and returns a single byte, advancing the position by
// one. It returns io.EOF if no bytes remain.
func (c *Cursor) ReadByte() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, io.EOF
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// ReadExact reads exactly len(out) bytes into out. If fewer remain, it
// copies what it can, advances the position to the end of the buffer,
// and returns io.ErrUnexpectedEOF.
func (c *Cursor) ReadExact(out []byte) error {
	n := copy(out, c.buf[c.pos:])
	c.pos += n
	if n != len(out) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

// Peek returns the next n bytes without advancing the position. It
// returns io.ErrUnexpectedEOF if fewer than n bytes remain.
func (c *Cursor) Peek(n int) ([]byte, error) {
	if c.Len() < n {
		return nil, io.ErrUnexpectedEOF
	}
	return c.buf[c.pos : c.pos+n], nil
}

// Remaining returns the unread tail of the buffer without advancing the
// position. It's meant for cases like a CAR frame, where a block's CID
// has just been read off the front of a self-contained byte slice and
// the caller wants whatever's left as the block's opaque payload.
func (c *Cursor) Remaining() []byte {
	return c.buf[c.pos:]
}

// Take returns a sub-cursor that reads at most limit further bytes. As
// the sub-cursor is read, the parent Cursor's position advances in
// lockstep, so the parent is safe to continue reading from once the
// sub-cursor goes out of use — it picks up exactly where the sub-cursor
// left off. A sub-cursor that was not fully drained does not skip the
// parent ahead to its limit.
func (c *Cursor) Take(limit int) *Taken {
	end := c.pos + limit
	if end > len(c.buf) {
		end = len(c.buf)
	}
	return &Taken{parent: c, end: end}
}

// Taken is a nested, exclusive view produced by Cursor.Take. Reading from
// a Taken advances its parent Cursor's position.
type Taken struct {
	parent *Cursor
	end    int
}

// Len returns the number of unread bytes remaining within the taken
// limit.
func (t *Taken) Len() int {
	return t.end - t.parent.pos
}

// Read copies up to len(out) bytes, never crossing the taken limit.
func (t *Taken) Read(out []byte) (int, error) {
	avail := t.Len()
	if avail <= 0 {
		return 0, nil
	}
	if len(out) > avail {
		out = out[:avail]
	}
	return t.parent.Read(out)
}

// ReadByte reads a single byte, failing with io.EOF once the taken limit
// is reached even if the parent has more data beyond it.
func (t *Taken) ReadByte() (byte, error) {
	if t.Len() <= 0 {
		return 0, io.EOF
	}
	return t.parent.ReadByte()
}

// ReadExact reads exactly len(out) bytes, failing with
// io.ErrUnexpectedEOF if that would cross the taken limit.
func (t *Taken) ReadExact(out []byte) error {
	if len(out) > t.Len() {
		// Advance to the end of what's available so the failure mode
		// matches Cursor.ReadExact's "consume everything you can".
		rest := make([]byte, t.Len())
		_, _ = t.parent.Read(rest)
		return io.ErrUnexpectedEOF
	}
	return t.parent.ReadExact(out)
}

// ReadToEnd appends all remaining bytes within the taken limit to sink,
// returning the extended slice.
func (t *Taken) ReadToEnd(sink []byte) ([]byte, error) {
	n := t.Len()
	if n <= 0 {
		return sink, nil
	}
	start := len(sink)
	sink = append(sink, make([]byte, n)...)
	if err := t.ReadExact(sink[start:]); err != nil {
		return sink, err
	}
	return sink, nil
}
