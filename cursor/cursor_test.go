package cursor

import (
	"bytes"
	"io"
	"testing"
)

func TestReadByte(t *testing.T) {
	c := New([]byte{0x01, 0x02})
	b, err := c.ReadByte()
	if err != nil || b != 0x01 {
		t.Fatalf("ReadByte = %v, %v", b, err)
	}
	b, err = c.ReadByte()
	if err != nil || b != 0x02 {
		t.Fatalf("ReadByte = %v, %v", b, err)
	}
	if _, err := c.ReadByte(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReadExactShort(t *testing.T) {
	c := New([]byte{0x01, 0x02})
	out := make([]byte, 3)
	if err := c.ReadExact(out); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected cursor drained, Len() = %d", c.Len())
	}
}

func TestPeekDoesNotAdvance(t *testing.T) {
	c := New([]byte{0xaa, 0xbb, 0xcc})
	peeked, err := c.Peek(2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(peeked, []byte{0xaa, 0xbb}) {
		t.Fatalf("Peek = %x", peeked)
	}
	if c.Len() != 3 {
		t.Fatalf("Peek should not advance, Len() = %d", c.Len())
	}
}

func TestRemaining(t *testing.T) {
	c := New([]byte{0x01, 0x02, 0x03})
	_, _ = c.ReadByte()
	if !bytes.Equal(c.Remaining(), []byte{0x02, 0x03}) {
		t.Fatalf("Remaining = %x", c.Remaining())
	}
}

func TestTakeBoundsNestedReads(t *testing.T) {
	c := New([]byte{0x01, 0x02, 0x03, 0x04, 0x05})
	sub := c.Take(2)
	if sub.Len() != 2 {
		t.Fatalf("sub.Len() = %d, want 2", sub.Len())
	}
	b, err := sub.ReadByte()
	if err != nil || b != 0x01 {
		t.Fatalf("sub.ReadByte() = %v, %v", b, err)
	}
	b, err = sub.ReadByte()
	if err != nil || b != 0x02 {
		t.Fatalf("sub.ReadByte() = %v, %v", b, err)
	}
	if _, err := sub.ReadByte(); err != io.EOF {
		t.Fatalf("sub should be exhausted at its limit, got %v", err)
	}
	// parent picks up exactly where the sub-cursor's limit ended.
	b, err = c.ReadByte()
	if err != nil || b != 0x03 {
		t.Fatalf("parent.ReadByte() after Take = %v, %v", b, err)
	}
}

func TestTakeReadExactCrossingLimit(t *testing.T) {
	c := New([]byte{0x01, 0x02, 0x03, 0x04})
	sub := c.Take(2)
	out := make([]byte, 3)
	if err := sub.ReadExact(out); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
	// sub consumed everything within its limit; parent continues after it.
	b, err := c.ReadByte()
	if err != nil || b != 0x03 {
		t.Fatalf("parent.ReadByte() after overrun Take = %v, %v", b, err)
	}
}

func TestTakeReadToEnd(t *testing.T) {
	c := New([]byte{0xaa, 0xbb, 0xcc, 0xdd})
	sub := c.Take(3)
	out, err := sub.ReadToEnd(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, []byte{0xaa, 0xbb, 0xcc}) {
		t.Fatalf("ReadToEnd = %x", out)
	}
	b, err := c.ReadByte()
	if err != nil || b != 0xdd {
		t.Fatalf("parent.ReadByte() after ReadToEnd = %v, %v", b, err)
	}
}
