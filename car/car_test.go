package car

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"io"
	"testing"

	"github.com/go-firehose/ipldcodec/cid"
	"github.com/go-firehose/ipldcodec/cursor"
	"github.com/go-firehose/ipldcodec/multihash"
	"github.com/go-firehose/ipldcodec/varint"
)

func mustCid(t *testing.T, codec uint64, preimage []byte) cid.Cid {
	t.Helper()
	sum := sha256.Sum256(preimage)
	m, err := multihash.Wrap(multihash.SHA2_256, sum[:])
	if err != nil {
		t.Fatal(err)
	}
	return cid.NewV1(codec, m)
}

// encodeFrame prepends a varint length header to payload, the framing
// every CAR header/block uses.
func encodeFrame(payload []byte) []byte {
	var lenBuf [9]byte
	lb, _ := varint.Encode(uint64(len(payload)), lenBuf[:], varint.W64)
	return append(append([]byte{}, lb...), payload...)
}

// The helpers below build just enough hand-rolled DAG-CBOR to construct
// CAR headers for tests, since this module deliberately has no encoder.

func cborUint(n uint64) []byte {
	switch {
	case n <= 23:
		return []byte{byte(n)}
	case n <= 0xff:
		return []byte{0x18, byte(n)}
	case n <= 0xffff:
		return []byte{0x19, byte(n >> 8), byte(n)}
	default:
		return []byte{0x1a, byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	}
}

func cborTextKey(s string) []byte {
	out := []byte{0x60 | byte(len(s))}
	return append(out, s...)
}

// cborBytesHeader builds a major-2 (byte string) header for a payload of
// length n, using the shortest minimal form.
func cborBytesHeader(n int) []byte {
	switch {
	case n <= 23:
		return []byte{0x40 | byte(n)}
	case n <= 0xff:
		return []byte{0x58, byte(n)}
	default:
		return []byte{0x59, byte(n >> 8), byte(n)}
	}
}

func cborLink(c cid.Cid) []byte {
	raw := cid.WriteBytes(c, nil)
	body := append([]byte{0x00}, raw...)
	out := []byte{0xd8, 0x2a} // tag 42
	out = append(out, cborBytesHeader(len(body))...)
	return append(out, body...)
}

func cborHeader(version uint64, roots []cid.Cid) []byte {
	var out []byte
	out = append(out, 0xa0|2) // map, 2 pairs
	out = append(out, cborTextKey("version")...)
	out = append(out, cborUint(version)...)
	out = append(out, cborTextKey("roots")...)
	out = append(out, 0x80|byte(len(roots)))
	for _, r := range roots {
		out = append(out, cborLink(r)...)
	}
	return out
}

func TestReadHeaderAndBlocks(t *testing.T) {
	root := mustCid(t, 0x71, []byte("root"))
	header := cborHeader(1, []cid.Cid{root})

	var stream []byte
	stream = append(stream, encodeFrame(header)...)

	blockCid := root
	payload := []byte("block payload bytes")
	var block []byte
	block = append(block, cid.WriteBytes(blockCid, nil)...)
	block = append(block, payload...)
	stream = append(stream, encodeFrame(block)...)

	r, err := NewReader(cursor.New(stream))
	if err != nil {
		t.Fatal(err)
	}
	if r.Header().Version != 1 {
		t.Fatalf("Version = %d, want 1", r.Header().Version)
	}
	if len(r.Header().Roots) != 1 || !r.Header().Roots[0].Equal(root) {
		t.Fatalf("Roots mismatch: %+v", r.Header().Roots)
	}

	gotCid, gotPayload, err := r.NextBlock()
	if err != nil {
		t.Fatal(err)
	}
	if !gotCid.Equal(blockCid) {
		t.Fatalf("block cid mismatch")
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Fatalf("payload mismatch: got %q, want %q", gotPayload, payload)
	}

	_, _, err = r.NextBlock()
	if err != io.EOF {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

// S8: a CAR header declaring version 2 is rejected.
func TestS8RejectsUnsupportedVersion(t *testing.T) {
	root := mustCid(t, 0x71, []byte("root"))
	header := cborHeader(2, []cid.Cid{root})
	stream := encodeFrame(header)

	_, err := NewReader(cursor.New(stream))
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("err = %v, want ErrUnsupportedVersion", err)
	}
}

func TestRejectsEmptyRoots(t *testing.T) {
	header := cborHeader(1, nil)
	stream := encodeFrame(header)

	_, err := NewReader(cursor.New(stream))
	if !errors.Is(err, ErrEmptyCar) {
		t.Fatalf("err = %v, want ErrEmptyCar", err)
	}
}

func TestRejectsOversizedFrame(t *testing.T) {
	root := mustCid(t, 0x71, []byte("root"))
	header := cborHeader(1, []cid.Cid{root})
	stream := encodeFrame(header)

	small := ReaderOptions{MaxFrameSize: len(header) - 1}
	_, err := small.NewReader(cursor.New(stream))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestEmptyStreamHasNoHeader(t *testing.T) {
	_, err := NewReader(cursor.New(nil))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err = %v, want io.ErrUnexpectedEOF", err)
	}
}
