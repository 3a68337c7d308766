/*
Package car reads CAR v1 (Content-Addressable aRchive) files: a
length-delimited CBOR header followed by a sequence of length-delimited
(CID, payload) blocks.

https://ipld.io/specs/transport/car/carv1/

Framing is grounded on the same peek/read-uvarint/read-exact shape used
by ipld/go-car's util.LdRead: check for EOF before trying to read a
length, since a clean end of input after the last block is not an error.
*/
package car

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-firehose/ipldcodec/cid"
	"github.com/go-firehose/ipldcodec/cursor"
	"github.com/go-firehose/ipldcodec/dagcbor"
	"github.com/go-firehose/ipldcodec/varint"
)

var (
	// ErrUnsupportedVersion is returned when a CAR header's "version"
	// field isn't 1 — this package only reads CAR v1.
	ErrUnsupportedVersion = errors.New("car: unsupported version")

	// ErrEmptyCar is returned when a CAR header has no roots.
	ErrEmptyCar = errors.New("car: empty roots")

	// ErrFrameTooLarge is returned when a length-delimited frame's
	// declared length exceeds the reader's MaxFrameSize.
	ErrFrameTooLarge = errors.New("car: frame too large")

	// ErrMalformedHeader is returned when the header value decodes as
	// CBOR but isn't a map with "version" and "roots" fields of the
	// right shape.
	ErrMalformedHeader = errors.New("car: malformed header")
)

// Header is a decoded CAR v1 header: always version 1, with one or more
// root CIDs.
type Header struct {
	Version uint64
	Roots   []cid.Cid
}

// ReaderOptions controls resource limits applied while reading a CAR
// file.
type ReaderOptions struct {
	// MaxFrameSize caps the declared length of any length-delimited
	// frame (header or block). A hostile producer declaring an enormous
	// length fails immediately instead of driving an equally enormous
	// allocation.
	MaxFrameSize int
}

// DefaultReaderOptions are used by NewReader. MaxFrameSize defaults to
// 4 MiB, matching the hard cap spec.md requires.
var DefaultReaderOptions = ReaderOptions{
	MaxFrameSize: 4 * 1024 * 1024,
}

// Reader reads successive blocks out of a CAR v1 byte stream. It is not
// safe for concurrent use: a Reader has exclusive, sequential access to
// its underlying Cursor.
type Reader struct {
	c       *cursor.Cursor
	opts    ReaderOptions
	header  Header
	scratch []byte
}

// NewReader opens a CAR v1 reader over c using DefaultReaderOptions,
// decoding and validating the header immediately.
func NewReader(c *cursor.Cursor) (*Reader, error) {
	return DefaultReaderOptions.NewReader(c)
}

// NewReader opens a CAR v1 reader over c using these options.
func (o ReaderOptions) NewReader(c *cursor.Cursor) (*Reader, error) {
	r := &Reader{c: c, opts: o}
	frame, err := r.readFrame()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: no header", io.ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("car: header: %w", err)
	}
	hv, err := dagcbor.Decode(cursor.New(frame))
	if err != nil {
		return nil, fmt.Errorf("car: header: %w", err)
	}
	header, err := parseHeader(hv)
	if err != nil {
		return nil, err
	}
	r.header = header
	return r, nil
}

// Header returns the CAR file's header.
func (r *Reader) Header() *Header {
	return &r.header
}

// NextBlock reads the next (CID, payload) block. It returns io.EOF, with
// a zero CID and nil payload, once the underlying cursor is exhausted —
// the caller's signal to stop iterating.
//
// The returned payload slice aliases the Reader's internal scratch
// buffer and is only valid until the next call to NextBlock.
func (r *Reader) NextBlock() (cid.Cid, []byte, error) {
	frame, err := r.readFrame()
	if err != nil {
		if err == io.EOF {
			return cid.Cid{}, nil, io.EOF
		}
		return cid.Cid{}, nil, fmt.Errorf("car: block: %w", err)
	}
	fc := cursor.New(frame)
	blockCid, err := cid.ReadBytes(fc)
	if err != nil {
		return cid.Cid{}, nil, fmt.Errorf("car: block: %w", err)
	}
	return blockCid, fc.Remaining(), nil
}

// readFrame reads the next length-delimited region: varint(length) ‖
// bytes[length]. A clean EOF before the length varint starts is
// reported as io.EOF (end of stream); anything else short is
// io.ErrUnexpectedEOF, same as ipld-go-car's LdRead.
func (r *Reader) readFrame() ([]byte, error) {
	if _, err := r.c.Peek(1); err != nil {
		return nil, io.EOF
	}
	length, err := varint.ReadFrom(r.c, varint.W64)
	if err != nil {
		return nil, err
	}
	if length > uint64(r.opts.MaxFrameSize) {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFrameTooLarge, length, r.opts.MaxFrameSize)
	}
	if uint64(cap(r.scratch)) < length {
		r.scratch = make([]byte, length)
	} else {
		r.scratch = r.scratch[:length]
	}
	if err := r.c.ReadExact(r.scratch); err != nil {
		return nil, err
	}
	return r.scratch, nil
}

func parseHeader(hv dagcbor.Value) (Header, error) {
	m, err := hv.AsMap()
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	versionVal, ok := m["version"]
	if !ok {
		return Header{}, fmt.Errorf("%w: missing \"version\"", ErrMalformedHeader)
	}
	version, err := versionVal.AsU64()
	if err != nil {
		return Header{}, fmt.Errorf("%w: \"version\": %v", ErrMalformedHeader, err)
	}
	if version != 1 {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	rootsVal, ok := m["roots"]
	if !ok {
		return Header{}, fmt.Errorf("%w: missing \"roots\"", ErrMalformedHeader)
	}
	rootsList, err := rootsVal.AsList()
	if err != nil {
		return Header{}, fmt.Errorf("%w: \"roots\": %v", ErrMalformedHeader, err)
	}
	if len(rootsList) == 0 {
		return Header{}, ErrEmptyCar
	}

	roots := make([]cid.Cid, 0, len(rootsList))
	for i, rv := range rootsList {
		c, err := rv.AsCid()
		if err != nil {
			return Header{}, fmt.Errorf("%w: roots[%d]: %v", ErrMalformedHeader, i, err)
		}
		roots = append(roots, c)
	}

	return Header{Version: version, Roots: roots}, nil
}
