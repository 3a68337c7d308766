/*
Package cid implements Content Identifiers as used by IPLD/IPFS and, in
turn, the AT Protocol firehose: a version, a codec, and a multihash.

https://github.com/multiformats/cid

Two wire shapes exist. CIDv0 is a fixed 34-byte legacy form with no
version or codec prefix — it's always DAG-PB over SHA2-256. CIDv1 is
self-describing: varint(version) ‖ varint(codec) ‖ multihash. This
package reads both but, per the firehose's own convention, always writes
the CIDv1 form — a v0 value read off the wire round-trips through
ToV1 before being re-encoded.
*/
package cid

import (
	"errors"
	"fmt"

	"github.com/multiformats/go-multibase"

	"github.com/go-firehose/ipldcodec/cursor"
	"github.com/go-firehose/ipldcodec/multihash"
	"github.com/go-firehose/ipldcodec/varint"
)

// Version is the CID version: v0 (legacy, fixed shape) or v1
// (self-describing).
type Version int

const (
	V0 Version = 0
	V1 Version = 1
)

func (v Version) String() string {
	switch v {
	case V0:
		return "v0"
	case V1:
		return "v1"
	default:
		return fmt.Sprintf("invalid(%d)", int(v))
	}
}

// DAG_PB is the multicodec code for the MerkleDAG protobuf codec. It is
// the only codec a CIDv0 may carry.
const DAG_PB uint64 = 0x70

// ErrInvalidCid is returned for any CID whose bytes don't conform to the
// v0 or v1 shapes described above.
var ErrInvalidCid = errors.New("cid: invalid")

// Cid is a versioned content identifier: version + codec + multihash.
//
// A v0 Cid always has Codec() == DAG_PB and a SHA2-256, 32-byte hash; a
// v1 Cid's codec is unconstrained.
type Cid struct {
	version Version
	codec   uint64
	hash    multihash.Multihash
}

// NewV0 builds a CIDv0 from hash. It fails with ErrInvalidCid unless hash
// is a 32-byte SHA2-256 digest — the only shape CIDv0 permits.
func NewV0(hash multihash.Multihash) (Cid, error) {
	if hash.Code() != multihash.SHA2_256 || hash.Size() != 32 {
		return Cid{}, fmt.Errorf("%w: v0 requires 32-byte sha2-256, got %s/%d bytes", ErrInvalidCid, multihash.CodecName(hash.Code()), hash.Size())
	}
	return Cid{version: V0, codec: DAG_PB, hash: hash}, nil
}

// NewV1 builds a CIDv1 with the given codec and hash. Unlike v0, v1
// places no constraint on either.
func NewV1(codec uint64, hash multihash.Multihash) Cid {
	return Cid{version: V1, codec: codec, hash: hash}
}

// Version returns the CID's version.
func (c Cid) Version() Version { return c.version }

// Codec returns the CID's multicodec content codec.
func (c Cid) Codec() uint64 { return c.codec }

// Hash returns the CID's multihash.
func (c Cid) Hash() multihash.Multihash { return c.hash }

// ToV1 returns c unchanged if it is already v1, or an equivalent v1 Cid
// (same codec, same hash) if c is v0.
func (c Cid) ToV1() Cid {
	if c.version == V0 {
		return Cid{version: V1, codec: c.codec, hash: c.hash}
	}
	return c
}

// Equal reports whether two CIDs have the same version, codec, and hash.
func (c Cid) Equal(o Cid) bool {
	return c.version == o.version && c.codec == o.codec && c.hash.Equal(o.hash)
}

// ReadBytes decodes a Cid from c. It detects CIDv0 by peeking the first
// two bytes: 0x12 0x20 (varint(18) ‖ varint(32), the sha2-256/32-byte
// multihash prefix) is the only byte pair that is legal as v0 but would
// be nonsensical as v1 (version 18 doesn't exist), so that pair always
// means v0. Any other input is parsed as v1; an explicit version byte of
// 0 in that path is rejected — v0 only has the implicit, prefix-free
// form.
func ReadBytes(c *cursor.Cursor) (Cid, error) {
	if peek, err := c.Peek(2); err == nil && peek[0] == 0x12 && peek[1] == 0x20 {
		var raw [34]byte
		if err := c.ReadExact(raw[:]); err != nil {
			return Cid{}, fmt.Errorf("cid: v0: %w", err)
		}
		hash, err := multihash.Wrap(multihash.SHA2_256, raw[2:])
		if err != nil {
			return Cid{}, fmt.Errorf("cid: v0: %w", err)
		}
		return NewV0(hash)
	}

	version, err := varint.ReadFrom(c, varint.W64)
	if err != nil {
		return Cid{}, fmt.Errorf("cid: version: %w", err)
	}
	if version != uint64(V1) {
		return Cid{}, fmt.Errorf("%w: explicit version %d", ErrInvalidCid, version)
	}
	codec, err := varint.ReadFrom(c, varint.W64)
	if err != nil {
		return Cid{}, fmt.Errorf("cid: codec: %w", err)
	}
	hash, err := multihash.Read(c)
	if err != nil {
		return Cid{}, fmt.Errorf("cid: %w", err)
	}
	return NewV1(codec, hash), nil
}

// WriteBytes appends the CIDv1 wire encoding of c to dst, returning the
// extended slice. A v0 Cid is first converted with ToV1 — only the v1
// shape is ever written.
//
// c.codec is an unconstrained uint64 (spec: v1 places no restriction on
// codec), so the version and codec varints are encoded with a 9-byte
// buffer — the same width ReadBytes/varint.ReadFrom accepts on the way
// in — rather than the 5-byte buffer that would silently truncate a
// large codec and produce a corrupted encoding.
func WriteBytes(c Cid, dst []byte) []byte {
	c = c.ToV1()
	var buf [9]byte
	b, err := varint.Encode(uint64(c.version), buf[:], varint.W64)
	if err != nil {
		panic(fmt.Sprintf("cid: version %d does not fit in a 9-byte varint: %v", c.version, err))
	}
	dst = append(dst, b...)
	b, err = varint.Encode(c.codec, buf[:], varint.W64)
	if err != nil {
		panic(fmt.Sprintf("cid: codec %d does not fit in a 9-byte varint: %v", c.codec, err))
	}
	dst = append(dst, b...)
	return multihash.Write(c.hash, dst)
}

// String returns the CIDv1 base32-multibase textual form: 'b' followed
// by lowercase, unpadded RFC 4648 base32 of the v1 byte encoding.
func (c Cid) String() string {
	s, err := c.EncodeWithBase(multibase.Base32)
	if err != nil {
		// multibase.Base32 always succeeds for non-empty input; this
		// path only exists so String can satisfy fmt.Stringer without
		// an error return.
		return ""
	}
	return s
}

// EncodeWithBase returns c's CIDv1 bytes encoded in the given multibase.
// This is a supplemental convenience beyond the default base32 textual
// form. A v0 Cid is converted with ToV1 first, so the legacy CIDv0
// textual form is never produced.
func EncodeWithBase(c Cid, base multibase.Encoding) (string, error) {
	return multibase.Encode(base, WriteBytes(c.ToV1(), nil))
}

// EncodeWithBase is the method form of the package-level function of the
// same name.
func (c Cid) EncodeWithBase(base multibase.Encoding) (string, error) {
	return EncodeWithBase(c, base)
}
