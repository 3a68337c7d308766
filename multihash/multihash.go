/*
Package multihash implements the multiformats multihash wire format:
varint(code) ‖ varint(size) ‖ digest[size bytes].

https://github.com/multiformats/multihash

Digests are stored in a fixed-capacity array rather than a slice. The
spec this package implements is generic over a compile-time maximum
digest capacity N; Go has no const generics, so MaxDigestLen fixes N at
64 bytes, which comfortably covers every hash in the pinned registry
(SHA2-256 at 32 bytes, BLAKE3 and SHA2-512 at up to 64).
*/
package multihash

import (
	"errors"
	"fmt"

	mh "github.com/multiformats/go-multihash"

	"github.com/go-firehose/ipldcodec/cursor"
	"github.com/go-firehose/ipldcodec/varint"
)

// Code identifies the hash function used to produce a digest.
type Code uint64

// Pinned multicodec hash codes. SHA2_256 is the only one spec.md requires;
// the rest back the supplemental SumOf/Verify helpers in sum.go.
const (
	SHA2_256       Code = 0x12
	BLAKE3         Code = 0x1e
	MURMUR3_X64_64 Code = 0x22
)

// MaxDigestLen is the fixed digest capacity every Multihash is allocated
// with, standing in for the generic "N" of spec.md's Multihash[N].
const MaxDigestLen = 64

// ErrInvalidSize is returned when a multihash's declared size exceeds
// MaxDigestLen or 255.
var ErrInvalidSize = errors.New("multihash: invalid size")

// Multihash is a (code, size, digest) triple. Only digest[:size] is
// meaningful; bytes at positions >= size are unspecified and ignored by
// Equal.
type Multihash struct {
	code   Code
	size   uint8
	digest [MaxDigestLen]byte
}

// Wrap builds a Multihash from a hash code and a digest. It fails with
// ErrInvalidSize if digest is longer than MaxDigestLen.
func Wrap(code Code, digest []byte) (Multihash, error) {
	if len(digest) > MaxDigestLen || len(digest) > 255 {
		return Multihash{}, fmt.Errorf("%w: %d bytes", ErrInvalidSize, len(digest))
	}
	var m Multihash
	m.code = code
	m.size = uint8(len(digest))
	copy(m.digest[:], digest)
	return m, nil
}

// Code returns the hash function identifier.
func (m Multihash) Code() Code { return m.code }

// Size returns the digest length in bytes.
func (m Multihash) Size() uint8 { return m.size }

// Digest returns the meaningful portion of the digest (the first Size
// bytes). The returned slice aliases the Multihash's internal storage
// and must not be retained past the Multihash's mutation (Multihash is
// normally used by value, so in practice this is safe to hold onto).
func (m *Multihash) Digest() []byte {
	return m.digest[:m.size]
}

// Truncate lowers the effective size to newSize without rehashing. It
// fails if newSize is greater than the current size — Truncate can only
// shrink.
func (m *Multihash) Truncate(newSize uint8) error {
	if newSize > m.size {
		return fmt.Errorf("%w: truncate to %d from %d", ErrInvalidSize, newSize, m.size)
	}
	m.size = newSize
	return nil
}

// Resize produces a copy of m with a new maximum digest capacity of
// maxLen bytes, failing if the current digest is longer than that. Since
// this package fixes capacity at MaxDigestLen, Resize only validates;
// it does not actually change the returned value's storage layout.
func (m Multihash) Resize(maxLen int) (Multihash, error) {
	if int(m.size) > maxLen {
		return Multihash{}, fmt.Errorf("%w: digest of %d bytes doesn't fit in %d", ErrInvalidSize, m.size, maxLen)
	}
	return m, nil
}

// Equal reports whether two multihashes have the same code, size, and
// digest bytes (ignoring anything beyond size).
func (m Multihash) Equal(o Multihash) bool {
	if m.code != o.code || m.size != o.size {
		return false
	}
	for i := 0; i < int(m.size); i++ {
		if m.digest[i] != o.digest[i] {
			return false
		}
	}
	return true
}

// EncodedLen returns the number of bytes Write would emit.
//
// m.code is an unconstrained uint64 (the multihash spec places no limit
// on hash function codes), so it's measured with the same 9-byte
// capacity Write and ReadFrom use — the full range varint.ReadFrom
// accepts on decode — rather than a narrower buffer that could
// understate the length a large code actually needs.
func (m Multihash) EncodedLen() int {
	var buf [9]byte
	b, err := varint.Encode(uint64(m.code), buf[:], varint.W64)
	if err != nil {
		panic(fmt.Sprintf("multihash: code %d does not fit in a 9-byte varint: %v", m.code, err))
	}
	codeLen := len(b)
	b, err = varint.Encode(uint64(m.size), buf[:], varint.W64)
	if err != nil {
		panic(fmt.Sprintf("multihash: size %d does not fit in a 9-byte varint: %v", m.size, err))
	}
	sizeLen := len(b)
	return codeLen + sizeLen + int(m.size)
}

// Read decodes a Multihash from c: varint(code) ‖ varint(size) ‖
// digest[size]. It fails with ErrInvalidSize if size exceeds
// MaxDigestLen or 255, and io.ErrUnexpectedEOF on short input.
func Read(c cursor.Reader) (Multihash, error) {
	code, err := varint.ReadFrom(c, varint.W64)
	if err != nil {
		return Multihash{}, fmt.Errorf("multihash: code: %w", err)
	}
	size, err := varint.ReadFrom(c, varint.W64)
	if err != nil {
		return Multihash{}, fmt.Errorf("multihash: size: %w", err)
	}
	if size > MaxDigestLen || size > 255 {
		return Multihash{}, fmt.Errorf("%w: %d bytes", ErrInvalidSize, size)
	}
	var m Multihash
	m.code = Code(code)
	m.size = uint8(size)
	if err := c.ReadExact(m.digest[:size]); err != nil {
		return Multihash{}, fmt.Errorf("multihash: digest: %w", err)
	}
	return m, nil
}

// Write appends the wire encoding of m to dst and returns the extended
// slice.
//
// m.code is encoded with a 9-byte buffer for the same reason
// EncodedLen measures it that way: it's an unconstrained uint64, and a
// narrower buffer would silently drop the code's bytes on overflow
// instead of producing a correct — if larger — encoding.
func Write(m Multihash, dst []byte) []byte {
	var buf [9]byte
	b, err := varint.Encode(uint64(m.code), buf[:], varint.W64)
	if err != nil {
		panic(fmt.Sprintf("multihash: code %d does not fit in a 9-byte varint: %v", m.code, err))
	}
	dst = append(dst, b...)
	b, err = varint.Encode(uint64(m.size), buf[:], varint.W64)
	if err != nil {
		panic(fmt.Sprintf("multihash: size %d does not fit in a 9-byte varint: %v", m.size, err))
	}
	dst = append(dst, b...)
	dst = append(dst, m.digest[:m.size]...)
	return dst
}

// CodecName returns a human-readable name for code, drawn from the
// multiformats multicodec table (github.com/multiformats/go-multihash's
// registry), for use in diagnostics and error messages. It returns
// "unknown" if code isn't registered.
func CodecName(code Code) string {
	if name, ok := mh.Codes[uint64(code)]; ok {
		return name
	}
	return "unknown"
}
