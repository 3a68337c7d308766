package multihash

import (
	"encoding/binary"
	"fmt"

	sha256simd "github.com/minio/sha256-simd"
	"github.com/spaolacci/murmur3"
	"lukechampine.com/blake3"
)

// ErrUnsupportedCode is returned by SumOf and Verify when asked to hash
// with a code this package doesn't implement a hash function for.
// Reading and writing multihashes never needs this — only the
// supplemental SumOf/Verify helpers below, which actually run a hash
// function rather than just framing a pre-computed digest.
type ErrUnsupportedCode Code

func (e ErrUnsupportedCode) Error() string {
	return fmt.Sprintf("multihash: unsupported code for hashing: 0x%x (%s)", uint64(e), CodecName(Code(e)))
}

// SumOf hashes preimage with the algorithm named by code and wraps the
// result as a Multihash. It supports SHA2_256, BLAKE3 (64-byte digest),
// and MURMUR3_X64_64 — the three hash codes a firehose consumer is
// likely to need when verifying CAR block integrity.
func SumOf(code Code, preimage []byte) (Multihash, error) {
	switch code {
	case SHA2_256:
		sum := sha256simd.Sum256(preimage)
		return Wrap(code, sum[:])
	case BLAKE3:
		sum := blake3.Sum512(preimage)
		return Wrap(code, sum[:])
	case MURMUR3_X64_64:
		// multicodec murmur3-x64-64 is the first 8 bytes of a murmur3
		// x64-128 hash.
		h1, _ := murmur3.Sum128(preimage)
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], h1)
		return Wrap(code, buf[:])
	default:
		return Multihash{}, ErrUnsupportedCode(code)
	}
}

// Verify recomputes the hash of preimage using mh's code and reports
// whether it matches mh's stored digest. This is what a CAR block
// consumer runs before trusting a block's bytes: the block's CID names
// a multihash, and Verify confirms the block payload actually hashes to
// it.
func Verify(mh Multihash, preimage []byte) (bool, error) {
	recomputed, err := SumOf(mh.Code(), preimage)
	if err != nil {
		return false, err
	}
	return recomputed.Equal(mh), nil
}
