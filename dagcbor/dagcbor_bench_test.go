package dagcbor

import (
	"testing"

	"github.com/go-firehose/ipldcodec/cursor"
)

// buildSyntheticFeed hand-builds a DAG-CBOR map shaped like a small
// firehose commit event: a few text fields plus a nested list of repeated
// operation records. This package has no encoder, so benchmark input is
// built directly at the byte level rather than marshaled — it stands in
// for the kind of corpus the teacher's own large-benchmark fixtures
// (twitter.json) drove its encoder/decoder pair with.
func buildSyntheticFeed(n int) []byte {
	text := func(s string) []byte {
		out := cborTextHeader(len(s))
		return append(out, s...)
	}

	oneOp := func() []byte {
		out := []byte{0xa2} // map, 2 pairs
		out = append(out, text("op")...)
		out = append(out, text("create")...)
		out = append(out, text("collection")...)
		out = append(out, text("app.bsky.feed.post")...)
		return out
	}

	var items []byte
	items = append(items, cborArrayHeader(n)...)
	for i := 0; i < n; i++ {
		items = append(items, oneOp()...)
	}

	var out []byte
	out = append(out, 0xa2) // map, 2 pairs
	out = append(out, text("repo")...)
	out = append(out, text("did:plc:synthetic")...)
	out = append(out, text("ops")...)
	out = append(out, items...)
	return out
}

func cborTextHeader(n int) []byte {
	switch {
	case n <= 23:
		return []byte{0x60 | byte(n)}
	case n <= 0xff:
		return []byte{0x78, byte(n)}
	default:
		return []byte{0x79, byte(n >> 8), byte(n)}
	}
}

func cborArrayHeader(n int) []byte {
	switch {
	case n <= 23:
		return []byte{0x80 | byte(n)}
	case n <= 0xff:
		return []byte{0x98, byte(n)}
	default:
		return []byte{0x99, byte(n >> 8), byte(n)}
	}
}

func BenchmarkDecodeSyntheticFeed(b *testing.B) {
	data := buildSyntheticFeed(50)
	b.SetBytes(int64(len(data)))
	for b.Loop() {
		if _, err := Decode(cursor.New(data)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeSyntheticFeedLarge(b *testing.B) {
	data := buildSyntheticFeed(2000)
	b.SetBytes(int64(len(data)))
	for b.Loop() {
		if _, err := Decode(cursor.New(data)); err != nil {
			b.Fatal(err)
		}
	}
}
