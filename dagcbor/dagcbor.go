/*
Package dagcbor implements a read-only decoder for DAG-CBOR, the strictly
canonical CBOR subset used by IPLD and the AT Protocol firehose.

https://ipld.io/specs/codecs/dag-cbor/spec/

DAG-CBOR forbids everything that would make an encoding ambiguous:
non-minimal integer arguments, indefinite-length items, non-text map
keys, and duplicate map keys. This package enforces all of those on
decode. There is no encoder in this package's scope — values exist only
to be read and inspected via the As* accessors below.
*/
package dagcbor

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/x448/float16"

	"github.com/go-firehose/ipldcodec/cid"
	"github.com/go-firehose/ipldcodec/cursor"
	"github.com/go-firehose/ipldcodec/varint"
)

// Kind identifies which variant of the DAG-CBOR value sum a Value holds.
type Kind int

const (
	KindUnsigned Kind = iota
	KindNegative
	KindFloat
	KindText
	KindBytes
	KindList
	KindMap
	KindBool
	KindNull
	KindLink
)

func (k Kind) String() string {
	switch k {
	case KindUnsigned:
		return "unsigned"
	case KindNegative:
		return "negative"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindBool:
		return "bool"
	case KindNull:
		return "null"
	case KindLink:
		return "link"
	default:
		return "invalid"
	}
}

// linkTagNumber is the CBOR tag (42) that marks a byte string as an
// embedded CID, per the DAG-CBOR spec.
const linkTagNumber = 42

var (
	// ErrInvalidCode is returned for a major byte whose additional-info
	// field is reserved (28-31), or for a major-7 byte whose code isn't
	// one of the six DAG-CBOR permits (false, true, null, f16, f32, f64).
	ErrInvalidCode = errors.New("dagcbor: invalid code")

	// ErrUnknownTag is returned for any tag number other than 42.
	ErrUnknownTag = errors.New("dagcbor: unknown tag")

	// ErrDuplicateKey is returned when a map contains the same text key
	// twice.
	ErrDuplicateKey = errors.New("dagcbor: duplicate map key")

	// ErrNonTextKey is returned when a map key isn't a text string —
	// DAG-CBOR requires every map key to be text.
	ErrNonTextKey = errors.New("dagcbor: map key is not text")

	// ErrWrongKind is returned by an As* accessor when the Value isn't
	// the kind it expects.
	ErrWrongKind = errors.New("dagcbor: wrong kind")

	// ErrTooDeep is returned when decoding would nest containers or tags
	// deeper than DecodeOptions.MaxNestedLevels allows.
	ErrTooDeep = errors.New("dagcbor: nested too deep")
)

// Value is an immutable, decoded DAG-CBOR value. The zero Value is
// unsigned 0 (KindUnsigned is the zero Kind).
type Value struct {
	kind  Kind
	u     uint64
	i     int64
	f     float64
	text  string
	bytes []byte
	list  []Value
	m     map[string]Value
	b     bool
	link  cid.Cid
}

// Kind returns which variant of the value sum v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsU64 returns v's unsigned integer, failing with ErrWrongKind if v
// isn't KindUnsigned.
func (v Value) AsU64() (uint64, error) {
	if v.kind != KindUnsigned {
		return 0, fmt.Errorf("%w: want unsigned, got %s", ErrWrongKind, v.kind)
	}
	return v.u, nil
}

// AsI64 returns v's integer value. It accepts both KindUnsigned (widened
// to int64, failing if it overflows) and KindNegative, since callers
// commonly want "any CBOR integer" without caring which major type
// produced it.
func (v Value) AsI64() (int64, error) {
	switch v.kind {
	case KindNegative:
		return v.i, nil
	case KindUnsigned:
		if v.u > math.MaxInt64 {
			return 0, fmt.Errorf("%w: unsigned value %d overflows int64", ErrWrongKind, v.u)
		}
		return int64(v.u), nil
	default:
		return 0, fmt.Errorf("%w: want integer, got %s", ErrWrongKind, v.kind)
	}
}

// AsFloat returns v's float64, failing with ErrWrongKind if v isn't
// KindFloat.
func (v Value) AsFloat() (float64, error) {
	if v.kind != KindFloat {
		return 0, fmt.Errorf("%w: want float, got %s", ErrWrongKind, v.kind)
	}
	return v.f, nil
}

// AsBool returns v's boolean, failing with ErrWrongKind if v isn't
// KindBool.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, fmt.Errorf("%w: want bool, got %s", ErrWrongKind, v.kind)
	}
	return v.b, nil
}

// AsText returns v's string, failing with ErrWrongKind if v isn't
// KindText.
func (v Value) AsText() (string, error) {
	if v.kind != KindText {
		return "", fmt.Errorf("%w: want text, got %s", ErrWrongKind, v.kind)
	}
	return v.text, nil
}

// AsBytes returns v's byte string, failing with ErrWrongKind if v isn't
// KindBytes.
func (v Value) AsBytes() ([]byte, error) {
	if v.kind != KindBytes {
		return nil, fmt.Errorf("%w: want bytes, got %s", ErrWrongKind, v.kind)
	}
	return v.bytes, nil
}

// AsList returns v's elements, failing with ErrWrongKind if v isn't
// KindList.
func (v Value) AsList() ([]Value, error) {
	if v.kind != KindList {
		return nil, fmt.Errorf("%w: want list, got %s", ErrWrongKind, v.kind)
	}
	return v.list, nil
}

// AsMap returns v's key/value pairs, failing with ErrWrongKind if v
// isn't KindMap.
func (v Value) AsMap() (map[string]Value, error) {
	if v.kind != KindMap {
		return nil, fmt.Errorf("%w: want map, got %s", ErrWrongKind, v.kind)
	}
	return v.m, nil
}

// AsCid returns v's link, failing with ErrWrongKind if v isn't KindLink.
func (v Value) AsCid() (cid.Cid, error) {
	if v.kind != KindLink {
		return cid.Cid{}, fmt.Errorf("%w: want link, got %s", ErrWrongKind, v.kind)
	}
	return v.link, nil
}

// AsOptCid is AsCid, except a null value returns (zero, false, nil)
// instead of an error — the common shape of an optional link field in a
// decoded map.
func (v Value) AsOptCid() (cid.Cid, bool, error) {
	if v.IsNull() {
		return cid.Cid{}, false, nil
	}
	c, err := v.AsCid()
	if err != nil {
		return cid.Cid{}, false, err
	}
	return c, true, nil
}

// DecodeOptions controls the resource limits applied while decoding.
// Defaults mirror the teacher library's DecOptions: a reservation hint
// that bounds up-front allocation without bounding how large a
// legitimately long container can grow, and a nesting cap.
type DecodeOptions struct {
	// MaxContainerReserve caps the number of bytes reserved up front for
	// a byte string, text string, list, or map, regardless of the length
	// the peer declared. Decoding a genuinely longer container still
	// succeeds; it just grows past this reservation incrementally
	// instead of allocating it all at once.
	MaxContainerReserve int

	// MaxNestedLevels bounds the recursion depth across any combination
	// of arrays, maps, and tags.
	MaxNestedLevels int
}

// DefaultDecodeOptions are used by the package-level Decode function.
var DefaultDecodeOptions = DecodeOptions{
	MaxContainerReserve: 16 * 1024,
	MaxNestedLevels:     32,
}

// Decode reads one DAG-CBOR value from c using DefaultDecodeOptions.
func Decode(c cursor.Reader) (Value, error) {
	return DefaultDecodeOptions.Decode(c)
}

// Decode reads one DAG-CBOR value from c using these options.
func (o DecodeOptions) Decode(c cursor.Reader) (Value, error) {
	d := &decoder{opts: o}
	return d.value(c)
}

type decoder struct {
	opts  DecodeOptions
	depth int
}

func (d *decoder) enter() error {
	d.depth++
	if d.depth > d.opts.MaxNestedLevels {
		return ErrTooDeep
	}
	return nil
}

func (d *decoder) leave() { d.depth-- }

func readByte(c cursor.Reader) (byte, error) {
	b, err := c.ReadByte()
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return b, err
}

// readUint decodes a major byte's integer argument, enforcing minimality
// (spec.md §4.5's read_uint) and rejecting the reserved info values
// 28-31 — this is where the major-byte validator's "admit then reject
// downstream" behavior (spec.md §9) actually takes effect for majors
// 0-6; major 7's dispatch in (*decoder).value rejects 28-31 on its own.
func readUint(info byte, c cursor.Reader) (uint64, error) {
	switch {
	case info <= 23:
		return uint64(info), nil
	case info == 24:
		b, err := readByte(c)
		if err != nil {
			return 0, err
		}
		if b <= 23 {
			return 0, fmt.Errorf("%w: 1-byte argument %d fits in the info field", varint.ErrNotMinimal, b)
		}
		return uint64(b), nil
	case info == 25, info == 26, info == 27:
		n := 1 << (info - 24) // 2, 4, or 8 bytes
		buf := make([]byte, n)
		if err := c.ReadExact(buf); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		var v uint64
		for _, b := range buf {
			v = v<<8 | uint64(b)
		}
		var floor uint64
		switch n {
		case 2:
			floor = 255
		case 4:
			floor = 65535
		case 8:
			floor = 4294967295
		}
		if v <= floor {
			return 0, fmt.Errorf("%w: %d-byte argument %d fits in a shorter encoding", varint.ErrNotMinimal, n, v)
		}
		return v, nil
	default: // 28-31
		return 0, fmt.Errorf("%w: reserved info %d", ErrInvalidCode, info)
	}
}

func reserveLen(n uint64, perElem, guardBytes int) int {
	if perElem <= 0 {
		perElem = 1
	}
	maxCount := uint64(guardBytes / perElem)
	if n > maxCount {
		return int(maxCount)
	}
	return int(n)
}

func readRawBytes(c cursor.Reader, n uint64, guardBytes int) ([]byte, error) {
	const chunk = 4096
	buf := make([]byte, 0, reserveLen(n, 1, guardBytes))
	for remaining := n; remaining > 0; {
		take := remaining
		if take > chunk {
			take = chunk
		}
		start := len(buf)
		buf = append(buf, make([]byte, take)...)
		if err := c.ReadExact(buf[start:]); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		remaining -= take
	}
	return buf, nil
}

func (d *decoder) value(c cursor.Reader) (Value, error) {
	b, err := readByte(c)
	if err != nil {
		return Value{}, err
	}
	major := b >> 5
	info := b & 0x1f

	switch major {
	case 0: // unsigned int
		n, err := readUint(info, c)
		if err != nil {
			return Value{}, fmt.Errorf("dagcbor: unsigned: %w", err)
		}
		return Value{kind: KindUnsigned, u: n}, nil

	case 1: // negative int
		n, err := readUint(info, c)
		if err != nil {
			return Value{}, fmt.Errorf("dagcbor: negative: %w", err)
		}
		if n > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: negative argument %d overflows int64", varint.ErrOverflow, n)
		}
		return Value{kind: KindNegative, i: -1 - int64(n)}, nil

	case 2: // byte string
		n, err := readUint(info, c)
		if err != nil {
			return Value{}, fmt.Errorf("dagcbor: bytes: %w", err)
		}
		raw, err := readRawBytes(c, n, d.opts.MaxContainerReserve)
		if err != nil {
			return Value{}, fmt.Errorf("dagcbor: bytes: %w", err)
		}
		return Value{kind: KindBytes, bytes: raw}, nil

	case 3: // text string
		n, err := readUint(info, c)
		if err != nil {
			return Value{}, fmt.Errorf("dagcbor: text: %w", err)
		}
		raw, err := readRawBytes(c, n, d.opts.MaxContainerReserve)
		if err != nil {
			return Value{}, fmt.Errorf("dagcbor: text: %w", err)
		}
		return Value{kind: KindText, text: string(raw)}, nil

	case 4: // array
		n, err := readUint(info, c)
		if err != nil {
			return Value{}, fmt.Errorf("dagcbor: list: %w", err)
		}
		if err := d.enter(); err != nil {
			return Value{}, err
		}
		defer d.leave()
		items := make([]Value, 0, reserveLen(n, 32, d.opts.MaxContainerReserve))
		for i := uint64(0); i < n; i++ {
			item, err := d.value(c)
			if err != nil {
				return Value{}, fmt.Errorf("dagcbor: list[%d]: %w", i, err)
			}
			items = append(items, item)
		}
		return Value{kind: KindList, list: items}, nil

	case 5: // map
		n, err := readUint(info, c)
		if err != nil {
			return Value{}, fmt.Errorf("dagcbor: map: %w", err)
		}
		if err := d.enter(); err != nil {
			return Value{}, err
		}
		defer d.leave()
		m := make(map[string]Value, reserveLen(n, 64, d.opts.MaxContainerReserve))
		for i := uint64(0); i < n; i++ {
			keyVal, err := d.value(c)
			if err != nil {
				return Value{}, fmt.Errorf("dagcbor: map key %d: %w", i, err)
			}
			if keyVal.kind != KindText {
				return Value{}, fmt.Errorf("%w: got %s", ErrNonTextKey, keyVal.kind)
			}
			if _, exists := m[keyVal.text]; exists {
				return Value{}, fmt.Errorf("%w: %q", ErrDuplicateKey, keyVal.text)
			}
			val, err := d.value(c)
			if err != nil {
				return Value{}, fmt.Errorf("dagcbor: map[%q]: %w", keyVal.text, err)
			}
			m[keyVal.text] = val
		}
		return Value{kind: KindMap, m: m}, nil

	case 6: // tag
		n, err := readUint(info, c)
		if err != nil {
			return Value{}, fmt.Errorf("dagcbor: tag: %w", err)
		}
		if n != linkTagNumber {
			return Value{}, fmt.Errorf("%w: %d", ErrUnknownTag, n)
		}
		if err := d.enter(); err != nil {
			return Value{}, err
		}
		defer d.leave()
		return d.link(c)

	case 7: // special
		switch info {
		case 20:
			return Value{kind: KindBool, b: false}, nil
		case 21:
			return Value{kind: KindBool, b: true}, nil
		case 22:
			return Value{kind: KindNull}, nil
		case 25: // half precision, widened correctly via x448/float16
			buf := make([]byte, 2)
			if err := c.ReadExact(buf); err != nil {
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				return Value{}, fmt.Errorf("dagcbor: f16: %w", err)
			}
			bits := uint16(buf[0])<<8 | uint16(buf[1])
			return Value{kind: KindFloat, f: float64(float16.Frombits(bits).Float32())}, nil
		case 26: // single precision
			buf := make([]byte, 4)
			if err := c.ReadExact(buf); err != nil {
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				return Value{}, fmt.Errorf("dagcbor: f32: %w", err)
			}
			bits := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
			return Value{kind: KindFloat, f: float64(math.Float32frombits(bits))}, nil
		case 27: // double precision
			buf := make([]byte, 8)
			if err := c.ReadExact(buf); err != nil {
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				return Value{}, fmt.Errorf("dagcbor: f64: %w", err)
			}
			var bits uint64
			for _, bb := range buf {
				bits = bits<<8 | uint64(bb)
			}
			return Value{kind: KindFloat, f: math.Float64frombits(bits)}, nil
		default:
			return Value{}, fmt.Errorf("%w: major 7 code %d", ErrInvalidCode, info)
		}

	default:
		// unreachable: major is 3 bits, all 8 values handled above
		return Value{}, fmt.Errorf("%w: major %d", ErrInvalidCode, major)
	}
}

// link decodes the byte string following a tag-42 header: it must be a
// CBOR byte string (major 2) whose first byte is the 0x00 "identity"
// multibase prefix used only inside CBOR, followed by the CID's binary
// form.
func (d *decoder) link(c cursor.Reader) (Value, error) {
	b, err := readByte(c)
	if err != nil {
		return Value{}, fmt.Errorf("dagcbor: link: %w", err)
	}
	major := b >> 5
	info := b & 0x1f
	if major != 2 {
		return Value{}, fmt.Errorf("%w: link content must be a byte string, got major %d", cid.ErrInvalidCid, major)
	}
	n, err := readUint(info, c)
	if err != nil {
		return Value{}, fmt.Errorf("dagcbor: link: %w", err)
	}
	raw, err := readRawBytes(c, n, d.opts.MaxContainerReserve)
	if err != nil {
		return Value{}, fmt.Errorf("dagcbor: link: %w", err)
	}
	if len(raw) == 0 {
		return Value{}, fmt.Errorf("%w: empty link content", cid.ErrInvalidCid)
	}
	if raw[0] != 0x00 {
		return Value{}, fmt.Errorf("%w: link prefix 0x%02x, want 0x00", cid.ErrInvalidCid, raw[0])
	}
	parsed, err := cid.ReadBytes(cursor.New(raw[1:]))
	if err != nil {
		return Value{}, fmt.Errorf("dagcbor: link: %w", err)
	}
	return Value{kind: KindLink, link: parsed}, nil
}
