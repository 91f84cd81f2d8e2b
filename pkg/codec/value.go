package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/rhuss/modelserve/pkg/api"
)

// Value type tags.
const (
	TagInt    byte = 0x01
	TagFloat  byte = 0x02
	TagString byte = 0x03
	TagList   byte = 0x04
	TagDist   byte = 0x05
	TagBool   byte = 0x06
	TagLabels byte = 0x07
)

// maxDepth bounds list nesting so hostile input cannot exhaust the stack.
const maxDepth = 64

type encoder struct {
	buf []byte
}

func (e *encoder) u8(b byte) { e.buf = append(e.buf, b) }

func (e *encoder) u16(v uint16) { e.buf = binary.BigEndian.AppendUint16(e.buf, v) }

func (e *encoder) u32(v uint32) { e.buf = binary.BigEndian.AppendUint32(e.buf, v) }

func (e *encoder) u64(v uint64) { e.buf = binary.BigEndian.AppendUint64(e.buf, v) }

func (e *encoder) length(n int) error {
	if n > math.MaxUint32 {
		return fmt.Errorf("codec: length %d exceeds uint32", n)
	}
	e.u32(uint32(n))
	return nil
}

func (e *encoder) rawString(s string) error {
	if err := e.length(len(s)); err != nil {
		return err
	}
	e.buf = append(e.buf, s...)
	return nil
}

func (e *encoder) putInt(v int64) {
	e.u8(TagInt)
	e.u64(uint64(v))
}

func (e *encoder) putFloat(v float64) {
	e.u8(TagFloat)
	e.u64(math.Float64bits(v))
}

func (e *encoder) putString(s string) error {
	e.u8(TagString)
	return e.rawString(s)
}

func (e *encoder) putBool(b bool) {
	e.u8(TagBool)
	if b {
		e.u8(1)
	} else {
		e.u8(0)
	}
}

func (e *encoder) listHeader(n int) error {
	e.u8(TagList)
	return e.length(n)
}

func (e *encoder) value(v api.Value) error {
	switch v.Type() {
	case api.TypeInt:
		n, _ := v.AsInt()
		e.putInt(n)
	case api.TypeFloat:
		f, _ := v.AsFloat()
		e.putFloat(f)
	case api.TypeString:
		s, _ := v.AsString()
		return e.putString(s)
	case api.TypeList:
		items, _ := v.AsList()
		return e.values(items)
	default:
		return fmt.Errorf("codec: cannot encode invalid value")
	}
	return nil
}

func (e *encoder) values(vs []api.Value) error {
	if err := e.listHeader(len(vs)); err != nil {
		return err
	}
	for _, v := range vs {
		if err := e.value(v); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) dist(m map[string]float64) error {
	e.u8(TagDist)
	if err := e.length(len(m)); err != nil {
		return err
	}
	for _, k := range sortedKeys(m) {
		if err := e.rawString(k); err != nil {
			return err
		}
		e.u64(math.Float64bits(m[k]))
	}
	return nil
}

func (e *encoder) labels(m map[string]string) error {
	e.u8(TagLabels)
	if err := e.length(len(m)); err != nil {
		return err
	}
	for _, k := range sortedKeys(m) {
		if err := e.rawString(k); err != nil {
			return err
		}
		if err := e.rawString(m[k]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) fail(tag byte, reason string, err error) *DecodeError {
	return &DecodeError{Offset: d.off, Tag: tag, Reason: reason, Err: err}
}

func (d *decoder) remaining() int { return len(d.buf) - d.off }

func (d *decoder) need(tag byte, n int) error {
	if n < 0 || d.remaining() < n {
		return d.fail(tag, fmt.Sprintf("need %d bytes, have %d", n, d.remaining()), ErrTruncated)
	}
	return nil
}

func (d *decoder) u8(tag byte) (byte, error) {
	if err := d.need(tag, 1); err != nil {
		return 0, err
	}
	b := d.buf[d.off]
	d.off++
	return b, nil
}

func (d *decoder) u16(tag byte) (uint16, error) {
	if err := d.need(tag, 2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(d.buf[d.off:])
	d.off += 2
	return v, nil
}

func (d *decoder) u32(tag byte) (uint32, error) {
	if err := d.need(tag, 4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) u64(tag byte) (uint64, error) {
	if err := d.need(tag, 8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return v, nil
}

// count reads a uint32 element count and rejects counts that cannot fit in
// the remaining input, each element taking at least minSize bytes.
func (d *decoder) count(tag byte, minSize int) (int, error) {
	n, err := d.u32(tag)
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(minSize) > uint64(d.remaining()) {
		return 0, d.fail(tag, fmt.Sprintf("count %d exceeds remaining input", n), ErrTruncated)
	}
	return int(n), nil
}

func (d *decoder) rawString(tag byte) (string, error) {
	n, err := d.count(tag, 1)
	if err != nil {
		return "", err
	}
	s := string(d.buf[d.off : d.off+n])
	d.off += n
	return s, nil
}

func (d *decoder) expect(want byte) error {
	start := d.off
	tag, err := d.u8(want)
	if err != nil {
		return err
	}
	if tag != want {
		d.off = start
		if !knownTag(tag) {
			return d.fail(tag, "unknown value tag", ErrUnknownTag)
		}
		return d.fail(tag, fmt.Sprintf("expected tag 0x%02x", want), ErrUnexpectedTag)
	}
	return nil
}

func (d *decoder) readInt() (int64, error) {
	if err := d.expect(TagInt); err != nil {
		return 0, err
	}
	v, err := d.u64(TagInt)
	return int64(v), err
}

func (d *decoder) readFloat() (float64, error) {
	if err := d.expect(TagFloat); err != nil {
		return 0, err
	}
	v, err := d.u64(TagFloat)
	return math.Float64frombits(v), err
}

func (d *decoder) readString() (string, error) {
	if err := d.expect(TagString); err != nil {
		return "", err
	}
	return d.rawString(TagString)
}

func (d *decoder) readBool() (bool, error) {
	if err := d.expect(TagBool); err != nil {
		return false, err
	}
	b, err := d.u8(TagBool)
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		d.off--
		return false, d.fail(TagBool, fmt.Sprintf("invalid bool byte 0x%02x", b), ErrInvalidPayload)
	}
}

func (d *decoder) listHeader() (int, error) {
	if err := d.expect(TagList); err != nil {
		return 0, err
	}
	// The smallest element is a tag byte plus an empty length prefix.
	return d.count(TagList, 5)
}

func (d *decoder) value(depth int) (api.Value, error) {
	if depth > maxDepth {
		return api.Value{}, d.fail(TagList, "list nesting exceeds limit", ErrTooDeep)
	}
	if err := d.need(0, 1); err != nil {
		return api.Value{}, err
	}
	switch tag := d.buf[d.off]; tag {
	case TagInt:
		n, err := d.readInt()
		return api.Int(n), err
	case TagFloat:
		f, err := d.readFloat()
		return api.Float(f), err
	case TagString:
		s, err := d.readString()
		return api.String(s), err
	case TagList:
		items, err := d.values(depth + 1)
		if err != nil {
			return api.Value{}, err
		}
		return api.List(items...), nil
	default:
		if !knownTag(tag) {
			return api.Value{}, d.fail(tag, "unknown value tag", ErrUnknownTag)
		}
		return api.Value{}, d.fail(tag, "tag is not a feature value", ErrUnexpectedTag)
	}
}

func (d *decoder) values(depth int) ([]api.Value, error) {
	n, err := d.listHeader()
	if err != nil {
		return nil, err
	}
	out := make([]api.Value, n)
	for i := range out {
		v, err := d.value(depth)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (d *decoder) dist() (map[string]float64, error) {
	if err := d.expect(TagDist); err != nil {
		return nil, err
	}
	n, err := d.count(TagDist, 12)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, n)
	for i := 0; i < n; i++ {
		k, err := d.rawString(TagDist)
		if err != nil {
			return nil, err
		}
		if _, dup := out[k]; dup {
			return nil, d.fail(TagDist, fmt.Sprintf("duplicate key %q", k), ErrInvalidPayload)
		}
		bits, err := d.u64(TagDist)
		if err != nil {
			return nil, err
		}
		out[k] = math.Float64frombits(bits)
	}
	return out, nil
}

func (d *decoder) labels() (map[string]string, error) {
	if err := d.expect(TagLabels); err != nil {
		return nil, err
	}
	n, err := d.count(TagLabels, 8)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, n)
	for i := 0; i < n; i++ {
		k, err := d.rawString(TagLabels)
		if err != nil {
			return nil, err
		}
		if _, dup := out[k]; dup {
			return nil, d.fail(TagLabels, fmt.Sprintf("duplicate key %q", k), ErrInvalidPayload)
		}
		v, err := d.rawString(TagLabels)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func knownTag(tag byte) bool {
	return tag >= TagInt && tag <= TagLabels
}
