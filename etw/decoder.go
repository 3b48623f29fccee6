package etw

import (
	"fmt"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// reinterpret casts a byte view to T without copying. The view must hold at
// least one T; callers validate the size first. Event buffers carry no
// alignment guarantee, so the read goes through an unaligned pointer.
func reinterpret[T any](b []byte) T {
	return *(*T)(unsafe.Pointer(&b[0]))
}

func scalarValue[T constraints.Integer](b []byte) uint64 {
	return uint64(reinterpret[T](b))
}

// decodeUTF16 converts a little-endian UTF-16 byte range to a string,
// dropping one trailing NUL if present.
func decodeUTF16(raw []byte) string {
	u := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		u = append(u, uint16(raw[i])|uint16(raw[i+1])<<8)
	}
	if n := len(u); n > 0 && u[n-1] == 0 {
		u = u[:n-1]
	}
	return string(utf16.Decode(u))
}

// byteOffset returns the offset of sub within buf, or -1 when sub is not a
// sub-slice of buf.
func byteOffset(buf, sub []byte) int {
	if len(buf) == 0 || len(sub) == 0 {
		return -1
	}
	off := int(uintptr(unsafe.Pointer(&sub[0])) - uintptr(unsafe.Pointer(&buf[0])))
	if off < 0 || off+len(sub) > len(buf) {
		return -1
	}
	return off
}

// cursor walks a record buffer front to back. Every field consumption goes
// through take so no read can pass the end of the buffer.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) take(n int, kind error, name string) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, fmt.Errorf("%w: field %q needs %d bytes at offset %d of %d",
			kind, name, n, c.pos, len(c.data))
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// defaultPointerSize applies to pointer fields when neither the schema nor
// the record header carries a width.
const defaultPointerSize = 8

// Decode consumes a record buffer according to the field descriptors, in
// descriptor order. Fixed-size fields are zero-copy views reinterpreted by
// the FieldValue accessors; a declared size that does not fit the in-type, or
// a fixed range falling outside the buffer, fails with ErrLayoutMismatch.
// Variable-length fields advance an explicit cursor and fail with
// ErrTruncatedRecord when the buffer ends early. Pointer fields without a
// declared length take 8 bytes; Binder.Bind uses the emitting process's
// pointer width from the record header instead.
func Decode(data []byte, fields []FieldDescriptor) ([]FieldValue, error) {
	return decodeFields(data, fields, defaultPointerSize)
}

func decodeFields(data []byte, fields []FieldDescriptor, pointerSize int) ([]FieldValue, error) {
	cur := cursor{data: data}
	out := make([]FieldValue, 0, len(fields))

	// Scalar values seen so far, for fields whose length or count is
	// carried by an earlier field of the record.
	scalars := make(map[int]uint64)

	for i := range fields {
		fd := &fields[i]

		length, err := resolveParam(fd.Length, fd.Flags&FieldParamLength != 0, scalars, fd.Name, "length")
		if err != nil {
			return nil, err
		}
		count, err := resolveParam(fd.Count, fd.Flags&FieldParamCount != 0, scalars, fd.Name, "count")
		if err != nil {
			return nil, err
		}
		if count == 0 {
			count = 1
		}

		raw, err := consumeField(&cur, fd, length, count, pointerSize)
		if err != nil {
			return nil, err
		}

		if count == 1 {
			if v, ok := fieldScalar(fd.InType, raw); ok {
				scalars[i] = v
			}
		}
		out = append(out, FieldValue{
			Name:   fd.Name,
			InType: fd.InType,
			raw:    raw,
			count:  count,
		})
	}
	return out, nil
}

// resolveParam returns a descriptor length or count, following the reference
// to an earlier field when the corresponding param flag is set.
func resolveParam(v uint16, byRef bool, scalars map[int]uint64, name, what string) (int, error) {
	if !byRef {
		return int(v), nil
	}
	val, ok := scalars[int(v)]
	if !ok {
		return 0, fmt.Errorf("%w: %s of field %q refers to field %d, which is not an earlier scalar",
			ErrLayoutMismatch, what, name, v)
	}
	return int(val), nil
}

func consumeField(cur *cursor, fd *FieldDescriptor, length, count, pointerSize int) ([]byte, error) {
	if size, fixed := fd.InType.FixedSize(); fixed {
		if length != 0 && length != size {
			return nil, fmt.Errorf("%w: field %q declares %d bytes for %s (%d bytes)",
				ErrLayoutMismatch, fd.Name, length, fd.InType, size)
		}
		return cur.take(size*count, ErrLayoutMismatch, fd.Name)
	}

	switch fd.InType {
	case InTypePointer:
		if length == 0 {
			length = pointerSize
		}
		if length != 4 && length != 8 {
			return nil, fmt.Errorf("%w: field %q declares %d bytes for a pointer",
				ErrLayoutMismatch, fd.Name, length)
		}
		return cur.take(length*count, ErrLayoutMismatch, fd.Name)

	case InTypeBinary:
		if length == 0 {
			return nil, fmt.Errorf("%w: binary field %q has no declared length",
				ErrLayoutMismatch, fd.Name)
		}
		return cur.take(length*count, ErrTruncatedRecord, fd.Name)

	case InTypeUnicodeString, InTypeAnsiString:
		return consumeStrings(cur, fd, length, count)

	case InTypeCountedString, InTypeCountedAnsiString:
		return consumeCountedStrings(cur, fd, count)

	case InTypeSID:
		return consumeSIDs(cur, fd, count)
	}

	return nil, fmt.Errorf("%w: field %q has unsupported in-type %s",
		ErrLayoutMismatch, fd.Name, fd.InType)
}

// consumeStrings consumes count string elements. A non-zero length is the
// explicit byte length of each element; otherwise elements run to a NUL
// terminator, which is consumed along with the payload.
func consumeStrings(cur *cursor, fd *FieldDescriptor, length, count int) ([]byte, error) {
	start := cur.pos
	for e := 0; e < count; e++ {
		if length != 0 {
			if _, err := cur.take(length, ErrTruncatedRecord, fd.Name); err != nil {
				return nil, err
			}
			continue
		}
		n, err := terminatedLen(cur.data[cur.pos:], fd.InType == InTypeUnicodeString)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrTruncatedRecord, fd.Name, err)
		}
		cur.pos += n
	}
	return cur.data[start:cur.pos], nil
}

// terminatedLen returns the byte length of a NUL-terminated string at the
// start of b, terminator included.
func terminatedLen(b []byte, wide bool) (int, error) {
	if wide {
		for i := 0; i+1 < len(b); i += 2 {
			if b[i] == 0 && b[i+1] == 0 {
				return i + 2, nil
			}
		}
	} else {
		for i := 0; i < len(b); i++ {
			if b[i] == 0 {
				return i + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("no terminator in remaining %d bytes", len(b))
}

// consumeCountedStrings consumes count elements, each a little-endian uint16
// byte length followed by that many payload bytes. For a single element the
// returned view is the bare payload; for arrays it spans the whole consumed
// region, prefixes included.
func consumeCountedStrings(cur *cursor, fd *FieldDescriptor, count int) ([]byte, error) {
	start := cur.pos
	var payload []byte
	for e := 0; e < count; e++ {
		prefix, err := cur.take(2, ErrTruncatedRecord, fd.Name)
		if err != nil {
			return nil, err
		}
		n := int(prefix[0]) | int(prefix[1])<<8
		payload, err = cur.take(n, ErrTruncatedRecord, fd.Name)
		if err != nil {
			return nil, err
		}
	}
	if count == 1 {
		return payload, nil
	}
	return cur.data[start:cur.pos], nil
}

// consumeSIDs consumes count security identifiers. A SID is 8 bytes of header
// plus 4 bytes per sub-authority; the sub-authority count sits in byte 1.
func consumeSIDs(cur *cursor, fd *FieldDescriptor, count int) ([]byte, error) {
	start := cur.pos
	for e := 0; e < count; e++ {
		if cur.pos+8 > len(cur.data) {
			return nil, fmt.Errorf("%w: field %q: SID header needs 8 bytes at offset %d of %d",
				ErrTruncatedRecord, fd.Name, cur.pos, len(cur.data))
		}
		n := 8 + 4*int(cur.data[cur.pos+1])
		if _, err := cur.take(n, ErrTruncatedRecord, fd.Name); err != nil {
			return nil, err
		}
	}
	return cur.data[start:cur.pos], nil
}

// fieldScalar extracts the integer value of a scalar field so later fields
// can reference it as a length or count.
func fieldScalar(t InType, b []byte) (uint64, bool) {
	switch t {
	case InTypeInt8:
		return scalarValue[int8](b), true
	case InTypeUint8:
		return scalarValue[uint8](b), true
	case InTypeInt16:
		return scalarValue[int16](b), true
	case InTypeUint16:
		return scalarValue[uint16](b), true
	case InTypeInt32:
		return scalarValue[int32](b), true
	case InTypeUint32, InTypeHexInt32, InTypeBoolean:
		return scalarValue[uint32](b), true
	case InTypeInt64:
		return scalarValue[int64](b), true
	case InTypeUint64, InTypeHexInt64:
		return scalarValue[uint64](b), true
	case InTypePointer:
		if len(b) == 4 {
			return scalarValue[uint32](b), true
		}
		return scalarValue[uint64](b), true
	}
	return 0, false
}
