package etw

import (
	"fmt"
	"time"

	"github.com/quentin-nozomi/etw-typed/winguid"
)

// RecordHeader is the fixed metadata delivered with every event record.
type RecordHeader struct {
	ProviderGUID winguid.GUID
	EventID      uint16
	Version      uint8
	Channel      uint8
	Level        uint8
	Opcode       uint8
	Task         uint16
	Keyword      uint64
	ProcessID    uint32
	ThreadID     uint32
	ActivityID   winguid.GUID
	TimestampUTC time.Time

	// PointerSize is the emitting process's pointer width in bytes, 4 or 8.
	// Zero is treated as 8.
	PointerSize uint8
}

// Record is one raw event as delivered by the trace pump. Data is a view over
// the pump's buffer and is valid only for the duration of the callback that
// received it; call Clone to keep it longer.
type Record struct {
	Header RecordHeader
	Data   []byte
}

// Clone returns an owned copy of the record whose buffer is independent of
// the trace pump.
func (r *Record) Clone() *Record {
	data := make([]byte, len(r.Data))
	copy(data, r.Data)
	return &Record{Header: r.Header, Data: data}
}

// FieldValue is one decoded field: the in-type tag plus a view over the bytes
// the field occupied in the record buffer. Accessors reinterpret the view;
// nothing is copied until a string conversion or Clone.
type FieldValue struct {
	Name   string
	InType InType

	raw   []byte
	count int
}

// Raw returns the field's byte range within the record buffer.
func (v *FieldValue) Raw() []byte { return v.raw }

// Count returns the number of elements, 1 for scalars.
func (v *FieldValue) Count() int { return v.count }

func (v *FieldValue) elem(idx int) ([]byte, error) {
	size, fixed := v.InType.FixedSize()
	if !fixed && (v.InType == InTypePointer || v.InType == InTypeBinary) && v.count > 0 {
		size = len(v.raw) / v.count
		fixed = true
	}
	if !fixed || idx < 0 || idx >= v.count {
		return nil, fmt.Errorf("%w: no element %d of %s %q", ErrLayoutMismatch, idx, v.InType, v.Name)
	}
	return v.raw[idx*size : (idx+1)*size], nil
}

// Uint returns element idx as an unsigned integer. Valid for the unsigned,
// hex, boolean and pointer in-types.
func (v *FieldValue) Uint(idx int) (uint64, error) {
	b, err := v.elem(idx)
	if err != nil {
		return 0, err
	}
	switch v.InType {
	case InTypeUint8:
		return uint64(reinterpret[uint8](b)), nil
	case InTypeUint16:
		return uint64(reinterpret[uint16](b)), nil
	case InTypeUint32, InTypeHexInt32, InTypeBoolean:
		return uint64(reinterpret[uint32](b)), nil
	case InTypeUint64, InTypeHexInt64:
		return reinterpret[uint64](b), nil
	case InTypePointer:
		if len(b) == 4 {
			return uint64(reinterpret[uint32](b)), nil
		}
		return reinterpret[uint64](b), nil
	}
	return 0, fmt.Errorf("%w: %s %q is not unsigned", ErrLayoutMismatch, v.InType, v.Name)
}

// Int returns element idx as a signed integer.
func (v *FieldValue) Int(idx int) (int64, error) {
	b, err := v.elem(idx)
	if err != nil {
		return 0, err
	}
	switch v.InType {
	case InTypeInt8:
		return int64(reinterpret[int8](b)), nil
	case InTypeInt16:
		return int64(reinterpret[int16](b)), nil
	case InTypeInt32:
		return int64(reinterpret[int32](b)), nil
	case InTypeInt64:
		return reinterpret[int64](b), nil
	}
	return 0, fmt.Errorf("%w: %s %q is not signed", ErrLayoutMismatch, v.InType, v.Name)
}

// Float returns element idx as a floating point value.
func (v *FieldValue) Float(idx int) (float64, error) {
	b, err := v.elem(idx)
	if err != nil {
		return 0, err
	}
	switch v.InType {
	case InTypeFloat:
		return float64(reinterpret[float32](b)), nil
	case InTypeDouble:
		return reinterpret[float64](b), nil
	}
	return 0, fmt.Errorf("%w: %s %q is not floating point", ErrLayoutMismatch, v.InType, v.Name)
}

// GUID returns element idx as a GUID.
func (v *FieldValue) GUID(idx int) (winguid.GUID, error) {
	b, err := v.elem(idx)
	if err != nil {
		return winguid.Null, err
	}
	if v.InType != InTypeGUID {
		return winguid.Null, fmt.Errorf("%w: %s %q is not a GUID", ErrLayoutMismatch, v.InType, v.Name)
	}
	return reinterpret[winguid.GUID](b), nil
}

// Time returns element idx, a FILETIME field, as UTC time.
func (v *FieldValue) Time(idx int) (time.Time, error) {
	b, err := v.elem(idx)
	if err != nil {
		return time.Time{}, err
	}
	if v.InType != InTypeFiletime {
		return time.Time{}, fmt.Errorf("%w: %s %q is not a filetime", ErrLayoutMismatch, v.InType, v.Name)
	}
	return filetimeUTC(reinterpret[int64](b)), nil
}

// Str decodes the field as a string. Wide-character payloads are converted
// from UTF-16; this is the only accessor that allocates.
func (v *FieldValue) Str() (string, error) {
	switch v.InType {
	case InTypeUnicodeString, InTypeCountedString:
		return decodeUTF16(v.raw), nil
	case InTypeAnsiString, InTypeCountedAnsiString:
		raw := v.raw
		if n := len(raw); n > 0 && raw[n-1] == 0 {
			raw = raw[:n-1]
		}
		return string(raw), nil
	}
	return "", fmt.Errorf("%w: %s %q is not a string", ErrLayoutMismatch, v.InType, v.Name)
}

// DecodedEvent is the per-record result of version-checked binding: either a
// matched shape with its decoded fields, a matched shape with a classified
// per-record error, or the unmatched fallback (Shape nil, Err nil). Field
// views borrow the record buffer; Clone produces an owned copy.
type DecodedEvent struct {
	Record *Record
	Shape  *EventShape
	Fields []FieldValue
	Err    error
}

// Matched reports whether a declared shape claimed this record.
func (e *DecodedEvent) Matched() bool { return e.Shape != nil }

// Field returns the decoded field with the given name.
func (e *DecodedEvent) Field(name string) (*FieldValue, bool) {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i], true
		}
	}
	return nil, false
}

// Clone deep-copies the event so it remains valid after the callback that
// delivered it returns.
func (e *DecodedEvent) Clone() *DecodedEvent {
	out := &DecodedEvent{
		Record: e.Record.Clone(),
		Shape:  e.Shape,
		Err:    e.Err,
	}
	if e.Fields != nil {
		out.Fields = make([]FieldValue, len(e.Fields))
		copy(out.Fields, e.Fields)
		for i := range out.Fields {
			old := e.Fields[i].raw
			if len(old) == 0 {
				continue
			}
			if off := byteOffset(e.Record.Data, old); off >= 0 {
				out.Fields[i].raw = out.Record.Data[off : off+len(old)]
			}
		}
	}
	return out
}

const filetimeEpochDiff = 11644473600 // seconds between 1601-01-01 and 1970-01-01

// filetimeUTC converts a FILETIME tick count (100ns units since 1601-01-01)
// to UTC time.
func filetimeUTC(ticks int64) time.Time {
	const ticksPerSecond = 10000000
	sec := ticks/ticksPerSecond - filetimeEpochDiff
	nsec := (ticks % ticksPerSecond) * 100
	return time.Unix(sec, nsec).UTC()
}
