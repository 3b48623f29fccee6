package etw

import (
	"github.com/quentin-nozomi/etw-typed/winguid"
)

// InType identifies the wire encoding of one event field. Values match the
// TDH in-type constants so schemas obtained from the operating system can be
// carried without translation.
// https://learn.microsoft.com/en-us/windows/win32/api/tdh/ns-tdh-event_property_info
type InType uint16

const (
	InTypeNull InType = iota
	InTypeUnicodeString
	InTypeAnsiString
	InTypeInt8
	InTypeUint8
	InTypeInt16
	InTypeUint16
	InTypeInt32
	InTypeUint32
	InTypeInt64
	InTypeUint64
	InTypeFloat
	InTypeDouble
	InTypeBoolean
	InTypeBinary
	InTypeGUID
	InTypePointer
	InTypeFiletime
	InTypeSystemtime
	InTypeSID
	InTypeHexInt32
	InTypeHexInt64
)

const (
	InTypeCountedString InType = iota + 300
	InTypeCountedAnsiString
)

var inTypeNames = map[InType]string{
	InTypeNull:              "null",
	InTypeUnicodeString:     "unicodestring",
	InTypeAnsiString:        "ansistring",
	InTypeInt8:              "int8",
	InTypeUint8:             "uint8",
	InTypeInt16:             "int16",
	InTypeUint16:            "uint16",
	InTypeInt32:             "int32",
	InTypeUint32:            "uint32",
	InTypeInt64:             "int64",
	InTypeUint64:            "uint64",
	InTypeFloat:             "float",
	InTypeDouble:            "double",
	InTypeBoolean:           "boolean",
	InTypeBinary:            "binary",
	InTypeGUID:              "guid",
	InTypePointer:           "pointer",
	InTypeFiletime:          "filetime",
	InTypeSystemtime:        "systemtime",
	InTypeSID:               "sid",
	InTypeHexInt32:          "hexint32",
	InTypeHexInt64:          "hexint64",
	InTypeCountedString:     "countedstring",
	InTypeCountedAnsiString: "countedansistring",
}

func (t InType) String() string {
	if s, ok := inTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// FixedSize returns the byte size of a fixed-size in-type. The second return
// is false for variable-length types (strings, binary, SID) and for pointers,
// whose size depends on the emitting process and comes from the schema.
func (t InType) FixedSize() (int, bool) {
	switch t {
	case InTypeInt8, InTypeUint8:
		return 1, true
	case InTypeInt16, InTypeUint16:
		return 2, true
	case InTypeInt32, InTypeUint32, InTypeHexInt32, InTypeFloat, InTypeBoolean:
		return 4, true
	case InTypeInt64, InTypeUint64, InTypeHexInt64, InTypeDouble, InTypeFiletime:
		return 8, true
	case InTypeGUID, InTypeSystemtime:
		return 16, true
	}
	return 0, false
}

// FieldFlag marks a field whose length or count is carried by an earlier
// field of the same record rather than by the schema.
type FieldFlag uint16

const (
	// FieldParamLength: FieldDescriptor.Length is the index of an earlier
	// scalar field holding the byte length.
	FieldParamLength FieldFlag = 1 << iota
	// FieldParamCount: FieldDescriptor.Count is the index of an earlier
	// scalar field holding the element count.
	FieldParamCount
)

// FieldDescriptor describes one field of an event schema. Descriptor order is
// authoritative: variable-length fields shift the offsets of everything after
// them, so records are always consumed front to back in descriptor order.
type FieldDescriptor struct {
	Name   string
	InType InType
	Flags  FieldFlag

	// Length is the byte length of one element for fixed-size and binary
	// fields; zero for self-delimiting fields (null-terminated and counted
	// strings, SIDs). With FieldParamLength it is the index of the field
	// supplying the length.
	Length uint16

	// Count is the number of consecutive elements, 1 for scalars. With
	// FieldParamCount it is the index of the field supplying the count.
	Count uint16
}

// EventSchema is the live field layout for one (provider, event id, version)
// triple, as published by the operating system's metadata service.
type EventSchema struct {
	ProviderGUID winguid.GUID
	EventID      uint16
	Version      uint8
	Fields       []FieldDescriptor
}

// Provider is a registered event source. The name is optional; not all
// providers register one.
type Provider struct {
	GUID winguid.GUID
	Name string
}
