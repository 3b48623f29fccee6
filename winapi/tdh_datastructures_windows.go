package winapi

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/quentin-nozomi/etw-typed/winguid"
)

// https://learn.microsoft.com/en-us/windows/win32/api/tdh/ns-tdh-provider_enumeration_info
type ProviderEnumerationInfo struct {
	NumberOfProviders      uint32
	Reserved               uint32
	TraceProviderInfoArray [1]TraceProviderInfo
}

func (p *ProviderEnumerationInfo) GetTraceProviderInfoAt(index uint32) *TraceProviderInfo {
	if index < p.NumberOfProviders {
		offset := uintptr(index) * unsafe.Sizeof(TraceProviderInfo{})
		return (*TraceProviderInfo)(unsafe.Pointer(uintptr(unsafe.Pointer(&p.TraceProviderInfoArray[0])) + offset))
	}
	panic(fmt.Errorf("index out of range"))
}

// ProviderName resolves a provider's name offset against the enumeration
// buffer it was returned in.
func (p *ProviderEnumerationInfo) ProviderName(info *TraceProviderInfo) string {
	if info.ProviderNameOffset == 0 {
		return ""
	}
	return UTF16AtOffsetToString(uintptr(unsafe.Pointer(p)), uintptr(info.ProviderNameOffset))
}

// https://learn.microsoft.com/en-us/windows/win32/api/tdh/ns-tdh-trace_provider_info
type TraceProviderInfo struct {
	ProviderGuid       winguid.GUID
	SchemaSource       uint32
	ProviderNameOffset uint32
}

// https://learn.microsoft.com/en-us/windows/win32/api/tdh/ns-tdh-provider_event_info
type ProviderEventInfo struct {
	NumberOfEvents        uint32
	Reserved              uint32
	EventDescriptorsArray [1]EventDescriptor
}

func (p *ProviderEventInfo) GetEventDescriptorAt(index uint32) *EventDescriptor {
	if index < p.NumberOfEvents {
		offset := uintptr(index) * unsafe.Sizeof(EventDescriptor{})
		return (*EventDescriptor)(unsafe.Pointer(uintptr(unsafe.Pointer(&p.EventDescriptorsArray[0])) + offset))
	}
	panic(fmt.Errorf("index out of range"))
}

// https://learn.microsoft.com/en-us/windows/win32/api/tdh/ns-tdh-trace_event_info
type TraceEventInfo struct {
	ProviderGUID                winguid.GUID
	EventGUID                   winguid.GUID
	EventDescriptor             EventDescriptor
	DecodingSource              DecodingSource
	ProviderNameOffset          uint32
	LevelNameOffset             uint32
	ChannelNameOffset           uint32
	KeywordsNameOffset          uint32
	TaskNameOffset              uint32
	OpcodeNameOffset            uint32
	EventMessageOffset          uint32
	ProviderMessageOffset       uint32
	BinaryXMLOffset             uint32
	BinaryXMLSize               uint32
	ActivityIDNameOffset        uint32
	RelatedActivityIDNameOffset uint32
	PropertyCount               uint32
	TopLevelPropertyCount       uint32
	Flags                       TemplateFlags
	EventPropertyInfoArray      [1]EventPropertyInfo
}

func (t *TraceEventInfo) stringAt(offset uintptr) string {
	if offset > 0 {
		return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(uintptr(unsafe.Pointer(t)) + offset)))
	}
	return ""
}

func (t *TraceEventInfo) ProviderName() string {
	return t.stringAt(uintptr(t.ProviderNameOffset))
}

func (t *TraceEventInfo) EventID() uint16 {
	return t.EventDescriptor.Id
}

func (t *TraceEventInfo) GetEventPropertyInfoAt(index uint32) *EventPropertyInfo {
	if index < t.PropertyCount {
		offset := uintptr(index) * unsafe.Sizeof(EventPropertyInfo{})
		return (*EventPropertyInfo)(unsafe.Pointer(uintptr(unsafe.Pointer(&t.EventPropertyInfoArray[0])) + offset))
	}
	panic(fmt.Errorf("index out of range"))
}

// PropertyName resolves a property's name offset against the event
// information buffer.
func (t *TraceEventInfo) PropertyName(index uint32) string {
	return t.stringAt(uintptr(t.GetEventPropertyInfoAt(index).NameOffset))
}

type DecodingSource int32 // https://learn.microsoft.com/en-us/windows/win32/api/tdh/ne-tdh-decoding_source

const (
	DecodingSourceXMLFile = DecodingSource(0)
	DecodingSourceWbem    = DecodingSource(1)
	DecodingSourceWPP     = DecodingSource(2)
)

type TemplateFlags int32

const (
	TEMPLATE_EVENT_DATA = TemplateFlags(1)
	TEMPLATE_USER_DATA  = TemplateFlags(2)
)

// https://learn.microsoft.com/en-us/windows/win32/api/tdh/ne-tdh-property_flags
type PropertyFlags int32

const (
	PropertyStruct      = PropertyFlags(0x1)
	PropertyParamLength = PropertyFlags(0x2)
	PropertyParamCount  = PropertyFlags(0x4)
)

// https://learn.microsoft.com/en-us/windows/win32/api/tdh/ns-tdh-event_property_info
type EventPropertyInfo struct {
	Flags      PropertyFlags
	NameOffset uint32
	TypeUnion  struct {
		u1 uint16
		u2 uint16
		u3 uint32
	}
	CountUnion  uint16
	LengthUnion uint16
	ResTagUnion uint32
}

func (i *EventPropertyInfo) InType() uint16 {
	return i.TypeUnion.u1
}

func (i *EventPropertyInfo) OutType() uint16 {
	return i.TypeUnion.u2
}

func (i *EventPropertyInfo) Count() uint16 {
	return i.CountUnion
}

func (i *EventPropertyInfo) CountPropertyIndex() uint16 {
	return i.CountUnion
}

func (i *EventPropertyInfo) Length() uint16 {
	return i.LengthUnion
}

func (i *EventPropertyInfo) LengthPropertyIndex() uint16 {
	return i.LengthUnion
}
