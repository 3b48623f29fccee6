package etw

import (
	"unsafe"

	"github.com/quentin-nozomi/etw-typed/winapi"
	"github.com/quentin-nozomi/etw-typed/winguid"
)

// NewSystemCatalog builds a catalog over the operating system's trace data
// helper service.
func NewSystemCatalog() *Catalog {
	return NewCatalog(tdhMetadataSource{})
}

type tdhMetadataSource struct{}

func (tdhMetadataSource) Providers() ([]Provider, error) {
	bufferSize := uint32(0)
	err := winapi.TdhEnumerateProviders(nil, &bufferSize)

	// providers can register between the size probe and the fetch
	for err == winapi.ERROR_INSUFFICIENT_BUFFER {
		buff := make([]byte, bufferSize)
		enum := (*winapi.ProviderEnumerationInfo)(unsafe.Pointer(&buff[0]))
		if err = winapi.TdhEnumerateProviders(enum, &bufferSize); err != nil {
			continue
		}
		providers := make([]Provider, 0, enum.NumberOfProviders)
		for i := uint32(0); i < enum.NumberOfProviders; i++ {
			info := enum.GetTraceProviderInfoAt(i)
			providers = append(providers, Provider{
				GUID: info.ProviderGuid,
				Name: enum.ProviderName(info),
			})
		}
		return providers, nil
	}
	return nil, err
}

func (tdhMetadataSource) Events(guid winguid.GUID) ([]EventSchema, error) {
	bufferSize := uint32(0)
	err := winapi.TdhEnumerateManifestProviderEvents(&guid, nil, &bufferSize)
	if err == winapi.ERROR_EMPTY || err == winapi.ERROR_NOT_FOUND || err == winapi.ERROR_RESOURCE_TYPE_NOT_FOUND {
		// registered but publishes no manifest events
		return nil, nil
	}

	for err == winapi.ERROR_INSUFFICIENT_BUFFER {
		buff := make([]byte, bufferSize)
		info := (*winapi.ProviderEventInfo)(unsafe.Pointer(&buff[0]))
		if err = winapi.TdhEnumerateManifestProviderEvents(&guid, info, &bufferSize); err != nil {
			continue
		}
		schemas := make([]EventSchema, 0, info.NumberOfEvents)
		for i := uint32(0); i < info.NumberOfEvents; i++ {
			descriptor := info.GetEventDescriptorAt(i)
			schema, infoErr := manifestEventSchema(guid, descriptor)
			if infoErr != nil {
				logger.Debug().Str("provider", guid.String()).
					Uint16("event", descriptor.Id).Err(infoErr).
					Msg("no event information, skipping")
				continue
			}
			schemas = append(schemas, schema)
		}
		return schemas, nil
	}
	return nil, err
}

func manifestEventSchema(guid winguid.GUID, descriptor *winapi.EventDescriptor) (EventSchema, error) {
	bufferSize := uint32(0)
	err := winapi.TdhGetManifestEventInformation(&guid, descriptor, nil, &bufferSize)

	for err == winapi.ERROR_INSUFFICIENT_BUFFER {
		buff := make([]byte, bufferSize)
		eventInfo := (*winapi.TraceEventInfo)(unsafe.Pointer(&buff[0]))
		if err = winapi.TdhGetManifestEventInformation(&guid, descriptor, eventInfo, &bufferSize); err != nil {
			continue
		}
		return EventSchema{
			ProviderGUID: guid,
			EventID:      descriptor.Id,
			Version:      descriptor.Version,
			Fields:       propertyFields(eventInfo),
		}, nil
	}
	return EventSchema{}, err
}

func propertyFields(eventInfo *winapi.TraceEventInfo) []FieldDescriptor {
	fields := make([]FieldDescriptor, 0, eventInfo.TopLevelPropertyCount)
	for i := uint32(0); i < eventInfo.TopLevelPropertyCount; i++ {
		property := eventInfo.GetEventPropertyInfoAt(i)
		field := FieldDescriptor{
			Name:   eventInfo.PropertyName(i),
			InType: InType(property.InType()),
			Length: property.Length(),
			Count:  property.Count(),
		}
		if property.Flags&winapi.PropertyParamLength != 0 {
			field.Flags |= FieldParamLength
			field.Length = property.LengthPropertyIndex()
		}
		if property.Flags&winapi.PropertyParamCount != 0 {
			field.Flags |= FieldParamCount
			field.Count = property.CountPropertyIndex()
		}
		if property.Flags&winapi.PropertyStruct != 0 {
			// nested structs are not decoded
			field.InType = InTypeNull
		}
		if field.InType == InTypePointer && field.Flags&FieldParamLength == 0 {
			// manifest enumeration reports the consumer's pointer width;
			// the emitter's width comes from each record header instead
			field.Length = 0
		}
		fields = append(fields, field)
	}
	return fields
}
