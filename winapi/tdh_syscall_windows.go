package winapi

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/quentin-nozomi/etw-typed/winguid"
)

func TdhEnumerateProviders(pBuffer *ProviderEnumerationInfo, pBufferSize *uint32) error {
	errorCode, _, _ := tdhEnumerateProviders.Call(
		uintptr(unsafe.Pointer(pBuffer)),
		uintptr(unsafe.Pointer(pBufferSize)))
	if errorCode == windows.NO_ERROR {
		return nil
	}
	return syscall.Errno(errorCode)
}

func TdhEnumerateManifestProviderEvents(providerGuid *winguid.GUID,
	pBuffer *ProviderEventInfo,
	pBufferSize *uint32,
) error {
	errorCode, _, _ := tdhEnumerateManifestProviderEvents.Call(
		uintptr(unsafe.Pointer(providerGuid)),
		uintptr(unsafe.Pointer(pBuffer)),
		uintptr(unsafe.Pointer(pBufferSize)))
	if errorCode == windows.NO_ERROR {
		return nil
	}
	return syscall.Errno(errorCode)
}

func TdhGetManifestEventInformation(providerGuid *winguid.GUID,
	eventDescriptor *EventDescriptor,
	pBuffer *TraceEventInfo,
	pBufferSize *uint32,
) error {
	errorCode, _, _ := tdhGetManifestEventInformation.Call(
		uintptr(unsafe.Pointer(providerGuid)),
		uintptr(unsafe.Pointer(eventDescriptor)),
		uintptr(unsafe.Pointer(pBuffer)),
		uintptr(unsafe.Pointer(pBufferSize)))
	if errorCode == windows.NO_ERROR {
		return nil
	}
	return syscall.Errno(errorCode)
}
