package winapi

import (
	"syscall"
)

var (
	tdh = syscall.NewLazyDLL("tdh.dll")

	// https://learn.microsoft.com/en-us/windows/win32/api/tdh/nf-tdh-tdhenumerateproviders
	tdhEnumerateProviders = tdh.NewProc("TdhEnumerateProviders")

	// https://learn.microsoft.com/en-us/windows/win32/api/tdh/nf-tdh-tdhenumeratemanifestproviderevents
	tdhEnumerateManifestProviderEvents = tdh.NewProc("TdhEnumerateManifestProviderEvents")

	// https://learn.microsoft.com/en-us/windows/win32/api/tdh/nf-tdh-tdhgetmanifesteventinformation
	tdhGetManifestEventInformation = tdh.NewProc("TdhGetManifestEventInformation")
)
