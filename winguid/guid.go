package winguid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// https://learn.microsoft.com/en-us/windows/win32/api/guiddef/ns-guiddef-guid
// Same memory layout as the Windows GUID structure, so pointers can be
// passed straight to the API on Windows while the type itself stays portable.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]uint8
}

var Null = GUID{}

const NullStr = "{00000000-0000-0000-0000-000000000000}"

func MustParse(sguid string) GUID {
	guid, err := Parse(sguid)
	if err != nil {
		panic(err)
	}
	return guid
}

var guidRegex = regexp.MustCompile(`^\{?[A-F0-9]{8}-[A-F0-9]{4}-[A-F0-9]{4}-[A-F0-9]{4}-[A-F0-9]{12}}?$`)

func Parse(guid string) (GUID, error) {
	outGuid := GUID{}
	var err error

	guid = strings.ToUpper(guid)
	if !guidRegex.MatchString(guid) {
		return outGuid, fmt.Errorf("bad GUID format")
	}

	digitsGroups := strings.Split(strings.Trim(guid, "{}"), "-")

	var dataGroup uint64
	if dataGroup, err = strconv.ParseUint(digitsGroups[0], 16, 32); err != nil {
		return outGuid, err
	}
	outGuid.Data1 = uint32(dataGroup)

	if dataGroup, err = strconv.ParseUint(digitsGroups[1], 16, 16); err != nil {
		return outGuid, err
	}
	outGuid.Data2 = uint16(dataGroup)

	if dataGroup, err = strconv.ParseUint(digitsGroups[2], 16, 16); err != nil {
		return outGuid, err
	}
	outGuid.Data3 = uint16(dataGroup)

	if dataGroup, err = strconv.ParseUint(digitsGroups[3], 16, 16); err != nil {
		return outGuid, err
	}
	outGuid.Data4[0] = uint8(dataGroup >> 8)
	outGuid.Data4[1] = uint8(dataGroup & 0xff)

	if dataGroup, err = strconv.ParseUint(digitsGroups[4], 16, 64); err != nil {
		return outGuid, err
	}
	outGuid.Data4[2] = uint8(dataGroup >> 40)
	outGuid.Data4[3] = uint8((dataGroup >> 32) & 0xff)
	outGuid.Data4[4] = uint8((dataGroup >> 24) & 0xff)
	outGuid.Data4[5] = uint8((dataGroup >> 16) & 0xff)
	outGuid.Data4[6] = uint8((dataGroup >> 8) & 0xff)
	outGuid.Data4[7] = uint8(dataGroup & 0xff)

	return outGuid, nil
}

func ToString(g GUID) string {
	return fmt.Sprintf("{%08X-%04X-%04X-%02X%02X-%02X%02X%02X%02X%02X%02X}",
		g.Data1,
		g.Data2,
		g.Data3,
		g.Data4[0], g.Data4[1],
		g.Data4[2], g.Data4[3], g.Data4[4], g.Data4[5], g.Data4[6], g.Data4[7],
	)
}

func (g GUID) String() string {
	return ToString(g)
}

func Equals(g, other GUID) bool {
	return g == other
}

func IsNull(g GUID) bool {
	return g == Null
}
