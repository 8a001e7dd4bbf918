package socketcan

import (
	"sort"
	"strings"

	"github.com/jochenvg/go-udev"
)

// ListInterfaces enumerates network devices the kernel's CAN driver
// stack created, for a caller that wants to pick a --can-interface
// value without hardcoding one. A device qualifies either because udev
// tagged its driver as a CAN driver or because its name falls in the
// conventional can0/vcan0/slcan0 families used when the driver
// attribute isn't populated (virtual CAN interfaces in particular).
func ListInterfaces() ([]string, error) {
	u := udev.Udev{}
	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem("net"); err != nil {
		return nil, err
	}
	devices, err := e.Devices()
	if err != nil {
		return nil, err
	}

	var names []string
	for _, d := range devices {
		name := d.Sysname()
		driver := d.PropertyValue("ID_NET_DRIVER")
		if strings.Contains(driver, "can") || looksLikeCANName(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func looksLikeCANName(name string) bool {
	for _, prefix := range []string{"can", "vcan", "slcan"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
