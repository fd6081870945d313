package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Address identifies one physical unit on the bus.
type Address struct {
	Subnet uint8
	Device uint8
}

// String renders the address in the "subnet.device" form used in
// configuration and logs.
func (a Address) String() string {
	return fmt.Sprintf("%d.%d", a.Subnet, a.Device)
}

// ParseAddress parses a "subnet.device" string. Both parts must be in
// the 0-254 range (255 is the bus broadcast value and never names a
// single unit).
func ParseAddress(s string) (Address, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return Address{}, fmt.Errorf("invalid address %q: use \"subnet.device\" (e.g. \"1.14\")", s)
	}

	subnet, err := strconv.Atoi(parts[0])
	if err != nil || subnet < 0 || subnet > 254 {
		return Address{}, fmt.Errorf("invalid subnet in %q: must be 0-254", s)
	}
	device, err := strconv.Atoi(parts[1])
	if err != nil || device < 0 || device > 254 {
		return Address{}, fmt.Errorf("invalid device in %q: must be 0-254", s)
	}

	return Address{Subnet: uint8(subnet), Device: uint8(device)}, nil
}
