package iso

import "errors"

// ErrPoolExhausted is returned by Pool.NextAddress when every address in the configured range is
// already in use, per the Python original's NMEA2000ApplicationPool.get_new_address "address pool
// exhausted" path (there expressed as returning the sentinel address 254; here as a Go error).
var ErrPoolExhausted = errors.New("iso: application address pool exhausted")

// Pool allocates bus addresses and mints NAMEs for the Controller Applications this process hosts.
// Grounded on the Python original's NMEA2000ApplicationPool: a contiguous address range sized
// `2*maxApplications` starting at a configurable base, and a NAME unique-number built from a
// network-interface-derived root fingerprint, one increment per application.
type Pool struct {
	uniqueIDRoot     uint32
	manufacturerCode uint16
	deviceClass      uint8
	deviceFunction   uint8
	industryGroup    uint8

	addresses       []uint8
	nextAddressIdx  int
	applicationCount uint32
	maxApplications  uint32
}

// NewPool builds a Pool. uniqueIDRoot is a per-host fingerprint (the Python original derives it from the
// host's MAC address via get_id_from_mac); addressPoolStart/maxApplications size the address range
// `[addressPoolStart, addressPoolStart+2*maxApplications)`, capped below 254.
func NewPool(uniqueIDRoot uint32, manufacturerCode uint16, addressPoolStart uint8, maxApplications uint32) *Pool {
	addresses := make([]uint8, 0, 2*maxApplications)
	for a := int(addressPoolStart); a < int(addressPoolStart)+int(2*maxApplications) && a < 254; a++ {
		addresses = append(addresses, uint8(a))
	}
	return &Pool{
		uniqueIDRoot:     uniqueIDRoot,
		manufacturerCode: manufacturerCode,
		deviceClass:      25,  // Inter/Intranetwork Device, matching the Python default
		deviceFunction:   130, // Diagnostic/network device, matching the Python default
		industryGroup:    4,  // Marine
		addresses:        addresses,
		maxApplications:  maxApplications,
	}
}

// NewName mints the next NAME for a Controller Application, per application_name(): a new unique number
// carved out of uniqueIDRoot, the same manufacturer/class/function/industry group for every application
// this pool serves, and arbitrary-address-capable set so conflicts can be resolved by address reallocation.
func (p *Pool) NewName() (Name, error) {
	if p.applicationCount >= p.maxApplications {
		return Name{}, ErrPoolExhausted
	}
	name := NewName(p.uniqueIDRoot|p.applicationCount, p.manufacturerCode, p.deviceFunction, p.deviceClass, p.industryGroup, 0, true)
	p.applicationCount++
	return name, nil
}

// NextAddress returns the next unused address from the pool, skipping any already claimed by inUse
// (the remote device table the Active Controller maintains), per get_new_address.
func (p *Pool) NextAddress(inUse map[uint8]bool) (uint8, error) {
	for p.nextAddressIdx < len(p.addresses) {
		address := p.addresses[p.nextAddressIdx]
		p.nextAddressIdx++
		if !inUse[address] {
			return address, nil
		}
	}
	return 0, ErrPoolExhausted
}
