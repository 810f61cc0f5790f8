// Package iso implements the ISO 11783 / NMEA2000 device-identity and address-claim machinery: the
// 64-bit NAME, the WaitForBus/AddressClaim/Active/StopInProgress Controller Application state machine,
// its heartbeat/product-info/configuration-info responders, and Group Function request/command handling.
package iso

import "encoding/binary"

// Name is the 64-bit ISO NAME that uniquely identifies a device on the bus and arbitrates address-claim
// conflicts: lower NAME value wins. Field set grounded on
// internal/addressmapper.NodeName.Bytes()/Uint64()/PGN60928ToNodeName, generalized into a builder that
// also supports construction (the teacher only ever decodes a NAME observed on the bus).
type Name struct {
	UniqueNumber        uint32 // ISO Identity Number (21 bits)
	Manufacturer        uint16 // Device Manufacturer (11 bits)
	DeviceInstanceLower uint8  // ECU instance (3 bits)
	DeviceInstanceUpper uint8  // Function instance (5 bits)
	DeviceFunction      uint8  // (8 bits)
	DeviceClass         uint8  // (7 bits)
	SystemInstance      uint8  // (4 bits)
	IndustryGroup       uint8  // (3 bits)

	// ArbitraryAddressCapable set to true lets this device resolve address-claim conflicts by picking a
	// new address from the 128-247 range instead of always losing to a lower NAME.
	ArbitraryAddressCapable bool
}

// NewName builds a NAME from its component fields, masking each to its bit width so callers cannot
// accidentally corrupt an adjacent field.
func NewName(uniqueNumber uint32, manufacturer uint16, deviceFunction, deviceClass uint8, industryGroup uint8, systemInstance uint8, arbitraryAddressCapable bool) Name {
	return Name{
		UniqueNumber:            uniqueNumber & 0x1FFFFF,
		Manufacturer:            manufacturer & 0x7FF,
		DeviceFunction:          deviceFunction,
		DeviceClass:             deviceClass & 0x7F,
		SystemInstance:          systemInstance & 0xF,
		IndustryGroup:           industryGroup & 0x7,
		ArbitraryAddressCapable: arbitraryAddressCapable,
	}
}

// Bytes serializes the NAME to its 8-byte little-endian wire representation: identity number in bits 0-20,
// manufacturer code in bits 21-31, then the instance, function, class and group fields.
func (n Name) Bytes() []byte {
	arbitrary := uint8(0)
	if n.ArbitraryAddressCapable {
		arbitrary = 1
	}
	return []byte{
		uint8(n.UniqueNumber & 0xff),
		uint8(n.UniqueNumber >> 8 & 0xff),
		uint8(n.UniqueNumber>>16&0b11111) | uint8(n.Manufacturer&0b111)<<5,
		uint8(n.Manufacturer >> 3 & 0xff),
		n.DeviceInstanceLower&0b111 | n.DeviceInstanceUpper&0b11111<<3,
		n.DeviceFunction,
		n.DeviceClass << 1,
		n.SystemInstance&0b1111 | (n.IndustryGroup&0b111)<<4 | arbitrary<<7,
	}
}

// Uint64 returns the NAME as a single big-endian 64-bit integer, the value compared during address-claim
// arbitration: a lower value always wins the bus address.
func (n Name) Uint64() uint64 {
	return binary.BigEndian.Uint64(n.Bytes())
}

// Less reports whether n should win an address-claim conflict against other (lower NAME wins).
func (n Name) Less(other Name) bool {
	return n.Uint64() < other.Uint64()
}

// ParseName decodes an 8-byte ISO Address Claim (PGN 60928) payload into a Name; it is the inverse of Bytes.
func ParseName(b []byte) (Name, error) {
	if len(b) != 8 {
		return Name{}, errInvalidNameLength
	}
	uqNumber := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2]&0b11111)<<16
	manufacturer := uint16(b[3])<<3 | uint16(b[2]>>5)
	return Name{
		UniqueNumber:            uqNumber,
		Manufacturer:            manufacturer,
		DeviceInstanceLower:     b[4] & 0b111,
		DeviceInstanceUpper:     b[4] >> 3,
		DeviceFunction:          b[5],
		DeviceClass:             b[6] >> 1,
		SystemInstance:          b[7] & 0b1111,
		IndustryGroup:           (b[7] >> 4) & 0b111,
		ArbitraryAddressCapable: b[7]>>7 != 0,
	}, nil
}
