package pgn

// IsPDU1 reports whether pgnNumber is PDU1 (destination-specific): the PDU format byte (bits 8-15 of the
// 24-bit PGN) is below 240, per CanBusHeader.Uint32/ParseCANID in canbus.go.
func IsPDU1(pgnNumber uint32) bool {
	pduFormat := uint8(pgnNumber >> 8)
	return pduFormat < 240
}

// SplitPDU1 splits a raw 24-bit PGN-plus-destination field (as read straight off an arbitration ID's
// PGN bits) into the canonical PGN and destination address, for PDU1 PGNs. Callers should check IsPDU1
// first; for PDU2 PGNs the low byte is part of the PGN number itself, not a destination.
func SplitPDU1(rawPGN uint32) (pgnNumber uint32, da uint8) {
	da = uint8(rawPGN)
	pgnNumber = rawPGN &^ 0xFF
	return pgnNumber, da
}

// IsFastPacket reports whether pgnNumber is carried as a Fast-Packet (payload > 8 bytes, reassembled
// from multiple CAN frames) rather than a single-frame PGN, per the nine-category PDU1/PDU2 range table.
// The 0x1F000-0x1FEFF range mixes both single-frame and fast-packet PGNs in real schemas; when a
// payload length is known (from the schema's ByteLength), that decides instead of the range guess.
func IsFastPacket(pgnNumber uint32) bool {
	switch {
	case pgnNumber >= 0xEF00 && pgnNumber <= 0xEFFF: // PDU1 addressed single-frame
		return false
	case pgnNumber >= 0xFF00 && pgnNumber <= 0xFFFF: // PDU2 broadcast single-frame
		return false
	case pgnNumber >= 0x1EF00 && pgnNumber <= 0x1EFFF: // PDU1 addressed fast-packet
		return true
	case pgnNumber >= 0x1FF00 && pgnNumber <= 0x1FFFF: // PDU2 broadcast fast-packet
		return true
	default:
		return false
	}
}

// IsFastPacketForLength resolves the 0x1F000-0x1FEFF "mixed" range by declared byte length: anything
// that does not fit an 8-byte single CAN frame must be fast-packeted regardless of range.
func IsFastPacketForLength(pgnNumber uint32, byteLength int32) bool {
	if IsFastPacket(pgnNumber) {
		return true
	}
	return byteLength > 8
}
