package nmea

import (
	"time"
)

/*
 * TODO: Canboat notes:
 * Notes on the NMEA 2000 packet structure
 * ---------------------------------------
 *
 * http://www.nmea.org/Assets/pgn059392.pdf tells us that:
 * - All messages shall set the reserved bit in the CAN ID field to zero on transmit.
 * - Data field reserve bits or reserve bytes shall be filled with ones. i.e. a reserve
 *   byte will be set to a hex value of FF, a single reservie bit would be set to a value of 1.
 * - Data field extra bytes shall be illed with a hex value of FF.
 * - If the PGN in a Command or Request is not recognized by the destination it shall
 *   reply with the PGN 059392 ACK or NACK message using a destination specific address.
 *
 */

/*
 * TODO: Canboat notes:
 * Some packets include a "SID", explained by Maretron as follows:
 * SID: The sequence identifier field is used to tie related PGNs together. For example,
 * the DST100 will transmit identical SIDs for Speed (PGN 128259) and Water depth
 * (128267) to indicate that the readings are linked together (i.e., the data from each
 * PGN was taken at the same time although reported at slightly different times).
 */

/*
 * TODO: Canboat notes:
 * NMEA 2000 uses the 8 'data' bytes as follows:
 * data[0] is an 'order' that increments, or not (depending a bit on implementation).
 * If the size of the packet <= 7 then the data follows in data[1..7]
 * If the size of the packet > 7 then the next byte data[1] is the size of the payload
 * and data[0] is divided into 5 bits index into the fast packet, and 3 bits 'order
 * that increases.
 * This means that for 'fast packets' the first bucket (sub-packet) contains 6 payload
 * bytes and 7 for remaining. Since the max index is 31, the maximal payload is
 * 6 + 31 * 7 = 223 bytes
 */

// FastRawPacketMaxSize is maximum size of fast packet multiple packets total length
// NMEA 2000 uses the 8 'data' bytes as follows:  data[0] is an 'order' that increments, or not (depending a bit on
// implementation).
// If the size of the packet <= 7 then the data follows in data[1..7]
// If the size of the packet > 7 then the next byte data[1] is the size of the payload  and data[0] is divided into
// 5 bits index into the fast packet, and 3 bits 'order that increases.
// This means that for 'fast packets' the first bucket (sub-packet) contains 6 payload bytes and 7 for remaining.
// Since the max index is 31, the maximal payload is  6 + 31 * 7 = 223 bytes
const FastRawPacketMaxSize = 223

// AddressGlobal is the broadcast / global destination address (255, 0xFF).
const AddressGlobal = 255

// AddressNull is the null source address (254, 0xFE) used by nodes that have not yet claimed an address.
const AddressNull = 254

// ISOTPDataMaxSize is the maximum reassembled payload size for an ISO-TP (J1939-21 BAM) transfer:
// 255 sequence-numbered packets of 7 payload bytes each, as the TP.CM_BAM total-packets field and the TP.DT
// sequence number are 1 byte wide.
const ISOTPDataMaxSize = 1785

// PGN is a well-known ISO 11783 / NMEA2000 Parameter Group Number used by the address claim and group
// function machinery, kept distinct from the wire uint32 so call sites must convert deliberately.
type PGN uint32

const (
	// PGNISORequest (PGN 59904) asks a node to transmit a given PGN.
	PGNISORequest PGN = 59904
	// PGNTPCM (PGN 60416) is the ISO-TP / J1939-21 transport protocol connection management PGN (BAM, RTS/CTS).
	PGNTPCM PGN = 60416
	// PGNTPDT (PGN 60160) is the ISO-TP / J1939-21 transport protocol data transfer PGN.
	PGNTPDT PGN = 60160
	// PGNISOAddressClaim (PGN 60928) carries a node's NAME during address claim arbitration.
	PGNISOAddressClaim PGN = 60928
	// PGNPGNList (PGN 126464) is the Transmit/Receive PGN List group function.
	PGNPGNList PGN = 126464
	// PGNProductInfo (PGN 126996) carries a node's product information.
	PGNProductInfo PGN = 126996
	// PGNConfigurationInformation (PGN 126998) carries a node's installation/manufacturer configuration text.
	PGNConfigurationInformation PGN = 126998
)

// RawMessage is a raw, reassembled NMEA2000 message: either a single CAN frame payload or the result of
// Fast-Packet / ISO-TP reassembly. It is the unit that couplers, the fast-packet/ISO-TP reassemblers and the
// PGN decoder all exchange.
type RawMessage struct {
	// Time is when message was read from the bus / device. Filled by the library.
	Time time.Time

	Header CanBusHeader

	// Data is the reassembled payload for this PGN. For Fast-Packet/ISO-TP PGNs this can be longer than 8 bytes.
	Data RawData
}

// RawFrame is a single physical CAN frame (SocketCAN classic frame, max 8 data bytes).
type RawFrame struct {
	Time   time.Time
	Header CanBusHeader
	Length uint8
	Data   [8]byte
}

// Message is a RawMessage decoded against a PGN definition: header plus an ordered list of field values.
type Message struct {
	Header CanBusHeader
	Fields FieldValues
}
