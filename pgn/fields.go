package pgn

// Kind is the field encoding named by the schema's XML element name.
type Kind string

const (
	KindUInt       Kind = "UIntField"
	KindInt        Kind = "IntField"
	KindDbl        Kind = "DblField"
	KindUDbl       Kind = "UDblField"
	KindEnum       Kind = "EnumField"
	KindEnumInt    Kind = "EnumIntField"
	KindInstance   Kind = "InstanceField"
	KindName       Kind = "NameField"
	KindASCII      Kind = "ASCIIField"
	KindString     Kind = "StringField"
	KindFixString  Kind = "FixLengthStringField"
	KindCommStatus Kind = "CommunicationStatusField"
	KindRepeatSet  Kind = "RepeatedFieldSet"
)

// EnumPair is one <EnumPair Value=... Name=.../> entry.
type EnumPair struct {
	Value uint32
	Name  string
}

// Field is one decoded/decodable element of a PGN, or the template fields of a RepeatedFieldSet.
type Field struct {
	ID   string
	Name string
	Kind Kind

	BitOffset uint16
	BitLength uint16
	Signed    bool

	Resolution float64
	Offset     float64
	Units      string

	Enum []EnumPair

	// RepeatCountField is the ID of the field (earlier in the same PGN) that holds how many times
	// RepeatFields repeats; empty means "repeat until the payload is exhausted".
	RepeatCountField string
	RepeatFields     []Field

	// bitGroup is the index of the first field sharing physical bit-range with this one, computed once at
	// load time. Fields packed in the same bitGroup were declared back to back inside a single byte.
	bitGroup int
}

// PGNDef is one parsed <PGNDefn>.
type PGNDef struct {
	PGN uint32
	// ManufacturerCode disambiguates proprietary PGNs that reuse the same PGN number for different vendors;
	// zero means "generic / not manufacturer specific".
	ManufacturerCode uint16
	Name             string
	// ByteLength is the declared fixed length; <= 0 means variable length (terminated by payload end).
	ByteLength int32
	Fields     []Field
}

// groupBitFields precomputes, once at schema load time (mirroring the teacher's
// FieldType/PacketType/PGN custom UnmarshalJSON pattern of deriving fields once at parse time), which
// consecutive fields share a physical byte. Decode itself still reads every field by its own absolute
// BitOffset/BitLength, so correctness never depends on this grouping; the encoder likewise writes each
// field through its own bit range, and nothing in this package reads bitGroup once it is set.
func groupBitFields(fields []Field) {
	group := 0
	for i := range fields {
		if i > 0 {
			prev := fields[i-1]
			sameByte := fields[i].BitLength < 8 && prev.BitLength < 8 &&
				fields[i].BitOffset/8 == prev.BitOffset/8
			if !sameByte {
				group = i
			}
		}
		fields[i].bitGroup = group
	}
}
