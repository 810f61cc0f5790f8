package pgn

import (
	"fmt"
	"math"

	nmea "github.com/sterwen-nav/nmea-router"
)

// Encoder writes nmea.FieldValues back into a raw NMEA2000 payload, the reverse of Decoder, not present
// in the teacher but grounded on the same bit-offset/length arithmetic fieldvalue.go's decode side uses.
type Encoder struct {
	schema *Schema
}

func NewEncoder(schema *Schema) *Encoder {
	return &Encoder{schema: schema}
}

// Encode looks up pgnNumber in the schema and encodes values against it.
func (e *Encoder) Encode(pgnNumber uint32, mfgID uint16, values nmea.FieldValues) ([]byte, error) {
	def, err := e.schema.Lookup(pgnNumber, mfgID)
	if err != nil {
		return nil, err
	}
	length := def.ByteLength
	if length <= 0 {
		length = 8
	}
	buf := make([]byte, length)
	buf, err = EncodeFields(buf, def.Fields, values)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodeFields writes values into buf according to fields, growing and returning a new buffer if a
// field's bit range does not fit (for variable-length PGNs whose declared ByteLength is a minimum).
func EncodeFields(buf []byte, fields []Field, values nmea.FieldValues) ([]byte, error) {
	for _, f := range fields {
		fv, ok := values.FindByID(f.ID)
		if !ok || fv.Value == nil {
			// absent or nil ("no data"/"out of range"/"reserved" on decode, fieldvalue.go's
			// DecodeVariableUint/Int) field: write the NMEA2000 invalid sentinel instead of
			// skipping, so the zero-initialized buffer doesn't silently read back as a valid 0.
			if f.Kind == KindRepeatSet || f.Kind == KindASCII || f.Kind == KindFixString || f.Kind == KindString {
				continue // no numeric invalid convention for these kinds; zero-fill stands
			}
			needed := int((f.BitOffset + f.BitLength + 7) / 8)
			buf = growTo(buf, needed)
			if err := writeInvalid(buf, f); err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			continue
		}
		if f.Kind == KindRepeatSet {
			groups, ok := fv.Value.([][]nmea.FieldValue)
			if !ok {
				return nil, fmt.Errorf("field %q: repeated field set value has wrong type", f.Name)
			}
			groupBitLength := uint16(0)
			for _, inner := range f.RepeatFields {
				end := inner.BitOffset + inner.BitLength
				if end > groupBitLength {
					groupBitLength = end
				}
			}
			cursor := f.BitOffset
			for _, group := range groups {
				needed := int((cursor + groupBitLength + 7) / 8)
				buf = growTo(buf, needed)
				shifted := make([]Field, len(f.RepeatFields))
				copy(shifted, f.RepeatFields)
				for j := range shifted {
					shifted[j].BitOffset += cursor
				}
				var err error
				buf, err = EncodeFields(buf, shifted, nmea.FieldValues(group))
				if err != nil {
					return nil, err
				}
				cursor += groupBitLength
			}
			continue
		}

		needed := int((f.BitOffset + f.BitLength + 7) / 8)
		buf = growTo(buf, needed)
		if err := encodeOne(buf, f, fv); err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return buf, nil
}

func growTo(buf []byte, size int) []byte {
	if size <= len(buf) {
		return buf
	}
	grown := make([]byte, size)
	copy(grown, buf)
	return grown
}

// writeInvalid writes the NMEA2000 "no data" sentinel for f's kind and width: all bits set for
// unsigned/enum fields, the top-bit-clear all-1s pattern (e.g. 0x7F for 8 bits) for signed fields -
// mirroring the mask/mask-1/mask-2 special values DecodeVariableUint/Int check on the way in - and
// IEEE754 NaN for 32-bit float fields.
func writeInvalid(buf []byte, f Field) error {
	if f.Kind == KindDbl && f.BitLength == 32 {
		bits := math.Float32bits(float32(math.NaN()))
		return writeBits(buf, f.BitOffset, f.BitLength, uint64(bits))
	}
	unsignedMask := mask64(f.BitLength)
	if f.Kind == KindInt || f.Kind == KindDbl || f.Signed {
		return writeBits(buf, f.BitOffset, f.BitLength, unsignedMask>>1)
	}
	return writeBits(buf, f.BitOffset, f.BitLength, unsignedMask)
}

func encodeOne(buf []byte, f Field, fv nmea.FieldValue) error {
	switch f.Kind {
	case KindUInt, KindInstance, KindCommStatus, KindUDbl:
		raw, err := toRawUint(f, fv)
		if err != nil {
			return err
		}
		return writeBits(buf, f.BitOffset, f.BitLength, raw)
	case KindInt, KindDbl:
		if f.Kind == KindDbl && f.BitLength == 32 {
			v, ok := fv.AsFloat64()
			if !ok {
				return fmt.Errorf("value is not numeric")
			}
			bits := math.Float32bits(float32(v))
			return writeBits(buf, f.BitOffset, f.BitLength, uint64(bits))
		}
		raw, err := toRawInt(f, fv)
		if err != nil {
			return err
		}
		return writeBits(buf, f.BitOffset, f.BitLength, uint64(raw)&mask64(f.BitLength))
	case KindEnum, KindEnumInt:
		var code uint32
		switch v := fv.Value.(type) {
		case nmea.EnumValue:
			code = v.Value
		case string:
			resolved, ok := enumValue(f.Enum, v)
			if !ok {
				return fmt.Errorf("unknown enum code %q", v)
			}
			code = resolved
		default:
			n, ok := fv.AsFloat64()
			if !ok {
				return fmt.Errorf("unsupported enum value type")
			}
			code = uint32(n)
		}
		return writeBits(buf, f.BitOffset, f.BitLength, uint64(code))
	case KindName:
		n, ok := fv.AsFloat64()
		if !ok {
			return fmt.Errorf("name field value is not numeric")
		}
		return writeBits(buf, f.BitOffset, f.BitLength, uint64(n))
	case KindASCII, KindFixString:
		s, _ := fv.Value.(string)
		return writeFixString(buf, f.BitOffset, f.BitLength, s)
	case KindString:
		s, _ := fv.Value.(string)
		return writeLAUString(buf, f.BitOffset, s)
	default:
		return fmt.Errorf("unsupported field kind %q", f.Kind)
	}
}

func toRawUint(f Field, fv nmea.FieldValue) (uint64, error) {
	n, ok := fv.AsFloat64()
	if !ok {
		return 0, fmt.Errorf("value is not numeric")
	}
	if f.Resolution != 0 {
		n = (n - f.Offset) / f.Resolution
	} else {
		n -= f.Offset
	}
	return uint64(math.Round(n)), nil
}

func toRawInt(f Field, fv nmea.FieldValue) (int64, error) {
	n, ok := fv.AsFloat64()
	if !ok {
		return 0, fmt.Errorf("value is not numeric")
	}
	if f.Resolution != 0 {
		n = (n - f.Offset) / f.Resolution
	} else {
		n -= f.Offset
	}
	return int64(math.Round(n)), nil
}

func mask64(bitLength uint16) uint64 {
	if bitLength >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bitLength) - 1
}

// writeBits is the mirror image of RawData.decodeVariableInt: it reads the destination bytes into a
// uint64, clears the target bit range, ORs in value shifted into place, and writes the bytes back.
func writeBits(buf []byte, bitOffset uint16, bitLength uint16, value uint64) error {
	startByteIndex := bitOffset / 8
	endByteIndex := ((bitOffset + bitLength + 7) / 8) - 1
	if int(endByteIndex) >= len(buf) {
		return fmt.Errorf("bitoffset is out of bounds of buffer")
	}

	window := make([]byte, 8)
	copy(window, buf[startByteIndex:endByteIndex+1])
	var word uint64
	for i := 7; i >= 0; i-- {
		word = word<<8 | uint64(window[i])
	}

	mask := mask64(bitLength) << (bitOffset % 8)
	word &^= mask
	word |= (value << (bitOffset % 8)) & mask

	for i := 0; i < 8; i++ {
		window[i] = byte(word)
		word >>= 8
	}
	copy(buf[startByteIndex:endByteIndex+1], window)
	return nil
}

func writeFixString(buf []byte, bitOffset uint16, bitLength uint16, s string) error {
	length := int(bitLength / 8)
	startByte := int(bitOffset / 8)
	if startByte+length > len(buf) {
		return fmt.Errorf("string field out of bounds of buffer")
	}
	for i := 0; i < length; i++ {
		if i < len(s) {
			buf[startByte+i] = s[i]
		} else {
			buf[startByte+i] = 0xFF
		}
	}
	return nil
}

func writeLAUString(buf []byte, bitOffset uint16, s string) error {
	startByte := int(bitOffset / 8)
	total := len(s) + 2
	if startByte+total > len(buf) {
		return fmt.Errorf("string field out of bounds of buffer")
	}
	buf[startByte] = byte(total)
	buf[startByte+1] = 1 // ASCII/UTF-8 encoding marker, matching DecodeStringLAU's case 1
	copy(buf[startByte+2:], s)
	return nil
}
