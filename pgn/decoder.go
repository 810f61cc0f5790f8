package pgn

import (
	"fmt"

	nmea "github.com/sterwen-nav/nmea-router"
)

// Decoder decodes raw NMEA2000 payloads against a Schema's PGNDef definitions. It reuses
// nmea.RawData's bit-reading primitives verbatim (fieldvalue.go), the way the teacher's
// canboat.Decoder does, generalized to the XML-sourced Field/PGNDef shape.
type Decoder struct {
	schema *Schema
}

func NewDecoder(schema *Schema) *Decoder {
	return &Decoder{schema: schema}
}

// Decode looks up pgnNumber in the schema and decodes payload against it.
func (d *Decoder) Decode(pgnNumber uint32, mfgID uint16, payload []byte) (nmea.FieldValues, error) {
	def, err := d.schema.Lookup(pgnNumber, mfgID)
	if err != nil {
		return nil, err
	}
	return DecodeFields(def.Fields, payload)
}

// DecodeFields decodes payload against an already-resolved field list, used both for top-level
// PGNDef.Fields and recursively for the template fields of a RepeatedFieldSet.
func DecodeFields(fields []Field, payload []byte) (nmea.FieldValues, error) {
	raw := nmea.RawData(payload)
	out := make(nmea.FieldValues, 0, len(fields))

	for i := 0; i < len(fields); i++ {
		f := fields[i]

		if f.Kind == KindRepeatSet {
			groups, err := decodeRepeatedSet(&raw, f, out)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			out = append(out, nmea.FieldValue{ID: f.ID, Type: string(f.Kind), Value: groups})
			continue
		}

		value, err := decodeOne(&raw, f)
		if err != nil {
			if isIgnorableValueError(err) {
				out = append(out, nmea.FieldValue{ID: f.ID, Type: string(f.Kind), Value: nil})
				continue
			}
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out = append(out, nmea.FieldValue{ID: f.ID, Type: string(f.Kind), Value: value})
	}
	return out, nil
}

func isIgnorableValueError(err error) bool {
	return err == nmea.ErrValueNoData || err == nmea.ErrValueOutOfRange || err == nmea.ErrValueReserved
}

func decodeOne(raw *nmea.RawData, f Field) (interface{}, error) {
	switch f.Kind {
	case KindUInt, KindInstance, KindCommStatus:
		v, err := raw.DecodeVariableUint(f.BitOffset, f.BitLength)
		if err != nil {
			return nil, err
		}
		return applyScale(float64(v), f), nil
	case KindInt:
		v, err := raw.DecodeVariableInt(f.BitOffset, f.BitLength)
		if err != nil {
			return nil, err
		}
		return applyScale(float64(v), f), nil
	case KindDbl:
		if f.BitLength == 32 {
			v, err := raw.DecodeFloat(f.BitOffset, f.BitLength)
			if err != nil {
				return nil, err
			}
			return v, nil
		}
		v, err := raw.DecodeVariableInt(f.BitOffset, f.BitLength)
		if err != nil {
			return nil, err
		}
		return applyScale(float64(v), f), nil
	case KindUDbl:
		v, err := raw.DecodeVariableUint(f.BitOffset, f.BitLength)
		if err != nil {
			return nil, err
		}
		return applyScale(float64(v), f), nil
	case KindEnum, KindEnumInt:
		v, err := raw.DecodeVariableUint(f.BitOffset, f.BitLength)
		if err != nil {
			return nil, err
		}
		return nmea.EnumValue{Value: uint32(v), Code: enumName(f.Enum, uint32(v))}, nil
	case KindName:
		v, err := raw.DecodeVariableUint(f.BitOffset, f.BitLength)
		if err != nil {
			return nil, err
		}
		return v, nil
	case KindASCII:
		s, err := raw.DecodeStringFix(f.BitOffset, f.BitLength)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindFixString:
		s, err := raw.DecodeStringFix(f.BitOffset, f.BitLength)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindString:
		s, _, err := raw.DecodeStringLAU(f.BitOffset)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported field kind %q", f.Kind)
	}
}

func applyScale(raw float64, f Field) float64 {
	if f.Resolution == 0 {
		return raw + f.Offset
	}
	return raw*f.Resolution + f.Offset
}

// decodeRepeatedSet decodes a RepeatedFieldSet: the repeat count comes either from a named earlier
// sibling field (f.RepeatCountField) or, when empty, repeats until the payload is exhausted -
// mirroring canboat/decoder.go's RepeatingFieldSet1/2 cursor pattern, simplified to a single group.
func decodeRepeatedSet(raw *nmea.RawData, f Field, decodedSoFar nmea.FieldValues) ([][]nmea.FieldValue, error) {
	count := -1
	if f.RepeatCountField != "" {
		if fv, ok := decodedSoFar.FindByID(f.RepeatCountField); ok {
			if n, ok := fv.AsFloat64(); ok {
				count = int(n)
			}
		}
	}

	groupBitLength := uint16(0)
	for _, inner := range f.RepeatFields {
		end := inner.BitOffset + inner.BitLength
		if end > groupBitLength {
			groupBitLength = end
		}
	}

	totalBits := uint16(len(*raw)) * 8
	groups := make([][]nmea.FieldValue, 0)
	cursor := f.BitOffset
	for i := 0; count < 0 || i < count; i++ {
		if cursor+groupBitLength > totalBits {
			break
		}
		// RepeatFields carry offsets relative to the start of one repetition; shift each copy by the
		// repetition's absolute start (cursor) to get real payload offsets.
		shifted := make([]Field, len(f.RepeatFields))
		copy(shifted, f.RepeatFields)
		for j := range shifted {
			shifted[j].BitOffset += cursor
		}
		decoded, err := DecodeFields(shifted, []byte(*raw))
		if err != nil {
			return nil, err
		}
		groups = append(groups, decoded)
		cursor += groupBitLength
		if groupBitLength == 0 {
			break
		}
	}
	return groups, nil
}
